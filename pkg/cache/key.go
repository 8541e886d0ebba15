package cache

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// KeyPrefix namespaces all content cache keys in Redis.
const KeyPrefix = "onenote:content"

// Key identifies a cached content payload by its source URL and, when
// known, the source's last modification time.
type Key struct {
	URL      string
	Modified time.Time
}

// NewKey returns the key for a content URL.
func NewKey(rawURL string) Key {
	return Key{URL: rawURL}
}

// NewVersionedKey returns the key for a content URL at one revision. A new
// modification time yields a new key, so edited content is never served
// from an older entry.
func NewVersionedKey(rawURL string, modified time.Time) Key {
	return Key{URL: rawURL, Modified: modified}
}

// String generates a deterministic Redis key.
// Scheme and host are lower-cased, a trailing slash is dropped and query
// parameters are sorted, so equivalent URLs share a key.
//
// Example:
//
//	onenote:content:graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content?includeIDs=true
//	onenote:content:graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content@1704067200000000000
func (k Key) String() string {
	return k.location() + k.version()
}

func (k Key) version() string {
	if k.Modified.IsZero() {
		return ""
	}
	return "@" + strconv.FormatInt(k.Modified.UnixNano(), 10)
}

func (k Key) location() string {
	u, err := url.Parse(k.URL)
	if err != nil || u.Host == "" {
		return KeyPrefix + ":" + k.URL
	}

	var b strings.Builder
	b.WriteString(KeyPrefix)
	b.WriteString(":")
	b.WriteString(strings.ToLower(u.Host))
	b.WriteString(strings.TrimSuffix(u.EscapedPath(), "/"))

	query := u.Query()
	if len(query) > 0 {
		names := make([]string, 0, len(query))
		for name := range query {
			names = append(names, name)
		}
		sort.Strings(names)

		params := make([]string, 0, len(names))
		for _, name := range names {
			values := append([]string(nil), query[name]...)
			sort.Strings(values)
			for _, v := range values {
				params = append(params, url.QueryEscape(name)+"="+url.QueryEscape(v))
			}
		}
		b.WriteString("?")
		b.WriteString(strings.Join(params, "&"))
	}

	return b.String()
}
