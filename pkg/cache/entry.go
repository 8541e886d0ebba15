package cache

import (
	"time"
)

// Entry is a cached page content payload.
type Entry struct {
	// Data is the raw response body.
	Data []byte `json:"data"`

	// ContentType is the response Content-Type header.
	ContentType string `json:"content_type"`

	// Expires is when the entry becomes stale. Zero means the manager TTL applies.
	Expires time.Time `json:"expires"`

	// CachedAt is when the entry was stored.
	CachedAt time.Time `json:"cached_at"`
}

// NewEntry returns an entry stamped with the current time.
func NewEntry(data []byte, contentType string) *Entry {
	return &Entry{
		Data:        data,
		ContentType: contentType,
		CachedAt:    time.Now(),
	}
}

// IsExpired reports whether the entry has an expiry in the past.
func (e *Entry) IsExpired() bool {
	return !e.Expires.IsZero() && time.Now().After(e.Expires)
}

// TTL returns the time until expiration, or fallback when the entry has no
// expiry of its own. Returns 0 if already expired.
func (e *Entry) TTL(fallback time.Duration) time.Duration {
	if e.Expires.IsZero() {
		return fallback
	}
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}
