package cache

import (
	"testing"
	"time"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{
			name: "content url",
			url:  "https://graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content",
			want: "onenote:content:graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content",
		},
		{
			name: "host is lower-cased",
			url:  "https://Graph.Microsoft.com/v1.0/me/onenote/pages/1-abc/content",
			want: "onenote:content:graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content",
		},
		{
			name: "trailing slash dropped",
			url:  "https://graph.microsoft.com/v1.0/me/onenote/resources/r1/$value/",
			want: "onenote:content:graph.microsoft.com/v1.0/me/onenote/resources/r1/$value",
		},
		{
			name: "query sorted",
			url:  "https://graph.microsoft.com/pages/1/content?preAuthenticated=true&includeIDs=true",
			want: "onenote:content:graph.microsoft.com/pages/1/content?includeIDs=true&preAuthenticated=true",
		},
		{
			name: "unparseable falls back to raw",
			url:  "not a url",
			want: "onenote:content:not a url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewKey(tt.url).String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	a := NewKey("https://graph.microsoft.com/p/content?b=2&a=1")
	b := NewKey("https://graph.microsoft.com/p/content?a=1&b=2")

	for i := 0; i < 10; i++ {
		if a.String() != b.String() {
			t.Fatalf("keys differ: %q vs %q", a.String(), b.String())
		}
	}
}

func TestKey_Versioned(t *testing.T) {
	const url = "https://graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content"
	v1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	v2 := v1.Add(time.Minute)

	got := NewVersionedKey(url, v1).String()
	want := "onenote:content:graph.microsoft.com/v1.0/me/onenote/pages/1-abc/content@1704067200000000000"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	if NewVersionedKey(url, v2).String() == got {
		t.Error("edited page shares a key with its previous revision")
	}

	// Same instant in another zone is the same revision.
	if other := NewVersionedKey(url, v1.In(time.FixedZone("CET", 3600))).String(); other != got {
		t.Errorf("zone changed key: %q vs %q", other, got)
	}

	if NewVersionedKey(url, time.Time{}).String() != NewKey(url).String() {
		t.Error("zero modification time should match the unversioned key")
	}
}
