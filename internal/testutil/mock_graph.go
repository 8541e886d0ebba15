// Package testutil provides a mock Microsoft Graph OneNote server for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockResponse defines a single canned response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockGraph is a configurable mock Graph server. Handlers are keyed by URL path;
// query strings are ignored for routing.
type MockGraph struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc
	requests []string
	auth     []string
}

// NewMockGraph starts a new mock server.
func NewMockGraph() *MockGraph {
	m := &MockGraph{
		handlers: make(map[string]http.HandlerFunc),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.URL.RequestURI())
		m.auth = append(m.auth, r.Header.Get("Authorization"))
		handler, ok := m.handlers[r.URL.Path]
		m.mu.Unlock()

		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintf(w, `{"error":{"code":"20102","message":"The specified resource %s does not exist."}}`, r.URL.Path)
			return
		}
		handler(w, r)
	}))

	return m
}

// URL returns the server root URL.
func (m *MockGraph) URL() string {
	return m.server.URL
}

// BaseURL returns a Graph-shaped OneNote base URL on the mock server.
func (m *MockGraph) BaseURL() string {
	return m.server.URL + "/v1.0/me/onenote/"
}

// URLFor returns the absolute URL of path on the mock server.
func (m *MockGraph) URLFor(path string) string {
	return m.server.URL + path
}

// Close shuts down the mock server.
func (m *MockGraph) Close() {
	m.server.Close()
}

// Reset clears the request log.
func (m *MockGraph) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.auth = nil
}

// Requests returns the request URIs received, in order.
func (m *MockGraph) Requests() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.requests...)
}

// RequestCount returns the number of requests received.
func (m *MockGraph) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.requests)
}

// AuthHeaders returns the Authorization header of each request, in order.
func (m *MockGraph) AuthHeaders() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.auth...)
}

// SetHandler sets a custom handler for a path.
func (m *MockGraph) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse serves the same response for every request to path.
func (m *MockGraph) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, resp.write)
}

// SetSequence serves responses in order; the last one repeats.
func (m *MockGraph) SetSequence(path string, responses ...MockResponse) {
	var (
		mu   sync.Mutex
		next int
	)
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		resp := responses[next]
		if next < len(responses)-1 {
			next++
		}
		mu.Unlock()
		resp.write(w, r)
	})
}

// SetCollection serves a paginated Graph collection at path. Each argument is
// one response page; every page but the last carries an @odata.nextLink
// pointing at path?page=N.
func (m *MockGraph) SetCollection(path string, pages ...[]any) {
	if len(pages) == 0 {
		pages = [][]any{{}}
	}
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		n := 1
		if p := r.URL.Query().Get("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil {
				n = v
			}
		}
		if n < 1 || n > len(pages) {
			http.Error(w, `{"error":{"code":"BadRequest","message":"bad page"}}`, http.StatusBadRequest)
			return
		}

		body := map[string]any{"value": pages[n-1]}
		if n < len(pages) {
			body["@odata.nextLink"] = fmt.Sprintf("%s%s?page=%d", m.server.URL, path, n+1)
		}
		writeJSON(w, http.StatusOK, body)
	})
}

// SetContent serves an HTML page body at path.
func (m *MockGraph) SetContent(path, html string) {
	m.SetResponse(path, MockResponse{
		StatusCode: http.StatusOK,
		Body:       html,
		Headers:    map[string]string{"Content-Type": "text/html"},
	})
}

func (resp MockResponse) write(w http.ResponseWriter, _ *http.Request) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		w.Write([]byte(resp.Body))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; odata.metadata=minimal")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Container returns the JSON shape of a notebook or section group whose child
// listings live under the mock server.
func (m *MockGraph) Container(id, name, sectionsPath, groupsPath string) map[string]any {
	c := map[string]any{"id": id, "displayName": name}
	if sectionsPath != "" {
		c["sectionsUrl"] = m.URLFor(sectionsPath)
	}
	if groupsPath != "" {
		c["sectionGroupsUrl"] = m.URLFor(groupsPath)
	}
	return c
}

// Section returns the JSON shape of a section.
func (m *MockGraph) Section(id, name, pagesPath string) map[string]any {
	return map[string]any{
		"id":          id,
		"displayName": name,
		"pagesUrl":    m.URLFor(pagesPath),
	}
}

// PageModified is the lastModifiedDateTime of pages built by Page.
const PageModified = "2024-01-01T00:00:00Z"

// Page returns the JSON shape of a page. Set "lastModifiedDateTime" on the
// result to model an edit.
func (m *MockGraph) Page(id, title string, level, order int, contentPath string) map[string]any {
	return map[string]any{
		"id":                   id,
		"title":                title,
		"level":                level,
		"order":                order,
		"contentUrl":           m.URLFor(contentPath),
		"lastModifiedDateTime": PageModified,
	}
}

// NewOKResponse creates a 200 JSON response.
func NewOKResponse(body string) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       body,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewTooManyRequestsResponse creates the 429 Graph returns for OneNote,
// without a Retry-After header.
func NewTooManyRequestsResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"error":{"code":"20166","message":"The application has exceeded the request limit."}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewServerErrorResponse creates a 500 response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":{"code":"generalException","message":"An internal server error occurred."}}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}
