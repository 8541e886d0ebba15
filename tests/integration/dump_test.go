//go:build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Sternrassler/onenote-dump/internal/testutil"
	"github.com/Sternrassler/onenote-dump/pkg/client"
	"github.com/Sternrassler/onenote-dump/pkg/export"
	"github.com/Sternrassler/onenote-dump/pkg/onenote"
	"github.com/Sternrassler/onenote-dump/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/oauth2"
)

const api = "/v1.0/me/onenote"

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

// testTransport sends requests for graph.microsoft.com to the mock server.
type testTransport struct {
	mock *testutil.MockGraph
	base http.RoundTripper
}

func (t *testTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Host == "graph.microsoft.com" {
		req = req.Clone(req.Context())
		req.URL.Scheme = "http"
		req.URL.Host = strings.TrimPrefix(t.mock.URL(), "http://")
	}
	return t.base.RoundTrip(req)
}

func setupNotebook(mock *testutil.MockGraph) {
	mock.SetCollection(api+"/notebooks", []any{
		mock.Container("nb", "Work", api+"/notebooks/nb/sections", api+"/notebooks/nb/sectionGroups"),
	})
	mock.SetCollection(api+"/notebooks/nb/sections", []any{
		mock.Section("s1", "Inbox", api+"/sections/s1/pages"),
	})
	mock.SetCollection(api+"/notebooks/nb/sectionGroups", []any{
		mock.Container("g1", "Projects", api+"/sectionGroups/g1/sections", api+"/sectionGroups/g1/sectionGroups"),
	})
	mock.SetCollection(api+"/sectionGroups/g1/sections", []any{
		mock.Section("s2", "Alpha", api+"/sections/s2/pages"),
	})
	mock.SetCollection(api+"/sectionGroups/g1/sectionGroups")

	mock.SetCollection(api+"/sections/s1/pages",
		[]any{
			mock.Page("p1", "Plan", 0, 0, api+"/pages/p1/content"),
			mock.Page("p2", "Week 1", 1, 1, api+"/pages/p2/content"),
		},
		[]any{
			mock.Page("p3", "Day 1", 2, 2, api+"/pages/p3/content"),
			mock.Page("p4", "Ideas", 0, 3, api+"/pages/p4/content"),
		},
	)
	mock.SetCollection(api+"/sections/s2/pages", []any{
		mock.Page("p5", "Kickoff", 0, 0, api+"/pages/p5/content"),
	})
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5"} {
		mock.SetContent(api+"/pages/"+id+"/content", "<html><body><h2>"+id+"</h2></body></html>")
	}
}

func newClient(t *testing.T, mock *testutil.MockGraph, rdb *redis.Client, sleep func(context.Context, time.Duration) error) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "integration"}))
	cfg.Redis = rdb
	cfg.Backoff.Sleep = sleep

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	c.SetHTTPClient(&http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "integration"}),
			Base:   &testTransport{mock: mock, base: http.DefaultTransport},
		},
		Timeout: 30 * time.Second,
	})
	return c
}

func dump(t *testing.T, c *client.Client, out string) []string {
	t.Helper()

	service := onenote.NewService(c, c.BaseURL())
	exporter := export.New(service, out)
	ctx := context.Background()

	var written []string
	for page, err := range service.NotebookPages(ctx, "Work", "*", "*") {
		if err != nil {
			t.Fatalf("traversal failed: %v", err)
		}
		path, err := exporter.Export(ctx, page)
		if err != nil {
			t.Fatalf("export %q failed: %v", page.Title, err)
		}
		rel, _ := filepath.Rel(out, path)
		written = append(written, filepath.ToSlash(rel))
	}
	return written
}

// TestFullDump walks the notebook, writes every page and repeats the run to
// check that page bodies come from the Redis content cache.
func TestFullDump(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraph()
	defer mock.Close()
	setupNotebook(mock)

	out := t.TempDir()
	c := newClient(t, mock, redisClient, nil)

	written := dump(t, c, out)

	want := []string{
		"Inbox/Plan.md",
		"Inbox/Plan/Week 1.md",
		"Inbox/Plan/Week 1/Day 1.md",
		"Inbox/Ideas.md",
		"Projects/Alpha/Kickoff.md",
	}
	if strings.Join(written, "|") != strings.Join(want, "|") {
		t.Errorf("written = %q, want %q", written, want)
	}

	data, err := os.ReadFile(filepath.Join(out, "Inbox", "Plan", "Week 1", "Day 1.md"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "## p3") {
		t.Errorf("Day 1.md = %q", data)
	}

	first := mock.RequestCount()
	mock.Reset()

	dump(t, c, t.TempDir())

	for _, req := range mock.Requests() {
		if strings.HasSuffix(req, "/content") {
			t.Errorf("content request %q on second run, want cache hit", req)
		}
	}
	if second := mock.RequestCount(); second != first-5 {
		t.Errorf("second run requests = %d, want %d (listings only)", second, first-5)
	}
}

// TestDumpThroughRateLimit throttles the page listing twice and checks that
// the run completes with the expected waits.
func TestDumpThroughRateLimit(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	mock := testutil.NewMockGraph()
	defer mock.Close()
	setupNotebook(mock)
	mock.SetSequence(api+"/sections/s2/pages",
		testutil.NewTooManyRequestsResponse(),
		testutil.NewTooManyRequestsResponse(),
		testutil.NewOKResponse(`{"value":[{"id":"p5","title":"Kickoff","level":0,"order":0,"contentUrl":"`+mock.URLFor(api+"/pages/p5/content")+`"}]}`),
	)

	// returns at once; the window recorded in Redis stays until a request succeeds
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	out := t.TempDir()
	written := dump(t, newClient(t, mock, redisClient, sleep), out)

	if len(written) != 5 {
		t.Errorf("written = %q, want 5 pages", written)
	}
	if len(waits) != 2 || waits[0] != 15*time.Minute || waits[1] != 30*time.Minute {
		t.Errorf("waits = %v, want [15m 30m]", waits)
	}
	if n, _ := redisClient.Exists(context.Background(), ratelimit.RedisKeyThrottleState).Result(); n != 0 {
		t.Error("throttle state should be cleared once the listing went through")
	}
}
