// Package cache stores fetched page content in Redis so that a dump that is
// interrupted (for example during a long rate-limit wait) can be restarted
// without downloading every page body again.
//
// Only content payloads are cached. Notebook, section and page listings are
// always fetched fresh because they define the traversal order.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient, 24*time.Hour)
//
//	key := cache.NewVersionedKey(page.ContentURL, page.LastModifiedDateTime)
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from Graph, then:
//		_ = manager.Set(ctx, key, cache.NewEntry(body, contentType))
//	}
//
// # Metrics
//
//   - onenote_content_cache_hits_total
//   - onenote_content_cache_misses_total
//   - onenote_content_cache_errors_total{operation}
package cache
