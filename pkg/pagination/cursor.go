package pagination

import (
	"context"
	"fmt"
	"iter"

	"github.com/Sternrassler/onenote-dump/pkg/client"
	"github.com/rs/zerolog/log"
)

// JSONFetcher performs a GET and decodes the JSON body into v.
type JSONFetcher interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// Collection is one response page of a Graph collection.
type Collection[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink,omitempty"`
}

// Pages yields each response page of the collection at url, following
// @odata.nextLink until it is absent. The first error ends the sequence.
// Ranging again restarts from url.
func Pages[T any](ctx context.Context, f JSONFetcher, url string) iter.Seq2[[]T, error] {
	return func(yield func([]T, error) bool) {
		next := url
		for page := 1; next != ""; page++ {
			if err := ctx.Err(); err != nil {
				yield(nil, fmt.Errorf("%w: %v", client.ErrContextCancelled, err))
				return
			}

			var coll Collection[T]
			if err := f.GetJSON(ctx, next, &coll); err != nil {
				yield(nil, err)
				return
			}
			if coll.Value == nil {
				yield(nil, &client.MalformedResponseError{
					URL: next,
					Err: fmt.Errorf("collection response has no value array"),
				})
				return
			}

			log.Debug().
				Str("url", next).
				Int("page", page).
				Int("items", len(coll.Value)).
				Bool("has_next", coll.NextLink != "").
				Msg("Fetched collection page")

			if !yield(coll.Value, nil) {
				return
			}
			next = coll.NextLink
		}
	}
}

// Items yields the elements of every page in order.
func Items[T any](ctx context.Context, f JSONFetcher, url string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range Pages[T](ctx, f, url) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect drains Items into a slice.
func Collect[T any](ctx context.Context, f JSONFetcher, url string) ([]T, error) {
	var out []T
	for item, err := range Items[T](ctx, f, url) {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
