package onenote

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"slices"

	"github.com/Sternrassler/onenote-dump/pkg/pagination"
)

// hierarchy rebuilds page nesting from the level of each page in order.
// One value serves exactly one section.
type hierarchy struct {
	level     int
	ancestors []string
	previous  string
}

// next applies the page's level and returns its ancestor titles.
// A jump of more than one level pushes only the preceding title.
func (h *hierarchy) next(level int, title string) []string {
	switch {
	case level > h.level:
		h.ancestors = append(h.ancestors, h.previous)
		h.level = level
	case level < h.level:
		h.ancestors = h.ancestors[:min(level, len(h.ancestors))]
		h.level = level
	}
	h.previous = title
	return append([]string{}, h.ancestors...)
}

// SectionPages yields the pages of section in Graph order, each tagged with
// the section path and its ancestor titles.
func (s *Service) SectionPages(ctx context.Context, section Section) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		listURL, err := pagesURL(section.PagesURL)
		if err != nil {
			yield(Page{}, err)
			return
		}

		s.logger.Info().
			Str("section", section.Path()).
			Msg("Converting section")

		var h hierarchy
		for page, err := range pagination.Items[Page](ctx, s.fetcher, listURL) {
			if err != nil {
				yield(Page{}, fmt.Errorf("list pages of %q: %w", section.Path(), err))
				return
			}
			page.AncestorTitles = h.next(page.Level, page.Title)
			page.SectionPath = slices.Clone(section.OutputPath)
			if !yield(page, nil) {
				return
			}
		}
	}
}

// pagesURL asks Graph for page levels, sorted by page order.
func pagesURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse pages url %q: %w", raw, err)
	}
	q := u.Query()
	q.Set("pagelevel", "true")
	q.Set("orderby", "order")
	u.RawQuery = q.Encode()
	return u.String(), nil
}
