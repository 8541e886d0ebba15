package onenote

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/Sternrassler/onenote-dump/pkg/pagination"
)

// Sections yields the sections under root that match the filters,
// depth-first: a container's own sections come before its groups.
// No match yields nothing and is not an error.
func (s *Service) Sections(ctx context.Context, root *Notebook, groupFilter, sectionFilter string) iter.Seq2[Section, error] {
	return func(yield func(Section, error) bool) {
		w := &sectionWalk{
			service:       s,
			groupFilter:   groupFilter,
			sectionFilter: sectionFilter,
			yield:         yield,
		}
		w.walk(ctx, root.Container, nil)
	}
}

type sectionWalk struct {
	service       *Service
	groupFilter   string
	sectionFilter string
	yield         func(Section, error) bool
}

// walk visits one container. path is nil for the notebook itself. It
// returns false once the consumer stops or an error was yielded.
func (w *sectionWalk) walk(ctx context.Context, c Container, path []string) bool {
	logger := w.service.logger

	if c.SectionsURL != "" && w.listsSections(path) {
		for section, err := range pagination.Items[Section](ctx, w.service.fetcher, c.SectionsURL) {
			if err != nil {
				return w.fail(fmt.Errorf("list sections of %q: %w", c.DisplayName, err))
			}
			section.OutputPath = append(slices.Clone(path), section.DisplayName)

			if w.sectionFilter != MatchAll && w.sectionFilter != section.DisplayName {
				logger.Info().Str("section", section.Path()).Msg("Ignore section")
				continue
			}
			if !w.yield(section, nil) {
				return false
			}
		}
	}

	if c.SectionGroupsURL == "" {
		return true
	}

	for group, err := range pagination.Items[SectionGroup](ctx, w.service.fetcher, c.SectionGroupsURL) {
		if err != nil {
			return w.fail(fmt.Errorf("list section groups of %q: %w", c.DisplayName, err))
		}
		groupPath := append(slices.Clone(path), group.DisplayName)

		if !w.entersGroup(groupPath) {
			logger.Info().Str("section_group", strings.Join(groupPath, "/")).Msg("Ignore section group")
			continue
		}
		if !w.walk(ctx, group.Container, groupPath) {
			return false
		}
	}
	return true
}

// listsSections reports whether the sections directly under the container
// at path are wanted.
func (w *sectionWalk) listsSections(path []string) bool {
	switch {
	case w.groupFilter == MatchAll:
		return true
	case path == nil:
		return w.groupFilter == RootOnly
	default:
		return strings.Join(path, "/") == w.groupFilter
	}
}

// entersGroup reports whether the walk descends into the group at path:
// the group itself matches, or it lies on the way to the matching group.
func (w *sectionWalk) entersGroup(path []string) bool {
	if w.groupFilter == MatchAll {
		return true
	}
	joined := strings.Join(path, "/")
	return joined == w.groupFilter || strings.HasPrefix(w.groupFilter, joined+"/")
}

func (w *sectionWalk) fail(err error) bool {
	w.yield(Section{}, err)
	return false
}
