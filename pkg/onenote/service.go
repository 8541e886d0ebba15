package onenote

import (
	"context"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/Sternrassler/onenote-dump/pkg/logging"
	"github.com/Sternrassler/onenote-dump/pkg/pagination"
	"github.com/rs/zerolog"
)

// Fetcher is the subset of the Graph client the traversal needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v any) error
	GetContent(ctx context.Context, url string, modified time.Time) ([]byte, error)
}

// Service resolves notebooks, sections and pages.
type Service struct {
	fetcher Fetcher
	baseURL string
	logger  zerolog.Logger
}

// NewService creates a service rooted at baseURL, e.g.
// https://graph.microsoft.com/v1.0/me/onenote/.
func NewService(fetcher Fetcher, baseURL string) *Service {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Service{
		fetcher: fetcher,
		baseURL: baseURL,
		logger:  logging.NewLogger("onenote"),
	}
}

// Notebooks lists every notebook of the signed-in user.
func (s *Service) Notebooks(ctx context.Context) ([]Notebook, error) {
	notebooks, err := pagination.Collect[Notebook](ctx, s.fetcher, s.baseURL+"notebooks")
	if err != nil {
		return nil, fmt.Errorf("list notebooks: %w", err)
	}
	return notebooks, nil
}

// FindNotebook returns the notebook whose display name equals name.
func (s *Service) FindNotebook(ctx context.Context, name string) (*Notebook, error) {
	notebooks, err := s.Notebooks(ctx)
	if err != nil {
		return nil, err
	}

	available := make([]string, 0, len(notebooks))
	for i := range notebooks {
		if notebooks[i].DisplayName == name {
			return &notebooks[i], nil
		}
		available = append(available, notebooks[i].DisplayName)
	}
	return nil, &NotebookNotFoundError{Name: name, Available: available}
}

// NotebookPages looks up the notebook and yields the pages of every matching
// section. A missing notebook is reported before any section is listed.
func (s *Service) NotebookPages(ctx context.Context, notebook, groupFilter, sectionFilter string) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		nb, err := s.FindNotebook(ctx, notebook)
		if err != nil {
			yield(Page{}, err)
			return
		}

		for section, err := range s.Sections(ctx, nb, groupFilter, sectionFilter) {
			if err != nil {
				yield(Page{}, err)
				return
			}
			for page, err := range s.SectionPages(ctx, section) {
				if !yield(page, err) || err != nil {
					return
				}
			}
		}
	}
}

// PageContent fetches the HTML body of a page. The page's modification time
// versions any cached copy.
func (s *Service) PageContent(ctx context.Context, page Page) ([]byte, error) {
	content, err := s.fetcher.GetContent(ctx, page.ContentURL, page.LastModifiedDateTime)
	if err != nil {
		return nil, fmt.Errorf("page %q content: %w", page.Title, err)
	}
	return content, nil
}
