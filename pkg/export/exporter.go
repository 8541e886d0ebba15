// Package export writes OneNote pages to disk as Markdown files laid out
// like the notebook: one directory per section group and section, one more
// per ancestor page.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/Sternrassler/onenote-dump/pkg/logging"
	"github.com/Sternrassler/onenote-dump/pkg/onenote"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pagesExported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "onenote_pages_exported_total",
		Help: "Total pages written to disk",
	})

	invalidChars = regexp.MustCompile(`[<>:"/\\|?*#]`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// untitled replaces names that sanitize to nothing.
const untitled = "Untitled"

// ContentSource fetches the HTML body of a page.
type ContentSource interface {
	PageContent(ctx context.Context, page onenote.Page) ([]byte, error)
}

// Exporter converts pages and writes them below a base directory.
type Exporter struct {
	source    ContentSource
	baseDir   string
	converter *md.Converter
	logger    zerolog.Logger
}

// New creates an exporter writing below baseDir.
func New(source ContentSource, baseDir string) *Exporter {
	return &Exporter{
		source:    source,
		baseDir:   baseDir,
		converter: md.NewConverter("", true, nil),
		logger:    logging.NewLogger("exporter"),
	}
}

// Dir returns the directory a page is written to:
// <base>/<section path...>/<ancestor titles...>.
func (e *Exporter) Dir(page onenote.Page) string {
	parts := make([]string, 0, 1+len(page.SectionPath)+len(page.AncestorTitles))
	parts = append(parts, e.baseDir)
	for _, name := range page.SectionPath {
		parts = append(parts, Filenamify(name))
	}
	for _, title := range page.AncestorTitles {
		parts = append(parts, Filenamify(title))
	}
	return filepath.Join(parts...)
}

// Path returns the Markdown file a page is written to.
func (e *Exporter) Path(page onenote.Page) string {
	return filepath.Join(e.Dir(page), Filenamify(page.Title)+".md")
}

// Export fetches, converts and writes one page. It returns the file path.
func (e *Exporter) Export(ctx context.Context, page onenote.Page) (string, error) {
	content, err := e.source.PageContent(ctx, page)
	if err != nil {
		return "", err
	}

	markdown, err := e.converter.ConvertString(string(content))
	if err != nil {
		return "", fmt.Errorf("convert page %q: %w", page.Title, err)
	}

	dir := e.Dir(page)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := e.Path(page)
	if err := os.WriteFile(path, []byte(markdown+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("write page %s: %w", path, err)
	}

	if !page.LastModifiedDateTime.IsZero() {
		if err := os.Chtimes(path, page.LastModifiedDateTime, page.LastModifiedDateTime); err != nil {
			e.logger.Warn().Err(err).Str("path", path).Msg("Failed to set modification time")
		}
	}

	pagesExported.Inc()
	e.logger.Debug().
		Str("page", page.Title).
		Str("path", path).
		Int("bytes", len(markdown)).
		Msg("Page written")

	return path, nil
}

// Filenamify turns a display name into a safe path segment: reserved
// characters become spaces, whitespace runs collapse, ends are trimmed.
func Filenamify(name string) string {
	s := invalidChars.ReplaceAllString(name, " ")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" || s == "." || s == ".." {
		return untitled
	}
	return s
}
