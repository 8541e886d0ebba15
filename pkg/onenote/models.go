package onenote

import (
	"strings"
	"time"
)

// Filter wildcards.
const (
	MatchAll = "*"
	RootOnly = "/"
)

// Container is the part shared by notebooks and section groups: both can
// hold sections and nested section groups.
type Container struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	SectionsURL      string `json:"sectionsUrl,omitempty"`
	SectionGroupsURL string `json:"sectionGroupsUrl,omitempty"`
}

// Notebook is a top-level OneNote notebook.
type Notebook struct {
	Container
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime,omitempty"`
}

// SectionGroup is a folder of sections and section groups.
type SectionGroup struct {
	Container
}

// Section is a leaf container of pages.
type Section struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	PagesURL    string `json:"pagesUrl"`

	// OutputPath holds the display names from the notebook root down to
	// this section. Set once when the section is discovered.
	OutputPath []string `json:"-"`
}

// Path returns the output path joined with "/".
func (s Section) Path() string {
	return strings.Join(s.OutputPath, "/")
}

// Page is one OneNote page in section order.
type Page struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	Level                int       `json:"level"`
	Order                int       `json:"order"`
	ContentURL           string    `json:"contentUrl"`
	CreatedDateTime      time.Time `json:"createdDateTime,omitempty"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime,omitempty"`

	// SectionPath is the owning section's output path.
	SectionPath []string `json:"-"`

	// AncestorTitles are the titles of the enclosing pages, outermost first.
	AncestorTitles []string `json:"-"`
}
