package domain

import "strings"

// Author represents a paper author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
}

// Paper represents a retrieved academic paper. Papers are appended by the
// Research step and never mutated afterwards; Analyze and Write are
// read-only consumers.
type Paper struct {
	// ExternalID is the source-specific identifier (e.g. a Semantic Scholar
	// paper ID or an arXiv ID).
	ExternalID string   `json:"external_id,omitempty"`
	Title      string   `json:"title"`
	Authors    []Author `json:"authors"`
	// Year is the publication year, or zero when the source did not report one.
	Year          int    `json:"year"`
	CitationCount int    `json:"citation_count"`
	Abstract      string `json:"abstract,omitempty"`
	SourceURL     string `json:"source_url,omitempty"`
	Venue         string `json:"venue,omitempty"`
	// Source names the paper source API that returned the paper.
	Source string `json:"source,omitempty"`
}

// AuthorNames returns up to max author names, appending "et al." when the
// author list is longer. A max of zero returns all names.
func (p Paper) AuthorNames(max int) string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if max > 0 && len(names) > max {
		return strings.Join(names[:max], ", ") + " et al."
	}
	return strings.Join(names, ", ")
}

// HasAbstract returns true when the paper carries a non-empty abstract.
func (p Paper) HasAbstract() bool {
	return strings.TrimSpace(p.Abstract) != ""
}
