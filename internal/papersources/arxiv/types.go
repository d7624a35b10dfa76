// Package arxiv provides a client for the arXiv Atom API, implementing the
// papersources.PaperSource interface. arXiv serves results as an Atom feed;
// citation counts are not available and report as zero.
package arxiv

import "encoding/xml"

// feed represents the Atom XML response from the arXiv API.
type feed struct {
	XMLName      xml.Name `xml:"feed"`
	TotalResults int      `xml:"totalResults"`
	Entries      []entry  `xml:"entry"`
}

// entry represents a single arXiv paper in the Atom feed.
type entry struct {
	ID        string       `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`   // abstract
	Published string       `xml:"published"` // "2023-01-15T18:30:00Z"
	Authors   []entryAuthor `xml:"author"`
	Links     []entryLink  `xml:"link"`
	JournalRef string      `xml:"journal_ref"`
}

type entryAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type entryLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
