// Package semanticscholar provides a client for the Semantic Scholar Graph
// API, implementing the papersources.PaperSource interface.
//
// API documentation: https://api.semanticscholar.org/api-docs/
package semanticscholar

// searchResponse represents the response from the paper search endpoint.
type searchResponse struct {
	// Total is the total number of papers matching the query.
	Total int `json:"total"`

	// Offset is the current offset in the result set.
	Offset int `json:"offset"`

	// Data contains the list of papers returned by the search.
	Data []paperResult `json:"data"`
}

// paperResult represents a single paper in the API response.
type paperResult struct {
	PaperID       string   `json:"paperId"`
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Year          int      `json:"year"`
	Venue         string   `json:"venue"`
	URL           string   `json:"url"`
	Authors       []author `json:"authors"`
	CitationCount int      `json:"citationCount"`
}

// author represents a paper author in the API response.
type author struct {
	AuthorID string `json:"authorId,omitempty"`
	Name     string `json:"name"`
}

// errorResponse represents an error payload from the API. The API uses both
// "error" and "message" fields depending on the failure.
type errorResponse struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}
