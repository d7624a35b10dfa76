// Package papersources provides clients for searching academic paper
// databases. Each database implements the PaperSource interface so the
// Research step can fan out across sources with a unified API.
package papersources

import (
	"context"
	"time"

	"github.com/quillview/litsynth/internal/domain"
)

// SourceType identifies a paper source implementation.
type SourceType string

const (
	// SourceTypeSemanticScholar is the Semantic Scholar Graph API.
	SourceTypeSemanticScholar SourceType = "semantic_scholar"
	// SourceTypeArXiv is the arXiv Atom API.
	SourceTypeArXiv SourceType = "arxiv"
)

// SearchParams defines the parameters for searching academic papers.
// All fields except Query are optional filters.
type SearchParams struct {
	// Query is the search query string (required).
	Query string

	// YearFrom filters papers published on or after this year.
	// Zero applies no lower bound.
	YearFrom int

	// MaxResults limits the number of papers returned in a single request.
	// Sources may have their own maximum limits that override this value.
	// A value of 0 uses the source's default limit.
	MaxResults int

	// MinCitations filters papers to only include those with at least
	// this many citations. A value of 0 applies no citation filter.
	MinCitations int
}

// SearchResult contains the results from a paper source search operation.
type SearchResult struct {
	// Papers contains the papers returned by the search.
	// May be empty if no papers match the search criteria.
	Papers []domain.Paper

	// TotalResults is the total number of papers matching the query,
	// regardless of result limits. May be an estimate for large sets.
	TotalResults int

	// Source identifies which paper source provided these results.
	Source SourceType

	// SearchDuration is the time taken to execute the search,
	// including network latency and response parsing.
	SearchDuration time.Duration
}

// PaperSource defines the interface that all paper source clients implement.
//
// Implementations should:
//   - Respect context cancellation
//   - Apply rate limiting as needed
//   - Transform source-specific responses to domain.Paper
//   - Include appropriate error wrapping with source context
type PaperSource interface {
	// Search queries the paper source for papers matching the given
	// parameters.
	Search(ctx context.Context, params SearchParams) (*SearchResult, error)

	// SourceType returns the type identifier for this paper source.
	SourceType() SourceType

	// Name returns a human-readable name for this paper source.
	// Used for logging, metrics, and display purposes.
	Name() string

	// IsEnabled returns whether this paper source is currently enabled
	// and available for searches. A source may be disabled due to
	// configuration or missing API keys.
	IsEnabled() bool
}
