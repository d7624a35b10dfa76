package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/papersources"
)

const (
	// DefaultBaseURL is the default base URL for the Semantic Scholar Graph API.
	DefaultBaseURL = "https://api.semanticscholar.org/graph/v1"

	// DefaultRateLimit is the default rate limit for unauthenticated
	// requests. With an API key, this can be increased.
	DefaultRateLimit = 10.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 10

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum number of results per request.
	DefaultMaxResults = 20

	// apiKeyHeader is the header name for the Semantic Scholar API key.
	apiKeyHeader = "x-api-key"

	// paperFields is the list of fields to request from the API.
	paperFields = "paperId,title,abstract,year,venue,url,authors,citationCount"

	// sourceName is the human-readable name for this source.
	sourceName = "Semantic Scholar"
)

// Config contains configuration options for the Semantic Scholar client.
// Zero fields take their Default* values.
type Config struct {
	BaseURL string

	// APIKey is the optional API key; authenticated requests have higher
	// rate limits.
	APIKey string

	Timeout   time.Duration
	RateLimit float64
	BurstSize int

	// MaxResults is the maximum number of results to return per search.
	MaxResults int

	// Enabled indicates whether this source is enabled.
	Enabled bool
}

// Client implements papersources.PaperSource for Semantic Scholar.
type Client struct {
	httpClient *papersources.HTTPClient
	config     Config
}

var _ papersources.PaperSource = (*Client)(nil)

// NewClient creates a new Semantic Scholar client. If httpClient is nil, one
// is created from the configuration; passing a client is useful in tests.
func NewClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = DefaultRateLimit
	}
	if cfg.BurstSize == 0 {
		cfg.BurstSize = DefaultBurstSize
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = DefaultMaxResults
	}

	if httpClient == nil {
		httpClient = papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:      cfg.Timeout,
			RateLimit:    cfg.RateLimit,
			BurstSize:    cfg.BurstSize,
			APIKey:       cfg.APIKey,
			APIKeyHeader: apiKeyHeader,
		})
	}

	return &Client{httpClient: httpClient, config: cfg}
}

// Search queries Semantic Scholar for papers matching the given parameters.
func (c *Client) Search(ctx context.Context, params papersources.SearchParams) (*papersources.SearchResult, error) {
	start := time.Now()

	searchURL, err := c.buildSearchURL(params)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if err := c.handleErrorResponse(resp); err != nil {
		return nil, err
	}

	// Limit body to 10MB to prevent resource exhaustion.
	var searchResp searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &papersources.SearchResult{
		Papers:         convertPapers(searchResp.Data),
		TotalResults:   searchResp.Total,
		Source:         papersources.SourceTypeSemanticScholar,
		SearchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() papersources.SourceType {
	return papersources.SourceTypeSemanticScholar
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is currently enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the search API URL with query parameters.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}

	searchURL := baseURL.JoinPath("paper", "search")

	q := searchURL.Query()
	q.Set("query", params.Query)
	q.Set("fields", paperFields)

	limit := params.MaxResults
	if limit <= 0 || limit > c.config.MaxResults {
		limit = c.config.MaxResults
	}
	q.Set("limit", strconv.Itoa(limit))

	// Semantic Scholar filters by year range; an open-ended "YYYY-" means
	// that year or later.
	if params.YearFrom > 0 {
		q.Set("year", fmt.Sprintf("%d-", params.YearFrom))
	}
	if params.MinCitations > 0 {
		q.Set("minCitationCount", strconv.Itoa(params.MinCitations))
	}

	searchURL.RawQuery = q.Encode()
	return searchURL.String(), nil
}

// handleErrorResponse checks for API errors and returns appropriate error types.
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	// Limit the error body to 1MB.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.ExternalAPIError{
			Service:    sourceName,
			StatusCode: resp.StatusCode,
			Message:    "failed to read error response",
		}
	}

	message := string(body)
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			message = errResp.Error
		} else if errResp.Message != "" {
			message = errResp.Message
		}
	}

	return &domain.ExternalAPIError{
		Service:    sourceName,
		StatusCode: resp.StatusCode,
		Message:    message,
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
	}
}

func convertPapers(results []paperResult) []domain.Paper {
	papers := make([]domain.Paper, 0, len(results))
	for _, result := range results {
		authors := make([]domain.Author, 0, len(result.Authors))
		for _, a := range result.Authors {
			if a.Name != "" {
				authors = append(authors, domain.Author{Name: a.Name})
			}
		}
		papers = append(papers, domain.Paper{
			ExternalID:    result.PaperID,
			Title:         result.Title,
			Authors:       authors,
			Year:          result.Year,
			CitationCount: result.CitationCount,
			Abstract:      result.Abstract,
			SourceURL:     result.URL,
			Venue:         result.Venue,
			Source:        string(papersources.SourceTypeSemanticScholar),
		})
	}
	return papers
}
