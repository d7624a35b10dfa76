package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/papersources"
)

const (
	// DefaultBaseURL is the default arXiv API base URL.
	DefaultBaseURL = "https://export.arxiv.org/api"

	// DefaultRateLimit respects arXiv's requested limit of one burst every
	// few seconds for automated clients.
	DefaultRateLimit = 3.0

	// DefaultBurstSize is the default burst size for rate limiting.
	DefaultBurstSize = 3

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResults is the default maximum results per request.
	DefaultMaxResults = 20

	// sourceName is the human-readable name for this source.
	sourceName = "arXiv"
)

// arxivIDRegex extracts the arXiv ID from the entry URL, dropping any
// version suffix. Matches "http://arxiv.org/abs/2301.12345v1" and legacy
// IDs like "http://arxiv.org/abs/hep-th/9901001v1".
var arxivIDRegex = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// Config holds configuration for the arXiv client. Zero fields take their
// Default* values.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxResults int

	// Enabled indicates whether this source is enabled for searches.
	Enabled bool
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.BurstSize == 0 {
		c.BurstSize = DefaultBurstSize
	}
	if c.MaxResults == 0 {
		c.MaxResults = DefaultMaxResults
	}
}

// Client implements papersources.PaperSource for arXiv.
type Client struct {
	config     Config
	httpClient *papersources.HTTPClient
}

var _ papersources.PaperSource = (*Client)(nil)

// New creates a new arXiv client with the given configuration.
func New(cfg Config) *Client {
	cfg.applyDefaults()
	return &Client{
		config: cfg,
		httpClient: papersources.NewHTTPClient(papersources.HTTPClientConfig{
			Timeout:   cfg.Timeout,
			RateLimit: cfg.RateLimit,
			BurstSize: cfg.BurstSize,
		}),
	}
}

// NewWithHTTPClient creates a new arXiv client with a custom HTTP client,
// useful for testing with mock servers.
func NewWithHTTPClient(cfg Config, httpClient *papersources.HTTPClient) *Client {
	cfg.applyDefaults()
	return &Client{config: cfg, httpClient: httpClient}
}

// Search queries arXiv for papers matching the given parameters.
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

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &domain.ExternalAPIError{
			Service:    sourceName,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	// Limit body to 10MB.
	var f feed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&f); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	papers := make([]domain.Paper, 0, len(f.Entries))
	for i := range f.Entries {
		if paper, ok := entryToPaper(&f.Entries[i]); ok {
			// arXiv cannot filter by citations; MinCitations would drop
			// everything since counts are unknown. YearFrom is applied
			// client-side instead.
			if params.YearFrom > 0 && paper.Year > 0 && paper.Year < params.YearFrom {
				continue
			}
			papers = append(papers, paper)
		}
	}

	return &papersources.SearchResult{
		Papers:         papers,
		TotalResults:   f.TotalResults,
		Source:         papersources.SourceTypeArXiv,
		SearchDuration: time.Since(start),
	}, nil
}

// SourceType returns the source type identifier.
func (c *Client) SourceType() papersources.SourceType {
	return papersources.SourceTypeArXiv
}

// Name returns the human-readable name for this source.
func (c *Client) Name() string {
	return sourceName
}

// IsEnabled returns whether this source is enabled.
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// buildSearchURL constructs the arXiv search API URL.
func (c *Client) buildSearchURL(params papersources.SearchParams) (string, error) {
	baseURL, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = strings.TrimRight(baseURL.Path, "/") + "/query"

	query := url.Values{}
	searchQuery := "all:" + params.Query
	if params.YearFrom > 0 {
		searchQuery += fmt.Sprintf(" AND submittedDate:[%d01010000 TO *]", params.YearFrom)
	}
	query.Set("search_query", searchQuery)

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > c.config.MaxResults {
		maxResults = c.config.MaxResults
	}
	query.Set("max_results", strconv.Itoa(maxResults))

	// Newest first.
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// entryToPaper converts an arXiv Atom entry to a domain Paper. Entries whose
// ID cannot be parsed are skipped.
func entryToPaper(e *entry) (domain.Paper, bool) {
	arxivID := extractArXivID(e.ID)
	if arxivID == "" {
		return domain.Paper{}, false
	}

	var year int
	if e.Published != "" {
		if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
			year = t.Year()
		}
	}

	authors := make([]domain.Author, 0, len(e.Authors))
	for _, a := range e.Authors {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		authors = append(authors, domain.Author{
			Name:        name,
			Affiliation: strings.TrimSpace(a.Affiliation),
		})
	}

	sourceURL := ""
	for _, link := range e.Links {
		if link.Rel == "alternate" || link.Type == "text/html" {
			sourceURL = link.Href
			break
		}
	}
	if sourceURL == "" {
		sourceURL = e.ID
	}

	return domain.Paper{
		ExternalID: arxivID,
		Title:      normalizeWhitespace(e.Title),
		Authors:    authors,
		Year:       year,
		Abstract:   normalizeWhitespace(e.Summary),
		SourceURL:  sourceURL,
		Venue:      strings.TrimSpace(e.JournalRef),
		Source:     string(papersources.SourceTypeArXiv),
	}, true
}

// extractArXivID extracts the arXiv ID from the full entry URL.
// "http://arxiv.org/abs/2301.12345v1" becomes "2301.12345".
func extractArXivID(entryURL string) string {
	matches := arxivIDRegex.FindStringSubmatch(entryURL)
	if len(matches) < 2 {
		return ""
	}
	return matches[1]
}

// normalizeWhitespace trims and collapses runs of whitespace; arXiv titles
// and abstracts embed newlines and indentation.
func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
