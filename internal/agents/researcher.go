package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
	"github.com/quillview/litsynth/internal/llm"
	"github.com/quillview/litsynth/internal/papersources"
)

// ResearcherConfig bounds the search fan-out.
type ResearcherConfig struct {
	// MaxPapers caps the total papers carried into analysis. Zero means 10.
	MaxPapers int
	// MaxQueries caps how many of the strategy's queries are executed.
	// Zero means 3.
	MaxQueries int
}

// Researcher executes the search strategy against the registered paper
// sources. It degrades rather than fails: per-source errors are logged and
// the step succeeds with whatever papers were found; finding nothing at all
// surfaces domain.ErrNoPapers, which the orchestrator records as non-fatal.
type Researcher struct {
	registry *papersources.Registry
	quota    *llm.QuotaLimiter
	cfg      ResearcherConfig
	logger   zerolog.Logger
}

// NewResearcher creates the Research step. The quota limiter may be nil.
func NewResearcher(registry *papersources.Registry, quota *llm.QuotaLimiter, cfg ResearcherConfig, logger zerolog.Logger) *Researcher {
	if cfg.MaxPapers <= 0 {
		cfg.MaxPapers = 10
	}
	if cfg.MaxQueries <= 0 {
		cfg.MaxQueries = 3
	}
	return &Researcher{registry: registry, quota: quota, cfg: cfg, logger: logger}
}

// Name returns StepResearch.
func (r *Researcher) Name() string { return StepResearch }

// Invoke searches all enabled sources for each strategy query, deduplicates
// the merged results, and returns up to MaxPapers papers in retrieval order.
func (r *Researcher) Invoke(ctx context.Context, view StateView) (Delta, error) {
	if view.Strategy == nil {
		return Delta{}, domain.NewStepError(domain.StageResearch,
			errors.New("no search strategy in state"), true)
	}

	queries := view.Strategy.Queries
	if len(queries) > r.cfg.MaxQueries {
		queries = queries[:r.cfg.MaxQueries]
	}

	var (
		papers     []domain.Paper
		seen       = make(map[string]struct{})
		sourceErrs []error
	)

	for _, query := range queries {
		if len(papers) >= r.cfg.MaxPapers {
			break
		}
		if err := r.quota.Acquire(ctx); err != nil {
			return Delta{}, fmt.Errorf("acquiring search quota: %w", err)
		}

		results := r.registry.SearchAll(ctx, papersources.SearchParams{
			Query:        query,
			YearFrom:     view.Strategy.YearFrom,
			MaxResults:   r.cfg.MaxPapers,
			MinCitations: view.Strategy.MinCitations,
		})
		for _, res := range results {
			if res.Error != nil {
				r.logger.Warn().Err(res.Error).
					Str("source", string(res.Source)).
					Str("query", query).
					Msg("paper source search failed")
				sourceErrs = append(sourceErrs, fmt.Errorf("%s: %w", res.Source, res.Error))
				continue
			}
			for _, paper := range res.Result.Papers {
				if len(papers) >= r.cfg.MaxPapers {
					break
				}
				key := dedupeKey(paper)
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				papers = append(papers, paper)
			}
		}
	}

	if len(papers) == 0 {
		if len(sourceErrs) > 0 {
			return Delta{}, fmt.Errorf("all paper searches failed: %w", errors.Join(sourceErrs...))
		}
		return Delta{}, domain.ErrNoPapers
	}

	r.logger.Info().Int("papers", len(papers)).Msg("paper search complete")
	return Delta{Papers: papers}, nil
}

// dedupeKey identifies a paper across sources. The normalized title catches
// the same paper returned by different sources; the source ID covers
// untitled records.
func dedupeKey(p domain.Paper) string {
	title := strings.ToLower(strings.Join(strings.Fields(p.Title), " "))
	if title != "" {
		return title
	}
	return p.Source + "/" + p.ExternalID
}
