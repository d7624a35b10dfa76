package papersources

import (
	"context"
	"sync"
	"time"
)

// Metrics receives per-source search outcomes. Implementations must be safe
// for concurrent use; SearchAll records from one goroutine per source.
type Metrics interface {
	RecordSearch(source string, papers int, duration time.Duration)
	RecordSearchFailed(source string, duration time.Duration)
}

// SourceResult holds the result of a search from one source. Exactly one of
// Result and Error is set.
type SourceResult struct {
	Source SourceType
	Result *SearchResult
	Error  error
}

// Registry manages paper sources and coordinates concurrent searches across
// them. Registration and lookup are thread-safe.
type Registry struct {
	mu      sync.RWMutex
	sources map[SourceType]PaperSource
	metrics Metrics
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[SourceType]PaperSource)}
}

// SetMetrics installs a metrics recorder for search outcomes. A nil recorder
// disables recording. Call before the first SearchAll.
func (r *Registry) SetMetrics(m Metrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metrics = m
}

// Register adds a source to the registry, replacing any source already
// registered under the same type.
func (r *Registry) Register(source PaperSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[source.SourceType()] = source
}

// Get returns a source by type, or nil if not found.
func (r *Registry) Get(sourceType SourceType) PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[sourceType]
}

// EnabledSources returns a snapshot of the sources whose IsEnabled() is true.
func (r *Registry) EnabledSources() []PaperSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]PaperSource, 0, len(r.sources))
	for _, source := range r.sources {
		if source.IsEnabled() {
			sources = append(sources, source)
		}
	}
	return sources
}

// SearchAll searches all enabled sources concurrently and returns one
// SourceResult per source, errors included; the caller decides how to handle
// partial failure. Canceling the context interrupts in-flight searches.
func (r *Registry) SearchAll(ctx context.Context, params SearchParams) []SourceResult {
	sources := r.EnabledSources()
	if len(sources) == 0 {
		return nil
	}

	r.mu.RLock()
	metrics := r.metrics
	r.mu.RUnlock()

	resultChan := make(chan SourceResult, len(sources))
	var wg sync.WaitGroup

	for _, source := range sources {
		wg.Add(1)
		go func(s PaperSource) {
			defer wg.Done()
			start := time.Now()
			result, err := s.Search(ctx, params)
			if metrics != nil {
				if err != nil {
					metrics.RecordSearchFailed(s.Name(), time.Since(start))
				} else {
					metrics.RecordSearch(s.Name(), len(result.Papers), time.Since(start))
				}
			}
			resultChan <- SourceResult{Source: s.SourceType(), Result: result, Error: err}
		}(source)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]SourceResult, 0, len(sources))
	for result := range resultChan {
		results = append(results, result)
	}
	return results
}
