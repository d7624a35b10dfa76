package safety

import (
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quillview/litsynth/internal/domain"
)

// mask replaces each offending span in sanitized output.
const mask = "[redacted]"

// DefaultMaxMaskFraction is the largest share of the text that may be masked
// before sanitization is considered to have destroyed the content.
const DefaultMaxMaskFraction = 0.30

// Config controls the safety gate.
type Config struct {
	// MaxMaskFraction is the maximum fraction of the original text (by bytes)
	// that sanitization may mask. Above it, sanitization fails and the caller
	// must refuse the run. Zero means DefaultMaxMaskFraction.
	MaxMaskFraction float64
}

// Decision is the outcome of screening one piece of text.
type Decision struct {
	// Safe is true when no detector fired.
	Safe bool
	// Violations holds one event per detector hit, in text order.
	Violations []domain.SafetyEvent
	// Sanitized is true when masking produced usable text. It is always
	// false for safe text (nothing to sanitize) and for input-stage checks,
	// which never sanitize.
	Sanitized bool
	// SanitizedText is the masked text when Sanitized is true.
	SanitizedText string
}

// Checker screens queries and drafts against the content policy. It is
// stateless apart from its logger and safe for concurrent use.
type Checker struct {
	cfg    Config
	logger zerolog.Logger
	input  []detector
	output []detector
}

// NewChecker creates a safety checker. Violations are logged through the
// given logger as they are found.
func NewChecker(cfg Config, logger zerolog.Logger) *Checker {
	if cfg.MaxMaskFraction <= 0 {
		cfg.MaxMaskFraction = DefaultMaxMaskFraction
	}
	return &Checker{
		cfg:    cfg,
		logger: logger,
		input:  inputDetectors(),
		output: outputDetectors(),
	}
}

// CheckInput screens a research query before any agent work starts. Input
// violations are never sanitized; any hit means the run must be refused.
func (c *Checker) CheckInput(query string) Decision {
	findings := c.run(query, c.input)
	return c.decide(domain.StageInput, query, findings, false)
}

// CheckOutput screens a draft before delivery. It runs the input battery
// plus the output-only detectors, then attempts to mask the offending spans.
func (c *Checker) CheckOutput(draft string) Decision {
	findings := c.run(draft, c.input)
	findings = append(findings, c.run(draft, c.output)...)
	return c.decide(domain.StageOutput, draft, findings, true)
}

func (c *Checker) run(text string, battery []detector) []finding {
	var all []finding
	for _, d := range battery {
		all = append(all, d.detect(text)...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].start != all[j].start {
			return all[i].start < all[j].start
		}
		return all[i].end < all[j].end
	})
	return all
}

func (c *Checker) decide(stage domain.Stage, text string, findings []finding, sanitize bool) Decision {
	if len(findings) == 0 {
		return Decision{Safe: true}
	}

	now := time.Now().UTC()
	d := Decision{Violations: make([]domain.SafetyEvent, 0, len(findings))}
	for _, f := range findings {
		ev := domain.SafetyEvent{
			Stage:     stage,
			Category:  f.category,
			Reason:    f.reason,
			Severity:  f.severity,
			Timestamp: now,
		}
		d.Violations = append(d.Violations, ev)
		c.logger.Warn().
			Str("stage", string(stage)).
			Str("category", string(f.category)).
			Str("severity", string(f.severity)).
			Str("reason", f.reason).
			Msg("safety violation detected")
	}

	if !sanitize {
		return d
	}

	masked, fraction, ok := c.sanitize(text, findings)
	if !ok {
		c.logger.Warn().
			Float64("masked_fraction", fraction).
			Float64("max_mask_fraction", c.cfg.MaxMaskFraction).
			Msg("sanitization exceeded mask budget")
		return d
	}
	d.Sanitized = true
	d.SanitizedText = masked
	return d
}

// sanitize masks the offending spans, merging overlaps first. It reports the
// fraction of the original text that was masked and whether that fraction
// stayed within budget.
func (c *Checker) sanitize(text string, findings []finding) (string, float64, bool) {
	spans := mergeSpans(findings)

	maskedBytes := 0
	for _, s := range spans {
		maskedBytes += s[1] - s[0]
	}
	fraction := float64(maskedBytes) / float64(len(text))
	if fraction > c.cfg.MaxMaskFraction {
		return "", fraction, false
	}

	var b strings.Builder
	prev := 0
	for _, s := range spans {
		b.WriteString(text[prev:s[0]])
		b.WriteString(mask)
		prev = s[1]
	}
	b.WriteString(text[prev:])
	return b.String(), fraction, true
}

// mergeSpans collapses overlapping and adjacent finding spans into a sorted,
// disjoint set. Findings must already be sorted by start offset.
func mergeSpans(findings []finding) [][2]int {
	var spans [][2]int
	for _, f := range findings {
		if n := len(spans); n > 0 && f.start <= spans[n-1][1] {
			if f.end > spans[n-1][1] {
				spans[n-1][1] = f.end
			}
			continue
		}
		spans = append(spans, [2]int{f.start, f.end})
	}
	return spans
}
