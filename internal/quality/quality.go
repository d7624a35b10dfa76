// Package quality implements the deterministic quality gate that decides
// whether a draft review is good enough to deliver or must go back through
// another Analyze/Write revision pass.
package quality

import (
	"fmt"
	"regexp"

	"github.com/quillview/litsynth/internal/domain"
)

// DefaultMinDraftLength is the minimum draft length in bytes. Shorter drafts
// cannot plausibly survey a literature and are sent back for revision.
const DefaultMinDraftLength = 500

// Citation markers accepted by the gate: an APA-style in-text citation with
// a year, e.g. "(Vaswani et al., 2017)", or a numeric marker like "[3]".
var (
	apaCitationPattern     = regexp.MustCompile(`\([^)]*\d{4}[a-z]?\)`)
	numericCitationPattern = regexp.MustCompile(`\[\d+\]`)
)

// Config controls the quality gate thresholds.
type Config struct {
	// MinDraftLength is the minimum acceptable draft length in bytes.
	// Zero means DefaultMinDraftLength.
	MinDraftLength int
}

// Gate evaluates drafts. It is pure and safe for concurrent use.
type Gate struct {
	minLength int
}

// NewGate creates a quality gate.
func NewGate(cfg Config) *Gate {
	if cfg.MinDraftLength <= 0 {
		cfg.MinDraftLength = DefaultMinDraftLength
	}
	return &Gate{minLength: cfg.MinDraftLength}
}

// Evaluate returns whether the draft passes the gate. When it does not, the
// reason describes what to fix and is fed back to the Analyze step as
// revision guidance. Evaluate is deterministic: the same draft always yields
// the same verdict.
func (g *Gate) Evaluate(draft domain.Draft) (bool, string) {
	if len(draft.Text) < g.minLength {
		return false, fmt.Sprintf(
			"draft is %d characters, below the minimum of %d; expand the discussion of the surveyed papers",
			len(draft.Text), g.minLength)
	}
	if CitationCount(draft) == 0 {
		return false, "draft cites no sources; every claim drawn from a paper needs an in-text citation"
	}
	return true, ""
}

// CitationCount counts citation markers in the draft, preferring in-text
// markers and falling back to the bibliography when the body uses none.
func CitationCount(draft domain.Draft) int {
	n := len(apaCitationPattern.FindAllString(draft.Text, -1))
	n += len(numericCitationPattern.FindAllString(draft.Text, -1))
	if n == 0 {
		return draft.CitationCount()
	}
	return n
}
