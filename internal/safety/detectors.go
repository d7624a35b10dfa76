// Package safety implements the content safety gate that screens research
// queries before any agent work starts and screens drafts before delivery.
// Detection is keyword and pattern based so it is deterministic and cheap
// enough to run on every stage transition.
package safety

import (
	"regexp"
	"strings"

	"github.com/quillview/litsynth/internal/domain"
)

// finding is a single detector hit with the span it covers in the original
// text. Spans are byte offsets and may overlap across detectors; the
// sanitizer merges them before masking.
type finding struct {
	category domain.Category
	severity domain.Severity
	reason   string
	start    int
	end      int
}

// detector locates policy violations in a piece of text. Implementations
// must be stateless and safe for concurrent use.
type detector interface {
	detect(text string) []finding
}

// keywordDetector flags case-insensitive substring matches against a fixed
// term list. Substring matching mirrors how the policy lists are curated:
// "discriminat" intentionally covers discriminate/discrimination/discriminatory.
type keywordDetector struct {
	category domain.Category
	severity domain.Severity
	terms    []string
}

func (d keywordDetector) detect(text string) []finding {
	lower := strings.ToLower(text)
	var out []finding
	for _, term := range d.terms {
		for from := 0; ; {
			idx := strings.Index(lower[from:], term)
			if idx < 0 {
				break
			}
			start := from + idx
			out = append(out, finding{
				category: d.category,
				severity: d.severity,
				reason:   "matched prohibited term " + quoteTerm(term),
				start:    start,
				end:      start + len(term),
			})
			from = start + len(term)
		}
	}
	return out
}

// patternDetector flags regexp matches. Used for structural violations such
// as citations of sources that do not exist.
type patternDetector struct {
	category domain.Category
	severity domain.Severity
	reason   string
	pattern  *regexp.Regexp
}

func (d patternDetector) detect(text string) []finding {
	var out []finding
	for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
		out = append(out, finding{
			category: d.category,
			severity: d.severity,
			reason:   d.reason,
			start:    loc[0],
			end:      loc[1],
		})
	}
	return out
}

func quoteTerm(term string) string {
	return `"` + term + `"`
}

// fabricatedCitationPattern matches in-text citations attributed to an
// undated "et al." source, the signature of a citation invented by the
// writer rather than drawn from the retrieved papers.
var fabricatedCitationPattern = regexp.MustCompile(`\([^)]*et al\.,\s*n\.d\.\s*\)`)

// inputDetectors screen the user's query and run on every stage.
func inputDetectors() []detector {
	return []detector{
		keywordDetector{
			category: domain.CategoryHarmfulContent,
			severity: domain.SeverityHigh,
			terms: []string{
				"weapon", "bomb", "terrorist", "illegal", "drug synthesis",
				"hack", "exploit", "malware", "virus creation",
			},
		},
		keywordDetector{
			category: domain.CategoryInappropriateContent,
			severity: domain.SeverityMedium,
			terms:    []string{"racist", "sexist", "discriminat", "hate"},
		},
		keywordDetector{
			category: domain.CategoryAcademicDishonesty,
			severity: domain.SeverityHigh,
			terms: []string{
				"write my paper", "write my research paper", "write my essay",
				"plagiarize", "cheat", "fake data",
			},
		},
		keywordDetector{
			category: domain.CategoryMisinformation,
			severity: domain.SeverityMedium,
			terms:    []string{"proven hoax", "suppressed cure", "they don't want you to know"},
		},
		keywordDetector{
			category: domain.CategoryToxicLanguage,
			severity: domain.SeverityLow,
			terms: []string{
				"idiot", "stupid", "dumb", "kill", "attack",
				"scam", "fraud",
			},
		},
	}
}

// outputDetectors run in addition to the input battery when screening drafts.
func outputDetectors() []detector {
	return []detector{
		keywordDetector{
			category: domain.CategoryBiasedLanguage,
			severity: domain.SeverityMedium,
			terms:    []string{"obviously inferior", "clearly wrong", "idiotic"},
		},
		patternDetector{
			category: domain.CategoryFabricatedCitation,
			severity: domain.SeverityMedium,
			reason:   "in-text citation with no date, likely fabricated",
			pattern:  fabricatedCitationPattern,
		},
	}
}
