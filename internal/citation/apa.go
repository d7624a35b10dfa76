// Package citation formats paper metadata as APA-style references.
package citation

import (
	"fmt"
	"strings"

	"github.com/quillview/litsynth/internal/domain"
)

// FormatCitations renders one APA reference per paper, in input order.
// Missing fields degrade gracefully: a missing year renders as "n.d." and a
// missing venue is omitted.
func FormatCitations(papers []domain.Paper) []string {
	out := make([]string, 0, len(papers))
	for _, p := range papers {
		out = append(out, Format(p))
	}
	return out
}

// Format renders a single paper as an APA reference line.
func Format(p domain.Paper) string {
	var b strings.Builder

	authors := p.AuthorNames(3)
	if authors == "" {
		authors = "Unknown"
	}
	b.WriteString(authors)

	if p.Year > 0 {
		fmt.Fprintf(&b, " (%d).", p.Year)
	} else {
		b.WriteString(" (n.d.).")
	}

	title := strings.TrimSpace(p.Title)
	if title != "" {
		b.WriteString(" " + strings.TrimSuffix(title, ".") + ".")
	}
	if venue := strings.TrimSpace(p.Venue); venue != "" {
		b.WriteString(" " + venue + ".")
	}
	if p.SourceURL != "" {
		b.WriteString(" " + p.SourceURL)
	}
	return b.String()
}

// InText renders the in-text citation marker for a paper, e.g.
// "(Vaswani et al., 2017)".
func InText(p domain.Paper) string {
	name := "Unknown"
	if len(p.Authors) > 0 {
		name = surname(p.Authors[0].Name)
		if len(p.Authors) > 1 {
			name += " et al."
		}
	}
	year := "n.d."
	if p.Year > 0 {
		year = fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("(%s, %s)", name, year)
}

// surname extracts the family name from "Given Family" or "Family, Given".
func surname(full string) string {
	full = strings.TrimSpace(full)
	if i := strings.Index(full, ","); i > 0 {
		return strings.TrimSpace(full[:i])
	}
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "Unknown"
	}
	return parts[len(parts)-1]
}
