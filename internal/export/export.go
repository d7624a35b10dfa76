// Package export serializes terminal run states into the snapshot document
// persisted to storage, published on the event bus, and written by the CLI.
// Only terminal states may be exported; in-flight state never leaves the
// orchestrator.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/quillview/litsynth/internal/batch"
	"github.com/quillview/litsynth/internal/domain"
)

// SchemaVersion identifies the snapshot document layout. Bump on any
// breaking change to the document shape.
const SchemaVersion = 1

// Document is the exported form of one terminal run.
type Document struct {
	SchemaVersion int                   `json:"schema_version"`
	Run           *domain.WorkflowState `json:"run"`
	DurationMS    int64                 `json:"duration_ms"`
	TerminalCause *domain.StageError    `json:"terminal_cause,omitempty"`
	ExportedAt    time.Time             `json:"exported_at"`
}

// BatchDocument is the exported form of an evaluate-mode batch.
type BatchDocument struct {
	SchemaVersion int          `json:"schema_version"`
	Report        batch.Report `json:"report"`
	Runs          []Document   `json:"runs"`
	ExportedAt    time.Time    `json:"exported_at"`
}

// NewDocument builds the snapshot document for a terminal state. Non-terminal
// states are a caller bug and are rejected.
func NewDocument(state *domain.WorkflowState) (Document, error) {
	if state == nil {
		return Document{}, fmt.Errorf("exporting nil state")
	}
	if !state.Status.IsTerminal() {
		return Document{}, fmt.Errorf("exporting non-terminal run %s (status %s)", state.ID, state.Status)
	}
	doc := Document{
		SchemaVersion: SchemaVersion,
		Run:           state,
		DurationMS:    state.Duration().Milliseconds(),
		ExportedAt:    time.Now().UTC(),
	}
	if state.Status == domain.StatusFailed {
		doc.TerminalCause = state.TerminalCause()
	}
	return doc, nil
}

// Marshal renders the snapshot document as indented JSON.
func Marshal(state *domain.WorkflowState) ([]byte, error) {
	doc, err := NewDocument(state)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(doc, "", "  ")
}

// NewBatchDocument builds the batch report document. Runs that never started
// (nil slots from a canceled batch) are skipped.
func NewBatchDocument(report batch.Report) (BatchDocument, error) {
	doc := BatchDocument{
		SchemaVersion: SchemaVersion,
		Report:        report,
		ExportedAt:    time.Now().UTC(),
	}
	for _, state := range report.States {
		if state == nil {
			continue
		}
		run, err := NewDocument(state)
		if err != nil {
			return BatchDocument{}, err
		}
		doc.Runs = append(doc.Runs, run)
	}
	return doc, nil
}

// WriteBatch renders the batch document as indented JSON to w.
func WriteBatch(w io.Writer, report batch.Report) error {
	doc, err := NewBatchDocument(report)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// RenderText writes the human-readable run report used by the CLI's test
// mode.
func RenderText(w io.Writer, state *domain.WorkflowState) error {
	if !state.Status.IsTerminal() {
		return fmt.Errorf("rendering non-terminal run %s (status %s)", state.ID, state.Status)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s\n", state.ID)
	fmt.Fprintf(&b, "Query:    %s\n", state.Query)
	fmt.Fprintf(&b, "Status:   %s\n", state.Status)
	fmt.Fprintf(&b, "Duration: %s\n", state.Duration().Round(time.Millisecond))

	switch state.Status {
	case domain.StatusRefused:
		b.WriteString("\nRefused for:\n")
		for _, ev := range state.SafetyEvents {
			fmt.Fprintf(&b, "  [%s/%s] %s\n", ev.Stage, ev.Category, ev.Reason)
		}
	case domain.StatusFailed:
		if cause := state.TerminalCause(); cause != nil {
			fmt.Fprintf(&b, "\nFailed at %s: %s\n", cause.Stage, cause.Message)
		}
	case domain.StatusCompleted:
		fmt.Fprintf(&b, "Papers:   %d\n", len(state.Papers))
		fmt.Fprintf(&b, "Revisions: %d\n", state.RevisionCount)
		if state.QualityWarning != "" {
			fmt.Fprintf(&b, "Warning:  %s\n", state.QualityWarning)
		}
		if state.JudgeResult != nil {
			fmt.Fprintf(&b, "\nJudge score: %.2f/10\n", state.JudgeResult.Overall)
			for _, name := range sortedCriteria(state.JudgeResult.Criteria) {
				fmt.Fprintf(&b, "  %-22s %.1f\n", name, state.JudgeResult.Criteria[name])
			}
		}
		if state.Draft != nil {
			b.WriteString("\n--- Review ---\n")
			b.WriteString(state.Draft.Text)
			b.WriteString("\n")
			if len(state.Draft.Bibliography) > 0 {
				b.WriteString("\nReferences:\n")
				for _, ref := range state.Draft.Bibliography {
					fmt.Fprintf(&b, "  %s\n", ref)
				}
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func sortedCriteria(criteria map[string]float64) []string {
	names := make([]string, 0, len(criteria))
	for name := range criteria {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
