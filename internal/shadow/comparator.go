package shadow

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/claw-gang/amendment-diff/internal/domain"
)

// envelope accepts either a bare summary or a document carrying one under
// "summary", such as a saved run result.
type envelope struct {
	domain.ContractChangeSummary
	Summary *domain.ContractChangeSummary `json:"summary"`
}

// Decode reads a summary from a run output document.
func Decode(data []byte) (domain.ContractChangeSummary, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return domain.ContractChangeSummary{}, err
	}
	if env.Summary != nil {
		return *env.Summary, nil
	}
	return env.ContractChangeSummary, nil
}

// Compare decodes two run outputs and compares their summaries.
func Compare(aJSON, bJSON []byte) (*ComparisonResult, error) {
	a, err := Decode(aJSON)
	if err != nil {
		return nil, fmt.Errorf("parse run a: %w", err)
	}
	b, err := Decode(bJSON)
	if err != nil {
		return nil, fmt.Errorf("parse run b: %w", err)
	}
	return CompareSummaries(a, b), nil
}

// CompareSummaries compares two summaries. Topics and sections are compared
// as case-insensitive sets; the summary text line by line after trimming.
func CompareSummaries(a, b domain.ContractChangeSummary) *ComparisonResult {
	fields := []FieldComparison{
		compareSet("topics_touched", a.TopicsTouched, b.TopicsTouched),
		compareSet("sections_changed", a.SectionsChanged, b.SectionsChanged),
		compareText("summary_of_the_change", a.SummaryOfTheChange, b.SummaryOfTheChange),
	}

	var divergent []string
	for _, f := range fields {
		if !f.Match {
			divergent = append(divergent, f.Field)
		}
	}
	summary := "all fields match"
	if len(divergent) > 0 {
		summary = fmt.Sprintf("divergence in: %s", strings.Join(divergent, ", "))
	}
	return &ComparisonResult{
		Fields:   fields,
		AllMatch: len(divergent) == 0,
		Summary:  summary,
	}
}

func compareSet(field string, a, b []string) FieldComparison {
	fc := FieldComparison{
		Field:   field,
		A:       strings.Join(a, "; "),
		B:       strings.Join(b, "; "),
		OnlyInA: missing(a, b),
		OnlyInB: missing(b, a),
	}
	fc.Match = len(fc.OnlyInA) == 0 && len(fc.OnlyInB) == 0
	return fc
}

// missing returns the items of from that are absent in in.
func missing(from, in []string) []string {
	have := make(map[string]bool, len(in))
	for _, s := range in {
		have[normalize(s)] = true
	}
	var out []string
	for _, s := range from {
		if !have[normalize(s)] {
			out = append(out, s)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func compareText(field, a, b string) FieldComparison {
	fc := FieldComparison{Field: field, A: a, B: b}
	la, lb := lines(a), lines(b)
	fc.Match = strings.Join(la, "\n") == strings.Join(lb, "\n")
	if !fc.Match {
		fc.DiffLines = simpleDiff(la, lb)
	}
	return fc
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// simpleDiff returns a basic line-by-line diff indicator.
func simpleDiff(aLines, bLines []string) string {
	var diffs []string
	for i := range max(len(aLines), len(bLines)) {
		aLine := ""
		if i < len(aLines) {
			aLine = aLines[i]
		}
		bLine := ""
		if i < len(bLines) {
			bLine = bLines[i]
		}
		if aLine != bLine {
			diffs = append(diffs, fmt.Sprintf("line %d:\n  a: %s\n  b: %s", i+1, aLine, bLine))
		}
	}
	return strings.Join(diffs, "\n")
}
