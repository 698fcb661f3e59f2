// Package shadow compares the change summaries of two comparison runs of the
// same contract pair, field by field.
package shadow

// ComparisonResult is the top-level output of a run comparison.
type ComparisonResult struct {
	Fields   []FieldComparison `json:"fields"`
	AllMatch bool              `json:"all_match"`
	Summary  string            `json:"summary"`
}

// FieldComparison records the comparison for a single summary field.
type FieldComparison struct {
	Field     string   `json:"field"`
	A         string   `json:"a"`
	B         string   `json:"b"`
	Match     bool     `json:"match"`
	OnlyInA   []string `json:"only_in_a,omitempty"`
	OnlyInB   []string `json:"only_in_b,omitempty"`
	DiffLines string   `json:"diff_lines,omitempty"`
}
