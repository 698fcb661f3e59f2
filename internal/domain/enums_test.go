package domain

import "testing"

func TestSideValid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		side  Side
		valid bool
	}{
		{SideOriginal, true},
		{SideAmendment, true},
		{Side("appendix"), false},
		{Side(""), false},
	}
	for _, tt := range tests {
		if got := tt.side.Valid(); got != tt.valid {
			t.Errorf("Side(%q).Valid() = %v, want %v", tt.side, got, tt.valid)
		}
	}
}

func TestStageSpanNames(t *testing.T) {
	t.Parallel()
	// Trace consumers key dashboards on these names.
	tests := []struct {
		stage Stage
		want  string
	}{
		{StageParseOriginal, "parse_original_contract"},
		{StageParseAmendment, "parse_amendment_contract"},
		{StageContextualize, "contextualize_documents"},
		{StageExtract, "extract_changes"},
		{StageValidate, "validate_summary"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if string(tt.stage) != tt.want {
				t.Errorf("Stage: got %q, want %q", tt.stage, tt.want)
			}
		})
	}
}

func TestParseStage(t *testing.T) {
	t.Parallel()
	if got := ParseStage(SideOriginal); got != StageParseOriginal {
		t.Errorf("ParseStage(original) = %q", got)
	}
	if got := ParseStage(SideAmendment); got != StageParseAmendment {
		t.Errorf("ParseStage(amendment) = %q", got)
	}
}

func TestChangeTypeValid(t *testing.T) {
	t.Parallel()
	for _, c := range []ChangeType{ChangeModified, ChangeAdded, ChangeRemoved} {
		if !c.Valid() {
			t.Errorf("ChangeType(%q).Valid() = false", c)
		}
	}
	if ChangeType("renamed").Valid() {
		t.Error("unexpected valid change type")
	}
}
