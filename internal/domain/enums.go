package domain

// PageStatus records how a single page's text was produced.
type PageStatus string

const (
	PageExtracted PageStatus = "extracted"
	PageFallback  PageStatus = "fallback"
	PageFailed    PageStatus = "failed"
)

// Side identifies which document set a folder belongs to.
type Side string

const (
	SideOriginal  Side = "original"
	SideAmendment Side = "amendment"
)

func (s Side) Valid() bool {
	switch s {
	case SideOriginal, SideAmendment:
		return true
	}
	return false
}

// Stage names a pipeline stage. The values double as trace span names.
type Stage string

const (
	StageParseOriginal  Stage = "parse_original_contract"
	StageParseAmendment Stage = "parse_amendment_contract"
	StageContextualize  Stage = "contextualize_documents"
	StageExtract        Stage = "extract_changes"
	StageValidate       Stage = "validate_summary"
)

// ParseStage returns the parse stage for a document side.
func ParseStage(side Side) Stage {
	if side == SideAmendment {
		return StageParseAmendment
	}
	return StageParseOriginal
}

// ChangeType classifies a section correspondence.
type ChangeType string

const (
	ChangeModified ChangeType = "modified"
	ChangeAdded    ChangeType = "added"
	ChangeRemoved  ChangeType = "removed"
)

func (c ChangeType) Valid() bool {
	switch c {
	case ChangeModified, ChangeAdded, ChangeRemoved:
		return true
	}
	return false
}
