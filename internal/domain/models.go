package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// NoMaterialChange is the summary sentinel for an amendment that changes nothing.
const NoMaterialChange = "No material change"

// ImageDocument is one page image in a folder. Ordinal is the 1-based
// position in filename sort order.
type ImageDocument struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Ordinal  int    `json:"ordinal"`
	MIMEType string `json:"mime_type"`
}

// PageOutcome records how one page's text was obtained.
type PageOutcome struct {
	Ordinal  int        `json:"ordinal"`
	Name     string     `json:"name"`
	Status   PageStatus `json:"status"`
	Model    string     `json:"model,omitempty"`
	Attempts int        `json:"attempts"`
	Error    string     `json:"error,omitempty"`
}

// ExtractedText is the concatenated text of one side of a comparison.
// Segments[i] is the body of page i+1; failed pages hold a placeholder.
type ExtractedText struct {
	Side      Side          `json:"side"`
	Folder    string        `json:"folder"`
	Text      string        `json:"text"`
	PageCount int           `json:"page_count"`
	Segments  []string      `json:"segments"`
	Pages     []PageOutcome `json:"pages"`
}

// FailedPages returns the ordinals of pages whose extraction failed.
func (e ExtractedText) FailedPages() []int {
	var out []int
	for _, p := range e.Pages {
		if p.Status == PageFailed {
			out = append(out, p.Ordinal)
		}
	}
	return out
}

// FallbackPages returns the ordinals of pages produced by a fallback model.
func (e ExtractedText) FallbackPages() []int {
	var out []int
	for _, p := range e.Pages {
		if p.Status == PageFallback {
			out = append(out, p.Ordinal)
		}
	}
	return out
}

// PageHeader is the delimiter written before every page segment.
func PageHeader(ordinal, total int, name string) string {
	return fmt.Sprintf("\n\n===== PAGE %d/%d: %s =====\n\n", ordinal, total, name)
}

// FailedPagePlaceholder is the body substituted for a page that could not be read.
func FailedPagePlaceholder(ordinal int, cause string) string {
	return fmt.Sprintf("[PAGE %d EXTRACTION FAILED: %s]", ordinal, cause)
}

// NewExtractedText assembles page segments in ordinal order. segments and
// pages must both be indexed by ordinal-1.
func NewExtractedText(side Side, folder string, docs []ImageDocument, segments []string, pages []PageOutcome) ExtractedText {
	var b strings.Builder
	for i, doc := range docs {
		b.WriteString(PageHeader(doc.Ordinal, len(docs), doc.Name))
		b.WriteString(segments[i])
	}
	return ExtractedText{
		Side:      side,
		Folder:    folder,
		Text:      strings.TrimLeft(b.String(), "\n"),
		PageCount: len(docs),
		Segments:  append([]string(nil), segments...),
		Pages:     append([]PageOutcome(nil), pages...),
	}
}

// SectionCorrespondence links a section of the original to its counterpart in
// the amendment. Offsets are byte positions of the identifiers in the
// respective input texts, -1 when the side is absent.
type SectionCorrespondence struct {
	OriginalSection  string     `json:"original_section"`
	AmendmentSection string     `json:"amendment_section"`
	ChangeType       ChangeType `json:"change_type"`
	OriginalOffset   int        `json:"original_offset"`
	AmendmentOffset  int        `json:"amendment_offset"`
}

// ContextualizedContract is the aligned, filtered view handed to extraction.
type ContextualizedContract struct {
	OriginalContractText   string                  `json:"original_contract_text"`
	AmendmentText          string                  `json:"amendment_text"`
	SectionCorrespondences []SectionCorrespondence `json:"section_correspondences,omitempty"`
}

// ContractChangeSummary is the final, validated artifact of a run.
type ContractChangeSummary struct {
	TopicsTouched      []string `json:"topics_touched"`
	SectionsChanged    []string `json:"sections_changed"`
	SummaryOfTheChange string   `json:"summary_of_the_change"`
}

// IsNoMaterialChange reports whether the summary carries the sentinel.
func (s ContractChangeSummary) IsNoMaterialChange() bool {
	return strings.EqualFold(strings.TrimSpace(s.SummaryOfTheChange), NoMaterialChange)
}

// PipelineRun ties a contract id to one invocation of the pipeline.
type PipelineRun struct {
	RunID           string    `json:"run_id"`
	ContractID      string    `json:"contract_id"`
	OriginalFolder  string    `json:"original_folder"`
	AmendmentFolder string    `json:"amendment_folder"`
	StartedAt       time.Time `json:"started_at"`
}

// NewPipelineRun creates a PipelineRun with a generated run id.
func NewPipelineRun(contractID, originalFolder, amendmentFolder string) PipelineRun {
	return PipelineRun{
		RunID:           uuid.NewString(),
		ContractID:      contractID,
		OriginalFolder:  originalFolder,
		AmendmentFolder: amendmentFolder,
		StartedAt:       nowUTC(),
	}
}
