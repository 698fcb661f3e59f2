package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	sectionHeaderRe = regexp.MustCompile(`^Section\s+([^:]*\S)\s*:\s*(.*)$`)
	bulletRe        = regexp.MustCompile(`^-\s*\S`)
)

// rawSummary distinguishes absent fields from empty ones.
type rawSummary struct {
	TopicsTouched      *[]string `json:"topics_touched"`
	SectionsChanged    *[]string `json:"sections_changed"`
	SummaryOfTheChange *string   `json:"summary_of_the_change"`
}

// DecodeContractChangeSummary strictly decodes and validates a candidate
// summary. It never returns a partially filled value alongside an error.
func DecodeContractChangeSummary(data []byte) (ContractChangeSummary, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw rawSummary
	if err := dec.Decode(&raw); err != nil {
		return ContractChangeSummary{}, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if dec.More() {
		return ContractChangeSummary{}, &ValidationError{Reason: "trailing data after JSON object"}
	}
	switch {
	case raw.TopicsTouched == nil:
		return ContractChangeSummary{}, invalid("topics_touched", "is required")
	case raw.SectionsChanged == nil:
		return ContractChangeSummary{}, invalid("sections_changed", "is required")
	case raw.SummaryOfTheChange == nil:
		return ContractChangeSummary{}, invalid("summary_of_the_change", "is required")
	}
	s := ContractChangeSummary{
		TopicsTouched:      *raw.TopicsTouched,
		SectionsChanged:    *raw.SectionsChanged,
		SummaryOfTheChange: *raw.SummaryOfTheChange,
	}
	if err := ValidateContractChangeSummary(s); err != nil {
		return ContractChangeSummary{}, err
	}
	return s, nil
}

// ValidateContractChangeSummary checks a summary against the output contract.
func ValidateContractChangeSummary(s ContractChangeSummary) error {
	if s.TopicsTouched == nil {
		return invalid("topics_touched", "is required")
	}
	if s.SectionsChanged == nil {
		return invalid("sections_changed", "is required")
	}
	if err := validateLabels("topics_touched", s.TopicsTouched); err != nil {
		return err
	}
	if err := validateLabels("sections_changed", s.SectionsChanged); err != nil {
		return err
	}

	if s.IsNoMaterialChange() {
		if len(s.TopicsTouched) > 0 || len(s.SectionsChanged) > 0 {
			return invalid("summary_of_the_change", "%q sentinel requires empty topics and sections", NoMaterialChange)
		}
		return nil
	}
	if len(s.TopicsTouched) == 0 {
		return invalid("topics_touched", "must not be empty")
	}
	if len(s.SectionsChanged) == 0 {
		return invalid("sections_changed", "must not be empty")
	}
	return ValidateSummaryText(s.SummaryOfTheChange)
}

func validateLabels(field string, labels []string) error {
	seen := make(map[string]bool, len(labels))
	for i, l := range labels {
		t := strings.TrimSpace(l)
		if t == "" {
			return invalid(field, "item %d is empty", i)
		}
		if seen[strings.ToLower(t)] {
			return invalid(field, "item %d duplicates %q", i, t)
		}
		seen[strings.ToLower(t)] = true
	}
	return nil
}

// ValidateSummaryText checks the per-section bullet format:
//
//	Section X: -change_1
//	-change_2
//
// Every block starts with a Section header and carries at least one bullet.
func ValidateSummaryText(text string) error {
	if strings.TrimSpace(text) == "" {
		return invalid("summary_of_the_change", "must not be empty")
	}
	blocks := 0
	bullets := 0
	for n, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			if blocks > 0 && bullets == 0 {
				return invalid("summary_of_the_change", "line %d: previous section has no bullet", n+1)
			}
			blocks++
			bullets = 0
			rest := strings.TrimSpace(m[2])
			if rest == "" {
				continue
			}
			if !bulletRe.MatchString(rest) {
				return invalid("summary_of_the_change", "line %d: header text must start with '-'", n+1)
			}
			bullets++
			continue
		}
		if blocks == 0 {
			return invalid("summary_of_the_change", "line %d: must start with \"Section <id>:\"", n+1)
		}
		if !bulletRe.MatchString(line) {
			return invalid("summary_of_the_change", "line %d: expected a '-' bullet", n+1)
		}
		bullets++
	}
	if bullets == 0 {
		return invalid("summary_of_the_change", "last section has no bullet")
	}
	return nil
}

// SummaryBlock is one "Section <id>:" block of a summary with its bullets,
// leading dashes removed.
type SummaryBlock struct {
	Section string
	Changes []string
}

// SummaryBlocks splits a summary into its section blocks. Lines before the
// first header are ignored; the text is not validated.
func SummaryBlocks(text string) []SummaryBlock {
	var out []SummaryBlock
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if m := sectionHeaderRe.FindStringSubmatch(line); m != nil {
			out = append(out, SummaryBlock{Section: m[1]})
			line = strings.TrimSpace(m[2])
		}
		if len(out) == 0 || !strings.HasPrefix(line, "-") {
			continue
		}
		if change := strings.TrimSpace(strings.TrimPrefix(line, "-")); change != "" {
			out[len(out)-1].Changes = append(out[len(out)-1].Changes, change)
		}
	}
	return out
}

// SummarySections returns the section identifiers named by the summary's
// headers, in order of appearance.
func SummarySections(text string) []string {
	var out []string
	for _, b := range SummaryBlocks(text) {
		out = append(out, b.Section)
	}
	return out
}

type rawCorrespondence struct {
	OriginalSection  string     `json:"original_section"`
	AmendmentSection string     `json:"amendment_section"`
	ChangeType       ChangeType `json:"change_type"`
}

type rawContextualized struct {
	OriginalContractText   *string             `json:"original_contract_text"`
	AmendmentText          *string             `json:"amendment_text"`
	SectionCorrespondences []rawCorrespondence `json:"section_correspondences"`
}

// DecodeContextualizedContract strictly decodes a contextualization result
// and checks that every referenced section exists in original or amendment.
func DecodeContextualizedContract(data []byte, original, amendment string) (ContextualizedContract, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw rawContextualized
	if err := dec.Decode(&raw); err != nil {
		return ContextualizedContract{}, &ValidationError{Reason: "malformed JSON: " + err.Error()}
	}
	if dec.More() {
		return ContextualizedContract{}, &ValidationError{Reason: "trailing data after JSON object"}
	}
	switch {
	case raw.OriginalContractText == nil:
		return ContextualizedContract{}, invalid("original_contract_text", "is required")
	case raw.AmendmentText == nil:
		return ContextualizedContract{}, invalid("amendment_text", "is required")
	}
	c := ContextualizedContract{
		OriginalContractText: *raw.OriginalContractText,
		AmendmentText:        *raw.AmendmentText,
	}
	for _, rc := range raw.SectionCorrespondences {
		c.SectionCorrespondences = append(c.SectionCorrespondences, SectionCorrespondence{
			OriginalSection:  rc.OriginalSection,
			AmendmentSection: rc.AmendmentSection,
			ChangeType:       rc.ChangeType,
		})
	}
	return ValidateContextualizedContract(c, original, amendment)
}

// ValidateContextualizedContract checks a contextualization result against the
// texts it was produced from and returns a copy with offsets resolved. A
// section identifier that cannot be located in its input text is rejected.
func ValidateContextualizedContract(c ContextualizedContract, original, amendment string) (ContextualizedContract, error) {
	if strings.TrimSpace(c.OriginalContractText) == "" {
		return ContextualizedContract{}, invalid("original_contract_text", "must not be empty")
	}
	if strings.TrimSpace(c.AmendmentText) == "" {
		return ContextualizedContract{}, invalid("amendment_text", "must not be empty")
	}
	out := ContextualizedContract{
		OriginalContractText:   c.OriginalContractText,
		AmendmentText:          c.AmendmentText,
		SectionCorrespondences: make([]SectionCorrespondence, 0, len(c.SectionCorrespondences)),
	}
	for i, sc := range c.SectionCorrespondences {
		field := fmt.Sprintf("section_correspondences[%d]", i)
		if !sc.ChangeType.Valid() {
			return ContextualizedContract{}, invalid(field, "invalid change_type %q", sc.ChangeType)
		}
		sc.OriginalOffset, sc.AmendmentOffset = -1, -1
		if sc.ChangeType != ChangeAdded {
			off, err := locate(field+".original_section", sc.OriginalSection, original)
			if err != nil {
				return ContextualizedContract{}, err
			}
			sc.OriginalOffset = off
		}
		if sc.ChangeType != ChangeRemoved {
			off, err := locate(field+".amendment_section", sc.AmendmentSection, amendment)
			if err != nil {
				return ContextualizedContract{}, err
			}
			sc.AmendmentOffset = off
		}
		out.SectionCorrespondences = append(out.SectionCorrespondences, sc)
	}
	return out, nil
}

// locate finds id in text ignoring case and whitespace runs.
func locate(field, id, text string) (int, error) {
	words := strings.Fields(id)
	if len(words) == 0 {
		return -1, invalid(field, "must not be empty")
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	re, err := regexp.Compile(`(?i)` + strings.Join(words, `\s+`))
	if err != nil {
		return -1, invalid(field, "unusable identifier %q", id)
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return -1, invalid(field, "%q not found in input text", id)
	}
	return loc[0], nil
}
