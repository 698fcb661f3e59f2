// Package report renders a change summary and its run metadata as Markdown
// or HTML.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/claw-gang/amendment-diff/internal/domain"
	"github.com/claw-gang/amendment-diff/internal/pipeline"
)

// Format selects a rendering.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ParseFormat maps a query or flag value to a Format. Empty means JSON.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("report: unknown format %q", raw)
	}
}

// ContentType is the HTTP content type of a rendering.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatHTML:
		return "text/html; charset=utf-8"
	default:
		return "application/json"
	}
}

// Report is the renderable view of one finished comparison.
type Report struct {
	ContractID string                       `json:"contract_id"`
	Summary    domain.ContractChangeSummary `json:"summary"`
	Original   []domain.PageOutcome         `json:"original_pages,omitempty"`
	Amendment  []domain.PageOutcome         `json:"amendment_pages,omitempty"`
	Duration   time.Duration                `json:"duration_ns,omitempty"`
}

// FromResult builds a Report from an in-process run.
func FromResult(res pipeline.Result) Report {
	return Report{
		ContractID: res.Run.ContractID,
		Summary:    res.Summary,
		Original:   res.Original.Pages,
		Amendment:  res.Amendment.Pages,
		Duration:   res.Duration,
	}
}

// Markdown renders r as a Markdown document.
func Markdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Contract change summary: %s\n\n", r.ContractID)

	if r.Summary.IsNoMaterialChange() {
		b.WriteString("_No material change._\n\n")
	} else {
		list(&b, "Topics touched", r.Summary.TopicsTouched)
		list(&b, "Sections changed", r.Summary.SectionsChanged)

		b.WriteString("## Summary of the change\n\n")
		for _, block := range domain.SummaryBlocks(r.Summary.SummaryOfTheChange) {
			fmt.Fprintf(&b, "### Section %s\n\n", block.Section)
			for _, c := range block.Changes {
				fmt.Fprintf(&b, "- %s\n", c)
			}
			b.WriteString("\n")
		}
	}

	pages := len(r.Original) + len(r.Amendment)
	if pages == 0 {
		return b.String()
	}
	b.WriteString("## Pages\n\n")
	b.WriteString("| Side | Page | File | Status | Model |\n")
	b.WriteString("|---|---|---|---|---|\n")
	row := func(side domain.Side, p domain.PageOutcome) {
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s |\n",
			side, p.Ordinal, cell(p.Name), p.Status, cell(p.Model))
	}
	for _, p := range r.Original {
		row(domain.SideOriginal, p)
	}
	for _, p := range r.Amendment {
		row(domain.SideAmendment, p)
	}
	b.WriteString("\n")

	failed, fallback := 0, 0
	for _, p := range append(append([]domain.PageOutcome(nil), r.Original...), r.Amendment...) {
		switch p.Status {
		case domain.PageFailed:
			failed++
		case domain.PageFallback:
			fallback++
		}
	}
	fmt.Fprintf(&b, "%d pages, %d failed, %d from fallback models", pages, failed, fallback)
	if r.Duration > 0 {
		fmt.Fprintf(&b, ", %s", r.Duration.Round(time.Millisecond))
	}
	b.WriteString(".\n")
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders r as an HTML fragment. Raw HTML in model output is escaped.
func HTML(r Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &buf); err != nil {
		return nil, fmt.Errorf("report: render html: %w", err)
	}
	return buf.Bytes(), nil
}

func list(b *strings.Builder, title string, items []string) {
	fmt.Fprintf(b, "## %s\n\n", title)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func cell(s string) string {
	if s == "" {
		return "-"
	}
	return strings.ReplaceAll(s, "|", `\|`)
}
