package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// Model ids used across tests.
const (
	VisionModel = "openai/gpt-4o"
	TextModel   = "openai/gpt-4.1"
)

// Schema names requested by the agents.
const (
	ContextSchema = "contextualized_contract"
	SummarySchema = "contract_change_summary"
)

// Liability scenario: a two page original with an unlimited liability clause
// and a one page amendment capping it.
const (
	LiabilityOriginalPage1 = "MASTER SERVICES AGREEMENT\n" +
		"Section 1. Definitions\n\"Services\" means the services described in each Order.\n" +
		"Section 2. Fees\nCustomer shall pay the fees stated in each Order within 30 days."
	LiabilityOriginalPage2 = "Section 7. Limitation of Liability\n" +
		"Each party shall be liable for all damages arising out of this Agreement.\n" +
		"Section 8. Governing Law\nThis Agreement is governed by the laws of Delaware."
	LiabilityAmendmentPage1 = "AMENDMENT NO. 1\n" +
		"Section 7. Limitation of Liability is deleted and replaced with:\n" +
		"Section 7. Limitation of Liability\n" +
		"Each party's aggregate liability shall not exceed the fees paid in the twelve (12) months preceding the claim, " +
		"except for breaches of confidentiality and indemnification obligations."

	LiabilityContextJSON = `{
  "original_contract_text": "Section 7. Limitation of Liability\nEach party shall be liable for all damages arising out of this Agreement.",
  "amendment_text": "Section 7. Limitation of Liability\nEach party's aggregate liability shall not exceed the fees paid in the twelve (12) months preceding the claim, except for breaches of confidentiality and indemnification obligations.",
  "section_correspondences": [
    {"original_section": "Section 7. Limitation of Liability", "amendment_section": "Section 7. Limitation of Liability", "change_type": "modified"}
  ]
}`

	LiabilitySummaryJSON = `{
  "topics_touched": ["Liability allocation", "Confidentiality", "Indemnification"],
  "sections_changed": ["Section 7 - Limitation of Liability"],
  "summary_of_the_change": "Section 7 - Limitation of Liability: -Unlimited liability replaced by a liability cap equal to fees paid in the preceding 12 months\n-Breaches of confidentiality are carved out of the cap\n-Indemnification obligations are carved out of the cap"
}`
)

// PNG returns a small PNG whose pixels are derived from seed, so distinct
// seeds give distinct bytes.
func PNG(seed int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(seed), G: uint8(seed >> 8), B: uint8(x*4 + y), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// WritePage writes PNG(seed) to dir/name and registers text for it on stub.
func WritePage(t testing.TB, stub *StubProvider, dir, name string, seed int, text string) {
	t.Helper()
	data := PNG(seed)
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write page: %v", err)
	}
	if stub != nil {
		stub.Page(data, text)
	}
}

// Scenario is a pair of page folders plus a provider scripted for them.
type Scenario struct {
	OriginalDir  string
	AmendmentDir string
	Provider     *StubProvider
}

// LiabilityScenario builds the capped-liability amendment fixture.
func LiabilityScenario(t testing.TB) Scenario {
	t.Helper()
	root := t.TempDir()
	sc := Scenario{
		OriginalDir:  filepath.Join(root, "original"),
		AmendmentDir: filepath.Join(root, "amendment"),
		Provider:     NewStubProvider(),
	}
	for _, d := range []string{sc.OriginalDir, sc.AmendmentDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	WritePage(t, sc.Provider, sc.OriginalDir, "page_01.png", 1, LiabilityOriginalPage1)
	WritePage(t, sc.Provider, sc.OriginalDir, "page_02.png", 2, LiabilityOriginalPage2)
	WritePage(t, sc.Provider, sc.AmendmentDir, "page_01.png", 3, LiabilityAmendmentPage1)
	sc.Provider.Reply(ContextSchema, LiabilityContextJSON)
	sc.Provider.Reply(SummarySchema, LiabilitySummaryJSON)
	return sc
}
