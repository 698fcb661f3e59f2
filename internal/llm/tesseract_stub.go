//go:build !tesseract

package llm

// LocalOCRPrefix marks model ids served by the local Tesseract engine,
// e.g. "tesseract/eng".
const LocalOCRPrefix = "tesseract/"

// LocalOCR reports false: this binary was built without the tesseract tag.
func LocalOCR() (Provider, bool) { return nil, false }
