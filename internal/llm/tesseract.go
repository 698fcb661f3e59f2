//go:build tesseract

package llm

import (
	"context"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// LocalOCRPrefix marks model ids served by the local Tesseract engine,
// e.g. "tesseract/eng".
const LocalOCRPrefix = "tesseract/"

// Tesseract reads page images with a local Tesseract install. The language
// is taken from the model id suffix.
type Tesseract struct {
	clientFactory func() *gosseract.Client
}

// LocalOCR returns the Tesseract provider. It reports false when the binary
// was built without the tesseract tag.
func LocalOCR() (Provider, bool) {
	return &Tesseract{clientFactory: gosseract.NewClient}, true
}

// Complete implements Provider.
func (t *Tesseract) Complete(ctx context.Context, call Call) (string, error) {
	if call.Image == nil {
		return "", &ProviderError{Kind: KindMalformed, Msg: "tesseract requires an image"}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c := t.clientFactory()
	defer c.Close()

	lang := strings.TrimPrefix(call.Model, LocalOCRPrefix)
	if lang != "" {
		if err := c.SetLanguage(lang); err != nil {
			return "", &ProviderError{Kind: KindUpstream, Msg: "set language: " + err.Error()}
		}
	}
	if err := c.SetImageFromBytes(call.Image.Data); err != nil {
		return "", &ProviderError{Kind: KindMalformed, Msg: "set image: " + err.Error()}
	}
	text, err := c.Text()
	if err != nil {
		return "", &ProviderError{Kind: KindUpstream, Msg: "recognize text: " + err.Error()}
	}
	return strings.TrimSpace(text), nil
}
