// Package parser turns folders of page images into ordered, delimited text.
package parser

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/claw-gang/amendment-diff/internal/domain"
)

var extMIME = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
	".bmp":  "image/bmp",
}

var formatMIME = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
}

// List enumerates the page images in folder sorted by file name. Hidden
// files, directories and files that are neither decodable images nor carry
// an image extension are skipped. An empty or missing folder yields
// domain.ErrNoImagesFound.
func List(folder string) ([]domain.ImageDocument, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("parser: list %s: %w (%v)", folder, domain.ErrNoImagesFound, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var docs []domain.ImageDocument
	for _, name := range names {
		path := filepath.Join(folder, name)
		mime, ok := sniff(path)
		if !ok {
			continue
		}
		docs = append(docs, domain.ImageDocument{
			Path:     path,
			Name:     name,
			Ordinal:  len(docs) + 1,
			MIMEType: mime,
		})
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("parser: list %s: %w", folder, domain.ErrNoImagesFound)
	}
	return docs, nil
}

// sniff identifies an image by its header, falling back to the extension
// for formats the vision model may accept but no registered decoder reads.
func sniff(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	if _, format, err := image.DecodeConfig(f); err == nil {
		if mime, ok := formatMIME[format]; ok {
			return mime, true
		}
	}
	mime, ok := extMIME[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}
