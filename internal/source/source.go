package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// Loader decodes one frame locator into an image. Implementations must be safe
// for use from the prefetch goroutine while the caller reads other frames.
type Loader interface {
	Load(path string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (image.Image, error)

func (f LoaderFunc) Load(path string) (image.Image, error) {
	return f(path)
}

// PDFLoader renders the first page of a storyboard PDF.
type PDFLoader struct {
	DPI int
}

func (l *PDFLoader) Load(path string) (image.Image, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	if doc.NumPage() == 0 {
		return nil, fmt.Errorf("%s: no pages", path)
	}
	dpi := l.DPI
	if dpi <= 0 {
		dpi = 72
	}
	return doc.ImageDPI(0, float64(dpi))
}

// ByExtension dispatches to PDF rendering for .pdf locators and to raster
// decoding for everything else.
type ByExtension struct {
	Raster Loader
	PDF    Loader
}

// Default returns the loader used by the player.
func Default() *ByExtension {
	return &ByExtension{
		Raster: &ImageLoader{},
		PDF:    &PDFLoader{DPI: 72},
	}
}

func (b *ByExtension) Load(path string) (image.Image, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return b.PDF.Load(path)
	}
	return b.Raster.Load(path)
}
