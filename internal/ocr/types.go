// Package ocr extracts text from uploaded images and PDFs by running several
// recognition methods per image and merging their output in priority order.
package ocr

import (
	"context"
	"errors"
)

// Method names in priority order.
const (
	MethodEasyOCR   = "easyocr"
	MethodTesseract = "tesseract"
	MethodBinarized = "tesseract_binarized"
)

// ErrMethodDisabled is reported by a method that is not configured.
var ErrMethodDisabled = errors.New("ocr method disabled")

// Recognizer turns an image file into text.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, imagePath string) (string, error)
}

// Rasterizer renders each page of a PDF into an image file. cleanup removes
// every file it created and must be called even when err is non-nil.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string) (pages []string, cleanup func(), err error)
}
