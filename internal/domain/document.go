package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// DocumentKind tags how a document must be processed.
type DocumentKind string

const (
	DocumentImage DocumentKind = "image"
	DocumentPDF   DocumentKind = "pdf"
)

// AllowedExtensions lists the accepted upload extensions, lowercase and
// without the leading dot.
var AllowedExtensions = map[string]DocumentKind{
	"png":  DocumentImage,
	"jpg":  DocumentImage,
	"jpeg": DocumentImage,
	"gif":  DocumentImage,
	"bmp":  DocumentImage,
	"tiff": DocumentImage,
	"pdf":  DocumentPDF,
}

// KindForFilename resolves the document kind from a filename extension.
func KindForFilename(name string) (DocumentKind, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "", false
	}
	kind, ok := AllowedExtensions[ext]
	return kind, ok
}

// Document is a local file handed to the extraction engine.
type Document struct {
	Path string
	Kind DocumentKind
}

// MethodResult is the typed outcome of one OCR method on one image.
// Err is set on failure; Text may still be empty on success.
type MethodResult struct {
	Method   string        `json:"method"`
	Text     string        `json:"text"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// OK reports whether the method produced usable text.
func (r MethodResult) OK() bool {
	return r.Err == nil && strings.TrimSpace(r.Text) != ""
}

// PageExtraction holds the per-method fragments for one image or PDF page.
type PageExtraction struct {
	Page    int            `json:"page"`
	Methods []MethodResult `json:"methods"`
	Text    string         `json:"text"`
}

// ExtractedDocument is the per-request extraction output.
type ExtractedDocument struct {
	Kind  DocumentKind     `json:"kind"`
	Pages []PageExtraction `json:"pages"`
	Text  string           `json:"text"`
}
