package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs Tesseract through gosseract. A client is not safe
// for concurrent use, so each call gets its own.
type TesseractRecognizer struct {
	name          string
	languages     []string
	clientFactory func() *gosseract.Client
}

// NewTesseractRecognizer creates a recognizer for the given languages.
func NewTesseractRecognizer(languages []string) *TesseractRecognizer {
	return &TesseractRecognizer{
		name:          MethodTesseract,
		languages:     languages,
		clientFactory: gosseract.NewClient,
	}
}

func (r *TesseractRecognizer) Name() string { return r.name }

type recognition struct {
	text string
	err  error
}

// Recognize reads the image into memory and runs OCR on it. The cgo call
// cannot be interrupted, so on cancellation the call returns immediately
// and the client is released once Tesseract finishes.
func (r *TesseractRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan recognition, 1)
	go func() {
		text, err := r.recognizeBytes(data)
		done <- recognition{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-done:
		return res.text, res.err
	}
}

func (r *TesseractRecognizer) recognizeBytes(data []byte) (string, error) {
	c := r.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	if len(r.languages) > 0 {
		if err := c.SetLanguage(r.languages...); err != nil {
			return "", fmt.Errorf("set languages: %w", err)
		}
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// BinarizedRecognizer converts the image to a black and white PNG with Otsu
// thresholding before handing it to an inner recognizer.
type BinarizedRecognizer struct {
	inner   Recognizer
	tempDir string
}

// NewBinarizedRecognizer wraps inner; temp files go to tempDir ("" = OS default).
func NewBinarizedRecognizer(inner Recognizer, tempDir string) *BinarizedRecognizer {
	return &BinarizedRecognizer{inner: inner, tempDir: tempDir}
}

func (r *BinarizedRecognizer) Name() string { return MethodBinarized }

// Recognize binarizes into a temp file owned by this call and removes it on
// return. Decoding large images can outlive ctx; the call then returns early
// and the temp file is removed once binarization finishes.
func (r *BinarizedRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	done := make(chan recognition, 1)
	go func() {
		path, err := BinarizeFile(imagePath, r.tempDir)
		done <- recognition{text: path, err: err}
	}()

	var binPath string
	select {
	case <-ctx.Done():
		go func() {
			if res := <-done; res.err == nil {
				os.Remove(res.text)
			}
		}()
		return "", ctx.Err()
	case res := <-done:
		if res.err != nil {
			return "", res.err
		}
		binPath = res.text
	}
	defer os.Remove(binPath)

	return r.inner.Recognize(ctx, binPath)
}
