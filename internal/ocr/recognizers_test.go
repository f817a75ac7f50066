package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
)

func writeTwoTonePNG(t *testing.T, dir string) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 20; x++ {
			c := color.RGBA{R: 30, G: 30, B: 30, A: 255}
			if x >= 10 {
				c = color.RGBA{R: 220, G: 220, B: 220, A: 255}
			}
			img.Set(x, y, c)
		}
	}
	path := filepath.Join(dir, "two-tone.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestOtsuThreshold_TwoTone(t *testing.T) {
	img, err := DecodeImage(writeTwoTonePNG(t, t.TempDir()))
	require.NoError(t, err)

	gray := Grayscale(img)
	threshold := OtsuThreshold(gray)

	assert.GreaterOrEqual(t, int(threshold), 30)
	assert.Less(t, int(threshold), 220)
}

func TestBinarize_OnlyBlackAndWhite(t *testing.T) {
	img, err := DecodeImage(writeTwoTonePNG(t, t.TempDir()))
	require.NoError(t, err)

	bin := Binarize(img)
	for _, v := range bin.Pix {
		assert.Contains(t, []uint8{0, 255}, v)
	}
	assert.Equal(t, uint8(0), bin.GrayAt(0, 0).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(19, 0).Y)
}

func TestBinarizeFile(t *testing.T) {
	dir := t.TempDir()
	out, err := BinarizeFile(writeTwoTonePNG(t, dir), dir)
	require.NoError(t, err)
	defer os.Remove(out)

	img, err := DecodeImage(out)
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())
}

func TestBinarizeFile_RejectsNonImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := BinarizeFile(path, dir)
	assert.Error(t, err)

	matches, _ := filepath.Glob(filepath.Join(dir, "binarized-*"))
	assert.Empty(t, matches)
}

type pathCapture struct {
	path   string
	exists bool
}

func (p *pathCapture) Name() string { return "capture" }

func (p *pathCapture) Recognize(ctx context.Context, imagePath string) (string, error) {
	p.path = imagePath
	_, err := os.Stat(imagePath)
	p.exists = err == nil
	return "text", nil
}

func TestBinarizedRecognizer_RemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	inner := &pathCapture{}
	rec := NewBinarizedRecognizer(inner, dir)

	text, err := rec.Recognize(context.Background(), writeTwoTonePNG(t, dir))
	require.NoError(t, err)

	assert.Equal(t, "text", text)
	assert.True(t, inner.exists)
	_, err = os.Stat(inner.path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, MethodBinarized, rec.Name())
}

func TestBinarizedRecognizer_RemovesTempFileOnTimeout(t *testing.T) {
	dir := t.TempDir()
	slow := &stubRecognizer{name: "slow", delay: time.Second}
	rec := NewBinarizedRecognizer(slow, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := rec.Recognize(ctx, writeTwoTonePNG(t, dir))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Eventually(t, func() bool {
		matches, _ := filepath.Glob(filepath.Join(dir, "binarized-*"))
		return len(matches) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestBinarizedRecognizer_CancelledBeforeBinarize(t *testing.T) {
	dir := t.TempDir()
	inner := &pathCapture{}
	rec := NewBinarizedRecognizer(inner, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rec.Recognize(ctx, writeTwoTonePNG(t, dir))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, inner.path)
	matches, _ := filepath.Glob(filepath.Join(dir, "binarized-*"))
	assert.Empty(t, matches)
}

func TestTesseractRecognizer_Errors(t *testing.T) {
	rec := NewTesseractRecognizer([]string{"eng"})
	assert.Equal(t, MethodTesseract, rec.Name())

	_, err := rec.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = rec.Recognize(ctx, writeTwoTonePNG(t, t.TempDir()))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSidecarRecognizer(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/readtext", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		gotBody, _ = io.ReadAll(r.Body)
		_ = json.NewEncoder(w).Encode(SidecarResponse{Results: []SidecarResult{
			{Text: "Patient has", Confidence: 0.9},
			{Text: " ", Confidence: 0.1},
			{Text: "high fever", Confidence: 0.8},
		}})
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, []byte("image-bytes"), 0o644))

	rec := NewSidecarRecognizer(domain.SidecarConfig{URL: server.URL + "/", RateLimit: 100, Burst: 1})
	text, err := rec.Recognize(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Patient has high fever", text)
	assert.Equal(t, []byte("image-bytes"), gotBody)
}

func TestSidecarRecognizer_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "img.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := NewSidecarRecognizer(domain.SidecarConfig{URL: server.URL}).Recognize(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestSidecarRecognizer_Disabled(t *testing.T) {
	rec := NewSidecarRecognizer(domain.SidecarConfig{})

	assert.False(t, rec.Enabled())
	_, err := rec.Recognize(context.Background(), "unused.png")
	assert.ErrorIs(t, err, ErrMethodDisabled)
}
