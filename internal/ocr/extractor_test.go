package ocr

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symptom-dx-server/internal/domain"
)

type stubRecognizer struct {
	name  string
	text  string
	err   error
	delay time.Duration
	// byPath overrides text for specific image paths
	byPath map[string]string

	mu    sync.Mutex
	calls int
}

func (s *stubRecognizer) Name() string { return s.name }

func (s *stubRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if s.err != nil {
		return "", s.err
	}
	if t, ok := s.byPath[filepath.Base(imagePath)]; ok {
		return t, nil
	}
	return s.text, nil
}

type stubRasterizer struct {
	pages    []string
	err      error
	cleaned  bool
	received string
}

func (s *stubRasterizer) Rasterize(ctx context.Context, pdfPath string) ([]string, func(), error) {
	s.received = pdfPath
	return s.pages, func() { s.cleaned = true }, s.err
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testConfig() domain.OCRConfig {
	return domain.OCRConfig{
		MethodTimeout:          200 * time.Millisecond,
		MaxConcurrentDocuments: 2,
		Breaker:                domain.BreakerConfig{MinRequests: 100},
	}
}

func imageDoc(t *testing.T) domain.Document {
	t.Helper()
	path := filepath.Join(t.TempDir(), "note.png")
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))
	return domain.Document{Path: path, Kind: domain.DocumentImage}
}

func TestEngine_MergesInPriorityOrder(t *testing.T) {
	// the first method finishes last
	engine := NewEngine(testConfig(), quietLogger(), WithRecognizers(
		&stubRecognizer{name: "a", text: "  first  ", delay: 50 * time.Millisecond},
		&stubRecognizer{name: "b", text: "second", delay: 10 * time.Millisecond},
		&stubRecognizer{name: "c", text: "third"},
	))

	doc, err := engine.Extract(context.Background(), imageDoc(t))
	require.NoError(t, err)

	assert.Equal(t, "first\nsecond\nthird", doc.Text)
	require.Len(t, doc.Pages, 1)
	require.Len(t, doc.Pages[0].Methods, 3)
	assert.Equal(t, "a", doc.Pages[0].Methods[0].Method)
	assert.Equal(t, "c", doc.Pages[0].Methods[2].Method)
}

func TestEngine_FailedMethodsAreSkipped(t *testing.T) {
	engine := NewEngine(testConfig(), quietLogger(), WithRecognizers(
		&stubRecognizer{name: MethodEasyOCR, err: ErrMethodDisabled},
		&stubRecognizer{name: MethodTesseract, text: "itching and skin rash"},
		&stubRecognizer{name: MethodBinarized, text: "   "},
	))

	doc, err := engine.Extract(context.Background(), imageDoc(t))
	require.NoError(t, err)

	assert.Equal(t, "itching and skin rash", doc.Text)
	assert.ErrorIs(t, doc.Pages[0].Methods[0].Err, ErrMethodDisabled)
	assert.True(t, doc.Pages[0].Methods[1].OK())
	assert.False(t, doc.Pages[0].Methods[2].OK())
}

func TestEngine_MethodTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.MethodTimeout = 20 * time.Millisecond
	engine := NewEngine(cfg, quietLogger(), WithRecognizers(
		&stubRecognizer{name: "slow", text: "too late", delay: time.Second},
		&stubRecognizer{name: "fast", text: "cough"},
	))

	start := time.Now()
	doc, err := engine.Extract(context.Background(), imageDoc(t))
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "cough", doc.Text)
	assert.ErrorIs(t, doc.Pages[0].Methods[0].Err, context.DeadlineExceeded)
}

func TestEngine_AllMethodsEmpty(t *testing.T) {
	engine := NewEngine(testConfig(), quietLogger(), WithRecognizers(
		&stubRecognizer{name: "a", err: errors.New("engine crashed")},
		&stubRecognizer{name: "b", text: ""},
		&stubRecognizer{name: "c", text: "\n\t"},
	))

	_, err := engine.Extract(context.Background(), imageDoc(t))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.Equal(t, domain.ErrCodeExtractionFailed, domain.ErrorCode(err))
}

func TestEngine_PDFPagesInOrder(t *testing.T) {
	raster := &stubRasterizer{pages: []string{"/tmp/page-1.png", "/tmp/page-2.png", "/tmp/page-3.png"}}
	engine := NewEngine(testConfig(), quietLogger(),
		WithRasterizer(raster),
		WithRecognizers(&stubRecognizer{name: "a", byPath: map[string]string{
			"page-1.png": "high fever",
			"page-2.png": "",
			"page-3.png": "cough",
		}}),
	)

	doc, err := engine.Extract(context.Background(), domain.Document{Path: "scan.pdf", Kind: domain.DocumentPDF})
	require.NoError(t, err)

	assert.Equal(t, "high fever\ncough", doc.Text)
	assert.Len(t, doc.Pages, 3)
	assert.Equal(t, 3, doc.Pages[2].Page)
	assert.Equal(t, "scan.pdf", raster.received)
	assert.True(t, raster.cleaned)
}

func TestEngine_PDFRasterizeFailure(t *testing.T) {
	raster := &stubRasterizer{err: errors.New("pdftoppm missing")}
	rec := &stubRecognizer{name: "a", text: "x"}
	engine := NewEngine(testConfig(), quietLogger(), WithRasterizer(raster), WithRecognizers(rec))

	_, err := engine.Extract(context.Background(), domain.Document{Path: "scan.pdf", Kind: domain.DocumentPDF})

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.True(t, raster.cleaned)
	assert.Equal(t, 0, rec.calls)
}

func TestEngine_PDFAllPagesEmpty(t *testing.T) {
	raster := &stubRasterizer{pages: []string{"p1.png", "p2.png"}}
	engine := NewEngine(testConfig(), quietLogger(), WithRasterizer(raster), WithRecognizers(&stubRecognizer{name: "a"}))

	_, err := engine.Extract(context.Background(), domain.Document{Path: "scan.pdf", Kind: domain.DocumentPDF})

	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
	assert.True(t, raster.cleaned)
}

func TestEngine_UnsupportedKind(t *testing.T) {
	engine := NewEngine(testConfig(), quietLogger(), WithRecognizers(&stubRecognizer{name: "a", text: "x"}))

	_, err := engine.Extract(context.Background(), domain.Document{Path: "a.doc", Kind: "doc"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestEngine_BreakerOpensAfterFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Breaker = domain.BreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute}
	failing := &stubRecognizer{name: "broken", err: errors.New("crash")}
	engine := NewEngine(cfg, quietLogger(), WithRecognizers(failing, &stubRecognizer{name: "ok", text: "cough"}))

	for i := 0; i < 4; i++ {
		_, err := engine.Extract(context.Background(), imageDoc(t))
		require.NoError(t, err)
	}

	// two calls trip the breaker; later calls are rejected without running
	assert.Equal(t, 2, failing.calls)
}

func TestEngine_DefaultMethodOrder(t *testing.T) {
	engine := NewEngine(testConfig(), quietLogger())
	assert.Equal(t, []string{MethodEasyOCR, MethodTesseract, MethodBinarized}, engine.Methods())
}

func TestMergeResults(t *testing.T) {
	results := []domain.MethodResult{
		{Method: "a", Text: " one "},
		{Method: "b", Text: "ignored", Err: errors.New("failed")},
		{Method: "c", Text: ""},
		{Method: "d", Text: "two"},
	}
	assert.Equal(t, "one\ntwo", MergeResults(results))
	assert.Equal(t, "", MergeResults(nil))
}
