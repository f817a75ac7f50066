package ocr

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/symptom-dx-server/internal/domain"
)

// Engine runs every configured Recognizer on each image concurrently and
// merges their output in priority order.
type Engine struct {
	methods       []Recognizer
	breakers      []*gobreaker.CircuitBreaker
	rasterizer    Rasterizer
	methodTimeout time.Duration
	sem           chan struct{}
	logger        *logrus.Logger
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithRecognizers replaces the default method chain. Order is priority order.
func WithRecognizers(methods ...Recognizer) EngineOption {
	return func(e *Engine) {
		e.methods = methods
	}
}

// WithRasterizer replaces the default pdftoppm rasterizer.
func WithRasterizer(r Rasterizer) EngineOption {
	return func(e *Engine) {
		e.rasterizer = r
	}
}

// NewEngine builds the default chain: sidecar, Tesseract, binarized Tesseract.
func NewEngine(cfg domain.OCRConfig, logger *logrus.Logger, opts ...EngineOption) *Engine {
	if cfg.MethodTimeout <= 0 {
		cfg.MethodTimeout = 45 * time.Second
	}
	if cfg.MaxConcurrentDocuments <= 0 {
		cfg.MaxConcurrentDocuments = 4
	}

	tess := NewTesseractRecognizer(cfg.Languages)
	e := &Engine{
		methods: []Recognizer{
			NewSidecarRecognizer(cfg.Sidecar),
			tess,
			NewBinarizedRecognizer(tess, cfg.TempDir),
		},
		rasterizer:    NewPDFRasterizer(cfg.PDFToPPMBinary, cfg.RasterDPI, cfg.TempDir, cfg.RasterizeTimeout, WithRasterizerLogger(logger)),
		methodTimeout: cfg.MethodTimeout,
		sem:           make(chan struct{}, cfg.MaxConcurrentDocuments),
		logger:        logger,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.breakers = make([]*gobreaker.CircuitBreaker, len(e.methods))
	for i, m := range e.methods {
		e.breakers[i] = newMethodBreaker(m.Name(), cfg.Breaker, logger)
	}
	return e
}

// Methods returns the method names in priority order.
func (e *Engine) Methods() []string {
	names := make([]string, len(e.methods))
	for i, m := range e.methods {
		names[i] = m.Name()
	}
	return names
}

// Extract returns the merged text of doc. PDF pages are processed in page
// order and joined with newlines. If no method produced text anywhere the
// error is an EXTRACTION_FAILED DiagnosisError.
func (e *Engine) Extract(ctx context.Context, doc domain.Document) (*domain.ExtractedDocument, error) {
	select {
	case e.sem <- struct{}{}:
		defer func() { <-e.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	start := time.Now()
	var (
		result *domain.ExtractedDocument
		err    error
	)
	switch doc.Kind {
	case domain.DocumentPDF:
		result, err = e.extractPDF(ctx, doc.Path)
	case domain.DocumentImage:
		page := e.extractImage(ctx, doc.Path, 1)
		result = &domain.ExtractedDocument{Kind: doc.Kind, Pages: []domain.PageExtraction{page}, Text: page.Text}
	default:
		return nil, domain.InvalidInput(fmt.Sprintf("unsupported document kind %q", doc.Kind))
	}
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{
		"kind":     doc.Kind,
		"pages":    len(result.Pages),
		"chars":    len(result.Text),
		"duration": time.Since(start).String(),
	}
	if strings.TrimSpace(result.Text) == "" {
		e.logger.WithFields(fields).Warn("No OCR method produced text")
		return nil, domain.ExtractionFailed(fmt.Sprintf("%d page(s), methods %s", len(result.Pages), strings.Join(e.Methods(), ", ")))
	}
	e.logger.WithFields(fields).Info("Text extracted")
	return result, nil
}

func (e *Engine) extractPDF(ctx context.Context, path string) (*domain.ExtractedDocument, error) {
	pages, cleanup, err := e.rasterizer.Rasterize(ctx, path)
	defer cleanup()
	if err != nil {
		e.logger.WithError(err).WithField("path", path).Warn("PDF rasterization failed")
		return nil, domain.ExtractionFailed(err.Error())
	}

	doc := &domain.ExtractedDocument{Kind: domain.DocumentPDF, Pages: make([]domain.PageExtraction, 0, len(pages))}
	texts := make([]string, 0, len(pages))
	for i, pagePath := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := e.extractImage(ctx, pagePath, i+1)
		doc.Pages = append(doc.Pages, page)
		if page.Text != "" {
			texts = append(texts, page.Text)
		}
	}
	doc.Text = strings.Join(texts, "\n")
	return doc, nil
}

// extractImage runs all methods concurrently. Results land in a slice indexed
// by priority, so completion order never affects the merge.
func (e *Engine) extractImage(ctx context.Context, path string, pageNum int) domain.PageExtraction {
	results := make([]domain.MethodResult, len(e.methods))

	var wg sync.WaitGroup
	for i := range e.methods {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = e.runMethod(ctx, i, path)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		if r.Err != nil {
			e.logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"page":     pageNum,
				"duration": r.Duration.String(),
			}).WithError(r.Err).Warn("OCR method failed")
		}
	}

	return domain.PageExtraction{Page: pageNum, Methods: results, Text: MergeResults(results)}
}

func (e *Engine) runMethod(ctx context.Context, i int, path string) domain.MethodResult {
	method := e.methods[i]
	start := time.Now()

	mctx, cancel := context.WithTimeout(ctx, e.methodTimeout)
	defer cancel()

	out, err := e.breakers[i].Execute(func() (interface{}, error) {
		return method.Recognize(mctx, path)
	})

	res := domain.MethodResult{Method: method.Name(), Err: err, Duration: time.Since(start)}
	if err == nil {
		res.Text, _ = out.(string)
	}
	return res
}

// MergeResults joins the trimmed non-empty texts of successful methods with
// newlines, in slice order.
func MergeResults(results []domain.MethodResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}
