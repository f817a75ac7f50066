package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"
)

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// PDFRasterizer renders PDF pages to PNG with pdftoppm.
type PDFRasterizer struct {
	binary  string
	dpi     int
	tempDir string
	timeout time.Duration
	exec    Executor
	logger  *logrus.Logger
}

// RasterizerOption customises a PDFRasterizer.
type RasterizerOption func(*PDFRasterizer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) RasterizerOption {
	return func(r *PDFRasterizer) {
		if e != nil {
			r.exec = e
		}
	}
}

// WithRasterizerLogger sets the logger used for page count warnings.
func WithRasterizerLogger(logger *logrus.Logger) RasterizerOption {
	return func(r *PDFRasterizer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewPDFRasterizer creates a rasterizer.
func NewPDFRasterizer(binary string, dpi int, tempDir string, timeout time.Duration, opts ...RasterizerOption) *PDFRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 200
	}
	r := &PDFRasterizer{
		binary:  binary,
		dpi:     dpi,
		tempDir: tempDir,
		timeout: timeout,
		exec:    commandExecutor{},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PageCount opens the PDF and returns its page count. Malformed files that
// make the parser panic are reported as errors.
func PageCount(path string) (count int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("open pdf reader: %w", err)
	}
	return reader.NumPage(), nil
}

// Rasterize writes one PNG per page into a fresh temp directory and returns
// the page paths in page order. A PDF the page counter cannot parse is still
// handed to pdftoppm.
func (r *PDFRasterizer) Rasterize(ctx context.Context, pdfPath string) ([]string, func(), error) {
	noop := func() {}

	pages, err := PageCount(pdfPath)
	switch {
	case err != nil:
		r.logger.WithError(err).WithField("path", pdfPath).Warn("Could not read PDF page count, rasterizing anyway")
	case pages < 1:
		return nil, noop, fmt.Errorf("pdf has no pages")
	}

	dir, err := os.MkdirTemp(r.tempDir, "pdfpages-*")
	if err != nil {
		return nil, noop, fmt.Errorf("create page dir: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"-r", strconv.Itoa(r.dpi), "-png", pdfPath, filepath.Join(dir, "page")}
	if out, err := r.exec.Run(ctx, r.binary, args); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, cleanup, fmt.Errorf("pdftoppm: %w", ctxErr)
		}
		return nil, cleanup, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	paths, err := pageFiles(dir)
	if err != nil {
		return nil, cleanup, err
	}
	if len(paths) == 0 {
		return nil, cleanup, fmt.Errorf("pdftoppm produced no pages")
	}
	return paths, cleanup, nil
}

// pageFiles lists page-N.png files sorted by N. pdftoppm zero-pads N
// depending on the page count, so sorting is numeric.
func pageFiles(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	type page struct {
		n    int
		path string
	}
	pages := make([]page, 0, len(matches))
	for _, m := range matches {
		base := strings.TrimSuffix(filepath.Base(m), ".png")
		n, err := strconv.Atoi(strings.TrimPrefix(base, "page-"))
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: m})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
