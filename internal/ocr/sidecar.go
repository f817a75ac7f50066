package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/symptom-dx-server/internal/domain"
)

// SidecarRecognizer calls an EasyOCR-compatible HTTP service. It posts the raw
// image bytes to {url}/readtext and joins the returned fragments with spaces.
type SidecarRecognizer struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
}

// SidecarResult is one text fragment returned by the sidecar.
type SidecarResult struct {
	Text       string      `json:"text"`
	Confidence float64     `json:"confidence"`
	BBox       [][]float64 `json:"bbox,omitempty"`
}

// SidecarResponse is the sidecar reply body.
type SidecarResponse struct {
	Results []SidecarResult `json:"results"`
	Error   string          `json:"error,omitempty"`
}

// NewSidecarRecognizer builds a recognizer from config. An empty URL yields a
// recognizer that always fails with ErrMethodDisabled.
func NewSidecarRecognizer(cfg domain.SidecarConfig) *SidecarRecognizer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &SidecarRecognizer{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
	}
}

func (s *SidecarRecognizer) Name() string { return MethodEasyOCR }

// Enabled reports whether a sidecar URL is configured.
func (s *SidecarRecognizer) Enabled() bool {
	return s.baseURL != ""
}

// Recognize sends the image to the sidecar.
func (s *SidecarRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	if !s.Enabled() {
		return "", ErrMethodDisabled
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	if err := s.rateLimit.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/readtext", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sidecar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("sidecar returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed SidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode sidecar response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("sidecar error: %s", parsed.Error)
	}

	parts := make([]string, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if t := strings.TrimSpace(r.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " "), nil
}
