package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/catalog"
	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/middleware"
	"github.com/symptom-dx-server/internal/service"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// predictRequest is the /predict payload.
type predictRequest struct {
	Symptoms []string `json:"symptoms"`
}

// rankedEntry is one top-k line in responses.
type rankedEntry struct {
	Disease    domain.DiseaseLabel `json:"disease"`
	Confidence float64             `json:"confidence"`
}

type predictResponse struct {
	Prediction       domain.DiseaseLabel `json:"prediction"`
	Confidence       float64             `json:"confidence"`
	Description      string              `json:"description,omitempty"`
	TopPredictions   []rankedEntry       `json:"top_predictions"`
	SelectedSymptoms []string            `json:"selected_symptoms"`
	UnknownSymptoms  []string            `json:"unknown_symptoms"`
	ModelBundle      string              `json:"model_bundle"`
	RecordID         string              `json:"record_id,omitempty"`
}

type uploadResponse struct {
	Success       bool     `json:"success"`
	ExtractedText string   `json:"extracted_text"`
	FoundSymptoms []string `json:"found_symptoms"`
	SymptomCount  int      `json:"symptom_count"`
	Status        string   `json:"status"`
}

type diagnoseResponse struct {
	uploadResponse
	Diagnosis *predictResponse `json:"diagnosis,omitempty"`
}

// handleHealth reports liveness and which model bundle is serving.
func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   Version,
	}

	mc, err := s.deps.Models.Current()
	if err != nil {
		body["status"] = "degraded"
		body["model_loaded"] = false
	} else {
		body["model_loaded"] = true
		body["model_bundle"] = mc.BundleID
		body["model_loaded_at"] = mc.LoadedAt
		body["symptom_count"] = mc.Lexicon.Len()
		body["disease_count"] = mc.Encoder.Len()
	}
	if s.deps.Cache != nil {
		body["cache"] = s.deps.Cache.Stats()
	}

	c.JSON(http.StatusOK, body)
}

// handleUpload extracts symptoms from an uploaded document.
func (s *Server) handleUpload(c *gin.Context) {
	doc, cleanup, err := s.receiveDocument(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer cleanup()

	res, err := s.deps.Service.ExtractSymptoms(c.Request.Context(), doc)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toUploadResponse(res))
}

// handleDiagnose extracts symptoms and predicts in one request.
func (s *Server) handleDiagnose(c *gin.Context) {
	doc, cleanup, err := s.receiveDocument(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer cleanup()

	out, err := s.deps.Service.Diagnose(c.Request.Context(), doc, middleware.RequestID(c))
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := diagnoseResponse{uploadResponse: toUploadResponse(out.Extraction)}
	if out.Prediction != nil {
		resp.Diagnosis = toPredictResponse(out.Prediction)
	}
	c.JSON(http.StatusOK, resp)
}

// handlePredict classifies a manual symptom selection.
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, domain.InvalidInput("Request body must be JSON with a symptoms list"))
		return
	}

	out, err := s.deps.Service.Predict(c.Request.Context(), service.PredictRequest{
		Symptoms:  req.Symptoms,
		Source:    history.SourceManual,
		RequestID: middleware.RequestID(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPredictResponse(out))
}

// handleSymptoms lists the lexicon in feature order.
func (s *Server) handleSymptoms(c *gin.Context) {
	symptoms, err := s.deps.Service.Symptoms()
	if err != nil {
		s.writeError(c, err)
		return
	}

	ids := make([]string, len(symptoms))
	for i, sym := range symptoms {
		ids[i] = sym.ID()
	}
	if c.Query("format") == "readable" {
		readable := make([]gin.H, len(symptoms))
		for i, sym := range symptoms {
			readable[i] = gin.H{"id": sym.ID(), "name": sym.Readable()}
		}
		c.JSON(http.StatusOK, gin.H{"symptoms": readable})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symptoms": ids})
}

func (s *Server) handleDiseases(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"diseases": catalog.List()})
}

func (s *Server) handleDisease(c *gin.Context) {
	entry, ok := catalog.Describe(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "Disease not found",
			"request_id": middleware.RequestID(c),
		})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// handleListHistory pages through recorded predictions.
func (s *Server) handleListHistory(c *gin.Context) {
	if !s.historyEnabled(c) {
		return
	}

	limit, err := queryInt(c, "limit", defaultHistoryLimit)
	if err != nil || limit < 1 || limit > maxHistoryLimit {
		s.writeError(c, domain.NewValidationError("limit", fmt.Sprintf("must be between 1 and %d", maxHistoryLimit), c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.writeError(c, domain.NewValidationError("offset", "must be a non-negative integer", c.Query("offset")))
		return
	}

	ctx := c.Request.Context()
	records, err := s.deps.History.List(ctx, limit, offset)
	if err != nil {
		s.writeError(c, err)
		return
	}
	total, err := s.deps.History.Count(ctx)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if records == nil {
		records = []*history.Record{}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"count":   len(records),
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (s *Server) handleGetHistory(c *gin.Context) {
	if !s.historyEnabled(c) {
		return
	}

	record, err := s.deps.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":      "Prediction not found",
			"request_id": middleware.RequestID(c),
		})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleExportHistory(c *gin.Context) {
	if !s.historyEnabled(c) {
		return
	}

	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", `attachment; filename="prediction-history.json"`)
	c.Status(http.StatusOK)
	if err := s.deps.History.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		s.logger.WithFields(logrus.Fields{
			"request_id": middleware.RequestID(c),
			"error":      err.Error(),
		}).Error("History export failed")
	}
}

// handleReload swaps in artifacts from disk, keeping the old model on failure.
func (s *Server) handleReload(c *gin.Context) {
	mc, err := s.deps.Models.Reload(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	if s.deps.Cache != nil {
		s.deps.Cache.Purge()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "reloaded",
		"model_bundle":  mc.BundleID,
		"symptom_count": mc.Lexicon.Len(),
		"disease_count": mc.Encoder.Len(),
	})
}

func (s *Server) historyEnabled(c *gin.Context) bool {
	if s.deps.History != nil {
		return true
	}
	c.JSON(http.StatusNotFound, gin.H{
		"error":      "Prediction history is disabled",
		"request_id": middleware.RequestID(c),
	})
	return false
}

// receiveDocument validates the multipart upload and spools it to a
// request-scoped temp file. cleanup removes that file.
func (s *Server) receiveDocument(c *gin.Context) (domain.Document, func(), error) {
	noop := func() {}
	cfg := s.configManager.GetServerConfig()

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, cfg.MaxUploadBytes)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Document{}, noop, domain.NewValidationError("file",
				fmt.Sprintf("File exceeds the %d byte upload limit", cfg.MaxUploadBytes), nil)
		}
		return domain.Document{}, noop, domain.NewValidationError("file", "No file provided", nil)
	}
	if header.Filename == "" {
		return domain.Document{}, noop, domain.NewValidationError("file", "No file selected", nil)
	}
	if header.Size > cfg.MaxUploadBytes {
		return domain.Document{}, noop, domain.NewValidationError("file",
			fmt.Sprintf("File exceeds the %d byte upload limit", cfg.MaxUploadBytes), header.Size)
	}

	kind, ok := domain.KindForFilename(header.Filename)
	if !ok {
		return domain.Document{}, noop, domain.NewValidationError("file", "File type not allowed", header.Filename)
	}

	path, err := spoolUpload(header, cfg.UploadDir)
	if err != nil {
		return domain.Document{}, noop, err
	}
	cleanup := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.WithFields(logrus.Fields{
				"path":  path,
				"error": err.Error(),
			}).Warn("Failed to remove upload")
		}
	}
	return domain.Document{Path: path, Kind: kind}, cleanup, nil
}

// spoolUpload copies the upload under a generated name so the client's
// filename never touches the filesystem.
func spoolUpload(header *multipart.FileHeader, dir string) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	dst, err := os.CreateTemp(dir, "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(dst.Name())
		return "", fmt.Errorf("failed to store upload: %w", err)
	}
	return dst.Name(), nil
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func toUploadResponse(res *service.ExtractionResult) uploadResponse {
	found := res.Symptoms
	if found == nil {
		found = []string{}
	}
	return uploadResponse{
		Success:       true,
		ExtractedText: res.DisplayText,
		FoundSymptoms: found,
		SymptomCount:  res.SymptomCount,
		Status:        res.Status,
	}
}

func toPredictResponse(out *service.PredictionOutcome) *predictResponse {
	top := make([]rankedEntry, len(out.Result.TopPredictions))
	for i, p := range out.Result.TopPredictions {
		top[i] = rankedEntry{Disease: p.Disease, Confidence: p.Confidence}
	}
	selected := out.Selected
	if selected == nil {
		selected = []string{}
	}
	unknown := out.Unknown
	if unknown == nil {
		unknown = []string{}
	}
	return &predictResponse{
		Prediction:       out.Result.Prediction,
		Confidence:       out.Result.Confidence,
		Description:      catalog.DescriptionFor(out.Result.Prediction),
		TopPredictions:   top,
		SelectedSymptoms: selected,
		UnknownSymptoms:  unknown,
		ModelBundle:      out.Result.ModelBundle,
		RecordID:         out.RecordID,
	}
}
