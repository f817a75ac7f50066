package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/symptom-dx-server/internal/catalog"
	"github.com/symptom-dx-server/internal/domain"
	"github.com/symptom-dx-server/internal/history"
	"github.com/symptom-dx-server/internal/service"
)

// Tool names
const (
	ToolListSymptoms    = "list_symptoms"
	ToolMatchSymptoms   = "match_symptoms"
	ToolPredictDisease  = "predict_disease"
	ToolDescribeDisease = "describe_disease"
	ToolExtractDocument = "extract_document"
)

// ListSymptomsParams defines parameters for list_symptoms tool
type ListSymptomsParams struct {
	Filter string `json:"filter,omitempty" jsonschema:"only return symptoms containing this text"`
}

// SymptomEntry is one lexicon entry.
type SymptomEntry struct {
	ID       string `json:"id"`
	Readable string `json:"readable"`
}

// ListSymptomsResult defines the result structure for list_symptoms tool
type ListSymptomsResult struct {
	Symptoms []SymptomEntry `json:"symptoms"`
	Count    int            `json:"count"`
}

// MatchSymptomsParams defines parameters for match_symptoms tool
type MatchSymptomsParams struct {
	Text string `json:"text" jsonschema:"free text such as a clinical note"`
}

// MatchSymptomsResult defines the result structure for match_symptoms tool
type MatchSymptomsResult struct {
	Symptoms []string `json:"symptoms"`
	Count    int      `json:"count"`
}

// PredictDiseaseParams defines parameters for predict_disease tool
type PredictDiseaseParams struct {
	Symptoms []string `json:"symptoms" jsonschema:"symptom identifiers as returned by list_symptoms"`
}

// RankedDisease is one entry of the top predictions.
type RankedDisease struct {
	Disease    string  `json:"disease"`
	Confidence float64 `json:"confidence"`
}

// PredictDiseaseResult defines the result structure for predict_disease tool
type PredictDiseaseResult struct {
	Prediction         string          `json:"prediction"`
	Confidence         float64         `json:"confidence"`
	Description        string          `json:"description,omitempty"`
	TopPredictions     []RankedDisease `json:"top_predictions"`
	RecognizedSymptoms []string        `json:"recognized_symptoms"`
	UnknownSymptoms    []string        `json:"unknown_symptoms,omitempty"`
	ModelBundle        string          `json:"model_bundle"`
}

// DescribeDiseaseParams defines parameters for describe_disease tool
type DescribeDiseaseParams struct {
	Disease string `json:"disease" jsonschema:"disease label, matched ignoring case"`
}

// DescribeDiseaseResult defines the result structure for describe_disease tool
type DescribeDiseaseResult struct {
	Disease     string `json:"disease"`
	Description string `json:"description"`
}

// ExtractDocumentParams defines parameters for extract_document tool
type ExtractDocumentParams struct {
	Path    string `json:"path" jsonschema:"absolute path of a png, jpg, jpeg, gif, bmp, tiff or pdf file"`
	Predict bool   `json:"predict,omitempty" jsonschema:"also predict from the symptoms found"`
}

// ExtractDocumentResult defines the result structure for extract_document tool
type ExtractDocumentResult struct {
	ExtractedText string                `json:"extracted_text"`
	FoundSymptoms []string              `json:"found_symptoms"`
	SymptomCount  int                   `json:"symptom_count"`
	Status        string                `json:"status"`
	Prediction    *PredictDiseaseResult `json:"prediction,omitempty"`
}

// handleListSymptoms handles the list_symptoms tool invocation
func (s *Server) handleListSymptoms(ctx context.Context, req *mcp.CallToolRequest, params ListSymptomsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolListSymptoms).Info("Tool invoked")

	symptoms, err := s.service.Symptoms()
	if err != nil {
		return s.createErrorResult("Model unavailable", err), nil, nil
	}

	filter := strings.ToLower(strings.TrimSpace(params.Filter))
	result := ListSymptomsResult{Symptoms: make([]SymptomEntry, 0, len(symptoms))}
	for _, sym := range symptoms {
		if filter != "" && !strings.Contains(sym.ID(), filter) && !strings.Contains(sym.Readable(), filter) {
			continue
		}
		result.Symptoms = append(result.Symptoms, SymptomEntry{ID: sym.ID(), Readable: sym.Readable()})
	}
	result.Count = len(result.Symptoms)

	return s.createJSONResult(result), result, nil
}

// handleMatchSymptoms handles the match_symptoms tool invocation
func (s *Server) handleMatchSymptoms(ctx context.Context, req *mcp.CallToolRequest, params MatchSymptomsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolMatchSymptoms).Info("Tool invoked")

	if strings.TrimSpace(params.Text) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("text is required")), nil, nil
	}

	found, err := s.service.MatchText(params.Text)
	if err != nil {
		return s.createErrorResult("Model unavailable", err), nil, nil
	}
	if found == nil {
		found = []string{}
	}

	result := MatchSymptomsResult{Symptoms: found, Count: len(found)}
	return s.createJSONResult(result), result, nil
}

// handlePredictDisease handles the predict_disease tool invocation
func (s *Server) handlePredictDisease(ctx context.Context, req *mcp.CallToolRequest, params PredictDiseaseParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":          ToolPredictDisease,
		"symptom_count": len(params.Symptoms),
	}).Info("Tool invoked")

	outcome, err := s.service.Predict(ctx, service.PredictRequest{
		Symptoms:  params.Symptoms,
		Source:    history.SourceManual,
		RequestID: uuid.New().String(),
	})
	if err != nil {
		return s.createErrorResult("Prediction failed", err), nil, nil
	}

	result := toPredictResult(outcome)
	return s.createJSONResult(result), result, nil
}

// handleDescribeDisease handles the describe_disease tool invocation
func (s *Server) handleDescribeDisease(ctx context.Context, req *mcp.CallToolRequest, params DescribeDiseaseParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolDescribeDisease).Info("Tool invoked")

	if strings.TrimSpace(params.Disease) == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("disease is required")), nil, nil
	}

	entry, ok := catalog.Describe(strings.TrimSpace(params.Disease))
	if !ok {
		return s.createErrorResult("Unknown disease", fmt.Errorf("no description for %q", params.Disease)), nil, nil
	}

	result := DescribeDiseaseResult{Disease: string(entry.Disease), Description: entry.Description}
	return s.createJSONResult(result), result, nil
}

// handleExtractDocument handles the extract_document tool invocation
func (s *Server) handleExtractDocument(ctx context.Context, req *mcp.CallToolRequest, params ExtractDocumentParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithFields(logrus.Fields{
		"tool":    ToolExtractDocument,
		"predict": params.Predict,
	}).Info("Tool invoked")

	if params.Path == "" {
		return s.createErrorResult("Missing required parameter", fmt.Errorf("path is required")), nil, nil
	}
	kind, ok := domain.KindForFilename(params.Path)
	if !ok {
		return s.createErrorResult("File type not allowed", fmt.Errorf("unsupported file: %s", params.Path)), nil, nil
	}
	if info, err := os.Stat(params.Path); err != nil || info.IsDir() {
		return s.createErrorResult("File not readable", fmt.Errorf("%s is not a readable file", params.Path)), nil, nil
	}

	doc := domain.Document{Path: params.Path, Kind: kind}
	requestID := uuid.New().String()

	var (
		extraction *service.ExtractionResult
		prediction *service.PredictionOutcome
	)
	if params.Predict {
		outcome, err := s.service.Diagnose(ctx, doc, requestID)
		if err != nil {
			return s.createErrorResult("Diagnosis failed", err), nil, nil
		}
		extraction, prediction = outcome.Extraction, outcome.Prediction
	} else {
		res, err := s.service.ExtractSymptoms(ctx, doc)
		if err != nil {
			return s.createErrorResult("Could not extract text from file", err), nil, nil
		}
		extraction = res
	}

	found := extraction.Symptoms
	if found == nil {
		found = []string{}
	}
	result := ExtractDocumentResult{
		ExtractedText: extraction.DisplayText,
		FoundSymptoms: found,
		SymptomCount:  extraction.SymptomCount,
		Status:        extraction.Status,
	}
	if prediction != nil {
		result.Prediction = toPredictResult(prediction)
	}
	return s.createJSONResult(result), result, nil
}

func toPredictResult(outcome *service.PredictionOutcome) *PredictDiseaseResult {
	top := make([]RankedDisease, len(outcome.Result.TopPredictions))
	for i, p := range outcome.Result.TopPredictions {
		top[i] = RankedDisease{Disease: string(p.Disease), Confidence: p.Confidence}
	}
	recognized := outcome.Recognized
	if recognized == nil {
		recognized = []string{}
	}
	return &PredictDiseaseResult{
		Prediction:         string(outcome.Result.Prediction),
		Confidence:         outcome.Result.Confidence,
		Description:        catalog.DescriptionFor(outcome.Result.Prediction),
		TopPredictions:     top,
		RecognizedSymptoms: recognized,
		UnknownSymptoms:    outcome.Unknown,
		ModelBundle:        outcome.Result.ModelBundle,
	}
}

// createJSONResult renders v as indented JSON text content.
func (s *Server) createJSONResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
		s.logger.WithError(err).Warn(message)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
