package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

type (
	// AIService is the single boundary to the text-generation model: send a
	// prompt (optionally with a document payload), get back text. Prompt
	// construction and response parsing belong to the callers.
	AIService interface {
		GenerateText(ctx context.Context, prompt string) (string, error)
		GenerateVision(ctx context.Context, prompt string, mimeType string, data []byte) (string, error)
	}

	geminiService struct {
		apiKey     string
		model      string
		httpClient *http.Client
		logger     *zap.Logger
	}
)

const requestTimeout = 30 * time.Second

func NewGeminiService(apiKey, model string, logger *zap.Logger) AIService {
	return &geminiService{
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

func (s *geminiService) GenerateText(ctx context.Context, prompt string) (string, error) {
	parts := []map[string]interface{}{
		{"text": prompt},
	}
	return s.generate(ctx, parts)
}

func (s *geminiService) GenerateVision(ctx context.Context, prompt string, mimeType string, data []byte) (string, error) {
	parts := []map[string]interface{}{
		{"text": prompt},
		{
			"inline_data": map[string]interface{}{
				"mime_type": mimeType,
				"data":      base64.StdEncoding.EncodeToString(data),
			},
		},
	}
	return s.generate(ctx, parts)
}

func (s *geminiService) generate(ctx context.Context, parts []map[string]interface{}) (string, error) {
	if s.apiKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	requestBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": parts},
		},
		"generationConfig": map[string]interface{}{
			"temperature": 0.1,
			"topP":        0.8,
			"topK":        40,
		},
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf(
		"https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s",
		s.model, s.apiKey,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		s.logger.Warn("gemini call failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", bodyBytes),
		)
		return "", fmt.Errorf("gemini API error: %s", resp.Status)
	}

	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", err
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}

// StripCodeFences removes markdown code fences the model sometimes wraps
// its output in, so callers can parse the payload directly.
func StripCodeFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(text, "```")

	return strings.TrimSpace(text)
}
