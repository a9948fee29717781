package extraction

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/pkg/ai"
)

type (
	// TextExtractor pulls the raw text out of an uploaded document. PDFs are
	// read from their text layer; images go through a single model
	// transcription call.
	TextExtractor interface {
		ExtractText(ctx context.Context, data []byte, mimeType string) (string, error)
	}

	textExtractor struct {
		aiService ai.AIService
		logger    *zap.Logger
	}
)

const transcriptionPrompt = `Transcribe every line of text visible in this receipt image.
Output the raw text only, one line per receipt line, in the original language.
Do NOT add any commentary, translation or markdown formatting.`

func NewTextExtractor(aiService ai.AIService, logger *zap.Logger) TextExtractor {
	return &textExtractor{
		aiService: aiService,
		logger:    logger,
	}
}

func (e *textExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	var (
		text string
		err  error
	)

	switch mimeType {
	case "application/pdf":
		text, err = extractPDFText(data)
	case "image/jpeg", "image/png":
		text, err = e.extractImageText(ctx, data, mimeType)
	default:
		return "", domain.ErrInvalidFileType
	}

	if err != nil {
		e.logger.Warn("text extraction failed", zap.String("mime_type", mimeType), zap.Error(err))
		return "", domain.ErrExtractionFailed
	}

	if strings.TrimSpace(text) == "" {
		return "", domain.ErrExtractionFailed
	}

	return text, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var pages []string
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("read pdf page %d: %w", i, err)
		}
		pages = append(pages, pageText)
	}

	return strings.Join(pages, "\n"), nil
}

func (e *textExtractor) extractImageText(ctx context.Context, data []byte, mimeType string) (string, error) {
	text, err := e.aiService.GenerateVision(ctx, transcriptionPrompt, mimeType, data)
	if err != nil {
		return "", fmt.Errorf("transcribe image: %w", err)
	}
	return ai.StripCodeFences(text), nil
}
