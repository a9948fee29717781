package receipt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/pkg/ai"
)

const (
	// lineBatchSize bounds concurrent model calls; batch N+1 is not issued
	// until batch N fully resolves, which keeps us under provider rate limits.
	lineBatchSize = 5

	maxCallRetries = 3
)

const classifierPrompt = `You are a strict document classifier. Your sole purpose is to determine if the following text was extracted from a grocery receipt.
Respond with "TRUE" if it plausibly is the text of a grocery receipt.
Respond with "FALSE" if it is not (e.g., an invoice, a letter, an article, random text).
Output ONLY "TRUE" or "FALSE". Do NOT include any other text or markdown.

Text:
%s`

const metadataPrompt = `Extract the purchase metadata from the following grocery receipt text.
The receipt might be in German; translate the currency to its English abbreviation (e.g., "EUR" for "Euro").
Respond with exactly three lines in this format and nothing else:
purchaseDate: YYYY-MM-DD
totalAmount: <number>
currency: <abbreviation>
If a field is not visible, leave its value empty.

Receipt text:
%s`

const linePrompt = `You are an expert grocery receipt analyst. Analyze this single line from a grocery receipt.
The line might be in German; translate everything except the original label into English.

If the line is NOT a purchased item (subtotal, total, tax, discount, store name or address, date, payment info), respond with exactly:
IGNORE

Otherwise respond with exactly six pipe-delimited fields in this order and nothing else:
originalBillLabel|aiSuggestedName|price|isFoodItem|classification|nutritionDetails

Rules:
- originalBillLabel: the item name precisely as it appears on the line (keep original language).
- aiSuggestedName: your standardized English name for the item (e.g., "LAYS CHIPS" becomes "Potato Chips").
- price: the item price as a plain number.
- isFoodItem: "true" or "false".
- classification: one of "Fresh Food", "Processed", "High Sugar", "Good Nutri-Score", "Other". Use "Other" when isFoodItem is false.
- nutritionDetails: a comma-separated list of short nutrition notes, or the literal word EMPTY when isFoodItem is false.
Do NOT include markdown formatting.

Receipt line:
%s`

type (
	// ReceiptAnalyzer runs the AI extraction chain over raw receipt text:
	// a validation gate, best-effort metadata extraction and the batched
	// per-line item analysis.
	ReceiptAnalyzer interface {
		IsGroceryReceipt(ctx context.Context, rawText string) (bool, error)
		ExtractMetadata(ctx context.Context, rawText string) ReceiptMetadata
		AnalyzeLines(ctx context.Context, rawText string) ([]AnalyzedItem, error)
	}

	receiptAnalyzer struct {
		aiService ai.AIService
		logger    *zap.Logger
	}
)

func NewReceiptAnalyzer(aiService ai.AIService, logger *zap.Logger) ReceiptAnalyzer {
	return &receiptAnalyzer{
		aiService: aiService,
		logger:    logger,
	}
}

// IsGroceryReceipt is the circuit breaker in front of the expensive chunked
// extraction: on FALSE no further model calls are made for this upload.
func (a *receiptAnalyzer) IsGroceryReceipt(ctx context.Context, rawText string) (bool, error) {
	response, err := a.callWithRetry(ctx, fmt.Sprintf(classifierPrompt, rawText))
	if err != nil {
		return false, fmt.Errorf("%w: document validation: %v", domain.ErrAIInvocation, err)
	}

	verdict := strings.ToUpper(strings.TrimSpace(ai.StripCodeFences(response)))
	return strings.HasPrefix(verdict, "TRUE") || strings.HasPrefix(verdict, "YES"), nil
}

// ExtractMetadata is best-effort: on persistent model failure it returns
// zero metadata and the assembler falls back to defaults. Item extraction is
// mandatory, metadata is not.
func (a *receiptAnalyzer) ExtractMetadata(ctx context.Context, rawText string) ReceiptMetadata {
	response, err := a.callWithRetry(ctx, fmt.Sprintf(metadataPrompt, rawText))
	if err != nil {
		a.logger.Warn("metadata extraction failed, using defaults", zap.Error(err))
		return ReceiptMetadata{}
	}
	return ParseMetadataResponse(response)
}

// AnalyzeLines partitions the raw text into fixed-size batches and issues
// one model call per line, concurrently within a batch, strictly sequential
// across batches. Item order follows line order.
func (a *receiptAnalyzer) AnalyzeLines(ctx context.Context, rawText string) ([]AnalyzedItem, error) {
	lines := splitNonEmptyLines(rawText)

	var items []AnalyzedItem
	for start := 0; start < len(lines); start += lineBatchSize {
		end := start + lineBatchSize
		if end > len(lines) {
			end = len(lines)
		}

		batchItems, err := a.analyzeBatch(ctx, lines[start:end])
		if err != nil {
			return nil, err
		}
		items = append(items, batchItems...)
	}

	return items, nil
}

// analyzeBatch joins on every call in the batch before returning; no
// partial batch is handed downstream. A single failing line is skipped, but
// if every line of the batch fails the provider is considered down and the
// whole upload fails.
func (a *receiptAnalyzer) analyzeBatch(ctx context.Context, batch []string) ([]AnalyzedItem, error) {
	results := make([]*AnalyzedItem, len(batch))

	var mu sync.Mutex
	failures := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lineBatchSize)

	for i, line := range batch {
		i, line := i, line
		g.Go(func() error {
			response, err := a.callWithRetry(gctx, fmt.Sprintf(linePrompt, line))
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				a.logger.Warn("line analysis failed, skipping line",
					zap.String("line", line),
					zap.Error(err),
				)
				mu.Lock()
				failures++
				mu.Unlock()
				return nil
			}

			result := ParseLineResponse(response)
			switch result.Outcome {
			case LineOK:
				results[i] = &result.Item
			case LineIgnored:
				// non-item line, nothing to record
			case LineMalformed:
				a.logger.Warn("malformed line response, discarding",
					zap.String("line", line),
					zap.String("response", result.Raw),
				)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: line analysis: %v", domain.ErrAIInvocation, err)
	}

	if len(batch) > 0 && failures == len(batch) {
		return nil, fmt.Errorf("%w: every line in batch failed", domain.ErrAIInvocation)
	}

	var items []AnalyzedItem
	for _, item := range results {
		if item != nil {
			items = append(items, *item)
		}
	}
	return items, nil
}

func (a *receiptAnalyzer) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var response string
	var err error

	for attempt := 0; attempt < maxCallRetries; attempt++ {
		response, err = a.aiService.GenerateText(ctx, prompt)
		if err == nil {
			return response, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		backoff := time.Duration(1<<uint(attempt)) * 500 * time.Millisecond
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
	}

	return "", err
}
