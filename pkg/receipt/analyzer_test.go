package receipt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MVictoriaDoll/NutriChoice/domain"
)

// stubAI scripts GenerateText responses and records concurrency so tests can
// check the batching contract.
type stubAI struct {
	mu          sync.Mutex
	prompts     []string
	inflight    int
	maxInflight int
	delay       time.Duration

	respond func(prompt string) (string, error)
}

func (s *stubAI) GenerateText(ctx context.Context, prompt string) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	s.inflight++
	if s.inflight > s.maxInflight {
		s.maxInflight = s.inflight
	}
	s.mu.Unlock()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()

	return s.respond(prompt)
}

func (s *stubAI) GenerateVision(ctx context.Context, prompt string, mimeType string, data []byte) (string, error) {
	return "", errors.New("not scripted")
}

func (s *stubAI) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

// lastPromptLine pulls the receipt line back out of a line analysis prompt.
func lastPromptLine(prompt string) string {
	idx := strings.LastIndex(prompt, "\n")
	return strings.TrimSpace(prompt[idx+1:])
}

func TestIsGroceryReceipt(t *testing.T) {
	tests := []struct {
		response string
		want     bool
	}{
		{"TRUE", true},
		{"true", true},
		{"TRUE.", true},
		{"YES, this is a receipt", true},
		{"```\nTRUE\n```", true},
		{"FALSE", false},
		{"NO", false},
		{"This looks like an invoice", false},
	}

	for _, tt := range tests {
		ai := &stubAI{respond: func(string) (string, error) { return tt.response, nil }}
		analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

		got, err := analyzer.IsGroceryReceipt(context.Background(), "some text")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "response: %q", tt.response)
	}
}

func TestIsGroceryReceiptModelDown(t *testing.T) {
	ai := &stubAI{respond: func(string) (string, error) { return "", errors.New("boom") }}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	_, err := analyzer.IsGroceryReceipt(context.Background(), "some text")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAIInvocation)
	assert.Equal(t, maxCallRetries, ai.callCount())
}

func TestExtractMetadataBestEffort(t *testing.T) {
	ai := &stubAI{respond: func(string) (string, error) { return "", errors.New("boom") }}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	meta := analyzer.ExtractMetadata(context.Background(), "some text")
	assert.Equal(t, ReceiptMetadata{}, meta)
}

func TestAnalyzeLinesOrderAndFiltering(t *testing.T) {
	rawText := strings.Join([]string{
		"REWE Markt GmbH",
		"K.Eier 2.49",
		"Milch 1.19",
		"Spuelmittel 1.99",
		"SUMME 5.67",
		"Cola 1.29",
		"garbage line",
	}, "\n")

	ai := &stubAI{respond: func(prompt string) (string, error) {
		switch lastPromptLine(prompt) {
		case "REWE Markt GmbH", "SUMME 5.67":
			return "IGNORE", nil
		case "K.Eier 2.49":
			return "K.Eier | Eggs | 2.49 | true | Fresh Food | protein", nil
		case "Milch 1.19":
			return "Milch | Milk | 1.19 | true | Fresh Food | calcium", nil
		case "Spuelmittel 1.99":
			return "Spuelmittel | Dish Soap | 1.99 | false | Other | EMPTY", nil
		case "Cola 1.29":
			return "Cola | Cola | 1.29 | true | High Sugar | EMPTY", nil
		default:
			return "sorry, no idea", nil
		}
	}}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	items, err := analyzer.AnalyzeLines(context.Background(), rawText)
	require.NoError(t, err)

	// 7 lines, 2 ignored, 1 malformed: 4 items in original line order.
	require.Len(t, items, 4)
	assert.Equal(t, "K.Eier", items[0].OriginalLabel)
	assert.Equal(t, "Milch", items[1].OriginalLabel)
	assert.Equal(t, "Spuelmittel", items[2].OriginalLabel)
	assert.Equal(t, "Cola", items[3].OriginalLabel)

	assert.Equal(t, 7, ai.callCount())
}

func TestAnalyzeLinesBoundedConcurrency(t *testing.T) {
	lines := make([]string, 0, lineBatchSize*2+3)
	for i := 0; i < cap(lines); i++ {
		lines = append(lines, fmt.Sprintf("Item %d 1.00", i))
	}

	ai := &stubAI{
		delay: 10 * time.Millisecond,
		respond: func(string) (string, error) {
			return "IGNORE", nil
		},
	}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	_, err := analyzer.AnalyzeLines(context.Background(), strings.Join(lines, "\n"))
	require.NoError(t, err)

	assert.Equal(t, len(lines), ai.callCount())
	assert.LessOrEqual(t, ai.maxInflight, lineBatchSize)
}

func TestAnalyzeLinesSkipsFailingLine(t *testing.T) {
	rawText := "K.Eier 2.49\nMilch 1.19"

	ai := &stubAI{respond: func(prompt string) (string, error) {
		if lastPromptLine(prompt) == "Milch 1.19" {
			return "", errors.New("boom")
		}
		return "K.Eier | Eggs | 2.49 | true | Fresh Food | EMPTY", nil
	}}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	items, err := analyzer.AnalyzeLines(context.Background(), rawText)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "K.Eier", items[0].OriginalLabel)
}

func TestAnalyzeLinesAllFailed(t *testing.T) {
	ai := &stubAI{respond: func(string) (string, error) { return "", errors.New("boom") }}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	_, err := analyzer.AnalyzeLines(context.Background(), "K.Eier 2.49\nMilch 1.19")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAIInvocation)
}

func TestAnalyzeLinesEmptyText(t *testing.T) {
	ai := &stubAI{respond: func(string) (string, error) { return "IGNORE", nil }}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop())

	items, err := analyzer.AnalyzeLines(context.Background(), "\n\n  \n")
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, ai.callCount())
}

func TestCallWithRetryRespectsContext(t *testing.T) {
	ai := &stubAI{respond: func(string) (string, error) { return "", errors.New("boom") }}
	analyzer := NewReceiptAnalyzer(ai, zap.NewNop()).(*receiptAnalyzer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := analyzer.callWithRetry(ctx, "prompt")
	assert.ErrorIs(t, err, context.Canceled)
}
