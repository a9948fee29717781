package receipt

import (
	"strconv"
	"strings"
	"time"

	"github.com/MVictoriaDoll/NutriChoice/entities"
	"github.com/MVictoriaDoll/NutriChoice/pkg/ai"
)

// AnalyzedItem is the structured result for one purchased item line.
type AnalyzedItem struct {
	OriginalLabel  string
	SuggestedName  string
	Price          float64
	IsFoodItem     bool
	Classification string
	NutritionNotes []string
}

// LineOutcome tags the parse result of one model response so callers
// switch on it instead of guessing from field presence.
type LineOutcome int

const (
	LineOK LineOutcome = iota
	LineIgnored
	LineMalformed
)

type LineResult struct {
	Outcome LineOutcome
	Item    AnalyzedItem
	Raw     string
}

// ignoreSentinel marks non-item lines (subtotals, tax, store address).
const ignoreSentinel = "IGNORE"

// emptyNutritionToken is what the model emits when nutrition notes do not apply.
const emptyNutritionToken = "EMPTY"

const lineFieldCount = 6

// ParseLineResponse applies the per-line contract: the literal IGNORE
// sentinel, or exactly six pipe-delimited fields in fixed order
// originalBillLabel|aiSuggestedName|price|isFoodItem|classification|nutritionDetails.
// Anything else is malformed and must be discarded by the caller, never thrown.
func ParseLineResponse(raw string) LineResult {
	trimmed := strings.TrimSpace(ai.StripCodeFences(raw))

	if strings.EqualFold(trimmed, ignoreSentinel) {
		return LineResult{Outcome: LineIgnored, Raw: raw}
	}

	fields := strings.Split(trimmed, "|")
	if len(fields) != lineFieldCount {
		return LineResult{Outcome: LineMalformed, Raw: raw}
	}

	item := AnalyzedItem{
		OriginalLabel:  strings.TrimSpace(fields[0]),
		SuggestedName:  strings.TrimSpace(fields[1]),
		Price:          parsePrice(fields[2]),
		IsFoodItem:     strings.EqualFold(strings.TrimSpace(fields[3]), "true"),
		Classification: normalizeClassification(fields[4]),
		NutritionNotes: parseNutritionNotes(fields[5]),
	}

	// Classification and nutrition notes are meaningless for non-food items;
	// enforce the pairing at the producer so consumers cannot observe a
	// half-classified non-food item.
	if !item.IsFoodItem {
		item.Classification = entities.ClassificationOther
		item.NutritionNotes = nil
	}

	return LineResult{Outcome: LineOK, Item: item, Raw: raw}
}

func parsePrice(field string) float64 {
	price, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil || price < 0 {
		return 0
	}
	return price
}

func normalizeClassification(field string) string {
	value := strings.TrimSpace(field)
	switch value {
	case entities.ClassificationFreshFood,
		entities.ClassificationProcessed,
		entities.ClassificationHighSugar,
		entities.ClassificationGoodNutriScore,
		entities.ClassificationOther:
		return value
	}
	return entities.ClassificationOther
}

func parseNutritionNotes(field string) []string {
	value := strings.TrimSpace(field)
	if value == "" || strings.EqualFold(value, emptyNutritionToken) {
		return nil
	}

	var notes []string
	for _, part := range strings.Split(value, ",") {
		if note := strings.TrimSpace(part); note != "" {
			notes = append(notes, note)
		}
	}
	return notes
}

// ReceiptMetadata holds the best-effort purchase metadata. Zero values mean
// the model could not find the field; the assembler applies defaults.
type ReceiptMetadata struct {
	PurchaseDate time.Time
	TotalAmount  float64
	Currency     string
}

// ParseMetadataResponse reads the fixed "key: value" line format. Unmatched
// lines are silently ignored; missing fields stay at their zero value.
func ParseMetadataResponse(raw string) ReceiptMetadata {
	var meta ReceiptMetadata

	for _, line := range strings.Split(ai.StripCodeFences(raw), "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)

		switch {
		case strings.HasPrefix(lower, "purchasedate:"):
			value := strings.TrimSpace(line[len("purchasedate:"):])
			if date, err := time.Parse("2006-01-02", value); err == nil {
				meta.PurchaseDate = date
			}
		case strings.HasPrefix(lower, "totalamount:"):
			value := strings.TrimSpace(line[len("totalamount:"):])
			if amount, err := strconv.ParseFloat(value, 64); err == nil && amount >= 0 {
				meta.TotalAmount = amount
			}
		case strings.HasPrefix(lower, "currency:"):
			meta.Currency = strings.TrimSpace(line[len("currency:"):])
		}
	}

	return meta
}

// splitNonEmptyLines breaks raw receipt text into the candidate lines fed to
// the line analyzer.
func splitNonEmptyLines(rawText string) []string {
	var lines []string
	for _, line := range strings.Split(rawText, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
