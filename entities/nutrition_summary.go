package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// NutritionSummary is the derived score and category percentages for one
// receipt. It is stored as a jsonb column; Scan validates persisted data
// instead of trusting it, so a malformed or truncated blob degrades to
// zero values rather than poisoning downstream aggregation.
type NutritionSummary struct {
	NutritionScore           float64 `json:"nutritionScore"`
	FreshFoodsPercentage     float64 `json:"freshFoodsPercentage"`
	HighSugarItemsPercentage float64 `json:"highSugarItemsPercentage"`
	ProcessedFoodPercentage  float64 `json:"processedFoodPercentage"`
	GoodNutriScorePercentage float64 `json:"goodNutriScorePercentage"`
}

func (s NutritionSummary) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *NutritionSummary) Scan(value interface{}) error {
	if value == nil {
		*s = NutritionSummary{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for nutrition summary", value)
	}

	var parsed NutritionSummary
	if err := json.Unmarshal(raw, &parsed); err != nil {
		*s = NutritionSummary{}
		return nil
	}

	parsed.clamp()
	*s = parsed
	return nil
}

// clamp coerces out-of-range persisted values back into the documented
// domain: percentages in [0, 100], score in [-200, 200].
func (s *NutritionSummary) clamp() {
	s.FreshFoodsPercentage = clampRange(s.FreshFoodsPercentage, 0, 100)
	s.HighSugarItemsPercentage = clampRange(s.HighSugarItemsPercentage, 0, 100)
	s.ProcessedFoodPercentage = clampRange(s.ProcessedFoodPercentage, 0, 100)
	s.GoodNutriScorePercentage = clampRange(s.GoodNutriScorePercentage, 0, 100)
	s.NutritionScore = clampRange(s.NutritionScore, -200, 200)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// JSONMap is a free-form jsonb column (user preferences).
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*m = JSONMap{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for json map", value)
	}

	var parsed JSONMap
	if err := json.Unmarshal(raw, &parsed); err != nil {
		*m = JSONMap{}
		return nil
	}
	*m = parsed
	return nil
}

// StringList is an ordered list of strings stored as jsonb (nutrition notes).
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for string list", value)
	}

	var parsed []string
	if err := json.Unmarshal(raw, &parsed); err != nil {
		*l = nil
		return nil
	}
	*l = parsed
	return nil
}
