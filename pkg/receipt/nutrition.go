package receipt

import (
	"github.com/MVictoriaDoll/NutriChoice/entities"
)

// Feedback messages chosen by the threshold cascade in AggregateUserSummary.
const (
	FeedbackDefault       = "Keep up the good work!"
	FeedbackTooProcessed  = "Try to cut down on processed foods in your next shop."
	FeedbackNeedMoreFresh = "Add more fresh foods like fruits and vegetables to your basket."
	FeedbackTooMuchSugar  = "Watch out for high sugar items creeping into your cart."
)

// SummaryFromItems computes the per-receipt nutrition summary. The
// denominator is the count of food items only; a receipt with no food items
// yields an all-zero summary. Classification of non-food items is ignored
// even if a producer failed to enforce the pairing.
func SummaryFromItems(items []*entities.Item) entities.NutritionSummary {
	var foodCount, fresh, processed, highSugar, goodNutri int

	for _, item := range items {
		if !item.IsFoodItem {
			continue
		}
		foodCount++

		switch item.Classification {
		case entities.ClassificationFreshFood:
			fresh++
		case entities.ClassificationProcessed:
			processed++
		case entities.ClassificationHighSugar:
			highSugar++
		case entities.ClassificationGoodNutriScore:
			goodNutri++
		}
	}

	if foodCount == 0 {
		return entities.NutritionSummary{}
	}

	summary := entities.NutritionSummary{
		FreshFoodsPercentage:     percentage(fresh, foodCount),
		ProcessedFoodPercentage:  percentage(processed, foodCount),
		HighSugarItemsPercentage: percentage(highSugar, foodCount),
		GoodNutriScorePercentage: percentage(goodNutri, foodCount),
	}
	summary.NutritionScore = summary.FreshFoodsPercentage + summary.GoodNutriScorePercentage -
		(summary.ProcessedFoodPercentage + summary.HighSugarItemsPercentage)

	return summary
}

func percentage(count, total int) float64 {
	return float64(count) / float64(total) * 100
}

// AggregateUserSummary recomputes the per-user aggregate from scratch over
// all qualifying receipts: the arithmetic mean of each receipt's already
// normalized summary fields (mean of means, not re-weighted by item count).
// Zero qualifying receipts yield all zeros and the default feedback.
func AggregateUserSummary(receipts []*entities.Receipt) entities.UserNutritionSummary {
	aggregate := entities.UserNutritionSummary{
		OverallAiFeedback: FeedbackDefault,
	}

	if len(receipts) == 0 {
		return aggregate
	}

	for _, r := range receipts {
		aggregate.NutritionScore += r.Summary.NutritionScore
		aggregate.FreshFoodsPercentage += r.Summary.FreshFoodsPercentage
		aggregate.HighSugarItemsPercentage += r.Summary.HighSugarItemsPercentage
		aggregate.ProcessedFoodPercentage += r.Summary.ProcessedFoodPercentage
		aggregate.GoodNutriScorePercentage += r.Summary.GoodNutriScorePercentage
	}

	n := float64(len(receipts))
	aggregate.NutritionScore /= n
	aggregate.FreshFoodsPercentage /= n
	aggregate.HighSugarItemsPercentage /= n
	aggregate.ProcessedFoodPercentage /= n
	aggregate.GoodNutriScorePercentage /= n

	aggregate.OverallAiFeedback = selectFeedback(aggregate)
	return aggregate
}

// selectFeedback applies the threshold rules in fixed priority order; each
// later rule overrides the previous match, so only the last triggered rule's
// message survives.
func selectFeedback(aggregate entities.UserNutritionSummary) string {
	feedback := FeedbackDefault

	if aggregate.ProcessedFoodPercentage > 30 {
		feedback = FeedbackTooProcessed
	}
	if aggregate.FreshFoodsPercentage < 50 {
		feedback = FeedbackNeedMoreFresh
	}
	if aggregate.HighSugarItemsPercentage > 20 {
		feedback = FeedbackTooMuchSugar
	}

	return feedback
}
