package receipt

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/MVictoriaDoll/NutriChoice/entities"
)

type (
	ReceiptRepository interface {
		// SaveNewReceipt persists a freshly assembled receipt with its items
		// and recomputes the owning user's aggregate, all in one transaction.
		SaveNewReceipt(ctx context.Context, receipt *entities.Receipt) error

		// ReplaceItemsAndVerify atomically swaps the receipt's entire item
		// set, stores the recomputed summary, marks the receipt verified and
		// recomputes the user aggregate. Partial application is never
		// observable.
		ReplaceItemsAndVerify(ctx context.Context, receipt *entities.Receipt, items []*entities.Item, summary entities.NutritionSummary, feedbackNote string) error

		GetReceiptByID(ctx context.Context, id string) (*entities.Receipt, error)
		GetReceiptsByUser(ctx context.Context, userID string) ([]*entities.Receipt, error)
		GetUserSummary(ctx context.Context, userID string) (*entities.UserNutritionSummary, error)
	}

	receiptRepository struct {
		db *gorm.DB
	}
)

func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{db: db}
}

func (r *receiptRepository) SaveNewReceipt(ctx context.Context, receipt *entities.Receipt) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(receipt).Error; err != nil {
			return err
		}
		return recomputeUserSummary(tx, receipt.UserID)
	})
}

func (r *receiptRepository) ReplaceItemsAndVerify(ctx context.Context, receipt *entities.Receipt, items []*entities.Item, summary entities.NutritionSummary, feedbackNote string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Delete-all then recreate: a shrinking edit must not leave stale
		// items behind.
		if err := tx.Where("receipt_id = ?", receipt.ID).Delete(&entities.Item{}).Error; err != nil {
			return err
		}

		if len(items) > 0 {
			if err := tx.Create(items).Error; err != nil {
				return err
			}
		}

		updates := map[string]interface{}{
			"summary":       summary,
			"feedback_note": feedbackNote,
			"status":        entities.ReceiptStatusVerified,
		}
		if err := tx.Model(&entities.Receipt{}).Where("id = ?", receipt.ID).Updates(updates).Error; err != nil {
			return err
		}

		return recomputeUserSummary(tx, receipt.UserID)
	})
}

func (r *receiptRepository) GetReceiptByID(ctx context.Context, id string) (*entities.Receipt, error) {
	var receipt entities.Receipt
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&receipt).Error; err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *receiptRepository) GetReceiptsByUser(ctx context.Context, userID string) ([]*entities.Receipt, error) {
	var receipts []*entities.Receipt
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("purchase_date desc").
		Find(&receipts).Error; err != nil {
		return nil, err
	}
	return receipts, nil
}

func (r *receiptRepository) GetUserSummary(ctx context.Context, userID string) (*entities.UserNutritionSummary, error) {
	var summary entities.UserNutritionSummary
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&summary).Error; err != nil {
		return nil, err
	}
	return &summary, nil
}

// recomputeUserSummary rebuilds the per-user aggregate from scratch inside
// the caller's transaction, so the aggregate can never be stale relative to
// the receipt write that triggered it.
func recomputeUserSummary(tx *gorm.DB, userID uuid.UUID) error {
	var receipts []*entities.Receipt
	if err := tx.
		Where("user_id = ? AND status IN ?", userID, []string{entities.ReceiptStatusProcessed, entities.ReceiptStatusVerified}).
		Find(&receipts).Error; err != nil {
		return err
	}

	aggregate := AggregateUserSummary(receipts)

	var existing entities.UserNutritionSummary
	err := tx.Where("user_id = ?", userID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		aggregate.ID = uuid.New()
		aggregate.UserID = userID
		return tx.Create(&aggregate).Error
	case err != nil:
		return err
	}

	return tx.Model(&entities.UserNutritionSummary{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"nutrition_score":             aggregate.NutritionScore,
			"fresh_foods_percentage":      aggregate.FreshFoodsPercentage,
			"high_sugar_items_percentage": aggregate.HighSugarItemsPercentage,
			"processed_food_percentage":   aggregate.ProcessedFoodPercentage,
			"good_nutri_score_percentage": aggregate.GoodNutriScorePercentage,
			"overall_ai_feedback":         aggregate.OverallAiFeedback,
		}).Error
}
