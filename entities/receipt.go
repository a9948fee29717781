package entities

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReceiptStatusProcessed = "processed"
	ReceiptStatusVerified  = "verified"
)

// Coarse nutrition buckets assigned to food items. Non-food items are
// always ClassificationOther.
const (
	ClassificationFreshFood      = "Fresh Food"
	ClassificationProcessed      = "Processed"
	ClassificationHighSugar      = "High Sugar"
	ClassificationGoodNutriScore = "Good Nutri-Score"
	ClassificationOther          = "Other"
)

type Receipt struct {
	ID              uuid.UUID        `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	UserID          uuid.UUID        `gorm:"index" json:"userId"`
	PurchaseDate    time.Time        `gorm:"type:timestamp" json:"purchaseDate"`
	TotalAmount     float64          `json:"totalAmount"`
	Currency        string           `json:"currency"`
	ImageURL        string           `json:"imageUrl,omitempty"`
	OriginalRawText string           `gorm:"type:text" json:"originalRawText,omitempty"`
	Status          string           `json:"status"` // "processed", "verified"
	FeedbackNote    string           `gorm:"type:text" json:"aiFeedbackReceipt,omitempty"`
	Summary         NutritionSummary `gorm:"type:jsonb" json:"nutritionSummary"`

	User  *User   `gorm:"foreignKey:UserID" json:"-"`
	Items []*Item `gorm:"foreignKey:ReceiptID;constraint:OnDelete:CASCADE" json:"items"`
	Timestamp
}

type Item struct {
	ID                uuid.UUID  `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	ReceiptID         uuid.UUID  `gorm:"index" json:"receiptId"`
	OriginalBillLabel string     `json:"originalBillLabel"`
	AiSuggestedName   string     `json:"aiSuggestedName"`
	Price             float64    `json:"price"`
	IsFoodItem        bool       `json:"isFoodItem"`
	Classification    string     `json:"classification"`
	NutritionDetails  StringList `gorm:"type:jsonb" json:"nutritionDetails,omitempty"`
	ManualCorrection  bool       `json:"manualCorrection"`

	Receipt *Receipt `gorm:"foreignKey:ReceiptID" json:"-"`
	Timestamp
}

type UserNutritionSummary struct {
	ID                       uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"-"`
	UserID                   uuid.UUID `gorm:"uniqueIndex" json:"-"`
	NutritionScore           float64   `json:"nutritionScore"`
	FreshFoodsPercentage     float64   `json:"freshFoodsPercentage"`
	HighSugarItemsPercentage float64   `json:"highSugarItemsPercentage"`
	ProcessedFoodPercentage  float64   `json:"processedFoodPercentage"`
	GoodNutriScorePercentage float64   `json:"goodNutriScorePercentage"`
	OverallAiFeedback        string    `json:"overallAiFeedback"`

	User *User `gorm:"foreignKey:UserID" json:"-"`
	Timestamp
}
