package entities

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:uuid_generate_v4()" json:"id"`
	DisplayName string    `json:"displayName"`
	Preferences JSONMap   `gorm:"type:jsonb;default:'{}'" json:"preferences"`
	LastLogin   time.Time `gorm:"type:timestamp" json:"lastLogin"`

	Receipts         []*Receipt            `gorm:"foreignKey:UserID" json:"-"`
	NutritionSummary *UserNutritionSummary `gorm:"foreignKey:UserID" json:"nutritionSummary,omitempty"`
	Timestamp
}
