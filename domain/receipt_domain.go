package domain

import (
	"errors"
	"mime/multipart"
	"time"

	"github.com/MVictoriaDoll/NutriChoice/entities"
)

var (
	MessageSuccessUploadReceipt = "receipt uploaded and processed successfully"
	MessageSuccessGetReceipt    = "receipt retrieved successfully"
	MessageSuccessGetReceipts   = "receipts retrieved successfully"
	MessageSuccessVerifyReceipt = "receipt verified and finalized"
	MessageSuccessGetSummary    = "nutrition summary retrieved successfully"

	MessageFailedUploadReceipt = "failed to upload receipt"
	MessageFailedGetReceipt    = "failed to retrieve receipt"
	MessageFailedVerifyReceipt = "failed to verify receipt"
	MessageFailedGetSummary    = "failed to retrieve nutrition summary"

	ErrExtractionFailed   = errors.New("could not extract any text from the document")
	ErrNotAReceipt        = errors.New("uploaded document is not a readable grocery receipt")
	ErrReceiptNotFound    = errors.New("receipt not found")
	ErrSummaryNotFound    = errors.New("no nutrition summary found")
	ErrAIInvocation       = errors.New("ai model invocation failed")
	ErrInvalidFileType    = errors.New("invalid file type, only JPEG, PNG or PDF are allowed")
	ErrFileTooLarge       = errors.New("uploaded file exceeds the 5MB limit")
	ErrUnauthorizedAccess = errors.New("unauthorized access to receipt")
)

// MaxReceiptFileSize caps uploads at 5MB, enforced before any pipeline work.
const MaxReceiptFileSize = 5 * 1024 * 1024

// AllowedReceiptMimeTypes are the document types the pipeline accepts.
var AllowedReceiptMimeTypes = []string{"image/jpeg", "image/png", "application/pdf"}

type (
	UploadReceiptRequest struct {
		ReceiptFile *multipart.FileHeader `json:"receiptFile" form:"receiptFile" validate:"required"`
	}

	VerifyItemRequest struct {
		OriginalBillLabel string   `json:"originalBillLabel" validate:"required"`
		AiSuggestedName   string   `json:"aiSuggestedName"`
		Price             float64  `json:"price" validate:"min=0"`
		IsFoodItem        bool     `json:"isFoodItem"`
		Classification    string   `json:"classification" validate:"omitempty,oneof='Fresh Food' 'Processed' 'High Sugar' 'Good Nutri-Score' 'Other'"`
		NutritionDetails  []string `json:"nutritionDetails"`
	}

	VerifyReceiptRequest struct {
		Items        []VerifyItemRequest `json:"items" validate:"required,dive"`
		FeedbackNote string              `json:"aiFeedbackReceipt"`
	}

	ItemResponse struct {
		ID                string   `json:"id"`
		OriginalBillLabel string   `json:"originalBillLabel"`
		AiSuggestedName   string   `json:"aiSuggestedName"`
		Price             float64  `json:"price"`
		IsFoodItem        bool     `json:"isFoodItem"`
		Classification    string   `json:"classification"`
		NutritionDetails  []string `json:"nutritionDetails,omitempty"`
	}

	ReceiptResponse struct {
		ID               string                    `json:"id"`
		PurchaseDate     time.Time                 `json:"purchaseDate"`
		TotalAmount      float64                   `json:"totalAmount"`
		Currency         string                    `json:"currency"`
		Status           string                    `json:"status"`
		ImageURL         string                    `json:"imageUrl,omitempty"`
		FeedbackNote     string                    `json:"aiFeedbackReceipt,omitempty"`
		Items            []ItemResponse            `json:"items"`
		NutritionSummary entities.NutritionSummary `json:"nutritionSummary"`
	}

	UserNutritionSummaryResponse struct {
		NutritionScore           float64 `json:"nutritionScore"`
		FreshFoodsPercentage     float64 `json:"freshFoodsPercentage"`
		HighSugarItemsPercentage float64 `json:"highSugarItemsPercentage"`
		ProcessedFoodPercentage  float64 `json:"processedFoodPercentage"`
		GoodNutriScorePercentage float64 `json:"goodNutriScorePercentage"`
		OverallAiFeedback        string  `json:"overallAiFeedback"`
	}
)
