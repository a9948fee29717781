package receipt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/entities"
	"github.com/MVictoriaDoll/NutriChoice/internal/utils/storage"
	"github.com/MVictoriaDoll/NutriChoice/pkg/extraction"
)

type (
	ReceiptService interface {
		UploadReceipt(ctx context.Context, req domain.UploadReceiptRequest, userID string) (domain.ReceiptResponse, error)
		GetReceiptByID(ctx context.Context, id string, userID string) (domain.ReceiptResponse, error)
		GetReceipts(ctx context.Context, userID string) ([]domain.ReceiptResponse, error)
		VerifyReceipt(ctx context.Context, id string, req domain.VerifyReceiptRequest, userID string) (domain.ReceiptResponse, error)
		GetUserSummary(ctx context.Context, userID string) (domain.UserNutritionSummaryResponse, error)
	}

	receiptService struct {
		receiptRepository ReceiptRepository
		analyzer          ReceiptAnalyzer
		extractor         extraction.TextExtractor
		s3                storage.AwsS3
		logger            *zap.Logger

		// userLocks serializes aggregate recomputation per user; two
		// concurrent writes for the same user racing on the read-then-write
		// recompute would otherwise lose an update.
		userLocks sync.Map
	}
)

const defaultCurrency = "EUR"

func NewReceiptService(receiptRepository ReceiptRepository, analyzer ReceiptAnalyzer, extractor extraction.TextExtractor, s3 storage.AwsS3, logger *zap.Logger) ReceiptService {
	return &receiptService{
		receiptRepository: receiptRepository,
		analyzer:          analyzer,
		extractor:         extractor,
		s3:                s3,
		logger:            logger,
	}
}

func (s *receiptService) lockUser(userID string) func() {
	value, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *receiptService) UploadReceipt(ctx context.Context, req domain.UploadReceiptRequest, userID string) (domain.ReceiptResponse, error) {
	userUUID, err := uuid.Parse(userID)
	if err != nil {
		return domain.ReceiptResponse{}, domain.ErrParseUUID
	}

	data, mimeType, err := readUpload(req.ReceiptFile)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	rawText, err := s.extractor.ExtractText(ctx, data, mimeType)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	// Validation gate: one cheap call before the expensive chunked analysis.
	isReceipt, err := s.analyzer.IsGroceryReceipt(ctx, rawText)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	if !isReceipt {
		return domain.ReceiptResponse{}, domain.ErrNotAReceipt
	}

	// Metadata and line analysis are independent reads of the same raw
	// text; run them concurrently and join before assembling.
	var (
		meta  ReceiptMetadata
		items []AnalyzedItem
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		meta = s.analyzer.ExtractMetadata(gctx, rawText)
		return nil
	})
	g.Go(func() error {
		var analyzeErr error
		items, analyzeErr = s.analyzer.AnalyzeLines(gctx, rawText)
		return analyzeErr
	})
	if err := g.Wait(); err != nil {
		return domain.ReceiptResponse{}, err
	}

	receiptID := uuid.New()
	imageURL := s.storeDocument(receiptID, req.ReceiptFile)

	receipt := assembleReceipt(receiptID, userUUID, meta, items, rawText, imageURL)

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.receiptRepository.SaveNewReceipt(ctx, receipt); err != nil {
		return domain.ReceiptResponse{}, err
	}

	s.logger.Info("receipt processed",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("user_id", userID),
		zap.Int("items", len(receipt.Items)),
	)

	return toReceiptResponse(receipt), nil
}

// storeDocument uploads the original document for later display. Storage
// failure must not lose an already analyzed receipt, so it degrades to an
// empty link.
func (s *receiptService) storeDocument(receiptID uuid.UUID, file *multipart.FileHeader) string {
	if s.s3 == nil {
		return ""
	}

	fileName := fmt.Sprintf("receipt-%s", receiptID.String())
	objectKey, err := s.s3.UploadFile(fileName, file, "receipts", storage.AllowDocument...)
	if err != nil {
		s.logger.Warn("receipt document upload failed", zap.Error(err))
		return ""
	}
	return s.s3.GetPublicLinkKey(objectKey)
}

// assembleReceipt is the pure merge of the metadata and line-analysis
// results into one structured receipt record, not yet persisted.
func assembleReceipt(receiptID, userUUID uuid.UUID, meta ReceiptMetadata, analyzed []AnalyzedItem, rawText, imageURL string) *entities.Receipt {
	purchaseDate := meta.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}
	currency := meta.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	items := make([]*entities.Item, 0, len(analyzed))
	for _, a := range analyzed {
		items = append(items, &entities.Item{
			ID:                uuid.New(),
			ReceiptID:         receiptID,
			OriginalBillLabel: a.OriginalLabel,
			AiSuggestedName:   a.SuggestedName,
			Price:             a.Price,
			IsFoodItem:        a.IsFoodItem,
			Classification:    a.Classification,
			NutritionDetails:  a.NutritionNotes,
		})
	}

	return &entities.Receipt{
		ID:              receiptID,
		UserID:          userUUID,
		PurchaseDate:    purchaseDate,
		TotalAmount:     meta.TotalAmount,
		Currency:        currency,
		ImageURL:        imageURL,
		OriginalRawText: rawText,
		Status:          entities.ReceiptStatusProcessed,
		FeedbackNote:    "Initial AI analysis complete. Verify items",
		Summary:         SummaryFromItems(items),
		Items:           items,
	}
}

func (s *receiptService) GetReceiptByID(ctx context.Context, id string, userID string) (domain.ReceiptResponse, error) {
	receipt, err := s.ownedReceipt(ctx, id, userID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}
	return toReceiptResponse(receipt), nil
}

func (s *receiptService) GetReceipts(ctx context.Context, userID string) ([]domain.ReceiptResponse, error) {
	receipts, err := s.receiptRepository.GetReceiptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	responses := make([]domain.ReceiptResponse, 0, len(receipts))
	for _, r := range receipts {
		responses = append(responses, toReceiptResponse(r))
	}
	return responses, nil
}

func (s *receiptService) VerifyReceipt(ctx context.Context, id string, req domain.VerifyReceiptRequest, userID string) (domain.ReceiptResponse, error) {
	receipt, err := s.ownedReceipt(ctx, id, userID)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	items := make([]*entities.Item, 0, len(req.Items))
	for _, corrected := range req.Items {
		item := &entities.Item{
			ID:                uuid.New(),
			ReceiptID:         receipt.ID,
			OriginalBillLabel: corrected.OriginalBillLabel,
			AiSuggestedName:   corrected.AiSuggestedName,
			Price:             corrected.Price,
			IsFoodItem:        corrected.IsFoodItem,
			Classification:    corrected.Classification,
			NutritionDetails:  corrected.NutritionDetails,
			ManualCorrection:  true,
		}
		if item.Classification == "" {
			item.Classification = entities.ClassificationOther
		}
		if !item.IsFoodItem {
			item.Classification = entities.ClassificationOther
			item.NutritionDetails = nil
		}
		items = append(items, item)
	}

	// The summary is derived data; it is always recomputed from the
	// corrected items, never taken from the client.
	summary := SummaryFromItems(items)

	unlock := s.lockUser(userID)
	defer unlock()

	if err := s.receiptRepository.ReplaceItemsAndVerify(ctx, receipt, items, summary, req.FeedbackNote); err != nil {
		return domain.ReceiptResponse{}, err
	}

	updated, err := s.receiptRepository.GetReceiptByID(ctx, id)
	if err != nil {
		return domain.ReceiptResponse{}, err
	}

	s.logger.Info("receipt verified",
		zap.String("receipt_id", id),
		zap.String("user_id", userID),
		zap.Int("items", len(items)),
	)

	return toReceiptResponse(updated), nil
}

func (s *receiptService) GetUserSummary(ctx context.Context, userID string) (domain.UserNutritionSummaryResponse, error) {
	summary, err := s.receiptRepository.GetUserSummary(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserNutritionSummaryResponse{}, domain.ErrSummaryNotFound
		}
		return domain.UserNutritionSummaryResponse{}, err
	}

	return domain.UserNutritionSummaryResponse{
		NutritionScore:           summary.NutritionScore,
		FreshFoodsPercentage:     summary.FreshFoodsPercentage,
		HighSugarItemsPercentage: summary.HighSugarItemsPercentage,
		ProcessedFoodPercentage:  summary.ProcessedFoodPercentage,
		GoodNutriScorePercentage: summary.GoodNutriScorePercentage,
		OverallAiFeedback:        summary.OverallAiFeedback,
	}, nil
}

// ownedReceipt loads a receipt and enforces ownership. A receipt that exists
// but belongs to someone else is reported exactly like a missing one.
func (s *receiptService) ownedReceipt(ctx context.Context, id string, userID string) (*entities.Receipt, error) {
	receipt, err := s.receiptRepository.GetReceiptByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReceiptNotFound
		}
		return nil, err
	}

	if receipt.UserID.String() != userID {
		return nil, domain.ErrReceiptNotFound
	}
	return receipt, nil
}

func readUpload(file *multipart.FileHeader) ([]byte, string, error) {
	if file.Size > domain.MaxReceiptFileSize {
		return nil, "", domain.ErrFileTooLarge
	}

	mimeType := file.Header.Get("Content-Type")
	allowed := false
	for _, t := range domain.AllowedReceiptMimeTypes {
		if mimeType == t {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, "", domain.ErrInvalidFileType
	}

	f, err := file.Open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, mimeType, nil
}

func toReceiptResponse(receipt *entities.Receipt) domain.ReceiptResponse {
	items := make([]domain.ItemResponse, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		items = append(items, domain.ItemResponse{
			ID:                item.ID.String(),
			OriginalBillLabel: item.OriginalBillLabel,
			AiSuggestedName:   item.AiSuggestedName,
			Price:             item.Price,
			IsFoodItem:        item.IsFoodItem,
			Classification:    item.Classification,
			NutritionDetails:  item.NutritionDetails,
		})
	}

	return domain.ReceiptResponse{
		ID:               receipt.ID.String(),
		PurchaseDate:     receipt.PurchaseDate,
		TotalAmount:      receipt.TotalAmount,
		Currency:         receipt.Currency,
		Status:           receipt.Status,
		ImageURL:         receipt.ImageURL,
		FeedbackNote:     receipt.FeedbackNote,
		Items:            items,
		NutritionSummary: receipt.Summary,
	}
}
