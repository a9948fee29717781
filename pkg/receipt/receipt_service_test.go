package receipt

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MVictoriaDoll/NutriChoice/domain"
	"github.com/MVictoriaDoll/NutriChoice/entities"
)

type stubRepository struct {
	saved    *entities.Receipt
	existing *entities.Receipt

	replacedItems    []*entities.Item
	replacedSummary  entities.NutritionSummary
	replacedFeedback string
}

func (r *stubRepository) SaveNewReceipt(ctx context.Context, receipt *entities.Receipt) error {
	r.saved = receipt
	return nil
}

func (r *stubRepository) ReplaceItemsAndVerify(ctx context.Context, receipt *entities.Receipt, items []*entities.Item, summary entities.NutritionSummary, feedbackNote string) error {
	r.replacedItems = items
	r.replacedSummary = summary
	r.replacedFeedback = feedbackNote
	r.existing.Items = items
	r.existing.Summary = summary
	r.existing.FeedbackNote = feedbackNote
	r.existing.Status = entities.ReceiptStatusVerified
	return nil
}

func (r *stubRepository) GetReceiptByID(ctx context.Context, id string) (*entities.Receipt, error) {
	if r.existing == nil || r.existing.ID.String() != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.existing, nil
}

func (r *stubRepository) GetReceiptsByUser(ctx context.Context, userID string) ([]*entities.Receipt, error) {
	if r.existing != nil && r.existing.UserID.String() == userID {
		return []*entities.Receipt{r.existing}, nil
	}
	return nil, nil
}

func (r *stubRepository) GetUserSummary(ctx context.Context, userID string) (*entities.UserNutritionSummary, error) {
	return &entities.UserNutritionSummary{OverallAiFeedback: FeedbackDefault}, nil
}

type stubAnalyzer struct {
	isReceipt     bool
	classifyErr   error
	meta          ReceiptMetadata
	items         []AnalyzedItem
	analyzeCalled bool
}

func (a *stubAnalyzer) IsGroceryReceipt(ctx context.Context, rawText string) (bool, error) {
	return a.isReceipt, a.classifyErr
}

func (a *stubAnalyzer) ExtractMetadata(ctx context.Context, rawText string) ReceiptMetadata {
	return a.meta
}

func (a *stubAnalyzer) AnalyzeLines(ctx context.Context, rawText string) ([]AnalyzedItem, error) {
	a.analyzeCalled = true
	return a.items, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (e *stubExtractor) ExtractText(ctx context.Context, data []byte, mimeType string) (string, error) {
	return e.text, e.err
}

func makeFileHeader(t *testing.T, filename, contentType string, data []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="receiptFile"; filename=%q`, filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	reader := multipart.NewReader(&buf, writer.Boundary())
	form, err := reader.ReadForm(32 << 20)
	require.NoError(t, err)

	files := form.File["receiptFile"]
	require.Len(t, files, 1)
	return files[0]
}

func newTestService(repo *stubRepository, analyzer *stubAnalyzer, extractor *stubExtractor) ReceiptService {
	return NewReceiptService(repo, analyzer, extractor, nil, zap.NewNop())
}

func TestUploadReceiptHappyPath(t *testing.T) {
	userID := uuid.New()
	repo := &stubRepository{}
	analyzer := &stubAnalyzer{
		isReceipt: true,
		meta: ReceiptMetadata{
			PurchaseDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			TotalAmount:  4.77,
			Currency:     "EUR",
		},
		items: []AnalyzedItem{
			{OriginalLabel: "K.Eier", SuggestedName: "Eggs", Price: 2.49, IsFoodItem: true, Classification: entities.ClassificationFreshFood},
			{OriginalLabel: "Spuelmittel", SuggestedName: "Dish Soap", Price: 1.99, IsFoodItem: false, Classification: entities.ClassificationOther},
		},
	}
	service := newTestService(repo, analyzer, &stubExtractor{text: "K.Eier 2.49\nSpuelmittel 1.99"})

	file := makeFileHeader(t, "receipt.jpg", "image/jpeg", []byte("fake image"))
	res, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, userID.String())
	require.NoError(t, err)

	require.NotNil(t, repo.saved)
	assert.Equal(t, entities.ReceiptStatusProcessed, repo.saved.Status)
	assert.Equal(t, userID, repo.saved.UserID)
	assert.Equal(t, "EUR", repo.saved.Currency)
	assert.Equal(t, 4.77, repo.saved.TotalAmount)
	assert.Equal(t, "Initial AI analysis complete. Verify items", repo.saved.FeedbackNote)
	require.Len(t, repo.saved.Items, 2)
	assert.InDelta(t, 100, repo.saved.Summary.FreshFoodsPercentage, 1e-9)

	assert.Equal(t, entities.ReceiptStatusProcessed, res.Status)
	assert.Len(t, res.Items, 2)
}

func TestUploadReceiptDefaults(t *testing.T) {
	repo := &stubRepository{}
	analyzer := &stubAnalyzer{
		isReceipt: true,
		items: []AnalyzedItem{
			{OriginalLabel: "Milch", IsFoodItem: true, Classification: entities.ClassificationFreshFood},
		},
	}
	service := newTestService(repo, analyzer, &stubExtractor{text: "Milch 1.19"})

	file := makeFileHeader(t, "receipt.png", "image/png", []byte("fake"))
	before := time.Now()
	_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, uuid.NewString())
	require.NoError(t, err)

	// Metadata extraction produced nothing usable; defaults apply.
	assert.Equal(t, "EUR", repo.saved.Currency)
	assert.Zero(t, repo.saved.TotalAmount)
	assert.False(t, repo.saved.PurchaseDate.Before(before))
}

func TestUploadReceiptNotAReceipt(t *testing.T) {
	repo := &stubRepository{}
	analyzer := &stubAnalyzer{isReceipt: false}
	service := newTestService(repo, analyzer, &stubExtractor{text: "Dear customer, your invoice..."})

	file := makeFileHeader(t, "letter.pdf", "application/pdf", []byte("fake"))
	_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, uuid.NewString())

	assert.ErrorIs(t, err, domain.ErrNotAReceipt)
	assert.False(t, analyzer.analyzeCalled, "line analysis must not run after a FALSE verdict")
	assert.Nil(t, repo.saved)
}

func TestUploadReceiptRejectsBadFiles(t *testing.T) {
	service := newTestService(&stubRepository{}, &stubAnalyzer{isReceipt: true}, &stubExtractor{text: "x"})

	t.Run("wrong mime type", func(t *testing.T) {
		file := makeFileHeader(t, "notes.txt", "text/plain", []byte("hello"))
		_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrInvalidFileType)
	})

	t.Run("oversized file", func(t *testing.T) {
		file := &multipart.FileHeader{
			Filename: "huge.jpg",
			Size:     domain.MaxReceiptFileSize + 1,
			Header:   textproto.MIMEHeader{"Content-Type": []string{"image/jpeg"}},
		}
		_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrFileTooLarge)
	})

	t.Run("invalid user id", func(t *testing.T) {
		file := makeFileHeader(t, "receipt.jpg", "image/jpeg", []byte("fake"))
		_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, "not-a-uuid")
		assert.ErrorIs(t, err, domain.ErrParseUUID)
	})
}

func TestUploadReceiptExtractionFailed(t *testing.T) {
	service := newTestService(&stubRepository{}, &stubAnalyzer{isReceipt: true}, &stubExtractor{err: domain.ErrExtractionFailed})

	file := makeFileHeader(t, "receipt.jpg", "image/jpeg", []byte("fake"))
	_, err := service.UploadReceipt(context.Background(), domain.UploadReceiptRequest{ReceiptFile: file}, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrExtractionFailed)
}

func TestVerifyReceiptRecomputesSummary(t *testing.T) {
	userID := uuid.New()
	receiptID := uuid.New()
	repo := &stubRepository{
		existing: &entities.Receipt{
			ID:     receiptID,
			UserID: userID,
			Status: entities.ReceiptStatusProcessed,
		},
	}
	service := newTestService(repo, &stubAnalyzer{}, &stubExtractor{})

	req := domain.VerifyReceiptRequest{
		Items: []domain.VerifyItemRequest{
			{OriginalBillLabel: "K.Eier", AiSuggestedName: "Eggs", Price: 2.49, IsFoodItem: true, Classification: entities.ClassificationFreshFood},
			{OriginalBillLabel: "Cola", AiSuggestedName: "Cola", Price: 1.29, IsFoodItem: true, Classification: entities.ClassificationHighSugar},
		},
		FeedbackNote: "corrected by hand",
	}

	res, err := service.VerifyReceipt(context.Background(), receiptID.String(), req, userID.String())
	require.NoError(t, err)

	require.Len(t, repo.replacedItems, 2)
	for _, item := range repo.replacedItems {
		assert.True(t, item.ManualCorrection)
		assert.Equal(t, receiptID, item.ReceiptID)
	}

	// Summary comes from the corrected items, not from the client.
	assert.InDelta(t, 50, repo.replacedSummary.FreshFoodsPercentage, 1e-9)
	assert.InDelta(t, 50, repo.replacedSummary.HighSugarItemsPercentage, 1e-9)
	assert.InDelta(t, 0, repo.replacedSummary.NutritionScore, 1e-9)
	assert.Equal(t, "corrected by hand", repo.replacedFeedback)

	assert.Equal(t, entities.ReceiptStatusVerified, res.Status)
}

func TestVerifyReceiptEnforcesNonFoodPairing(t *testing.T) {
	userID := uuid.New()
	receiptID := uuid.New()
	repo := &stubRepository{
		existing: &entities.Receipt{ID: receiptID, UserID: userID, Status: entities.ReceiptStatusProcessed},
	}
	service := newTestService(repo, &stubAnalyzer{}, &stubExtractor{})

	req := domain.VerifyReceiptRequest{
		Items: []domain.VerifyItemRequest{
			{
				OriginalBillLabel: "Spuelmittel",
				IsFoodItem:        false,
				Classification:    entities.ClassificationFreshFood,
				NutritionDetails:  []string{"should vanish"},
			},
		},
	}

	_, err := service.VerifyReceipt(context.Background(), receiptID.String(), req, userID.String())
	require.NoError(t, err)

	require.Len(t, repo.replacedItems, 1)
	assert.Equal(t, entities.ClassificationOther, repo.replacedItems[0].Classification)
	assert.Nil(t, repo.replacedItems[0].NutritionDetails)
}

func TestVerifyReceiptOwnership(t *testing.T) {
	owner := uuid.New()
	receiptID := uuid.New()
	repo := &stubRepository{
		existing: &entities.Receipt{ID: receiptID, UserID: owner, Status: entities.ReceiptStatusProcessed},
	}
	service := newTestService(repo, &stubAnalyzer{}, &stubExtractor{})

	_, err := service.VerifyReceipt(context.Background(), receiptID.String(), domain.VerifyReceiptRequest{}, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
	assert.Nil(t, repo.replacedItems)
}

func TestGetReceiptByIDOwnership(t *testing.T) {
	owner := uuid.New()
	receiptID := uuid.New()
	repo := &stubRepository{
		existing: &entities.Receipt{ID: receiptID, UserID: owner, Status: entities.ReceiptStatusProcessed},
	}
	service := newTestService(repo, &stubAnalyzer{}, &stubExtractor{})

	_, err := service.GetReceiptByID(context.Background(), receiptID.String(), owner.String())
	require.NoError(t, err)

	_, err = service.GetReceiptByID(context.Background(), receiptID.String(), uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrReceiptNotFound)
}
