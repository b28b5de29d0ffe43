package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/clock"
	"farmtrace/marketplace-backend/internal/metrics"
	"farmtrace/marketplace-backend/internal/viewer"
)

// MockHistoryRepository is a mock implementation of HistoryRepository
type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Append(ctx context.Context, entry *History) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockHistoryRepository) ListByProduct(ctx context.Context, productID string) ([]History, error) {
	args := m.Called(ctx, productID)
	return args.Get(0).([]History), args.Error(1)
}

var (
	centralAdmin  = viewer.Admin{UserID: "admin-1", Name: "Trần Thị B", Level: viewer.LevelCentral}
	regionalAdmin = viewer.Admin{UserID: "admin-2", Name: "Lê Văn C", Level: viewer.LevelRegional, AssignedArea: "Tỉnh Lâm Đồng"}
)

type fixture struct {
	catalog *catalog.Service
	service *Service
	clock   *clock.FakeClock
	metrics *metrics.Metrics
	product *catalog.Product
}

func setup(t *testing.T, history HistoryRepository) *fixture {
	t.Helper()
	clk := clock.NewFakeClock(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	cat := catalog.NewService(catalog.NewMemoryRepository(), catalog.NewHub(), clk, zap.NewNop())
	m := metrics.New(prometheus.NewRegistry())

	product, err := cat.Submit(context.Background(), catalog.SubmitRequest{
		FarmerID:   "farmer-1",
		FarmerName: "Nguyễn Văn A",
		Name:       "Bơ 034",
		Category:   catalog.CategoryFruit,
		RegionCode: "PUC-LD-001",
		Location:   catalog.Location{Lat: 11.94, Lng: 108.44, Address: "Đà Lạt, Tỉnh Lâm Đồng"},
	})
	require.NoError(t, err)

	return &fixture{
		catalog: cat,
		service: NewService(cat, history, clk, m, zap.NewNop()),
		clock:   clk,
		metrics: m,
		product: product,
	}
}

func TestDecide_Approve(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()
	f.clock.Advance(time.Hour)

	updated, err := f.service.Decide(ctx, f.product.ID, catalog.StatusApproved, "Hồ sơ đầy đủ", regionalAdmin)
	require.NoError(t, err)

	assert.Equal(t, catalog.StatusApproved, updated.Verification.Status)
	require.NotNil(t, updated.Verification.Note)
	assert.Equal(t, "Hồ sơ đầy đủ", *updated.Verification.Note)
	assert.Equal(t, f.clock.Now(), *updated.Verification.VerifiedAt)
	assert.Equal(t, "Lê Văn C", *updated.Verification.VerifiedBy)
	assert.True(t, updated.Verification.Consistent())

	// nothing but verification changes
	before := f.product.Clone()
	after := updated.Clone()
	after.Verification = before.Verification
	assert.Equal(t, before, after)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Decisions.WithLabelValues("APPROVED")))
}

func TestDecide_EmptyNoteStillSetsMetadata(t *testing.T) {
	f := setup(t, nil)

	updated, err := f.service.Decide(context.Background(), f.product.ID, catalog.StatusRejected, "", centralAdmin)
	require.NoError(t, err)
	require.NotNil(t, updated.Verification.Note)
	assert.Equal(t, "", *updated.Verification.Note)
	assert.True(t, updated.Verification.Consistent())
}

func TestDecide_ApproveTwiceUpdatesTimestamp(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	first, err := f.service.Decide(ctx, f.product.ID, catalog.StatusApproved, "ok", centralAdmin)
	require.NoError(t, err)
	firstAt := *first.Verification.VerifiedAt

	f.clock.Advance(time.Minute)
	second, err := f.service.Decide(ctx, f.product.ID, catalog.StatusApproved, "ok", centralAdmin)
	require.NoError(t, err)

	assert.Equal(t, catalog.StatusApproved, second.Verification.Status)
	assert.Equal(t, firstAt.Add(time.Minute), *second.Verification.VerifiedAt)

	history, err := f.service.History(ctx, f.product.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "PENDING", history[0].FromStatus)
	assert.Equal(t, "APPROVED", history[1].FromStatus)
}

func TestDecide_RedecideOverwrites(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	_, err := f.service.Decide(ctx, f.product.ID, catalog.StatusRejected, "Thiếu chứng nhận", regionalAdmin)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	updated, err := f.service.Decide(ctx, f.product.ID, catalog.StatusApproved, "Đã bổ sung", centralAdmin)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusApproved, updated.Verification.Status)
	assert.Equal(t, "Đã bổ sung", *updated.Verification.Note)
	assert.Equal(t, "Trần Thị B", *updated.Verification.VerifiedBy)
}

func TestDecide_NonAdminIsDenied(t *testing.T) {
	f := setup(t, nil)
	ctx := context.Background()

	actors := []viewer.Viewer{
		viewer.Farmer{UserID: "farmer-1", Name: "Nguyễn Văn A"},
		viewer.Buyer{UserID: "buyer-1", Name: "Phạm D"},
		nil,
	}
	for _, actor := range actors {
		_, err := f.service.Decide(ctx, f.product.ID, catalog.StatusApproved, "", actor)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	}

	stored, err := f.catalog.Get(ctx, f.product.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusPending, stored.Verification.Status)
	assert.Nil(t, stored.Verification.VerifiedAt)
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.DecisionsRefused.WithLabelValues("permission")))
}

func TestDecide_InvalidStatus(t *testing.T) {
	f := setup(t, nil)

	for _, status := range []catalog.VerificationStatus{catalog.StatusPending, "ARCHIVED", ""} {
		_, err := f.service.Decide(context.Background(), f.product.ID, status, "", centralAdmin)
		assert.ErrorIs(t, err, ErrInvalidStatus)
	}
}

func TestDecide_UnknownProduct(t *testing.T) {
	f := setup(t, nil)

	_, err := f.service.Decide(context.Background(), "missing", catalog.StatusApproved, "", centralAdmin)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestDecide_PublishesChange(t *testing.T) {
	f := setup(t, nil)
	sub := f.catalog.Subscribe()
	defer sub.Close()

	_, err := f.service.Decide(context.Background(), f.product.ID, catalog.StatusApproved, "", centralAdmin)
	require.NoError(t, err)

	change := <-sub.C()
	assert.Equal(t, catalog.ChangeDecided, change.Kind)
	assert.Equal(t, f.product.ID, change.ProductID)
}

func TestDecide_HistoryFailureKeepsDecision(t *testing.T) {
	history := new(MockHistoryRepository)
	history.On("Append", mock.Anything, mock.AnythingOfType("*verification.History")).Return(errors.New("db down"))
	f := setup(t, history)

	updated, err := f.service.Decide(context.Background(), f.product.ID, catalog.StatusApproved, "", centralAdmin)
	require.NoError(t, err)
	assert.Equal(t, catalog.StatusApproved, updated.Verification.Status)
	history.AssertExpectations(t)
}

func TestNormalizeStatus(t *testing.T) {
	assert.Equal(t, catalog.StatusApproved, NormalizeStatus(" approved "))
	assert.Equal(t, catalog.StatusRejected, NormalizeStatus("Rejected"))

	f := setup(t, nil)
	_, err := f.service.Decide(context.Background(), f.product.ID, NormalizeStatus("pending"), "", centralAdmin)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestHistory_UnknownProduct(t *testing.T) {
	f := setup(t, nil)
	_, err := f.service.History(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}
