package verification

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/catalog"
	"farmtrace/marketplace-backend/internal/clock"
	"farmtrace/marketplace-backend/internal/metrics"
	"farmtrace/marketplace-backend/internal/viewer"
	"farmtrace/marketplace-backend/pkg/workflows"
)

var (
	ErrPermissionDenied  = errors.New("only administrators may decide verification")
	ErrInvalidStatus     = errors.New("decision status must be APPROVED or REJECTED")
	ErrInvalidTransition = errors.New("verification transition not allowed")
)

// Service applies admin decisions to catalog products
type Service struct {
	catalog *catalog.Service
	history HistoryRepository
	machine *workflows.StateMachine
	clock   clock.Clock
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewService creates a verification service. metrics may be nil.
func NewService(cat *catalog.Service, history HistoryRepository, clk clock.Clock, m *metrics.Metrics, logger *zap.Logger) *Service {
	if history == nil {
		history = NewMemoryHistoryRepository()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		catalog: cat,
		history: history,
		machine: workflows.NewVerificationStateMachine(),
		clock:   clk,
		metrics: m,
		logger:  logger,
	}
}

// NormalizeStatus upper-cases a client supplied status. Decide validates it.
func NormalizeStatus(s string) catalog.VerificationStatus {
	return catalog.VerificationStatus(strings.ToUpper(strings.TrimSpace(s)))
}

// Decide sets the verification status of a product. Only admins may decide;
// any admin may decide any product and a later decision overwrites an earlier one.
func (s *Service) Decide(ctx context.Context, productID string, status catalog.VerificationStatus, note string, actor viewer.Viewer) (*catalog.Product, error) {
	var admin viewer.Admin
	switch v := actor.(type) {
	case viewer.Admin:
		admin = v
	default:
		s.metrics.IncrementRefused("permission")
		s.logger.Warn("Verification refused",
			zap.String("product_id", productID),
			zap.String("role", roleOf(actor)))
		return nil, ErrPermissionDenied
	}

	if status == catalog.VerificationStatus(s.machine.Initial()) || !s.machine.IsTarget(string(status)) {
		s.metrics.IncrementRefused("status")
		return nil, fmt.Errorf("%w: got %q", ErrInvalidStatus, status)
	}

	now := s.clock.Now()
	var from catalog.VerificationStatus
	updated, err := s.catalog.Mutate(ctx, productID, catalog.ChangeDecided, func(p *catalog.Product) error {
		from = p.Verification.Status
		if !s.machine.CanTransition(string(from), string(status)) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, status)
		}
		decidedNote := note
		verifier := admin.DisplayName()
		decidedAt := now
		p.Verification = catalog.Verification{
			Status:     status,
			Note:       &decidedNote,
			VerifiedAt: &decidedAt,
			VerifiedBy: &verifier,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			s.metrics.IncrementRefused("transition")
		}
		return nil, err
	}

	s.metrics.IncrementDecision(string(status))
	s.logger.Info("Product verification decided",
		zap.String("product_id", productID),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
		zap.String("admin_id", admin.ID()),
		zap.String("admin_level", string(admin.Level)))

	entry := &History{
		ID:           uuid.NewString(),
		ProductID:    productID,
		FromStatus:   string(from),
		ToStatus:     string(status),
		Note:         note,
		VerifierID:   admin.ID(),
		VerifierName: admin.DisplayName(),
		DecidedAt:    now,
	}
	// audit failures are logged; the decision is already stored
	if err := s.history.Append(ctx, entry); err != nil {
		s.logger.Error("Failed to record verification history",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	return updated, nil
}

// History returns the decisions made on a product, oldest first
func (s *Service) History(ctx context.Context, productID string) ([]History, error) {
	if _, err := s.catalog.Get(ctx, productID); err != nil {
		return nil, err
	}
	return s.history.ListByProduct(ctx, productID)
}

func roleOf(v viewer.Viewer) string {
	if v == nil {
		return "anonymous"
	}
	return string(v.Role())
}
