package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"farmtrace/marketplace-backend/internal/clock"
	"farmtrace/marketplace-backend/pkg/geospatial"
)

// Service owns catalog mutations and publishes a Change after each one
type Service struct {
	repo   Repository
	hub    *Hub
	clock  clock.Clock
	logger *zap.Logger
}

// NewService creates a catalog service. A nil hub gets a private one.
func NewService(repo Repository, hub *Hub, clk clock.Clock, logger *zap.Logger) *Service {
	if hub == nil {
		hub = NewHub()
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:   repo,
		hub:    hub,
		clock:  clk,
		logger: logger,
	}
}

// Submit validates a farmer submission and prepends it to the catalog as PENDING
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Product, error) {
	if err := validateSubmission(&req); err != nil {
		return nil, err
	}

	product := &Product{
		ID:            uuid.NewString(),
		FarmerID:      req.FarmerID,
		FarmerName:    req.FarmerName,
		Name:          strings.TrimSpace(req.Name),
		Category:      req.Category,
		RegionCode:    req.RegionCode,
		Area:          req.Area,
		ExpectedYield: req.ExpectedYield,
		Images:        req.Images,
		Contact:       req.Contact,
		Location:      req.Location,
		Timeline:      nonNil(req.Timeline),
		Certificates:  nonNil(req.Certificates),
		Verification:  Verification{Status: StatusPending},
		SubmittedAt:   s.clock.Now(),
	}

	if err := s.repo.Prepend(ctx, product); err != nil {
		return nil, fmt.Errorf("failed to store product: %w", err)
	}

	s.logger.Info("Product submitted",
		zap.String("product_id", product.ID),
		zap.String("farmer_id", product.FarmerID),
		zap.String("category", product.Category))
	s.publish(ChangeSubmitted, product.ID)

	out := product.Clone()
	return &out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.repo.Get(ctx, id)
}

// Snapshot returns every product in catalog order
func (s *Service) Snapshot(ctx context.Context) ([]Product, error) {
	return s.repo.List(ctx)
}

// ListByFarmer returns the farmer's own products in any status
func (s *Service) ListByFarmer(ctx context.Context, farmerID string) ([]Product, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Product, 0)
	for _, p := range all {
		if p.FarmerID == farmerID {
			out = append(out, p)
		}
	}
	return out, nil
}

// AppendTimeline adds a farming-practice record. Only the owning farmer may append.
func (s *Service) AppendTimeline(ctx context.Context, id, farmerID string, entry TimelineEntry) (*Product, error) {
	if strings.TrimSpace(entry.Stage) == "" || strings.TrimSpace(entry.Date) == "" {
		return nil, fmt.Errorf("%w: timeline entry needs a date and a stage", ErrInvalidProduct)
	}
	return s.Mutate(ctx, id, ChangeTimeline, func(p *Product) error {
		if p.FarmerID != farmerID {
			return ErrNotOwner
		}
		p.Timeline = append(p.Timeline, entry)
		return nil
	})
}

// Mutate applies fn atomically and publishes a change of the given kind on success
func (s *Service) Mutate(ctx context.Context, id string, kind ChangeKind, fn func(*Product) error) (*Product, error) {
	updated, err := s.repo.Update(ctx, id, fn)
	if err != nil {
		return nil, err
	}
	s.publish(kind, id)
	return updated, nil
}

// Subscribe returns a feed of catalog changes. Callers must Close it.
func (s *Service) Subscribe() *Subscription {
	return s.hub.Subscribe()
}

func (s *Service) publish(kind ChangeKind, id string) {
	s.hub.Publish(Change{Kind: kind, ProductID: id, At: s.clock.Now()})
}

func validateSubmission(req *SubmitRequest) error {
	if strings.TrimSpace(req.FarmerID) == "" {
		return fmt.Errorf("%w: farmer id is required", ErrInvalidProduct)
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	category := strings.TrimSpace(req.Category)
	if category == "" || category == CategoryAll {
		return fmt.Errorf("%w: a concrete category is required", ErrInvalidProduct)
	}
	req.Category = category
	if err := geospatial.ValidatePoint(req.Location.Lat, req.Location.Lng); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProduct, err)
	}
	if req.Area < 0 || req.ExpectedYield < 0 {
		return fmt.Errorf("%w: area and expected yield must not be negative", ErrInvalidProduct)
	}
	return nil
}
