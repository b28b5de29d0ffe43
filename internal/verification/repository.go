package verification

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// HistoryRepository stores the verification audit trail
type HistoryRepository interface {
	Append(ctx context.Context, entry *History) error
	// ListByProduct returns entries oldest first
	ListByProduct(ctx context.Context, productID string) ([]History, error)
}

type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]History
}

func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{entries: make(map[string][]History)}
}

func (r *MemoryHistoryRepository) Append(ctx context.Context, entry *History) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.ProductID] = append(r.entries[entry.ProductID], *entry)
	return nil
}

func (r *MemoryHistoryRepository) ListByProduct(ctx context.Context, productID string) ([]History, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]History{}, r.entries[productID]...), nil
}

type GormHistoryRepository struct {
	db *gorm.DB
}

func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	return &GormHistoryRepository{db: db}
}

// AutoMigrate creates or updates the verification_history table
func (r *GormHistoryRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&History{})
}

func (r *GormHistoryRepository) Append(ctx context.Context, entry *History) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormHistoryRepository) ListByProduct(ctx context.Context, productID string) ([]History, error) {
	var out []History
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("decided_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
