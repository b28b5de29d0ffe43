package catalog

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNotOwner        = errors.New("product belongs to another farmer")
	ErrInvalidProduct  = errors.New("invalid product")
)

// Repository stores products in catalog order: most recently submitted first.
type Repository interface {
	Prepend(ctx context.Context, product *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	// Update applies fn to the stored product atomically. If fn returns an
	// error nothing is written.
	Update(ctx context.Context, id string, fn func(*Product) error) (*Product, error)
}

// MemoryRepository keeps the catalog for the lifetime of the process
type MemoryRepository struct {
	mu       sync.RWMutex
	products []*Product // index 0 is the newest
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Prepend(ctx context.Context, product *Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(product.ID) >= 0 {
		return errors.New("duplicate product id")
	}
	stored := product.Clone()
	r.products = append([]*Product{&stored}, r.products...)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrProductNotFound
	}
	p := r.products[i].Clone()
	return &p, nil
}

func (r *MemoryRepository) List(ctx context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, fn func(*Product) error) (*Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return nil, ErrProductNotFound
	}
	working := r.products[i].Clone()
	if err := fn(&working); err != nil {
		return nil, err
	}
	r.products[i] = &working
	out := working.Clone()
	return &out, nil
}

func (r *MemoryRepository) indexOf(id string) int {
	for i, p := range r.products {
		if p.ID == id {
			return i
		}
	}
	return -1
}
