package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// productRecord is the table layout of a product. Seq is assigned by the
// database on insert and gives the catalog order.
type productRecord struct {
	Seq           int64  `gorm:"primaryKey;autoIncrement"`
	ID            string `gorm:"size:64;not null;uniqueIndex"`
	FarmerID      string `gorm:"not null;index"`
	FarmerName    string `gorm:"not null"`
	Name          string `gorm:"not null"`
	Category      string `gorm:"not null;index"`
	RegionCode    string `gorm:"index"`
	Area          float64
	ExpectedYield float64
	Images        datatypes.JSON
	Contact       string
	Rating        *float64
	Lat           float64 `gorm:"not null"`
	Lng           float64 `gorm:"not null"`
	Address       string
	Timeline      datatypes.JSON
	Certificates  datatypes.JSON
	Status        string `gorm:"not null;default:'PENDING';index"`
	Note          *string
	VerifiedAt    *time.Time
	VerifiedBy    *string
	SubmittedAt   time.Time
}

func (productRecord) TableName() string {
	return "products"
}

// GormRepository persists the catalog through gorm (postgres or sqlite)
type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the products table
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&productRecord{})
}

func (r *GormRepository) Prepend(ctx context.Context, product *Product) error {
	rec, err := toRecord(product)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *GormRepository) Get(ctx context.Context, id string) (*Product, error) {
	var rec productRecord
	err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return fromRecord(&rec)
}

func (r *GormRepository) List(ctx context.Context) ([]Product, error) {
	var recs []productRecord
	if err := r.db.WithContext(ctx).Order("seq DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]Product, 0, len(recs))
	for i := range recs {
		p, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *GormRepository) Update(ctx context.Context, id string, fn func(*Product) error) (*Product, error) {
	var updated *Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec productRecord
		query := tx
		// sqlite has no row locks; the transaction already serializes writers there
		if tx.Dialector.Name() != "sqlite" {
			query = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := query.First(&rec, "id = ?", id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}
		p, err := fromRecord(&rec)
		if err != nil {
			return err
		}
		if err := fn(p); err != nil {
			return err
		}
		next, err := toRecord(p)
		if err != nil {
			return err
		}
		next.Seq = rec.Seq
		if err := tx.Save(next).Error; err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func toRecord(p *Product) (*productRecord, error) {
	images, err := json.Marshal(p.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to encode images: %w", err)
	}
	timeline, err := json.Marshal(nonNil(p.Timeline))
	if err != nil {
		return nil, fmt.Errorf("failed to encode timeline: %w", err)
	}
	certs, err := json.Marshal(nonNil(p.Certificates))
	if err != nil {
		return nil, fmt.Errorf("failed to encode certificates: %w", err)
	}
	return &productRecord{
		ID:            p.ID,
		FarmerID:      p.FarmerID,
		FarmerName:    p.FarmerName,
		Name:          p.Name,
		Category:      p.Category,
		RegionCode:    p.RegionCode,
		Area:          p.Area,
		ExpectedYield: p.ExpectedYield,
		Images:        datatypes.JSON(images),
		Contact:       p.Contact,
		Rating:        p.Rating,
		Lat:           p.Location.Lat,
		Lng:           p.Location.Lng,
		Address:       p.Location.Address,
		Timeline:      datatypes.JSON(timeline),
		Certificates:  datatypes.JSON(certs),
		Status:        string(p.Verification.Status),
		Note:          p.Verification.Note,
		VerifiedAt:    p.Verification.VerifiedAt,
		VerifiedBy:    p.Verification.VerifiedBy,
		SubmittedAt:   p.SubmittedAt,
	}, nil
}

func fromRecord(rec *productRecord) (*Product, error) {
	p := &Product{
		ID:            rec.ID,
		FarmerID:      rec.FarmerID,
		FarmerName:    rec.FarmerName,
		Name:          rec.Name,
		Category:      rec.Category,
		RegionCode:    rec.RegionCode,
		Area:          rec.Area,
		ExpectedYield: rec.ExpectedYield,
		Contact:       rec.Contact,
		Rating:        rec.Rating,
		Location:      Location{Lat: rec.Lat, Lng: rec.Lng, Address: rec.Address},
		Verification: Verification{
			Status:     VerificationStatus(rec.Status),
			Note:       rec.Note,
			VerifiedAt: rec.VerifiedAt,
			VerifiedBy: rec.VerifiedBy,
		},
		SubmittedAt: rec.SubmittedAt,
	}
	if err := decodeJSON(rec.Images, &p.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images of %s: %w", rec.ID, err)
	}
	if err := decodeJSON(rec.Timeline, &p.Timeline); err != nil {
		return nil, fmt.Errorf("failed to decode timeline of %s: %w", rec.ID, err)
	}
	if err := decodeJSON(rec.Certificates, &p.Certificates); err != nil {
		return nil, fmt.Errorf("failed to decode certificates of %s: %w", rec.ID, err)
	}
	return p, nil
}

func decodeJSON(raw datatypes.JSON, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
