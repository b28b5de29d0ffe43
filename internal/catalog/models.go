package catalog

import (
	"time"
)

// VerificationStatus represents the moderation status of a product
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "PENDING"
	StatusApproved VerificationStatus = "APPROVED"
	StatusRejected VerificationStatus = "REJECTED"
)

// Product categories used by the marketplace. Category matching is exact,
// so these strings are stored as-is.
const (
	CategoryAll         = "All"
	CategoryFruit       = "Trái cây"
	CategoryVegetable   = "Rau củ"
	CategoryRice        = "Lúa gạo"
	CategoryAquaculture = "Thủy sản"
)

// Location is where the product is grown
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Images holds image references; entries are URLs or s3://bucket/key references
type Images struct {
	Product     []string `json:"product"`
	Certificate []string `json:"certificate,omitempty"`
	Land        []string `json:"land,omitempty"`
}

// TimelineEntry is one dated farming-practice record
type TimelineEntry struct {
	Date        string `json:"date"`
	Stage       string `json:"stage"`
	Description string `json:"description"`
}

// Certificate is informational; expiry is not validated here
type Certificate struct {
	Type       string `json:"type"`
	ExpiryDate string `json:"expiry_date"`
}

// Verification holds the status and the metadata of the last decision.
// Note, VerifiedAt and VerifiedBy are set together exactly when Status is not PENDING.
type Verification struct {
	Status     VerificationStatus `json:"status"`
	Note       *string            `json:"verification_note,omitempty"`
	VerifiedAt *time.Time         `json:"verified_at,omitempty"`
	VerifiedBy *string            `json:"verified_by,omitempty"`
}

// Consistent reports whether the metadata invariant holds
func (v Verification) Consistent() bool {
	set := v.Note != nil && v.VerifiedAt != nil && v.VerifiedBy != nil
	unset := v.Note == nil && v.VerifiedAt == nil && v.VerifiedBy == nil
	if v.Status == StatusPending {
		return unset
	}
	return set
}

// Product is a traceable farm good
type Product struct {
	ID            string          `json:"id"`
	FarmerID      string          `json:"farmer_id"`
	FarmerName    string          `json:"farmer_name"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	RegionCode    string          `json:"region_code"`
	Area          float64         `json:"area"`           // hectares
	ExpectedYield float64         `json:"expected_yield"` // tonnes
	Images        Images          `json:"images"`
	Contact       string          `json:"contact"`
	Rating        *float64        `json:"rating,omitempty"`
	Location      Location        `json:"location"`
	Timeline      []TimelineEntry `json:"timeline"`
	Certificates  []Certificate   `json:"certificates"`
	Verification  Verification    `json:"verification"`
	SubmittedAt   time.Time       `json:"submitted_at"`
}

// Clone returns a deep copy so callers cannot alias catalog state
func (p Product) Clone() Product {
	c := p
	c.Images = Images{
		Product:     append([]string(nil), p.Images.Product...),
		Certificate: append([]string(nil), p.Images.Certificate...),
		Land:        append([]string(nil), p.Images.Land...),
	}
	c.Timeline = append([]TimelineEntry(nil), p.Timeline...)
	c.Certificates = append([]Certificate(nil), p.Certificates...)
	if p.Rating != nil {
		r := *p.Rating
		c.Rating = &r
	}
	if p.Verification.Note != nil {
		n := *p.Verification.Note
		c.Verification.Note = &n
	}
	if p.Verification.VerifiedAt != nil {
		t := *p.Verification.VerifiedAt
		c.Verification.VerifiedAt = &t
	}
	if p.Verification.VerifiedBy != nil {
		b := *p.Verification.VerifiedBy
		c.Verification.VerifiedBy = &b
	}
	return c
}

// SubmitRequest is a farmer submission. Verification state is never taken from input.
type SubmitRequest struct {
	FarmerID      string          `json:"farmer_id"`
	FarmerName    string          `json:"farmer_name"`
	Name          string          `json:"name" binding:"required"`
	Category      string          `json:"category" binding:"required"`
	RegionCode    string          `json:"region_code"`
	Area          float64         `json:"area"`
	ExpectedYield float64         `json:"expected_yield"`
	Images        Images          `json:"images"`
	Contact       string          `json:"contact"`
	Location      Location        `json:"location"`
	Timeline      []TimelineEntry `json:"timeline"`
	Certificates  []Certificate   `json:"certificates"`
}
