package verification

import (
	"time"
)

// History is one audit row per verification decision
type History struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	ProductID    string    `gorm:"not null;index" json:"product_id"`
	FromStatus   string    `gorm:"not null" json:"from_status"`
	ToStatus     string    `gorm:"not null" json:"to_status"`
	Note         string    `json:"note"`
	VerifierID   string    `gorm:"not null" json:"verifier_id"`
	VerifierName string    `gorm:"not null" json:"verifier_name"`
	DecidedAt    time.Time `gorm:"not null;index" json:"decided_at"`
}

func (History) TableName() string {
	return "verification_history"
}

// DecideRequest is the body of an admin decision
type DecideRequest struct {
	Status string `json:"status" binding:"required"`
	Note   string `json:"note"`
}
