package model

import (
	"time"
)

// EnvelopeStatus constants
const (
	EnvelopeSent            = "sent"
	EnvelopePartiallySigned = "partially_signed"
	EnvelopeExecuting       = "executing"
	EnvelopeExecuted        = "executed"
	EnvelopeVoided          = "voided"
	EnvelopeExpired         = "expired"
)

// Envelope groups the signing requests issued for one document revision.
// Legacy rows predate explicit envelopes and are keyed by GroupID only.
type Envelope struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	OrgID          string     `gorm:"index;not null" json:"org_id"`
	DocumentID     string     `gorm:"index;not null" json:"document_id"`
	GroupID        string     `gorm:"index" json:"group_id,omitempty"`
	Status         string     `gorm:"not null;default:'sent'" json:"status"`
	ExecutedFileID string     `json:"executed_file_id,omitempty"`
	ExecutedAt     *time.Time `json:"executed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Terminal reports whether the envelope can no longer accept signatures.
func (e *Envelope) Terminal() bool {
	return e.Status == EnvelopeExecuted || e.Status == EnvelopeVoided || e.Status == EnvelopeExpired
}
