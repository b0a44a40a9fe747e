package model

import (
	"time"
)

// Values maps field id to the submitted value: string for text-like fields,
// bool for checkboxes, data-URL string for drawn signatures.
type Values map[string]any

// Signature is one signer's submission. Rows are immutable once inserted;
// the store enforces at most one per signing request.
type Signature struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	SigningRequestID string    `gorm:"uniqueIndex;not null" json:"signing_request_id"`
	DocumentID       string    `gorm:"index;not null" json:"document_id"`
	Revision         int       `gorm:"not null;default:1" json:"revision"`
	SignerName       string    `gorm:"not null" json:"signer_name"`
	SignerEmail      string    `json:"signer_email,omitempty"`
	SignerIP         string    `json:"signer_ip,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	ConsentText      string    `gorm:"not null" json:"consent_text"`
	Values           Values    `gorm:"serializer:json" json:"values"`
	CreatedAt        time.Time `json:"created_at"`
}

// EffectRecord marks a downstream business action as already applied for an
// envelope, so a retried execution cannot double-apply it.
type EffectRecord struct {
	EnvelopeID string    `gorm:"primaryKey" json:"envelope_id"`
	Action     string    `gorm:"primaryKey" json:"action"`
	FileID     string    `json:"file_id"`
	AppliedAt  time.Time `json:"applied_at"`
}
