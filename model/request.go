package model

import (
	"time"
)

// SigningRequest status constants
const (
	RequestDraft   = "draft"
	RequestSent    = "sent"
	RequestSigned  = "signed"
	RequestVoided  = "voided"
	RequestExpired = "expired"
)

// SigningRequest is one signer's invitation into an envelope. The raw
// bearer token is never stored; TokenHash holds a keyed digest of it.
type SigningRequest struct {
	ID             string     `gorm:"primaryKey" json:"id"`
	OrgID          string     `gorm:"index;not null" json:"org_id"`
	DocumentID     string     `gorm:"index;not null" json:"document_id"`
	EnvelopeID     string     `gorm:"index" json:"envelope_id,omitempty"`
	GroupID        string     `gorm:"index" json:"group_id,omitempty"`
	Sequence       int        `gorm:"not null;default:1" json:"sequence"`
	Required       *bool      `json:"required,omitempty"`
	SignerRole     string     `json:"signer_role,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	TokenHash      string     `gorm:"uniqueIndex;not null" json:"-"`
	Status         string     `gorm:"not null;default:'draft'" json:"status"`
	ExpiresAt      time.Time  `json:"expires_at"`
	UsedCount      int        `gorm:"not null;default:0" json:"used_count"`
	MaxUses        int        `gorm:"not null;default:1" json:"max_uses"`
	SignedAt       *time.Time `json:"signed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsRequired treats a nil Required as true; only an explicit false opts out.
func (r *SigningRequest) IsRequired() bool {
	return r.Required == nil || *r.Required
}

// Terminal reports whether the request can no longer be signed.
func (r *SigningRequest) Terminal() bool {
	return r.Status == RequestSigned || r.Status == RequestVoided || r.Status == RequestExpired
}

// Scope returns the envelope key this request belongs to, falling back to
// the legacy group id for rows issued before explicit envelopes existed.
func (r *SigningRequest) Scope() string {
	if r.EnvelopeID != "" {
		return r.EnvelopeID
	}
	return r.GroupID
}
