package model

import (
	"time"
)

// Document status constants
const (
	DocumentDraft  = "draft"
	DocumentSent   = "sent"
	DocumentSigned = "signed"
)

// Source entity discriminators for side-effect dispatch
const (
	SourceProposal    = "proposal"
	SourceChangeOrder = "change_order"
	SourceSelection   = "selection"
)

// Document is the thing being signed. The source file is immutable;
// ExecutedFileID is set once, when the envelope completes.
type Document struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	OrgID            string     `gorm:"index;not null" json:"org_id"`
	ProjectID        string     `gorm:"index" json:"project_id,omitempty"`
	Title            string     `gorm:"not null" json:"title"`
	Revision         int        `gorm:"not null;default:1" json:"revision"`
	SourceFileID     string     `gorm:"not null" json:"source_file_id"`
	SourceEntityType string     `json:"source_entity_type,omitempty"`
	SourceEntityID   string     `json:"source_entity_id,omitempty"`
	Status           string     `gorm:"not null;default:'draft'" json:"status"`
	ExecutedFileID   string     `json:"executed_file_id,omitempty"`
	Metadata         Metadata   `gorm:"serializer:json" json:"metadata,omitempty"`
	SignedAt         *time.Time `json:"signed_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Metadata is the free-form per-document payload. The recipient list used
// by the executed-copy fan-out may be embedded under "recipients".
type Metadata map[string]any

// Recipients extracts the embedded recipient email list, if present.
func (m Metadata) Recipients() []string {
	raw, ok := m["recipients"].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// StoredFile is a reference into object storage. Path is org-scoped.
type StoredFile struct {
	ID               string    `gorm:"primaryKey" json:"id"`
	OrgID            string    `gorm:"index;not null" json:"org_id"`
	Path             string    `gorm:"not null" json:"path"`
	ContentType      string    `json:"content_type"`
	Size             int64     `json:"size"`
	CurrentVersionID string    `json:"current_version_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// FileVersion records one immutable revision of a stored file.
type FileVersion struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	FileID    string    `gorm:"index;not null" json:"file_id"`
	Number    int       `gorm:"not null;default:1" json:"number"`
	Path      string    `gorm:"not null" json:"path"`
	CreatedAt time.Time `json:"created_at"`
}
