package model

// Field type constants
const (
	FieldSignature = "signature"
	FieldInitials  = "initials"
	FieldText      = "text"
	FieldDate      = "date"
	FieldCheckbox  = "checkbox"
	FieldName      = "name"
)

// Field is a positioned, typed placeholder on one document revision.
// X, Y, W, H are normalized to [0,1] relative to the page box. Fields are
// defined when the envelope is issued and are read-only during signing.
type Field struct {
	ID         string  `gorm:"primaryKey" json:"id"`
	DocumentID string  `gorm:"index;not null" json:"document_id"`
	Revision   int     `gorm:"not null;default:1" json:"revision"`
	Page       int     `gorm:"not null" json:"page"`
	Type       string  `gorm:"not null" json:"type"`
	Required   *bool   `json:"required,omitempty"`
	SignerRole string  `json:"signer_role,omitempty"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// IsRequired treats a nil Required as true, matching SigningRequest.
func (f *Field) IsRequired() bool {
	return f.Required == nil || *f.Required
}
