package service

import (
	"strings"

	"github.com/Amaz3n/inkwell/model"
)

// VisibleFields returns the fields a signer role sees: unrestricted fields
// plus those owned by the role.
func VisibleFields(fields []model.Field, role string) []model.Field {
	var out []model.Field
	for _, f := range fields {
		if f.SignerRole == "" || f.SignerRole == role {
			out = append(out, f)
		}
	}
	return out
}

// RequiredFields returns the visible fields the signer must complete.
func RequiredFields(fields []model.Field, role string) []model.Field {
	var out []model.Field
	for _, f := range VisibleFields(fields, role) {
		if f.IsRequired() {
			out = append(out, f)
		}
	}
	return out
}

// FieldComplete decides whether a submitted value satisfies a field.
// Checkboxes need a strict true; signatures need any non-empty string
// (drawn signatures arrive as data URLs); everything else needs a
// non-blank string. The UI applies the same predicate for feedback, but
// this server-side check is the one that counts.
func FieldComplete(f model.Field, value any) bool {
	switch f.Type {
	case model.FieldCheckbox:
		b, ok := value.(bool)
		return ok && b
	case model.FieldSignature:
		s, ok := value.(string)
		return ok && s != ""
	default:
		s, ok := value.(string)
		return ok && strings.TrimSpace(s) != ""
	}
}

// MissingRequired returns the ids of required fields the submitted values
// leave incomplete, in field order.
func MissingRequired(fields []model.Field, role string, values model.Values) []string {
	var missing []string
	for _, f := range RequiredFields(fields, role) {
		if !FieldComplete(f, values[f.ID]) {
			missing = append(missing, f.ID)
		}
	}
	return missing
}
