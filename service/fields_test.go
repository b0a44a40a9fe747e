package service

import (
	"testing"

	"github.com/Amaz3n/inkwell/model"
)

func boolPtr(b bool) *bool { return &b }

func TestVisibleFields(t *testing.T) {
	fields := []model.Field{
		{ID: "f1", Type: model.FieldSignature, SignerRole: "buyer"},
		{ID: "f2", Type: model.FieldText, SignerRole: "seller"},
		{ID: "f3", Type: model.FieldDate}, // no role restriction
	}

	visible := VisibleFields(fields, "buyer")
	if len(visible) != 2 {
		t.Fatalf("Expected 2 visible fields for buyer, got %d", len(visible))
	}
	if visible[0].ID != "f1" || visible[1].ID != "f3" {
		t.Errorf("Unexpected visible field set: %v", visible)
	}
}

func TestRequiredFields(t *testing.T) {
	fields := []model.Field{
		{ID: "f1", Type: model.FieldSignature, SignerRole: "buyer"},
		{ID: "f2", Type: model.FieldText, SignerRole: "buyer", Required: boolPtr(false)},
		{ID: "f3", Type: model.FieldCheckbox},
	}

	required := RequiredFields(fields, "buyer")
	if len(required) != 2 {
		t.Fatalf("Expected 2 required fields, got %d", len(required))
	}
	for _, f := range required {
		if f.ID == "f2" {
			t.Error("Expected optional field f2 to be excluded")
		}
	}
}

func TestFieldComplete(t *testing.T) {
	tests := []struct {
		name  string
		field model.Field
		value any
		want  bool
	}{
		{"checkbox true", model.Field{Type: model.FieldCheckbox}, true, true},
		{"checkbox false", model.Field{Type: model.FieldCheckbox}, false, false},
		{"checkbox string true", model.Field{Type: model.FieldCheckbox}, "true", false},
		{"checkbox missing", model.Field{Type: model.FieldCheckbox}, nil, false},
		{"signature data url", model.Field{Type: model.FieldSignature}, "data:image/png;base64,iVBOR", true},
		{"signature empty", model.Field{Type: model.FieldSignature}, "", false},
		{"text value", model.Field{Type: model.FieldText}, "hello", true},
		{"text whitespace only", model.Field{Type: model.FieldText}, "   ", false},
		{"text missing", model.Field{Type: model.FieldText}, nil, false},
		{"date value", model.Field{Type: model.FieldDate}, "2026-01-02", true},
		{"name value", model.Field{Type: model.FieldName}, "Ada Lovelace", true},
		{"text wrong type", model.Field{Type: model.FieldText}, 42, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FieldComplete(tt.field, tt.value); got != tt.want {
				t.Errorf("FieldComplete(%s, %v) = %v, want %v", tt.field.Type, tt.value, got, tt.want)
			}
		})
	}
}

func TestMissingRequired(t *testing.T) {
	fields := []model.Field{
		{ID: "sig", Type: model.FieldSignature, SignerRole: "buyer"},
		{ID: "agree", Type: model.FieldCheckbox, SignerRole: "buyer"},
		{ID: "note", Type: model.FieldText, SignerRole: "buyer", Required: boolPtr(false)},
		{ID: "other", Type: model.FieldText, SignerRole: "seller"},
	}

	values := model.Values{
		"sig":   "data:image/png;base64,AAAA",
		"agree": false,
	}

	missing := MissingRequired(fields, "buyer", values)
	if len(missing) != 1 || missing[0] != "agree" {
		t.Errorf("Expected [agree] missing, got %v", missing)
	}

	values["agree"] = true
	if missing := MissingRequired(fields, "buyer", values); len(missing) != 0 {
		t.Errorf("Expected nothing missing, got %v", missing)
	}
}
