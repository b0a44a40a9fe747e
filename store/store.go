package store

import (
	"context"
	"errors"
	"time"

	"github.com/Amaz3n/inkwell/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadySigned is returned when a signature already exists for a
	// signing request, or its request left the signable states.
	ErrAlreadySigned = errors.New("signing request already signed")
	// ErrConflict is returned when a guarded transition finds the row in an
	// unexpected state.
	ErrConflict = errors.New("conflicting state transition")
)

// Store is the single durable surface the signing workflow mutates.
// Envelope and signing-request scope arguments accept either an envelope id
// or a legacy group id; implementations match both columns.
//
// The two guarded operations carry the workflow's correctness:
//
//   - RecordSignature inserts the signature and moves its request to
//     signed as one unit; a second call for the same request fails with
//     ErrAlreadySigned no matter how the calls interleave.
//   - ClaimExecution transitions the envelope from a pre-executed state to
//     executing; exactly one concurrent caller receives true.
type Store interface {
	CreateEnvelope(ctx context.Context, env *model.Envelope) error
	EnvelopeByScope(ctx context.Context, orgID, scope string) (*model.Envelope, error)
	SetEnvelopePartiallySigned(ctx context.Context, orgID, scope string) error
	ClaimExecution(ctx context.Context, orgID, scope string) (bool, error)
	ReleaseExecution(ctx context.Context, orgID, scope string) error
	FinalizeExecution(ctx context.Context, orgID, scope, fileID string, executedAt time.Time) error

	CreateSigningRequest(ctx context.Context, req *model.SigningRequest) error
	RequestByTokenHash(ctx context.Context, hash string) (*model.SigningRequest, error)
	RequestsInScope(ctx context.Context, orgID, scope string) ([]model.SigningRequest, error)
	RotateRequestToken(ctx context.Context, requestID, newHash string, expiresAt time.Time) error

	RecordSignature(ctx context.Context, sig *model.Signature) error
	SignaturesInScope(ctx context.Context, orgID, scope string) ([]model.Signature, error)

	CreateDocument(ctx context.Context, doc *model.Document) error
	DocumentByID(ctx context.Context, orgID, id string) (*model.Document, error)
	MarkDocumentSigned(ctx context.Context, orgID, documentID, fileID string, signedAt time.Time) error

	CreateFields(ctx context.Context, fields []model.Field) error
	FieldsForDocument(ctx context.Context, documentID string, revision int) ([]model.Field, error)

	CreateFileWithVersion(ctx context.Context, file *model.StoredFile, version *model.FileVersion) error
	FileByID(ctx context.Context, orgID, id string) (*model.StoredFile, error)

	EffectApplied(ctx context.Context, envelopeID, action string) (bool, error)
	MarkEffectApplied(ctx context.Context, rec *model.EffectRecord) error
}
