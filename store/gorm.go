package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Amaz3n/inkwell/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Gorm is the postgres-backed Store. Guarded transitions are expressed as
// conditional UPDATEs checked via RowsAffected, and the unique indexes on
// signatures.signing_request_id and signing_requests.token_hash back the
// at-most-once guarantees at the database level.
type Gorm struct {
	db *gorm.DB
}

// Open connects to postgres and migrates the workflow tables.
func Open(dsn string) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(
		&model.Envelope{},
		&model.SigningRequest{},
		&model.Signature{},
		&model.Document{},
		&model.Field{},
		&model.StoredFile{},
		&model.FileVersion{},
		&model.EffectRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Gorm{db: db}, nil
}

// NewGorm wraps an existing gorm handle. Migration is the caller's problem.
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

func (g *Gorm) CreateEnvelope(ctx context.Context, env *model.Envelope) error {
	return g.db.WithContext(ctx).Create(env).Error
}

func (g *Gorm) EnvelopeByScope(ctx context.Context, orgID, scope string) (*model.Envelope, error) {
	var env model.Envelope
	err := g.db.WithContext(ctx).
		Where("org_id = ? AND (id = ? OR group_id = ?)", orgID, scope, scope).
		First(&env).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (g *Gorm) SetEnvelopePartiallySigned(ctx context.Context, orgID, scope string) error {
	return g.db.WithContext(ctx).Model(&model.Envelope{}).
		Where("org_id = ? AND (id = ? OR group_id = ?) AND status = ?",
			orgID, scope, scope, model.EnvelopeSent).
		Update("status", model.EnvelopePartiallySigned).Error
}

func (g *Gorm) ClaimExecution(ctx context.Context, orgID, scope string) (bool, error) {
	res := g.db.WithContext(ctx).Model(&model.Envelope{}).
		Where("org_id = ? AND (id = ? OR group_id = ?) AND status IN ?",
			orgID, scope, scope, []string{model.EnvelopeSent, model.EnvelopePartiallySigned}).
		Update("status", model.EnvelopeExecuting)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (g *Gorm) ReleaseExecution(ctx context.Context, orgID, scope string) error {
	res := g.db.WithContext(ctx).Model(&model.Envelope{}).
		Where("org_id = ? AND (id = ? OR group_id = ?) AND status = ?",
			orgID, scope, scope, model.EnvelopeExecuting).
		Update("status", model.EnvelopePartiallySigned)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (g *Gorm) FinalizeExecution(ctx context.Context, orgID, scope, fileID string, executedAt time.Time) error {
	res := g.db.WithContext(ctx).Model(&model.Envelope{}).
		Where("org_id = ? AND (id = ? OR group_id = ?) AND status = ?",
			orgID, scope, scope, model.EnvelopeExecuting).
		Updates(map[string]any{
			"status":           model.EnvelopeExecuted,
			"executed_file_id": fileID,
			"executed_at":      executedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (g *Gorm) CreateSigningRequest(ctx context.Context, req *model.SigningRequest) error {
	return g.db.WithContext(ctx).Create(req).Error
}

func (g *Gorm) RequestByTokenHash(ctx context.Context, hash string) (*model.SigningRequest, error) {
	var req model.SigningRequest
	err := g.db.WithContext(ctx).Where("token_hash = ?", hash).First(&req).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (g *Gorm) RequestsInScope(ctx context.Context, orgID, scope string) ([]model.SigningRequest, error) {
	var reqs []model.SigningRequest
	err := g.db.WithContext(ctx).
		Where("org_id = ? AND (envelope_id = ? OR group_id = ?)", orgID, scope, scope).
		Find(&reqs).Error
	if err != nil {
		return nil, err
	}
	return reqs, nil
}

func (g *Gorm) RotateRequestToken(ctx context.Context, requestID, newHash string, expiresAt time.Time) error {
	res := g.db.WithContext(ctx).Model(&model.SigningRequest{}).
		Where("id = ?", requestID).
		Updates(map[string]any{
			"token_hash": newHash,
			"expires_at": expiresAt,
			"status":     model.RequestSent,
			"used_count": 0,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordSignature inserts the signature and flips its request to signed in
// one transaction. The conditional UPDATE loses for a request that already
// signed, and the unique index on signing_request_id catches any insert
// racing past it.
func (g *Gorm) RecordSignature(ctx context.Context, sig *model.Signature) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&model.SigningRequest{}).
			Where("id = ? AND status <> ?", sig.SigningRequestID, model.RequestSigned).
			Updates(map[string]any{
				"status":     model.RequestSigned,
				"signed_at":  now,
				"used_count": gorm.Expr("used_count + 1"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadySigned
		}
		return tx.Create(sig).Error
	})
}

func (g *Gorm) SignaturesInScope(ctx context.Context, orgID, scope string) ([]model.Signature, error) {
	var sigs []model.Signature
	err := g.db.WithContext(ctx).
		Joins("JOIN signing_requests ON signing_requests.id = signatures.signing_request_id").
		Where("signing_requests.org_id = ? AND (signing_requests.envelope_id = ? OR signing_requests.group_id = ?)",
			orgID, scope, scope).
		Find(&sigs).Error
	if err != nil {
		return nil, err
	}
	return sigs, nil
}

func (g *Gorm) CreateDocument(ctx context.Context, doc *model.Document) error {
	return g.db.WithContext(ctx).Create(doc).Error
}

func (g *Gorm) DocumentByID(ctx context.Context, orgID, id string) (*model.Document, error) {
	var doc model.Document
	err := g.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (g *Gorm) MarkDocumentSigned(ctx context.Context, orgID, documentID, fileID string, signedAt time.Time) error {
	res := g.db.WithContext(ctx).Model(&model.Document{}).
		Where("org_id = ? AND id = ?", orgID, documentID).
		Updates(map[string]any{
			"status":           model.DocumentSigned,
			"executed_file_id": fileID,
			"signed_at":        signedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (g *Gorm) CreateFields(ctx context.Context, fields []model.Field) error {
	if len(fields) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).Create(&fields).Error
}

func (g *Gorm) FieldsForDocument(ctx context.Context, documentID string, revision int) ([]model.Field, error) {
	var fields []model.Field
	err := g.db.WithContext(ctx).
		Where("document_id = ? AND revision = ?", documentID, revision).
		Find(&fields).Error
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (g *Gorm) CreateFileWithVersion(ctx context.Context, file *model.StoredFile, version *model.FileVersion) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		file.CurrentVersionID = version.ID
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		return tx.Create(version).Error
	})
}

func (g *Gorm) FileByID(ctx context.Context, orgID, id string) (*model.StoredFile, error) {
	var f model.StoredFile
	err := g.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).First(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (g *Gorm) EffectApplied(ctx context.Context, envelopeID, action string) (bool, error) {
	var count int64
	err := g.db.WithContext(ctx).Model(&model.EffectRecord{}).
		Where("envelope_id = ? AND action = ?", envelopeID, action).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (g *Gorm) MarkEffectApplied(ctx context.Context, rec *model.EffectRecord) error {
	return g.db.WithContext(ctx).Create(rec).Error
}
