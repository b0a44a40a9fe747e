package store

import (
	"context"
	"sync"
	"time"

	"github.com/Amaz3n/inkwell/model"
)

// Memory is an in-memory Store guarded by a single mutex. Every guarded
// transition runs under the lock, so it provides the same at-most-once
// semantics as the database-backed store. Used by tests and no-database
// dev runs.
type Memory struct {
	mu        sync.RWMutex
	envelopes map[string]*model.Envelope
	requests  map[string]*model.SigningRequest
	sigs      map[string]*model.Signature // keyed by signing request id
	documents map[string]*model.Document
	fields    map[string][]model.Field // keyed by document id
	files     map[string]*model.StoredFile
	versions  map[string]*model.FileVersion
	effects   map[string]*model.EffectRecord // keyed by envelope id + action
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		envelopes: make(map[string]*model.Envelope),
		requests:  make(map[string]*model.SigningRequest),
		sigs:      make(map[string]*model.Signature),
		documents: make(map[string]*model.Document),
		fields:    make(map[string][]model.Field),
		files:     make(map[string]*model.StoredFile),
		versions:  make(map[string]*model.FileVersion),
		effects:   make(map[string]*model.EffectRecord),
	}
}

func effectKey(envelopeID, action string) string {
	return envelopeID + "\x00" + action
}

func (m *Memory) CreateEnvelope(ctx context.Context, env *model.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *env
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.envelopes[env.ID] = &cp
	return nil
}

// findEnvelope matches by id first, then by legacy group id.
// Must be called with the lock held.
func (m *Memory) findEnvelope(orgID, scope string) *model.Envelope {
	if env, ok := m.envelopes[scope]; ok && env.OrgID == orgID {
		return env
	}
	for _, env := range m.envelopes {
		if env.OrgID == orgID && env.GroupID != "" && env.GroupID == scope {
			return env
		}
	}
	return nil
}

func (m *Memory) EnvelopeByScope(ctx context.Context, orgID, scope string) (*model.Envelope, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	env := m.findEnvelope(orgID, scope)
	if env == nil {
		return nil, ErrNotFound
	}
	cp := *env
	return &cp, nil
}

func (m *Memory) SetEnvelopePartiallySigned(ctx context.Context, orgID, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	env := m.findEnvelope(orgID, scope)
	if env == nil {
		return ErrNotFound
	}
	if env.Status == model.EnvelopeSent {
		env.Status = model.EnvelopePartiallySigned
		env.UpdatedAt = time.Now()
	}
	return nil
}

func (m *Memory) ClaimExecution(ctx context.Context, orgID, scope string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	env := m.findEnvelope(orgID, scope)
	if env == nil {
		return false, ErrNotFound
	}
	if env.Status != model.EnvelopeSent && env.Status != model.EnvelopePartiallySigned {
		return false, nil
	}
	env.Status = model.EnvelopeExecuting
	env.UpdatedAt = time.Now()
	return true, nil
}

func (m *Memory) ReleaseExecution(ctx context.Context, orgID, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	env := m.findEnvelope(orgID, scope)
	if env == nil {
		return ErrNotFound
	}
	if env.Status != model.EnvelopeExecuting {
		return ErrConflict
	}
	env.Status = model.EnvelopePartiallySigned
	env.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) FinalizeExecution(ctx context.Context, orgID, scope, fileID string, executedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	env := m.findEnvelope(orgID, scope)
	if env == nil {
		return ErrNotFound
	}
	if env.Status != model.EnvelopeExecuting {
		return ErrConflict
	}
	env.Status = model.EnvelopeExecuted
	env.ExecutedFileID = fileID
	env.ExecutedAt = &executedAt
	env.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) CreateSigningRequest(ctx context.Context, req *model.SigningRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *req
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.requests[req.ID] = &cp
	return nil
}

func (m *Memory) RequestByTokenHash(ctx context.Context, hash string) (*model.SigningRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, req := range m.requests {
		if req.TokenHash == hash {
			cp := *req
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) RequestsInScope(ctx context.Context, orgID, scope string) ([]model.SigningRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.SigningRequest
	for _, req := range m.requests {
		if req.OrgID != orgID {
			continue
		}
		if req.EnvelopeID == scope || (req.GroupID != "" && req.GroupID == scope) {
			out = append(out, *req)
		}
	}
	return out, nil
}

func (m *Memory) RotateRequestToken(ctx context.Context, requestID, newHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[requestID]
	if !ok {
		return ErrNotFound
	}
	req.TokenHash = newHash
	req.ExpiresAt = expiresAt
	req.Status = model.RequestSent
	req.UsedCount = 0
	req.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) RecordSignature(ctx context.Context, sig *model.Signature) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sigs[sig.SigningRequestID]; exists {
		return ErrAlreadySigned
	}
	req, ok := m.requests[sig.SigningRequestID]
	if !ok {
		return ErrNotFound
	}
	if req.Status == model.RequestSigned {
		return ErrAlreadySigned
	}

	now := time.Now()
	req.Status = model.RequestSigned
	req.SignedAt = &now
	req.UsedCount++
	req.UpdatedAt = now

	cp := *sig
	cp.CreatedAt = now
	m.sigs[sig.SigningRequestID] = &cp
	return nil
}

func (m *Memory) SignaturesInScope(ctx context.Context, orgID, scope string) ([]model.Signature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Signature
	for id, sig := range m.sigs {
		req, ok := m.requests[id]
		if !ok || req.OrgID != orgID {
			continue
		}
		if req.EnvelopeID == scope || (req.GroupID != "" && req.GroupID == scope) {
			out = append(out, *sig)
		}
	}
	return out, nil
}

func (m *Memory) CreateDocument(ctx context.Context, doc *model.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *doc
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	m.documents[doc.ID] = &cp
	return nil
}

func (m *Memory) DocumentByID(ctx context.Context, orgID, id string) (*model.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[id]
	if !ok || doc.OrgID != orgID {
		return nil, ErrNotFound
	}
	cp := *doc
	return &cp, nil
}

func (m *Memory) MarkDocumentSigned(ctx context.Context, orgID, documentID, fileID string, signedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[documentID]
	if !ok || doc.OrgID != orgID {
		return ErrNotFound
	}
	doc.Status = model.DocumentSigned
	doc.ExecutedFileID = fileID
	doc.SignedAt = &signedAt
	doc.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) CreateFields(ctx context.Context, fields []model.Field) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range fields {
		m.fields[f.DocumentID] = append(m.fields[f.DocumentID], f)
	}
	return nil
}

func (m *Memory) FieldsForDocument(ctx context.Context, documentID string, revision int) ([]model.Field, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.Field
	for _, f := range m.fields[documentID] {
		if f.Revision == revision {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *Memory) CreateFileWithVersion(ctx context.Context, file *model.StoredFile, version *model.FileVersion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	fc := *file
	fc.CreatedAt = time.Now()
	fc.CurrentVersionID = version.ID
	vc := *version
	vc.CreatedAt = fc.CreatedAt
	m.files[file.ID] = &fc
	m.versions[version.ID] = &vc
	return nil
}

func (m *Memory) FileByID(ctx context.Context, orgID, id string) (*model.StoredFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[id]
	if !ok || f.OrgID != orgID {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *Memory) EffectApplied(ctx context.Context, envelopeID, action string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.effects[effectKey(envelopeID, action)]
	return ok, nil
}

func (m *Memory) MarkEffectApplied(ctx context.Context, rec *model.EffectRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.effects[effectKey(rec.EnvelopeID, rec.Action)] = &cp
	return nil
}
