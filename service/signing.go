package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/pkg/logger"
	"github.com/Amaz3n/inkwell/store"
	"github.com/google/uuid"
)

// SigningService runs the envelope signing workflow: resolve the token,
// authorize the signing order, validate fields, record the signature, and
// either execute the envelope or route to the next signers.
type SigningService struct {
	store      store.Store
	tokens     *TokenService
	storage    ArtifactStorage
	renderer   Renderer
	notifier   *Notifier
	dispatcher *Dispatcher
	events     *Events
	baseURL    string
}

func NewSigningService(st store.Store, tokens *TokenService, storage ArtifactStorage, renderer Renderer, notifier *Notifier, dispatcher *Dispatcher, events *Events, baseURL string) *SigningService {
	return &SigningService{
		store:      st,
		tokens:     tokens,
		storage:    storage,
		renderer:   renderer,
		notifier:   notifier,
		dispatcher: dispatcher,
		events:     events,
		baseURL:    baseURL,
	}
}

// SubmitInput is one signer's submission.
type SubmitInput struct {
	SignerName  string       `json:"signer_name"`
	SignerEmail string       `json:"signer_email,omitempty"`
	SignerIP    string       `json:"-"`
	UserAgent   string       `json:"-"`
	ConsentText string       `json:"consent_text"`
	Values      model.Values `json:"values"`
}

// SubmitResult reports the outcome of an accepted submission.
type SubmitResult struct {
	Signed              bool     `json:"signed"`
	EnvelopeStatus      string   `json:"envelope_status"`
	ExecutedDocumentURL string   `json:"executed_document_url,omitempty"`
	Progress            Progress `json:"progress"`
}

// SessionInfo is the read-only signing session the UI renders from.
type SessionInfo struct {
	DocumentID       string        `json:"document_id"`
	DocumentTitle    string        `json:"document_title"`
	SignerRole       string        `json:"signer_role,omitempty"`
	RecipientEmail   string        `json:"recipient_email,omitempty"`
	Sequence         int           `json:"sequence"`
	Fields           []model.Field `json:"fields"`
	RequiredFieldIDs []string      `json:"required_field_ids"`
	EnvelopeStatus   string        `json:"envelope_status"`
	Progress         Progress      `json:"progress"`
}

// workflowContext tags the context with identifiers for log enrichment.
func workflowContext(ctx context.Context, req *model.SigningRequest) context.Context {
	ctx = context.WithValue(ctx, logger.OrgKey, req.OrgID)
	ctx = context.WithValue(ctx, logger.EnvelopeKey, req.Scope())
	if req.RecipientEmail != "" {
		ctx = context.WithValue(ctx, logger.SignerKey, req.RecipientEmail)
	}
	return ctx
}

// Session resolves a token read-only and returns what the signer sees.
// Resolving never mutates the request, so reloading the page is free.
func (s *SigningService) Session(ctx context.Context, token string) (*SessionInfo, error) {
	req, err := s.tokens.Resolve(ctx, s.store, token)
	if err != nil {
		return nil, err
	}
	ctx = workflowContext(ctx, req)

	doc, err := s.store.DocumentByID(ctx, req.OrgID, req.DocumentID)
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load document", err)
	}
	fields, err := s.store.FieldsForDocument(ctx, doc.ID, doc.Revision)
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load fields", err)
	}
	all, err := s.store.RequestsInScope(ctx, req.OrgID, req.Scope())
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load envelope", err)
	}

	visible := VisibleFields(fields, req.SignerRole)
	var requiredIDs []string
	for _, f := range RequiredFields(fields, req.SignerRole) {
		requiredIDs = append(requiredIDs, f.ID)
	}

	info := &SessionInfo{
		DocumentID:       doc.ID,
		DocumentTitle:    doc.Title,
		SignerRole:       req.SignerRole,
		RecipientEmail:   req.RecipientEmail,
		Sequence:         req.Sequence,
		Fields:           visible,
		RequiredFieldIDs: requiredIDs,
		Progress:         Completion(all),
	}
	if env, err := s.store.EnvelopeByScope(ctx, req.OrgID, req.Scope()); err == nil {
		info.EnvelopeStatus = env.Status
	}
	return info, nil
}

// Submit runs the full pipeline for one signer's submission.
func (s *SigningService) Submit(ctx context.Context, token string, in *SubmitInput) (*SubmitResult, error) {
	req, err := s.tokens.Resolve(ctx, s.store, token)
	if err != nil {
		return nil, err
	}
	ctx = workflowContext(ctx, req)

	doc, err := s.store.DocumentByID(ctx, req.OrgID, req.DocumentID)
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load document", err)
	}

	all, err := s.store.RequestsInScope(ctx, req.OrgID, req.Scope())
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load envelope", err)
	}
	if err := AuthorizeSequence(req, all); err != nil {
		return nil, err
	}

	fields, err := s.store.FieldsForDocument(ctx, doc.ID, doc.Revision)
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not load fields", err)
	}
	if err := validateSubmission(fields, req.SignerRole, in); err != nil {
		return nil, err
	}

	sig := &model.Signature{
		ID:               uuid.New().String(),
		SigningRequestID: req.ID,
		DocumentID:       doc.ID,
		Revision:         doc.Revision,
		SignerName:       strings.TrimSpace(in.SignerName),
		SignerEmail:      in.SignerEmail,
		SignerIP:         in.SignerIP,
		UserAgent:        in.UserAgent,
		ConsentText:      in.ConsentText,
		Values:           in.Values,
	}
	if err := s.store.RecordSignature(ctx, sig); err != nil {
		if errors.Is(err, store.ErrAlreadySigned) {
			return nil, NewError(CodeInvalid, "this signing request has already been completed")
		}
		return nil, WrapError(CodePersistenceFailure, "could not record signature", err)
	}

	logger.Info(ctx, "recipient signed",
		"signing_request_id", req.ID,
		"document_id", doc.ID,
		"sequence", req.Sequence,
	)
	s.events.Emit(ctx, EventRecipientSigned, req.Scope(), map[string]any{
		"signing_request_id": req.ID,
		"document_id":        doc.ID,
		"signer_name":        sig.SignerName,
		"signer_email":       sig.SignerEmail,
	})

	// Fresh read after our write. Completion must be derived from state
	// that includes every signature landed so far, ours and any
	// concurrent co-signer's.
	fresh, err := s.store.RequestsInScope(ctx, req.OrgID, req.Scope())
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not re-read envelope", err)
	}
	prog := Completion(fresh)

	if prog.AllRequiredSigned {
		return s.finishEnvelope(ctx, doc, req, fresh, prog)
	}
	return s.routeNext(ctx, doc, req, fresh, prog)
}

// routeNext handles the not-yet-complete branch: advance envelope status and
// notify the next sequence batch. Notification failures are logged only;
// the signature is already durable.
func (s *SigningService) routeNext(ctx context.Context, doc *model.Document, req *model.SigningRequest, fresh []model.SigningRequest, prog Progress) (*SubmitResult, error) {
	status := model.EnvelopeSent
	if prog.RequiredSigned > 0 {
		status = model.EnvelopePartiallySigned
		if err := s.store.SetEnvelopePartiallySigned(ctx, req.OrgID, req.Scope()); err != nil && !errors.Is(err, store.ErrNotFound) {
			logger.Error(ctx, "failed to advance envelope status", "error", err)
		}
	}

	if batch := NextBatch(fresh); len(batch) > 0 && s.notifier != nil {
		if err := s.notifier.SendNextSigners(ctx, s.store, doc, batch); err != nil {
			logger.Error(ctx, "next-signer notification failed", "error", err)
		}
	}

	return &SubmitResult{
		Signed:         true,
		EnvelopeStatus: status,
		Progress:       prog,
	}, nil
}

// validateSubmission enforces consent and the required-field predicate.
// The same predicate runs client-side for feedback; this one is the
// authority.
func validateSubmission(fields []model.Field, role string, in *SubmitInput) error {
	if strings.TrimSpace(in.SignerName) == "" {
		return NewError(CodeValidationFailed, "signer name is required")
	}
	if strings.TrimSpace(in.ConsentText) == "" {
		return NewError(CodeValidationFailed, "consent to electronic signing is required")
	}
	if missing := MissingRequired(fields, role, in.Values); len(missing) > 0 {
		return NewError(CodeValidationFailed, "%d required field(s) incomplete", len(missing))
	}
	return nil
}
