package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/pkg/logger"
	"github.com/google/uuid"
)

// finishEnvelope is the all-required-signed branch. The execution claim is
// the concurrency gate: of N co-signers finishing simultaneously, exactly
// one wins the claim and produces the artifact; the rest report the
// envelope's status as they find it.
func (s *SigningService) finishEnvelope(ctx context.Context, doc *model.Document, req *model.SigningRequest, fresh []model.SigningRequest, prog Progress) (*SubmitResult, error) {
	scope := req.Scope()

	claimed, err := s.store.ClaimExecution(ctx, req.OrgID, scope)
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not claim envelope execution", err)
	}

	if !claimed {
		result := &SubmitResult{Signed: true, EnvelopeStatus: model.EnvelopeExecuting, Progress: prog}
		if env, err := s.store.EnvelopeByScope(ctx, req.OrgID, scope); err == nil {
			result.EnvelopeStatus = env.Status
			if env.ExecutedFileID != "" {
				result.ExecutedDocumentURL = s.downloadURL(ctx, req.OrgID, env.ExecutedFileID)
			}
		}
		return result, nil
	}

	fileID, artifact, err := s.execute(ctx, doc, req.OrgID, scope, fresh)
	if err != nil {
		// the claim must not stick to a failed execution; release it so a
		// retry can re-claim
		if relErr := s.store.ReleaseExecution(ctx, req.OrgID, scope); relErr != nil {
			logger.Error(ctx, "failed to release execution claim", "error", relErr)
		}
		return nil, err
	}

	// Past this point the signature and artifact are durable. Downstream
	// dispatch and notification failures are logged, never rolled back.
	if s.dispatcher != nil {
		ec := EffectContext{
			OrgID:       req.OrgID,
			DocumentID:  doc.ID,
			EnvelopeID:  scope,
			FileID:      fileID,
			SignerName:  req.SignerRole,
			SignerEmail: req.RecipientEmail,
		}
		if err := s.dispatcher.Dispatch(ctx, doc, ec); err != nil {
			logger.Error(ctx, "side-effect dispatch failed", "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.SendExecuted(ctx, doc, fresh, fileID, artifact); err != nil {
			logger.Error(ctx, "executed-copy notification failed", "error", err)
		}
	}

	return &SubmitResult{
		Signed:              true,
		EnvelopeStatus:      model.EnvelopeExecuted,
		ExecutedDocumentURL: s.downloadURL(ctx, req.OrgID, fileID),
		Progress:            prog,
	}, nil
}

// execute merges all collected values, renders the flattened artifact,
// stores it, and finalizes the envelope and document. Caller holds the
// execution claim.
func (s *SigningService) execute(ctx context.Context, doc *model.Document, orgID, scope string, requests []model.SigningRequest) (fileID string, artifact []byte, err error) {
	sigs, err := s.store.SignaturesInScope(ctx, orgID, scope)
	if err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not load signatures", err)
	}
	merged := MergeValues(requests, sigs)

	srcFile, err := s.store.FileByID(ctx, orgID, doc.SourceFileID)
	if err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not resolve source file", err)
	}
	source, err := s.storage.Download(ctx, orgID, srcFile.Path)
	if err != nil {
		return "", nil, WrapError(CodeStorageFailure, "could not fetch source document", err)
	}

	fields, err := s.store.FieldsForDocument(ctx, doc.ID, doc.Revision)
	if err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not load fields", err)
	}

	artifact, err = s.renderer.RenderExecuted(source, fields, merged)
	if err != nil {
		return "", nil, WrapError(CodeStorageFailure, "could not render executed document", err)
	}

	now := time.Now().UTC()
	path := executedPath(orgID, doc, now)
	if err := s.storage.Upload(ctx, orgID, path, artifact, "application/pdf", false); err != nil {
		return "", nil, WrapError(CodeStorageFailure, "could not store executed document", err)
	}

	file := &model.StoredFile{
		ID:          uuid.New().String(),
		OrgID:       orgID,
		Path:        path,
		ContentType: "application/pdf",
		Size:        int64(len(artifact)),
	}
	version := &model.FileVersion{
		ID:     uuid.New().String(),
		FileID: file.ID,
		Number: 1,
		Path:   path,
	}
	if err := s.store.CreateFileWithVersion(ctx, file, version); err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not record executed file", err)
	}

	if err := s.store.FinalizeExecution(ctx, orgID, scope, file.ID, now); err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not finalize envelope", err)
	}
	if err := s.store.MarkDocumentSigned(ctx, orgID, doc.ID, file.ID, now); err != nil {
		return "", nil, WrapError(CodePersistenceFailure, "could not mark document signed", err)
	}

	logger.Info(ctx, "envelope executed",
		"document_id", doc.ID,
		"executed_file_id", file.ID,
		"path", path,
	)
	s.events.Emit(ctx, EventExecuted, scope, map[string]any{
		"document_id":      doc.ID,
		"executed_file_id": file.ID,
	})

	return file.ID, artifact, nil
}

// MergeValues folds every signature's value map into one, in request order
// (sequence, then creation, then id); later writes win for the same field.
// Deterministic for a fixed signature set.
func MergeValues(requests []model.SigningRequest, sigs []model.Signature) model.Values {
	order := make(map[string]int, len(requests))
	sorted := make([]model.SigningRequest, len(requests))
	copy(sorted, requests)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	for i, r := range sorted {
		order[r.ID] = i
	}

	ordered := make([]model.Signature, len(sigs))
	copy(ordered, sigs)
	sort.Slice(ordered, func(i, j int) bool {
		return order[ordered[i].SigningRequestID] < order[ordered[j].SigningRequestID]
	})

	merged := make(model.Values)
	for _, sig := range ordered {
		for id, v := range sig.Values {
			merged[id] = v
		}
	}
	return merged
}

// executedPath builds the deterministic org/project/document-scoped key for
// the flattened artifact.
func executedPath(orgID string, doc *model.Document, ts time.Time) string {
	project := doc.ProjectID
	if project == "" {
		project = "general"
	}
	return fmt.Sprintf("%s/projects/%s/documents/%s/executed/%s-%s.pdf",
		orgID, project, doc.ID, ts.Format("20060102T150405Z"), slugify(doc.Title))
}

// slugify lowercases the title and collapses anything else to hyphens.
func slugify(title string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		slug = "document"
	}
	return slug
}

// downloadURL mints a short-lived link for the executed artifact. Failures
// degrade to an empty URL; the UI falls back to email delivery.
func (s *SigningService) downloadURL(ctx context.Context, orgID, fileID string) string {
	token, err := s.tokens.DownloadToken(orgID, fileID)
	if err != nil {
		logger.Error(ctx, "failed to mint download token", "file_id", fileID, "error", err)
		return ""
	}
	return s.baseURL + "/api/files/" + token
}
