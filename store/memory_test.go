package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Amaz3n/inkwell/model"
)

func seedEnvelope(t *testing.T, m *Memory, status string) {
	t.Helper()
	ctx := context.Background()
	if err := m.CreateEnvelope(ctx, &model.Envelope{
		ID:         "env-1",
		OrgID:      "org-1",
		DocumentID: "doc-1",
		Status:     status,
	}); err != nil {
		t.Fatalf("CreateEnvelope: %v", err)
	}
}

func TestMemoryRecordSignatureOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if err := m.CreateSigningRequest(ctx, &model.SigningRequest{
		ID:         "req-1",
		OrgID:      "org-1",
		DocumentID: "doc-1",
		EnvelopeID: "env-1",
		TokenHash:  "hash-1",
		Status:     model.RequestSent,
	}); err != nil {
		t.Fatalf("CreateSigningRequest: %v", err)
	}

	sig := &model.Signature{ID: "sig-1", SigningRequestID: "req-1", DocumentID: "doc-1"}
	if err := m.RecordSignature(ctx, sig); err != nil {
		t.Fatalf("First RecordSignature failed: %v", err)
	}

	req, err := m.RequestByTokenHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("RequestByTokenHash: %v", err)
	}
	if req.Status != model.RequestSigned {
		t.Errorf("Expected status signed, got %s", req.Status)
	}
	if req.UsedCount != 1 {
		t.Errorf("Expected used_count 1, got %d", req.UsedCount)
	}
	if req.SignedAt == nil {
		t.Error("Expected signed_at to be stamped")
	}

	err = m.RecordSignature(ctx, &model.Signature{ID: "sig-2", SigningRequestID: "req-1"})
	if !errors.Is(err, ErrAlreadySigned) {
		t.Errorf("Expected ErrAlreadySigned, got %v", err)
	}
}

func TestMemoryRecordSignatureConcurrent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.CreateSigningRequest(ctx, &model.SigningRequest{
		ID: "req-1", OrgID: "org-1", EnvelopeID: "env-1", TokenHash: "h1", Status: model.RequestSent,
	})

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.RecordSignature(ctx, &model.Signature{SigningRequestID: "req-1"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("Expected exactly 1 successful record, got %d", succeeded)
	}
}

func TestMemoryClaimExecutionSingleWinner(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedEnvelope(t, m, model.EnvelopePartiallySigned)

	const attempts = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := m.ClaimExecution(ctx, "org-1", "env-1")
			if err != nil {
				t.Errorf("ClaimExecution: %v", err)
				return
			}
			if claimed {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("Expected exactly 1 claim winner, got %d", winners)
	}
}

func TestMemoryExecutionLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedEnvelope(t, m, model.EnvelopeSent)

	claimed, err := m.ClaimExecution(ctx, "org-1", "env-1")
	if err != nil || !claimed {
		t.Fatalf("Expected claim to succeed, got claimed=%v err=%v", claimed, err)
	}

	// Finalize requires the executing state
	if err := m.FinalizeExecution(ctx, "org-1", "env-1", "file-1", time.Now()); err != nil {
		t.Fatalf("FinalizeExecution: %v", err)
	}

	env, err := m.EnvelopeByScope(ctx, "org-1", "env-1")
	if err != nil {
		t.Fatalf("EnvelopeByScope: %v", err)
	}
	if env.Status != model.EnvelopeExecuted {
		t.Errorf("Expected status executed, got %s", env.Status)
	}
	if env.ExecutedFileID != "file-1" {
		t.Errorf("Expected executed_file_id file-1, got %s", env.ExecutedFileID)
	}
	if env.ExecutedAt == nil {
		t.Error("Expected executed_at to be stamped")
	}

	// Executed is terminal: no further claims, no refinalization
	if claimed, _ := m.ClaimExecution(ctx, "org-1", "env-1"); claimed {
		t.Error("Expected no claim on executed envelope")
	}
	if err := m.FinalizeExecution(ctx, "org-1", "env-1", "file-2", time.Now()); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict refinalizing, got %v", err)
	}
}

func TestMemoryReleaseExecution(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seedEnvelope(t, m, model.EnvelopePartiallySigned)

	if err := m.ReleaseExecution(ctx, "org-1", "env-1"); !errors.Is(err, ErrConflict) {
		t.Errorf("Expected ErrConflict releasing unclaimed envelope, got %v", err)
	}

	if claimed, _ := m.ClaimExecution(ctx, "org-1", "env-1"); !claimed {
		t.Fatal("Expected claim to succeed")
	}
	if err := m.ReleaseExecution(ctx, "org-1", "env-1"); err != nil {
		t.Fatalf("ReleaseExecution: %v", err)
	}

	// Released claim can be re-claimed
	if claimed, _ := m.ClaimExecution(ctx, "org-1", "env-1"); !claimed {
		t.Error("Expected re-claim after release")
	}
}

func TestMemoryScopeFallsBackToGroupID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	// legacy envelope: requests carry only a group id
	m.CreateEnvelope(ctx, &model.Envelope{
		ID: "env-legacy", OrgID: "org-1", DocumentID: "doc-1", GroupID: "group-7", Status: model.EnvelopeSent,
	})
	m.CreateSigningRequest(ctx, &model.SigningRequest{
		ID: "req-1", OrgID: "org-1", GroupID: "group-7", TokenHash: "h1", Status: model.RequestSent,
	})
	m.CreateSigningRequest(ctx, &model.SigningRequest{
		ID: "req-2", OrgID: "org-1", GroupID: "group-7", TokenHash: "h2", Status: model.RequestSent,
	})

	reqs, err := m.RequestsInScope(ctx, "org-1", "group-7")
	if err != nil {
		t.Fatalf("RequestsInScope: %v", err)
	}
	if len(reqs) != 2 {
		t.Errorf("Expected 2 requests in legacy scope, got %d", len(reqs))
	}

	env, err := m.EnvelopeByScope(ctx, "org-1", "group-7")
	if err != nil {
		t.Fatalf("EnvelopeByScope by group id: %v", err)
	}
	if env.ID != "env-legacy" {
		t.Errorf("Expected env-legacy, got %s", env.ID)
	}
}

func TestMemoryRotateRequestToken(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	m.CreateSigningRequest(ctx, &model.SigningRequest{
		ID: "req-1", OrgID: "org-1", EnvelopeID: "env-1", TokenHash: "old-hash",
		Status: model.RequestDraft, UsedCount: 2,
	})

	expiresAt := time.Now().Add(24 * time.Hour)
	if err := m.RotateRequestToken(ctx, "req-1", "new-hash", expiresAt); err != nil {
		t.Fatalf("RotateRequestToken: %v", err)
	}

	if _, err := m.RequestByTokenHash(ctx, "old-hash"); !errors.Is(err, ErrNotFound) {
		t.Error("Expected old hash to stop resolving")
	}

	req, err := m.RequestByTokenHash(ctx, "new-hash")
	if err != nil {
		t.Fatalf("RequestByTokenHash new hash: %v", err)
	}
	if req.Status != model.RequestSent {
		t.Errorf("Expected status sent after rotation, got %s", req.Status)
	}
	if req.UsedCount != 0 {
		t.Errorf("Expected used_count reset, got %d", req.UsedCount)
	}
}

func TestMemoryEffectRecords(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	applied, err := m.EffectApplied(ctx, "env-1", "proposal")
	if err != nil || applied {
		t.Fatalf("Expected no effect record, got applied=%v err=%v", applied, err)
	}

	if err := m.MarkEffectApplied(ctx, &model.EffectRecord{
		EnvelopeID: "env-1", Action: "proposal", FileID: "file-1", AppliedAt: time.Now(),
	}); err != nil {
		t.Fatalf("MarkEffectApplied: %v", err)
	}

	applied, err = m.EffectApplied(ctx, "env-1", "proposal")
	if err != nil || !applied {
		t.Errorf("Expected effect to be recorded, got applied=%v err=%v", applied, err)
	}

	// a different action for the same envelope is independent
	applied, _ = m.EffectApplied(ctx, "env-1", "change_order")
	if applied {
		t.Error("Expected different action to be unapplied")
	}
}
