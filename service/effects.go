package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/pkg/logger"
	"github.com/Amaz3n/inkwell/store"
)

// EffectContext carries everything a downstream action needs about the
// execution that triggered it.
type EffectContext struct {
	OrgID       string
	DocumentID  string
	EnvelopeID  string
	FileID      string
	SignerName  string
	SignerEmail string
}

// DomainActions are the downstream business collaborators invoked when an
// envelope executes. Each is selected by the document's originating entity
// type and invoked at most once per envelope.
type DomainActions interface {
	AcceptProposal(ctx context.Context, ec EffectContext, proposalID string) error
	ApproveChangeOrder(ctx context.Context, ec EffectContext, changeOrderID string) error
	ConfirmSelection(ctx context.Context, ec EffectContext, selectionID string) error
}

// Dispatcher routes a completed execution to the matching domain action.
// An effect record is written before the call, so a retried execution that
// crashed between record and call skips the action rather than risking a
// double-apply.
type Dispatcher struct {
	store   store.Store
	actions DomainActions
}

func NewDispatcher(st store.Store, actions DomainActions) *Dispatcher {
	return &Dispatcher{store: st, actions: actions}
}

// Dispatch invokes the downstream action for the document's source entity.
// Documents without a source entity dispatch nothing.
func (d *Dispatcher) Dispatch(ctx context.Context, doc *model.Document, ec EffectContext) error {
	entityType, entityID := sourceEntity(doc)
	if entityType == "" || entityID == "" {
		return nil
	}
	if d.actions == nil {
		logger.Warn(ctx, "no domain actions wired, skipping dispatch", "entity_type", entityType)
		return nil
	}

	applied, err := d.store.EffectApplied(ctx, ec.EnvelopeID, entityType)
	if err != nil {
		return fmt.Errorf("failed to check effect record: %w", err)
	}
	if applied {
		logger.Info(ctx, "side effect already applied, skipping",
			"entity_type", entityType, "entity_id", entityID)
		return nil
	}

	if err := d.store.MarkEffectApplied(ctx, &model.EffectRecord{
		EnvelopeID: ec.EnvelopeID,
		Action:     entityType,
		FileID:     ec.FileID,
		AppliedAt:  time.Now(),
	}); err != nil {
		return fmt.Errorf("failed to record effect: %w", err)
	}

	switch entityType {
	case model.SourceProposal:
		return d.actions.AcceptProposal(ctx, ec, entityID)
	case model.SourceChangeOrder:
		return d.actions.ApproveChangeOrder(ctx, ec, entityID)
	case model.SourceSelection:
		return d.actions.ConfirmSelection(ctx, ec, entityID)
	default:
		logger.Warn(ctx, "unknown source entity type", "entity_type", entityType)
		return nil
	}
}

// sourceEntity resolves the originating entity from the document columns,
// falling back to metadata for older records.
func sourceEntity(doc *model.Document) (entityType, entityID string) {
	entityType = doc.SourceEntityType
	entityID = doc.SourceEntityID
	if entityType == "" {
		if s, ok := doc.Metadata["source_entity_type"].(string); ok {
			entityType = s
		}
	}
	if entityID == "" {
		if s, ok := doc.Metadata["source_entity_id"].(string); ok {
			entityID = s
		}
	}
	return entityType, entityID
}
