package service

import (
	"sort"

	"github.com/Amaz3n/inkwell/model"
)

// AuthorizeSequence rejects a submission while any required signer at a
// strictly lower sequence has not signed. The order is a hard precondition,
// not a UI affordance; a crafted request that skips the UI still fails here.
func AuthorizeSequence(current *model.SigningRequest, all []model.SigningRequest) error {
	for _, other := range all {
		if other.ID == current.ID {
			continue
		}
		if other.Sequence >= current.Sequence {
			continue
		}
		if other.IsRequired() && other.Status != model.RequestSigned {
			return NewError(CodeOutOfOrder, "waiting for an earlier signer to complete")
		}
	}
	return nil
}

// Progress is the completion detector's view of an envelope scope.
type Progress struct {
	AllRequiredSigned bool `json:"all_required_signed"`
	RequiredSigned    int  `json:"required_signed"`
	RequiredPending   int  `json:"required_pending"`
}

// Completion recomputes envelope progress from a full set of requests.
// Callers must pass a fresh read taken after their own write; computing
// this from pre-submission state is how concurrent co-signers both miss
// the finish.
func Completion(requests []model.SigningRequest) Progress {
	p := Progress{AllRequiredSigned: true}
	for _, r := range requests {
		if !r.IsRequired() {
			continue
		}
		switch r.Status {
		case model.RequestSigned:
			p.RequiredSigned++
		case model.RequestVoided, model.RequestExpired:
			// terminal without a signature; neither pending nor blocking
		default:
			p.RequiredPending++
			p.AllRequiredSigned = false
		}
	}
	if p.RequiredSigned == 0 && p.RequiredPending == 0 {
		// an envelope with no signable required requests never executes
		p.AllRequiredSigned = false
	}
	return p
}

// NextBatch returns the requests at the lowest sequence still pending among
// required non-terminal requests: the co-signers to notify next. Empty when
// nothing required remains.
func NextBatch(all []model.SigningRequest) []model.SigningRequest {
	minSeq := 0
	found := false
	for _, r := range all {
		if !r.IsRequired() || r.Terminal() {
			continue
		}
		if !found || r.Sequence < minSeq {
			minSeq = r.Sequence
			found = true
		}
	}
	if !found {
		return nil
	}

	var batch []model.SigningRequest
	for _, r := range all {
		if r.Sequence == minSeq && !r.Terminal() {
			batch = append(batch, r)
		}
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].ID < batch[j].ID })
	return batch
}
