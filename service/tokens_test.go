package service

import (
	"context"
	"testing"
	"time"

	"github.com/Amaz3n/inkwell/config"
	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/store"
)

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(&config.SigningConfig{
		TokenSecret:       "test-secret",
		TokenExpireDays:   30,
		MaxUses:           1,
		DownloadSecret:    "download-secret",
		DownloadExpireMin: 60,
	})
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestNewTokenServiceMissingSecret(t *testing.T) {
	_, err := NewTokenService(&config.SigningConfig{})
	if err == nil {
		t.Fatal("Expected error for missing secret")
	}
	if CodeOf(err) != CodeMisconfigured {
		t.Errorf("Expected misconfigured code, got %s", CodeOf(err))
	}
}

func TestHashDeterministic(t *testing.T) {
	svc := newTestTokens(t)

	h1 := svc.Hash("some-token")
	h2 := svc.Hash("some-token")
	if h1 != h2 {
		t.Error("Expected identical hashes for identical tokens")
	}
	if h1 == svc.Hash("other-token") {
		t.Error("Expected different hashes for different tokens")
	}

	other, _ := NewTokenService(&config.SigningConfig{TokenSecret: "different-secret"})
	if h1 == other.Hash("some-token") {
		t.Error("Expected hash to depend on the secret")
	}
}

func TestIssueProducesResolvableToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestTokens(t)
	st := store.NewMemory()

	token, hash, err := svc.Issue()
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" || hash == "" {
		t.Fatal("Expected non-empty token and hash")
	}
	if svc.Hash(token) != hash {
		t.Error("Expected returned hash to match Hash(token)")
	}

	st.CreateSigningRequest(ctx, &model.SigningRequest{
		ID: "req-1", OrgID: "org-1", EnvelopeID: "env-1",
		TokenHash: hash, Status: model.RequestSent,
		ExpiresAt: time.Now().Add(time.Hour), MaxUses: 1,
	})

	req, err := svc.Resolve(ctx, st, token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if req.ID != "req-1" {
		t.Errorf("Expected req-1, got %s", req.ID)
	}

	// Resolving twice mutates nothing
	again, err := svc.Resolve(ctx, st, token)
	if err != nil {
		t.Fatalf("Second resolve: %v", err)
	}
	if again.UsedCount != req.UsedCount || again.Status != req.Status {
		t.Error("Expected resolve to be read-only")
	}
}

func TestResolveTaxonomy(t *testing.T) {
	ctx := context.Background()
	svc := newTestTokens(t)

	seed := func(mutate func(*model.SigningRequest)) (store.Store, string) {
		st := store.NewMemory()
		token, hash, _ := svc.Issue()
		req := &model.SigningRequest{
			ID: "req-1", OrgID: "org-1", EnvelopeID: "env-1",
			TokenHash: hash, Status: model.RequestSent,
			ExpiresAt: time.Now().Add(time.Hour), MaxUses: 1,
		}
		mutate(req)
		st.CreateSigningRequest(ctx, req)
		return st, token
	}

	t.Run("unknown token", func(t *testing.T) {
		st := store.NewMemory()
		_, err := svc.Resolve(ctx, st, "no-such-token")
		if CodeOf(err) != CodeNotFound {
			t.Errorf("Expected not_found, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		st, token := seed(func(r *model.SigningRequest) {
			r.ExpiresAt = time.Now().Add(-time.Minute)
		})
		_, err := svc.Resolve(ctx, st, token)
		if CodeOf(err) != CodeExpired {
			t.Errorf("Expected expired, got %v", err)
		}
	})

	t.Run("voided", func(t *testing.T) {
		st, token := seed(func(r *model.SigningRequest) {
			r.Status = model.RequestVoided
		})
		_, err := svc.Resolve(ctx, st, token)
		if CodeOf(err) != CodeInvalid {
			t.Errorf("Expected invalid, got %v", err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		st, token := seed(func(r *model.SigningRequest) {
			r.UsedCount = 1
		})
		_, err := svc.Resolve(ctx, st, token)
		if CodeOf(err) != CodeExhausted {
			t.Errorf("Expected exhausted, got %v", err)
		}
	})
}

func TestDownloadTokenRoundTrip(t *testing.T) {
	svc := newTestTokens(t)

	token, err := svc.DownloadToken("org-1", "file-1")
	if err != nil {
		t.Fatalf("DownloadToken: %v", err)
	}

	orgID, fileID, err := svc.ParseDownloadToken(token)
	if err != nil {
		t.Fatalf("ParseDownloadToken: %v", err)
	}
	if orgID != "org-1" || fileID != "file-1" {
		t.Errorf("Expected org-1/file-1, got %s/%s", orgID, fileID)
	}
}

func TestParseDownloadTokenGarbage(t *testing.T) {
	svc := newTestTokens(t)

	if _, _, err := svc.ParseDownloadToken("not-a-jwt"); CodeOf(err) != CodeNotFound {
		t.Errorf("Expected not_found for garbage token, got %v", err)
	}
}
