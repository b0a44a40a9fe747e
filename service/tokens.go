package service

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Amaz3n/inkwell/config"
	"github.com/Amaz3n/inkwell/model"
	"github.com/Amaz3n/inkwell/store"
	"github.com/golang-jwt/jwt/v5"
)

// TokenService owns both token surfaces of the workflow: the opaque signer
// bearer tokens (stored only as keyed hashes) and the short-lived JWT
// download tokens for executed files.
type TokenService struct {
	cfg *config.SigningConfig
}

// NewTokenService fails when the HMAC secret is absent; hashing tokens with
// an empty key would make every stored hash forgeable.
func NewTokenService(cfg *config.SigningConfig) (*TokenService, error) {
	if cfg.TokenSecret == "" {
		return nil, NewError(CodeMisconfigured, "signing token secret is not configured")
	}
	return &TokenService{cfg: cfg}, nil
}

// Hash computes the keyed digest stored in place of the raw token. A leaked
// row never reveals a usable token, and a leaked token reverses to nothing.
func (s *TokenService) Hash(token string) string {
	mac := hmac.New(sha256.New, []byte(s.cfg.TokenSecret))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// Issue generates a fresh high-entropy bearer token and its stored hash.
func (s *TokenService) Issue() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to generate token: %w", err)
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	return token, s.Hash(token), nil
}

// TokenLifetime is how long a freshly issued signer token stays valid.
func (s *TokenService) TokenLifetime() time.Duration {
	return time.Duration(s.cfg.TokenExpireDays) * 24 * time.Hour
}

// MaxUses is the number of submissions allowed per issued token.
func (s *TokenService) MaxUses() int {
	return s.cfg.MaxUses
}

// Resolve maps a bearer token to its signing request and checks every
// usability precondition. Read-only: resolving twice mutates nothing.
func (s *TokenService) Resolve(ctx context.Context, st store.Store, token string) (*model.SigningRequest, error) {
	req, err := st.RequestByTokenHash(ctx, s.Hash(token))
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewError(CodeNotFound, "signing link not recognized")
	}
	if err != nil {
		return nil, WrapError(CodePersistenceFailure, "could not look up signing request", err)
	}

	if !req.ExpiresAt.IsZero() && time.Now().After(req.ExpiresAt) {
		return nil, NewError(CodeExpired, "this signing link has expired")
	}
	if req.Status == model.RequestVoided || req.Status == model.RequestExpired {
		return nil, NewError(CodeInvalid, "this signing request is no longer active")
	}
	if req.MaxUses > 0 && req.UsedCount >= req.MaxUses {
		return nil, NewError(CodeExhausted, "this signing link has already been used")
	}

	return req, nil
}

type downloadClaims struct {
	OrgID  string `json:"org_id"`
	FileID string `json:"file_id"`
	jwt.RegisteredClaims
}

// DownloadToken issues a short-lived token granting access to one executed
// file within one org.
func (s *TokenService) DownloadToken(orgID, fileID string) (string, error) {
	claims := downloadClaims{
		OrgID:  orgID,
		FileID: fileID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(s.cfg.DownloadExpireMin) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.DownloadSecret))
}

// ParseDownloadToken validates a download token and returns its scope.
func (s *TokenService) ParseDownloadToken(tokenString string) (orgID, fileID string, err error) {
	claims := &downloadClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.DownloadSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", NewError(CodeExpired, "download link has expired")
		}
		return "", "", NewError(CodeNotFound, "download link not recognized")
	}
	if !token.Valid || claims.OrgID == "" || claims.FileID == "" {
		return "", "", NewError(CodeNotFound, "download link not recognized")
	}
	return claims.OrgID, claims.FileID, nil
}
