// Package sessions issues and validates revocable auth sessions. The
// client holds a signed token; the server keeps a row keyed by the
// token's hash so sign-out works even before the token expires.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pixelhaven/marketplace/internal/app/domain/session"
	"github.com/pixelhaven/marketplace/internal/app/storage"
	svcerr "github.com/pixelhaven/marketplace/internal/errors"
	"github.com/pixelhaven/marketplace/pkg/logger"
)

const issuer = "pixelhaven-marketplace"

// Claims are the JWT claims carried by a session token.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Service issues, validates and revokes sessions.
type Service struct {
	store  storage.SessionStore
	secret []byte
	ttl    time.Duration
	log    *logger.Logger
}

// New constructs the sessions service. The secret signs session tokens.
func New(store storage.SessionStore, secret []byte, ttl time.Duration, log *logger.Logger) (*Service, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session secret is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewDefault("sessions")
	}
	return &Service{store: store, secret: secret, ttl: ttl, log: log}, nil
}

// Issue creates a session for userID and returns the signed token.
func (s *Service) Issue(ctx context.Context, userID string) (string, session.Session, error) {
	if userID == "" {
		return "", session.Session{}, svcerr.Validation("user id is required")
	}

	expiresAt := time.Now().Add(s.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", session.Session{}, svcerr.Dependency("sign token", err)
	}

	sess, err := s.store.CreateSession(ctx, session.Session{
		UserID:    userID,
		TokenHash: HashToken(token),
		ExpiresAt: expiresAt.UTC(),
	})
	if err != nil {
		return "", session.Session{}, svcerr.Dependency("create session", err)
	}
	return token, sess, nil
}

// Validate checks the token signature, then requires a live session row
// for its hash. Returns the session on success.
func (s *Service) Validate(ctx context.Context, token string) (session.Session, error) {
	if token == "" {
		return session.Session{}, svcerr.Unauthenticated("")
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return session.Session{}, svcerr.Unauthenticated("invalid token")
	}

	sess, err := s.store.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return session.Session{}, svcerr.Unauthenticated("session expired")
		}
		return session.Session{}, svcerr.Dependency("load session", err)
	}
	if sess.Expired(time.Now()) {
		return session.Session{}, svcerr.Unauthenticated("session expired")
	}

	// Activity stamp is advisory.
	_ = s.store.TouchSession(ctx, sess.ID, time.Now())
	return sess, nil
}

// Revoke deletes the session for the given token. Unknown tokens are
// not an error: sign-out is idempotent.
func (s *Service) Revoke(ctx context.Context, token string) error {
	sess, err := s.store.GetSessionByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		return svcerr.Dependency("load session", err)
	}
	if err := s.store.DeleteSession(ctx, sess.ID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return svcerr.Dependency("delete session", err)
	}
	return nil
}

// PurgeExpired removes sessions past their expiry.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	return s.store.DeleteExpiredSessions(ctx, time.Now())
}

// HashToken derives the storage key for a token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
