// Package auth resolves bearer tokens to user identities.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/shopfeed/backend/internal/crypto"
	"github.com/shopfeed/backend/internal/db"
	"github.com/shopfeed/backend/internal/logging"
)

// Identity is an authenticated user.
type Identity struct {
	ID       int64
	Username string
	Avatar   *string
}

// Claims is the JWT payload. Tokens carry the user id only; everything else
// is looked up on every resolve.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// UserLookup finds a user by primary key. *db.Queries satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (db.User, error)
}

// Authenticator verifies HS256 tokens signed with a shared secret.
type Authenticator struct {
	secret        []byte
	tokenDuration time.Duration
	users         UserLookup
}

func NewAuthenticator(secret string, tokenDuration time.Duration, users UserLookup) *Authenticator {
	return &Authenticator{
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
		users:         users,
	}
}

// GenerateToken signs a token for userID that expires after the configured
// duration.
func (a *Authenticator) GenerateToken(userID int64) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "shopfeed",
			ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// Resolve returns the identity behind token. A malformed, expired, or
// wrongly signed token and a token naming an unknown user all produce the
// same (Identity{}, false) result; the reason is only written to the
// security log.
func (a *Authenticator) Resolve(ctx context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	claims, err := a.parse(token)
	if err != nil {
		logging.LogSecurityEvent(ctx, logging.SecurityEventInvalidJWT, "token rejected",
			"token_fp", crypto.TokenFingerprint(token),
			"reason", err.Error(),
		)
		return Identity{}, false
	}

	user, err := a.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		reason := "user lookup failed"
		if errors.Is(err, sql.ErrNoRows) {
			reason = "unknown user"
		}
		logging.LogSecurityEvent(ctx, logging.SecurityEventInvalidJWT, "token rejected",
			"token_fp", crypto.TokenFingerprint(token),
			"reason", reason,
		)
		return Identity{}, false
	}

	id := Identity{ID: user.ID, Username: user.Username}
	if user.Avatar.Valid {
		avatar := user.Avatar.String
		id.Avatar = &avatar
	}
	return id, true
}

func (a *Authenticator) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID <= 0 {
		return nil, errors.New("missing user_id claim")
	}
	return claims, nil
}

type contextKey struct{}

// WithIdentity returns a context carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored by WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
