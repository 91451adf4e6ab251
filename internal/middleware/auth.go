package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/dimitrije/gamevault-api/internal/identity"
	"github.com/dimitrije/gamevault-api/internal/services"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	PrincipalKey = "principal"
	UserIDKey    = "user_id"
	UserEmailKey = "user_email"
)

type TokenValidator interface {
	ValidateAccessToken(token string) (*services.Claims, error)
}

type APIKeyValidator interface {
	ValidateAndGetUser(ctx context.Context, key string) (userID, keyID uuid.UUID, err error)
}

var (
	ErrAPIKeysDisabled = errors.New("api keys are not enabled")
	ErrInvalidAPIKey   = errors.New("invalid or expired api key")
	ErrInvalidToken    = errors.New("invalid or expired token")
)

// Auth accepts either a signed access token or a personal API key as a bearer
// credential. keys may be nil, in which case API keys are refused.
func Auth(tokens TokenValidator, keys APIKeyValidator) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		p, err := Authenticate(c.Request.Context(), tokens, keys, parts[1])
		if err != nil {
			c.Unauthorized(err.Error())
			return
		}

		c.Set(PrincipalKey, p)
		c.Set(UserIDKey, p.UserID)
		c.Set(UserEmailKey, p.Email)

		c.Next()
	}
}

// Authenticate turns a raw credential into a Principal. It is used directly
// where the credential cannot travel in a header, such as websocket upgrades.
func Authenticate(ctx context.Context, tokens TokenValidator, keys APIKeyValidator, credential string) (identity.Principal, error) {
	if services.IsAPIKey(credential) {
		if keys == nil {
			return identity.Principal{}, ErrAPIKeysDisabled
		}
		userID, keyID, err := keys.ValidateAndGetUser(ctx, credential)
		if err != nil {
			return identity.Principal{}, ErrInvalidAPIKey
		}
		return identity.FromAPIKey(userID, keyID), nil
	}

	claims, err := tokens.ValidateAccessToken(credential)
	if err != nil {
		return identity.Principal{}, ErrInvalidToken
	}
	return identity.FromAccessToken(claims.UserID, claims.Email), nil
}

func GetPrincipal(c *drift.Context) (identity.Principal, bool) {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(identity.Principal); ok && p.Valid() {
			return p, true
		}
	}
	return identity.Principal{}, false
}

func GetUserID(c *drift.Context) uuid.UUID {
	if id, ok := c.Get(UserIDKey); ok {
		if uid, ok := id.(uuid.UUID); ok {
			return uid
		}
	}
	return uuid.Nil
}

func GetUserEmail(c *drift.Context) string {
	if email, ok := c.Get(UserEmailKey); ok {
		if e, ok := email.(string); ok {
			return e
		}
	}
	return ""
}
