// Package identity models who is acting. Identity enters the system once, at
// the authentication middleware, and is carried as a Principal afterwards.
package identity

import (
	"github.com/google/uuid"
)

type Kind int

const (
	// KindAccessToken is a user authenticated by a signed access token.
	KindAccessToken Kind = iota + 1
	// KindAPIKey is a user authenticated by one of their personal API keys.
	KindAPIKey
)

func (k Kind) String() string {
	switch k {
	case KindAccessToken:
		return "access_token"
	case KindAPIKey:
		return "api_key"
	default:
		return "unknown"
	}
}

type Principal struct {
	Kind   Kind
	UserID uuid.UUID
	// Email is only known for access tokens.
	Email string
	// KeyID is only set for API keys.
	KeyID uuid.UUID
}

func FromAccessToken(userID uuid.UUID, email string) Principal {
	return Principal{Kind: KindAccessToken, UserID: userID, Email: email}
}

func FromAPIKey(userID, keyID uuid.UUID) Principal {
	return Principal{Kind: KindAPIKey, UserID: userID, KeyID: keyID}
}

// Valid reports whether the principal names a real user.
func (p Principal) Valid() bool {
	return p.Kind != 0 && p.UserID != uuid.Nil
}
