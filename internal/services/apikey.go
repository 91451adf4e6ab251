package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dimitrije/gamevault-api/internal/database"
	"github.com/dimitrije/gamevault-api/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var (
	ErrAPIKeyNotFound = errors.New("api key not found")
	ErrAPIKeyRevoked  = errors.New("api key has been revoked")
	ErrAPIKeyExpired  = errors.New("api key has expired")
	ErrAPIKeyInvalid  = errors.New("invalid api key")
)

const (
	APIKeyPrefix    = "gv_"
	apiKeyRandomLen = 32
)

const apiKeyColumns = `id, user_id, name, key_hash, key_prefix, expires_at, revoked_at, last_used_at, created_at`

type APIKeyService struct {
	db  *database.DB
	now func() time.Time
}

func NewAPIKeyService(db *database.DB) *APIKeyService {
	return &APIKeyService{db: db, now: time.Now}
}

// IsAPIKey reports whether a bearer credential looks like one of our keys.
func IsAPIKey(credential string) bool {
	return strings.HasPrefix(credential, APIKeyPrefix)
}

// GenerateAPIKey returns a key of the form gv_<8 hex of user id>_<64 hex>.
func (s *APIKeyService) GenerateAPIKey(userID uuid.UUID) (plainKey, keyHash, keyPrefix string, err error) {
	userPart := strings.ReplaceAll(userID.String(), "-", "")[:8]

	randomBytes := make([]byte, apiKeyRandomLen)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate api key: %w", err)
	}

	plainKey = APIKeyPrefix + userPart + "_" + hex.EncodeToString(randomBytes)
	keyPrefix = APIKeyPrefix + userPart + "..."
	return plainKey, HashToken(plainKey), keyPrefix, nil
}

// Create stores a new key and returns it with the plain key, which is never
// retrievable again.
func (s *APIKeyService) Create(ctx context.Context, userID uuid.UUID, name string, expiresAt *time.Time) (*models.APIKey, string, error) {
	plainKey, keyHash, keyPrefix, err := s.GenerateAPIKey(userID)
	if err != nil {
		return nil, "", err
	}

	row := s.db.Pool.QueryRow(ctx, `
		INSERT INTO api_keys (user_id, name, key_hash, key_prefix, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apiKeyColumns,
		userID, name, keyHash, keyPrefix, expiresAt)
	key, err := scanAPIKey(row)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create api key: %w", err)
	}

	return key, plainKey, nil
}

// ValidateAndGetUser resolves a plain key to its user and key ids.
func (s *APIKeyService) ValidateAndGetUser(ctx context.Context, plainKey string) (userID, keyID uuid.UUID, err error) {
	if !IsAPIKey(plainKey) {
		return uuid.Nil, uuid.Nil, ErrAPIKeyInvalid
	}

	var (
		expiresAt *time.Time
		revokedAt *time.Time
	)
	err = s.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, revoked_at
		FROM api_keys
		WHERE key_hash = $1
	`, HashToken(plainKey)).Scan(&keyID, &userID, &expiresAt, &revokedAt)
	if err != nil {
		return uuid.Nil, uuid.Nil, ErrAPIKeyInvalid
	}

	if revokedAt != nil {
		return uuid.Nil, uuid.Nil, ErrAPIKeyRevoked
	}
	if expiresAt != nil && expiresAt.Before(s.now()) {
		return uuid.Nil, uuid.Nil, ErrAPIKeyExpired
	}

	// Best effort: a failed touch must not reject a valid key.
	_, _ = s.db.Pool.Exec(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, keyID)

	return userID, keyID, nil
}

// List returns the user's keys that have not been revoked, newest first.
func (s *APIKeyService) List(ctx context.Context, userID uuid.UUID) ([]models.APIKey, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE user_id = $1 AND revoked_at IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]models.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

func (s *APIKeyService) Revoke(ctx context.Context, keyID, userID uuid.UUID) error {
	result, err := s.db.Pool.Exec(ctx, `
		UPDATE api_keys
		SET revoked_at = NOW()
		WHERE id = $1 AND user_id = $2 AND revoked_at IS NULL
	`, keyID, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}

// CleanupExpired removes expired keys and keys revoked over 30 days ago.
func (s *APIKeyService) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.Pool.Exec(ctx, `
		DELETE FROM api_keys
		WHERE expires_at < NOW() OR (revoked_at IS NOT NULL AND revoked_at < NOW() - INTERVAL '30 days')
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up api keys: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	if err := row.Scan(
		&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
		&k.ExpiresAt, &k.RevokedAt, &k.LastUsedAt, &k.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &k, nil
}
