package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/fleetgrid/fleetgrid/pkg/authz"
	"github.com/fleetgrid/fleetgrid/pkg/observability"
)

const (
	// TokenPrefix identifies Fleetgrid tokens
	TokenPrefix = "fleetgrid_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token
// Format: fleetgrid_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	// URL-safe, no padding
	encodedToken := base64.RawURLEncoding.EncodeToString(randomBytes)
	fullToken := TokenPrefix + encodedToken

	// Only the SHA256 hash is ever stored
	hash := sha256.Sum256([]byte(fullToken))
	hashStr := hex.EncodeToString(hash[:])

	// First 8 chars after the prefix, for display and identification
	prefix := TokenPrefix
	if len(encodedToken) >= 8 {
		prefix = TokenPrefix + encodedToken[:8]
	}

	return fullToken, hashStr, prefix, nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}

	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}

	return nil
}

// ExtractPrefix extracts the prefix from a token for display
func (tg *TokenGenerator) ExtractPrefix(token string) string {
	if !strings.HasPrefix(token, TokenPrefix) {
		return ""
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) >= 8 {
		return TokenPrefix + encodedPart[:8]
	}

	return token
}

// TokenManager manages the API token lifecycle against PostgreSQL.
type TokenManager struct {
	db        *sql.DB
	generator *TokenGenerator
	logger    *observability.Logger
}

// NewTokenManager creates a new token manager. logger may be nil.
func NewTokenManager(db *sql.DB, logger *observability.Logger) *TokenManager {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &TokenManager{
		db:        db,
		generator: NewTokenGenerator(),
		logger:    logger,
	}
}

// CreateToken creates a new API token. The plaintext token is returned once
// and never stored.
func (tm *TokenManager) CreateToken(ctx context.Context, userID int64, name, description string, expiresAt *time.Time) (*APIToken, string, error) {
	if name == "" {
		return nil, "", authz.Validation("token name is required")
	}

	token, tokenHash, tokenPrefix, err := tm.generator.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	apiToken := &APIToken{
		UserID:      userID,
		TokenHash:   tokenHash,
		TokenPrefix: tokenPrefix,
		Name:        name,
		Description: description,
		ExpiresAt:   expiresAt,
	}

	query := `
		INSERT INTO api_tokens (user_id, token_hash, token_prefix, name, description, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err = tm.db.QueryRowContext(ctx, query,
		userID, tokenHash, tokenPrefix, name, description, expiresAt,
	).Scan(&apiToken.ID, &apiToken.CreatedAt)
	if err != nil {
		return nil, "", fmt.Errorf("failed to store token: %w", err)
	}

	return apiToken, token, nil
}

// ValidateToken validates a token and returns the authenticated identity.
// Unknown, revoked and expired tokens are indistinguishable to the caller.
func (tm *TokenManager) ValidateToken(ctx context.Context, token string) (*AuthContext, error) {
	if err := tm.generator.ValidateTokenFormat(token); err != nil {
		return nil, authz.Unauthorized("invalid token")
	}

	tokenHash := tm.generator.HashToken(token)

	query := `
		SELECT t.id, t.user_id, t.token_prefix, t.name, t.description,
		       t.expires_at, t.last_used_at, t.created_at,
		       u.id, u.username, u.email, u.is_bot, u.is_active
		FROM api_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		  AND t.revoked_at IS NULL
		  AND (t.expires_at IS NULL OR t.expires_at > NOW())
	`
	apiToken := &APIToken{TokenHash: tokenHash}
	user := &User{}
	err := tm.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&apiToken.ID, &apiToken.UserID, &apiToken.TokenPrefix, &apiToken.Name, &apiToken.Description,
		&apiToken.ExpiresAt, &apiToken.LastUsedAt, &apiToken.CreatedAt,
		&user.ID, &user.Username, &user.Email, &user.IsBot, &user.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, authz.Unauthorized("invalid token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}

	if !user.IsActive {
		return nil, authz.Unauthorized("invalid token")
	}

	tm.touchToken(ctx, apiToken.ID)

	return &AuthContext{User: user, Token: apiToken}, nil
}

// touchToken records the token's last use. Failures are logged, not returned;
// a stale last_used_at must not fail the request.
func (tm *TokenManager) touchToken(ctx context.Context, tokenID int64) {
	_, err := tm.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used_at = NOW() WHERE id = $1", tokenID)
	if err != nil {
		tm.logger.WithError(err).WithField("token_id", tokenID).
			Error("failed to update token last_used_at")
	}
}

// RevokeToken revokes a token. Revocation is idempotent on already-revoked
// tokens; an unknown token returns NotFound.
func (tm *TokenManager) RevokeToken(ctx context.Context, tokenID int64, revokedBy int64, reason string) error {
	query := `
		UPDATE api_tokens
		SET revoked_at = NOW(), revoked_by = $2, revoke_reason = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
	result, err := tm.db.ExecContext(ctx, query, tokenID, revokedBy, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		if err := tm.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM api_tokens WHERE id = $1)", tokenID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check token existence: %w", err)
		}
		if !exists {
			return authz.NotFound("token not found")
		}
	}
	return nil
}

// ListUserTokens lists all tokens for a user, newest first, including revoked
// ones.
func (tm *TokenManager) ListUserTokens(ctx context.Context, userID int64) ([]*APIToken, error) {
	query := `
		SELECT id, user_id, token_prefix, name, description,
		       expires_at, last_used_at, created_at,
		       revoked_at, revoked_by, COALESCE(revoke_reason, '')
		FROM api_tokens
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := tm.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*APIToken
	for rows.Next() {
		t := &APIToken{}
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.TokenPrefix, &t.Name, &t.Description,
			&t.ExpiresAt, &t.LastUsedAt, &t.CreatedAt,
			&t.RevokedAt, &t.RevokedBy, &t.RevokeReason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// CleanupExpiredTokens deletes tokens past their expiry.
func (tm *TokenManager) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	result, err := tm.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at IS NOT NULL AND expires_at < NOW()")
	if err != nil {
		return 0, fmt.Errorf("failed to clean up expired tokens: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected, nil
}
