package repository

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"invoicetrack/internal/domain"
	"invoicetrack/internal/logger"
)

var ErrTokenNotFound = errors.New("token not found")

type OperatorTokenRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewOperatorTokenRepository(db *sql.DB) *OperatorTokenRepository {
	return &OperatorTokenRepository{db: db, log: logger.WithComponent("token-repo")}
}

// HashToken returns the stored form of a token secret.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// splitToken accepts "<id>|<secret>" or a bare secret.
func splitToken(plain string) (*int64, string) {
	idx := strings.Index(plain, "|")
	if idx <= 0 {
		return nil, plain
	}
	id, err := strconv.ParseInt(plain[:idx], 10, 64)
	if err != nil {
		return nil, plain
	}
	return &id, plain[idx+1:]
}

// FindByPlainToken resolves a presented token to its operator. Expired tokens
// are treated as unknown.
func (r *OperatorTokenRepository) FindByPlainToken(ctx context.Context, plain string) (*domain.OperatorToken, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return nil, ErrTokenNotFound
	}
	id, secret := splitToken(plain)
	hash := HashToken(secret)

	where := []string{"token = $1", "(expires_at IS NULL OR expires_at > $2)"}
	args := []any{hash, time.Now()}
	if id != nil {
		where = append(where, "id = $3")
		args = append(args, *id)
	}

	query := `
		SELECT id, operator, token, expires_at
		FROM operator_tokens
		WHERE ` + strings.Join(where, " AND ") + `
		LIMIT 1
	`

	var (
		tok     domain.OperatorToken
		expires sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&tok.ID, &tok.Operator, &tok.TokenHash, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup token: %w", err)
	}
	if expires.Valid {
		tok.ExpiresAt = &expires.Time
	}

	if _, err := r.db.ExecContext(ctx, `UPDATE operator_tokens SET last_used_at = now() WHERE id = $1`, tok.ID); err != nil {
		r.log.Warn().Err(err).Int64("token_id", tok.ID).Msg("touch token")
	}
	return &tok, nil
}

// Issue creates a token for operator and returns the plain "<id>|<secret>"
// form. The secret is not recoverable afterwards.
func (r *OperatorTokenRepository) Issue(ctx context.Context, operator string, ttl time.Duration) (string, error) {
	operator = strings.TrimSpace(operator)
	if operator == "" {
		return "", domain.FieldError("IssueToken", domain.ErrMissingField, "operator")
	}

	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	secret := hex.EncodeToString(buf)

	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO operator_tokens (operator, token, expires_at) VALUES ($1, $2, $3) RETURNING id`,
		operator, HashToken(secret), expires,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return fmt.Sprintf("%d|%s", id, secret), nil
}
