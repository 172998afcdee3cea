package domain

import "time"

// OperatorToken is an API credential issued to one back-office operator.
// Only the sha256 of the secret is stored.
type OperatorToken struct {
	ID        int64
	Operator  string
	TokenHash string
	ExpiresAt *time.Time
}

func (t OperatorToken) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !t.ExpiresAt.After(now)
}
