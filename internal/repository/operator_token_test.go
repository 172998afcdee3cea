package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitToken(t *testing.T) {
	id, secret := splitToken("42|abc")
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)
	assert.Equal(t, "abc", secret)

	id, secret = splitToken("abc")
	assert.Nil(t, id)
	assert.Equal(t, "abc", secret)

	id, secret = splitToken("x|abc")
	assert.Nil(t, id)
	assert.Equal(t, "x|abc", secret)
}

func TestHashTokenIsHexSHA256(t *testing.T) {
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashToken("abc"))
}

func TestOperatorTokenIssueAndFind(t *testing.T) {
	_, db := repoForTest(t)
	repo := NewOperatorTokenRepository(db)
	ctx := context.Background()

	plain, err := repo.Issue(ctx, "ops-desk", time.Hour)
	require.NoError(t, err)

	tok, err := repo.FindByPlainToken(ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, "ops-desk", tok.Operator)
	require.NotNil(t, tok.ExpiresAt)
	t.Cleanup(func() { _, _ = db.Exec(`DELETE FROM operator_tokens WHERE id = $1`, tok.ID) })

	_, err = repo.FindByPlainToken(ctx, plain+"x")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = repo.FindByPlainToken(ctx, "  ")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
