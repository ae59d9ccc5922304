package service

import (
	"context"
	"testing"

	"leadinbox/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueIsIdempotentPerChat(t *testing.T) {
	db := setupDB(t)
	registry := NewTokenRegistry(db, testLogger())
	ctx := context.Background()

	first, err := registry.Issue(ctx, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Token)

	second, err := registry.Issue(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Token, second.Token)
}

func TestIssueDistinctChatsGetDistinctTokens(t *testing.T) {
	db := setupDB(t)
	registry := NewTokenRegistry(db, testLogger())
	ctx := context.Background()

	a, err := registry.Issue(ctx, 100)
	require.NoError(t, err)
	b, err := registry.Issue(ctx, 200)
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestResolve(t *testing.T) {
	db := setupDB(t)
	registry := NewTokenRegistry(db, testLogger())
	ctx := context.Background()

	issued, err := registry.Issue(ctx, 100)
	require.NoError(t, err)

	tenant, err := registry.Resolve(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, tenant.ID)

	_, err = registry.Resolve(ctx, "AAAAAAAAAAAAAAAAAAAAAA")
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnauthorized))
}

func TestResolveChat(t *testing.T) {
	db := setupDB(t)
	registry := NewTokenRegistry(db, testLogger())
	ctx := context.Background()

	tenant, err := registry.ResolveChat(ctx, 100)
	require.NoError(t, err)
	assert.Nil(t, tenant)

	issued, err := registry.Issue(ctx, 100)
	require.NoError(t, err)

	tenant, err = registry.ResolveChat(ctx, 100)
	require.NoError(t, err)
	require.NotNil(t, tenant)
	assert.Equal(t, issued.ID, tenant.ID)
}

func TestGeneratedTokensAreURLSafe(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		token, err := generateToken()
		require.NoError(t, err)
		assert.Len(t, token, 22)
		assert.False(t, seen[token], "token collision")
		seen[token] = true
		for _, r := range token {
			ok := r == '-' || r == '_' ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			assert.True(t, ok, "unexpected character %q", r)
		}
	}
}
