package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/campushub/campushub-api/pkg/errors"
)

func TestCacheRepositoryDegradesWithoutRedis(t *testing.T) {
	repo := NewCacheRepository(nil, zap.NewNop())
	ctx := context.Background()

	var dest map[string]int
	err := repo.Get(ctx, "attendance:summary:s1:2026-03-01:2026-03-31", &dest)
	require.ErrorIs(t, err, appErrors.ErrCacheMiss)

	assert.NoError(t, repo.Set(ctx, "finance:summary:s1", map[string]int{"paid": 1}, 0))
	assert.NoError(t, repo.DeleteByPattern(ctx, "finance:summary:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
