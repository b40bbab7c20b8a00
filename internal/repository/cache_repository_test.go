package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/vigilance-tracker-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "dash:po:1", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "dash:po:1", map[string]int{"a": 1}, time.Minute))
	removed, err := repo.DeleteByPattern(ctx, "dash:*")
	assert.NoError(t, err)
	assert.Zero(t, removed)
	assert.Error(t, repo.Publish(ctx, "petitions", []byte("{}")))
	assert.NoError(t, repo.Close())
}
