package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/retroarcade/internal/storage/postgres"
	"github.com/cory-johannsen/retroarcade/internal/testutil"
)

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func TestProfileRepository(t *testing.T) {
	repo := postgres.NewProfileRepository(testutil.NewPool(t))
	ctx := context.Background()

	t.Run("create and lookup", func(t *testing.T) {
		name := uniqueName("ada")
		created, err := repo.Create(ctx, name, "ada@example.com", "Ada", 1250)
		require.NoError(t, err)
		assert.NotZero(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())

		got, err := repo.GetByUsername(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, created, got)

		rating, err := repo.Rating(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 1250, rating)
	})

	t.Run("default rating", func(t *testing.T) {
		p, err := repo.Create(ctx, uniqueName("grace"), "", "", 0)
		require.NoError(t, err)
		assert.Equal(t, postgres.DefaultRating, p.Rating)
	})

	t.Run("duplicate username", func(t *testing.T) {
		name := uniqueName("dup")
		_, err := repo.Create(ctx, name, "", "", 0)
		require.NoError(t, err)
		_, err = repo.Create(ctx, name, "", "", 0)
		assert.ErrorIs(t, err, postgres.ErrProfileExists)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetByUsername(ctx, uniqueName("ghost"))
		assert.ErrorIs(t, err, postgres.ErrProfileNotFound)
		assert.ErrorIs(t, repo.SetRating(ctx, -1, 1100), postgres.ErrProfileNotFound)
	})

	t.Run("set rating", func(t *testing.T) {
		name := uniqueName("linus")
		p, err := repo.Create(ctx, name, "", "", 900)
		require.NoError(t, err)
		require.NoError(t, repo.SetRating(ctx, p.ID, 1500))
		rating, err := repo.Rating(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, 1500, rating)
	})
}

func TestProfileRepository_CreateRejectsEmptyUsername(t *testing.T) {
	repo := postgres.NewProfileRepository(nil)
	_, err := repo.Create(context.Background(), "", "", "", 0)
	assert.Error(t, err)
}
