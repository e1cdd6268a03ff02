package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("register then login keeps the user id", func(t *testing.T) {
		repo := NewAuthRepository(testLogger(), NewMemoryStore(), "secret")
		registered, err := repo.Register(ctx, "laptop", "ece@example.com", "Ece")
		require.NoError(t, err)
		assert.NotEmpty(t, registered.Token)

		loggedIn, err := repo.Login(ctx, "laptop", "ECE@example.com")
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, loggedIn.User.ID)

		ok, err := repo.IsAuthenticated(ctx, "laptop")
		require.NoError(t, err)
		assert.True(t, ok)

		user, err := repo.CurrentUser(ctx, "laptop")
		require.NoError(t, err)
		assert.Equal(t, "Ece", user.FullName)
	})

	t.Run("logout clears the device", func(t *testing.T) {
		repo := NewAuthRepository(testLogger(), NewMemoryStore(), "secret")
		_, err := repo.Login(ctx, "phone", "a@b.c")
		require.NoError(t, err)
		require.NoError(t, repo.Logout(ctx, "phone"))

		ok, err := repo.IsAuthenticated(ctx, "phone")
		require.NoError(t, err)
		assert.False(t, ok)
		user, err := repo.CurrentUser(ctx, "phone")
		require.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("empty email is rejected", func(t *testing.T) {
		repo := NewAuthRepository(testLogger(), NewMemoryStore(), "secret")
		_, err := repo.Login(ctx, "phone", "  ")
		assert.ErrorIs(t, err, ErrEmailRequired)
	})

	t.Run("tokens are verified", func(t *testing.T) {
		store := NewMemoryStore()
		repo := NewAuthRepository(testLogger(), store, "secret").(*AuthRepository)
		resp, err := repo.Login(ctx, "phone", "a@b.c")
		require.NoError(t, err)

		claims, err := repo.ParseToken(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User.ID, claims.Subject)

		other := NewAuthRepository(testLogger(), store, "other-secret").(*AuthRepository)
		_, err = other.ParseToken(resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)

		repo.now = func() time.Time { return time.Now().Add(tokenTTL + time.Hour) }
		_, err = repo.ParseToken(resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
