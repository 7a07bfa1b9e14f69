package tokenstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
)

func TestMemory_PutThenGet(t *testing.T) {
	store := NewMemory(zap.NewNop())
	ctx := context.Background()

	tokens := domain.TokenSet{
		AccessToken:  "access",
		RefreshToken: "refresh",
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	require.NoError(t, store.Put(ctx, "discord-123", tokens))

	got, err := store.Get(ctx, "discord-123")
	require.NoError(t, err)
	require.Equal(t, tokens, got)
}

func TestMemory_GetUnknownKey(t *testing.T) {
	store := NewMemory(zap.NewNop())

	_, err := store.Get(context.Background(), "discord-missing")
	require.ErrorIs(t, err, domain.ErrTokenAbsent)
}

func TestMemory_LastWriterWins(t *testing.T) {
	store := NewMemory(zap.NewNop())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "discord-1", domain.TokenSet{AccessToken: "first"}))
	require.NoError(t, store.Put(ctx, "discord-1", domain.TokenSet{AccessToken: "second"}))

	got, err := store.Get(ctx, "discord-1")
	require.NoError(t, err)
	require.Equal(t, "second", got.AccessToken)
}

func TestMemory_ConcurrentDistinctKeys(t *testing.T) {
	store := NewMemory(zap.NewNop())
	ctx := context.Background()

	const workers = 64
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("discord-%d", n)
			_ = store.Put(ctx, key, domain.TokenSet{AccessToken: fmt.Sprintf("token-%d", n)})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		got, err := store.Get(ctx, fmt.Sprintf("discord-%d", i))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("token-%d", i), got.AccessToken)
	}
}
