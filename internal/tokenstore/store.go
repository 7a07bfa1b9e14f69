// Package tokenstore caches the latest access/refresh token pair per
// provider-namespaced user key.
package tokenstore

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/Sachaa-Thanasius/patreon-discord-linked-role-auth/internal/domain"
)

// Store is the credential cache shared by providers and the link workflow.
type Store interface {
	// Put upserts the token set for key; last writer wins.
	Put(ctx context.Context, key string, tokens domain.TokenSet) error
	// Get returns the current token set for key, or domain.ErrTokenAbsent.
	Get(ctx context.Context, key string) (domain.TokenSet, error)
}

// Memory is the in-process Store. All access is serialized through one
// mutex; the whole store is a single critical section. Entries are volatile
// and lost on restart.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]domain.TokenSet
	logger *zap.Logger
}

var _ Store = (*Memory)(nil)

// NewMemory constructs an empty in-memory store.
func NewMemory(logger *zap.Logger) *Memory {
	if logger == nil {
		logger = zap.L()
	}
	return &Memory{
		tokens: make(map[string]domain.TokenSet),
		logger: logger,
	}
}

// Put upserts the token set under key.
func (m *Memory) Put(_ context.Context, key string, tokens domain.TokenSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[key] = tokens
	m.logger.Debug("stored tokens", zap.String("key", key), zap.Time("expires_at", tokens.ExpiresAt))
	return nil
}

// Get returns the stored token set by value so callers cannot mutate the
// canonical copy.
func (m *Memory) Get(_ context.Context, key string) (domain.TokenSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tokens, ok := m.tokens[key]
	if !ok {
		return domain.TokenSet{}, domain.ErrTokenAbsent
	}
	return tokens, nil
}
