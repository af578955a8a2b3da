package txn

import (
	"context"
	"sync"
)

// LocalManager is an in-process Manager used with in-memory repositories.
// It provides key locking only; writes are not rolled back on error.
type LocalManager struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLocalManager constructs a local manager.
func NewLocalManager() *LocalManager {
	return &LocalManager{locks: make(map[string]*sync.Mutex)}
}

type heldKey string

// WithinTx implements Manager.
func (m *LocalManager) WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context) error) error {
	if lockKey == "" {
		return fn(ctx)
	}
	if held, _ := ctx.Value(heldKey(lockKey)).(bool); held {
		return fn(ctx)
	}

	m.mu.Lock()
	keyLock, ok := m.locks[lockKey]
	if !ok {
		keyLock = &sync.Mutex{}
		m.locks[lockKey] = keyLock
	}
	m.mu.Unlock()

	keyLock.Lock()
	defer keyLock.Unlock()
	return fn(context.WithValue(ctx, heldKey(lockKey), true))
}
