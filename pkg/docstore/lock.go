package docstore

import (
	"context"
	"sync"
)

// keyedLock serializes work per key. Each key maps to an in-flight
// handle; callers for the same key queue on it while other keys proceed.
// Handles are dropped once no caller holds or waits on them.
type keyedLock struct {
	mu       sync.Mutex
	inflight map[string]*handle
}

type handle struct {
	sem  chan struct{}
	refs int
}

func newKeyedLock() *keyedLock {
	return &keyedLock{inflight: make(map[string]*handle)}
}

// Lock blocks until key is free or ctx is done. The returned func
// releases the key.
func (k *keyedLock) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	h, ok := k.inflight[key]
	if !ok {
		h = &handle{sem: make(chan struct{}, 1)}
		k.inflight[key] = h
	}
	h.refs++
	k.mu.Unlock()

	select {
	case h.sem <- struct{}{}:
		return func() {
			<-h.sem
			k.release(key, h)
		}, nil
	case <-ctx.Done():
		k.release(key, h)
		return nil, ctx.Err()
	}
}

func (k *keyedLock) release(key string, h *handle) {
	k.mu.Lock()
	defer k.mu.Unlock()
	h.refs--
	if h.refs == 0 {
		delete(k.inflight, key)
	}
}

