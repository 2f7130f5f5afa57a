package dte

import (
	"context"
	"sync"
)

// memoryLocker implementación en memoria de DocumentLocker para despliegues de
// una sola instancia. Con varias réplicas del servicio se usa el candado
// distribuido sobre Redis (internal/infrastructure/redislock).
type memoryLocker struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewMemoryLocker construye el candado en memoria.
func NewMemoryLocker() DocumentLocker {
	return &memoryLocker{inflight: make(map[string]struct{})}
}

func (l *memoryLocker) TryAcquire(_ context.Context, documentID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.inflight[documentID]; taken {
		return nil, false, nil
	}
	l.inflight[documentID] = struct{}{}
	release := func() {
		l.mu.Lock()
		delete(l.inflight, documentID)
		l.mu.Unlock()
	}
	return release, true, nil
}
