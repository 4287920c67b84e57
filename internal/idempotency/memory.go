package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/punchamoorthee/bloodbank/internal/clock"
)

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

type Memory struct {
	mu    sync.Mutex
	keys  map[string]memoryEntry
	clock clock.Clock
}

func NewMemory(clk clock.Clock) *Memory {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Memory{keys: make(map[string]memoryEntry), clock: clk}
}

func (m *Memory) Reserve(_ context.Context, key, requestHash string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if e, ok := m.keys[key]; ok && now.Before(e.expiresAt) {
		return resolve(e.record, requestHash)
	}
	m.keys[key] = memoryEntry{
		record:    Record{Status: statusProcessing, RequestHash: requestHash},
		expiresAt: now.Add(TTL),
	}
	return nil, nil
}

func (m *Memory) Complete(_ context.Context, key string, status int, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.keys[key]
	if !ok {
		return nil
	}
	e.record.Status = statusCompleted
	e.record.ResponseStatus = status
	e.record.ResponseBody = append([]byte(nil), body...)
	e.expiresAt = m.clock.Now().Add(TTL)
	m.keys[key] = e
	return nil
}

func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}
