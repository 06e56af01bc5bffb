package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory はプロセス内のTTL付きLRU。単一インスタンス/開発用。
type Memory struct {
	lru    *expirable.LRU[string, memoryEntry]
	prefix string
	now    func() time.Time
}

// maxTTLはLRU全体の上限。キーごとのTTLはGetで判定する
func NewMemory(size int, maxTTL time.Duration, prefix string) *Memory {
	if size <= 0 {
		size = 10000
	}
	return &Memory{
		lru:    expirable.NewLRU[string, memoryEntry](size, nil, maxTTL),
		prefix: prefix,
		now:    time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	e, ok := m.lru.Get(m.prefix + key)
	if !ok {
		return nil, false, nil
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.lru.Remove(m.prefix + key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = m.now().Add(ttl)
	}
	m.lru.Add(m.prefix+key, e)
	return nil
}

func (m *Memory) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		m.lru.Remove(m.prefix + k)
	}
	return nil
}
