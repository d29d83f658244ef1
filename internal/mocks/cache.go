package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	sharedCache "github.com/alkimyk/cmr/shared/platform/cache"
)

// DummyCache es una caché en memoria sin TTL, segura para concurrencia.
// Guarda JSON como las implementaciones reales, así un hit devuelve una copia.
type DummyCache struct {
	store map[string][]byte
	mu    sync.RWMutex

	// FailGet hace que Get devuelva error, para probar que la caché es opcional.
	FailGet bool
}

var _ sharedCache.Cache = (*DummyCache)(nil)

func NewDummyCache() *DummyCache {
	return &DummyCache{
		store: make(map[string][]byte),
	}
}

func (c *DummyCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.FailGet {
		return false, errors.New("cache unavailable")
	}
	data, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *DummyCache) Set(ctx context.Context, key string, val interface{}, ttlSecs int) error {
	data, err := json.Marshal(val)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = data
	return nil
}

func (c *DummyCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.store, key)
	return nil
}

func (c *DummyCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	return nil
}

// Keys devuelve las claves que empiezan con prefix.
func (c *DummyCache) Keys(prefix string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}
