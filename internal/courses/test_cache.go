package courses

import (
	"context"
	"sync"
	"time"
)

var _ KeyValueCache = (*TestCache)(nil)

// TestCache is an in-memory KeyValueCache used in unit tests,
// TTLs are recorded but never enforced
type TestCache struct {
	mutex      sync.Mutex
	data       map[string]string
	LastSetTTL time.Duration
	GetCalls   int
	SetCalls   int
	DelCalls   int
}

func NewTestCache() *TestCache {
	return &TestCache{
		data: make(map[string]string),
	}
}

func (c *TestCache) Get(_ context.Context, key string) (string, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.GetCalls++
	return c.data[key], nil
}

func (c *TestCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.SetCalls++
	c.LastSetTTL = ttl
	c.data[key] = value
	return nil
}

func (c *TestCache) Del(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.DelCalls++
	delete(c.data, key)
	return nil
}
