package receipt

import (
	"context"
	"sync"
	"time"

	id "garant/pkg/domain"
	"garant/pkg/platform/sentinel"
)

// InMemoryMetadataCache is the single-process metadata cache.
type InMemoryMetadataCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	docs map[id.TokenID]cachedDoc
}

type cachedDoc struct {
	doc      []byte
	storedAt time.Time
}

// NewInMemoryMetadataCache builds a cache; ttl <= 0 disables expiry.
func NewInMemoryMetadataCache(ttl time.Duration) *InMemoryMetadataCache {
	return &InMemoryMetadataCache{
		ttl:  ttl,
		docs: make(map[id.TokenID]cachedDoc),
	}
}

func (c *InMemoryMetadataCache) Put(_ context.Context, tokenID id.TokenID, doc []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs[tokenID] = cachedDoc{doc: append([]byte{}, doc...), storedAt: time.Now()}
	return nil
}

func (c *InMemoryMetadataCache) Get(_ context.Context, tokenID id.TokenID) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.docs[tokenID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if c.ttl > 0 && time.Since(cached.storedAt) >= c.ttl {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte{}, cached.doc...), nil
}

func (c *InMemoryMetadataCache) Delete(_ context.Context, tokenID id.TokenID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.docs, tokenID)
	return nil
}
