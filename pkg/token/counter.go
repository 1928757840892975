package token

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Key identifies one memoized count.
type Key struct {
	Path      string
	ModTime   int64
	Size      int64
	Tokenizer string
}

// Store persists counts between runs.
type Store interface {
	Get(ctx context.Context, key Key) (int, bool, error)
	Put(ctx context.Context, key Key, tokens int) error
	Close() error
}

// Stats reports memo effectiveness.
type Stats struct {
	MemoHits  int64
	StoreHits int64
	Computed  int64
}

// Counter memoizes Tokenizer results by path, modification time and
// tokenizer. It is safe for concurrent use.
type Counter struct {
	tok    Tokenizer
	store  Store
	logger *zap.Logger

	mu   sync.RWMutex
	memo map[Key]int

	memoHits  atomic.Int64
	storeHits atomic.Int64
	computed  atomic.Int64
}

// NewCounter wraps tok. store may be nil.
func NewCounter(tok Tokenizer, store Store, logger *zap.Logger) *Counter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counter{tok: tok, store: store, logger: logger, memo: make(map[Key]int)}
}

// Tokenizer returns the wrapped tokenizer.
func (c *Counter) Tokenizer() Tokenizer { return c.tok }

// Count tokenizes content without memoization.
func (c *Counter) Count(content []byte) int { return c.tok.Count(content) }

// CountFile returns the memoized count for the file, calling load only
// when neither the in-process memo nor the store has an entry.
func (c *Counter) CountFile(ctx context.Context, path string, modTime, size int64, load func() ([]byte, error)) (int, error) {
	key := Key{Path: path, ModTime: modTime, Size: size, Tokenizer: c.tok.ID()}

	c.mu.RLock()
	n, ok := c.memo[key]
	c.mu.RUnlock()
	if ok {
		c.memoHits.Add(1)
		return n, nil
	}

	if c.store != nil {
		n, ok, err := c.store.Get(ctx, key)
		if err != nil {
			c.logger.Debug("Token store lookup failed", zap.String("path", path), zap.Error(err))
		} else if ok {
			c.storeHits.Add(1)
			c.remember(key, n)
			return n, nil
		}
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	content, err := load()
	if err != nil {
		return 0, err
	}
	n = c.tok.Count(content)
	c.computed.Add(1)
	c.remember(key, n)

	if c.store != nil {
		if err := c.store.Put(ctx, key, n); err != nil {
			c.logger.Debug("Token store write failed", zap.String("path", path), zap.Error(err))
		}
	}
	return n, nil
}

func (c *Counter) remember(key Key, n int) {
	c.mu.Lock()
	c.memo[key] = n
	c.mu.Unlock()
}

// Stats returns hit and miss counters.
func (c *Counter) Stats() Stats {
	return Stats{
		MemoHits:  c.memoHits.Load(),
		StoreHits: c.storeHits.Load(),
		Computed:  c.computed.Load(),
	}
}

// Close releases the store.
func (c *Counter) Close() error {
	if c.store == nil {
		return nil
	}
	return c.store.Close()
}
