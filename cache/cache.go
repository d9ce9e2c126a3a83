// Package cache holds a single value fetched from a remote service, with the
// time it was fetched so staleness is decided by an injected clock.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/etnz/folio/clock"
)

// Entry is a cached value and the time it was fetched.
type Entry[T any] struct {
	Data      T         `msgpack:"data"`
	FetchedAt time.Time `msgpack:"fetched_at"`
}

// Cache keeps one Entry fresh for ttl.
type Cache[T any] struct {
	ttl   time.Duration
	clock clock.Clock
	path  string
	log   zerolog.Logger

	mu    sync.Mutex
	entry *Entry[T]
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock replaces the system clock.
func WithClock[T any](c clock.Clock) Option[T] {
	return func(cache *Cache[T]) { cache.clock = c }
}

// WithFile persists the entry to path. The file is read on creation and
// written after each successful fetch.
func WithFile[T any](path string) Option[T] {
	return func(cache *Cache[T]) { cache.path = path }
}

// WithLogger sets the logger.
func WithLogger[T any](log zerolog.Logger) Option[T] {
	return func(cache *Cache[T]) { cache.log = log }
}

// New returns an empty cache whose entries expire after ttl.
func New[T any](ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		ttl:   ttl,
		clock: clock.System,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.path != "" {
		if err := c.loadFile(); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.log.Warn().Err(err).Str("path", c.path).Msg("ignoring unreadable cache file")
		}
	}
	return c
}

// Get returns the cached value if it is still fresh.
func (c *Cache[T]) Get() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil || c.clock.Now().Sub(c.entry.FetchedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return c.entry.Data, true
}

// Stale returns the cached value whatever its age.
func (c *Cache[T]) Stale() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		var zero T
		return zero, false
	}
	return c.entry.Data, true
}

// Put stores v as fetched now.
func (c *Cache[T]) Put(v T) {
	c.mu.Lock()
	c.entry = &Entry[T]{Data: v, FetchedAt: c.clock.Now()}
	c.mu.Unlock()
	if c.path != "" {
		if err := c.saveFile(); err != nil {
			c.log.Warn().Err(err).Str("path", c.path).Msg("cache write err (ignored)")
		}
	}
}

// GetOrFetch returns the fresh value, or calls fetch and caches its result.
// When fetch fails and a stale value exists, the stale value is returned.
func (c *Cache[T]) GetOrFetch(ctx context.Context, fetch func(context.Context) (T, error)) (T, error) {
	if v, ok := c.Get(); ok {
		return v, nil
	}
	v, err := fetch(ctx)
	if err != nil {
		if stale, ok := c.Stale(); ok {
			c.log.Warn().Err(err).Msg("fetch failed, using stale cached value")
			return stale, nil
		}
		var zero T
		return zero, err
	}
	c.Put(v)
	return v, nil
}

// Save writes the entry to w.
func (c *Cache[T]) Save(w io.Writer) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return errors.New("cache is empty")
	}
	return msgpack.NewEncoder(w).Encode(c.entry)
}

// Load replaces the entry by the one read from r.
func (c *Cache[T]) Load(r io.Reader) error {
	var e Entry[T]
	if err := msgpack.NewDecoder(r).Decode(&e); err != nil {
		return fmt.Errorf("cannot decode cache entry: %w", err)
	}
	c.mu.Lock()
	c.entry = &e
	c.mu.Unlock()
	return nil
}

func (c *Cache[T]) loadFile() error {
	f, err := os.Open(c.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return c.Load(f)
}

func (c *Cache[T]) saveFile() error {
	f, err := os.Create(c.path)
	if err != nil {
		return err
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
