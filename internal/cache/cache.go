package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"storefront-client/internal/util"

	"go.uber.org/zap"
)

// Status is the lifecycle state of a cached query.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the observable state of one query key. On a failed fetch Err is
// set and Status is StatusError, but Data keeps the last successful value:
// stale-but-displayed is the caller's call.
type Result struct {
	Status    Status
	Data      any
	Err       error
	UpdatedAt time.Time
}

// FetchFunc loads the value for a key from the remote service.
type FetchFunc func(ctx context.Context) (any, error)

// Options control how a key is fetched.
type Options struct {
	// Enabled gates the query on its prerequisites (facade handle, identity).
	// A disabled query never calls the remote service and reports idle.
	Enabled bool
	// Retries is the number of transparent retries after a failed read.
	// Zero disables retrying, for reads whose failure is terminal.
	Retries int
	// Decode opts the key into the snapshot store. It rebuilds a typed value
	// from a persisted JSON snapshot. Identity-scoped keys must leave it nil.
	Decode func([]byte) (any, error)
}

// Subscriber receives every state transition of a key.
type Subscriber func(Result)

type subscription struct {
	mu     sync.Mutex
	fn     Subscriber
	closed bool
}

func (s *subscription) notify(res Result) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	fn := s.fn
	s.mu.Unlock()
	fn(res)
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

type entry struct {
	key      Key
	res      Result
	stale    bool
	fetching bool
	// gen counts invalidations. A fetch records the generation it started
	// under; a result that lands under a newer generation stays stale so an
	// invalidation racing the fetch is never lost.
	gen       int
	done      chan struct{}
	fetch     FetchFunc
	opts      Options
	subs      map[int]*subscription
	snapTried bool
}

// Cache is the process-wide synchronization cache: a keyed store of remote
// read results with in-flight deduplication, explicit prefix invalidation,
// and per-key subscriptions. It is constructed explicitly and injected;
// there is no package-level singleton.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]*entry
	snapshots SnapshotStore
	logger    *zap.Logger
	nextSub   int
}

// New creates an empty cache. snapshots may be nil to disable warm-start
// persistence.
func New(snapshots SnapshotStore) *Cache {
	return &Cache{
		entries:   make(map[string]*entry),
		snapshots: snapshots,
		logger:    util.GetLogger(),
	}
}

func (c *Cache) ensure(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{
			key:  key,
			res:  Result{Status: StatusIdle},
			subs: make(map[int]*subscription),
		}
		c.entries[id] = e
	}
	return e
}

// Get returns the current state of a key and, when the key has no fresh
// data, starts a deduplicated background fetch. It never blocks on the
// remote service.
func (c *Cache) Get(ctx context.Context, key Key, fetch FetchFunc, opts Options) Result {
	c.mu.Lock()
	e := c.ensure(key)
	e.fetch = fetch
	e.opts = opts

	if !opts.Enabled {
		c.mu.Unlock()
		return Result{Status: StatusIdle}
	}

	restore := c.snapshots != nil && opts.Decode != nil &&
		!e.snapTried && e.res.Data == nil
	if restore {
		e.snapTried = true
	}
	c.mu.Unlock()

	if restore {
		c.restoreSnapshot(key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e = c.ensure(key)
	c.maybeFetch(e)
	if e.res.Status == StatusSuccess && !e.stale {
		util.CacheHitsTotal.WithLabelValues(key.Head()).Inc()
	}
	return e.res
}

// Resolve behaves like Get but waits for any in-flight fetch to settle, so
// request-scoped callers can render final data in one pass. It returns the
// current state as soon as the key is not loading, or when ctx is done.
func (c *Cache) Resolve(ctx context.Context, key Key, fetch FetchFunc, opts Options) Result {
	res := c.Get(ctx, key, fetch, opts)
	if !opts.Enabled {
		return res
	}

	c.mu.Lock()
	e := c.ensure(key)
	done := e.done
	res = e.res
	c.mu.Unlock()
	if done == nil {
		return res
	}

	select {
	case <-done:
	case <-ctx.Done():
		return Result{Status: StatusLoading}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ensure(key).res
}

// Subscribe registers a callback for every state transition of the key and
// triggers a fetch if the key has no fresh data. The returned cancel
// function must be called when the subscriber goes away; after cancel the
// callback is never invoked again and late results are discarded for that
// subscriber (they still land in the cache).
func (c *Cache) Subscribe(key Key, fetch FetchFunc, opts Options, fn Subscriber) (cancel func()) {
	c.mu.Lock()
	e := c.ensure(key)
	e.fetch = fetch
	e.opts = opts

	id := c.nextSub
	c.nextSub++
	sub := &subscription{fn: fn}
	e.subs[id] = sub

	if opts.Enabled {
		c.maybeFetch(e)
	}
	c.mu.Unlock()

	return func() {
		sub.close()
		c.mu.Lock()
		if cur, ok := c.entries[key.String()]; ok {
			delete(cur.subs, id)
		}
		c.mu.Unlock()
	}
}

// Invalidate marks every key sharing the given tuple prefix stale, drops
// matching snapshots, and starts a background refetch for each stale key
// that currently has active subscribers. Keys without subscribers refetch
// lazily on their next Get.
func (c *Cache) Invalidate(prefix Key) {
	c.mu.Lock()
	var refetch []*entry
	for _, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		e.stale = true
		e.gen++
		if len(e.subs) > 0 && e.opts.Enabled && e.fetch != nil {
			refetch = append(refetch, e)
		}
	}
	for _, e := range refetch {
		util.CacheRefetchesTotal.WithLabelValues(e.key.Head()).Inc()
		c.maybeFetch(e)
	}
	c.mu.Unlock()

	if c.snapshots != nil {
		go func() {
			ctx, cancelCtx := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelCtx()
			if err := c.snapshots.DeletePrefix(ctx, prefix); err != nil {
				c.logger.Warn("Failed to drop snapshots",
					zap.String("prefix", prefix.String()),
					zap.Error(err))
			}
		}()
	}
}

// Reset drops all cached state. Intended for teardown in tests.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// maybeFetch starts a deduplicated fetch if the entry needs one.
// Caller holds c.mu.
func (c *Cache) maybeFetch(e *entry) {
	if e.fetching || e.fetch == nil || !e.opts.Enabled {
		return
	}
	if e.res.Status == StatusSuccess && !e.stale {
		return
	}
	e.fetching = true
	e.done = make(chan struct{})
	if e.res.Data == nil {
		e.res.Status = StatusLoading
	}
	util.CacheFetchesTotal.WithLabelValues(e.key.Head()).Inc()

	fetch := e.fetch
	retries := e.opts.Retries
	go c.runFetch(e, fetch, retries, e.gen)
}

// runFetch executes one fetch with bounded retries. Fetches are detached
// from any request context: a caller going away must not poison the shared
// cache, so the remote client's own timeout is the only bound. gen is the
// entry's invalidation generation at fetch start.
func (c *Cache) runFetch(e *entry, fetch FetchFunc, retries, gen int) {
	var data any
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
		}
		data, err = fetch(context.Background())
		if err == nil {
			break
		}
	}

	c.mu.Lock()
	e.fetching = false
	if err != nil {
		e.res.Status = StatusError
		e.res.Err = err
		util.CacheFetchErrorsTotal.WithLabelValues(e.key.Head()).Inc()
		c.logger.Warn("Fetch failed",
			zap.String("key", e.key.String()),
			zap.Error(err))
	} else {
		e.res = Result{Status: StatusSuccess, Data: data, UpdatedAt: time.Now()}
		// An invalidation that arrived while this fetch was in flight may
		// postdate the data; the result stays stale and must be refetched.
		e.stale = e.gen != gen
	}
	res := e.res
	subs := make([]*subscription, 0, len(e.subs))
	for _, s := range e.subs {
		subs = append(subs, s)
	}
	done := e.done
	e.done = nil
	save := err == nil && !e.stale && c.snapshots != nil && e.opts.Decode != nil
	if err == nil && e.stale && len(e.subs) > 0 {
		util.CacheRefetchesTotal.WithLabelValues(e.key.Head()).Inc()
		c.maybeFetch(e)
	}
	c.mu.Unlock()

	if save {
		c.saveSnapshot(e.key, data)
	}
	for _, s := range subs {
		s.notify(res)
	}
	close(done)
}

func (c *Cache) restoreSnapshot(key Key) {
	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelCtx()

	raw, err := c.snapshots.Load(ctx, key)
	if err != nil {
		c.logger.Warn("Failed to load snapshot",
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	if raw == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	if e.res.Data != nil {
		return
	}
	data, err := e.opts.Decode(raw)
	if err != nil {
		c.logger.Warn("Failed to decode snapshot",
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	// Restored data is displayable but untrusted until the next fetch.
	e.res = Result{Status: StatusSuccess, Data: data, UpdatedAt: time.Now()}
	e.stale = true
	util.SnapshotRestoresTotal.Inc()
}

func (c *Cache) saveSnapshot(key Key, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.logger.Warn("Failed to encode snapshot",
			zap.String("key", key.String()),
			zap.Error(err))
		return
	}
	ctx, cancelCtx := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelCtx()
	if err := c.snapshots.Save(ctx, key, raw); err != nil {
		c.logger.Warn("Failed to save snapshot",
			zap.String("key", key.String()),
			zap.Error(err))
	}
}
