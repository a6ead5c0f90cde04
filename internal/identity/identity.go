// Package identity holds the caller identity for the session this process
// serves. Every identity-scoped view re-evaluates when it changes.
package identity

import (
	"sync"

	"storefront-client/internal/models"
)

// Context is the mutable holder of the current identity. Watchers are
// invoked on every change; the query layer uses this to invalidate
// identity-scoped cache keys.
type Context struct {
	mu       sync.RWMutex
	current  models.Identity
	watchers []func(models.Identity)
}

// NewContext creates a context with an initial identity. The zero identity
// means unauthenticated.
func NewContext(initial models.Identity) *Context {
	return &Context{current: initial}
}

// Current returns the identity of the caller, or the zero identity when
// unauthenticated.
func (c *Context) Current() models.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Authenticated reports whether an identity is present.
func (c *Context) Authenticated() bool {
	return !c.Current().IsAnonymous()
}

// Set replaces the current identity and notifies watchers. Setting the same
// identity again is a no-op.
func (c *Context) Set(id models.Identity) {
	c.mu.Lock()
	if c.current == id {
		c.mu.Unlock()
		return
	}
	c.current = id
	watchers := make([]func(models.Identity), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(id)
	}
}

// Watch registers a callback for identity changes.
func (c *Context) Watch(fn func(models.Identity)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}
