// Package store holds the client-side state containers of a shopping workspace.
//
// Every container owns one immutable snapshot and exposes a single Dispatch
// entry point. Actions are applied in arrival order by a pure reducer; the
// snapshot handed back to callers is a copy and may be read freely.
package store

import "sync"

type container[S any] struct {
	mu    sync.RWMutex
	state S
}

func (c *container[S]) apply(reduce func(S) S) S {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = reduce(c.state)
	return c.state
}

func (c *container[S]) get() S {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
