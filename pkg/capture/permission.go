package capture

import (
	"context"
	"sync"
)

// Permission asks for microphone access. Implementations may block until
// the user answers.
type Permission interface {
	Request(ctx context.Context) (bool, error)
}

// PermissionFunc adapts a function to Permission.
type PermissionFunc func(ctx context.Context) (bool, error)

// Request implements Permission.
func (f PermissionFunc) Request(ctx context.Context) (bool, error) { return f(ctx) }

// Granted is a Permission that always allows capture. Desktop platforms
// without an access prompt use it.
var Granted Permission = PermissionFunc(func(context.Context) (bool, error) { return true, nil })

// CachedPermission asks once per process and replays the answer. A
// request cancelled by its context is not cached.
type CachedPermission struct {
	p Permission

	mu      sync.Mutex
	done    bool
	granted bool
	err     error
}

// NewCachedPermission wraps p.
func NewCachedPermission(p Permission) *CachedPermission {
	return &CachedPermission{p: p}
}

// Request implements Permission.
func (c *CachedPermission) Request(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return c.granted, c.err
	}
	granted, err := c.p.Request(ctx)
	if err != nil && ctx.Err() != nil {
		return false, err
	}
	c.done, c.granted, c.err = true, granted, err
	return granted, err
}
