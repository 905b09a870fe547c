package directory

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/byteness/supportaccess/supportaccess"
)

// DefaultCacheTTL is how long a loaded directory is served before reloading.
const DefaultCacheTTL = 5 * time.Minute

// CachedResolver serves a directory from a Loader, reloading it after a TTL.
// It implements supportaccess.ActorResolver and is safe for concurrent use.
//
// If a reload fails while a previous directory is cached, the stale copy is
// kept and served. Load errors are never cached.
type CachedResolver struct {
	loader Loader
	ttl    time.Duration
	now    func() time.Time

	mu     sync.RWMutex
	dir    *StaticDirectory
	expiry time.Time
}

// NewCachedResolver creates a CachedResolver. A non-positive ttl uses DefaultCacheTTL.
func NewCachedResolver(loader Loader, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &CachedResolver{
		loader: loader,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Directory returns the current directory, loading it if the cache is empty or expired.
func (c *CachedResolver) Directory(ctx context.Context) (*StaticDirectory, error) {
	c.mu.RLock()
	if c.dir != nil && c.now().Before(c.expiry) {
		d := c.dir
		c.mu.RUnlock()
		return d, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Another goroutine may have reloaded while we waited.
	if c.dir != nil && c.now().Before(c.expiry) {
		return c.dir, nil
	}

	d, err := c.loader.Load(ctx)
	if err != nil {
		if c.dir != nil {
			log.Printf("WARNING: directory reload failed, serving cached copy: %v", err)
			return c.dir, nil
		}
		return nil, err
	}

	c.dir = d
	c.expiry = c.now().Add(c.ttl)
	return d, nil
}

// ResolveActor implements supportaccess.ActorResolver.
func (c *CachedResolver) ResolveActor(ctx context.Context, email string) (*supportaccess.Actor, error) {
	d, err := c.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return d.ResolveActor(ctx, email)
}

// LookupUser implements supportaccess.ActorResolver.
func (c *CachedResolver) LookupUser(ctx context.Context, userID string) (*supportaccess.Actor, error) {
	d, err := c.Directory(ctx)
	if err != nil {
		return nil, err
	}
	return d.LookupUser(ctx, userID)
}

// TenantExists implements supportaccess.ActorResolver.
func (c *CachedResolver) TenantExists(ctx context.Context, tenantID string) (bool, error) {
	d, err := c.Directory(ctx)
	if err != nil {
		return false, err
	}
	return d.TenantExists(ctx, tenantID)
}
