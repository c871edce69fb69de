// Copyright 2017-2019, Square, Inc.

package jobs

import (
	"fmt"
	"time"

	"github.com/orcaman/concurrent-map"

	"github.com/square/jobcache/proto"
)

// Cache holds job lists keyed on returner name for a short time. Listing every
// job walks the whole job cache, so repeated lists within the TTL are served
// from memory. A zero TTL disables it.
type Cache struct {
	ttl time.Duration
	now func() time.Time
	c   cmap.ConcurrentMap
}

type cached struct {
	jobs map[string]proto.JobSummary
	at   time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return NewCacheWithClock(ttl, time.Now)
}

func NewCacheWithClock(ttl time.Duration, now func() time.Time) *Cache {
	return &Cache{
		ttl: ttl,
		now: now,
		c:   cmap.New(),
	}
}

// Get returns the job list of the returner if it was set less than TTL ago.
func (c *Cache) Get(returner string) (map[string]proto.JobSummary, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	val, ok := c.c.Get(returner)
	if !ok {
		return nil, false
	}
	e, ok := val.(cached)
	if !ok {
		panic(fmt.Sprintf("invalid job list in cache for returner %s", returner)) // should be impossible
	}
	if c.now().Sub(e.at) >= c.ttl {
		c.c.Remove(returner)
		return nil, false
	}
	return e.jobs, true
}

func (c *Cache) Set(returner string, jobs map[string]proto.JobSummary) {
	if c.ttl <= 0 {
		return
	}
	c.c.Set(returner, cached{jobs: jobs, at: c.now()})
}

// Invalidate drops every cached job list. It's called after every write.
func (c *Cache) Invalidate() {
	for _, key := range c.c.Keys() {
		c.c.Remove(key)
	}
}
