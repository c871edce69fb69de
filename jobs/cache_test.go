// Copyright 2017-2019, Square, Inc.

package jobs_test

import (
	"testing"
	"time"

	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/proto"
)

func TestCacheDisabled(t *testing.T) {
	c := jobs.NewCache(0)
	c.Set("local_cache", map[string]proto.JobSummary{testJid: {}})
	if _, ok := c.Get("local_cache"); ok {
		t.Errorf("got cached jobs with zero TTL")
	}
}

func TestCacheKeyedOnReturner(t *testing.T) {
	c := jobs.NewCache(time.Minute)
	c.Set("local_cache", map[string]proto.JobSummary{testJid: {}})
	if _, ok := c.Get("redis"); ok {
		t.Errorf("got cached jobs for redis, expected none")
	}
	list, ok := c.Get("local_cache")
	if !ok || len(list) != 1 {
		t.Errorf("got %v, %t; expected 1 job", list, ok)
	}
	c.Invalidate()
	if _, ok := c.Get("local_cache"); ok {
		t.Errorf("got cached jobs after Invalidate")
	}
}
