// Copyright 2019, Square, Inc.

package metrics_test

import (
	"io/ioutil"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/proto"
)

// value returns the sum of all samples of the named counter or gauge.
func value(t *testing.T, c *metrics.Collector, name string) float64 {
	mfs, err := c.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		var sum float64
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				sum += m.GetCounter().GetValue()
			}
			if m.GetGauge() != nil {
				sum += m.GetGauge().GetValue()
			}
		}
		return sum
	}
	return 0
}

func TestNilCollector(t *testing.T) {
	var c *metrics.Collector
	assert.NotPanics(t, func() {
		c.RecordReturn(proto.RETURN_STORED)
		c.RecordLoad()
		c.RecordSwept("expired", 1)
		c.RecordSweep(time.Second)
		c.RecordQueue("q", "insert", 1)
		c.SetActiveJobs(3)
	})
}

func TestCollectors(t *testing.T) {
	// Two collectors must not collide on registration
	metrics.NewCollector()
	c := metrics.NewCollector()

	c.RecordReturn(proto.RETURN_STORED)
	c.RecordReturn(proto.RETURN_STORED)
	c.RecordReturn(proto.RETURN_DUPLICATE)
	c.RecordLoad()
	c.RecordSwept("corrupt", 1)
	c.RecordSwept("expired", 2)
	c.RecordSweep(10 * time.Millisecond)
	c.RecordQueue("deploy", "insert", 3)
	c.RecordQueue("deploy", "pop", 0) // ignored
	c.SetActiveJobs(4)

	assert.Equal(t, float64(3), value(t, c, "jobcache_returns_total"))
	assert.Equal(t, float64(1), value(t, c, "jobcache_loads_saved_total"))
	assert.Equal(t, float64(3), value(t, c, "jobcache_jobs_swept_total"))
	assert.Equal(t, float64(1), value(t, c, "jobcache_sweeps_total"))
	assert.Equal(t, float64(3), value(t, c, "jobcache_queue_items_total"))
	assert.Equal(t, float64(4), value(t, c, "jobcache_active_jobs"))
}

func TestHandler(t *testing.T) {
	c := metrics.NewCollector()
	c.RecordReturn(proto.RETURN_NOCACHE)

	ts := httptest.NewServer(c.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `jobcache_returns_total{outcome="NOCACHE"} 1`))
}
