// Copyright 2017-2019, Square, Inc.

package jobcache

// SetBeforeMinionDir sets a func that LocalCache.Return calls with the job dir
// just before it makes the minion dir.
func SetBeforeMinionDir(c *LocalCache, f func(dir string)) {
	c.beforeMinionDir = f
}
