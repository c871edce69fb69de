// Copyright 2017-2019, Square, Inc.

package jobcache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/metrics"
)

// MIN_MARKER_LEN is the shortest jid marker the sweeper accepts. Shorter
// markers are corrupt.
const MIN_MARKER_LEN = 18

// Sweeper removes job directories that are older than KeepJobs hours, and
// job directories that are corrupt (missing or invalid jid marker).
type Sweeper struct {
	Layout   Layout
	KeepJobs int              // hours; 0 disables sweeping
	Now      func() time.Time // default time.Now
	Metrics  *metrics.Collector
}

// CleanOldJobs makes one pass over the cache and returns the number of job
// directories removed. Failing to remove one directory is logged and does
// not stop the pass. Running it again right away removes nothing more.
func (s Sweeper) CleanOldJobs() (int, error) {
	if s.KeepJobs == 0 {
		return 0, nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	start := time.Now()
	cur := now()
	keep := time.Duration(s.KeepJobs) * time.Hour

	removed := 0
	err := s.Layout.walkDirs(func(dir string) error {
		reason := s.check(dir, cur, keep)
		if reason == "" {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			log.Errorf("cannot remove %s job dir %s: %s", reason, dir, err)
			return nil
		}
		log.Debugf("removed %s job dir %s", reason, dir)
		s.Metrics.RecordSwept(reason, 1)
		removed++
		return nil
	})
	s.Metrics.RecordSweep(time.Since(start))
	if removed > 0 {
		log.Infof("swept %d job dirs", removed)
	}
	return removed, err
}

// check returns why dir should be removed ("corrupt" or "expired"), or "" to
// keep it.
func (s Sweeper) check(dir string, cur time.Time, keep time.Duration) string {
	bytes, err := ioutil.ReadFile(filepath.Join(dir, JID_MARKER))
	if err != nil {
		if os.IsNotExist(err) {
			return "corrupt"
		}
		log.Warnf("cannot read jid marker in %s: %s", dir, err)
		return "" // unreadable is not proof of corruption
	}
	marker := strings.TrimSpace(string(bytes))
	if len(marker) < MIN_MARKER_LEN {
		return "corrupt"
	}
	t, err := jid.ToTime(marker)
	if err != nil {
		return "corrupt"
	}
	// Ages are measured to the minute
	if cur.Sub(t.Truncate(time.Minute)) > keep {
		return "expired"
	}
	return ""
}
