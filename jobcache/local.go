// Copyright 2017-2019, Square, Inc.

package jobcache

import (
	"errors"
	"fmt"
	"io/fs"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/minion"
	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

var (
	ErrInvalidMinionId = errors.New("invalid minion id")
	ErrInvalidJid      = errors.New("invalid jid")
)

// LocalCacheConfig contains everything needed to make a LocalCache. Only
// Layout is required.
type LocalCacheConfig struct {
	Layout    Layout
	Resolver  minion.TargetResolver // resolves job targets, optional
	Generator *jid.Generator        // for PrepJid, default jid.NewGenerator()
	Metrics   *metrics.Collector    // optional
}

// LocalCache is the filesystem job cache. It holds no job data in memory:
// every read goes to disk, and several processes can share one cache dir.
type LocalCache struct {
	layout   Layout
	resolver minion.TargetResolver
	gen      *jid.Generator
	metrics  *metrics.Collector

	// called with the job dir before the minion dir is made, tests only
	beforeMinionDir func(dir string)
}

var _ Store = &LocalCache{}

func NewLocalCache(cfg LocalCacheConfig) *LocalCache {
	gen := cfg.Generator
	if gen == nil {
		gen = jid.NewGenerator()
	}
	return &LocalCache{
		layout:   cfg.Layout,
		resolver: cfg.Resolver,
		gen:      gen,
		metrics:  cfg.Metrics,
	}
}

func (c *LocalCache) Layout() Layout {
	return c.layout
}

// PrepJid makes a new jid and its job directory. If nocache is true, returns
// for the job will not be recorded.
func (c *LocalCache) PrepJid(nocache bool) (string, error) {
	j := c.gen.Next()
	dir, err := c.layout.EnsureJidDir(j)
	if err != nil {
		return "", err
	}
	if err := c.writeMarkers(dir, j, nocache); err != nil {
		return "", err
	}
	log.Debugf("prepared jid %s (nocache=%t)", j, nocache)
	return j, nil
}

// Return records ret in the job directory of ret.Jid. A minion directory is
// created with an exclusive mkdir, so a minion can return at most once per job.
// A second return is not an error: it returns proto.RETURN_DUPLICATE and is
// logged as a possible replay attack.
func (c *LocalCache) Return(ret proto.Return) (byte, error) {
	if err := validJid(ret.Jid); err != nil {
		return proto.RETURN_UNKNOWN, err
	}
	if err := validMinionId(ret.Id); err != nil {
		return proto.RETURN_UNKNOWN, err
	}

	dir, err := c.layout.EnsureJidDir(ret.Jid)
	if err != nil {
		return proto.RETURN_UNKNOWN, fmt.Errorf("cannot create job dir for %s: %s", ret.Jid, err)
	}

	// A nocache job must be left exactly as it is.
	if _, err := os.Stat(filepath.Join(dir, NOCACHE)); err == nil {
		c.metrics.RecordReturn(proto.RETURN_NOCACHE)
		return proto.RETURN_NOCACHE, nil
	}

	// Returns for jobs the master did not publish carry their own load.
	if ret.Jid == jid.REQ && !ret.NoCache {
		if err := payload.WriteFile(filepath.Join(dir, LOAD_P), ReqLoad(ret)); err != nil {
			return proto.RETURN_UNKNOWN, fmt.Errorf("cannot write load for %s: %s", ret, err)
		}
	}

	if c.beforeMinionDir != nil {
		c.beforeMinionDir(dir)
	}
	minionDir := filepath.Join(dir, ret.Id)
	if err := os.Mkdir(minionDir, 0755); err != nil {
		switch {
		case errors.Is(err, fs.ErrExist):
			log.Error(jcerr.DuplicateReturn{Jid: ret.Jid, Minion: ret.Id})
			c.metrics.RecordReturn(proto.RETURN_DUPLICATE)
			return proto.RETURN_DUPLICATE, nil
		case errors.Is(err, fs.ErrNotExist):
			log.Error(jcerr.MissingJob{Jid: ret.Jid, Minion: ret.Id})
			c.metrics.RecordReturn(proto.RETURN_MISSING_JOB)
			return proto.RETURN_MISSING_JOB, nil
		default:
			return proto.RETURN_UNKNOWN, fmt.Errorf("cannot create minion dir %s: %s", minionDir, err)
		}
	}

	if err := payload.WriteFile(filepath.Join(minionDir, RETURN_P), ret.Return); err != nil {
		return proto.RETURN_UNKNOWN, fmt.Errorf("cannot write return for %s: %s", ret, err)
	}
	if ret.Out != "" {
		if err := payload.WriteFile(filepath.Join(minionDir, OUT_P), ret.Out); err != nil {
			return proto.RETURN_UNKNOWN, fmt.Errorf("cannot write out for %s: %s", ret, err)
		}
	}

	c.metrics.RecordReturn(proto.RETURN_STORED)
	return proto.RETURN_STORED, nil
}

// SaveLoad records the load of job j. If the load has a target, the minions
// it matches are saved too. Failing to resolve the target is logged, not
// returned: the snapshot is advisory and must not fail the publish.
func (c *LocalCache) SaveLoad(j string, load proto.Load) error {
	if err := validJid(j); err != nil {
		return err
	}
	dir, err := c.layout.EnsureJidDir(j)
	if err != nil {
		return fmt.Errorf("cannot create job dir for %s: %s", j, err)
	}
	if load.Jid == "" {
		load.Jid = j
	}
	if err := c.writeMarkers(dir, j, load.NoCache); err != nil {
		return err
	}

	if load.Tgt != "" && c.resolver != nil {
		tgtType := load.TgtType
		if tgtType == "" {
			tgtType = proto.DEFAULT_TGT_TYPE
		}
		minions, err := c.resolver.CheckMinions(load.Tgt, tgtType)
		if err != nil {
			log.Warnf("job %s: cannot resolve target %s (%s): %s", j, load.Tgt, tgtType, err)
		} else if err := payload.WriteFile(filepath.Join(dir, MINIONS_P), minions); err != nil {
			log.Warnf("job %s: cannot save target minions: %s", j, err)
		}
	}

	load.Minions = nil // only set on read
	if err := payload.WriteFile(filepath.Join(dir, LOAD_P), load); err != nil {
		return fmt.Errorf("cannot write load for %s: %s", j, err)
	}
	c.metrics.RecordLoad()
	return nil
}

// writeMarkers writes the jid marker, and the nocache sentinel if nocache.
// Existing markers are left as they are.
func (c *LocalCache) writeMarkers(dir, j string, nocache bool) error {
	marker := filepath.Join(dir, JID_MARKER)
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		if err := ioutil.WriteFile(marker, []byte(j), 0644); err != nil {
			return fmt.Errorf("cannot write jid marker for %s: %s", j, err)
		}
	}
	if nocache {
		if err := ioutil.WriteFile(filepath.Join(dir, NOCACHE), nil, 0644); err != nil {
			return fmt.Errorf("cannot write nocache sentinel for %s: %s", j, err)
		}
	}
	return nil
}

func validJid(j string) error {
	if j == "" || strings.ContainsAny(j, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidJid, j)
	}
	return nil
}

// Minion ids become directory names, so they cannot escape the job directory
// or collide with the dot files kept there.
func validMinionId(id string) error {
	if id == "" || strings.HasPrefix(id, ".") || strings.ContainsAny(id, `/\`) || id == JID_MARKER || id == NOCACHE {
		return fmt.Errorf("%w: %q", ErrInvalidMinionId, id)
	}
	return nil
}
