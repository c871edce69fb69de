// Copyright 2017-2019, Square, Inc.

package jobcache

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
	"github.com/square/jobcache/retry"
)

// A return can be read while a concurrent writer renames it into place, or
// while the sweeper removes it. Reads are retried this many times.
const (
	READ_TRIES = 3
	READ_WAIT  = 10 * time.Millisecond
)

func (c *LocalCache) GetLoad(j string) (proto.Load, error) {
	if validJid(j) != nil {
		return proto.Load{}, nil
	}
	dir := c.layout.JidDir(j)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return proto.Load{}, nil
		}
		return proto.Load{}, err
	}

	var load proto.Load
	if err := payload.ReadFile(filepath.Join(dir, LOAD_P), &load); err != nil {
		if payload.IsNotExist(err) {
			return proto.Load{}, nil // returns arrived before the load
		}
		return proto.Load{}, err
	}

	var minions []string
	if err := payload.ReadFile(filepath.Join(dir, MINIONS_P), &minions); err == nil {
		load.Minions = minions
	} else if !payload.IsNotExist(err) {
		log.Warnf("job %s: cannot read target minions: %s", j, err)
	}
	return load, nil
}

func (c *LocalCache) GetJid(j string) (map[string]proto.MinionReturn, error) {
	ret := map[string]proto.MinionReturn{}
	if validJid(j) != nil {
		return ret, nil
	}
	dir := c.layout.JidDir(j)
	files, err := ioutil.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ret, nil
		}
		return nil, err
	}

	for _, f := range files {
		if !f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		id := f.Name()
		retPath := filepath.Join(dir, id, RETURN_P)
		if _, err := os.Stat(retPath); err != nil {
			continue // minion dir made, return not written yet
		}

		var mr proto.MinionReturn
		err := retry.Do(READ_TRIES, READ_WAIT,
			func() error {
				return payload.ReadFile(retPath, &mr.Return)
			},
			nil,
		)
		if err != nil {
			log.Warnf("job %s: skipping return of minion %s: %s", j, id, err)
			continue
		}
		var out string
		if err := payload.ReadFile(filepath.Join(dir, id, OUT_P), &out); err == nil {
			mr.Out = out
		}
		ret[id] = mr
	}
	return ret, nil
}

func (c *LocalCache) GetJids() (map[string]proto.JobSummary, error) {
	jids := map[string]proto.JobSummary{}
	err := c.layout.Walk(func(e Entry) error {
		jids[e.Jid] = Format(e.Jid, e.Load)
		return nil
	})
	return jids, err
}

// Returned returns the sorted ids of minions that started returning for a job,
// whether or not their return is fully written.
func (c *LocalCache) Returned(j string) ([]string, error) {
	minions := []string{}
	if validJid(j) != nil {
		return minions, nil
	}
	files, err := ioutil.ReadDir(c.layout.JidDir(j))
	if err != nil {
		if os.IsNotExist(err) {
			return minions, nil
		}
		return nil, err
	}
	for _, f := range files {
		if f.IsDir() && !strings.HasPrefix(f.Name(), ".") {
			minions = append(minions, f.Name())
		}
	}
	sort.Strings(minions)
	return minions, nil
}
