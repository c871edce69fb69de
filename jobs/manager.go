// Copyright 2017-2019, Square, Inc.

// Package jobs answers operator queries about jobs: which jobs exist, what a
// job returned, and which jobs are running right now. Queries go to the job
// cache named by ext_job_cache, the request, or master_ext_job_cache, in that
// order, else to the local job cache.
package jobs

import (
	"context"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/minion"
	"github.com/square/jobcache/proto"
)

// Returned is implemented by jobcache.LocalCache. Active uses it to find the
// minions that already returned for a running job.
type Returned interface {
	Returned(jid string) ([]string, error)
}

// ManagerConfig contains everything needed to make a Manager.
type ManagerConfig struct {
	ExtJobCache       string                    // ext_job_cache
	MasterExtJobCache string                    // master_ext_job_cache
	Stores            map[string]jobcache.Store // job cache name => store, must include jobcache.LOCAL_CACHE
	Local             Returned
	Lister            minion.RunningLister
	Timeout           time.Duration // for Active
	Cache             *Cache        // optional
	Metrics           *metrics.Collector
}

// Manager runs job queries.
type Manager struct {
	cfg   ManagerConfig
	cache *Cache
}

func NewManager(cfg ManagerConfig) *Manager {
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(0)
	}
	return &Manager{
		cfg:   cfg,
		cache: cache,
	}
}

// Cache returns the job list cache. The API invalidates it after writes.
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Returner returns the name and store of the job cache to query: the first
// non-empty of ext_job_cache, extSource, and master_ext_job_cache, else the
// local job cache.
func (m *Manager) Returner(extSource string) (string, jobcache.Store, error) {
	name := jobcache.LOCAL_CACHE
	for _, n := range []string{m.cfg.ExtJobCache, extSource, m.cfg.MasterExtJobCache} {
		if n != "" {
			name = n
			break
		}
	}
	store, ok := m.cfg.Stores[name]
	if !ok {
		return name, nil, jcerr.UnknownReturner{Name: name}
	}
	return name, store, nil
}

// Active returns the jobs that minions report as running, keyed on jid.
// Minions that do not answer within the timeout are left out.
func (m *Manager) Active(ctx context.Context) (map[string]proto.ActiveJob, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}
	running, err := m.cfg.Lister.Running(ctx)
	if err != nil {
		return nil, err
	}

	// Sort minion ids so Running lists are stable
	ids := make([]string, 0, len(running))
	for id := range running {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	active := map[string]proto.ActiveJob{}
	for _, id := range ids {
		for _, r := range running[id] {
			job, ok := active[r.Jid]
			if !ok {
				load := proto.Load{Fun: r.Fun, Arg: r.Arg, Tgt: r.Tgt, TgtType: r.TgtType, User: r.User}
				job = proto.ActiveJob{
					JobSummary: jobcache.Format(r.Jid, load),
					Running:    []map[string]int{},
					Returned:   []string{},
				}
			}
			job.Running = append(job.Running, map[string]int{id: r.Pid})
			active[r.Jid] = job
		}
	}

	if m.cfg.Local != nil {
		for j, job := range active {
			returned, err := m.cfg.Local.Returned(j)
			if err != nil {
				log.Warnf("cannot list minions that returned for job %s: %s", j, err)
				continue
			}
			job.Returned = returned
			active[j] = job
		}
	}

	m.cfg.Metrics.SetActiveJobs(len(active))
	return active, nil
}

// LookupJid returns the return value of every minion that returned for the job.
func (m *Manager) LookupJid(j, extSource string) (map[string]interface{}, error) {
	_, store, err := m.Returner(extSource)
	if err != nil {
		return nil, err
	}
	data, err := store.GetJid(j)
	if err != nil {
		return nil, err
	}
	ret := make(map[string]interface{}, len(data))
	for id, r := range data {
		ret[id] = r.Return
	}
	return ret, nil
}

// ListJob returns the summary, target minions, and results of the job. An
// unknown job returns only the jid.
func (m *Manager) ListJob(j, extSource string) (proto.JobDetail, error) {
	_, store, err := m.Returner(extSource)
	if err != nil {
		return proto.JobDetail{}, err
	}
	return detail(store, j)
}

// PrintJob is like ListJob but keyed on jid.
func (m *Manager) PrintJob(j, extSource string) (map[string]proto.JobDetail, error) {
	d, err := m.ListJob(j, extSource)
	if err != nil {
		return nil, err
	}
	if d.Function == "" {
		return map[string]proto.JobDetail{}, nil
	}
	return map[string]proto.JobDetail{j: d}, nil
}

// ListJobs returns a summary of every job that passes the filter, keyed on jid.
func (m *Manager) ListJobs(extSource string, f Filter) (map[string]proto.JobSummary, error) {
	name, store, err := m.Returner(extSource)
	if err != nil {
		return nil, err
	}
	all, ok := m.cache.Get(name)
	if !ok {
		all, err = store.GetJids()
		if err != nil {
			return nil, err
		}
		m.cache.Set(name, all)
	}
	return f.Apply(all), nil
}

func detail(store jobcache.Store, j string) (proto.JobDetail, error) {
	d := proto.JobDetail{
		Jid:     j,
		Minions: []string{},
		Result:  map[string]proto.MinionReturn{},
	}
	load, err := store.GetLoad(j)
	if err != nil {
		return d, err
	}
	result, err := store.GetJid(j)
	if err != nil {
		return d, err
	}
	if load.Empty() && len(result) == 0 {
		return d, nil
	}
	d.JobSummary = jobcache.Format(j, load)
	if load.Minions != nil {
		d.Minions = load.Minions
	}
	d.Result = result
	return d, nil
}
