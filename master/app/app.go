// Copyright 2017-2019, Square, Inc.

// Package app provides the app context of the master. Hooks and factories make
// it possible to replace how config is loaded and how each component is made,
// e.g. to use a different target resolver or event bus, without forking the
// server.
package app

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/garyburd/redigo/redis"

	"github.com/square/jobcache/config"
	"github.com/square/jobcache/db"
	"github.com/square/jobcache/event"
	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/master/auth"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/minion"
	"github.com/square/jobcache/mysqlcache"
	"github.com/square/jobcache/queue"
	"github.com/square/jobcache/rediscache"
	"github.com/square/jobcache/util"
)

// A Cleaner removes expired jobs from one job cache and returns how many.
type Cleaner func() (int, error)

// Context is the app context. The server fills in the components on boot.
type Context struct {
	Hooks     Hooks
	Factories Factories
	Plugins   Plugins

	ConfigFile string
	Config     config.Master

	// Made by the server on boot
	Metrics   *metrics.Collector
	Local     *jobcache.LocalCache
	Stores    map[string]jobcache.Store // job cache name => store
	Cleaners  map[string]Cleaner        // job cache name => sweep func
	Jobs      *jobs.Manager
	Queues    queue.Store
	Runner    *queue.Runner
	RedisPool *redis.Pool
}

type Factories struct {
	MakeTargetResolver func(Context) (minion.TargetResolver, error)
	MakeRunningLister  func(Context) (minion.RunningLister, error)
	MakeLocalCache     func(Context, minion.TargetResolver) (*jobcache.LocalCache, error)
	MakeExtStores      func(Context, minion.TargetResolver) (map[string]jobcache.Store, map[string]Cleaner, error)
	MakeQueueStore     func(Context) (queue.Store, error)
	MakePublisher      func(Context) (event.Publisher, error)
	MakeRedisPool      func(Context) (*redis.Pool, error)
}

type Hooks struct {
	LoadConfig  func(Context) (config.Master, error)
	SetUsername func(*http.Request) (string, error)
}

type Plugins struct {
	Auth auth.Auth
}

func Defaults() Context {
	return Context{
		ConfigFile: config.DEFAULT_CONFIG_FILE,
		Factories: Factories{
			MakeTargetResolver: MakeTargetResolver,
			MakeRunningLister:  MakeRunningLister,
			MakeLocalCache:     MakeLocalCache,
			MakeExtStores:      MakeExtStores,
			MakeQueueStore:     MakeQueueStore,
			MakePublisher:      MakePublisher,
			MakeRedisPool:      MakeRedisPool,
		},
		Hooks: Hooks{
			LoadConfig: LoadConfig,
		},
		Plugins: Plugins{
			Auth: auth.AllowAll{},
		},
	}
}

// LoadConfig loads the config file, if it exists, over the defaults, then
// applies JOBCACHE_* environment variables.
func LoadConfig(ctx Context) (config.Master, error) {
	cfg := config.Defaults()
	cfgFile := config.Env("JOBCACHE_CONFIG", ctx.ConfigFile)
	if cfgFile != "" {
		if err := config.Load(cfgFile, &cfg); err != nil {
			if !os.IsNotExist(err) || cfgFile != config.DEFAULT_CONFIG_FILE {
				return cfg, fmt.Errorf("error loading %s: %s", cfgFile, err)
			}
			// Default config file is optional
		}
	}
	cfg.Server.Addr = config.Env("JOBCACHE_ADDR", cfg.Server.Addr)
	cfg.CacheDir = config.Env("JOBCACHE_CACHEDIR", cfg.CacheDir)
	cfg.QueueDir = config.Env("JOBCACHE_QUEUE_DIR", cfg.QueueDir)
	cfg.HashType = config.Env("JOBCACHE_HASH_TYPE", cfg.HashType)
	cfg.KeepJobs = config.EnvInt("JOBCACHE_KEEP_JOBS", cfg.KeepJobs)
	cfg.ExtJobCache = config.Env("JOBCACHE_EXT_JOB_CACHE", cfg.ExtJobCache)
	cfg.MySQL.DSN = config.Env("JOBCACHE_MYSQL_DSN", cfg.MySQL.DSN)
	cfg.Redis.Address = config.Env("JOBCACHE_REDIS_ADDR", cfg.Redis.Address)
	return cfg, nil
}

// MakeTargetResolver returns a resolver over the accepted minion keys in
// pki_dir, or over the static minions list if pki_dir is not set.
func MakeTargetResolver(ctx Context) (minion.TargetResolver, error) {
	return minion.NewCkMinions(ctx.Config.PkiDir, ctx.Config.Minions), nil
}

// MakeRunningLister returns a lister that asks the minion_api URLs.
func MakeRunningLister(ctx Context) (minion.RunningLister, error) {
	tls := ctx.Config.MinionClient.TLS
	timeout := time.Duration(ctx.Config.Timeout) * time.Second
	client, err := util.NewHTTPClient(timeout, tls.CAFile, tls.CertFile, tls.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("error loading minion client TLS config: %s", err)
	}
	return minion.NewHTTPLister(client, ctx.Config.MinionAPI), nil
}

func MakeLocalCache(ctx Context, resolver minion.TargetResolver) (*jobcache.LocalCache, error) {
	layout, err := jobcache.NewLayout(ctx.Config.JobsDir(), ctx.Config.HashType)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(layout.Root(), 0755); err != nil {
		return nil, err
	}
	return jobcache.NewLocalCache(jobcache.LocalCacheConfig{
		Layout:   layout,
		Resolver: resolver,
		Metrics:  ctx.Metrics,
	}), nil
}

// MakeExtStores returns the external job caches: mysql if a DSN is set, and
// redis. The redis pool does not connect until the store is used.
func MakeExtStores(ctx Context, resolver minion.TargetResolver) (map[string]jobcache.Store, map[string]Cleaner, error) {
	stores := map[string]jobcache.Store{}
	cleaners := map[string]Cleaner{}

	if ctx.Config.MySQL.DSN != "" {
		dbcfg := ctx.Config.MySQL
		var dbc *db.ConnectionPool
		if dbcfg.TLS.CAFile != "" && dbcfg.TLS.CertFile != "" && dbcfg.TLS.KeyFile != "" {
			tlsConfig, err := util.NewTLSConfig(dbcfg.TLS.CAFile, dbcfg.TLS.CertFile, dbcfg.TLS.KeyFile)
			if err != nil {
				return nil, nil, fmt.Errorf("error loading database TLS config: %s", err)
			}
			dbc = db.NewConnectionPool(100, 10, dbcfg.DSN, tlsConfig)
		} else {
			dbc = db.NewConnectionPool(100, 10, dbcfg.DSN, nil)
		}
		s := mysqlcache.NewStore(dbc, resolver, ctx.Metrics)
		if err := s.CreateSchema(); err != nil {
			return nil, nil, fmt.Errorf("error creating mysql job cache schema: %s", err)
		}
		stores[mysqlcache.NAME] = s
		keep := ctx.Config.KeepJobs
		cleaners[mysqlcache.NAME] = func() (int, error) {
			return s.CleanOldJobs(keep, time.Now())
		}
	}

	if ctx.RedisPool != nil {
		s := rediscache.NewStore(ctx.RedisPool, ctx.Config.Redis.Prefix, ctx.Config.KeepJobs, resolver, ctx.Metrics)
		stores[rediscache.NAME] = s
		cleaners[rediscache.NAME] = s.CleanOldJobs
	}

	return stores, cleaners, nil
}

func MakeQueueStore(ctx Context) (queue.Store, error) {
	dir := ctx.Config.Queues()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return queue.NewSQLiteStore(dir, ctx.Metrics), nil
}

// MakePublisher returns the event publisher named by event_publisher: log
// (default) or redis.
func MakePublisher(ctx Context) (event.Publisher, error) {
	switch ctx.Config.EventPublisher {
	case "", "log":
		return event.LogPublisher{}, nil
	case "redis":
		if ctx.RedisPool == nil {
			return nil, fmt.Errorf("redis event publisher requires a redis config")
		}
		return event.NewRedisPublisher(ctx.RedisPool, ctx.Config.Redis.Prefix), nil
	}
	return nil, fmt.Errorf("invalid event_publisher: %s (valid: log, redis)", ctx.Config.EventPublisher)
}

// MakeRedisPool returns a pool for the redis config, or nil if no redis
// address is set.
func MakeRedisPool(ctx Context) (*redis.Pool, error) {
	if ctx.Config.Redis.Address == "" {
		return nil, nil
	}
	return rediscache.NewPool(ctx.Config.Redis), nil
}

// CleanOldJobs runs every cleaner once and returns the total number of jobs
// removed. A failing cleaner does not stop the others; the first error is
// returned.
func (ctx Context) CleanOldJobs() (int, error) {
	total := 0
	var firstErr error
	for name, clean := range ctx.Cleaners {
		n, err := clean()
		total += n
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %s", name, err)
		}
	}
	return total, firstErr
}
