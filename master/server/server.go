// Copyright 2017-2019, Square, Inc.

// Package server bootstraps and runs the job cache master.
package server

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/master/api"
	"github.com/square/jobcache/master/app"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/queue"
)

type Server struct {
	appCtx   app.Context
	api      *api.API
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewServer(appCtx app.Context) *Server {
	return &Server{
		appCtx:   appCtx,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

func (s *Server) Boot() error {
	// Load config file
	cfg, err := s.appCtx.Hooks.LoadConfig(s.appCtx)
	if err != nil {
		return fmt.Errorf("error loading config: %s", err)
	}
	s.appCtx.Config = cfg

	// Metrics: every component records into this collector
	if s.appCtx.Metrics == nil {
		s.appCtx.Metrics = metrics.NewCollector()
	}

	// Redis pool: shared by the redis job cache and the redis event publisher
	pool, err := s.appCtx.Factories.MakeRedisPool(s.appCtx)
	if err != nil {
		return fmt.Errorf("MakeRedisPool: %s", err)
	}
	s.appCtx.RedisPool = pool

	// Target resolver: which minions a job targets, saved with its load
	resolver, err := s.appCtx.Factories.MakeTargetResolver(s.appCtx)
	if err != nil {
		return fmt.Errorf("MakeTargetResolver: %s", err)
	}

	// Local job cache: always present, it makes jids
	local, err := s.appCtx.Factories.MakeLocalCache(s.appCtx, resolver)
	if err != nil {
		return fmt.Errorf("MakeLocalCache: %s", err)
	}
	s.appCtx.Local = local

	// External job caches
	stores, cleaners, err := s.appCtx.Factories.MakeExtStores(s.appCtx, resolver)
	if err != nil {
		return fmt.Errorf("MakeExtStores: %s", err)
	}
	stores[jobcache.LOCAL_CACHE] = local
	sweeper := jobcache.Sweeper{
		Layout:   local.Layout(),
		KeepJobs: cfg.KeepJobs,
		Metrics:  s.appCtx.Metrics,
	}
	cleaners[jobcache.LOCAL_CACHE] = sweeper.CleanOldJobs
	s.appCtx.Stores = stores
	s.appCtx.Cleaners = cleaners

	// Running lister: asks minions which jobs they are running
	lister, err := s.appCtx.Factories.MakeRunningLister(s.appCtx)
	if err != nil {
		return fmt.Errorf("MakeRunningLister: %s", err)
	}

	// Job manager: job queries
	s.appCtx.Jobs = jobs.NewManager(jobs.ManagerConfig{
		ExtJobCache:       cfg.ExtJobCache,
		MasterExtJobCache: cfg.MasterExtJobCache,
		Stores:            stores,
		Local:             local,
		Lister:            lister,
		Timeout:           time.Duration(cfg.Timeout) * time.Second,
		Cache:             jobs.NewCache(time.Duration(cfg.JobListCacheTTL) * time.Second),
		Metrics:           s.appCtx.Metrics,
	})
	if _, _, err := s.appCtx.Jobs.Returner(""); err != nil {
		return fmt.Errorf("invalid ext_job_cache or master_ext_job_cache: %s", err)
	}

	// Queues and the queue runner
	queues, err := s.appCtx.Factories.MakeQueueStore(s.appCtx)
	if err != nil {
		return fmt.Errorf("MakeQueueStore: %s", err)
	}
	s.appCtx.Queues = queues
	events, err := s.appCtx.Factories.MakePublisher(s.appCtx)
	if err != nil {
		return fmt.Errorf("MakePublisher: %s", err)
	}
	s.appCtx.Runner = queue.NewRunner(queues, events)

	// API: endpoints and controllers, also handles auth via auth plugin
	s.api = api.NewAPI(s.appCtx)

	return nil
}

// Run runs the sweeper loop and the API. If stopOnSignal is true, it stops
// on SIGTERM or SIGINT. It returns when the API stops.
func (s *Server) Run(stopOnSignal bool) error {
	if s.api == nil {
		panic("Server.Run called before Server.Boot")
	}

	go s.sweep()

	if stopOnSignal {
		go func() {
			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
			<-sigChan
			log.Info("caught signal, stopping")
			if err := s.Stop(); err != nil {
				log.Errorf("error stopping: %s", err)
			}
		}()
	}

	log.Infof("jobcache master listening on %s", s.appCtx.Config.Server.Addr)
	return s.api.Run()
}

// Stop stops the sweeper loop and the API.
func (s *Server) Stop() error {
	select {
	case <-s.stopChan:
		return nil // already stopped
	default:
	}
	close(s.stopChan)
	<-s.doneChan
	return s.api.Stop()
}

func (s *Server) API() *api.API {
	return s.api
}

func (s *Server) Context() app.Context {
	return s.appCtx
}

// CleanOldJobs runs one sweep of every job cache.
func (s *Server) CleanOldJobs() (int, error) {
	removed, err := s.appCtx.CleanOldJobs()
	if removed > 0 {
		s.appCtx.Jobs.Cache().Invalidate()
	}
	return removed, err
}

// sweep runs CleanOldJobs every loop_interval seconds until stopped.
func (s *Server) sweep() {
	defer close(s.doneChan)
	interval := time.Duration(s.appCtx.Config.LoopInterval) * time.Second
	if interval <= 0 || s.appCtx.Config.KeepJobs == 0 {
		log.Info("job cache sweeper disabled")
		<-s.stopChan
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			removed, err := s.CleanOldJobs()
			if err != nil {
				log.Errorf("error sweeping job cache: %s", err)
			}
			log.Debugf("swept %d jobs", removed)
		case <-s.stopChan:
			return
		}
	}
}
