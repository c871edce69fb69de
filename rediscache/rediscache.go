// Copyright 2017-2019, Square, Inc.

// Package rediscache provides a jobcache.Store backed by redis. Loads are
// strings, returns are a hash per job keyed on minion id, and a set indexes
// all jids. Keys expire after keep_jobs hours.
package rediscache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/garyburd/redigo/redis"
	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/config"
	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/minion"
	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

// NAME is the job cache name of this store.
const NAME = "redis"

const (
	LOAD_KEY    = "load"
	RET_KEY     = "ret"
	JIDS_KEY    = "jids"
	NOCACHE_KEY = "nocache" // set when the load of a job is nocache
)

// NewPool returns a redis connection pool for the config.
func NewPool(cfg config.RedisDb) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     cfg.MaxIdle,
		IdleTimeout: time.Duration(cfg.IdleTimeout) * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.Dial(cfg.Network, cfg.Address)
		},

		// ping if connection's old and tear down if there's an error
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}
}

// Store implements jobcache.Store.
type Store struct {
	pool     *redis.Pool
	prefix   string
	keepJobs int // hours, 0 = never expire
	resolver minion.TargetResolver
	metrics  *metrics.Collector
}

var _ jobcache.Store = &Store{}

// NewStore returns a Store. The resolver is optional: if given, the minions a
// load targets are saved with the load.
func NewStore(pool *redis.Pool, prefix string, keepJobs int, resolver minion.TargetResolver, m *metrics.Collector) *Store {
	return &Store{
		pool:     pool,
		prefix:   prefix,
		keepJobs: keepJobs,
		resolver: resolver,
		metrics:  m,
	}
}

// Ping checks that the redis server is reachable.
func (s *Store) Ping() error {
	conn := s.pool.Get()
	defer conn.Close()
	_, err := conn.Do("PING")
	return err
}

// Return stores a minion return once. Returns of a job saved with a nocache
// load are not stored. A nocache return for the req jid is stored without
// saving its load.
func (s *Store) Return(ret proto.Return) (byte, error) {
	nocache, err := s.noCache(ret.Jid)
	if err != nil {
		return proto.RETURN_UNKNOWN, err
	}
	if nocache {
		s.metrics.RecordReturn(proto.RETURN_NOCACHE)
		return proto.RETURN_NOCACHE, nil
	}
	if ret.Jid == jid.REQ && !ret.NoCache {
		if err := s.SaveLoad(jid.REQ, jobcache.ReqLoad(ret)); err != nil {
			return proto.RETURN_UNKNOWN, err
		}
	}

	bytes, err := json.Marshal(proto.MinionReturn{Return: ret.Return, Out: ret.Out})
	if err != nil {
		return proto.RETURN_UNKNOWN, err
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := s.key(RET_KEY, ret.Jid)
	n, err := redis.Int(conn.Do("HSETNX", key, ret.Id, bytes))
	if err != nil {
		return proto.RETURN_UNKNOWN, fmt.Errorf("redis HSETNX %s: %s", key, err)
	}
	if n == 0 {
		log.Error(jcerr.DuplicateReturn{Jid: ret.Jid, Minion: ret.Id})
		s.metrics.RecordReturn(proto.RETURN_DUPLICATE)
		return proto.RETURN_DUPLICATE, nil
	}
	if s.keepJobs > 0 {
		if _, err := conn.Do("EXPIRE", key, s.ttl()); err != nil {
			log.Warnf("redis EXPIRE %s: %s", key, err)
		}
	}
	s.metrics.RecordReturn(proto.RETURN_STORED)
	return proto.RETURN_STORED, nil
}

// SaveLoad saves the load once. Saving the load of a job again is ignored.
func (s *Store) SaveLoad(j string, load proto.Load) error {
	if load.Jid == "" {
		load.Jid = j
	}
	load.Minions = nil
	if load.Tgt != "" && s.resolver != nil {
		tgtType := load.TgtType
		if tgtType == "" {
			tgtType = proto.DEFAULT_TGT_TYPE
		}
		minions, err := s.resolver.CheckMinions(load.Tgt, tgtType)
		if err != nil {
			log.Warnf("job %s: cannot resolve target %s (%s): %s", j, load.Tgt, tgtType, err)
		} else {
			load.Minions = minions
		}
	}

	bytes, err := json.Marshal(load)
	if err != nil {
		return err
	}

	conn := s.pool.Get()
	defer conn.Close()

	key := s.key(LOAD_KEY, j)
	args := redis.Args{}.Add(key, bytes, "NX")
	if s.keepJobs > 0 {
		args = args.Add("EX", s.ttl())
	}
	reply, err := conn.Do("SET", args...)
	if err != nil {
		return fmt.Errorf("redis SET %s: %s", key, err)
	}
	if reply == nil {
		log.Debugf("load for job %s already saved", j)
		return nil
	}
	if _, err := conn.Do("SADD", s.jidsKey(), j); err != nil {
		return fmt.Errorf("redis SADD %s: %s", s.jidsKey(), err)
	}
	if load.NoCache {
		nkey := s.key(NOCACHE_KEY, j)
		args := redis.Args{}.Add(nkey, 1)
		if s.keepJobs > 0 {
			args = args.Add("EX", s.ttl())
		}
		if _, err := conn.Do("SET", args...); err != nil {
			return fmt.Errorf("redis SET %s: %s", nkey, err)
		}
	}
	s.metrics.RecordLoad()
	return nil
}

func (s *Store) GetLoad(j string) (proto.Load, error) {
	var load proto.Load
	conn := s.pool.Get()
	defer conn.Close()

	bytes, err := redis.Bytes(conn.Do("GET", s.key(LOAD_KEY, j)))
	if err != nil {
		if err == redis.ErrNil {
			return load, nil
		}
		return load, err
	}
	if err := payload.DecodeJSON(bytes, &load); err != nil {
		return load, fmt.Errorf("job %s: invalid load: %s", j, err)
	}
	return load, nil
}

func (s *Store) GetJid(j string) (map[string]proto.MinionReturn, error) {
	conn := s.pool.Get()
	defer conn.Close()

	all, err := redis.StringMap(conn.Do("HGETALL", s.key(RET_KEY, j)))
	if err != nil {
		return nil, err
	}
	ret := map[string]proto.MinionReturn{}
	for id, bytes := range all {
		var r proto.MinionReturn
		if err := payload.DecodeJSON([]byte(bytes), &r); err != nil {
			log.Warnf("job %s: skipping invalid return of minion %s: %s", j, id, err)
			continue
		}
		ret[id] = r
	}
	return ret, nil
}

func (s *Store) GetJids() (map[string]proto.JobSummary, error) {
	conn := s.pool.Get()
	defer conn.Close()

	members, err := redis.Strings(conn.Do("SMEMBERS", s.jidsKey()))
	if err != nil {
		return nil, err
	}
	jids := map[string]proto.JobSummary{}
	for _, j := range members {
		bytes, err := redis.Bytes(conn.Do("GET", s.key(LOAD_KEY, j)))
		if err != nil {
			if err == redis.ErrNil {
				continue // expired, CleanOldJobs removes it from the set
			}
			return nil, err
		}
		var load proto.Load
		if err := payload.DecodeJSON(bytes, &load); err != nil {
			log.Warnf("skipping job %s: invalid load: %s", j, err)
			continue
		}
		jids[j] = jobcache.Format(j, load)
	}
	return jids, nil
}

// CleanOldJobs removes jids whose load has expired from the jid set, along with
// their returns. It returns the number of jobs removed.
func (s *Store) CleanOldJobs() (int, error) {
	conn := s.pool.Get()
	defer conn.Close()

	members, err := redis.Strings(conn.Do("SMEMBERS", s.jidsKey()))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, j := range members {
		exists, err := redis.Bool(conn.Do("EXISTS", s.key(LOAD_KEY, j)))
		if err != nil {
			return removed, err
		}
		if exists {
			continue
		}
		if _, err := conn.Do("DEL", s.key(RET_KEY, j), s.key(NOCACHE_KEY, j)); err != nil {
			return removed, err
		}
		if _, err := conn.Do("SREM", s.jidsKey(), j); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		log.Infof("swept %d jobs from redis job cache", removed)
		s.metrics.RecordSwept("expired", removed)
	}
	return removed, nil
}

func (s *Store) noCache(j string) (bool, error) {
	conn := s.pool.Get()
	defer conn.Close()

	key := s.key(NOCACHE_KEY, j)
	exists, err := redis.Bool(conn.Do("EXISTS", key))
	if err != nil {
		return false, fmt.Errorf("redis EXISTS %s: %s", key, err)
	}
	return exists, nil
}

func (s *Store) key(kind, j string) string {
	return s.prefix + ":" + kind + ":" + j
}

func (s *Store) jidsKey() string {
	return s.prefix + ":" + JIDS_KEY
}

func (s *Store) ttl() int {
	return s.keepJobs * 3600
}
