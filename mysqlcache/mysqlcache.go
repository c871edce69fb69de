// Copyright 2017-2019, Square, Inc.

// Package mysqlcache provides a jobcache.Store backed by MySQL. It uses the
// jids and salt_returns tables (see SCHEMA), so existing job databases can be
// read as they are.
package mysqlcache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/db"
	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/jobcache"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/minion"
	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

// NAME is the job cache name of this store.
const NAME = "mysql"

// SCHEMA creates the tables. The unique key on salt_returns (jid, id) is what
// makes a minion return at most once per job.
var SCHEMA = []string{
	"CREATE TABLE IF NOT EXISTS `jids` (" +
		"`jid` varchar(255) NOT NULL," +
		"`load` mediumtext NOT NULL," +
		"`nocache` tinyint(1) NOT NULL DEFAULT 0," +
		"UNIQUE KEY `jid` (`jid`)" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8",
	"CREATE TABLE IF NOT EXISTS `salt_returns` (" +
		"`fun` varchar(50) NOT NULL," +
		"`jid` varchar(255) NOT NULL," +
		"`return` mediumtext NOT NULL," +
		"`id` varchar(255) NOT NULL," +
		"`success` varchar(10) NOT NULL," +
		"`full_ret` mediumtext NOT NULL," +
		"`alter_time` TIMESTAMP DEFAULT CURRENT_TIMESTAMP," +
		"UNIQUE KEY `jid_id` (`jid`, `id`)," +
		"KEY `id` (`id`)," +
		"KEY `fun` (`fun`)" +
		") ENGINE=InnoDB DEFAULT CHARSET=utf8",
}

// Store implements jobcache.Store.
type Store struct {
	dbc      db.Connector
	resolver minion.TargetResolver
	metrics  *metrics.Collector
}

var _ jobcache.Store = &Store{}

// NewStore returns a Store. The resolver is optional: if given, the minions a
// load targets are saved with the load.
func NewStore(dbc db.Connector, resolver minion.TargetResolver, m *metrics.Collector) *Store {
	return &Store{
		dbc:      dbc,
		resolver: resolver,
		metrics:  m,
	}
}

// CreateSchema creates the tables if they do not exist.
func (s *Store) CreateSchema() error {
	conn, err := s.dbc.Connect() // connection is from a pool. do not close
	if err != nil {
		return err
	}
	for _, q := range SCHEMA {
		if _, err := conn.Exec(q); err != nil {
			return jcerr.NewDbError(err, q)
		}
	}
	return nil
}

// Return stores a minion return once. Returns of a job saved with a nocache
// load are not stored. A nocache return for the req jid is stored without
// saving its load.
func (s *Store) Return(ret proto.Return) (byte, error) {
	conn, err := s.dbc.Connect()
	if err != nil {
		return proto.RETURN_UNKNOWN, err
	}

	var nocache bool
	q := "SELECT `nocache` FROM jids WHERE jid = ?"
	if err := conn.QueryRow(q, ret.Jid).Scan(&nocache); err != nil && err != sql.ErrNoRows {
		return proto.RETURN_UNKNOWN, jcerr.NewDbError(err, q)
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

	retJSON, err := json.Marshal(ret.Return)
	if err != nil {
		return proto.RETURN_UNKNOWN, err
	}
	fullJSON, err := json.Marshal(ret)
	if err != nil {
		return proto.RETURN_UNKNOWN, err
	}

	q = "INSERT INTO salt_returns (`fun`, `jid`, `return`, `id`, `success`, `full_ret`) VALUES (?, ?, ?, ?, ?, ?)"
	_, err = conn.Exec(q, ret.Fun, ret.Jid, string(retJSON), ret.Id, fmt.Sprintf("%t", ret.Success), string(fullJSON))
	if err != nil {
		if db.IsDuplicate(err) {
			log.Error(jcerr.DuplicateReturn{Jid: ret.Jid, Minion: ret.Id})
			s.metrics.RecordReturn(proto.RETURN_DUPLICATE)
			return proto.RETURN_DUPLICATE, nil
		}
		return proto.RETURN_UNKNOWN, jcerr.NewDbError(err, q)
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

	conn, err := s.dbc.Connect()
	if err != nil {
		return err
	}
	q := "INSERT INTO jids (`jid`, `load`, `nocache`) VALUES (?, ?, ?)"
	if _, err := conn.Exec(q, j, string(bytes), load.NoCache); err != nil {
		if db.IsDuplicate(err) {
			log.Debugf("load for job %s already saved", j)
			return nil
		}
		return jcerr.NewDbError(err, q)
	}
	s.metrics.RecordLoad()
	return nil
}

func (s *Store) GetLoad(j string) (proto.Load, error) {
	var load proto.Load
	conn, err := s.dbc.Connect()
	if err != nil {
		return load, err
	}
	var bytes string
	q := "SELECT `load` FROM jids WHERE jid = ?"
	if err := conn.QueryRow(q, j).Scan(&bytes); err != nil {
		if err == sql.ErrNoRows {
			return load, nil
		}
		return load, jcerr.NewDbError(err, q)
	}
	if err := payload.DecodeJSON([]byte(bytes), &load); err != nil {
		return load, fmt.Errorf("job %s: invalid load: %s", j, err)
	}
	return load, nil
}

func (s *Store) GetJid(j string) (map[string]proto.MinionReturn, error) {
	conn, err := s.dbc.Connect()
	if err != nil {
		return nil, err
	}
	q := "SELECT id, full_ret FROM salt_returns WHERE jid = ?"
	rows, err := conn.Query(q, j)
	if err != nil {
		return nil, jcerr.NewDbError(err, q)
	}
	defer rows.Close()

	ret := map[string]proto.MinionReturn{}
	for rows.Next() {
		var id, full string
		if err := rows.Scan(&id, &full); err != nil {
			return nil, err
		}
		var r proto.Return
		if err := payload.DecodeJSON([]byte(full), &r); err != nil {
			log.Warnf("job %s: skipping invalid return of minion %s: %s", j, id, err)
			continue
		}
		ret[id] = proto.MinionReturn{Return: r.Return, Out: r.Out}
	}
	return ret, rows.Err()
}

func (s *Store) GetJids() (map[string]proto.JobSummary, error) {
	conn, err := s.dbc.Connect()
	if err != nil {
		return nil, err
	}
	q := "SELECT jid, `load` FROM jids"
	rows, err := conn.Query(q)
	if err != nil {
		return nil, jcerr.NewDbError(err, q)
	}
	defer rows.Close()

	jids := map[string]proto.JobSummary{}
	for rows.Next() {
		var j, bytes string
		if err := rows.Scan(&j, &bytes); err != nil {
			return nil, err
		}
		var load proto.Load
		if err := payload.DecodeJSON([]byte(bytes), &load); err != nil {
			log.Warnf("skipping job %s: invalid load: %s", j, err)
			continue
		}
		jids[j] = jobcache.Format(j, load)
	}
	return jids, rows.Err()
}

// CleanOldJobs deletes jobs and returns older than keepJobs hours. Jids sort
// chronologically, so rows are selected by comparing jids to the cutoff jid.
func (s *Store) CleanOldJobs(keepJobs int, now time.Time) (int, error) {
	if keepJobs == 0 {
		return 0, nil
	}
	cutoff := jid.FromTime(now.Add(-time.Duration(keepJobs) * time.Hour))
	conn, err := s.dbc.Connect()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, table := range []string{"salt_returns", "jids"} {
		// Only numeric jids: "req" sorts after digits but is excluded anyway.
		q := "DELETE FROM " + table + " WHERE jid < ? AND jid REGEXP '^[0-9]+$'"
		res, err := conn.Exec(q, cutoff)
		if err != nil {
			return removed, jcerr.NewDbError(err, q)
		}
		if table == "jids" {
			if n, err := res.RowsAffected(); err == nil {
				removed = int(n)
			}
		}
	}
	if removed > 0 {
		log.Infof("swept %d jobs from mysql job cache", removed)
		s.metrics.RecordSwept("expired", removed)
	}
	return removed, nil
}

// Truncate deletes everything. Used by tests.
func (s *Store) Truncate() error {
	conn, err := s.dbc.Connect()
	if err != nil {
		return err
	}
	for _, table := range []string{"salt_returns", "jids"} {
		if _, err := conn.Exec("TRUNCATE TABLE " + table); err != nil {
			return err
		}
	}
	return nil
}
