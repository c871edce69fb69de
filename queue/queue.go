// Copyright 2017-2019, Square, Inc.

// Package queue provides named queues of unique string items. Each queue is a
// sqlite database <dir>/<queue>.db with one table named after the queue.
// Queues are created on first insert.
package queue

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	jcerr "github.com/square/jobcache/errors"
	"github.com/square/jobcache/metrics"
	"github.com/square/jobcache/proto"
)

const (
	// ALL pops every item in the queue.
	ALL = -1

	EXT = ".db"

	DEFAULT_BUSY_TIMEOUT = 5 * time.Second
)

var (
	ErrInvalidQuantity = errors.New("invalid quantity: expected a positive number or 'all'")
)

// Queue names are used as table names, so they are restricted to identifiers.
// Statements quote them (see table), so SQL keywords are valid names.
var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sqlite reserves table names starting with sqlite_.
const reservedPrefix = "sqlite_"

func isValidName(queue string) bool {
	return validName.MatchString(queue) && !strings.HasPrefix(strings.ToLower(queue), reservedPrefix)
}

// table returns the quoted table name of a valid queue name.
func table(queue string) string {
	return `"` + queue + `"`
}

// A Store holds named queues.
type Store interface {
	// Insert adds items to the end of a queue, creating it if needed. Items
	// already in the queue are reported as conflicts and skipped; the rest
	// are still inserted.
	Insert(queue string, items ...string) (proto.QueueInsert, error)

	// Delete removes items from a queue. Missing items are ignored.
	Delete(queue string, items ...string) error

	// Pop removes and returns the first n items (ALL for every item) in
	// insertion order. Concurrent pops never return the same item.
	Pop(queue string, n int) ([]string, error)

	// ListItems returns every item in insertion order.
	ListItems(queue string) ([]string, error)

	// ListLength returns the number of items.
	ListLength(queue string) (int, error)

	// ListQueues returns the names of all queues.
	ListQueues() ([]string, error)
}

// ParseQuantity parses a pop quantity: "all" or a positive integer.
func ParseQuantity(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	if strings.ToLower(s) == "all" {
		return ALL, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ErrInvalidQuantity
	}
	return n, nil
}

// --------------------------------------------------------------------------

// SQLiteStore is a Store with one sqlite database per queue. Connections are
// opened per operation, so several processes can share a queue dir.
type SQLiteStore struct {
	dir         string
	busyTimeout time.Duration
	metrics     *metrics.Collector
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dir string, m *metrics.Collector) *SQLiteStore {
	return &SQLiteStore{
		dir:         dir,
		busyTimeout: DEFAULT_BUSY_TIMEOUT,
		metrics:     m,
	}
}

// Dir returns the directory holding the queue databases.
func (s *SQLiteStore) Dir() string {
	return s.dir
}

func (s *SQLiteStore) Insert(queue string, items ...string) (proto.QueueInsert, error) {
	res := proto.QueueInsert{
		Queue:    queue,
		Inserted: []string{},
	}
	db, err := s.open(queue, true)
	if err != nil {
		return res, err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return res, err
	}
	query := "INSERT INTO " + table(queue) + " (name) VALUES (?)"
	for _, item := range items {
		if _, err := tx.Exec(query, item); err != nil {
			var sqlErr sqlite3.Error
			if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				res.Conflicts = append(res.Conflicts, item)
				continue
			}
			tx.Rollback()
			return proto.QueueInsert{Queue: queue, Inserted: []string{}}, jcerr.NewDbError(err, query)
		}
		res.Inserted = append(res.Inserted, item)
	}
	if err := tx.Commit(); err != nil {
		return proto.QueueInsert{Queue: queue, Inserted: []string{}}, err
	}

	if len(res.Conflicts) > 0 {
		log.Warn(jcerr.QueueConflict{Queue: queue, Items: res.Conflicts})
	}
	s.metrics.RecordQueue(queue, "insert", len(res.Inserted))
	s.metrics.RecordQueue(queue, "conflict", len(res.Conflicts))
	return res, nil
}

func (s *SQLiteStore) Delete(queue string, items ...string) error {
	db, err := s.open(queue, false)
	if err != nil || db == nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	query := "DELETE FROM " + table(queue) + " WHERE name = ?"
	n := 0
	for _, item := range items {
		res, err := tx.Exec(query, item)
		if err != nil {
			tx.Rollback()
			return jcerr.NewDbError(err, query)
		}
		if rows, err := res.RowsAffected(); err == nil {
			n += int(rows)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.metrics.RecordQueue(queue, "delete", n)
	return nil
}

func (s *SQLiteStore) Pop(queue string, n int) ([]string, error) {
	if n != ALL && n < 1 {
		return nil, ErrInvalidQuantity
	}
	db, err := s.open(queue, false)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return []string{}, nil
	}
	defer db.Close()

	// Transactions start with BEGIN IMMEDIATE (see dsn), so the select and
	// delete hold the write lock together.
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	query := "SELECT id, name FROM " + table(queue) + " ORDER BY id ASC"
	args := []interface{}{}
	if n != ALL {
		query += " LIMIT ?"
		args = append(args, n)
	}
	rows, err := tx.Query(query, args...)
	if err != nil {
		tx.Rollback()
		return nil, jcerr.NewDbError(err, query)
	}
	items := []string{}
	var maxId int64
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			tx.Rollback()
			return nil, err
		}
		items = append(items, name)
		maxId = id
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		tx.Rollback()
		return nil, err
	}

	if len(items) > 0 {
		// Ids are selected in order under the write lock, so every id up to
		// the last one selected was selected.
		del := "DELETE FROM " + table(queue) + " WHERE id <= ?"
		if _, err := tx.Exec(del, maxId); err != nil {
			tx.Rollback()
			return nil, jcerr.NewDbError(err, del)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	s.metrics.RecordQueue(queue, "pop", len(items))
	return items, nil
}

func (s *SQLiteStore) ListItems(queue string) ([]string, error) {
	items := []string{}
	db, err := s.open(queue, false)
	if err != nil || db == nil {
		return items, err
	}
	defer db.Close()

	query := "SELECT name FROM " + table(queue) + " ORDER BY id ASC"
	rows, err := db.Query(query)
	if err != nil {
		return nil, jcerr.NewDbError(err, query)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) ListLength(queue string) (int, error) {
	db, err := s.open(queue, false)
	if err != nil || db == nil {
		return 0, err
	}
	defer db.Close()

	var n int
	query := "SELECT COUNT(*) FROM " + table(queue)
	if err := db.QueryRow(query).Scan(&n); err != nil {
		return 0, jcerr.NewDbError(err, query)
	}
	return n, nil
}

func (s *SQLiteStore) ListQueues() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(s.dir, "*"+EXT))
	if err != nil {
		return nil, err
	}
	queues := make([]string, 0, len(files))
	for _, f := range files {
		queues = append(queues, strings.TrimSuffix(filepath.Base(f), EXT))
	}
	sort.Strings(queues)
	return queues, nil
}

// --------------------------------------------------------------------------

// open returns a connection to the queue's database with its table created.
// If create is false and the queue does not exist, it returns nil, nil.
func (s *SQLiteStore) open(queue string, create bool) (*sql.DB, error) {
	if !isValidName(queue) {
		return nil, jcerr.InvalidQueueName{Queue: queue}
	}
	path := filepath.Join(s.dir, queue+EXT)
	created := false
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if !create {
			return nil, nil
		}
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, err
		}
		created = true
	}

	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=%d&_journal_mode=WAL",
		path, s.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	ddl := "CREATE TABLE IF NOT EXISTS " + table(queue) + " (id INTEGER PRIMARY KEY, name TEXT UNIQUE)"
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		if created {
			// Do not leave a queue that ListQueues reports but cannot be used.
			os.Remove(path)
		}
		return nil, jcerr.NewDbError(err, ddl)
	}
	return db, nil
}
