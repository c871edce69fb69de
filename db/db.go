// Copyright 2017-2019, Square, Inc.

// Package db provides database connections for the mysql job cache.
package db

import (
	"crypto/tls"
	"database/sql"
	"strings"
	"sync"

	"github.com/go-sql-driver/mysql"
)

// A Connector provides a database connection. It encapsulates logic about
// where and how to connect, like the DSN and TLS config, so that code using
// a Connector does not need to know this logic.
type Connector interface {
	Connect() (*sql.DB, error)
	Close()
}

// A ConnectionPool represents a standard sql.DB connection with max open > 0.
type ConnectionPool struct {
	maxOpen int
	maxIdle int
	dsn     string
	// --
	db *sql.DB
	*sync.Mutex
}

// NewConnectionPool returns a pool for dsn. parseTime=true is always added to
// the DSN, and tls=jobcache if tlsConfig is not nil.
func NewConnectionPool(maxOpen, maxIdle int, dsn string, tlsConfig *tls.Config) *ConnectionPool {
	params := []string{"parseTime=true"} // always needs to be set
	if tlsConfig != nil {
		mysql.RegisterTLSConfig("jobcache", tlsConfig)
		params = append(params, "tls=jobcache")
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + strings.Join(params, "&")

	return &ConnectionPool{
		maxOpen: maxOpen,
		maxIdle: maxIdle,
		dsn:     dsn,
		// --
		Mutex: &sync.Mutex{},
	}
}

func (c *ConnectionPool) Connect() (*sql.DB, error) {
	c.Lock()
	defer c.Unlock()

	if c.db != nil {
		if err := c.db.Ping(); err == nil {
			return c.db, nil // use existing connection
		}
		c.db.Close()
		c.db = nil
	}

	// Make new connection
	db, err := sql.Open("mysql", c.dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(c.maxOpen)
	db.SetMaxIdleConns(c.maxIdle)

	c.db = db

	return c.db, nil
}

func (c *ConnectionPool) Close() {
	c.Lock()
	defer c.Unlock()

	if c.db == nil {
		return
	}
	c.db.Close()
	c.db = nil
}

// DSN returns the DSN used to connect, with added params.
func (c *ConnectionPool) DSN() string {
	return c.dsn
}

// IsDuplicate returns true if err is a MySQL duplicate key error (1062).
func IsDuplicate(err error) bool {
	if myErr, ok := err.(*mysql.MySQLError); ok {
		return myErr.Number == 1062
	}
	return false
}
