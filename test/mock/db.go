// Copyright 2017-2019, Square, Inc.

package mock

import (
	"database/sql"
	"errors"
)

var (
	ErrConnector = errors.New("forced error in db connector")
)

type Connector struct {
	ConnectFunc func() (*sql.DB, error)
	CloseFunc   func()
}

func (c *Connector) Connect() (*sql.DB, error) {
	if c.ConnectFunc != nil {
		return c.ConnectFunc()
	}
	return nil, ErrConnector
}

func (c *Connector) Close() {
	if c.CloseFunc != nil {
		c.CloseFunc()
	}
}
