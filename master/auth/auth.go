// Copyright 2017-2019, Square, Inc.

// Package auth provides the auth plugin interface of the master API.
package auth

import (
	"net/http"
)

// Ops checked by Authorize.
const (
	OP_READ  = "read"  // job queries, queue introspection
	OP_WRITE = "write" // returns, loads, queue changes, sweeps
)

// Caller represents an app or user making a request. Callers are determined by
// the auth plugin, if any.
type Caller struct {
	App   string   // caller is app (e.g. a minion returner), or
	User  string   // caller is human (mutually exclusive)
	Roles []string // for User
}

func (c Caller) Name() string {
	if c.User != "" {
		return c.User
	}
	return c.App
}

// Auth represents the auth plugin interface. The methods are called for every
// request to authenticate the calling app or user, then authorize it for the
// op (see OP_*) on the resource, which is the request path.
type Auth interface {
	// Authenticate caller from HTTP request.
	Authenticate(*http.Request) (Caller, error)

	// Authorize caller to do op on resource.
	Authorize(c Caller, op, resource string) error
}

// AllowAll is the default auth plugin which allows all apps and users.
type AllowAll struct{}

func (a AllowAll) Authenticate(*http.Request) (Caller, error) {
	return Caller{
		App:  "all",
		User: "everyone",
	}, nil
}

func (a AllowAll) Authorize(c Caller, op, resource string) error {
	return nil
}

// Op returns the op of an HTTP method: GET and HEAD read, everything else writes.
func Op(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return OP_READ
	}
	return OP_WRITE
}
