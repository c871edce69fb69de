// Copyright 2019, Square, Inc.

// Package errors provides errors reported to the user. These are mapped to a
// proto.Error by the API and sent to the user. All errors must implement the
// error interface and return a helpful error message. The message can be terse
// because it will be reported in context. For example, the MalformedJid error
// message makes sense in response to "jobc list-job abc" when "abc" is not a
// job id.
package errors

import (
	"fmt"
	"strings"
)

var _ error = MalformedJid{}

type MalformedJid struct {
	Jid string
}

func (e MalformedJid) Error() string {
	return fmt.Sprintf("malformed jid %q: expected at least 14 digits (YYYYMMDDHHMMSS)", e.Jid)
}

// --------------------------------------------------------------------------

var _ error = DuplicateReturn{}

// DuplicateReturn is logged when a minion returns twice for the same job. The
// second return is never written. It can indicate a replay attack.
type DuplicateReturn struct {
	Jid    string
	Minion string
}

func (e DuplicateReturn) Error() string {
	return fmt.Sprintf("minion %s already returned for job %s (possible replay attack)", e.Minion, e.Jid)
}

// --------------------------------------------------------------------------

var _ error = ValidationError{}

// ValidationError is returned when an API request is invalid, like a return
// whose jid does not match the URL.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string {
	return e.Message
}

// --------------------------------------------------------------------------

var _ error = MissingJob{}

// MissingJob is logged when the job directory disappears while a return is
// being written, usually because the sweeper removed it.
type MissingJob struct {
	Jid    string
	Minion string
}

func (e MissingJob) Error() string {
	return fmt.Sprintf("job %s directory vanished while writing return for minion %s", e.Jid, e.Minion)
}

// --------------------------------------------------------------------------

var _ error = QueueConflict{}

// QueueConflict is a soft error: the items were already in the queue. Other
// items in the same insert were still inserted.
type QueueConflict struct {
	Queue string
	Items []string
}

func (e QueueConflict) Error() string {
	return fmt.Sprintf("items already in queue %s: %s", e.Queue, strings.Join(e.Items, ", "))
}

// --------------------------------------------------------------------------

var _ error = InvalidQueueName{}

type InvalidQueueName struct {
	Queue string
}

func (e InvalidQueueName) Error() string {
	return fmt.Sprintf("invalid queue name %q: must match [A-Za-z_][A-Za-z0-9_]*", e.Queue)
}

// --------------------------------------------------------------------------

var _ error = UnknownReturner{}

// UnknownReturner is returned when a job cache name (ext_job_cache, ext_source,
// or master_ext_job_cache) does not match a configured store.
type UnknownReturner struct {
	Name string
}

func (e UnknownReturner) Error() string {
	return fmt.Sprintf("unknown job cache %q", e.Name)
}

// --------------------------------------------------------------------------

var _ error = DbError{}

// DbError represents a generic database error. This struct is not superfluous,
// it allows the API to distinguish the error type and return an appropriate
// proto.Error.
type DbError struct {
	err   error
	query string
}

func NewDbError(err error, query string) DbError {
	return DbError{err: err, query: query}
}

func (e DbError) Error() string {
	return fmt.Sprintf("database error: %s (%s)", e.err, e.query)
}

func (e DbError) Unwrap() error {
	return e.err
}
