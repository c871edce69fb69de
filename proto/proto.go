// Copyright 2017-2019, Square, Inc.

// Package proto provide API message structures and constants.
package proto

import (
	"encoding/json"
	"fmt"
)

// Load is the job record written once per job at publish time. On read, the
// minion target snapshot is merged into it under the Minions key.
type Load struct {
	Jid      string                 `json:"jid"`
	Fun      string                 `json:"fun,omitempty"`
	Arg      []interface{}          `json:"arg,omitempty"`
	Kwargs   map[string]interface{} `json:"kwargs,omitempty"`
	Tgt      string                 `json:"tgt,omitempty"` // list targets are comma-separated
	TgtType  string                 `json:"tgt_type,omitempty"`
	User     string                 `json:"user,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	NoCache  bool                   `json:"nocache,omitempty"`

	// Target snapshot, set only on read.
	Minions []string `json:"Minions,omitempty"`
}

// Empty returns true if the load was not found. Queries return an empty load
// for unknown jobs instead of an error.
func (l Load) Empty() bool {
	return l.Jid == "" && l.Fun == ""
}

// Return is one minion's return for one job, as sent by the minion.
type Return struct {
	Jid     string        `json:"jid"`
	Id      string        `json:"id"` // minion id
	Fun     string        `json:"fun,omitempty"`
	FunArgs []interface{} `json:"fun_args,omitempty"`
	Return  interface{}   `json:"return"`
	Out     string        `json:"out,omitempty"` // outputter name, optional
	Success bool          `json:"success"`
	Retcode int           `json:"retcode"`
	NoCache bool          `json:"nocache,omitempty"`
}

// MinionReturn is what the cache keeps for one minion's return.
type MinionReturn struct {
	Return interface{} `json:"return"`
	Out    string      `json:"out,omitempty"`
}

// ReturnResult is the API response to a recorded return.
type ReturnResult struct {
	Jid     string `json:"jid"`
	Id      string `json:"id"`
	Outcome string `json:"outcome"` // ReturnName value
}

// JobSummary is the display summary of a job load.
type JobSummary struct {
	Function   string                 `json:"Function"`
	Arguments  []interface{}          `json:"Arguments"`
	Target     string                 `json:"Target"`
	TargetType string                 `json:"Target-type"`
	User       string                 `json:"User"`
	StartTime  string                 `json:"StartTime"`
	Metadata   map[string]interface{} `json:"Metadata,omitempty"`
}

// JobDetail is a job summary plus the results of every minion that returned.
type JobDetail struct {
	JobSummary
	Jid     string                  `json:"jid"`
	Minions []string                `json:"Minions"`
	Result  map[string]MinionReturn `json:"Result"`
}

// RunningJob describes a job a minion reports as currently executing.
type RunningJob struct {
	Jid     string        `json:"jid"`
	Fun     string        `json:"fun"`
	Arg     []interface{} `json:"arg,omitempty"`
	Tgt     string        `json:"tgt,omitempty"`
	TgtType string        `json:"tgt_type,omitempty"`
	User    string        `json:"user,omitempty"`
	Pid     int           `json:"pid"`
}

// ActiveJob is a running job with the minions still running it and the
// minions that already returned.
type ActiveJob struct {
	JobSummary
	Running  []map[string]int `json:"Running"`
	Returned []string         `json:"Returned"`
}

// QueueItems is the payload for queue insert and delete.
type QueueItems struct {
	Items []string `json:"items"`
}

// QueueInsert reports which items were inserted and which already existed.
type QueueInsert struct {
	Queue     string   `json:"queue"`
	Inserted  []string `json:"inserted"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// QueueLength is the API response for queue length.
type QueueLength struct {
	Queue  string `json:"queue"`
	Length int    `json:"length"`
}

// Error is returned by the API on any error.
type Error struct {
	Message    string `json:"message"`
	HTTPStatus int    `json:"httpStatus"` // HTTP status code
}

// Jid is returned by the API when a new job id is prepared.
type Jid struct {
	Jid string `json:"jid"`
}

// CleanResult is returned by the API after a sweep.
type CleanResult struct {
	Removed int `json:"removed"`
}

func (r Return) String() string {
	return fmt.Sprintf("%s/%s", r.Jid, r.Id)
}

// MarshalIndent is used by clients that print results.
func MarshalIndent(v interface{}) string {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(bytes)
}
