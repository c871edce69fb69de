// Copyright 2017-2019, Square, Inc.

// Package jobcache stores published jobs and minion returns. LocalCache keeps
// them on the local filesystem, one directory per job; other packages provide
// Store implementations backed by external databases.
package jobcache

import (
	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/proto"
)

// LOCAL_CACHE is the name of the local job cache, as used by ext_job_cache
// and friends.
const LOCAL_CACHE = "local_cache"

// A Store records jobs and their returns and answers queries about them.
type Store interface {
	// Return records one minion's return. The byte is a proto.RETURN_* outcome:
	// only proto.RETURN_STORED means the return was written. The error is
	// reserved for failures of the store itself.
	Return(proto.Return) (byte, error)

	// SaveLoad records the load of a published job.
	SaveLoad(jid string, load proto.Load) error

	// GetLoad returns the load of a job with its target minions, or an empty
	// load if the job is unknown.
	GetLoad(jid string) (proto.Load, error)

	// GetJid returns the return of every minion that returned for a job,
	// keyed on minion id. Unknown jobs return an empty map.
	GetJid(jid string) (map[string]proto.MinionReturn, error)

	// GetJids returns a summary of every job in the store, keyed on jid.
	GetJids() (map[string]proto.JobSummary, error)
}

// Format returns the display summary of a job load.
func Format(j string, load proto.Load) proto.JobSummary {
	s := proto.JobSummary{
		Function:   load.Fun,
		Arguments:  load.Arg,
		Target:     load.Tgt,
		TargetType: load.TgtType,
		User:       load.User,
		StartTime:  jid.StartTime(j),
		Metadata:   load.Metadata,
	}
	if s.Function == "" {
		s.Function = proto.DEFAULT_FUNCTION
	}
	if s.Arguments == nil {
		s.Arguments = []interface{}{}
	}
	if s.Target == "" {
		s.Target = proto.DEFAULT_TARGET
	}
	if s.TargetType == "" {
		s.TargetType = proto.DEFAULT_TGT_TYPE
	}
	if s.User == "" {
		s.User = proto.DEFAULT_USER
	}
	return s
}

// ReqLoad returns the load recorded for a return with the "req" jid.
func ReqLoad(ret proto.Return) proto.Load {
	return proto.Load{
		Jid: jid.REQ,
		Fun: ret.Fun,
		Arg: ret.FunArgs,
		Tgt: ret.Id,
	}
}
