// Copyright 2017-2019, Square, Inc.

package jobs

import (
	"fmt"
	"path"

	"github.com/square/jobcache/proto"
)

// Filter selects jobs from a job list. Zero-value fields match everything.
type Filter struct {
	// Metadata keys and values that must all be present in the job metadata.
	Metadata map[string]string

	// Function globs, e.g. "test.*". A job matches if any glob matches.
	Functions []string

	// Target globs. A job matches if any glob matches.
	Targets []string
}

func (f Filter) Empty() bool {
	return len(f.Metadata) == 0 && len(f.Functions) == 0 && len(f.Targets) == 0
}

// Match returns true if the job summary passes the filter.
func (f Filter) Match(s proto.JobSummary) bool {
	for k, v := range f.Metadata {
		got, ok := s.Metadata[k]
		if !ok || fmt.Sprintf("%v", got) != v {
			return false
		}
	}
	if len(f.Functions) > 0 && !matchAny(f.Functions, s.Function) {
		return false
	}
	if len(f.Targets) > 0 && !matchAny(f.Targets, s.Target) {
		return false
	}
	return true
}

// Apply returns the jobs that pass the filter.
func (f Filter) Apply(jobs map[string]proto.JobSummary) map[string]proto.JobSummary {
	if f.Empty() {
		return jobs
	}
	matched := map[string]proto.JobSummary{}
	for j, s := range jobs {
		if f.Match(s) {
			matched[j] = s
		}
	}
	return matched
}

func matchAny(globs []string, s string) bool {
	for _, g := range globs {
		if ok, err := path.Match(g, s); err == nil && ok {
			return true
		}
	}
	return false
}
