// Copyright 2017-2019, Square, Inc.

package jobs_test

import (
	"testing"

	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/proto"
)

func TestFilterMatch(t *testing.T) {
	s := proto.JobSummary{
		Function: "state.apply",
		Target:   "web*",
		Metadata: map[string]interface{}{"ticket": "OPS-1", "retry": 2},
	}
	tests := []struct {
		f      jobs.Filter
		expect bool
	}{
		{jobs.Filter{}, true},
		{jobs.Filter{Functions: []string{"state.*"}}, true},
		{jobs.Filter{Functions: []string{"test.*", "state.apply"}}, true},
		{jobs.Filter{Functions: []string{"test.*"}}, false},
		{jobs.Filter{Targets: []string{"web\\*"}}, true},
		{jobs.Filter{Targets: []string{"db*"}}, false},
		{jobs.Filter{Metadata: map[string]string{"ticket": "OPS-1"}}, true},
		{jobs.Filter{Metadata: map[string]string{"retry": "2"}}, true},
		{jobs.Filter{Metadata: map[string]string{"ticket": "OPS-2"}}, false},
		{jobs.Filter{Metadata: map[string]string{"owner": "alice"}}, false},
		{jobs.Filter{Functions: []string{"state.*"}, Targets: []string{"db*"}}, false},
	}
	for i, tt := range tests {
		if got := tt.f.Match(s); got != tt.expect {
			t.Errorf("test %d: Match = %t, expected %t", i, got, tt.expect)
		}
	}
}
