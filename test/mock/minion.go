// Copyright 2017-2019, Square, Inc.

package mock

import (
	"context"
	"errors"

	"github.com/square/jobcache/proto"
)

var (
	ErrTargetResolver = errors.New("forced error in target resolver")
	ErrRunningLister  = errors.New("forced error in running lister")
)

type TargetResolver struct {
	CheckMinionsFunc func(tgt, tgtType string) ([]string, error)
}

func (r *TargetResolver) CheckMinions(tgt, tgtType string) ([]string, error) {
	if r.CheckMinionsFunc != nil {
		return r.CheckMinionsFunc(tgt, tgtType)
	}
	return []string{}, nil
}

type RunningLister struct {
	RunningFunc func(ctx context.Context) (map[string][]proto.RunningJob, error)
}

func (l *RunningLister) Running(ctx context.Context) (map[string][]proto.RunningJob, error) {
	if l.RunningFunc != nil {
		return l.RunningFunc(ctx)
	}
	return map[string][]proto.RunningJob{}, nil
}
