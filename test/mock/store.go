// Copyright 2017-2019, Square, Inc.

package mock

import (
	"errors"

	"github.com/square/jobcache/proto"
)

var (
	ErrStore = errors.New("forced error in job cache store")
)

type Store struct {
	ReturnFunc   func(proto.Return) (byte, error)
	SaveLoadFunc func(string, proto.Load) error
	GetLoadFunc  func(string) (proto.Load, error)
	GetJidFunc   func(string) (map[string]proto.MinionReturn, error)
	GetJidsFunc  func() (map[string]proto.JobSummary, error)
}

func (s *Store) Return(ret proto.Return) (byte, error) {
	if s.ReturnFunc != nil {
		return s.ReturnFunc(ret)
	}
	return proto.RETURN_STORED, nil
}

func (s *Store) SaveLoad(jid string, load proto.Load) error {
	if s.SaveLoadFunc != nil {
		return s.SaveLoadFunc(jid, load)
	}
	return nil
}

func (s *Store) GetLoad(jid string) (proto.Load, error) {
	if s.GetLoadFunc != nil {
		return s.GetLoadFunc(jid)
	}
	return proto.Load{}, nil
}

func (s *Store) GetJid(jid string) (map[string]proto.MinionReturn, error) {
	if s.GetJidFunc != nil {
		return s.GetJidFunc(jid)
	}
	return map[string]proto.MinionReturn{}, nil
}

func (s *Store) GetJids() (map[string]proto.JobSummary, error) {
	if s.GetJidsFunc != nil {
		return s.GetJidsFunc()
	}
	return map[string]proto.JobSummary{}, nil
}
