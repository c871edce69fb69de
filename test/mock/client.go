// Copyright 2017-2019, Square, Inc.

package mock

import (
	"errors"

	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/proto"
)

var (
	ErrClient = errors.New("forced error in master client")
)

type Client struct {
	PrepJidFunc      func(bool) (string, error)
	SaveLoadFunc     func(string, proto.Load) error
	ReturnFunc       func(proto.Return) (proto.ReturnResult, error)
	ListJobsFunc     func(string, jobs.Filter) (map[string]proto.JobSummary, error)
	ListJobFunc      func(string, string) (proto.JobDetail, error)
	LookupJidFunc    func(string, string) (map[string]interface{}, error)
	GetLoadFunc      func(string, string) (proto.Load, error)
	ActiveFunc       func() (map[string]proto.ActiveJob, error)
	CleanFunc        func() (int, error)
	QueueListFunc    func() ([]string, error)
	QueueItemsFunc   func(string) ([]string, error)
	QueueLengthFunc  func(string) (int, error)
	QueueInsertFunc  func(string, []string) (proto.QueueInsert, error)
	QueueDeleteFunc  func(string, []string) error
	QueuePopFunc     func(string, string) ([]string, error)
	QueueProcessFunc func(string, string) ([]string, error)
	VersionFunc      func() (string, error)
}

func (c *Client) PrepJid(nocache bool) (string, error) {
	if c.PrepJidFunc != nil {
		return c.PrepJidFunc(nocache)
	}
	return "", nil
}

func (c *Client) SaveLoad(jid string, load proto.Load) error {
	if c.SaveLoadFunc != nil {
		return c.SaveLoadFunc(jid, load)
	}
	return nil
}

func (c *Client) Return(ret proto.Return) (proto.ReturnResult, error) {
	if c.ReturnFunc != nil {
		return c.ReturnFunc(ret)
	}
	return proto.ReturnResult{}, nil
}

func (c *Client) ListJobs(source string, f jobs.Filter) (map[string]proto.JobSummary, error) {
	if c.ListJobsFunc != nil {
		return c.ListJobsFunc(source, f)
	}
	return map[string]proto.JobSummary{}, nil
}

func (c *Client) ListJob(jid, source string) (proto.JobDetail, error) {
	if c.ListJobFunc != nil {
		return c.ListJobFunc(jid, source)
	}
	return proto.JobDetail{}, nil
}

func (c *Client) LookupJid(jid, source string) (map[string]interface{}, error) {
	if c.LookupJidFunc != nil {
		return c.LookupJidFunc(jid, source)
	}
	return map[string]interface{}{}, nil
}

func (c *Client) GetLoad(jid, source string) (proto.Load, error) {
	if c.GetLoadFunc != nil {
		return c.GetLoadFunc(jid, source)
	}
	return proto.Load{}, nil
}

func (c *Client) Active() (map[string]proto.ActiveJob, error) {
	if c.ActiveFunc != nil {
		return c.ActiveFunc()
	}
	return map[string]proto.ActiveJob{}, nil
}

func (c *Client) Clean() (int, error) {
	if c.CleanFunc != nil {
		return c.CleanFunc()
	}
	return 0, nil
}

func (c *Client) QueueList() ([]string, error) {
	if c.QueueListFunc != nil {
		return c.QueueListFunc()
	}
	return []string{}, nil
}

func (c *Client) QueueItems(queue string) ([]string, error) {
	if c.QueueItemsFunc != nil {
		return c.QueueItemsFunc(queue)
	}
	return []string{}, nil
}

func (c *Client) QueueLength(queue string) (int, error) {
	if c.QueueLengthFunc != nil {
		return c.QueueLengthFunc(queue)
	}
	return 0, nil
}

func (c *Client) QueueInsert(queue string, items []string) (proto.QueueInsert, error) {
	if c.QueueInsertFunc != nil {
		return c.QueueInsertFunc(queue, items)
	}
	return proto.QueueInsert{Queue: queue, Inserted: items}, nil
}

func (c *Client) QueueDelete(queue string, items []string) error {
	if c.QueueDeleteFunc != nil {
		return c.QueueDeleteFunc(queue, items)
	}
	return nil
}

func (c *Client) QueuePop(queue, n string) ([]string, error) {
	if c.QueuePopFunc != nil {
		return c.QueuePopFunc(queue, n)
	}
	return []string{}, nil
}

func (c *Client) QueueProcess(queue, n string) ([]string, error) {
	if c.QueueProcessFunc != nil {
		return c.QueueProcessFunc(queue, n)
	}
	return []string{}, nil
}

func (c *Client) Version() (string, error) {
	if c.VersionFunc != nil {
		return c.VersionFunc()
	}
	return "", nil
}
