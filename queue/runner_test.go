// Copyright 2017-2019, Square, Inc.

package queue_test

import (
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobcache/queue"
	"github.com/square/jobcache/test/mock"
)

func TestProcess(t *testing.T) {
	s := newStore(t)
	s.Insert("deploy", "web1", "web2", "web3")

	var gotTag string
	var gotData map[string]interface{}
	fired := 0
	pub := &mock.Publisher{
		FireFunc: func(tag string, data map[string]interface{}) error {
			fired++
			gotTag = tag
			gotData = data
			return nil
		},
	}
	r := queue.NewRunner(s, pub)

	items, err := r.Process("deploy", 2)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(items, []string{"web1", "web2"}); diff != nil {
		t.Error(diff)
	}
	if gotTag != "jobcache/queue/deploy/process" {
		t.Errorf("tag = %s, expected jobcache/queue/deploy/process", gotTag)
	}
	expect := map[string]interface{}{
		"queue": "deploy",
		"items": []string{"web1", "web2"},
	}
	if diff := deep.Equal(gotData, expect); diff != nil {
		t.Error(diff)
	}

	// Empty queue: no event
	r.Process("deploy", queue.ALL)
	items, err = r.Process("deploy", queue.ALL)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if len(items) != 0 {
		t.Errorf("got %v, expected no items", items)
	}
	if fired != 2 {
		t.Errorf("%d events fired, expected 2", fired)
	}
}

func TestProcessEventError(t *testing.T) {
	s := newStore(t)
	s.Insert("deploy", "web1")
	pub := &mock.Publisher{
		FireFunc: func(tag string, data map[string]interface{}) error {
			return mock.ErrPublisher
		},
	}
	items, err := queue.NewRunner(s, pub).Process("deploy", 1)
	if err == nil {
		t.Error("no error, expected event error")
	}
	if diff := deep.Equal(items, []string{"web1"}); diff != nil {
		t.Error(diff)
	}
}
