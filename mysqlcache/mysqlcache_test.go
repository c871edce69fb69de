// Copyright 2017-2019, Square, Inc.

package mysqlcache_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/jobcache/db"
	"github.com/square/jobcache/jid"
	"github.com/square/jobcache/mysqlcache"
	"github.com/square/jobcache/proto"
	"github.com/square/jobcache/test"
	"github.com/square/jobcache/test/mock"
)

// setup returns a Store on an empty test database. Tests using it are skipped
// unless JOBCACHE_TEST_MYSQL_DSN is set.
func setup(t *testing.T, resolver *mock.TargetResolver) *mysqlcache.Store {
	if test.MySQLDSN == "" {
		t.Skip("JOBCACHE_TEST_MYSQL_DSN not set")
	}
	dbc := db.NewConnectionPool(2, 2, test.MySQLDSN, nil)
	t.Cleanup(dbc.Close)
	var s *mysqlcache.Store
	if resolver != nil {
		s = mysqlcache.NewStore(dbc, resolver, nil)
	} else {
		s = mysqlcache.NewStore(dbc, nil, nil)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatal(err)
	}
	if err := s.Truncate(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestConnectError(t *testing.T) {
	s := mysqlcache.NewStore(&mock.Connector{}, nil, nil)
	if _, err := s.Return(proto.Return{Jid: "20190102030405000006", Id: "web1"}); err != mock.ErrConnector {
		t.Errorf("err = %v, expected %s", err, mock.ErrConnector)
	}
	if _, err := s.GetJids(); err != mock.ErrConnector {
		t.Errorf("err = %v, expected %s", err, mock.ErrConnector)
	}
}

func TestNormalJob(t *testing.T) {
	resolver := &mock.TargetResolver{
		CheckMinionsFunc: func(tgt, tgtType string) ([]string, error) {
			return []string{"web1", "web2"}, nil
		},
	}
	s := setup(t, resolver)
	j := "20130916125524463507"

	if err := s.SaveLoad(j, proto.Load{Fun: "test.ping", Tgt: "web*"}); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	// Second save is ignored
	if err := s.SaveLoad(j, proto.Load{Fun: "other"}); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}

	outcome, err := s.Return(proto.Return{Jid: j, Id: "web1", Fun: "test.ping", Return: true, Success: true})
	if err != nil || outcome != proto.RETURN_STORED {
		t.Fatalf("got %s, %v; expected STORED, nil", proto.ReturnName[outcome], err)
	}
	outcome, err = s.Return(proto.Return{Jid: j, Id: "web1", Fun: "test.ping", Return: false})
	if err != nil || outcome != proto.RETURN_DUPLICATE {
		t.Fatalf("got %s, %v; expected DUPLICATE, nil", proto.ReturnName[outcome], err)
	}

	load, err := s.GetLoad(j)
	if err != nil {
		t.Fatal(err)
	}
	expectLoad := proto.Load{Jid: j, Fun: "test.ping", Tgt: "web*", Minions: []string{"web1", "web2"}}
	if diff := deep.Equal(load, expectLoad); diff != nil {
		t.Error(diff)
	}

	ret, err := s.GetJid(j)
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(ret, map[string]proto.MinionReturn{"web1": {Return: true}}); diff != nil {
		t.Error(diff)
	}

	jids, err := s.GetJids()
	if err != nil {
		t.Fatal(err)
	}
	if jids[j].Function != "test.ping" || jids[j].StartTime != "2013, Sep 16 12:55:24.463507" {
		t.Errorf("summary = %#v", jids[j])
	}
}

func TestNoCacheJob(t *testing.T) {
	s := setup(t, nil)
	j := "20130916125524463508"

	if err := s.SaveLoad(j, proto.Load{Fun: "test.ping", NoCache: true}); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	outcome, err := s.Return(proto.Return{Jid: j, Id: "web1", Fun: "test.ping", Return: true})
	if err != nil || outcome != proto.RETURN_NOCACHE {
		t.Fatalf("got %s, %v; expected NOCACHE, nil", proto.ReturnName[outcome], err)
	}
	ret, err := s.GetJid(j)
	if err != nil {
		t.Fatal(err)
	}
	if len(ret) != 0 {
		t.Errorf("got %d returns, expected 0", len(ret))
	}
}

func TestLargeIntReturn(t *testing.T) {
	s := setup(t, nil)
	j := "20130916125524463509"

	outcome, err := s.Return(proto.Return{Jid: j, Id: "web1", Return: map[string]interface{}{"n": int64(9007199254740993)}})
	if err != nil || outcome != proto.RETURN_STORED {
		t.Fatalf("got %s, %v; expected STORED, nil", proto.ReturnName[outcome], err)
	}
	ret, err := s.GetJid(j)
	if err != nil {
		t.Fatal(err)
	}
	expect := map[string]proto.MinionReturn{
		"web1": {Return: map[string]interface{}{"n": json.Number("9007199254740993")}},
	}
	if diff := deep.Equal(ret, expect); diff != nil {
		t.Error(diff)
	}
}

func TestCleanOldJobs(t *testing.T) {
	s := setup(t, nil)
	now := time.Date(2019, time.March, 10, 12, 0, 0, 0, time.Local)
	old := jid.FromTime(now.Add(-25 * time.Hour))
	fresh := jid.FromTime(now.Add(-1 * time.Hour))
	s.SaveLoad(old, proto.Load{Fun: "test.ping"})
	s.SaveLoad(fresh, proto.Load{Fun: "test.ping"})
	s.Return(proto.Return{Jid: old, Id: "web1"})

	removed, err := s.CleanOldJobs(24, now)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if removed != 1 {
		t.Errorf("removed %d, expected 1", removed)
	}
	if load, _ := s.GetLoad(old); !load.Empty() {
		t.Errorf("old load still exists")
	}
	if ret, _ := s.GetJid(old); len(ret) != 0 {
		t.Errorf("old returns still exist")
	}
	if load, _ := s.GetLoad(fresh); load.Empty() {
		t.Errorf("fresh load removed")
	}
}
