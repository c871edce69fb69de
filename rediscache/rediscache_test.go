// Copyright 2017-2019, Square, Inc.

package rediscache_test

import (
	"encoding/json"
	"log"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	"github.com/go-test/deep"

	"github.com/square/jobcache/config"
	"github.com/square/jobcache/proto"
	"github.com/square/jobcache/rediscache"
	"github.com/square/jobcache/test/mock"
)

const testJid = "20190102030405000006"

func initRedis(keepJobs int) (*miniredis.Miniredis, *rediscache.Store) {
	redis, err := miniredis.Run()
	if err != nil {
		log.Fatal(err)
	}
	pool := rediscache.NewPool(config.RedisDb{
		Network:     "tcp",
		Address:     redis.Addr(),
		IdleTimeout: 10,
		MaxIdle:     1,
	})
	resolver := &mock.TargetResolver{
		CheckMinionsFunc: func(tgt, tgtType string) ([]string, error) {
			return []string{"web1", "web2"}, nil
		},
	}
	return redis, rediscache.NewStore(pool, "test", keepJobs, resolver, nil)
}

func TestSaveLoad(t *testing.T) {
	redis, s := initRedis(24)
	defer redis.Close()

	if err := s.Ping(); err != nil {
		t.Fatal(err)
	}

	load := proto.Load{Fun: "test.ping", Tgt: "web*", User: "alice"}
	if err := s.SaveLoad(testJid, load); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	// Saving again doesn't overwrite
	if err := s.SaveLoad(testJid, proto.Load{Fun: "cmd.run"}); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}

	got, err := s.GetLoad(testJid)
	if err != nil {
		t.Fatal(err)
	}
	expect := proto.Load{Jid: testJid, Fun: "test.ping", Tgt: "web*", User: "alice", Minions: []string{"web1", "web2"}}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}

	if ttl := redis.TTL("test:load:" + testJid); ttl != 24*time.Hour {
		t.Errorf("ttl = %s, expected 24h", ttl)
	}
	if ok, _ := redis.IsMember("test:jids", testJid); !ok {
		t.Errorf("jid not in jid set")
	}

	jids, err := s.GetJids()
	if err != nil {
		t.Fatal(err)
	}
	expectJids := map[string]proto.JobSummary{
		testJid: {
			Function:   "test.ping",
			Arguments:  []interface{}{},
			Target:     "web*",
			TargetType: "glob",
			User:       "alice",
			StartTime:  "2019, Jan 02 03:04:05.000006",
		},
	}
	if diff := deep.Equal(jids, expectJids); diff != nil {
		t.Error(diff)
	}
}

func TestGetLoadMissing(t *testing.T) {
	redis, s := initRedis(24)
	defer redis.Close()

	load, err := s.GetLoad(testJid)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if !load.Empty() {
		t.Errorf("load = %#v, expected empty", load)
	}
	ret, err := s.GetJid(testJid)
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if len(ret) != 0 {
		t.Errorf("got %d returns, expected 0", len(ret))
	}
}

func TestReturn(t *testing.T) {
	redis, s := initRedis(24)
	defer redis.Close()

	outcome, err := s.Return(proto.Return{Jid: testJid, Id: "web1", Return: "pong", Out: "txt"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != proto.RETURN_STORED {
		t.Errorf("outcome = %s, expected STORED", proto.ReturnName[outcome])
	}

	outcome, err = s.Return(proto.Return{Jid: testJid, Id: "web1", Return: "again"})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != proto.RETURN_DUPLICATE {
		t.Errorf("outcome = %s, expected DUPLICATE", proto.ReturnName[outcome])
	}

	ret, err := s.GetJid(testJid)
	if err != nil {
		t.Fatal(err)
	}
	expect := map[string]proto.MinionReturn{
		"web1": {Return: "pong", Out: "txt"},
	}
	if diff := deep.Equal(ret, expect); diff != nil {
		t.Error(diff)
	}
}

func TestReturnReq(t *testing.T) {
	redis, s := initRedis(0)
	defer redis.Close()

	_, err := s.Return(proto.Return{Jid: "req", Id: "web1", Fun: "state.apply", FunArgs: []interface{}{"nginx"}, Return: true})
	if err != nil {
		t.Fatal(err)
	}
	load, err := s.GetLoad("req")
	if err != nil {
		t.Fatal(err)
	}
	expect := proto.Load{Jid: "req", Fun: "state.apply", Arg: []interface{}{"nginx"}, Tgt: "web1", Minions: []string{"web1", "web2"}}
	if diff := deep.Equal(load, expect); diff != nil {
		t.Error(diff)
	}
	// keep_jobs 0: nothing expires
	if ttl := redis.TTL("test:load:req"); ttl != 0 {
		t.Errorf("ttl = %s, expected 0", ttl)
	}
}

func TestReturnReqNoCache(t *testing.T) {
	redis, s := initRedis(0)
	defer redis.Close()

	outcome, err := s.Return(proto.Return{Jid: "req", Id: "web1", Fun: "test.ping", Return: true, NoCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != proto.RETURN_STORED {
		t.Errorf("outcome = %s, expected STORED", proto.ReturnName[outcome])
	}
	if redis.Exists("test:load:req") {
		t.Errorf("load saved for nocache req return")
	}
	ret, err := s.GetJid("req")
	if err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(ret, map[string]proto.MinionReturn{"web1": {Return: true}}); diff != nil {
		t.Error(diff)
	}
}

func TestReturnNoCacheLoad(t *testing.T) {
	redis, s := initRedis(24)
	defer redis.Close()

	if err := s.SaveLoad(testJid, proto.Load{Fun: "test.ping", NoCache: true}); err != nil {
		t.Fatal(err)
	}
	if !redis.Exists("test:nocache:" + testJid) {
		t.Errorf("nocache key not set")
	}

	outcome, err := s.Return(proto.Return{Jid: testJid, Id: "web1", Return: true})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != proto.RETURN_NOCACHE {
		t.Errorf("outcome = %s, expected NOCACHE", proto.ReturnName[outcome])
	}
	if redis.Exists("test:ret:" + testJid) {
		t.Errorf("return stored for nocache job")
	}

	// Other jobs are not affected
	outcome, err = s.Return(proto.Return{Jid: "20190102030405000007", Id: "web1", Return: true})
	if err != nil {
		t.Fatal(err)
	}
	if outcome != proto.RETURN_STORED {
		t.Errorf("outcome = %s, expected STORED", proto.ReturnName[outcome])
	}
}

func TestReturnLargeInt(t *testing.T) {
	redis, s := initRedis(0)
	defer redis.Close()

	_, err := s.Return(proto.Return{Jid: testJid, Id: "web1", Return: map[string]interface{}{"n": int64(9007199254740993)}})
	if err != nil {
		t.Fatal(err)
	}
	ret, err := s.GetJid(testJid)
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
	redis, s := initRedis(1)
	defer redis.Close()

	s.SaveLoad(testJid, proto.Load{Fun: "test.ping"})
	s.Return(proto.Return{Jid: testJid, Id: "web1", Return: true})

	removed, err := s.CleanOldJobs()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("removed %d, expected 0", removed)
	}

	redis.FastForward(2 * time.Hour)

	jids, err := s.GetJids()
	if err != nil {
		t.Fatal(err)
	}
	if len(jids) != 0 {
		t.Errorf("got %d jids, expected 0", len(jids))
	}

	removed, err = s.CleanOldJobs()
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("removed %d, expected 1", removed)
	}
	if ok, _ := redis.IsMember("test:jids", testJid); ok {
		t.Errorf("jid still in jid set")
	}
}
