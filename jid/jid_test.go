// Copyright 2017-2019, Square, Inc.

package jid_test

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-test/deep"

	"github.com/square/jobcache/errors"
	"github.com/square/jobcache/jid"
)

func TestFromTime(t *testing.T) {
	ts := time.Date(2013, time.September, 16, 12, 55, 24, 463507000, time.Local)
	got := jid.FromTime(ts)
	expect := "20130916125524463507"
	if got != expect {
		t.Errorf("got %s, expected %s", got, expect)
	}
}

func TestToTimeRoundTrip(t *testing.T) {
	ts := time.Date(2019, time.January, 2, 3, 4, 5, 6000, time.Local)
	got, err := jid.ToTime(jid.FromTime(ts))
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if !got.Equal(ts) {
		t.Errorf("got %s, expected %s", got, ts)
	}
	if got.Truncate(time.Minute) != ts.Truncate(time.Minute) {
		t.Errorf("minute precision lost: %s != %s", got, ts)
	}
}

func TestToTimeSecondsOnly(t *testing.T) {
	got, err := jid.ToTime("20190102030405")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	expect := time.Date(2019, time.January, 2, 3, 4, 5, 0, time.Local)
	if !got.Equal(expect) {
		t.Errorf("got %s, expected %s", got, expect)
	}
}

func TestToTimeMalformed(t *testing.T) {
	bad := []string{"", "req", "2019010203", "2019010203040x", "abcdefghijklmnopqrst", "20191302030405"}
	for _, j := range bad {
		_, err := jid.ToTime(j)
		if err == nil {
			t.Errorf("%s: no error, expected errors.MalformedJid", j)
			continue
		}
		if _, ok := err.(errors.MalformedJid); !ok {
			t.Errorf("%s: err = %T, expected errors.MalformedJid", j, err)
		}
	}
	if jid.IsValid("req") {
		t.Error("IsValid(req) = true, expected false")
	}
}

func TestStartTime(t *testing.T) {
	got := jid.StartTime("20130916125524463507")
	expect := "2013, Sep 16 12:55:24.463507"
	if got != expect {
		t.Errorf("got '%s', expected '%s'", got, expect)
	}
	got = jid.StartTime("20130906125524463507")
	expect = "2013, Sep 06 12:55:24.463507"
	if got != expect {
		t.Errorf("got '%s', expected '%s'", got, expect)
	}
	if got := jid.StartTime("20130916125524"); got != "" {
		t.Errorf("got '%s', expected empty string for short jid", got)
	}
}

func TestGeneratorMonotonic(t *testing.T) {
	// Clock that never advances
	fixed := time.Date(2019, time.January, 2, 3, 4, 5, 0, time.Local)
	g := jid.NewGeneratorWithClock(func() time.Time { return fixed })
	got := []string{g.Next(), g.Next(), g.Next()}
	expect := []string{"20190102030405000000", "20190102030405000001", "20190102030405000002"}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
}

func TestGeneratorConcurrentUnique(t *testing.T) {
	g := jid.NewGenerator()
	n := 200
	jids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			jids[i] = g.Next()
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, j := range jids {
		if seen[j] {
			t.Errorf("duplicate jid %s", j)
		}
		seen[j] = true
	}

	// Lexicographic order equals chronological order
	sort.Strings(jids)
	var prev time.Time
	for _, j := range jids {
		ts, err := jid.ToTime(j)
		if err != nil {
			t.Fatalf("err = %s, expected nil", err)
		}
		if ts.Before(prev) {
			t.Errorf("jid %s sorts after an earlier time", j)
		}
		prev = ts
	}
}
