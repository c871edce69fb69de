// Copyright 2017-2019, Square, Inc.

// Package jid generates and parses job ids. A jid is the local wall-clock time
// formatted as YYYYMMDDHHMMSSffffff (20 digits, microseconds). Lexicographic
// order of jids is chronological order.
package jid

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/square/jobcache/errors"
)

const (
	// REQ is the sentinel jid for returns of jobs the master did not publish.
	REQ = "req"

	// LEN is the length of a jid with microseconds.
	LEN = 20

	secondsFormat = "20060102150405"
	displayFormat = "2006, Jan 02 15:04:05"
)

// New returns a jid for the current time. Two calls in the same microsecond
// return the same jid; use a Generator when uniqueness matters.
func New() string {
	return FromTime(time.Now())
}

// FromTime formats t as a jid.
func FromTime(t time.Time) string {
	return fmt.Sprintf("%s%06d", t.Format(secondsFormat), t.Nanosecond()/1000)
}

// ToTime parses a jid into the local time it was generated at. It returns an
// errors.MalformedJid if the jid is not all digits or is shorter than 14
// characters. Microseconds are parsed when present.
func ToTime(jid string) (time.Time, error) {
	if len(jid) < len(secondsFormat) || !numeric(jid) {
		return time.Time{}, errors.MalformedJid{Jid: jid}
	}
	t, err := time.ParseInLocation(secondsFormat, jid[:len(secondsFormat)], time.Local)
	if err != nil {
		return time.Time{}, errors.MalformedJid{Jid: jid}
	}
	if len(jid) >= LEN {
		usec, _ := strconv.Atoi(jid[len(secondsFormat):LEN]) // numeric checked above
		t = t.Add(time.Duration(usec) * time.Microsecond)
	}
	return t, nil
}

// IsValid returns true if jid can be parsed by ToTime.
func IsValid(jid string) bool {
	_, err := ToTime(jid)
	return err == nil
}

// StartTime returns the display form of a jid, like "2013, Sep 16 12:55:24.463507".
// It returns an empty string if the jid is not a full 20-digit jid.
func StartTime(jid string) string {
	if len(jid) != LEN {
		return ""
	}
	t, err := ToTime(jid)
	if err != nil {
		return ""
	}
	return t.Format(displayFormat) + "." + jid[len(secondsFormat):]
}

func numeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------

// A Generator makes strictly increasing jids. If the clock has not advanced
// since the last jid, or went backwards, the last jid is bumped by one
// microsecond instead.
type Generator struct {
	now  func() time.Time
	last time.Time
	*sync.Mutex
}

// NewGenerator returns a Generator that reads time.Now.
func NewGenerator() *Generator {
	return NewGeneratorWithClock(time.Now)
}

// NewGeneratorWithClock returns a Generator that reads the given clock.
func NewGeneratorWithClock(now func() time.Time) *Generator {
	return &Generator{
		now:   now,
		Mutex: &sync.Mutex{},
	}
}

// Next returns the next jid.
func (g *Generator) Next() string {
	g.Lock()
	defer g.Unlock()
	t := g.now().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	return FromTime(t)
}
