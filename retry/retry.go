// Copyright 2017-2019, Square, Inc.

// Package retry retries functions that fail transiently.
package retry

import (
	"time"
)

type TryFunc func() error

// LogFunc is called with the error of every failed try except the last.
type LogFunc func(try int, err error)

// Do calls tryFunc up to tries times, sleeping between tries, until it
// returns nil. It returns the error of the last try.
// https://upgear.io/blog/simple-golang-retry-function/
func Do(tries int, sleep time.Duration, tryFunc TryFunc, logFunc LogFunc) error {
	var err error
	for try := 1; ; try++ {
		if err = tryFunc(); err == nil {
			return nil
		}
		if try >= tries {
			return err
		}
		if logFunc != nil {
			logFunc(try, err)
		}
		time.Sleep(sleep)
	}
}
