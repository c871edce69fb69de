// Copyright 2017-2019, Square, Inc.

package main

import (
	"fmt"
	"os"

	"github.com/square/jobcache/jobc"
	"github.com/square/jobcache/jobc/app"
)

func main() {
	defaultContext := app.Context{
		In:        os.Stdin,
		Out:       os.Stdout,
		Hooks:     app.Hooks{},
		Factories: app.Factories{},
	}
	if err := jobc.Run(defaultContext); err != nil {
		if err != app.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
}
