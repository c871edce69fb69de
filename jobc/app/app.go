// Copyright 2017-2019, Square, Inc.

// Package app provides app-wide data structs and functions.
package app

import (
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/square/jobcache/jobc/config"
	"github.com/square/jobcache/master"
)

var (
	ErrHelp = errors.New("print help")
)

// Context represents how to run jobc. A context is passed to jobc.Run().
// A default context is created in main.go. Wrapper code can integrate with
// jobc by passing a custom context to jobc.Run(). Integration is done
// primarily with hooks and factories.
type Context struct {
	// Set in main.go or by wrapper
	In        io.Reader // where to read user input (default: stdin)
	Out       io.Writer // where to print output (default: stdout)
	Hooks     Hooks     // for integration with other code
	Factories Factories // for integration with other code

	// Set automatically in jobc.Run()
	Options      config.Options // command line options (--addr, etc.)
	Command      config.Command // command and args, if any ("list-job <jid>", etc.)
	MasterClient master.Client  // job cache master client
	Nargs        int            // number of positional args including command
}

type Command interface {
	Prepare() error
	Run() error
	Cmd() string
	Help() string
}

type CommandFactory interface {
	Make(string, Context) (Command, error)
}

type HTTPClientFactory interface {
	Make(Context) (*http.Client, error)
}

type Factories struct {
	HTTPClient HTTPClientFactory
	Command    CommandFactory
}

type Hooks struct {
	AfterParseOptions func(*config.Options)
	CommandRunResult  func(interface{}, error)
}

func init() {
	log.SetPrefix("DEBUG ")
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
}

func Debug(fmt string, v ...interface{}) {
	log.Printf(fmt, v...)
}
