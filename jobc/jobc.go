// Copyright 2017-2019, Square, Inc.

// Package jobc provides a framework for integration with other programs.
package jobc

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobc/cmd"
	"github.com/square/jobcache/jobc/config"
	"github.com/square/jobcache/master"
	"github.com/square/jobcache/util"
)

// Run runs jobc and returns when done. When using a standard jobc bin, Run is
// called by jobc/bin/main.go. When jobc is wrapped by custom code, that code
// imports this pkg then calls jobc.Run() with its custom factories. If a factory
// is not set (nil), then the default factory is used.
//
// Help returns app.ErrHelp. Any other error should be printed and cause a
// non-zero exit.
func Run(ctx app.Context) error {
	// //////////////////////////////////////////////////////////////////////
	// Config and command line
	// //////////////////////////////////////////////////////////////////////

	// Options are set in this order: config -> env var -> cmd line option.
	// So first we must apply config files, then do cmd line parsing which
	// will apply env vars and cmd line options.

	// Parse cmd line to get --config files
	cmdLine := config.ParseCommandLine(config.Options{}, os.Args[1:])

	// --config files override defaults if given
	configFiles := config.DEFAULT_CONFIG_FILES
	if cmdLine.Config != "" {
		configFiles = cmdLine.Config
	}

	// Parse default options from config files
	def := config.ParseConfigFiles(configFiles, cmdLine.Debug)

	// Parse env vars and cmd line options, override default config
	cmdLine = config.ParseCommandLine(def, os.Args[1:])

	// Final options and commands
	var o config.Options = cmdLine.Options
	var c config.Command = cmdLine.Command
	if o.Debug {
		app.Debug("command: %#v\n", c)
		app.Debug("options: %#v\n", o)
	}

	if ctx.Hooks.AfterParseOptions != nil {
		if o.Debug {
			app.Debug("calling hook AfterParseOptions")
		}
		ctx.Hooks.AfterParseOptions(&o)

		// Dump options again to see if hook changed them
		if o.Debug {
			app.Debug("options: %#v\n", o)
		}
	}
	ctx.Options = o
	ctx.Command = c
	if c.Cmd != "" {
		ctx.Nargs = 1 + len(c.Args)
	}

	if ctx.Factories.HTTPClient == nil {
		ctx.Factories.HTTPClient = &httpClientFactory{}
	}
	if ctx.Out == nil {
		ctx.Out = os.Stdout
	}

	// //////////////////////////////////////////////////////////////////////
	// Help and version
	// //////////////////////////////////////////////////////////////////////

	// jobc, jobc --help, jobc help [cmd]
	if o.Help || c.Cmd == "" || c.Cmd == "help" {
		return cmd.NewHelp(ctx).Run()
	}

	// jobc --version is the same as jobc version
	if o.Version {
		c.Cmd = "version"
		ctx.Command = c
	}

	// //////////////////////////////////////////////////////////////////////
	// Master client
	// //////////////////////////////////////////////////////////////////////
	mc, err := makeMasterClient(&ctx)
	if err != nil && (c.Cmd != "version" || o.Ping) {
		return err
	}

	// //////////////////////////////////////////////////////////////////////
	// Ping
	// //////////////////////////////////////////////////////////////////////
	if o.Ping {
		if _, err := mc.Version(); err != nil {
			return fmt.Errorf("Ping failed: %s", err)
		}
		fmt.Fprintf(ctx.Out, "%s OK\n", o.Addr)
		return nil
	}

	// //////////////////////////////////////////////////////////////////////
	// Commands
	// //////////////////////////////////////////////////////////////////////
	cmdFactory := &cmd.DefaultFactory{}

	var run app.Command
	if ctx.Factories.Command != nil {
		run, err = ctx.Factories.Command.Make(c.Cmd, ctx)
		if err != nil {
			switch err {
			case cmd.ErrNotExist:
				if o.Debug {
					app.Debug("user cmd factory cannot make a %s cmd, trying default factory", c.Cmd)
				}
			default:
				return fmt.Errorf("User command factory error: %s", err)
			}
		}
	}
	if run == nil {
		if o.Debug {
			app.Debug("using default factory to make a %s cmd", c.Cmd)
		}
		run, err = cmdFactory.Make(c.Cmd, ctx)
		if err != nil {
			switch err {
			case cmd.ErrNotExist:
				return fmt.Errorf("Unknown command: %s. Run 'jobc help' to list commands.", c.Cmd)
			default:
				return fmt.Errorf("Command factory error: %s", err)
			}
		}
	}

	if err := run.Prepare(); err != nil {
		if o.Debug {
			app.Debug("%s Prepare error: %s", c.Cmd, err)
		}
		return err
	}

	if err := run.Run(); err != nil {
		if o.Debug {
			app.Debug("%s Run error: %s", run.Cmd(), err)
		}
		return err
	}
	return nil
}

func makeMasterClient(ctx *app.Context) (master.Client, error) {
	if ctx.Options.Addr == "" {
		return nil, fmt.Errorf("Job cache master address is not set."+
			" It is best to specify addr in a config file (%s). Or, specify"+
			" --addr on the command line or set the ADDR environment"+
			" variable. Use --ping to test addr when set.", config.DEFAULT_CONFIG_FILES)
	}
	if ctx.Options.Debug {
		app.Debug("addr: %s", ctx.Options.Addr)
	}
	httpClient, err := ctx.Factories.HTTPClient.Make(*ctx)
	if err != nil {
		return nil, fmt.Errorf("Error making http.Client: %s", err)
	}
	ctx.MasterClient = master.NewClient(httpClient, ctx.Options.Addr)
	return ctx.MasterClient, nil
}

type httpClientFactory struct{}

func (f *httpClientFactory) Make(ctx app.Context) (*http.Client, error) {
	timeout := time.Duration(ctx.Options.Timeout) * time.Millisecond
	return util.NewHTTPClient(timeout, ctx.Options.CA, ctx.Options.Cert, ctx.Options.Key)
}
