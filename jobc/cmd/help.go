// Copyright 2017-2019, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobc/config"
)

type Help struct {
	ctx app.Context
}

func NewHelp(ctx app.Context) *Help {
	return &Help{
		ctx: ctx,
	}
}

func (c *Help) Prepare() error {
	return nil
}

// Run prints help and returns app.ErrHelp on success.
func (c *Help) Run() error {
	if c.ctx.Options.Help || len(c.ctx.Command.Args) == 0 {
		c.Usage()
		return app.ErrHelp
	}

	// jobc help <cmd>
	arg := c.ctx.Command.Args[0]
	factory := c.ctx.Factories.Command
	if factory == nil {
		factory = &DefaultFactory{}
	}
	jobcCmd, err := factory.Make(arg, c.ctx)
	if err != nil {
		if c.ctx.Options.Debug {
			app.Debug("Factories.Command.Make: %s", err)
		}
		return fmt.Errorf("'%s' is not a valid command. Run 'jobc help' to list commands.", arg)
	}
	fmt.Fprint(c.ctx.Out, jobcCmd.Help())
	return app.ErrHelp
}

func (c *Help) Cmd() string {
	return "help"
}

func (c *Help) Help() string {
	return "Run 'jobc help' for usage, or 'jobc help <command>' for command help.\n"
}

func (c *Help) Usage() {
	fmt.Fprintf(c.ctx.Out, "Usage: jobc [flags] command [args]\n\n"+
		"Flags:\n"+
		"  --addr     Job cache master address (default: %s)\n"+
		"  --config   Config files (default: %s)\n"+
		"  --debug    Print debug to stderr\n"+
		"  --help     Print help\n"+
		"  --output   Output format for job data: json or yaml (default: json)\n"+
		"  --ping     Ping the master and exit\n"+
		"  --source   External job cache to read (default: master config)\n"+
		"  --timeout  API timeout, milliseconds (default: %d ms)\n"+
		"  --version  Print version\n"+
		"Commands:\n"+
		"  active                            Show jobs that minions are running now\n"+
		"  clean                             Remove expired and corrupt jobs now\n"+
		"  get-load      <jid>               Print job load\n"+
		"  help          <cmd>               Print command help\n"+
		"  list-job      <jid>               Print job summary, minions, and results\n"+
		"  list-jobs     [filter...]         List cached jobs (function=, target=, meta.<key>=)\n"+
		"  lookup-jid    <jid>               Print minion returns\n"+
		"  print-job     <jid>               Print job keyed on jid\n"+
		"  queue-delete  <queue> <item...>   Remove items from a queue\n"+
		"  queue-insert  <queue> <item...>   Add items to a queue\n"+
		"  queue-length  <queue>             Print number of items in a queue\n"+
		"  queue-list    [queue]             List queues, or items in a queue\n"+
		"  queue-pop     <queue> [n|all]     Pop items from a queue\n"+
		"  queue-process <queue> [n|all]     Pop items and fire the queue process event\n"+
		"  version                           Print jobc and master version\n",
		config.DEFAULT_ADDR, config.DEFAULT_CONFIG_FILES, config.DEFAULT_TIMEOUT)
}
