// Copyright 2017-2019, Square, Inc.

package cmd_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobc/cmd"
	"github.com/square/jobcache/jobc/config"
)

func TestHelpUsage(t *testing.T) {
	output := &bytes.Buffer{}
	ctx := app.Context{
		Out:     output,
		Command: config.Command{Cmd: "help"},
	}
	if err := cmd.NewHelp(ctx).Run(); err != app.ErrHelp {
		t.Errorf("got err %v, expected ErrHelp", err)
	}
	if !strings.HasPrefix(output.String(), "Usage: jobc") {
		t.Errorf("output does not start with usage: %s", output.String())
	}
}

func TestHelpCommand(t *testing.T) {
	output := &bytes.Buffer{}
	ctx := app.Context{
		Out: output,
		Command: config.Command{
			Cmd:  "help",
			Args: []string{"queue-pop"},
		},
	}
	if err := cmd.NewHelp(ctx).Run(); err != app.ErrHelp {
		t.Errorf("got err %v, expected ErrHelp", err)
	}
	if !strings.HasPrefix(output.String(), "'jobc queue-pop <queue> [n|all]'") {
		t.Errorf("wrong help: %s", output.String())
	}

	ctx.Command.Args = []string{"nope"}
	err := cmd.NewHelp(ctx).Run()
	if err == nil || err == app.ErrHelp {
		t.Errorf("got err %v, expected invalid command error", err)
	}
}
