// Copyright 2017-2019, Square, Inc.

package cmd

import (
	"fmt"

	"github.com/square/jobcache/jobc/app"
	v "github.com/square/jobcache/version"
)

type Version struct {
	ctx app.Context
}

func NewVersion(ctx app.Context) *Version {
	return &Version{
		ctx: ctx,
	}
}

func (c *Version) Prepare() error {
	return nil
}

func (c *Version) Run() error {
	fmt.Fprintln(c.ctx.Out, "jobc "+v.Version())
	if c.ctx.MasterClient == nil {
		return nil
	}
	master, err := c.ctx.MasterClient.Version()
	if err != nil {
		fmt.Fprintf(c.ctx.Out, "master: unknown (%s)\n", err)
		return nil
	}
	fmt.Fprintln(c.ctx.Out, "master "+master)
	return nil
}

func (c *Version) Cmd() string {
	return "version"
}

func (c *Version) Help() string {
	return "'jobc version' prints the jobc version and, if --addr is reachable, the master version.\n"
}
