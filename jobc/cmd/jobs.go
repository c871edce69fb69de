// Copyright 2017-2019, Square, Inc.

package cmd

import (
	"fmt"
	"sort"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/proto"
)

const (
	FUNCTION_COL_LEN = 30
)

type ListJobs struct {
	ctx    app.Context
	filter jobs.Filter
}

func NewListJobs(ctx app.Context) *ListJobs {
	return &ListJobs{
		ctx: ctx,
	}
}

func (c *ListJobs) Prepare() error {
	f, err := ParseFilter(c.ctx.Command.Args)
	if err != nil {
		return err
	}
	c.filter = f
	return nil
}

func (c *ListJobs) Run() error {
	list, err := c.ctx.MasterClient.ListJobs(c.ctx.Options.Source, c.filter)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(list, err)
		return nil
	}
	if err != nil {
		return err
	}
	if c.ctx.Options.Debug {
		app.Debug("jobs: %#v", list)
	}
	if len(list) == 0 {
		return nil
	}

	jids := make([]string, 0, len(list))
	for jid := range list {
		jids = append(jids, jid)
	}
	sort.Strings(jids)

	line := "%-20s  %-30s  %-20s  %-10s  %s\n"
	fmt.Fprintf(c.ctx.Out, line, "JID", "FUNCTION", "TARGET", "USER", "START")
	for _, jid := range jids {
		j := list[jid]
		fmt.Fprintf(c.ctx.Out, line, jid, SqueezeString(j.Function, FUNCTION_COL_LEN, ".."), j.Target, j.User, j.StartTime)
	}
	return nil
}

func (c *ListJobs) Cmd() string {
	return "list-jobs"
}

func (c *ListJobs) Help() string {
	return "'jobc list-jobs [function=<glob>] [target=<glob>] [meta.<key>=<value>]' lists cached jobs.\n" +
		"function and target can be given more than once; a job matches if any glob matches.\n" +
		"Use --source to read an external job cache.\n"
}

// --------------------------------------------------------------------------

// ListJob prints one job: summary, target minions, and results. As print-job,
// the output is keyed on the jid.
type ListJob struct {
	ctx   app.Context
	byJid bool
	jid   string
}

func NewListJob(ctx app.Context, byJid bool) *ListJob {
	return &ListJob{
		ctx:   ctx,
		byJid: byJid,
	}
}

func (c *ListJob) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobc %s <jid>\n", c.name())
	}
	c.jid = c.ctx.Command.Args[0]
	return nil
}

func (c *ListJob) Run() error {
	job, err := c.ctx.MasterClient.ListJob(c.jid, c.ctx.Options.Source)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(job, err)
		return nil
	}
	if err != nil {
		return err
	}
	if !c.byJid {
		return printResult(c.ctx, job)
	}
	if job.Function == "" && len(job.Result) == 0 {
		return printResult(c.ctx, map[string]proto.JobDetail{})
	}
	return printResult(c.ctx, map[string]proto.JobDetail{c.jid: job})
}

func (c *ListJob) Cmd() string {
	return c.name() + " " + c.jid
}

func (c *ListJob) Help() string {
	if c.byJid {
		return "'jobc print-job <jid>' prints the job keyed on its jid, or nothing if the job is not cached.\n"
	}
	return "'jobc list-job <jid>' prints the job summary, target minions, and minion results.\n"
}

func (c *ListJob) name() string {
	if c.byJid {
		return "print-job"
	}
	return "list-job"
}

// --------------------------------------------------------------------------

type LookupJid struct {
	ctx app.Context
	jid string
}

func NewLookupJid(ctx app.Context) *LookupJid {
	return &LookupJid{
		ctx: ctx,
	}
}

func (c *LookupJid) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobc lookup-jid <jid>\n")
	}
	c.jid = c.ctx.Command.Args[0]
	return nil
}

func (c *LookupJid) Run() error {
	ret, err := c.ctx.MasterClient.LookupJid(c.jid, c.ctx.Options.Source)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(ret, err)
		return nil
	}
	if err != nil {
		return err
	}
	return printResult(c.ctx, ret)
}

func (c *LookupJid) Cmd() string {
	return "lookup-jid " + c.jid
}

func (c *LookupJid) Help() string {
	return "'jobc lookup-jid <jid>' prints the return of every minion that returned for the job.\n"
}

// --------------------------------------------------------------------------

type GetLoad struct {
	ctx app.Context
	jid string
}

func NewGetLoad(ctx app.Context) *GetLoad {
	return &GetLoad{
		ctx: ctx,
	}
}

func (c *GetLoad) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobc get-load <jid>\n")
	}
	c.jid = c.ctx.Command.Args[0]
	return nil
}

func (c *GetLoad) Run() error {
	load, err := c.ctx.MasterClient.GetLoad(c.jid, c.ctx.Options.Source)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(load, err)
		return nil
	}
	if err != nil {
		return err
	}
	return printResult(c.ctx, load)
}

func (c *GetLoad) Cmd() string {
	return "get-load " + c.jid
}

func (c *GetLoad) Help() string {
	return "'jobc get-load <jid>' prints the load the job was published with.\n"
}

// --------------------------------------------------------------------------

type Active struct {
	ctx app.Context
}

func NewActive(ctx app.Context) *Active {
	return &Active{
		ctx: ctx,
	}
}

func (c *Active) Prepare() error {
	return nil
}

func (c *Active) Run() error {
	active, err := c.ctx.MasterClient.Active()
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(active, err)
		return nil
	}
	if err != nil {
		return err
	}
	if c.ctx.Options.Debug {
		app.Debug("active: %#v", active)
	}
	if len(active) == 0 {
		return nil
	}

	jids := make([]string, 0, len(active))
	for jid := range active {
		jids = append(jids, jid)
	}
	sort.Strings(jids)

	hdr := "%-20s  %-30s  %-20s  %-10s  %7s  %8s\n"
	line := "%-20s  %-30s  %-20s  %-10s  %7d  %8d\n"
	fmt.Fprintf(c.ctx.Out, hdr, "JID", "FUNCTION", "TARGET", "USER", "RUNNING", "RETURNED")
	for _, jid := range jids {
		j := active[jid]
		fmt.Fprintf(c.ctx.Out, line, jid, SqueezeString(j.Function, FUNCTION_COL_LEN, ".."), j.Target, j.User,
			len(j.Running), len(j.Returned))
	}
	return nil
}

func (c *Active) Cmd() string {
	return "active"
}

func (c *Active) Help() string {
	return "'jobc active' lists jobs that minions are running now, with the number of minions\n" +
		"still running and the number that already returned.\n"
}

// --------------------------------------------------------------------------

type Clean struct {
	ctx app.Context
}

func NewClean(ctx app.Context) *Clean {
	return &Clean{
		ctx: ctx,
	}
}

func (c *Clean) Prepare() error {
	return nil
}

func (c *Clean) Run() error {
	n, err := c.ctx.MasterClient.Clean()
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(n, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.ctx.Out, "OK, removed %d jobs\n", n)
	return nil
}

func (c *Clean) Cmd() string {
	return "clean"
}

func (c *Clean) Help() string {
	return "'jobc clean' removes expired and corrupt jobs from every job cache now.\n"
}
