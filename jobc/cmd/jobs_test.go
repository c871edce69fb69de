// Copyright 2017-2019, Square, Inc.

package cmd_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobc/cmd"
	"github.com/square/jobcache/jobc/config"
	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/proto"
	"github.com/square/jobcache/test/mock"
)

func TestListJobs(t *testing.T) {
	output := &bytes.Buffer{}
	var gotSource string
	var gotFilter jobs.Filter
	mc := &mock.Client{
		ListJobsFunc: func(source string, f jobs.Filter) (map[string]proto.JobSummary, error) {
			gotSource = source
			gotFilter = f
			return map[string]proto.JobSummary{
				"20190507123456789012": {
					Function:  "test.ping",
					Target:    "web*",
					User:      "root",
					StartTime: "2019, May 07 12:34:56.789012",
				},
				"20190507000000000001": {
					Function:  "state.apply",
					Target:    "db1",
					User:      "sudo_dan",
					StartTime: "2019, May 07 00:00:00.000001",
				},
			}, nil
		},
	}
	ctx := app.Context{
		Out:          output,
		MasterClient: mc,
		Options:      config.Options{Source: "mysql"},
		Command: config.Command{
			Cmd:  "list-jobs",
			Args: []string{"target=web*"},
		},
	}
	c := cmd.NewListJobs(ctx)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if gotSource != "mysql" {
		t.Errorf("got source %s, expected mysql", gotSource)
	}
	if diff := deep.Equal(gotFilter, jobs.Filter{Targets: []string{"web*"}}); diff != nil {
		t.Error(diff)
	}
	expectOutput := `JID                   FUNCTION                        TARGET                USER        START
20190507000000000001  state.apply                     db1                   sudo_dan    2019, May 07 00:00:00.000001
20190507123456789012  test.ping                       web*                  root        2019, May 07 12:34:56.789012
`
	if output.String() != expectOutput {
		fmt.Printf("got output:\n%s\nexpected:\n%s\n", output, expectOutput)
		t.Error("wrong output, see above")
	}
}

func TestListJobsBadFilter(t *testing.T) {
	ctx := app.Context{
		Out:          &bytes.Buffer{},
		MasterClient: &mock.Client{},
		Command: config.Command{
			Cmd:  "list-jobs",
			Args: []string{"user=root"},
		},
	}
	if err := cmd.NewListJobs(ctx).Prepare(); err == nil {
		t.Error("no error, expected an invalid filter error")
	}
}

func TestPrintJob(t *testing.T) {
	job := proto.JobDetail{
		JobSummary: proto.JobSummary{
			Function: "test.ping",
		},
		Jid:     "20190507123456789012",
		Minions: []string{"web1"},
		Result: map[string]proto.MinionReturn{
			"web1": {Return: true},
		},
	}
	mc := &mock.Client{
		ListJobFunc: func(jid, source string) (proto.JobDetail, error) {
			if jid == job.Jid {
				return job, nil
			}
			return proto.JobDetail{Jid: jid, Minions: []string{}, Result: map[string]proto.MinionReturn{}}, nil
		},
	}

	var got interface{}
	ctx := app.Context{
		Out:          &bytes.Buffer{},
		MasterClient: mc,
		Command: config.Command{
			Cmd:  "print-job",
			Args: []string{job.Jid},
		},
		Hooks: app.Hooks{
			CommandRunResult: func(v interface{}, err error) {
				got = v
			},
		},
	}
	c := cmd.NewListJob(ctx, true)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if diff := deep.Equal(got, job); diff != nil {
		t.Error(diff)
	}

	// Without the hook, an unknown job prints an empty object
	output := &bytes.Buffer{}
	ctx.Out = output
	ctx.Hooks = app.Hooks{}
	ctx.Command.Args = []string{"20190101000000000000"}
	c = cmd.NewListJob(ctx, true)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if output.String() != "{}\n" {
		t.Errorf("got output '%s', expected '{}\\n'", output.String())
	}
}

func TestListJobNoJid(t *testing.T) {
	ctx := app.Context{
		Out:          &bytes.Buffer{},
		MasterClient: &mock.Client{},
		Command:      config.Command{Cmd: "list-job"},
	}
	if err := cmd.NewListJob(ctx, false).Prepare(); err == nil {
		t.Error("no error, expected usage error")
	}
	if err := cmd.NewLookupJid(ctx).Prepare(); err == nil {
		t.Error("no error, expected usage error")
	}
	if err := cmd.NewGetLoad(ctx).Prepare(); err == nil {
		t.Error("no error, expected usage error")
	}
}

func TestLookupJid(t *testing.T) {
	output := &bytes.Buffer{}
	mc := &mock.Client{
		LookupJidFunc: func(jid, source string) (map[string]interface{}, error) {
			return map[string]interface{}{"web1": true}, nil
		},
	}
	ctx := app.Context{
		Out:          output,
		MasterClient: mc,
		Command: config.Command{
			Cmd:  "lookup-jid",
			Args: []string{"20190507123456789012"},
		},
	}
	c := cmd.NewLookupJid(ctx)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	expect := "{\n  \"web1\": true\n}\n"
	if output.String() != expect {
		t.Errorf("got output '%s', expected '%s'", output.String(), expect)
	}
}

func TestActive(t *testing.T) {
	output := &bytes.Buffer{}
	mc := &mock.Client{
		ActiveFunc: func() (map[string]proto.ActiveJob, error) {
			return map[string]proto.ActiveJob{
				"20190507123456789012": {
					JobSummary: proto.JobSummary{
						Function: "state.highstate",
						Target:   "*",
						User:     "root",
					},
					Running:  []map[string]int{{"web1": 123}, {"web2": 456}},
					Returned: []string{"db1"},
				},
			}, nil
		},
	}
	ctx := app.Context{
		Out:          output,
		MasterClient: mc,
	}
	if err := cmd.NewActive(ctx).Run(); err != nil {
		t.Fatal(err)
	}
	expectOutput := `JID                   FUNCTION                        TARGET                USER        RUNNING  RETURNED
20190507123456789012  state.highstate                 *                     root              2         1
`
	if output.String() != expectOutput {
		fmt.Printf("got output:\n%s\nexpected:\n%s\n", output, expectOutput)
		t.Error("wrong output, see above")
	}
}

func TestActiveError(t *testing.T) {
	mc := &mock.Client{
		ActiveFunc: func() (map[string]proto.ActiveJob, error) {
			return nil, mock.ErrClient
		},
	}
	ctx := app.Context{
		Out:          &bytes.Buffer{},
		MasterClient: mc,
	}
	if err := cmd.NewActive(ctx).Run(); err != mock.ErrClient {
		t.Errorf("got err %v, expected mock.ErrClient", err)
	}
}

func TestClean(t *testing.T) {
	output := &bytes.Buffer{}
	mc := &mock.Client{
		CleanFunc: func() (int, error) {
			return 4, nil
		},
	}
	ctx := app.Context{
		Out:          output,
		MasterClient: mc,
	}
	if err := cmd.NewClean(ctx).Run(); err != nil {
		t.Fatal(err)
	}
	if output.String() != "OK, removed 4 jobs\n" {
		t.Errorf("got output '%s'", output.String())
	}
}

func TestLookupJidYAML(t *testing.T) {
	output := &bytes.Buffer{}
	mc := &mock.Client{
		LookupJidFunc: func(jid, source string) (map[string]interface{}, error) {
			return map[string]interface{}{"web1": true}, nil
		},
	}
	ctx := app.Context{
		Out:          output,
		MasterClient: mc,
		Options:      config.Options{Output: "yaml"},
		Command: config.Command{
			Cmd:  "lookup-jid",
			Args: []string{"20190507123456789012"},
		},
	}
	c := cmd.NewLookupJid(ctx)
	if err := c.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := c.Run(); err != nil {
		t.Fatal(err)
	}
	if output.String() != "web1: true\n" {
		t.Errorf("got output '%s', expected 'web1: true\\n'", output.String())
	}

	// Unknown format
	ctx.Options.Output = "xml"
	if err := cmd.NewLookupJid(ctx).Run(); err == nil {
		t.Error("no error, expected invalid output error")
	}
}
