// Copyright 2017-2019, Square, Inc.

// Package cmd provides all the commands that jobc can run: list-jobs, active, etc.
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/square/jobcache/jobc/app"
	"github.com/square/jobcache/jobs"
)

var (
	ErrNotExist = errors.New("command does not exist")
)

type DefaultFactory struct {
}

func (f *DefaultFactory) Make(name string, ctx app.Context) (app.Command, error) {
	switch name {
	case "active":
		return NewActive(ctx), nil
	case "clean":
		return NewClean(ctx), nil
	case "get-load":
		return NewGetLoad(ctx), nil
	case "help":
		return NewHelp(ctx), nil
	case "list-job":
		return NewListJob(ctx, false), nil
	case "list-jobs":
		return NewListJobs(ctx), nil
	case "lookup-jid":
		return NewLookupJid(ctx), nil
	case "print-job":
		return NewListJob(ctx, true), nil
	case "queue-delete":
		return NewQueueDelete(ctx), nil
	case "queue-insert":
		return NewQueueInsert(ctx), nil
	case "queue-length":
		return NewQueueLength(ctx), nil
	case "queue-list":
		return NewQueueList(ctx), nil
	case "queue-pop":
		return NewQueuePop(ctx, false), nil
	case "queue-process":
		return NewQueuePop(ctx, true), nil
	case "version":
		return NewVersion(ctx), nil
	default:
		return nil, ErrNotExist
	}
}

// ParseFilter parses list-jobs args into a job filter. Args are key=value:
// function=<glob> and target=<glob> can be repeated; meta.<key>=<value>
// matches job metadata.
func ParseFilter(args []string) (jobs.Filter, error) {
	var f jobs.Filter
	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return f, fmt.Errorf("invalid filter %s: expected key=value", arg)
		}
		k, v := kv[0], kv[1]
		switch {
		case k == "function":
			f.Functions = append(f.Functions, v)
		case k == "target":
			f.Targets = append(f.Targets, v)
		case strings.HasPrefix(k, "meta.") && len(k) > len("meta."):
			if f.Metadata == nil {
				f.Metadata = map[string]string{}
			}
			f.Metadata[strings.TrimPrefix(k, "meta.")] = v
		default:
			return f, fmt.Errorf("invalid filter %s: key must be function, target, or meta.<key>", arg)
		}
	}
	return f, nil
}

// SqueezeString shortens s to max characters by replacing the middle of s
// with sep: SqueezeString("hello, world!", 5, "..") = "he..!".
func SqueezeString(s string, max int, sep string) string {
	if len(s) <= max {
		return s
	}
	if max < len(sep) {
		return ""
	}
	n := max - len(sep)
	head := n / 2
	if n%2 != 0 {
		head++
	}
	tail := n - head
	return s[:head] + sep + s[len(s)-tail:]
}

// printResult prints v as indented JSON, or as YAML if --output yaml.
func printResult(ctx app.Context, v interface{}) error {
	bytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	switch ctx.Options.Output {
	case "", "json":
		fmt.Fprintln(ctx.Out, string(bytes))
	case "yaml":
		// Round trip through JSON so keys are the json tags
		var doc interface{}
		if err := yaml.Unmarshal(bytes, &doc); err != nil {
			return err
		}
		y, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		fmt.Fprint(ctx.Out, string(y))
	default:
		return fmt.Errorf("invalid --output %s: expected json or yaml", ctx.Options.Output)
	}
	return nil
}
