// Copyright 2017-2019, Square, Inc.

package cmd

import (
	"fmt"
	"strings"

	"github.com/square/jobcache/jobc/app"
)

// QueueList lists all queues, or the items in one queue.
type QueueList struct {
	ctx   app.Context
	queue string
}

func NewQueueList(ctx app.Context) *QueueList {
	return &QueueList{
		ctx: ctx,
	}
}

func (c *QueueList) Prepare() error {
	if len(c.ctx.Command.Args) > 0 {
		c.queue = c.ctx.Command.Args[0]
	}
	return nil
}

func (c *QueueList) Run() error {
	var list []string
	var err error
	if c.queue == "" {
		list, err = c.ctx.MasterClient.QueueList()
	} else {
		list, err = c.ctx.MasterClient.QueueItems(c.queue)
	}
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(list, err)
		return nil
	}
	if err != nil {
		return err
	}
	for _, s := range list {
		fmt.Fprintln(c.ctx.Out, s)
	}
	return nil
}

func (c *QueueList) Cmd() string {
	if c.queue == "" {
		return "queue-list"
	}
	return "queue-list " + c.queue
}

func (c *QueueList) Help() string {
	return "'jobc queue-list' lists all queues. 'jobc queue-list <queue>' lists the items in the queue.\n"
}

// --------------------------------------------------------------------------

type QueueLength struct {
	ctx   app.Context
	queue string
}

func NewQueueLength(ctx app.Context) *QueueLength {
	return &QueueLength{
		ctx: ctx,
	}
}

func (c *QueueLength) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobc queue-length <queue>\n")
	}
	c.queue = c.ctx.Command.Args[0]
	return nil
}

func (c *QueueLength) Run() error {
	n, err := c.ctx.MasterClient.QueueLength(c.queue)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(n, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.ctx.Out, n)
	return nil
}

func (c *QueueLength) Cmd() string {
	return "queue-length " + c.queue
}

func (c *QueueLength) Help() string {
	return "'jobc queue-length <queue>' prints the number of items in the queue.\n"
}

// --------------------------------------------------------------------------

type QueueInsert struct {
	ctx   app.Context
	queue string
	items []string
}

func NewQueueInsert(ctx app.Context) *QueueInsert {
	return &QueueInsert{
		ctx: ctx,
	}
}

func (c *QueueInsert) Prepare() error {
	if len(c.ctx.Command.Args) < 2 {
		return fmt.Errorf("Usage: jobc queue-insert <queue> <item> [item...]\n")
	}
	c.queue = c.ctx.Command.Args[0]
	c.items = c.ctx.Command.Args[1:]
	return nil
}

func (c *QueueInsert) Run() error {
	res, err := c.ctx.MasterClient.QueueInsert(c.queue, c.items)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(res, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.ctx.Out, "OK, inserted %d items into %s\n", len(res.Inserted), c.queue)
	if len(res.Conflicts) > 0 {
		fmt.Fprintf(c.ctx.Out, "Already queued: %s\n", strings.Join(res.Conflicts, ", "))
	}
	return nil
}

func (c *QueueInsert) Cmd() string {
	return "queue-insert " + c.queue
}

func (c *QueueInsert) Help() string {
	return "'jobc queue-insert <queue> <item> [item...]' adds items to the queue, creating it if needed.\n" +
		"Items already in the queue are reported and skipped.\n"
}

// --------------------------------------------------------------------------

type QueueDelete struct {
	ctx   app.Context
	queue string
	items []string
}

func NewQueueDelete(ctx app.Context) *QueueDelete {
	return &QueueDelete{
		ctx: ctx,
	}
}

func (c *QueueDelete) Prepare() error {
	if len(c.ctx.Command.Args) < 2 {
		return fmt.Errorf("Usage: jobc queue-delete <queue> <item> [item...]\n")
	}
	c.queue = c.ctx.Command.Args[0]
	c.items = c.ctx.Command.Args[1:]
	return nil
}

func (c *QueueDelete) Run() error {
	err := c.ctx.MasterClient.QueueDelete(c.queue, c.items)
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(nil, err)
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.ctx.Out, "OK, deleted %d items from %s\n", len(c.items), c.queue)
	return nil
}

func (c *QueueDelete) Cmd() string {
	return "queue-delete " + c.queue
}

func (c *QueueDelete) Help() string {
	return "'jobc queue-delete <queue> <item> [item...]' removes items from the queue.\n"
}

// --------------------------------------------------------------------------

// QueuePop pops items from the front of a queue. As queue-process, the master
// also fires a process event for the popped items.
type QueuePop struct {
	ctx     app.Context
	process bool
	queue   string
	n       string
}

func NewQueuePop(ctx app.Context, process bool) *QueuePop {
	return &QueuePop{
		ctx:     ctx,
		process: process,
	}
}

func (c *QueuePop) Prepare() error {
	if len(c.ctx.Command.Args) == 0 {
		return fmt.Errorf("Usage: jobc %s <queue> [n|all]\n", c.name())
	}
	c.queue = c.ctx.Command.Args[0]
	if len(c.ctx.Command.Args) > 1 {
		c.n = c.ctx.Command.Args[1]
	}
	return nil
}

func (c *QueuePop) Run() error {
	var items []string
	var err error
	if c.process {
		items, err = c.ctx.MasterClient.QueueProcess(c.queue, c.n)
	} else {
		items, err = c.ctx.MasterClient.QueuePop(c.queue, c.n)
	}
	if c.ctx.Hooks.CommandRunResult != nil {
		c.ctx.Hooks.CommandRunResult(items, err)
		return nil
	}
	if err != nil {
		return err
	}
	for _, s := range items {
		fmt.Fprintln(c.ctx.Out, s)
	}
	return nil
}

func (c *QueuePop) Cmd() string {
	return c.name() + " " + c.queue
}

func (c *QueuePop) Help() string {
	if c.process {
		return "'jobc queue-process <queue> [n|all]' pops n items (default 1) and fires the queue process event for them.\n"
	}
	return "'jobc queue-pop <queue> [n|all]' pops n items (default 1) from the front of the queue and prints them.\n"
}

func (c *QueuePop) name() string {
	if c.process {
		return "queue-process"
	}
	return "queue-pop"
}
