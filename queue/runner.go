// Copyright 2017-2019, Square, Inc.

package queue

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/event"
)

// Runner pops items from queues and fires an event with them, so that
// reactors can act on a batch of queued items.
type Runner struct {
	store  Store
	events event.Publisher
}

func NewRunner(store Store, events event.Publisher) *Runner {
	return &Runner{
		store:  store,
		events: events,
	}
}

// ProcessTag returns the tag of the event fired by Process for a queue.
func ProcessTag(queue string) string {
	return event.Tag("queue", queue, "process")
}

// Process pops n items (or ALL) from queue and fires one event with them. No
// event is fired if the queue is empty. Popped items are returned even if
// firing the event fails, so the caller can report or re-insert them.
func (r *Runner) Process(queue string, n int) ([]string, error) {
	items, err := r.store.Pop(queue, n)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	data := map[string]interface{}{
		"queue": queue,
		"items": items,
	}
	if err := r.events.Fire(ProcessTag(queue), data); err != nil {
		log.Errorf("popped %d items from queue %s but cannot fire event: %s", len(items), queue, err)
		return items, fmt.Errorf("cannot fire event for queue %s: %s", queue, err)
	}
	log.Infof("processed %d items from queue %s", len(items), queue)
	return items, nil
}
