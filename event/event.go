// Copyright 2017-2019, Square, Inc.

// Package event publishes master events, such as queue items being processed.
package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/garyburd/redigo/redis"
	log "github.com/sirupsen/logrus"
)

// TAG_PREFIX is the prefix of every event tag.
const TAG_PREFIX = "jobcache"

// Tag joins parts into an event tag: Tag("queue", "q", "process") is
// "jobcache/queue/q/process".
func Tag(parts ...string) string {
	return TAG_PREFIX + "/" + strings.Join(parts, "/")
}

// Event is what a Publisher sends.
type Event struct {
	Tag   string                 `json:"tag"`
	Data  map[string]interface{} `json:"data"`
	Stamp time.Time              `json:"_stamp"`
}

// A Publisher fires events to whoever listens for them.
type Publisher interface {
	Fire(tag string, data map[string]interface{}) error
}

// --------------------------------------------------------------------------

// LogPublisher logs events. It's the default when no event bus is configured.
type LogPublisher struct{}

func (p LogPublisher) Fire(tag string, data map[string]interface{}) error {
	log.WithFields(log.Fields(data)).Infof("event %s", tag)
	return nil
}

// --------------------------------------------------------------------------

// RedisPublisher publishes events as JSON to the redis channel <prefix>:<tag>.
type RedisPublisher struct {
	pool   *redis.Pool
	prefix string
}

func NewRedisPublisher(pool *redis.Pool, prefix string) *RedisPublisher {
	return &RedisPublisher{
		pool:   pool,
		prefix: prefix,
	}
}

func (p *RedisPublisher) Fire(tag string, data map[string]interface{}) error {
	bytes, err := json.Marshal(Event{Tag: tag, Data: data, Stamp: time.Now().UTC()})
	if err != nil {
		return err
	}
	conn := p.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("PUBLISH", p.prefix+":"+tag, bytes); err != nil {
		return fmt.Errorf("redis PUBLISH %s: %s", tag, err)
	}
	return nil
}
