// Copyright 2017-2019, Square, Inc.

package mock

import (
	"errors"
)

var (
	ErrPublisher = errors.New("forced error in event publisher")
)

type Publisher struct {
	FireFunc func(tag string, data map[string]interface{}) error
}

func (p *Publisher) Fire(tag string, data map[string]interface{}) error {
	if p.FireFunc != nil {
		return p.FireFunc(tag, data)
	}
	return nil
}
