// Copyright 2017-2019, Square, Inc.

package minion

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"sync"

	"github.com/orcaman/concurrent-map"
	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/proto"
)

// RUNNING_PATH is the minion API endpoint that lists running jobs.
const RUNNING_PATH = "/api/v1/running"

// A RunningLister asks minions which jobs they are running. Minions that do
// not answer before ctx is done are left out: partial results are normal.
type RunningLister interface {
	Running(ctx context.Context) (map[string][]proto.RunningJob, error)
}

// HTTPLister asks every minion's API concurrently.
type HTTPLister struct {
	client  *http.Client
	minions map[string]string // minion id => base URL
}

func NewHTTPLister(client *http.Client, minions map[string]string) *HTTPLister {
	return &HTTPLister{
		client:  client,
		minions: minions,
	}
}

func (l *HTTPLister) Running(ctx context.Context) (map[string][]proto.RunningJob, error) {
	results := cmap.New()
	var wg sync.WaitGroup
	for id, url := range l.minions {
		wg.Add(1)
		go func(id, url string) {
			defer wg.Done()
			jobs, err := l.get(ctx, url)
			if err != nil {
				log.Warnf("minion %s did not report running jobs: %s", id, err)
				return
			}
			results.Set(id, jobs)
		}(id, url)
	}
	wg.Wait()

	running := make(map[string][]proto.RunningJob, results.Count())
	for item := range results.IterBuffered() {
		running[item.Key] = item.Val.([]proto.RunningJob)
	}
	return running, nil
}

func (l *HTTPLister) get(ctx context.Context, baseURL string) ([]proto.RunningJob, error) {
	req, err := http.NewRequest("GET", strings.TrimSuffix(baseURL, "/")+RUNNING_PATH, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unsuccessful status code: %d (response body: %s)", resp.StatusCode, string(body))
	}
	var jobs []proto.RunningJob
	if err := json.Unmarshal(body, &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}
