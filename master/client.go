// Copyright 2017-2019, Square, Inc.

// Package master provides an HTTP client for interacting with the job cache
// master API.
package master

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/square/jobcache/jobs"
	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

// A Client is an HTTP client used for interacting with the master API.
type Client interface {
	// PrepJid makes a new jid. If nocache is true, returns for the job are
	// not recorded.
	PrepJid(nocache bool) (string, error)

	// SaveLoad saves the load of a published job.
	SaveLoad(jid string, load proto.Load) error

	// Return records one minion return. The outcome is in the result; only
	// failing to talk to the master is an error.
	Return(ret proto.Return) (proto.ReturnResult, error)

	// ListJobs returns a summary of every job that passes the filter, from
	// the job cache named by source (optional).
	ListJobs(source string, f jobs.Filter) (map[string]proto.JobSummary, error)

	// ListJob returns the summary, target minions, and results of a job.
	ListJob(jid, source string) (proto.JobDetail, error)

	// LookupJid returns the return value of every minion that returned.
	LookupJid(jid, source string) (map[string]interface{}, error)

	// GetLoad returns the load of a job.
	GetLoad(jid, source string) (proto.Load, error)

	// Active returns the jobs that minions are running now.
	Active() (map[string]proto.ActiveJob, error)

	// Clean sweeps every job cache now and returns the number of jobs removed.
	Clean() (int, error)

	// QueueList returns the names of all queues.
	QueueList() ([]string, error)

	// QueueItems returns the items in a queue.
	QueueItems(queue string) ([]string, error)

	// QueueLength returns the number of items in a queue.
	QueueLength(queue string) (int, error)

	// QueueInsert adds items to a queue.
	QueueInsert(queue string, items []string) (proto.QueueInsert, error)

	// QueueDelete removes items from a queue.
	QueueDelete(queue string, items []string) error

	// QueuePop removes and returns n items ("all" for every item).
	QueuePop(queue, n string) ([]string, error)

	// QueueProcess pops n items and fires the queue process event with them.
	QueueProcess(queue, n string) ([]string, error)

	// Version returns the master version.
	Version() (string, error)
}

type client struct {
	*http.Client
	baseUrl string
}

// NewClient takes an http.Client and base API URL and creates a Client.
func NewClient(c *http.Client, baseUrl string) Client {
	return &client{
		Client:  c,
		baseUrl: strings.TrimSuffix(baseUrl, "/"),
	}
}

func (c *client) PrepJid(nocache bool) (string, error) {
	// POST /api/v1/jid
	url := c.baseUrl + "/api/v1/jid"
	if nocache {
		url += "?nocache=true"
	}
	var j proto.Jid
	err := c.makeRequest("POST", url, nil, http.StatusCreated, &j)
	return j.Jid, err
}

func (c *client) SaveLoad(jid string, load proto.Load) error {
	// PUT /api/v1/jobs/${jid}/load
	url := c.baseUrl + "/api/v1/jobs/" + jid + "/load"
	return c.makeRequest("PUT", url, load, http.StatusOK, nil)
}

func (c *client) Return(ret proto.Return) (proto.ReturnResult, error) {
	// POST /api/v1/jobs/${jid}/returns
	url := c.baseUrl + "/api/v1/jobs/" + ret.Jid + "/returns"
	var res proto.ReturnResult
	statusCode, body, err := c.do("POST", url, ret)
	if err != nil {
		return res, err
	}
	switch statusCode {
	case http.StatusCreated, http.StatusAccepted, http.StatusConflict, http.StatusGone:
		err = json.Unmarshal(body, &res)
	default:
		err = apiError(statusCode, body)
	}
	return res, err
}

func (c *client) ListJobs(source string, f jobs.Filter) (map[string]proto.JobSummary, error) {
	// GET /api/v1/jobs
	q := url.Values{}
	if source != "" {
		q.Set("source", source)
	}
	for _, fn := range f.Functions {
		q.Add("function", fn)
	}
	for _, tgt := range f.Targets {
		q.Add("target", tgt)
	}
	for k, v := range f.Metadata {
		q.Set("metadata."+k, v)
	}
	url := c.baseUrl + "/api/v1/jobs"
	if len(q) > 0 {
		url += "?" + q.Encode()
	}
	var list map[string]proto.JobSummary
	err := c.makeRequest("GET", url, nil, http.StatusOK, &list)
	return list, err
}

func (c *client) ListJob(jid, source string) (proto.JobDetail, error) {
	// GET /api/v1/jobs/${jid}
	var d proto.JobDetail
	err := c.makeRequest("GET", c.jobURL(jid, "", source), nil, http.StatusOK, &d)
	return d, err
}

func (c *client) LookupJid(jid, source string) (map[string]interface{}, error) {
	// GET /api/v1/jobs/${jid}/returns
	var ret map[string]interface{}
	err := c.makeRequest("GET", c.jobURL(jid, "/returns", source), nil, http.StatusOK, &ret)
	return ret, err
}

func (c *client) GetLoad(jid, source string) (proto.Load, error) {
	// GET /api/v1/jobs/${jid}/load
	var load proto.Load
	err := c.makeRequest("GET", c.jobURL(jid, "/load", source), nil, http.StatusOK, &load)
	return load, err
}

func (c *client) Active() (map[string]proto.ActiveJob, error) {
	// GET /api/v1/active
	url := c.baseUrl + "/api/v1/active"
	var active map[string]proto.ActiveJob
	err := c.makeRequest("GET", url, nil, http.StatusOK, &active)
	return active, err
}

func (c *client) Clean() (int, error) {
	// POST /api/v1/clean
	url := c.baseUrl + "/api/v1/clean"
	var res proto.CleanResult
	err := c.makeRequest("POST", url, nil, http.StatusOK, &res)
	return res.Removed, err
}

func (c *client) QueueList() ([]string, error) {
	// GET /api/v1/queues
	url := c.baseUrl + "/api/v1/queues"
	var queues []string
	err := c.makeRequest("GET", url, nil, http.StatusOK, &queues)
	return queues, err
}

func (c *client) QueueItems(queue string) ([]string, error) {
	// GET /api/v1/queues/${queue}
	url := c.baseUrl + "/api/v1/queues/" + queue
	var items proto.QueueItems
	err := c.makeRequest("GET", url, nil, http.StatusOK, &items)
	return items.Items, err
}

func (c *client) QueueLength(queue string) (int, error) {
	// GET /api/v1/queues/${queue}/length
	url := c.baseUrl + "/api/v1/queues/" + queue + "/length"
	var length proto.QueueLength
	err := c.makeRequest("GET", url, nil, http.StatusOK, &length)
	return length.Length, err
}

func (c *client) QueueInsert(queue string, items []string) (proto.QueueInsert, error) {
	// POST /api/v1/queues/${queue}
	url := c.baseUrl + "/api/v1/queues/" + queue
	var res proto.QueueInsert
	statusCode, body, err := c.do("POST", url, proto.QueueItems{Items: items})
	if err != nil {
		return res, err
	}
	switch statusCode {
	case http.StatusCreated, http.StatusMultiStatus:
		err = json.Unmarshal(body, &res)
	default:
		err = apiError(statusCode, body)
	}
	return res, err
}

func (c *client) QueueDelete(queue string, items []string) error {
	// DELETE /api/v1/queues/${queue}
	url := c.baseUrl + "/api/v1/queues/" + queue
	return c.makeRequest("DELETE", url, proto.QueueItems{Items: items}, http.StatusOK, nil)
}

func (c *client) QueuePop(queue, n string) ([]string, error) {
	// POST /api/v1/queues/${queue}/pop?n=${n}
	return c.popRequest(queue, "pop", n)
}

func (c *client) QueueProcess(queue, n string) ([]string, error) {
	// POST /api/v1/queues/${queue}/process?n=${n}
	return c.popRequest(queue, "process", n)
}

func (c *client) Version() (string, error) {
	// GET /version
	statusCode, body, err := c.do("GET", c.baseUrl+"/version", nil)
	if err != nil {
		return "", err
	}
	if statusCode != http.StatusOK {
		return "", apiError(statusCode, body)
	}
	return string(body), nil
}

// ------------------------------------------------------------------------- //

func (c *client) jobURL(jid, suffix, source string) string {
	u := c.baseUrl + "/api/v1/jobs/" + jid + suffix
	if source != "" {
		u += "?source=" + url.QueryEscape(source)
	}
	return u
}

func (c *client) popRequest(queue, op, n string) ([]string, error) {
	u := c.baseUrl + "/api/v1/queues/" + queue + "/" + op
	if n != "" {
		u += "?n=" + url.QueryEscape(n)
	}
	var items proto.QueueItems
	err := c.makeRequest("POST", u, nil, http.StatusOK, &items)
	return items.Items, err
}

// makeRequest is a helper function for making HTTP requests. The httpVerb, url,
// and expectedStatusCode arguments are self explanatory. If the payloadStruct
// argument is provided (if it's not nil), the struct will be marshalled into
// JSON and sent as the payload of the request. If the respStruct argument is
// provided (if it's not nil), the response body of the request will be
// unmarshalled into the struct pointed to by it.
func (c *client) makeRequest(httpVerb, url string, payloadStruct interface{}, expectedStatusCode int, respStruct interface{}) error {
	statusCode, body, err := c.do(httpVerb, url, payloadStruct)
	if err != nil {
		return err
	}

	// Check the status code.
	if statusCode != expectedStatusCode {
		return apiError(statusCode, body)
	}

	// Unmarshal the body into the struct pointed to by the respStruct argument.
	if respStruct != nil {
		if err = payload.DecodeJSON(body, respStruct); err != nil {
			return err
		}
	}

	return nil
}

// do sends the request and returns the status code and response body.
func (c *client) do(httpVerb, url string, payloadStruct interface{}) (int, []byte, error) {
	// Marshal payload.
	var reqBody []byte
	var err error
	if payloadStruct != nil {
		reqBody, err = json.Marshal(payloadStruct)
		if err != nil {
			return 0, nil, err
		}
	}

	// Create the request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewBuffer(reqBody))
	if err != nil {
		return 0, nil, err
	}

	// Send the request.
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	// Read the response body.
	body, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// apiError returns the proto.Error message in body, if any, else the body.
func apiError(statusCode int, body []byte) error {
	var perr proto.Error
	if err := json.Unmarshal(body, &perr); err == nil && perr.Message != "" {
		return fmt.Errorf("master error (HTTP %d): %s", statusCode, perr.Message)
	}
	return fmt.Errorf("unsuccessful status code: %d (response body: %s)", statusCode, string(body))
}
