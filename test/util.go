// Copyright 2017-2019, Square, Inc.

// Package test provides helper functions for tests.
package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// MySQLDSN is the DSN of the database used by mysql job cache tests, from
// JOBCACHE_TEST_MYSQL_DSN. Tests that need MySQL are skipped if it's empty.
var MySQLDSN = os.Getenv("JOBCACHE_TEST_MYSQL_DSN")

// MakeHTTPRequest is a helper function for making an http request. The response
// body of the http request is unmarshalled into the struct pointed to by the
// respStruct argument (if it's not nil). The status code of the response and
// the response headers are returned.
func MakeHTTPRequest(httpVerb, url string, payload []byte, respStruct interface{}) (int, http.Header, error) {
	var statusCode int
	// Make the http request.
	req, err := http.NewRequest(httpVerb, url, bytes.NewReader(payload))
	if err != nil {
		return statusCode, http.Header{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := (http.DefaultClient).Do(req)
	if err != nil {
		return statusCode, http.Header{}, err
	}
	defer res.Body.Close()

	if respStruct != nil {
		decoder := json.NewDecoder(res.Body)
		err = decoder.Decode(respStruct)
		if err != nil {
			return res.StatusCode, res.Header, fmt.Errorf("error decoding response body: %s", err)
		}
	}

	return res.StatusCode, res.Header, nil
}
