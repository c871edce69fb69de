// Copyright 2017, Square, Inc.

package util

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/rs/xid"
)

// XID generates a globally unique, 12-byte xid.
func XID() xid.ID {
	return xid.New()
}

// NewTLSConfig takes a cert, key, and ca file and creates a *tls.Config.
func NewTLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("tls.LoadX509KeyPair: %s", err)
	}

	caCert, err := ioutil.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	caCertPool := x509.NewCertPool()
	caCertPool.AppendCertsFromPEM(caCert)
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caCertPool,
	}

	return tlsConfig, nil
}

// NewHTTPClient returns an http.Client with the given timeout. If all three TLS
// files are given, the client uses them.
func NewHTTPClient(timeout time.Duration, caFile, certFile, keyFile string) (*http.Client, error) {
	c := &http.Client{Timeout: timeout}
	if caFile == "" || certFile == "" || keyFile == "" {
		return c, nil
	}
	tlsConfig, err := NewTLSConfig(caFile, certFile, keyFile)
	if err != nil {
		return nil, err
	}
	c.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	return c, nil
}
