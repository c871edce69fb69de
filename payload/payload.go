// Copyright 2017-2019, Square, Inc.

// Package payload encodes values stored in the job cache. Every payload is a
// self-describing envelope:
//
//   magic "JCP" | version (1 byte) | body length (4 bytes, big-endian) | body
//
// Version 1 bodies are JSON. Readers reject unknown magic, unknown versions,
// and bodies shorter or longer than the declared length.
package payload

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"

	"github.com/square/jobcache/atomicfile"
)

const (
	VERSION     byte = 1
	HEADER_SIZE      = 8

	// Max body size accepted by Unmarshal (256 MiB).
	MAX_BODY = 256 << 20
)

var magic = []byte("JCP")

var (
	ErrBadMagic           = errors.New("payload: bad magic, not a job cache payload")
	ErrUnsupportedVersion = errors.New("payload: unsupported version")
	ErrTruncated          = errors.New("payload: truncated")
	ErrTrailingData       = errors.New("payload: trailing data after body")
	ErrTooLarge           = errors.New("payload: body too large")
)

// Marshal encodes v in a version 1 envelope.
func Marshal(v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(body) > MAX_BODY {
		return nil, ErrTooLarge
	}
	buf := make([]byte, HEADER_SIZE, HEADER_SIZE+len(body))
	copy(buf, magic)
	buf[3] = VERSION
	binary.BigEndian.PutUint32(buf[4:HEADER_SIZE], uint32(len(body)))
	return append(buf, body...), nil
}

// Unmarshal decodes an envelope into v.
func Unmarshal(data []byte, v interface{}) error {
	if len(data) < HEADER_SIZE {
		return ErrTruncated
	}
	if !bytes.Equal(data[:3], magic) {
		return ErrBadMagic
	}
	if data[3] != VERSION {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, data[3])
	}
	n := binary.BigEndian.Uint32(data[4:HEADER_SIZE])
	if n > MAX_BODY {
		return ErrTooLarge
	}
	body := data[HEADER_SIZE:]
	if uint32(len(body)) < n {
		return ErrTruncated
	}
	if uint32(len(body)) > n {
		return ErrTrailingData
	}
	return DecodeJSON(body, v)
}

// DecodeJSON decodes a JSON body into v. Numbers in untyped values decode as
// json.Number, so integers of any size read back exactly as written.
func DecodeJSON(body []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return ErrTrailingData
	}
	return nil
}

// WriteFile encodes v and writes it to path atomically.
func WriteFile(path string, v interface{}) error {
	data, err := Marshal(v)
	if err != nil {
		return err
	}
	return atomicfile.Write(path, data, 0644)
}

// ReadFile reads and decodes the envelope at path into v. A missing file
// returns an error for which os.IsNotExist is true.
func ReadFile(path string, v interface{}) error {
	return atomicfile.WithReader(path, func(r io.Reader) error {
		data, err := ioutil.ReadAll(io.LimitReader(r, HEADER_SIZE+MAX_BODY+1))
		if err != nil {
			return err
		}
		return Unmarshal(data, v)
	})
}

// IsNotExist returns true if err is from reading a missing file.
func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}
