// Copyright 2017-2019, Square, Inc.

package payload_test

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".load.p")
	load := proto.Load{
		Jid:      "20190102030405000006",
		Fun:      "test.ping",
		Arg:      []interface{}{"a", json.Number("1")},
		Tgt:      "web*",
		TgtType:  "glob",
		User:     "ops",
		Metadata: map[string]interface{}{"ticket": "OPS-1"},
	}
	if err := payload.WriteFile(path, load); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	var got proto.Load
	if err := payload.ReadFile(path, &got); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(got, load); diff != nil {
		t.Error(diff)
	}

	raw, _ := ioutil.ReadFile(path)
	if string(raw[:3]) != "JCP" || raw[3] != payload.VERSION {
		t.Errorf("header = %q, expected JCP + version %d", raw[:4], payload.VERSION)
	}
}

func TestLargeIntRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "return.p")
	if err := payload.WriteFile(path, map[string]interface{}{"n": int64(9007199254740993)}); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	var got interface{}
	if err := payload.ReadFile(path, &got); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	expect := map[string]interface{}{"n": json.Number("9007199254740993")}
	if diff := deep.Equal(got, expect); diff != nil {
		t.Error(diff)
	}
	n, err := got.(map[string]interface{})["n"].(json.Number).Int64()
	if err != nil || n != 9007199254740993 {
		t.Errorf("got %d, %v; expected 9007199254740993, nil", n, err)
	}
}

func TestUnmarshalErrors(t *testing.T) {
	good, err := payload.Marshal("hello")
	if err != nil {
		t.Fatal(err)
	}

	var s string
	if err := payload.Unmarshal(good, &s); err != nil || s != "hello" {
		t.Errorf("got %q, %v; expected hello, nil", s, err)
	}

	badMagic := append([]byte{}, good...)
	badMagic[0] = 'X'
	if err := payload.Unmarshal(badMagic, &s); err != payload.ErrBadMagic {
		t.Errorf("err = %v, expected ErrBadMagic", err)
	}

	badVersion := append([]byte{}, good...)
	badVersion[3] = 9
	if err := payload.Unmarshal(badVersion, &s); !errors.Is(err, payload.ErrUnsupportedVersion) {
		t.Errorf("err = %v, expected ErrUnsupportedVersion", err)
	}

	if err := payload.Unmarshal(good[:len(good)-1], &s); err != payload.ErrTruncated {
		t.Errorf("err = %v, expected ErrTruncated", err)
	}
	if err := payload.Unmarshal(good[:4], &s); err != payload.ErrTruncated {
		t.Errorf("err = %v, expected ErrTruncated", err)
	}
	if err := payload.Unmarshal(append(good, '!'), &s); err != payload.ErrTrailingData {
		t.Errorf("err = %v, expected ErrTrailingData", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	var v interface{}
	err := payload.ReadFile(filepath.Join(t.TempDir(), "nope"), &v)
	if !payload.IsNotExist(err) {
		t.Errorf("err = %v, expected not exist", err)
	}
}
