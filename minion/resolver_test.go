// Copyright 2017-2019, Square, Inc.

package minion_test

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-test/deep"

	"github.com/square/jobcache/minion"
)

func pkiDir(t *testing.T, ids ...string) string {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "minions"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if err := ioutil.WriteFile(filepath.Join(dir, "minions", id), []byte("key"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestCheckMinionsGlob(t *testing.T) {
	ck := minion.NewCkMinions(pkiDir(t, "web1", "web2", "db1"), nil)

	got, err := ck.CheckMinions("web*", "")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(got, []string{"web1", "web2"}); diff != nil {
		t.Error(diff)
	}

	got, err = ck.CheckMinions("*", "glob")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(got, []string{"db1", "web1", "web2"}); diff != nil {
		t.Error(diff)
	}
}

func TestCheckMinionsListAndPcre(t *testing.T) {
	ck := minion.NewCkMinions("", []string{"web2", "web1", "db1"})

	got, err := ck.CheckMinions("db1, web2,nope", "list")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(got, []string{"db1", "web2"}); diff != nil {
		t.Error(diff)
	}

	got, err = ck.CheckMinions("^web[0-9]$", "pcre")
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if diff := deep.Equal(got, []string{"web1", "web2"}); diff != nil {
		t.Error(diff)
	}
}

func TestCheckMinionsErrors(t *testing.T) {
	ck := minion.NewCkMinions("", []string{"web1"})
	if _, err := ck.CheckMinions("os:Linux", "grain"); !errors.Is(err, minion.ErrUnsupportedTarget) {
		t.Errorf("err = %v, expected ErrUnsupportedTarget", err)
	}
	if _, err := ck.CheckMinions("(", "pcre"); err == nil {
		t.Error("no error, expected invalid pcre error")
	}
}

func TestAcceptedMissingPkiDir(t *testing.T) {
	ck := minion.NewCkMinions(filepath.Join(t.TempDir(), "nope"), nil)
	got, err := ck.Accepted()
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, expected no minions", got)
	}
}
