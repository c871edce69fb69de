// Copyright 2017-2019, Square, Inc.

package atomicfile_test

import (
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/square/jobcache/atomicfile"
)

func TestWriteAndRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "return.p")

	if err := atomicfile.Write(path, []byte("v1"), 0644); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if err := atomicfile.Write(path, []byte("v2"), 0644); err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}

	var got []byte
	err := atomicfile.WithReader(path, func(r io.Reader) error {
		var err error
		got, err = ioutil.ReadAll(r)
		return err
	})
	if err != nil {
		t.Fatalf("err = %s, expected nil", err)
	}
	if string(got) != "v2" {
		t.Errorf("got %s, expected v2", got)
	}

	// No temp files left behind
	files, _ := ioutil.ReadDir(dir)
	if len(files) != 1 {
		t.Errorf("%d files in dir, expected 1", len(files))
	}
}

func TestWriteMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "return.p")
	if err := atomicfile.Write(path, []byte("x"), 0644); err == nil {
		t.Error("no error, expected an error for missing parent dir")
	}
}

func TestConcurrentWritersNeverTorn(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".load.p")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			data := []byte(fmt.Sprintf("writer-%02d-%0512d", i, i))
			if err := atomicfile.Write(path, data, 0644); err != nil {
				t.Errorf("err = %s, expected nil", err)
			}
		}(i)
	}
	wg.Wait()

	got, err := ioutil.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var n int
	if _, err := fmt.Sscanf(string(got[:9]), "writer-%02d", &n); err != nil {
		t.Fatalf("torn content: %q", got[:9])
	}
	if string(got) != fmt.Sprintf("writer-%02d-%0512d", n, n) {
		t.Errorf("content of writer %d is not complete", n)
	}

	files, _ := ioutil.ReadDir(dir)
	for _, f := range files {
		if atomicfile.IsTemp(f.Name()) {
			t.Errorf("temp file %s left behind", f.Name())
		}
	}
}

func TestWithReaderPropagatesError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	atomicfile.Write(path, []byte("x"), 0644)
	forced := errors.New("forced")
	err := atomicfile.WithReader(path, func(r io.Reader) error { return forced })
	if err != forced {
		t.Errorf("err = %v, expected %v", err, forced)
	}
	err = atomicfile.WithReader(path+"-missing", func(r io.Reader) error { return nil })
	if !os.IsNotExist(err) {
		t.Errorf("err = %v, expected not exist", err)
	}
}

func TestExists(t *testing.T) {
	dir := t.TempDir()
	if atomicfile.Exists(filepath.Join(dir, "nope")) {
		t.Error("Exists = true, expected false")
	}
	if !atomicfile.Exists(dir) {
		t.Error("Exists = false, expected true")
	}
}
