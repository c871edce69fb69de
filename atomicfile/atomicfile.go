// Copyright 2017-2019, Square, Inc.

// Package atomicfile writes files so that readers see either the old content
// or the new content, never a partial write. A file is written to a temp
// sibling in the same directory and renamed over the destination.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/square/jobcache/util"
)

const tmpSuffix = ".tmp"

// Write writes data to path atomically. The temp file is removed if any step
// fails. The destination directory must exist.
func Write(path string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	// xid makes the temp name unique across concurrent writers and processes.
	tmp := filepath.Join(dir, "."+base+"."+util.XID().String()+tmpSuffix)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %s", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %s", tmp, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// WithReader opens path for reading and calls fn with it. The file is closed
// when fn returns or panics.
func WithReader(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

// Exists returns true if path exists. Errors other than not-exist are treated
// as existing so callers do not overwrite something they cannot stat.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}

// IsTemp returns true if name is a temp file made by Write.
func IsTemp(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tmpSuffix)
}
