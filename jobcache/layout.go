// Copyright 2017-2019, Square, Inc.

package jobcache

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"

	"github.com/square/jobcache/payload"
	"github.com/square/jobcache/proto"
)

// Files in a job directory.
const (
	LOAD_P     = ".load.p"    // job load (proto.Load)
	MINIONS_P  = ".minions.p" // minions targeted at publish time
	RETURN_P   = "return.p"   // in <minion>/: the minion's return
	OUT_P      = "out.p"      // in <minion>/: the outputter name
	JID_MARKER = "jid"        // plain-text jid, read by the sweeper
	NOCACHE    = "nocache"    // sentinel: do not record returns
)

var hashes = map[string]func() hash.Hash{
	"md5":    md5.New,
	"sha1":   sha1.New,
	"sha224": sha256.New224,
	"sha256": sha256.New,
	"sha384": sha512.New384,
	"sha512": sha512.New,
	"xxhash": func() hash.Hash { return xxhash.New() },
}

// Layout maps jids to job directories: <root>/<h[:2]>/<h[2:]> where h is the
// hex digest of the jid. The mapping is pure, so every process with the same
// root and hash type agrees on where a job lives.
type Layout struct {
	root     string
	hashType string
	newHash  func() hash.Hash
}

// NewLayout returns a Layout rooted at root. An empty hashType means md5.
func NewLayout(root, hashType string) (Layout, error) {
	if hashType == "" {
		hashType = "md5"
	}
	h, ok := hashes[hashType]
	if !ok {
		return Layout{}, fmt.Errorf("unsupported hash_type %q", hashType)
	}
	return Layout{
		root:     root,
		hashType: hashType,
		newHash:  h,
	}, nil
}

func (l Layout) Root() string {
	return l.root
}

func (l Layout) HashType() string {
	return l.hashType
}

// JidDir returns the job directory for jid. It does not touch the filesystem.
func (l Layout) JidDir(jid string) string {
	h := l.newHash()
	h.Write([]byte(jid))
	sum := hex.EncodeToString(h.Sum(nil))
	return filepath.Join(l.root, sum[:2], sum[2:])
}

// EnsureJidDir returns the job directory for jid, creating it and its parents
// if they do not exist.
func (l Layout) EnsureJidDir(jid string) (string, error) {
	dir := l.JidDir(jid)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// --------------------------------------------------------------------------

// Entry is one job found by Walk.
type Entry struct {
	Jid  string
	Load proto.Load
	Dir  string // full path of the job directory
}

// WalkFunc is called for every job with a readable load. Returning an error
// stops the walk and Walk returns that error.
type WalkFunc func(Entry) error

// Walk calls fn for every job under the root. Each call re-reads the disk.
// Directories without a load are skipped, as are loads that cannot be decoded.
// A missing root is not an error: there are no jobs.
func (l Layout) Walk(fn WalkFunc) error {
	return l.walkDirs(func(dir string) error {
		var load proto.Load
		if err := payload.ReadFile(filepath.Join(dir, LOAD_P), &load); err != nil {
			if !payload.IsNotExist(err) {
				log.Warnf("skipping job dir %s: cannot read load: %s", dir, err)
			}
			return nil
		}
		j := load.Jid
		if j == "" {
			j = readMarker(dir)
		}
		if j == "" {
			log.Debugf("skipping job dir %s: load has no jid", dir)
			return nil
		}
		return fn(Entry{Jid: j, Load: load, Dir: dir})
	})
}

// walkDirs calls fn with every <root>/<top>/<leaf> directory.
func (l Layout) walkDirs(fn func(dir string) error) error {
	tops, err := ioutil.ReadDir(l.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, top := range tops {
		if !top.IsDir() {
			continue
		}
		topPath := filepath.Join(l.root, top.Name())
		leaves, err := ioutil.ReadDir(topPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed concurrently
			}
			return err
		}
		for _, leaf := range leaves {
			if !leaf.IsDir() {
				continue
			}
			if err := fn(filepath.Join(topPath, leaf.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// readMarker returns the jid in the marker file of dir, or "" if none.
func readMarker(dir string) string {
	bytes, err := ioutil.ReadFile(filepath.Join(dir, JID_MARKER))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(bytes))
}
