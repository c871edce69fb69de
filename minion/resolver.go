// Copyright 2017-2019, Square, Inc.

// Package minion provides the master's view of its minions: which minions a
// job target matches, and which jobs minions are running right now.
package minion

import (
	"errors"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrUnsupportedTarget = errors.New("unsupported target type")
)

// A TargetResolver expands a job target into the minion ids it matches.
type TargetResolver interface {
	CheckMinions(tgt, tgtType string) ([]string, error)
}

// CkMinions resolves targets against accepted minions. Accepted minions are
// the file names in <pkiDir>/minions, or a static list if pkiDir is empty.
type CkMinions struct {
	pkiDir string
	static []string
}

func NewCkMinions(pkiDir string, static []string) *CkMinions {
	return &CkMinions{
		pkiDir: pkiDir,
		static: static,
	}
}

// Accepted returns the sorted ids of all accepted minions.
func (c *CkMinions) Accepted() ([]string, error) {
	if c.pkiDir == "" {
		ids := append([]string{}, c.static...)
		sort.Strings(ids)
		return ids, nil
	}
	files, err := ioutil.ReadDir(filepath.Join(c.pkiDir, "minions"))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() || strings.HasPrefix(f.Name(), ".") {
			continue
		}
		ids = append(ids, f.Name())
	}
	sort.Strings(ids) // ReadDir sorts, static list does not
	return ids, nil
}

// CheckMinions returns the accepted minions matched by tgt. Supported target
// types are glob (default), list (comma-separated), and pcre.
func (c *CkMinions) CheckMinions(tgt, tgtType string) ([]string, error) {
	accepted, err := c.Accepted()
	if err != nil {
		return nil, err
	}

	var match func(string) bool
	switch tgtType {
	case "", "glob":
		if _, err := path.Match(tgt, ""); err != nil {
			return nil, fmt.Errorf("invalid glob %q: %s", tgt, err)
		}
		match = func(id string) bool {
			ok, _ := path.Match(tgt, id)
			return ok
		}
	case "list":
		want := map[string]bool{}
		for _, id := range strings.Split(tgt, ",") {
			want[strings.TrimSpace(id)] = true
		}
		match = func(id string) bool { return want[id] }
	case "pcre":
		re, err := regexp.Compile(tgt)
		if err != nil {
			return nil, fmt.Errorf("invalid pcre %q: %s", tgt, err)
		}
		match = re.MatchString
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTarget, tgtType)
	}

	minions := []string{}
	for _, id := range accepted {
		if match(id) {
			minions = append(minions, id)
		}
	}
	return minions, nil
}
