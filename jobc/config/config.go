// Copyright 2017-2019, Square, Inc.

// Package config handles config files, --config, and env vars at startup.
package config

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/alexflint/go-arg"
	"gopkg.in/yaml.v2"
)

const (
	DEFAULT_CONFIG_FILES = "/etc/jobc/jobc.yaml,~/.jobc.yaml"
	DEFAULT_ADDR         = "http://127.0.0.1:32310"
	DEFAULT_TIMEOUT      = 5000 // 5s
)

// Options represents typical command line options: --addr, --config, etc.
type Options struct {
	Addr    string `arg:"env" yaml:"addr"`
	Config  string `arg:"env"`
	Source  string `arg:"env" yaml:"source"` // external job cache to read, optional
	Output  string `yaml:"output"`           // json (default) or yaml
	Debug   bool
	Help    bool
	Ping    bool
	Timeout uint `arg:"env" yaml:"timeout"`
	Version bool
	CA      string `yaml:"ca"`
	Cert    string `yaml:"cert"`
	Key     string `yaml:"key"`
}

// Command represents a command (list-jobs, queue-pop, etc.) and its values.
type Command struct {
	Cmd  string   `arg:"positional"`
	Args []string `arg:"positional"`
}

// CommandLine represents options (--addr, etc.) and commands (active, etc.).
// The caller is expected to copy and use the embedded structs separately, like:
//
//   var o config.Options = cmdLine.Options
//   var c config.Command = cmdLine.Command
type CommandLine struct {
	Options
	Command
}

// ParseCommandLine parses the command line and env vars. Command line options
// override env vars. Default options are used unless overridden by env vars or
// command line options. Defaults are usually parsed from config files.
func ParseCommandLine(def Options, args []string) CommandLine {
	var c CommandLine
	c.Options = def
	p, err := arg.NewParser(arg.Config{Program: "jobc"}, &c)
	if err != nil {
		fmt.Printf("arg.NewParser: %s", err)
		os.Exit(1)
	}
	if err := p.Parse(args); err != nil {
		switch err {
		case arg.ErrHelp:
			c.Help = true
		case arg.ErrVersion:
			c.Version = true
		default:
			fmt.Printf("Error parsing command line: %s\n", err)
			os.Exit(1)
		}
	}
	return c
}

// ParseConfigFiles applies the comma-separated list of YAML config files in
// order. Missing or invalid files are skipped.
func ParseConfigFiles(files string, debug bool) Options {
	def := Options{
		Addr:    DEFAULT_ADDR,
		Timeout: DEFAULT_TIMEOUT,
	}
	for _, file := range strings.Split(files, ",") {
		if file == "" {
			continue
		}
		// ~/ is a shell expansion, not something Go knows about
		if strings.HasPrefix(file, "~/") {
			usr, err := user.Current()
			if err != nil {
				continue
			}
			file = filepath.Join(usr.HomeDir, file[2:])
		}

		absfile, err := filepath.Abs(file)
		if err != nil {
			if debug {
				log.Printf("filepath.Abs(%s) error: %s", file, err)
			}
			continue
		}

		bytes, err := ioutil.ReadFile(absfile)
		if err != nil {
			if debug {
				log.Printf("Cannot read config file %s: %s", file, err)
			}
			continue
		}

		var o Options
		if err := yaml.Unmarshal(bytes, &o); err != nil {
			if debug {
				log.Printf("Invalid YAML in config file %s: %s", file, err)
			}
			continue
		}

		// Set options from this config file only if they're set
		if debug {
			log.Printf("Applying config file %s (%s)", file, absfile)
		}
		if o.Addr != "" {
			def.Addr = o.Addr
		}
		if o.Source != "" {
			def.Source = o.Source
		}
		if o.Output != "" {
			def.Output = o.Output
		}
		if o.Timeout != 0 {
			def.Timeout = o.Timeout
		}
		if o.CA != "" {
			def.CA = o.CA
		}
		if o.Cert != "" {
			def.Cert = o.Cert
		}
		if o.Key != "" {
			def.Key = o.Key
		}
	}
	return def
}
