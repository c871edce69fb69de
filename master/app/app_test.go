// Copyright 2017-2019, Square, Inc.

package app_test

import (
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/square/jobcache/config"
	"github.com/square/jobcache/event"
	"github.com/square/jobcache/master/app"
)

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "master.yaml")
	yaml := `
cachedir: /tmp/jobcache-test
keep_jobs: 48
hash_type: sha256
ext_job_cache: redis
redis:
  address: redis:6379
`
	require.NoError(t, ioutil.WriteFile(file, []byte(yaml), 0644))

	t.Setenv("JOBCACHE_CONFIG", "")
	t.Setenv("JOBCACHE_KEEP_JOBS", "12")

	appCtx := app.Defaults()
	appCtx.ConfigFile = file
	cfg, err := app.LoadConfig(appCtx)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/jobcache-test", cfg.CacheDir)
	assert.Equal(t, 12, cfg.KeepJobs) // env overrides file
	assert.Equal(t, "sha256", cfg.HashType)
	assert.Equal(t, "redis", cfg.ExtJobCache)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, config.DEFAULT_REDIS_PREFIX, cfg.Redis.Prefix) // default kept
	assert.Equal(t, config.DEFAULT_ADDR, cfg.Server.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("JOBCACHE_CONFIG", "")
	appCtx := app.Defaults()
	appCtx.ConfigFile = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := app.LoadConfig(appCtx)
	assert.Error(t, err)
}

func TestMakePublisher(t *testing.T) {
	appCtx := app.Defaults()
	appCtx.Config = config.Defaults()

	p, err := app.MakePublisher(appCtx)
	require.NoError(t, err)
	assert.IsType(t, event.LogPublisher{}, p)

	appCtx.Config.EventPublisher = "kafka"
	_, err = app.MakePublisher(appCtx)
	assert.Error(t, err)
}

func TestCleanOldJobs(t *testing.T) {
	appCtx := app.Defaults()
	appCtx.Cleaners = map[string]app.Cleaner{
		"local_cache": func() (int, error) { return 2, nil },
		"redis":       func() (int, error) { return 1, errors.New("connection refused") },
	}
	removed, err := appCtx.CleanOldJobs()
	assert.Equal(t, 3, removed)
	assert.EqualError(t, err, "redis: connection refused")
}
