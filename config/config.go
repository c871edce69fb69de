// Copyright 2017-2019, Square, Inc.

package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v2"
)

const (
	DEFAULT_CONFIG_FILE   = "/etc/jobcache/master.yaml"
	DEFAULT_ADDR          = "127.0.0.1:32310"
	DEFAULT_CACHE_DIR     = "/var/cache/jobcache"
	DEFAULT_KEEP_JOBS     = 24 // hours
	DEFAULT_HASH_TYPE     = "md5"
	DEFAULT_TIMEOUT       = 5  // seconds
	DEFAULT_LOOP_INTERVAL = 60 // seconds
	DEFAULT_EVENT_TYPE    = "log"
	DEFAULT_REDIS_PREFIX  = "jobcache"
)

///////////////////////////////////////////////////////////////////////////////
// High-Level Config Structs
///////////////////////////////////////////////////////////////////////////////

// Master is the config used by the job cache master (jobcached). This is read
// from in master/app.LoadConfig.
type Master struct {
	// The config that the master web server will run with.
	Server Server `yaml:"server"`

	// Root of the cache. Jobs are stored under <cachedir>/jobs.
	CacheDir string `yaml:"cachedir"`

	// Hours to keep jobs in the cache. 0 disables the sweeper.
	KeepJobs int `yaml:"keep_jobs"`

	// Hash used to shard job directories: md5, sha1, sha224, sha256, sha384,
	// sha512, or xxhash. Changing it orphans existing jobs.
	HashType string `yaml:"hash_type"`

	// Directory holding one sqlite database per named queue. Defaults to
	// <cachedir>/queues.
	QueueDir string `yaml:"queue_dir"`

	// External job cache used for all queries, if set. Choices are:
	// local_cache, mysql, redis.
	ExtJobCache string `yaml:"ext_job_cache"`

	// External job cache used for queries when neither ext_job_cache nor a
	// per-query source is set.
	MasterExtJobCache string `yaml:"master_ext_job_cache"`

	// Seconds to wait for minions to report running jobs.
	Timeout int `yaml:"timeout"`

	// Seconds between sweeper runs.
	LoopInterval int `yaml:"loop_interval"`

	// Seconds to cache job listings. 0 disables the cache.
	JobListCacheTTL int `yaml:"job_list_cache_ttl"`

	// Directory with accepted minion keys (<pki_dir>/minions/<id>). Used to
	// resolve job targets into a minion list.
	PkiDir string `yaml:"pki_dir"`

	// Minion ids to target when pki_dir is not set.
	Minions []string `yaml:"minions"`

	// Base URL of each minion's API, keyed by minion id. Used to ask minions
	// which jobs they are running.
	MinionAPI map[string]string `yaml:"minion_api"`

	// The config used to talk to minion APIs.
	MinionClient HTTPClient `yaml:"minion_client"`

	// The config for the mysql job cache (ext_job_cache: mysql).
	MySQL SQLDb `yaml:"mysql"`

	// The config for the redis job cache (ext_job_cache: redis) and the redis
	// event publisher.
	Redis RedisDb `yaml:"redis"`

	// Where queue events are published. Choices are: log, redis.
	EventPublisher string `yaml:"event_publisher"`
}

///////////////////////////////////////////////////////////////////////////////
// Config Components
///////////////////////////////////////////////////////////////////////////////

// Configuration for a web server.
type Server struct {
	// The address the server will listen on (ex: "127.0.0.1:80").
	Addr string `yaml:"addr"`

	// The TLS config used by the server.
	TLS TLS `yaml:"tls"`
}

// Configuration for an HTTP client.
type HTTPClient struct {
	// The TLS config used by the client.
	TLS TLS `yaml:"tls"`
}

// Configuration for a SQL database.
type SQLDb struct {
	// The full Data Source Name (DSN) of the sql database (see
	// https://github.com/go-sql-driver/mysql#dsn-data-source-name).
	//
	// Note: if a TLS config is specified within the SQLDb struct, it
	// will automatically get appended to the DSN (you don't have to
	// include it in the string). Also, "parseTime=true" will always be
	// appended to the DSN, so you don't need to add that either.
	DSN string `yaml:"dsn"`

	// The TLS config used to connect to the sql database.
	TLS TLS `yaml:"tls"`
}

// Configuration for a Redis database.
type RedisDb struct {
	// The network for the redis server (ex: "tcp", "unix")
	Network string `yaml:"network"`

	// The address for the redis server (ex: "localhost:6379", "/path/to/redis.sock")
	Address string `yaml:"address"`

	// The prefix used for redis keys and event channels.
	Prefix string `yaml:"prefix"`

	// The timeout length (in seconds) for connections.
	IdleTimeout int `yaml:"idle_timeout"`

	// The maximum number of idle connections in the redis pool.
	MaxIdle int `yaml:"max_idle"`
}

// TLS configuration.
type TLS struct {
	// The certificate file to use.
	CertFile string `yaml:"cert_file"`

	// The key file to use.
	KeyFile string `yaml:"key_file"`

	// The CA file to use.
	CAFile string `yaml:"ca_file"`
}

///////////////////////////////////////////////////////////////////////////////
// Defaults
///////////////////////////////////////////////////////////////////////////////

// Defaults returns the default master config.
func Defaults() Master {
	return Master{
		Server: Server{
			Addr: DEFAULT_ADDR,
		},
		CacheDir:     DEFAULT_CACHE_DIR,
		KeepJobs:     DEFAULT_KEEP_JOBS,
		HashType:     DEFAULT_HASH_TYPE,
		Timeout:      DEFAULT_TIMEOUT,
		LoopInterval: DEFAULT_LOOP_INTERVAL,
		Redis: RedisDb{
			Network:     "tcp",
			Address:     "localhost:6379",
			Prefix:      DEFAULT_REDIS_PREFIX,
			IdleTimeout: 240,
			MaxIdle:     3,
		},
		EventPublisher: DEFAULT_EVENT_TYPE,
	}
}

// JobsDir returns the root of the job directory layout.
func (m Master) JobsDir() string {
	return filepath.Join(m.CacheDir, "jobs")
}

// Queues returns the queue directory, defaulting to <cachedir>/queues.
func (m Master) Queues() string {
	if m.QueueDir != "" {
		return m.QueueDir
	}
	return filepath.Join(m.CacheDir, "queues")
}

///////////////////////////////////////////////////////////////////////////////
// Loading Config
///////////////////////////////////////////////////////////////////////////////

// Load loads a configuration file into the struct pointed to by the
// configStruct argument.
func Load(configFile string, configStruct interface{}) error {
	// Make sure the file exists.
	_, err := os.Stat(configFile)
	if err != nil {
		return err
	}

	// Read the file.
	data, err := ioutil.ReadFile(configFile)
	if err != nil {
		return err
	}

	// Unmarshal the contents of the file into the provided struct.
	err = yaml.Unmarshal(data, configStruct)
	if err != nil {
		return err
	}

	return nil
}

// Env returns the value of the environment variable if set, else def.
func Env(varName, def string) string {
	val := os.Getenv(varName)
	if val != "" {
		return val
	}
	return def
}

// EnvInt is Env for ints. Values that do not parse are ignored.
func EnvInt(varName string, def int) int {
	val := os.Getenv(varName)
	if val == "" {
		return def
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return n
}
