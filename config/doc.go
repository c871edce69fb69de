/*
Copyright 2017-2019, Square, Inc.

Package config provides the ability to load config files into predefined
structures that are used by the job cache. The master (jobcached) uses the
Master struct, loaded in master/app.LoadConfig. Defaults() provides every
setting a master needs to run on one host with a local job cache.

Types of config structs provided by this package:

* Master: all of the config needed to run the master

* Server: the configuration for running a webserver (ex: the address the
  server should listen on, the TLS config the server should run with, etc.)

* SQLDb: the configuration for connecting to the mysql job cache

* HTTPClient: the configuration for the client used to ask minions which
  jobs they are running

* RedisDb: the configuration for connecting to a Redis database, used by the
  redis job cache and the redis event publisher

Config files are YAML. A minimal master config:

  server:
    addr: 0.0.0.0:32310
  cachedir: /var/cache/jobcache
  keep_jobs: 24
  pki_dir: /etc/jobcache/pki

Env vars override some settings after the config file is loaded; see
master/server.Boot.
*/
package config
