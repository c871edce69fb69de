// Copyright 2017-2019, Square, Inc.

// jobcached runs the job cache master: the returner and query API, the named
// queues, and the job cache sweeper.
package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/square/jobcache/config"
	"github.com/square/jobcache/master/app"
	"github.com/square/jobcache/master/server"
	"github.com/square/jobcache/version"
)

var (
	configFile string
	debug      bool
)

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "jobcached",
		Short:        "jobcached: job cache and queue master",
		Version:      version.Version(),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DEFAULT_CONFIG_FILE, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(buildRunCommand())
	rootCmd.AddCommand(buildCleanCommand())
	rootCmd.AddCommand(buildVersionCommand())
	return rootCmd
}

func boot() (*server.Server, error) {
	appCtx := app.Defaults()
	appCtx.ConfigFile = configFile
	s := server.NewServer(appCtx)
	if err := s.Boot(); err != nil {
		return nil, err
	}
	return s, nil
}

func buildRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the master API and job cache sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := boot()
			if err != nil {
				return err
			}
			return s.Run(true)
		},
	}
}

func buildCleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove expired and corrupt jobs from every job cache once",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := boot()
			if err != nil {
				return err
			}
			removed, err := s.CleanOldJobs()
			fmt.Printf("removed %d jobs\n", removed)
			return err
		},
	}
}

func buildVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("jobcached " + version.Version())
		},
	}
}
