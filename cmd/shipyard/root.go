package main

import (
	"github.com/spf13/cobra"
)

var (
	BUILD = "development"

	debug      bool
	loggerMode string
	version    bool
)

var rootCmd = &cobra.Command{
	Use:          "shipyard",
	Short:        "shipyard matrix build and multi-arch release tool",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error { // default to run
		return runPipeline(args)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&debug, "x", "x", false, "logs at debug level")
	rootCmd.PersistentFlags().StringVar(&loggerMode, "logger", "dev", "logger mode: dev|plain")
	rootCmd.PersistentFlags().BoolVar(&version, "version", false, "print build version and exit")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSchemaCmd())
}
