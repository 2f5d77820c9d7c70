// Command racetimer runs the authoritative race clock.
//
// Usage:
//
//	racetimer serve [--config racetimer.yaml] [--interactive]
//	racetimer ports
//	racetimer log view [--direction in|out|internal] [--category line|control|state|error] <file.rtlog>
//	racetimer log stats <file.rtlog>
//	racetimer version
//
// Configuration is read from the optional YAML file, then .env in the working
// directory, then RACETIMER_* environment variables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version can be set with the Go linker.
	Version = "dev"

	// AppName is the name shown in help text.
	AppName = "racetimer"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           AppName,
		Short:         "Authoritative race clock with serial peripheral link",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")

	root.AddCommand(
		newServeCmd(),
		newPortsCmd(),
		newLogCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", AppName, Version)
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
