package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - injected at build time via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:     "taskctl",
		Short:   "Task orchestrator - drives an agent against a markdown Kanban board",
		Version: version,
		Long: `taskctl reconciles a directory of markdown task files with a desired
state: at most one task In Progress at a time, Epics run to completion
before unrelated work, and an external agent subprocess does the work.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
