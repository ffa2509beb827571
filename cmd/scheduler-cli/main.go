// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command scheduler-cli is a developer-facing surface over the same
// contracts a desktop UI would call: the Pre-Schedule Analyzer, the
// end-to-end scheduling run, profile administration, and the calendar
// slot algebra.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = ""
	Commit    = ""

	serverURL string
	storeFile string
	token     string
	outputFmt string
	debug     bool

	rootCmd = &cobra.Command{
		Use:     "scheduler-cli",
		Short:   "CLI for the youth-sports scheduling engine",
		Long:    `A command-line interface for analyzing, running, and inspecting match schedules.`,
		Version: Version,
	}
)

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildTime)

	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "scheduler server websocket URL (env: SCHEDULER_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&storeFile, "store-file", "", "path to a JSON fixture of regions/teams/fields/targets (required)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT bearer token (env: SCHEDULER_TOKEN)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "output format: table, json")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(slotCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scheduler-cli version %s\n", Version)
		if BuildTime != "" {
			fmt.Printf("Build Time: %s\n", BuildTime)
		}
		if Commit != "" {
			fmt.Printf("Commit:     %s\n", Commit)
		}
	},
}

// printOutput renders data per --output; "table" is left to each command
// since table shape differs per data type, matching the teacher CLI.
func printOutput(data interface{}) error {
	if outputFmt != "json" {
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
