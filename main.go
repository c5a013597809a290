// Package main provides the meetflow service entry point.
// meetflow coordinates the lifecycle of video meetings: webhook ingestion,
// the meeting state machine, the transcript summarization pipeline, and the
// post-meeting conversational responder.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/meetflow/cmd"
	"github.com/otherjamesbrown/meetflow/pkg/buildinfo"
)

var rootCmd = &cobra.Command{
	Use:   "meetflow",
	Short: "Meeting lifecycle coordination service",
	Long: `meetflow coordinates the lifecycle of video meetings.

It ingests webhook events from the video platform, drives the meeting
state machine (upcoming, active, processing, completed), runs the
transcript summarization pipeline, and answers follow-up questions about
completed meetings in chat.

COMMANDS:
  meetflow serve     Run the webhook server (optionally with workers)
  meetflow worker    Run the transcript pipeline workers
  meetflow migrate   Apply database migrations
  meetflow version   Print version information`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(c *cobra.Command, args []string) error {
		info := buildinfo.Get("meetflow")
		out := c.OutOrStdout()
		fmt.Fprintf(out, "meetflow version %s\n", info.Version)
		fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
		fmt.Fprintf(out, "  built:      %s\n", info.BuildTime)
		fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cmd.NewServeCommand())
	rootCmd.AddCommand(cmd.NewWorkerCommand())
	rootCmd.AddCommand(cmd.NewMigrateCommand())
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
