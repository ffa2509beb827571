package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldz/scheduler-engine/internal/analyzer"
	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/internal/orchestrator"
	"github.com/fieldz/scheduler-engine/pkg/auth"
	schedcontext "github.com/fieldz/scheduler-engine/pkg/context"
	"github.com/fieldz/scheduler-engine/pkg/logging"
	"github.com/fieldz/scheduler-engine/pkg/retry"
	"github.com/fieldz/scheduler-engine/pkg/streaming"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run or inspect scheduling requests",
}

var scheduleRunCmd = &cobra.Command{
	Use:   "run NAME",
	Short: "Run the Orchestrator end-to-end against a local stream server",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		matchesToPlay, _ := cmd.Flags().GetInt("matches")
		interregional, _ := cmd.Flags().GetBool("interregional")
		postSeason, _ := cmd.Flags().GetBool("post-season")

		url := serverURL
		if url == "" {
			url = os.Getenv("SCHEDULER_SERVER_URL")
		}
		if url == "" {
			url = "ws://localhost:8080/ws/schedule"
		}

		st, err := loadStore()
		if err != nil {
			log.Fatal(err)
		}

		// OpWatch carries no default timeout (spec section 5: a stream's own
		// idle/deadline bounds apply instead of a fixed request timeout).
		ctx, cancel := schedcontext.WithTimeout(context.Background(), schedcontext.OpWatch, nil)
		defer cancel()

		targets, err := st.ListTargets(ctx)
		if err != nil {
			log.Fatal(err)
		}

		phases := []model.SeasonPhase{model.SeasonPhaseNormal}
		if postSeason {
			phases = []model.SeasonPhase{model.SeasonPhasePost}
		}

		logger := logging.NewLogger(logging.DefaultConfig())
		o := orchestrator.New(st, &wsDialer{url: url, auth: authProvider(), logger: logger}, logger)

		result, err := o.Run(ctx, orchestrator.Request{
			AnalyzerConfig: analyzer.Config{MatchesToPlay: matchesToPlay, Interregional: interregional},
			Targets:        targets,
			Phases:         phases,
			ScheduleName:   args[0],
		})
		if err != nil {
			log.Fatal(err)
		}

		if outputFmt == "json" {
			_ = printOutput(result)
			return
		}
		printScheduleTable(*result)
	},
}

func init() {
	scheduleRunCmd.Flags().Int("matches", 1, "matches_to_play (1-7)")
	scheduleRunCmd.Flags().Bool("interregional", false, "treat targets as interregional")
	scheduleRunCmd.Flags().Bool("post-season", false, "schedule the post-season phase instead of the normal season")
	scheduleCmd.AddCommand(scheduleRunCmd)
}

func authProvider() streaming.AuthHeaderSetter {
	if token != "" {
		return auth.NewTokenAuth(token)
	}
	if t := os.Getenv("SCHEDULER_TOKEN"); t != "" {
		return auth.NewTokenAuth(t)
	}
	return auth.NewNoAuth()
}

// wsDialer adapts pkg/streaming.Dial to the orchestrator.Dialer contract,
// retrying the handshake with backoff since a server restart or transient
// network blip shouldn't fail a whole scheduling run.
type wsDialer struct {
	url    string
	auth   streaming.AuthHeaderSetter
	logger logging.Logger
}

func (d *wsDialer) Dial(ctx context.Context) (orchestrator.StreamClient, error) {
	backoff := retry.NewExponentialBackoff()

	var lastErr error
	for attempt := 0; ; attempt++ {
		conn, err := streaming.Dial(ctx, d.url, d.auth, d.logger)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		delay, ok := backoff.NextDelay(attempt)
		if !ok {
			return nil, fmt.Errorf("dial %s: %w", d.url, lastErr)
		}
		d.logger.Warn("stream dial failed, retrying", "attempt", attempt, "delay", delay, "err", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func printScheduleTable(result orchestrator.Result) {
	fmt.Printf("Schedule: %s (%s)\n", result.Schedule.Name, result.Schedule.ID)
	fmt.Printf("%-14s %-20s %-10s %-10s\n", "FIELD", "START", "HOME", "AWAY")
	for _, r := range result.Schedule.Reservations {
		fmt.Printf("%-14s %-20s %-10s %-10s\n", r.FieldID, r.Start.Format("2006-01-02 15:04"), r.Booking.HomeTeamID, r.Booking.AwayTeamID)
	}
	for _, d := range result.Diagnostics {
		fmt.Printf("warning: unique_id %d left %d pair(s) unplaced\n", d.UniqueID, d.Count)
	}
}
