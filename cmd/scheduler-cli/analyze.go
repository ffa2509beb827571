package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldz/scheduler-engine/internal/analyzer"
	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/internal/store"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the Pre-Schedule Analyzer against a store file",
	Run: func(cmd *cobra.Command, args []string) {
		matchesToPlay, _ := cmd.Flags().GetInt("matches")
		interregional, _ := cmd.Flags().GetBool("interregional")

		st, err := loadStore()
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		input, err := buildAnalyzerInput(ctx, st)
		if err != nil {
			log.Fatal(err)
		}

		report := analyzer.Analyze(analyzer.Config{MatchesToPlay: matchesToPlay, Interregional: interregional}, input)

		if outputFmt == "json" {
			_ = printOutput(report)
			return
		}
		printReportTable(report)
	},
}

func init() {
	analyzeCmd.Flags().Int("matches", 1, "matches_to_play (1-7)")
	analyzeCmd.Flags().Bool("interregional", false, "treat targets as interregional")
}

func buildAnalyzerInput(ctx context.Context, st store.EntityStore) (analyzer.Input, error) {
	regions, err := st.ListRegions(ctx)
	if err != nil {
		return analyzer.Input{}, err
	}
	groups, err := st.ListTeamGroups(ctx)
	if err != nil {
		return analyzer.Input{}, err
	}
	targets, err := st.ListTargets(ctx)
	if err != nil {
		return analyzer.Input{}, err
	}

	in := analyzer.Input{
		Targets:          targets,
		Groups:           groups,
		TimeSlots:        make(map[string][]model.TimeSlot),
		ReservationTypes: make(map[string]model.ReservationType),
	}

	for _, r := range regions {
		teams, err := st.ListTeamsOfRegion(ctx, r.ID)
		if err != nil {
			return analyzer.Input{}, err
		}
		in.Teams = append(in.Teams, teams...)

		fields, err := st.ListFieldsOfRegion(ctx, r.ID)
		if err != nil {
			return analyzer.Input{}, err
		}
		in.Fields = append(in.Fields, fields...)

		for _, f := range fields {
			slots, err := st.ListTimeSlotsOfField(ctx, f.ID, nil)
			if err != nil {
				return analyzer.Input{}, err
			}
			in.TimeSlots[f.ID] = slots

			overrides, err := st.ListOverridesForField(ctx, f.ID)
			if err != nil {
				return analyzer.Input{}, err
			}
			in.Overrides = append(in.Overrides, overrides...)

			for _, s := range slots {
				if _, ok := in.ReservationTypes[s.ReservationTypeID]; ok {
					continue
				}
				rt, err := st.ResolveReservationType(ctx, s.ReservationTypeID)
				if err != nil {
					return analyzer.Input{}, err
				}
				in.ReservationTypes[s.ReservationTypeID] = rt
			}
		}
	}

	return in, nil
}

func printReportTable(report analyzer.PreScheduleReport) {
	fmt.Println("Pre-Schedule Report")
	fmt.Println(strings.Repeat("-", 60))
	fmt.Printf("Total required: %d   Total supplied: %d\n", report.TotalMatchesRequired, report.TotalMatchesSupplied)

	if len(report.TargetHasDuplicates) > 0 {
		fmt.Printf("Duplicate targets: %s\n", strings.Join(report.TargetHasDuplicates, ", "))
	}
	if len(report.EmptyTargets) > 0 {
		fmt.Printf("Empty targets:     %s\n", strings.Join(report.EmptyTargets, ", "))
	}
	if len(report.ImpossibleTargets) > 0 {
		fmt.Printf("Impossible targets: %s\n", strings.Join(report.ImpossibleTargets, ", "))
	}

	fmt.Println()
	fmt.Printf("%-24s %-12s %-12s\n", "TARGET", "REQUIRED", "SUPPLIED")
	for _, tmc := range report.TargetMatchCount {
		covered := "ok"
		if !tmc.Supplied.Covers(tmc.Required) {
			covered = "UNDERSUPPLIED"
		}
		fmt.Printf("%-24s %-12d %-12d %s\n", tmc.Target.ID, tmc.Required.Sum(), tmc.Supplied.Sum(), covered)
	}
}
