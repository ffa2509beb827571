package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldz/scheduler-engine/internal/calendar"
)

const slotTimeLayout = "2006-01-02T15:04"

var slotCmd = &cobra.Command{
	Use:   "slot",
	Short: "Insert, move, copy, or delete time slots on a field",
}

var slotInsertCmd = &cobra.Command{
	Use:   "insert FIELD_ID START END RESERVATION_TYPE_ID",
	Short: "Insert a new time slot",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		fs := loadFieldSlots(args[0])

		start, end := mustParseRange(args[1], args[2])
		id, err := fs.Insert(start, end, args[3])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Inserted slot %s\n", id)
	},
}

var slotMoveCmd = &cobra.Command{
	Use:   "move FIELD_ID SLOT_ID NEW_START NEW_END",
	Short: "Move an existing time slot",
	Args:  cobra.ExactArgs(4),
	Run: func(cmd *cobra.Command, args []string) {
		fs := loadFieldSlots(args[0])

		newStart, newEnd := mustParseRange(args[2], args[3])
		if err := fs.Move(args[1], newStart, newEnd); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Moved slot %s\n", args[1])
	},
}

var slotBatchCopyCmd = &cobra.Command{
	Use:   "batch-copy FIELD_ID DST_START SLOT_ID...",
	Short: "Copy a contiguous range of slots to a new start time",
	Args:  cobra.MinimumNArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		fs := loadFieldSlots(args[0])

		dstStart, err := time.Parse(slotTimeLayout, args[1])
		if err != nil {
			log.Fatal(err)
		}
		ids, err := fs.BatchCopy(args[2:], dstStart)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Copied %d slot(s): %s\n", len(ids), strings.Join(ids, ", "))
	},
}

var slotBatchDeleteCmd = &cobra.Command{
	Use:   "batch-delete FIELD_ID SLOT_ID...",
	Short: "Delete a set of time slots",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		fs := loadFieldSlots(args[0])
		removed := fs.BatchDelete(args[1:])
		fmt.Printf("Removed %d slot(s)\n", removed)
	},
}

func init() {
	slotCmd.AddCommand(slotInsertCmd)
	slotCmd.AddCommand(slotMoveCmd)
	slotCmd.AddCommand(slotBatchCopyCmd)
	slotCmd.AddCommand(slotBatchDeleteCmd)
}

func loadFieldSlots(fieldID string) *calendar.FieldSlots {
	st, err := loadStore()
	if err != nil {
		log.Fatal(err)
	}
	slots, err := st.ListTimeSlotsOfField(context.Background(), fieldID, nil)
	if err != nil {
		log.Fatal(err)
	}
	return calendar.NewFieldSlots(fieldID, slots)
}

func mustParseRange(startStr, endStr string) (time.Time, time.Time) {
	start, err := time.Parse(slotTimeLayout, startStr)
	if err != nil {
		log.Fatal(err)
	}
	end, err := time.Parse(slotTimeLayout, endStr)
	if err != nil {
		log.Fatal(err)
	}
	return start, end
}
