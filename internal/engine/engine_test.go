package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldz/scheduler-engine/internal/model"
)

func team(id uint32) model.WireTeam { return model.WireTeam{UniqueID: id} }

func simpleInput(uniqueID uint32, teamIDs []uint32, concurrency uint32) model.ScheduledInput {
	teams := make([]model.WireTeam, len(teamIDs))
	for i, id := range teamIDs {
		teams[i] = team(id)
	}
	return model.ScheduledInput{
		UniqueID:   uniqueID,
		TeamGroups: []model.PlayableTeamCollection{{Teams: teams}},
		Fields: []model.WireField{
			{UniqueID: 100, TimeSlots: []model.WireTimeSlot{
				{Start: 0, End: 3600_000, Concurrency: concurrency},
				{Start: 3600_000, End: 7200_000, Concurrency: concurrency},
			}},
		},
	}
}

func TestRun_Determinism(t *testing.T) {
	input := simpleInput(42, []uint32{1, 2, 3, 4}, 2)

	r1 := Run(input)
	r2 := Run(input)

	require.NoError(t, r1.Err)
	require.NoError(t, r2.Err)
	assert.Equal(t, r1.Output, r2.Output)
}

func TestRun_NoOverlappingReservationsBeyondCapacity(t *testing.T) {
	input := simpleInput(1, []uint32{1, 2, 3, 4, 5, 6}, 2)
	r := Run(input)
	require.NoError(t, r.Err)

	byStart := map[int64]int{}
	for _, res := range r.Output.TimeSlots {
		byStart[res.Start]++
	}
	for start, count := range byStart {
		assert.LessOrEqual(t, count, 2, "slot at %d exceeded its lane capacity", start)
	}
}

func TestRun_MalformedInput_DuplicateTeamID(t *testing.T) {
	input := model.ScheduledInput{
		UniqueID:   1,
		TeamGroups: []model.PlayableTeamCollection{{Teams: []model.WireTeam{team(1), team(1)}}},
	}
	r := Run(input)
	require.Error(t, r.Err)
}

func TestRun_MalformedInput_EndBeforeStart(t *testing.T) {
	input := model.ScheduledInput{
		UniqueID: 1,
		Fields: []model.WireField{
			{UniqueID: 1, TimeSlots: []model.WireTimeSlot{{Start: 100, End: 50, Concurrency: 1}}},
		},
	}
	r := Run(input)
	require.Error(t, r.Err)
}

func TestRun_CoachConflictNeverOverlaps(t *testing.T) {
	input := simpleInput(7, []uint32{1, 2, 3, 4}, 1)
	input.Fields[0].TimeSlots[0].Concurrency = 2
	input.CoachConflicts = []model.WireCoachConflict{
		{UniqueID: 1, Teams: []model.WireTeam{team(1), team(2)}},
	}

	r := Run(input)
	require.NoError(t, r.Err)

	for _, a := range r.Output.TimeSlots {
		for _, b := range r.Output.TimeSlots {
			if a.Start != b.Start {
				continue
			}
			aHasOne := a.Booking.HomeTeam.UniqueID == 1 || a.Booking.AwayTeam.UniqueID == 1
			bHasTwo := b.Booking.HomeTeam.UniqueID == 2 || b.Booking.AwayTeam.UniqueID == 2
			if aHasOne && bHasTwo {
				t.Fatalf("coach conflict violated: teams 1 and 2 share an overlapping lane at start=%d", a.Start)
			}
		}
	}
}

func TestRun_PracticeInputProducesSingletons(t *testing.T) {
	input := simpleInput(9, []uint32{1, 2, 3}, 1)
	input.IsPractice = true

	r := Run(input)
	require.NoError(t, r.Err)

	for _, res := range r.Output.TimeSlots {
		assert.Empty(t, res.Booking.AwayTeam.UniqueID)
	}
}

func TestRun_HomeAwayBalance(t *testing.T) {
	input := simpleInput(3, []uint32{1, 2, 3, 4}, 3)

	r := Run(input)
	require.NoError(t, r.Err)

	homeCounts := map[uint32]int{}
	for _, res := range r.Output.TimeSlots {
		homeCounts[res.Booking.HomeTeam.UniqueID]++
	}

	min, max := -1, -1
	for _, c := range homeCounts {
		if min == -1 || c < min {
			min = c
		}
		if max == -1 || c > max {
			max = c
		}
	}
	assert.LessOrEqual(t, max-min, 1, "home counts should differ by at most 1")
}

func TestRun_InsufficientLanesReportsDiagnostic(t *testing.T) {
	input := simpleInput(5, []uint32{1, 2, 3, 4, 5, 6, 7, 8}, 1)
	input.Fields[0].TimeSlots = input.Fields[0].TimeSlots[:1] // only one slot, capacity 1

	r := Run(input)
	require.NoError(t, r.Err)
	require.Len(t, r.Diagnostics, 1)
	assert.Equal(t, uint32(5), r.Diagnostics[0].Warning.UniqueID)
}
