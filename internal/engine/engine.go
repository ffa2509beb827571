// Package engine implements the Scheduling Engine (spec section 4.5):
// pair enumeration with a deterministic seed, lane expansion by
// concurrency capacity, and constraint-respecting assignment with
// home/away balancing.
package engine

import (
	"hash/fnv"
	"math/rand"
	"sort"

	"github.com/fieldz/scheduler-engine/internal/model"
	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
)

// Diagnostic is a non-fatal warning attached to a Result, currently only
// UnplacedPairs (spec section 7).
type Diagnostic struct {
	Warning *schederrors.UnplacedPairsWarning
}

// Result is the Engine's answer to one ScheduledInput: either a
// ScheduledOutput (possibly partial, with a diagnostic) or a fatal error
// that aborts this input without terminating the stream.
type Result struct {
	Output      model.ScheduledOutput
	Diagnostics []Diagnostic
	Err         error // MalformedInput; nil on success (even if partial)
}

// lane is one concurrent reservation slot: (field, time slot, lane index).
type lane struct {
	fieldID  uint32
	start    int64
	end      int64
	laneIdx  uint32
}

// pair is an unordered team pairing to place; for practice inputs only
// Team is set (Other is the zero value and ignored).
type pair struct {
	team      uint32
	other     uint32
	isSingle  bool
}

// Run executes the Engine's per-input algorithm (spec section 4.5 steps
// 1-5) and returns a Result. Run never panics on malformed input; it
// reports MalformedInput via Result.Err instead.
func Run(input model.ScheduledInput) Result {
	if err := validate(input); err != nil {
		return Result{Err: err}
	}

	pairs := enumeratePairs(input)
	shuffled := deterministicShuffle(pairs, input.UniqueID)
	lanes := expandLanes(input)

	placements, unplaced := assign(shuffled, lanes, input)

	output := model.ScheduledOutput{UniqueID: input.UniqueID, TimeSlots: placements}

	var diags []Diagnostic
	if unplaced > 0 {
		diags = append(diags, Diagnostic{Warning: schederrors.UnplacedPairs(input.UniqueID, unplaced)})
	}

	return Result{Output: output, Diagnostics: diags}
}

// validate rejects malformed inputs: duplicate team ids within one
// collection, or a time slot with end <= start.
func validate(input model.ScheduledInput) error {
	for _, group := range input.TeamGroups {
		seen := make(map[uint32]bool, len(group.Teams))
		for _, t := range group.Teams {
			if seen[t.UniqueID] {
				return schederrors.MalformedInput(input.UniqueID, "duplicate team id in collection")
			}
			seen[t.UniqueID] = true
		}
	}
	for _, f := range input.Fields {
		for _, slot := range f.TimeSlots {
			if slot.End <= slot.Start {
				return schederrors.MalformedInput(input.UniqueID, "time slot end <= start")
			}
		}
	}
	return nil
}

// enumeratePairs produces every unordered team pair within each
// PlayableTeamCollection, with multiplicity implied by the number of
// repeats already present in the collection's source data (the builder
// emits one collection per region/flattened-pool; "matches_to_play" is
// folded in by the caller repeating the relevant collection, keeping the
// Engine itself agnostic of that parameter). Practice inputs instead
// enumerate singletons, one per team.
func enumeratePairs(input model.ScheduledInput) []pair {
	var pairs []pair
	for _, group := range input.TeamGroups {
		if input.IsPractice {
			for _, t := range group.Teams {
				pairs = append(pairs, pair{team: t.UniqueID, isSingle: true})
			}
			continue
		}
		teams := group.Teams
		for i := 0; i < len(teams); i++ {
			for j := i + 1; j < len(teams); j++ {
				pairs = append(pairs, pair{team: teams[i].UniqueID, other: teams[j].UniqueID})
			}
		}
	}
	return pairs
}

// deterministicShuffle reorders pairs using a seed derived from
// unique_id, so identical inputs always produce identical output order
// (spec section 4.5: "the seed is hash(unique_id)").
func deterministicShuffle(pairs []pair, uniqueID uint32) []pair {
	out := append([]pair(nil), pairs...)

	h := fnv.New64a()
	buf := []byte{byte(uniqueID), byte(uniqueID >> 8), byte(uniqueID >> 16), byte(uniqueID >> 24)}
	_, _ = h.Write(buf)
	seed := int64(h.Sum64())

	r := rand.New(rand.NewSource(seed))
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// expandLanes expands every time slot on every field into capacity(f,t)
// parallel lanes, ordered by slot start ascending, then field id
// ascending, then lane index (spec section 4.5 step 2).
func expandLanes(input model.ScheduledInput) []lane {
	var lanes []lane
	for _, f := range input.Fields {
		for _, slot := range f.TimeSlots {
			for l := uint32(0); l < slot.Concurrency; l++ {
				lanes = append(lanes, lane{fieldID: f.UniqueID, start: slot.Start, end: slot.End, laneIdx: l})
			}
		}
	}
	sort.Slice(lanes, func(i, j int) bool {
		if lanes[i].start != lanes[j].start {
			return lanes[i].start < lanes[j].start
		}
		if lanes[i].fieldID != lanes[j].fieldID {
			return lanes[i].fieldID < lanes[j].fieldID
		}
		return lanes[i].laneIdx < lanes[j].laneIdx
	})
	return lanes
}

func (l lane) overlaps(o lane) bool {
	return l.start < o.end && o.start < l.end
}

// assign walks lanes in order, placing the next compatible pair into
// each lane per spec section 4.5 steps 3-4. Returns the placed
// reservations and the count of pairs that could not be placed before
// lanes were exhausted.
func assign(pairs []pair, lanes []lane, input model.ScheduledInput) ([]model.WireReservation, int) {
	conflictGroups := buildConflictGroups(input)

	busy := map[uint32][]lane{} // teamID -> lanes it already occupies
	homeCount := map[uint32]int{}

	placed := make([]model.WireReservation, 0, len(pairs))
	remaining := append([]pair(nil), pairs...)

	for _, ln := range lanes {
		idx := nextPlaceable(remaining, ln, busy, conflictGroups)
		if idx < 0 {
			continue
		}
		p := remaining[idx]
		remaining = append(remaining[:idx], remaining[idx+1:]...)

		busy[p.team] = append(busy[p.team], ln)
		var booking model.WireBooking
		if p.isSingle {
			booking = model.WireBooking{HomeTeam: model.WireTeam{UniqueID: p.team}}
		} else {
			busy[p.other] = append(busy[p.other], ln)
			home, away := chooseHomeAway(p.team, p.other, homeCount)
			homeCount[home]++
			booking = model.WireBooking{HomeTeam: model.WireTeam{UniqueID: home}, AwayTeam: model.WireTeam{UniqueID: away}}
		}

		placed = append(placed, model.WireReservation{
			Field:   model.WireField{UniqueID: ln.fieldID},
			Start:   ln.start,
			End:     ln.end,
			Booking: booking,
		})

		if len(remaining) == 0 {
			break
		}
	}

	return placed, len(remaining)
}

// chooseHomeAway assigns home to the team with the lower current
// home-count, ties breaking by smaller id (spec section 4.5 step 4).
func chooseHomeAway(a, b uint32, homeCount map[uint32]int) (home, away uint32) {
	ca, cb := homeCount[a], homeCount[b]
	switch {
	case ca < cb:
		return a, b
	case cb < ca:
		return b, a
	default:
		if a <= b {
			return a, b
		}
		return b, a
	}
}

// nextPlaceable returns the index of the first remaining pair compatible
// with this lane, or -1 if none qualify.
func nextPlaceable(remaining []pair, ln lane, busy map[uint32][]lane, conflictGroups map[uint32][]uint32) int {
	for i, p := range remaining {
		if teamBusyOverlapping(p.team, ln, busy) {
			continue
		}
		if !p.isSingle && teamBusyOverlapping(p.other, ln, busy) {
			continue
		}
		if coachConflictViolated(p, ln, busy, conflictGroups) {
			continue
		}
		return i
	}
	return -1
}

func teamBusyOverlapping(team uint32, ln lane, busy map[uint32][]lane) bool {
	for _, other := range busy[team] {
		if ln.overlaps(other) {
			return true
		}
	}
	return false
}

// coachConflictViolated reports whether placing p into ln would put two
// teams from the same coach-conflict group into overlapping lanes.
func coachConflictViolated(p pair, ln lane, busy map[uint32][]lane, conflictGroups map[uint32][]uint32) bool {
	teams := []uint32{p.team}
	if !p.isSingle {
		teams = append(teams, p.other)
	}

	for _, team := range teams {
		for _, partner := range conflictGroups[team] {
			if partner == p.team || partner == p.other {
				continue // the pair itself isn't a conflict with itself
			}
			if teamBusyOverlapping(partner, ln, busy) {
				return true
			}
		}
	}
	return false
}

func buildConflictGroups(input model.ScheduledInput) map[uint32][]uint32 {
	groups := make(map[uint32][]uint32)
	for _, c := range input.CoachConflicts {
		ids := make([]uint32, len(c.Teams))
		for i, t := range c.Teams {
			ids[i] = t.UniqueID
		}
		for _, id := range ids {
			for _, other := range ids {
				if other != id {
					groups[id] = append(groups[id], other)
				}
			}
		}
	}
	return groups
}
