// Package builder implements the Payload Builder (spec section 4.4):
// converts validated, non-errored targets into ScheduledInput messages,
// one per target and season phase, partitioning teams by region (or
// flattening them in interregional mode) and filtering fields down to
// those usable under the target's reservation-type filter.
package builder

import (
	"sort"

	"github.com/samber/lo"

	"github.com/fieldz/scheduler-engine/internal/calendar"
	"github.com/fieldz/scheduler-engine/internal/model"
)

// Input mirrors analyzer.Input; the builder consumes the same entity
// snapshot the analyzer validated against.
type Input struct {
	Teams            []model.Team
	Fields           []model.Field
	TimeSlots        map[string][]model.TimeSlot
	ReservationTypes map[string]model.ReservationType
	Overrides        []model.FieldConcurrencyOverride
	CoachConflicts   []model.CoachConflict
}

// IDAllocator assigns stable uint32 unique ids to team/field string ids
// for the lifetime of one Build call, matching the wire schema's use of
// numeric identifiers (spec section 6).
type IDAllocator struct {
	next uint32
	ids  map[string]uint32
}

func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1, ids: make(map[string]uint32)}
}

func (a *IDAllocator) of(key string) uint32 {
	if id, ok := a.ids[key]; ok {
		return id
	}
	id := a.next
	a.ids[key] = id
	a.next++
	return id
}

// Entries returns a copy of the allocator's key->id table, keyed the same
// way internal callers (of) build keys (e.g. "team:t1", "field:f1"). The
// orchestrator uses this to translate Engine output back to entity ids.
func (a *IDAllocator) Entries() map[string]uint32 {
	out := make(map[string]uint32, len(a.ids))
	for k, v := range a.ids {
		out[k] = v
	}
	return out
}

// Build emits one ScheduledInput per (target, phase) pair for every
// target present in targets, in the order given. A practice target
// (reservation type marked is_practice) produces an input with
// IsPractice set, which the Engine interprets as singleton placement
// rather than pairing. matchesToPlay folds the Analyzer's
// matches-to-play multiplier into the payload by repeating each team
// collection that many times (minimum 1): the Engine enumerates every
// unordered pair within a collection once, so N identical collections
// yield each pair N times, matching the Analyzer's C(n,2)*matchesToPlay
// required-count formula (spec section 4.5 note on multiplicity).
//
// The two phases are independent payloads (spec section 4.4); when they
// draw from a shared field pool, the caller is responsible for excluding
// the first phase's claimed time slots from in.TimeSlots before building
// the second phase's payloads — this package has no visibility into
// Engine output, so it cannot infer which slots a prior phase consumed.
func Build(in Input, targets []model.Target, interregional bool, matchesToPlay int, phases []model.SeasonPhase, ids *IDAllocator) []model.ScheduledInput {
	if ids == nil {
		ids = NewIDAllocator()
	}
	if matchesToPlay < 1 {
		matchesToPlay = 1
	}

	var out []model.ScheduledInput
	for _, phase := range phases {
		_ = phase // phase only distinguishes which payload set this is; wire schema carries no phase field
		for _, target := range targets {
			out = append(out, buildOne(in, target, interregional, matchesToPlay, ids))
		}
	}

	return out
}

func buildOne(in Input, target model.Target, interregional bool, matchesToPlay int, ids *IDAllocator) model.ScheduledInput {
	eligible := eligibleTeamsFor(target, in.Teams)
	capacity := calendar.NewCapacityResolver(reservationTypeSlice(in.ReservationTypes), in.Overrides)

	var baseGroups []model.PlayableTeamCollection
	if interregional {
		baseGroups = []model.PlayableTeamCollection{{Teams: wireTeams(eligible, ids)}}
	} else {
		byRegion := lo.GroupBy(eligible, func(t model.Team) string { return t.RegionID })
		regionIDs := make([]string, 0, len(byRegion))
		for r := range byRegion {
			regionIDs = append(regionIDs, r)
		}
		sort.Strings(regionIDs)
		for _, r := range regionIDs {
			baseGroups = append(baseGroups, model.PlayableTeamCollection{Teams: wireTeams(byRegion[r], ids)})
		}
	}

	teamGroups := make([]model.PlayableTeamCollection, 0, len(baseGroups)*matchesToPlay)
	for i := 0; i < matchesToPlay; i++ {
		teamGroups = append(teamGroups, baseGroups...)
	}

	eligibleIDs := make(map[string]bool, len(eligible))
	for _, t := range eligible {
		eligibleIDs[t.ID] = true
	}

	var wireFields []model.WireField
	for _, f := range in.Fields {
		var slots []model.WireTimeSlot
		for _, slot := range in.TimeSlots[f.ID] {
			if target.ReservationTypeID != "" && slot.ReservationTypeID != target.ReservationTypeID {
				continue
			}
			slots = append(slots, model.WireTimeSlot{
				Start:       slot.Start.UnixMilli(),
				End:         slot.End.UnixMilli(),
				Concurrency: uint32(capacity.Capacity(f.ID, slot.ReservationTypeID)),
			})
		}
		if len(slots) == 0 {
			continue
		}
		wireFields = append(wireFields, model.WireField{UniqueID: ids.of("field:" + f.ID), TimeSlots: slots})
	}

	var wireConflicts []model.WireCoachConflict
	for _, c := range in.CoachConflicts {
		if !allTeamsIn(c.TeamIDs, eligibleIDs) {
			continue
		}
		wireConflicts = append(wireConflicts, model.WireCoachConflict{
			UniqueID: ids.of("conflict:" + c.ID),
			RegionID: ids.of("region:" + c.RegionID),
			Teams:    wireTeamIDs(c.TeamIDs, ids),
		})
	}

	isPractice := false
	if rt, ok := in.ReservationTypes[target.ReservationTypeID]; ok {
		isPractice = rt.IsPractice
	}

	return model.ScheduledInput{
		UniqueID:       ids.of("target:" + target.ID),
		TeamGroups:     teamGroups,
		Fields:         wireFields,
		CoachConflicts: wireConflicts,
		IsPractice:     isPractice,
	}
}

func reservationTypeSlice(m map[string]model.ReservationType) []model.ReservationType {
	out := make([]model.ReservationType, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func eligibleTeamsFor(t model.Target, teams []model.Team) []model.Team {
	var out []model.Team
	for _, team := range teams {
		if lo.Every(team.GroupIDs, t.GroupIDs) {
			out = append(out, team)
		}
	}
	return out
}

func allTeamsIn(teamIDs []string, set map[string]bool) bool {
	for _, id := range teamIDs {
		if !set[id] {
			return false
		}
	}
	return true
}

func wireTeams(teams []model.Team, ids *IDAllocator) []model.WireTeam {
	out := make([]model.WireTeam, len(teams))
	for i, t := range teams {
		out[i] = model.WireTeam{UniqueID: ids.of("team:" + t.ID)}
	}
	return out
}

func wireTeamIDs(teamIDs []string, ids *IDAllocator) []model.WireTeam {
	out := make([]model.WireTeam, len(teamIDs))
	for i, id := range teamIDs {
		out[i] = model.WireTeam{UniqueID: ids.of("team:" + id)}
	}
	return out
}
