// Package analyzer implements the Pre-Schedule Analyzer (spec section
// 4.3): given a matches-to-play configuration and the current targets,
// teams, fields, and coach conflicts, it computes required/supplied match
// counts per target and flags duplicate, empty, and impossible targets.
package analyzer

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/samber/lo"

	"github.com/fieldz/scheduler-engine/internal/calendar"
	"github.com/fieldz/scheduler-engine/internal/model"
)

// Config is the analyzer's input configuration.
type Config struct {
	MatchesToPlay int // 1..7
	Interregional bool
}

// Count is a tagged union of Interregional(n) or Regional(map region->n),
// mirroring the spec's required/supplied representation.
type Count struct {
	Interregional bool
	Total         int            // valid when Interregional
	ByRegion      map[string]int // valid when !Interregional
}

// Sum returns the count's total across all components.
func (c Count) Sum() int {
	if c.Interregional {
		return c.Total
	}
	total := 0
	for _, v := range c.ByRegion {
		total += v
	}
	return total
}

// Covers reports whether this count (as "supplied") covers other (as
// "required") component-wise: per region, or the single total in
// interregional mode.
func (c Count) Covers(required Count) bool {
	if required.Interregional {
		return c.Total >= required.Total
	}
	for region, need := range required.ByRegion {
		if c.ByRegion[region] < need {
			return false
		}
	}
	return true
}

// TargetMatchCount reports required/supplied for one target.
type TargetMatchCount struct {
	Target   model.Target
	Required Count
	Supplied Count
}

// DuplicateEntry groups targets that share an identity tuple (group set,
// order-insensitive, plus practice-vs-match character).
type DuplicateEntry struct {
	UsedBy []string
}

// PreScheduleReport is the analyzer's output (spec section 4.3).
type PreScheduleReport struct {
	TargetDuplicates    []DuplicateEntry
	TargetHasDuplicates []string
	TargetMatchCount    []TargetMatchCount
	TotalMatchesRequired int
	TotalMatchesSupplied int
	Interregional        bool

	EmptyTargets       []string
	ImpossibleTargets  []string
}

// Input bundles everything the analyzer needs beyond Config; callers
// assemble this from an EntityStore read.
type Input struct {
	Targets        []model.Target
	Teams          []model.Team
	Groups         []model.TeamGroup
	Fields         []model.Field
	TimeSlots      map[string][]model.TimeSlot // fieldID -> slots
	ReservationTypes map[string]model.ReservationType
	Overrides      []model.FieldConcurrencyOverride
}

// Analyze computes the PreScheduleReport for the given configuration and
// input snapshot. It never returns an error for soft conditions
// (duplicate/empty/impossible targets, undersupply); those are reported
// inside the returned report, per spec section 4.3/4.7.
func Analyze(cfg Config, in Input) PreScheduleReport {
	resolver := calendar.NewCapacityResolver(reservationTypeSlice(in.ReservationTypes), in.Overrides)

	report := PreScheduleReport{Interregional: cfg.Interregional}

	teamsByID := make(map[string]model.Team, len(in.Teams))
	for _, t := range in.Teams {
		teamsByID[t.ID] = t
	}

	identitySeen := make(map[string][]string) // identity key -> target ids
	for _, target := range in.Targets {
		if len(target.GroupIDs) == 0 {
			report.EmptyTargets = append(report.EmptyTargets, target.ID)
			continue
		}

		key := identityKey(target, in.ReservationTypes)
		identitySeen[key] = append(identitySeen[key], target.ID)

		eligible := eligibleTeams(target, in.Teams)
		if impossible(eligible, cfg.Interregional) {
			report.ImpossibleTargets = append(report.ImpossibleTargets, target.ID)
		}

		required := requiredCount(eligible, cfg)
		supplied := suppliedCount(target, eligible, in.Fields, in.TimeSlots, resolver, cfg.Interregional)

		report.TargetMatchCount = append(report.TargetMatchCount, TargetMatchCount{
			Target:   target,
			Required: required,
			Supplied: supplied,
		})
		report.TotalMatchesRequired += required.Sum()
		report.TotalMatchesSupplied += supplied.Sum()
	}

	for _, ids := range identitySeen {
		if len(ids) <= 1 {
			continue
		}
		sorted := append([]string(nil), ids...)
		sort.Strings(sorted)
		report.TargetDuplicates = append(report.TargetDuplicates, DuplicateEntry{UsedBy: sorted})
		report.TargetHasDuplicates = append(report.TargetHasDuplicates, sorted...)
	}

	sort.Strings(report.TargetHasDuplicates)
	return report
}

func reservationTypeSlice(m map[string]model.ReservationType) []model.ReservationType {
	out := make([]model.ReservationType, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// identityTuple is the order-insensitive shape hashstructure.Hash reduces
// duplicate-detection to a single comparable key over. The identity is
// (groups, is_practice) — NOT (groups, type_id): two targets with the same
// group set but different non-practice reservation types are duplicates,
// per spec section 9's quirk (the source keys on practice character, not
// on the reservation-type id itself).
type identityTuple struct {
	Groups     []string
	IsPractice bool
}

// identityKey builds a duplicate-detection key from a target's group set
// (order-insensitive) and its reservation-type filter's is_practice flag
// (an unset filter counts as not-practice).
func identityKey(t model.Target, types map[string]model.ReservationType) string {
	groups := append([]string(nil), t.GroupIDs...)
	sort.Strings(groups)

	isPractice := false
	if rt, ok := types[t.ReservationTypeID]; ok {
		isPractice = rt.IsPractice
	}

	h, err := hashstructure.Hash(identityTuple{Groups: groups, IsPractice: isPractice}, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure only errors on unsupported field types, none of
		// which identityTuple has; a key collision here would silently
		// misclassify distinct targets as duplicates, so fail loudly.
		panic(fmt.Sprintf("analyzer: hashing target identity: %v", err))
	}
	return strconv.FormatUint(h, 16)
}

// eligibleTeams returns E(T): teams whose group set is a superset of
// T.GroupIDs.
func eligibleTeams(t model.Target, teams []model.Team) []model.Team {
	required := t.GroupIDs
	var out []model.Team
	for _, team := range teams {
		if lo.Every(team.GroupIDs, required) {
			out = append(out, team)
		}
	}
	return out
}

func impossible(eligible []model.Team, interregional bool) bool {
	if interregional {
		return len(eligible) < 2
	}
	byRegion := lo.GroupBy(eligible, func(t model.Team) string { return t.RegionID })
	for _, teams := range byRegion {
		if len(teams) >= 2 {
			return false
		}
	}
	return true
}

func choose2(n int) int {
	if n < 2 {
		return 0
	}
	return n * (n - 1) / 2
}

func requiredCount(eligible []model.Team, cfg Config) Count {
	if cfg.Interregional {
		return Count{Interregional: true, Total: choose2(len(eligible)) * cfg.MatchesToPlay}
	}

	byRegion := lo.GroupBy(eligible, func(t model.Team) string { return t.RegionID })
	out := make(map[string]int, len(byRegion))
	for region, teams := range byRegion {
		out[region] = choose2(len(teams)) * cfg.MatchesToPlay
	}
	return Count{ByRegion: out}
}

func suppliedCount(
	target model.Target,
	eligible []model.Team,
	fields []model.Field,
	slotsByField map[string][]model.TimeSlot,
	resolver *calendar.CapacityResolver,
	interregional bool,
) Count {
	regionsOfInterest := make(map[string]bool)
	for _, t := range eligible {
		regionsOfInterest[t.RegionID] = true
	}

	perRegion := make(map[string]int)
	for _, f := range fields {
		if !regionsOfInterest[f.RegionID] {
			continue
		}
		for _, slot := range slotsByField[f.ID] {
			if target.ReservationTypeID != "" && slot.ReservationTypeID != target.ReservationTypeID {
				continue
			}
			perRegion[f.RegionID] += resolver.Capacity(f.ID, slot.ReservationTypeID)
		}
	}

	if interregional {
		total := 0
		for _, v := range perRegion {
			total += v
		}
		return Count{Interregional: true, Total: total}
	}
	return Count{ByRegion: perRegion}
}
