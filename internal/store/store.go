// Package store defines the narrow, testable contract the higher-level
// packages (analyzer, builder, engine, orchestrator) use to read and
// mutate persisted entities, plus the profile abstraction that isolates
// independent datasets (spec section 4.2).
package store

import (
	"context"
	"time"

	"github.com/fieldz/scheduler-engine/internal/model"
)

// EntityStore is the facade every higher-level package depends on instead
// of a concrete persistence implementation.
type EntityStore interface {
	// Reads.
	ListRegions(ctx context.Context) ([]model.Region, error)
	ListTeamsOfRegion(ctx context.Context, regionID string) ([]model.Team, error)
	ListFieldsOfRegion(ctx context.Context, regionID string) ([]model.Field, error)
	ListTimeSlotsOfField(ctx context.Context, fieldID string, window *TimeWindow) ([]model.TimeSlot, error)
	ResolveReservationType(ctx context.Context, id string) (model.ReservationType, error)
	ListOverridesForField(ctx context.Context, fieldID string) ([]model.FieldConcurrencyOverride, error)
	ListTargets(ctx context.Context) ([]model.Target, error)
	ListCoachConflictsOfRegion(ctx context.Context, regionID string) ([]model.CoachConflict, error)
	ListTeamGroups(ctx context.Context) ([]model.TeamGroup, error)

	// Mutations.
	CreateRegion(ctx context.Context, title string) (model.Region, error)
	CreateField(ctx context.Context, name, regionID string) (model.Field, error)
	CreateTeam(ctx context.Context, name, regionID string, groupIDs []string) (model.Team, error)
	CreateTeamGroup(ctx context.Context, name string) (model.TeamGroup, error)
	CreateReservationType(ctx context.Context, rt model.ReservationType) (model.ReservationType, error)
	CreateTarget(ctx context.Context, t model.Target) (model.Target, error)
	CreateCoachConflict(ctx context.Context, c model.CoachConflict) (model.CoachConflict, error)
	UpsertTimeSlot(ctx context.Context, s model.TimeSlot) (model.TimeSlot, error)
	DeleteTimeSlot(ctx context.Context, id string) error
	DeleteTarget(ctx context.Context, id string) error

	// Schedules.
	CreateSchedule(ctx context.Context, name string, reservations []model.Reservation) (model.Schedule, error)
}

// TimeWindow bounds a time-slot read to an absolute-instant range;
// either bound may be the zero Time to mean "unbounded".
type TimeWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether a slot falls within the window, treating a
// zero bound as unbounded on that side.
func (w TimeWindow) Contains(s model.TimeSlot) bool {
	if !w.From.IsZero() && s.Start.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && s.End.After(w.To) {
		return false
	}
	return true
}

// ProfileStore manages the set of isolated logical datasets a server
// instance can switch between. The default profile cannot be renamed or
// deleted, and the active profile cannot be deleted (spec section 4.2).
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	ActiveProfile(ctx context.Context) (model.Profile, error)
	CreateProfile(ctx context.Context, name string) (model.Profile, error)
	RenameProfile(ctx context.Context, id, newName string) error
	DeleteProfile(ctx context.Context, id string) error
	SwitchProfile(ctx context.Context, id string) error
}
