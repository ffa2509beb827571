// Package memstore is an in-memory reference implementation of
// store.EntityStore and store.ProfileStore, used by the CLI's local mode
// and by the higher-level packages' tests. It supplements the core spec's
// "opaque entity store" with a concrete, swappable-profile implementation
// (spec section 4.2 and section 6's persisted-state layout).
package memstore

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/internal/store"
	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
)

var profileNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\- ]{1,64}$`)

const (
	maxRegionNameLen = 64
	maxFieldNameLen  = 64
	maxTeamNameLen   = 64
)

// dataset holds one profile's complete logical entity set.
type dataset struct {
	regions          map[string]model.Region
	fields           map[string]model.Field
	teams            map[string]model.Team
	teamGroups       map[string]model.TeamGroup
	reservationTypes map[string]model.ReservationType
	overrides        []model.FieldConcurrencyOverride
	timeSlots        map[string]model.TimeSlot
	targets          map[string]model.Target
	coachConflicts   map[string]model.CoachConflict
	schedules        map[string]model.Schedule
}

func newDataset() *dataset {
	return &dataset{
		regions:          make(map[string]model.Region),
		fields:           make(map[string]model.Field),
		teams:            make(map[string]model.Team),
		teamGroups:       make(map[string]model.TeamGroup),
		reservationTypes: make(map[string]model.ReservationType),
		timeSlots:        make(map[string]model.TimeSlot),
		targets:          make(map[string]model.Target),
		coachConflicts:   make(map[string]model.CoachConflict),
		schedules:        make(map[string]model.Schedule),
	}
}

// Store is the in-memory, profile-switchable implementation of
// store.EntityStore and store.ProfileStore.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
	data     map[string]*dataset
	activeID string
	defaultID string
}

// New creates a Store with a single default profile named "default".
func New() *Store {
	id := uuid.NewString()
	s := &Store{
		profiles:  map[string]model.Profile{id: {ID: id, Name: "default", IsDefault: true}},
		data:      map[string]*dataset{id: newDataset()},
		activeID:  id,
		defaultID: id,
	}
	return s
}

func (s *Store) active() *dataset {
	return s.data[s.activeID]
}

// --- ProfileStore ---

func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) ActiveProfile(ctx context.Context) (model.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profiles[s.activeID], nil
}

func (s *Store) CreateProfile(ctx context.Context, name string) (model.Profile, error) {
	if !profileNamePattern.MatchString(name) {
		return model.Profile{}, schederrors.InvalidProfileName(name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.profiles {
		if p.Name == name {
			return model.Profile{}, schederrors.DuplicateProfile(name)
		}
	}

	id := uuid.NewString()
	p := model.Profile{ID: id, Name: name}
	s.profiles[id] = p
	s.data[id] = newDataset()
	return p, nil
}

func (s *Store) RenameProfile(ctx context.Context, id, newName string) error {
	if !profileNamePattern.MatchString(newName) {
		return schederrors.InvalidProfileName(newName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return schederrors.NewSchedulerError(schederrors.ErrorCodeInvalidProfileName, "unknown profile")
	}
	if p.IsDefault {
		return schederrors.PermissionDenied("the default profile cannot be renamed")
	}
	for otherID, other := range s.profiles {
		if otherID != id && other.Name == newName {
			return schederrors.DuplicateProfile(newName)
		}
	}

	p.Name = newName
	s.profiles[id] = p
	return nil
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	if p.IsDefault {
		return schederrors.PermissionDenied("the default profile cannot be deleted")
	}
	if id == s.activeID {
		return schederrors.PermissionDenied("the active profile cannot be deleted")
	}

	delete(s.profiles, id)
	delete(s.data, id)
	return nil
}

func (s *Store) SwitchProfile(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[id]; !ok {
		return schederrors.NewSchedulerError(schederrors.ErrorCodeInvalidProfileName, "unknown profile")
	}
	s.activeID = id
	return nil
}

// --- EntityStore reads ---

func (s *Store) ListRegions(ctx context.Context) ([]model.Region, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Region, 0, len(s.active().regions))
	for _, r := range s.active().regions {
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) ListTeamsOfRegion(ctx context.Context, regionID string) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Team
	for _, t := range s.active().teams {
		if t.RegionID == regionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListFieldsOfRegion(ctx context.Context, regionID string) ([]model.Field, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Field
	for _, f := range s.active().fields {
		if f.RegionID == regionID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) ListTimeSlotsOfField(ctx context.Context, fieldID string, window *store.TimeWindow) ([]model.TimeSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeSlot
	for _, slot := range s.active().timeSlots {
		if slot.FieldID != fieldID {
			continue
		}
		if window != nil && !window.Contains(slot) {
			continue
		}
		out = append(out, slot)
	}
	return out, nil
}

func (s *Store) ResolveReservationType(ctx context.Context, id string) (model.ReservationType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rt, ok := s.active().reservationTypes[id]
	if !ok {
		return model.ReservationType{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown reservation type: "+id)
	}
	return rt, nil
}

func (s *Store) ListOverridesForField(ctx context.Context, fieldID string) ([]model.FieldConcurrencyOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.FieldConcurrencyOverride
	for _, o := range s.active().overrides {
		if o.FieldID == fieldID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListTargets(ctx context.Context) ([]model.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Target, 0, len(s.active().targets))
	for _, t := range s.active().targets {
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) ListCoachConflictsOfRegion(ctx context.Context, regionID string) ([]model.CoachConflict, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CoachConflict
	for _, c := range s.active().coachConflicts {
		if c.RegionID == regionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) ListTeamGroups(ctx context.Context) ([]model.TeamGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TeamGroup, 0, len(s.active().teamGroups))
	for _, g := range s.active().teamGroups {
		out = append(out, g)
	}
	return out, nil
}

// --- EntityStore mutations ---

func validateName(entity, name string, max int) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return schederrors.EmptyName(entity)
	}
	if len(trimmed) > max {
		return schederrors.NameTooLong(entity, len(trimmed), max)
	}
	return nil
}

func (s *Store) CreateRegion(ctx context.Context, title string) (model.Region, error) {
	if err := validateName("region", title, maxRegionNameLen); err != nil {
		return model.Region{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := model.Region{ID: uuid.NewString(), Title: strings.TrimSpace(title)}
	s.active().regions[r.ID] = r
	return r, nil
}

func (s *Store) CreateField(ctx context.Context, name, regionID string) (model.Field, error) {
	if err := validateName("field", name, maxFieldNameLen); err != nil {
		return model.Field{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active().regions[regionID]; !ok {
		return model.Field{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown region: "+regionID)
	}
	f := model.Field{ID: uuid.NewString(), Name: strings.TrimSpace(name), RegionID: regionID}
	s.active().fields[f.ID] = f
	return f, nil
}

func (s *Store) CreateTeam(ctx context.Context, name, regionID string, groupIDs []string) (model.Team, error) {
	if err := validateName("team", name, maxTeamNameLen); err != nil {
		return model.Team{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active().regions[regionID]; !ok {
		return model.Team{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown region: "+regionID)
	}
	for _, gid := range groupIDs {
		if _, ok := s.active().teamGroups[gid]; !ok {
			return model.Team{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown group: "+gid)
		}
	}
	t := model.Team{ID: uuid.NewString(), Name: strings.TrimSpace(name), RegionID: regionID, GroupIDs: groupIDs}
	s.active().teams[t.ID] = t
	return t, nil
}

func (s *Store) CreateTeamGroup(ctx context.Context, name string) (model.TeamGroup, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return model.TeamGroup{}, schederrors.EmptyName("team group")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.active().teamGroups {
		if g.Name == normalized {
			return model.TeamGroup{}, schederrors.NewSchedulerError(schederrors.ErrorCodeDuplicateProfile, "group name already in use")
		}
	}
	g := model.TeamGroup{ID: uuid.NewString(), Name: normalized}
	s.active().teamGroups[g.ID] = g
	return g, nil
}

func (s *Store) CreateReservationType(ctx context.Context, rt model.ReservationType) (model.ReservationType, error) {
	if err := validateName("reservation type", rt.Name, maxFieldNameLen); err != nil {
		return model.ReservationType{}, err
	}
	if rt.DefaultConcurrency < 1 || rt.DefaultConcurrency > 8 {
		return model.ReservationType{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "default concurrency out of bounds [1,8]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	s.active().reservationTypes[rt.ID] = rt
	return rt, nil
}

func (s *Store) CreateTarget(ctx context.Context, t model.Target) (model.Target, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.active().targets[t.ID] = t
	return t, nil
}

func (s *Store) CreateCoachConflict(ctx context.Context, c model.CoachConflict) (model.CoachConflict, error) {
	if len(c.TeamIDs) < 2 {
		return model.CoachConflict{}, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "coach conflict requires at least 2 teams")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.active().coachConflicts[c.ID] = c
	return c, nil
}

func (s *Store) UpsertTimeSlot(ctx context.Context, slot model.TimeSlot) (model.TimeSlot, error) {
	if !slot.Start.Before(slot.End) {
		if slot.Start.Equal(slot.End) {
			return model.TimeSlot{}, schederrors.ZeroDuration()
		}
		return model.TimeSlot{}, schederrors.EndBeforeStart()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.active().timeSlots {
		if id == slot.ID || existing.FieldID != slot.FieldID {
			continue
		}
		if slot.Overlaps(existing) {
			return model.TimeSlot{}, schederrors.Overlap(slot.FieldID, id)
		}
	}

	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	s.active().timeSlots[slot.ID] = slot
	return slot, nil
}

func (s *Store) DeleteTimeSlot(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active().timeSlots, id)
	return nil
}

func (s *Store) DeleteTarget(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active().targets, id)
	return nil
}

func (s *Store) CreateSchedule(ctx context.Context, name string, reservations []model.Reservation) (model.Schedule, error) {
	if err := validateName("schedule", name, 64); err != nil {
		return model.Schedule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	sched := model.Schedule{
		ID:           uuid.NewString(),
		Name:         strings.TrimSpace(name),
		Created:      now,
		LastEdited:   now,
		Reservations: reservations,
	}
	s.active().schedules[sched.ID] = sched
	return sched, nil
}

var _ store.EntityStore = (*Store)(nil)
var _ store.ProfileStore = (*Store)(nil)
