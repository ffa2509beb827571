package orchestrator

import (
	"context"

	"github.com/fieldz/scheduler-engine/internal/analyzer"
	"github.com/fieldz/scheduler-engine/internal/builder"
	"github.com/fieldz/scheduler-engine/internal/model"
)

// snapshot assembles the region-scoped EntityStore reads into the flat
// shape both the Analyzer and the Builder expect, since store.EntityStore
// only exposes per-region accessors (spec section 4.2).
type snapshot struct {
	targets          []model.Target
	teams            []model.Team
	groups           []model.TeamGroup
	fields           []model.Field
	timeSlots        map[string][]model.TimeSlot
	reservationTypes map[string]model.ReservationType
	overrides        []model.FieldConcurrencyOverride
	coachConflicts   []model.CoachConflict
}

func (o *Orchestrator) loadSnapshot(ctx context.Context, targets []model.Target) (*snapshot, error) {
	regions, err := o.entityStore.ListRegions(ctx)
	if err != nil {
		return nil, err
	}

	snap := &snapshot{
		targets:          targets,
		timeSlots:        make(map[string][]model.TimeSlot),
		reservationTypes: make(map[string]model.ReservationType),
	}

	groups, err := o.entityStore.ListTeamGroups(ctx)
	if err != nil {
		return nil, err
	}
	snap.groups = groups

	for _, r := range regions {
		teams, err := o.entityStore.ListTeamsOfRegion(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		snap.teams = append(snap.teams, teams...)

		fields, err := o.entityStore.ListFieldsOfRegion(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		snap.fields = append(snap.fields, fields...)

		for _, f := range fields {
			slots, err := o.entityStore.ListTimeSlotsOfField(ctx, f.ID, nil)
			if err != nil {
				return nil, err
			}
			snap.timeSlots[f.ID] = slots

			overrides, err := o.entityStore.ListOverridesForField(ctx, f.ID)
			if err != nil {
				return nil, err
			}
			snap.overrides = append(snap.overrides, overrides...)

			for _, s := range slots {
				if _, ok := snap.reservationTypes[s.ReservationTypeID]; ok {
					continue
				}
				rt, err := o.entityStore.ResolveReservationType(ctx, s.ReservationTypeID)
				if err != nil {
					return nil, err
				}
				snap.reservationTypes[s.ReservationTypeID] = rt
			}
		}

		conflicts, err := o.entityStore.ListCoachConflictsOfRegion(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		snap.coachConflicts = append(snap.coachConflicts, conflicts...)
	}

	for _, t := range targets {
		if t.ReservationTypeID == "" {
			continue
		}
		if _, ok := snap.reservationTypes[t.ReservationTypeID]; ok {
			continue
		}
		rt, err := o.entityStore.ResolveReservationType(ctx, t.ReservationTypeID)
		if err != nil {
			return nil, err
		}
		snap.reservationTypes[t.ReservationTypeID] = rt
	}

	return snap, nil
}

func (s *snapshot) analyzerInput() analyzer.Input {
	return analyzer.Input{
		Targets:          s.targets,
		Teams:            s.teams,
		Groups:           s.groups,
		Fields:           s.fields,
		TimeSlots:        s.timeSlots,
		ReservationTypes: s.reservationTypes,
		Overrides:        s.overrides,
	}
}

func (s *snapshot) builderInput() builder.Input {
	return builder.Input{
		Teams:            s.teams,
		Fields:           s.fields,
		TimeSlots:        s.timeSlots,
		ReservationTypes: s.reservationTypes,
		Overrides:        s.overrides,
		CoachConflicts:   s.coachConflicts,
	}
}
