package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fieldz/scheduler-engine/internal/model"
	"github.com/fieldz/scheduler-engine/internal/store/memstore"
)

// fixture is the on-disk JSON shape --store-file loads into a local
// memstore, standing in for the existing system EntityStore normally
// fronts (spec section 4.2 non-goal: this module never owns entity CRUD).
type fixture struct {
	Regions          []model.Region                   `json:"regions"`
	TeamGroups       []model.TeamGroup                `json:"team_groups"`
	Teams            []model.Team                     `json:"teams"`
	Fields           []model.Field                    `json:"fields"`
	ReservationTypes []model.ReservationType           `json:"reservation_types"`
	TimeSlots        []model.TimeSlot                  `json:"time_slots"`
	Targets          []model.Target                    `json:"targets"`
	CoachConflicts   []model.CoachConflict             `json:"coach_conflicts"`
	Overrides        []model.FieldConcurrencyOverride  `json:"overrides"`
}

func loadStore() (*memstore.Store, error) {
	if storeFile == "" {
		return nil, fmt.Errorf("--store-file is required")
	}

	raw, err := os.ReadFile(storeFile)
	if err != nil {
		return nil, fmt.Errorf("reading store file: %w", err)
	}

	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parsing store file: %w", err)
	}

	st := memstore.New()
	ctx := context.Background()

	regionIDs := make(map[string]string, len(fx.Regions))
	for _, r := range fx.Regions {
		created, err := st.CreateRegion(ctx, r.Title)
		if err != nil {
			return nil, err
		}
		regionIDs[r.ID] = created.ID
	}

	groupIDs := make(map[string]string, len(fx.TeamGroups))
	for _, g := range fx.TeamGroups {
		created, err := st.CreateTeamGroup(ctx, g.Name)
		if err != nil {
			return nil, err
		}
		groupIDs[g.ID] = created.ID
	}

	rtIDs := make(map[string]string, len(fx.ReservationTypes))
	for _, rt := range fx.ReservationTypes {
		created, err := st.CreateReservationType(ctx, rt)
		if err != nil {
			return nil, err
		}
		rtIDs[rt.ID] = created.ID
	}

	teamIDs := make(map[string]string, len(fx.Teams))
	for _, t := range fx.Teams {
		mapped := make([]string, 0, len(t.GroupIDs))
		for _, g := range t.GroupIDs {
			mapped = append(mapped, groupIDs[g])
		}
		created, err := st.CreateTeam(ctx, t.Name, regionIDs[t.RegionID], mapped)
		if err != nil {
			return nil, err
		}
		teamIDs[t.ID] = created.ID
	}

	fieldIDs := make(map[string]string, len(fx.Fields))
	for _, f := range fx.Fields {
		created, err := st.CreateField(ctx, f.Name, regionIDs[f.RegionID])
		if err != nil {
			return nil, err
		}
		fieldIDs[f.ID] = created.ID
	}

	for _, s := range fx.TimeSlots {
		s.FieldID = fieldIDs[s.FieldID]
		s.ReservationTypeID = rtIDs[s.ReservationTypeID]
		if _, err := st.UpsertTimeSlot(ctx, s); err != nil {
			return nil, err
		}
	}

	for _, t := range fx.Targets {
		mapped := make([]string, 0, len(t.GroupIDs))
		for _, g := range t.GroupIDs {
			mapped = append(mapped, groupIDs[g])
		}
		t.GroupIDs = mapped
		if t.ReservationTypeID != "" {
			t.ReservationTypeID = rtIDs[t.ReservationTypeID]
		}
		if _, err := st.CreateTarget(ctx, t); err != nil {
			return nil, err
		}
	}

	for _, c := range fx.CoachConflicts {
		mapped := make([]string, 0, len(c.TeamIDs))
		for _, id := range c.TeamIDs {
			mapped = append(mapped, teamIDs[id])
		}
		c.TeamIDs = mapped
		c.RegionID = regionIDs[c.RegionID]
		if _, err := st.CreateCoachConflict(ctx, c); err != nil {
			return nil, err
		}
	}

	return st, nil
}
