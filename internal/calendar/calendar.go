// Package calendar implements the time-slot algebra that backs the
// calendar editor and feeds the scheduling engine: overlap detection,
// insert/move with rejection on conflict, transactional batch copy and
// delete, and per-field/reservation-type concurrency lookup.
package calendar

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldz/scheduler-engine/internal/model"
	schederrors "github.com/fieldz/scheduler-engine/pkg/errors"
)

// FieldSlots is an in-memory view of one field's time slots, keyed by slot
// id, used by every operation in this package. Callers own the map and are
// expected to persist the result through the entity store after a
// successful call.
type FieldSlots struct {
	FieldID string
	Slots   map[string]model.TimeSlot
}

// NewFieldSlots builds a FieldSlots view from a flat slice, as returned by
// an entity store read.
func NewFieldSlots(fieldID string, slots []model.TimeSlot) *FieldSlots {
	m := make(map[string]model.TimeSlot, len(slots))
	for _, s := range slots {
		m[s.ID] = s
	}
	return &FieldSlots{FieldID: fieldID, Slots: m}
}

// Overlaps reports whether two intervals intersect under the half-open
// convention: a.start < b.end && b.start < a.end.
func Overlaps(a, b model.TimeSlot) bool {
	return a.Overlaps(b)
}

// conflictsWithAny reports whether a candidate [start,end) interval
// overlaps any existing slot, optionally ignoring one slot id (used by
// Move to exclude the slot being moved from its own check).
func (fs *FieldSlots) conflictsWithAny(start, end time.Time, ignoreID string) bool {
	candidate := model.TimeSlot{Start: start, End: end}
	for id, s := range fs.Slots {
		if id == ignoreID {
			continue
		}
		if candidate.Overlaps(s) {
			return true
		}
	}
	return false
}

// Insert creates a new slot on the field if it does not overlap any
// existing slot. Zero-duration and inverted intervals are rejected before
// the overlap check runs.
func (fs *FieldSlots) Insert(start, end time.Time, reservationTypeID string) (string, error) {
	if !start.Before(end) {
		if start.Equal(end) {
			return "", schederrors.ZeroDuration()
		}
		return "", schederrors.EndBeforeStart()
	}
	if fs.conflictsWithAny(start, end, "") {
		return "", schederrors.Overlap(fs.FieldID, "")
	}

	id := uuid.NewString()
	fs.Slots[id] = model.TimeSlot{
		ID:                id,
		FieldID:           fs.FieldID,
		ReservationTypeID: reservationTypeID,
		Start:             start,
		End:               end,
	}
	return id, nil
}

// Move relocates an existing slot to a new interval, atomically: either
// the move succeeds in full or the slot set is left untouched.
func (fs *FieldSlots) Move(slotID string, newStart, newEnd time.Time) error {
	existing, ok := fs.Slots[slotID]
	if !ok {
		return schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown slot id")
	}
	if !newStart.Before(newEnd) {
		if newStart.Equal(newEnd) {
			return schederrors.ZeroDuration()
		}
		return schederrors.EndBeforeStart()
	}
	if fs.conflictsWithAny(newStart, newEnd, slotID) {
		return schederrors.Overlap(fs.FieldID, slotID)
	}

	existing.Start = newStart
	existing.End = newEnd
	fs.Slots[slotID] = existing
	return nil
}

// BatchCopy shifts every slot in the inclusive id range by the offset
// implied by moving the range's earliest slot to dstStart, inserting
// shifted copies that preserve each slot's reservation type. The
// operation is transactional: either every copy is inserted or none are.
func (fs *FieldSlots) BatchCopy(rangeIDs []string, dstStart time.Time) ([]string, error) {
	if len(rangeIDs) == 0 {
		return nil, nil
	}

	ordered := make([]model.TimeSlot, 0, len(rangeIDs))
	for _, id := range rangeIDs {
		s, ok := fs.Slots[id]
		if !ok {
			return nil, schederrors.NewSchedulerError(schederrors.ErrorCodeMalformedInput, "unknown slot id in range: "+id)
		}
		ordered = append(ordered, s)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	delta := dstStart.Sub(ordered[0].Start)

	// Validate every shifted copy against the current set (and against
	// each other) before mutating anything, so the operation is all-or-none.
	shifted := make([]model.TimeSlot, len(ordered))
	probe := make(map[string]model.TimeSlot, len(fs.Slots))
	for k, v := range fs.Slots {
		probe[k] = v
	}
	for i, s := range ordered {
		newStart := s.Start.Add(delta)
		newEnd := s.End.Add(delta)
		candidate := model.TimeSlot{Start: newStart, End: newEnd}
		for _, other := range probe {
			if candidate.Overlaps(other) {
				return nil, schederrors.Overlap(fs.FieldID, "")
			}
		}
		id := uuid.NewString()
		newSlot := model.TimeSlot{
			ID:                id,
			FieldID:           fs.FieldID,
			ReservationTypeID: s.ReservationTypeID,
			Start:             newStart,
			End:               newEnd,
		}
		probe[id] = newSlot
		shifted[i] = newSlot
	}

	ids := make([]string, len(shifted))
	for i, s := range shifted {
		fs.Slots[s.ID] = s
		ids[i] = s.ID
	}
	return ids, nil
}

// BatchDelete removes every slot whose id is present in ids; ids that do
// not exist in the field are simply ignored (batch delete targets a range
// by presence, not by contiguity).
func (fs *FieldSlots) BatchDelete(ids []string) int {
	removed := 0
	for _, id := range ids {
		if _, ok := fs.Slots[id]; ok {
			delete(fs.Slots, id)
			removed++
		}
	}
	return removed
}

// CapacityResolver answers the per-field/reservation-type concurrency
// lookup used by the analyzer's supply count and the builder's wire
// concurrency, which the engine's slot-expansion step then reads.
type CapacityResolver struct {
	defaults  map[string]int // reservationTypeID -> default concurrency
	overrides map[string]int // fieldID+"|"+reservationTypeID -> concurrency
}

// NewCapacityResolver builds a resolver from the reservation-type
// defaults and any per-field overrides.
func NewCapacityResolver(types []model.ReservationType, overrides []model.FieldConcurrencyOverride) *CapacityResolver {
	r := &CapacityResolver{
		defaults:  make(map[string]int, len(types)),
		overrides: make(map[string]int, len(overrides)),
	}
	for _, t := range types {
		r.defaults[t.ID] = t.DefaultConcurrency
	}
	for _, o := range overrides {
		r.overrides[o.FieldID+"|"+o.ReservationTypeID] = o.Concurrency
	}
	return r
}

// Capacity returns the override for (field, reservation-type) if present,
// else the reservation type's default.
func (r *CapacityResolver) Capacity(fieldID, reservationTypeID string) int {
	if c, ok := r.overrides[fieldID+"|"+reservationTypeID]; ok {
		return c
	}
	return r.defaults[reservationTypeID]
}
