package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// EmptyName reports a name that failed the "non-empty, trimmed" invariant.
func EmptyName(entity string) *SchedulerError {
	return NewSchedulerError(ErrorCodeEmptyName, fmt.Sprintf("%s name must not be empty", entity))
}

// NameTooLong reports a name exceeding its entity's length bound.
func NameTooLong(entity string, length, max int) *SchedulerError {
	e := NewSchedulerError(ErrorCodeNameTooLong, fmt.Sprintf("%s name too long", entity))
	e.Details = fmt.Sprintf("len=%d max=%d", length, max)
	return e
}

// InvalidProfileName reports a profile name outside [A-Za-z0-9_- ]{1,64}.
func InvalidProfileName(name string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeInvalidProfileName, "profile name must match [A-Za-z0-9_- ]{1,64}")
	e.Details = name
	return e
}

// DuplicateProfile reports an attempt to create a profile whose name is
// already in use.
func DuplicateProfile(name string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeDuplicateProfile, "a profile with this name already exists")
	e.Details = name
	return e
}

// Overlap reports that a time-slot edit would overlap an existing slot on
// the same field.
func Overlap(fieldID, conflictingSlotID string) *OverlapError {
	return &OverlapError{
		SchedulerError:  NewSchedulerError(ErrorCodeOverlap, "time slot overlaps an existing slot on this field"),
		FieldID:         fieldID,
		ConflictingSlot: conflictingSlotID,
	}
}

// ZeroDuration reports a [start,end) interval with start == end.
func ZeroDuration() *SchedulerError {
	return NewSchedulerError(ErrorCodeZeroDuration, "time slot must have non-zero duration")
}

// EndBeforeStart reports a [start,end) interval with end < start
// (end == start is reported by ZeroDuration).
func EndBeforeStart() *SchedulerError {
	return NewSchedulerError(ErrorCodeEndBeforeStart, "time slot end must be after start")
}

// EmptyTarget reports a target with no required groups.
func EmptyTarget(targetID string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeEmptyTarget, "target has no required groups")
	e.Details = targetID
	return e
}

// DuplicateTarget reports two or more targets sharing the same identity
// tuple (group set plus practice character).
func DuplicateTarget(targetIDs []string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeDuplicateTarget, "targets share the same group set and practice character")
	e.Details = fmt.Sprintf("%v", targetIDs)
	return e
}

// ImpossibleTarget reports a target with fewer than 2 eligible teams
// overall, or (regional mode) in every region.
func ImpossibleTarget(targetID string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeImpossibleTarget, "target has fewer than 2 eligible teams")
	e.Details = targetID
	return e
}

// UndersuppliedTarget reports a target whose supplied slot count falls
// short of the required match count, component-wise.
func UndersuppliedTarget(targetID string, required, supplied int, region string) *UndersuppliedError {
	e := NewSchedulerError(ErrorCodeUndersuppliedTarget, "supplied slots do not cover required matches")
	return &UndersuppliedError{
		SchedulerError: e,
		TargetID:       targetID,
		Required:       required,
		Supplied:       supplied,
		Region:         region,
	}
}

// Unauthenticated reports a bearer token that failed signature or claim
// validation.
func Unauthenticated(reason string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeUnauthenticated, "bearer token rejected")
	e.Details = reason
	return e
}

// PermissionDenied reports a caller who is authenticated but not entitled
// to perform the requested action.
func PermissionDenied(reason string) *SchedulerError {
	e := NewSchedulerError(ErrorCodePermissionDenied, "not permitted")
	e.Details = reason
	return e
}

// ResourceExhausted reports the per-subject schedule-request rate limit
// being violated.
func ResourceExhausted(subject string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeResourceExhausted, "schedule request rate exceeded")
	e.Details = subject
	return e
}

// DeadlineExceeded reports the stream idle or total deadline elapsing.
func DeadlineExceeded() *SchedulerError {
	return NewSchedulerError(ErrorCodeDeadlineExceeded, "stream deadline exceeded")
}

// Internal wraps an unexpected failure as an Internal SchedulerError.
func Internal(cause error) *SchedulerError {
	return NewSchedulerErrorWithCause(ErrorCodeInternal, "internal error", cause)
}

// UnplacedPairs reports pairs that could not be placed within the
// available lanes; a warning, not fatal (spec section 7).
func UnplacedPairs(uniqueID uint32, count int) *UnplacedPairsWarning {
	e := NewSchedulerError(ErrorCodeUnplacedPairs, "not all pairs could be placed")
	return &UnplacedPairsWarning{SchedulerError: e, UniqueID: uniqueID, Count: count}
}

// MalformedInput reports an input that aborts scheduling for one
// ScheduledInput without terminating the stream.
func MalformedInput(uniqueID uint32, reason string) *SchedulerError {
	e := NewSchedulerError(ErrorCodeMalformedInput, "malformed scheduling input")
	e.Details = fmt.Sprintf("unique_id=%d: %s", uniqueID, reason)
	return e
}

// WrapError converts a generic error into a structured SchedulerError,
// recognizing context cancellation/deadlines first.
func WrapError(err error) *SchedulerError {
	if err == nil {
		return nil
	}

	var schedErr *SchedulerError
	if stderrors.As(err, &schedErr) {
		return schedErr
	}

	if stderrors.Is(err, context.Canceled) {
		return NewSchedulerErrorWithCause(ErrorCodeInternal, "operation was canceled", err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return NewSchedulerErrorWithCause(ErrorCodeDeadlineExceeded, "operation timed out", err)
	}

	return NewSchedulerErrorWithCause(ErrorCodeUnknown, err.Error(), err)
}
