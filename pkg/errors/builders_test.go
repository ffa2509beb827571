package errors

import (
	"context"
	"errors"
	"testing"
)

func TestEmptyName(t *testing.T) {
	err := EmptyName("region")
	if err.Code != ErrorCodeEmptyName {
		t.Errorf("got code %s, want %s", err.Code, ErrorCodeEmptyName)
	}
	if err.Category != CategoryValidation {
		t.Errorf("got category %s, want %s", err.Category, CategoryValidation)
	}
}

func TestNameTooLong(t *testing.T) {
	err := NameTooLong("team", 80, 64)
	if err.Code != ErrorCodeNameTooLong {
		t.Errorf("got code %s", err.Code)
	}
	if err.Details != "len=80 max=64" {
		t.Errorf("got details %q", err.Details)
	}
}

func TestOverlap(t *testing.T) {
	err := Overlap("field-1", "slot-9")
	if err.Code != ErrorCodeOverlap {
		t.Errorf("got code %s", err.Code)
	}
	if err.FieldID != "field-1" || err.ConflictingSlot != "slot-9" {
		t.Errorf("got field=%s slot=%s", err.FieldID, err.ConflictingSlot)
	}
}

func TestUndersuppliedTarget(t *testing.T) {
	err := UndersuppliedTarget("target-1", 6, 2, "region-a")
	if err.Required != 6 || err.Supplied != 2 || err.Region != "region-a" {
		t.Errorf("unexpected fields: %+v", err)
	}
	if err.Code != ErrorCodeUndersuppliedTarget {
		t.Errorf("got code %s", err.Code)
	}
}

func TestUnplacedPairs(t *testing.T) {
	w := UnplacedPairs(42, 3)
	if w.UniqueID != 42 || w.Count != 3 {
		t.Errorf("unexpected fields: %+v", w)
	}
	if w.Code != ErrorCodeUnplacedPairs {
		t.Errorf("got code %s", w.Code)
	}
}

func TestMalformedInput(t *testing.T) {
	err := MalformedInput(7, "duplicate team id")
	if err.Code != ErrorCodeMalformedInput {
		t.Errorf("got code %s", err.Code)
	}
	if err.Details != "unique_id=7: duplicate team id" {
		t.Errorf("got details %q", err.Details)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil) != nil {
		t.Error("expected nil for nil input")
	}

	already := NewSchedulerError(ErrorCodeOverlap, "x")
	if got := WrapError(already); got != already {
		t.Errorf("expected WrapError to pass through an existing SchedulerError unchanged")
	}

	if got := WrapError(context.Canceled); got.Code != ErrorCodeInternal {
		t.Errorf("expected context.Canceled to map to Internal, got %s", got.Code)
	}

	if got := WrapError(context.DeadlineExceeded); got.Code != ErrorCodeDeadlineExceeded {
		t.Errorf("expected context.DeadlineExceeded to map to DeadlineExceeded, got %s", got.Code)
	}

	plain := errors.New("boom")
	if got := WrapError(plain); got.Code != ErrorCodeUnknown || got.Cause != plain {
		t.Errorf("expected plain error to map to Unknown with cause preserved, got %+v", got)
	}
}

func TestClassifyAuthFailure(t *testing.T) {
	err := ClassifyAuthFailure("signature mismatch")
	if err.Code != ErrorCodeUnauthenticated {
		t.Errorf("got code %s", err.Code)
	}
	if err.Details != "signature mismatch" {
		t.Errorf("got details %q", err.Details)
	}
}

func TestIsExpiredTokenReason(t *testing.T) {
	if !IsExpiredTokenReason("token is expired") {
		t.Error("expected expired reason to be detected")
	}
	if IsExpiredTokenReason("signature is invalid") {
		t.Error("expected non-expiry reason to not be detected")
	}
}
