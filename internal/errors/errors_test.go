// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindValidation, "invalid input")
	if GetKind(err) != KindValidation {
		t.Errorf("expected KindValidation, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestUnwrapChain(t *testing.T) {
	sentinel := errors.New("device busy")
	wrapped := Wrap(sentinel, KindConflict, "plumb failed")

	if !Is(wrapped, sentinel) {
		t.Error("expected wrapped error to match sentinel via Is")
	}
	if Unwrap(wrapped) != sentinel {
		t.Errorf("expected Unwrap to return sentinel, got %v", Unwrap(wrapped))
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, KindInternal, "nope") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, KindInternal, "nope %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}
}
