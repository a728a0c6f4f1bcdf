// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package models

import "errors"

// Failure kinds surfaced by the engines. Anything else coming out of an
// engine is a persistence error and propagates to the caller untranslated.
var (
	// ErrNotFound: a referenced call, participant, list, message, room,
	// poll, or option does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState: the operation targets a terminal call, a closed
	// poll, a poll past its deadline, or a regressive delivery transition.
	ErrInvalidState = errors.New("invalid state")

	// ErrPermissionDenied: the actor lacks the required role, e.g. a
	// non-creator closing a poll or a non-owner editing a list.
	ErrPermissionDenied = errors.New("permission denied")
)
