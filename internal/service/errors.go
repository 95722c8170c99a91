package service

import "errors"

// Sentinel conditions services wrap their errors with. The supervisor treats
// the first four as skip reasons (logged, recorded, never fatal); only
// ErrTransient marks a real failed attempt.
var (
	ErrDisabled       = errors.New("subsystem disabled")
	ErrToolMissing    = errors.New("tool not on PATH")
	ErrNotConfigured  = errors.New("not configured")
	ErrNotInitialized = errors.New("not initialized")
	ErrStale          = errors.New("stale pid file")
	ErrTransient      = errors.New("command failed")
)

// skippable reports whether err describes a missing prerequisite rather than
// a failed attempt.
func skippable(err error) bool {
	return errors.Is(err, ErrDisabled) ||
		errors.Is(err, ErrToolMissing) ||
		errors.Is(err, ErrNotConfigured) ||
		errors.Is(err, ErrNotInitialized)
}

// statusFor maps a skip reason to the state it describes.
func statusFor(err error) Status {
	switch {
	case errors.Is(err, ErrDisabled):
		return Status{State: StateDisabled}
	case errors.Is(err, ErrNotInitialized):
		return Status{State: StateNotInitialized, Detail: err.Error()}
	case errors.Is(err, ErrToolMissing), errors.Is(err, ErrNotConfigured):
		return Status{State: StateNotConfigured, Detail: err.Error()}
	}
	return Status{State: StateStopped, Detail: err.Error()}
}
