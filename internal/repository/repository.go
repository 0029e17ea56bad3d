package repository

// Package repository contains data access layer abstractions.
// Implementations can live in subpackages (e.g., postgres) inside this directory.

import "errors"

var (
	// ErrDuplicate reports a uniqueness violation (payment reference or
	// provider transaction id already recorded).
	ErrDuplicate = errors.New("duplicate record")

	// ErrStale reports a lost compare-and-set: the row's status no longer
	// matches the state the caller observed.
	ErrStale = errors.New("stale record")
)
