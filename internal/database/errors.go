package database

import "errors"

var (
	// ErrRunNotFound is returned when no run matches the given ID or prefix.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("ambiguous run ID prefix")

	// ErrDatabaseNotFound is returned by Open when the database file is
	// missing and CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("database not found")
)
