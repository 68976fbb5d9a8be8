// Package store defines the collection store interface and implementations.
package store

import "errors"

var (
	// ErrNotFound is returned when an id is out of range or tombstoned.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is returned by AppendUnique when a live record already
	// holds the same value for the unique field.
	ErrDuplicate = errors.New("duplicate record")
)

// Record is a single document in a collection.
type Record = map[string]any

// Store is the interface that all backing stores must implement.
// It operates on named collections, where each collection is an ordered
// sequence of slots. A record's id is its zero-based slot position; ids are
// never reused and deleting a record leaves a tombstone in its slot.
//
// Every method is atomic with respect to the others.
type Store interface {
	// Append adds rec at the end of a collection and returns its id.
	Append(collection string, rec Record) (int, error)

	// AppendUnique appends rec unless a live record already has the same
	// value for field, in which case it returns ErrDuplicate.
	AppendUnique(collection string, rec Record, field string) (int, error)

	// Get returns the record at id, or ErrNotFound.
	Get(collection string, id int) (Record, error)

	// Replace overwrites the record at id. Fields named in keep are copied
	// from the existing record rather than taken from rec.
	Replace(collection string, id int, rec Record, keep ...string) (Record, error)

	// Merge overwrites only the fields present in partial. Fields named in
	// keep are never changed.
	Merge(collection string, id int, partial Record, keep ...string) (Record, error)

	// Tombstone marks the record at id as deleted.
	Tombstone(collection string, id int) error

	// Len returns the number of slots in a collection, tombstones included.
	Len(collection string) (int, error)

	// Slice returns the slots in [start, end), clamped to the collection.
	// Tombstoned slots are nil.
	Slice(collection string, start, end int) ([]Record, error)

	// Close releases any resources held by the store.
	Close() error
}

// clampRange bounds [start, end) to a collection of n slots.
func clampRange(start, end, n int) (int, int) {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start > end {
		start = end
	}
	return start, end
}

// withKept returns rec with the fields in keep copied from prev.
func withKept(rec, prev Record, keep []string) Record {
	for _, field := range keep {
		if v, ok := prev[field]; ok {
			rec[field] = v
		} else {
			delete(rec, field)
		}
	}
	return rec
}

// withoutKept returns partial minus the fields in keep.
func withoutKept(partial Record, keep []string) Record {
	for _, field := range keep {
		delete(partial, field)
	}
	return partial
}
