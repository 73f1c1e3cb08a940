package calendar

import "context"

// Persister stores and loads the whole event collection at once.
//
// LoadAll never fails: missing or unreadable data yields an empty collection.
// SaveAll replaces everything previously stored.
type Persister interface {
	LoadAll(ctx context.Context) []Record
	SaveAll(ctx context.Context, records []Record) error
}
