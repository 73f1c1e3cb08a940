package calendar

import (
	"context"
	"sync"
)

// PersisterStub is an in-memory Persister for tests.
type PersisterStub struct {
	mu      sync.Mutex
	records []Record
	saveErr error
	saves   int
}

func NewPersisterStub(records ...Record) *PersisterStub {
	return &PersisterStub{records: records}
}

func (p *PersisterStub) LoadAll(ctx context.Context) []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record{}, p.records...)
}

func (p *PersisterStub) SaveAll(ctx context.Context, records []Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saveErr != nil {
		return p.saveErr
	}
	p.records = append([]Record{}, records...)
	p.saves++
	return nil
}

// SetSaveError makes every following SaveAll fail with err (nil to reset).
func (p *PersisterStub) SetSaveError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveErr = err
}

// Records returns what was last saved.
func (p *PersisterStub) Records() []Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Record{}, p.records...)
}

// Saves returns the number of successful SaveAll calls.
func (p *PersisterStub) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}
