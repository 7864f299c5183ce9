package statestore

import (
	"context"
	"fmt"

	"github.com/avast/retry-go"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// InstanceStates is the production Store implementation: it mirrors one
// (service, account, region) scope into memory on Load, tracks
// mutations, and commits them to a Backend on Save, using an explicit
// in-memory map instead of per-item DynamoDB calls.
type InstanceStates struct {
	backend Backend
	service string

	account string
	region  string

	records map[string]model.DesiredState
	dirty   map[string]model.DesiredState
	removed map[string]bool
}

// New returns a Store scoped to service; Load must be called to bind it
// to an (account, region) before use.
func New(backend Backend, service string) *InstanceStates {
	return &InstanceStates{
		backend: backend,
		service: service,
		records: map[string]model.DesiredState{},
		dirty:   map[string]model.DesiredState{},
		removed: map[string]bool{},
	}
}

func (s *InstanceStates) Load(ctx context.Context, account, region string) error {
	items, err := s.backend.Scan(ctx, s.service, account, region)
	if err != nil {
		return fmt.Errorf("loading instance states for %s/%s/%s: %w", s.service, account, region, err)
	}
	s.account = account
	s.region = region
	s.records = make(map[string]model.DesiredState, len(items))
	s.dirty = map[string]model.DesiredState{}
	s.removed = map[string]bool{}
	for _, it := range items {
		s.records[it.Instance] = it.State
	}
	return nil
}

func (s *InstanceStates) Get(instanceID string) model.DesiredState {
	if st, ok := s.records[instanceID]; ok {
		return st
	}
	return model.StateUnknown
}

func (s *InstanceStates) Set(instanceID string, state model.DesiredState) {
	s.records[instanceID] = state
	delete(s.removed, instanceID)
	s.dirty[instanceID] = state
}

func (s *InstanceStates) Delete(instanceID string) {
	delete(s.records, instanceID)
	delete(s.dirty, instanceID)
	s.removed[instanceID] = true
}

// Cleanup removes any in-memory record whose id is not in observedIDs.
func (s *InstanceStates) Cleanup(observedIDs []string) {
	keep := make(map[string]bool, len(observedIDs))
	for _, id := range observedIDs {
		keep[id] = true
	}
	for id := range s.records {
		if !keep[id] {
			s.Delete(id)
		}
	}
}

// Save persists the in-memory snapshot's pending mutations through one
// Backend.BatchWrite call. It retries transient backend failures with
// the standard retry policy (5 attempts) used throughout this scheduler
// for AWS calls; a failure after retries is fatal for this (account,
// region) scope. Save is only as atomic as the Backend's BatchWrite: the
// DynamoDB backend writes in 25-item chunks and keeps the chunks written
// before a failure.
func (s *InstanceStates) Save(ctx context.Context) error {
	if len(s.dirty) == 0 && len(s.removed) == 0 {
		return nil
	}
	puts := make([]Item, 0, len(s.dirty))
	for id, state := range s.dirty {
		puts = append(puts, Item{Service: s.service, Account: s.account, Region: s.region, Instance: id, State: state})
	}
	deletes := make([]Item, 0, len(s.removed))
	for id := range s.removed {
		deletes = append(deletes, Item{Service: s.service, Account: s.account, Region: s.region, Instance: id})
	}

	err := retry.Do(
		func() error { return s.backend.BatchWrite(ctx, puts, deletes) },
		retry.Attempts(5),
		retry.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("saving instance states for %s/%s/%s: %w", s.service, s.account, s.region, err)
	}
	s.dirty = map[string]model.DesiredState{}
	s.removed = map[string]bool{}
	return nil
}
