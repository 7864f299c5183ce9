// Package statestore implements a keyed persistence of the last
// desired state recorded for each instance, scoped by
// (service, account, region).
package statestore

import (
	"context"
	"fmt"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

// Store is the per-scope view the engine interacts with during one
// cycle. Load must be called before Get/Set/Delete are meaningful;
// Cleanup and Save are called once per (account, region) at the end of
// the region loop.
type Store interface {
	// Load fetches all records whose key prefix matches
	// (service, account, region) into memory.
	Load(ctx context.Context, account, region string) error

	// Get returns the last recorded state for instanceID, or
	// model.StateUnknown if no record exists.
	Get(instanceID string) model.DesiredState

	// Set records state for instanceID in memory.
	Set(instanceID string, state model.DesiredState)

	// Delete removes any in-memory record for instanceID.
	Delete(instanceID string)

	// Cleanup removes any in-memory record whose id is not present in
	// observedIDs.
	Cleanup(observedIDs []string)

	// Save persists the in-memory snapshot in one Backend.BatchWrite
	// call; it is all-or-nothing only where that backend's write is
	// (the DynamoDB backend's is not, across 25-item chunks).
	Save(ctx context.Context) error
}

// Item is one record as stored by a Backend: composite key plus value.
type Item struct {
	Service  string
	Account  string
	Region   string
	Instance string
	State    model.DesiredState
}

func (i Item) key() string {
	return fmt.Sprintf("%s|%s|%s|%s", i.Service, i.Account, i.Region, i.Instance)
}

// Backend is the durable key-value layer a Store is built on: a range
// scan by (service, account, region) prefix, and a batched write. Spec
// §6 describes the reference deployment as a hosted key-value table
// (DynamoDB in production); Backend is the seam that lets tests swap in
// an in-memory implementation.
type Backend interface {
	Scan(ctx context.Context, service, account, region string) ([]Item, error)
	BatchWrite(ctx context.Context, puts []Item, deletes []Item) error
}
