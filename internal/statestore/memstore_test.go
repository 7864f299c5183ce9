package statestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuervo-cloud/fleet-scheduler/internal/model"
)

type fakeBackend struct {
	scanItems []Item
	scanErr   error

	writeErr  error
	writeErrsLeft int
	puts      []Item
	deletes   []Item
	writeCalls int
}

func (f *fakeBackend) Scan(context.Context, string, string, string) ([]Item, error) {
	return f.scanItems, f.scanErr
}

func (f *fakeBackend) BatchWrite(_ context.Context, puts []Item, deletes []Item) error {
	f.writeCalls++
	if f.writeErrsLeft > 0 {
		f.writeErrsLeft--
		return f.writeErr
	}
	f.puts = puts
	f.deletes = deletes
	return nil
}

func TestInstanceStates_LoadPopulatesRecords(t *testing.T) {
	backend := &fakeBackend{scanItems: []Item{
		{Service: "ec2", Account: "111", Region: "us-east-1", Instance: "i-1", State: model.StateRunning},
	}}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	assert.Equal(t, model.StateRunning, s.Get("i-1"))
	assert.Equal(t, model.StateUnknown, s.Get("i-missing"))
}

func TestInstanceStates_SetMarksDirtyAndUnremoves(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	s.Delete("i-1")
	s.Set("i-1", model.StateRunning)

	require.NoError(t, s.Save(context.Background()))
	require.Len(t, backend.puts, 1)
	assert.Equal(t, "i-1", backend.puts[0].Instance)
	assert.Empty(t, backend.deletes)
}

func TestInstanceStates_CleanupRemovesUnobserved(t *testing.T) {
	backend := &fakeBackend{scanItems: []Item{
		{Instance: "i-1", State: model.StateRunning},
		{Instance: "i-2", State: model.StateStopped},
	}}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	s.Cleanup([]string{"i-1"})

	assert.Equal(t, model.StateRunning, s.Get("i-1"))
	assert.Equal(t, model.StateUnknown, s.Get("i-2"))

	require.NoError(t, s.Save(context.Background()))
	require.Len(t, backend.deletes, 1)
	assert.Equal(t, "i-2", backend.deletes[0].Instance)
}

func TestInstanceStates_SaveIsNoOpWithNoPendingMutations(t *testing.T) {
	backend := &fakeBackend{}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 0, backend.writeCalls)
}

func TestInstanceStates_SaveRetriesThenSucceeds(t *testing.T) {
	backend := &fakeBackend{writeErrsLeft: 2, writeErr: assert.AnError}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	s.Set("i-1", model.StateRunning)

	require.NoError(t, s.Save(context.Background()))
	assert.Equal(t, 3, backend.writeCalls)
}

func TestInstanceStates_SaveFailsAfterExhaustingRetries(t *testing.T) {
	backend := &fakeBackend{writeErrsLeft: 10, writeErr: assert.AnError}
	s := New(backend, "ec2")
	require.NoError(t, s.Load(context.Background(), "111", "us-east-1"))
	s.Set("i-1", model.StateRunning)

	err := s.Save(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 5, backend.writeCalls)
}

func TestInstanceStates_LoadErrorPropagates(t *testing.T) {
	backend := &fakeBackend{scanErr: assert.AnError}
	s := New(backend, "ec2")
	err := s.Load(context.Background(), "111", "us-east-1")
	assert.Error(t, err)
}
