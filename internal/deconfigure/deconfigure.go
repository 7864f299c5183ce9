// Package deconfigure implements a fire-and-forget side channel: when
// the session provider hits an access-denied assume-role failure, it
// publishes a notice here instead of invoking the hosting entry point
// directly. Publisher is a named outbound event channel that the host
// binds to its own entrypoint.
package deconfigure

import (
	"context"

	"github.com/google/uuid"
)

// Operation mirrors the side-channel payload's
// detail.operation field; Delete is the only operation the scheduler
// ever emits.
type Operation string

const OperationDelete Operation = "Delete"

// AccountEvent is the payload published when an account must be
// dropped from scheduling configuration:
// {"account": ..., "detail-type": "Parameter Store Change",
//  "detail": {"operation": "Delete"}}.
type AccountEvent struct {
	EventID   string
	Account   string
	DetailType string
	Operation Operation
}

// NewAccountDeleteEvent builds the event this package always emits on
// an access-denied assume-role failure.
func NewAccountDeleteEvent(account string) AccountEvent {
	return AccountEvent{
		EventID:    uuid.NewString(),
		Account:    account,
		DetailType: "Parameter Store Change",
		Operation:  OperationDelete,
	}
}

// Publisher is a best-effort outbound channel. Publish reports a
// delivery failure through its returned error; the caller logs it and
// the scheduling cycle carries on.
type Publisher interface {
	Publish(ctx context.Context, event AccountEvent) error
}

// NoopPublisher discards events; useful for tests and for local runs
// where no configuration store is wired up.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, AccountEvent) error { return nil }
