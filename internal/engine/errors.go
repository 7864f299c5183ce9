package engine

import "errors"

// The sentinels below form the engine's error taxonomy, named by
// behavior rather than by transport. Each is documented with the scope
// it is contained to; engine.Run itself only ever returns an error for
// the cycle-level (ErrConfiguration) case — everything else is logged
// and contained at a narrower scope.
var (
	// ErrAssumeRoleAccessDenied: emit deconfigure notice, skip account,
	// continue cycle. Scope: account. Handled entirely inside
	// internal/accounts; surfaced here only for documentation.
	ErrAssumeRoleAccessDenied = errors.New("engine: assume role access denied")

	// ErrAssumeRoleOther: log, skip account, continue cycle. Scope: account.
	ErrAssumeRoleOther = errors.New("engine: assume role failed")

	// ErrUnknownSchedule: warn, skip instance. Scope: instance.
	ErrUnknownSchedule = errors.New("engine: unknown schedule")

	// ErrResizeFailed: warn, exclude instance from start list this
	// cycle, retried next cycle. Scope: instance.
	ErrResizeFailed = errors.New("engine: resize failed")

	// ErrStateStoreLoad: fatal for this (account, region) scope; skip
	// scope. Scope: region.
	ErrStateStoreLoad = errors.New("engine: state store load failed")

	// ErrStateStoreSave: fatal for this scope; no partial save, next
	// cycle re-derives. Scope: region.
	ErrStateStoreSave = errors.New("engine: state store save failed")

	// ErrConfiguration: bad zone, missing mandatory field. Fatal for the
	// entire cycle. Scope: cycle.
	ErrConfiguration = errors.New("engine: configuration error")
)
