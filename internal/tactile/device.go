// Package tactile is the action-execution layer: the Device capability
// interface a domain backend implements, and the harness that runs one
// queued action against a device with precondition gating and rollback of
// optimistically pre-committed postconditions.
package tactile

import (
	"context"

	"converse/internal/state"
	"converse/internal/types"
)

// Device is the capability interface a concrete action backend implements.
// The core stays ignorant of what the device actually does; timeouts and
// cancellation are the device's concern and surface only as a FAILURE
// result.
type Device interface {
	// CheckPreconditions reports whether the action may execute now.
	CheckPreconditions(ctx context.Context, a *types.Action, is *state.InformationState) bool

	// Execute performs the action. A FAILURE outcome is a result, not an
	// error; a non-nil error is an internal defect and propagates.
	Execute(ctx context.Context, a *types.Action, is *state.InformationState) (*types.ActionResult, error)

	// Postconditions declares what the action establishes on success.
	// Also consulted off the execution path for rollback eligibility.
	Postconditions(a *types.Action) []types.Proposition
}
