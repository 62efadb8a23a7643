package tactile

import (
	"context"
	"fmt"
	"sync"

	"converse/internal/state"
	"converse/internal/types"
)

// SimDevice is a scriptable in-memory device used by the demo CLI and by
// tests. Unscripted actions succeed and establish their declared
// postconditions.
type SimDevice struct {
	mu sync.Mutex

	// Declare supplies the declared postconditions per action, typically
	// Registry.Postconditions.
	Declare func(a *types.Action) []types.Proposition

	// Gate, when set, overrides the default precondition check (every
	// declared precondition predicate committed).
	Gate func(a *types.Action, is *state.InformationState) bool

	// Script forces an outcome per action name.
	Script map[string]types.ResultStatus

	// Executed records action names in execution order.
	Executed []string
}

var _ Device = (*SimDevice)(nil)

// CheckPreconditions verifies every declared precondition predicate has a
// commitment, unless a custom gate is installed.
func (d *SimDevice) CheckPreconditions(_ context.Context, a *types.Action, is *state.InformationState) bool {
	if d.Gate != nil {
		return d.Gate(a, is)
	}
	for _, pred := range a.Preconditions {
		if !is.Commitments.HasPredicate(pred) {
			return false
		}
	}
	return true
}

// Execute applies the script, defaulting to success.
func (d *SimDevice) Execute(_ context.Context, a *types.Action, _ *state.InformationState) (*types.ActionResult, error) {
	d.mu.Lock()
	d.Executed = append(d.Executed, a.Name)
	forced, scripted := types.ResultSuccess, false
	if d.Script != nil {
		if status, ok := d.Script[a.Name]; ok {
			forced, scripted = status, true
		}
	}
	d.mu.Unlock()

	if scripted && forced != types.ResultSuccess {
		return &types.ActionResult{
			Status:       forced,
			ErrorMessage: fmt.Sprintf("%s refused by backend", a.Name),
		}, nil
	}
	return &types.ActionResult{
		Status:         types.ResultSuccess,
		Value:          fmt.Sprintf("%s completed", a.Name),
		Postconditions: d.Postconditions(a),
	}, nil
}

// Postconditions returns the declared postconditions.
func (d *SimDevice) Postconditions(a *types.Action) []types.Proposition {
	if d.Declare == nil {
		return nil
	}
	return d.Declare(a)
}
