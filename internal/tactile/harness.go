package tactile

import (
	"context"
	"fmt"

	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// Outcome summarizes one execution attempt for the selection rules.
type Outcome struct {
	Result *types.ActionResult

	// Dequeued is true when the action left the queue (success or
	// failure). On a precondition failure the action stays queued.
	Dequeued bool

	// RolledBack lists commitments retracted because the failed action
	// had already established them optimistically.
	RolledBack []types.Proposition
}

// Perform runs the head queued action against the device and applies the
// outcome to the state: success commits the postconditions and dequeues;
// failure dequeues, rolls back any matching optimistic commitments and
// records a rollback notice; a precondition failure leaves the action
// queued untouched. There is no automatic retry on any path.
func Perform(ctx context.Context, dev Device, a *types.Action, is *state.InformationState) (*Outcome, error) {
	timer := logging.StartTimer(logging.CategoryTactile, "Perform")
	defer timer.Stop()

	if !dev.CheckPreconditions(ctx, a, is) {
		logging.Tactile("action %s (%s): preconditions not met, staying queued", a.Name, a.ID)
		return &Outcome{
			Result: &types.ActionResult{
				Status:       types.ResultPreconditionFailed,
				ErrorMessage: fmt.Sprintf("preconditions not met for %s", a.Name),
			},
		}, nil
	}

	a.Status = types.ActionExecuting
	result, err := dev.Execute(ctx, a, is)
	if err != nil {
		a.Status = types.ActionFailed
		return nil, fmt.Errorf("device failed executing %s: %w", a.Name, err)
	}
	if result == nil {
		a.Status = types.ActionFailed
		return nil, fmt.Errorf("device returned no result for %s", a.Name)
	}

	switch result.Status {
	case types.ResultSuccess:
		a.Status = types.ActionSucceeded
		for _, p := range result.Postconditions {
			is.Commitments.Add(p)
		}
		dequeueAction(is, a.ID)
		logging.Tactile("action %s succeeded, %d postconditions committed", a.Name, len(result.Postconditions))
		return &Outcome{Result: result, Dequeued: true}, nil

	case types.ResultFailure:
		a.Status = types.ActionFailed
		dequeueAction(is, a.ID)
		rolled := rollback(dev, a, is, result.ErrorMessage)
		logging.Tactile("action %s failed (%s), rolled back %d commitments",
			a.Name, result.ErrorMessage, len(rolled))
		return &Outcome{Result: result, Dequeued: true, RolledBack: rolled}, nil

	case types.ResultPreconditionFailed:
		a.Status = types.ActionQueued
		return &Outcome{Result: result}, nil

	default:
		a.Status = types.ActionFailed
		return nil, fmt.Errorf("device returned unknown result status %q for %s", result.Status, a.Name)
	}
}

// rollback retracts any commitment matching the failed action's declared
// postconditions. This covers optimistic pre-commitment: the state may
// already assert what the action was going to establish.
func rollback(dev Device, a *types.Action, is *state.InformationState, reason string) []types.Proposition {
	var rolled []types.Proposition
	for _, p := range dev.Postconditions(a) {
		if removed := is.Commitments.RetractPredicate(p.Predicate); len(removed) > 0 {
			rolled = append(rolled, removed...)
		}
	}
	if len(rolled) > 0 || reason != "" {
		notice := state.RollbackNotice{ActionName: a.Name, Reason: reason}
		for _, p := range rolled {
			notice.Retracted = append(notice.Retracted, p.Canonical())
		}
		is.Rollbacks = append(is.Rollbacks, notice)
	}
	return rolled
}

func dequeueAction(is *state.InformationState, id string) {
	for i, queued := range is.Actions {
		if queued.ID == id {
			is.Actions = append(is.Actions[:i], is.Actions[i+1:]...)
			return
		}
	}
}
