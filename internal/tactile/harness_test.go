package tactile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converse/internal/state"
	"converse/internal/types"
)

func declare(a *types.Action) []types.Proposition {
	switch a.Name {
	case "book_hotel":
		return []types.Proposition{types.PropArgs("hotel_booked", a.Params)}
	case "book_trip":
		return []types.Proposition{types.PropArgs("trip_booked", a.Params)}
	}
	return nil
}

func queued(is *state.InformationState, name string) *types.Action {
	a := types.NewAction("booking", name, map[string]string{"destination": "paris"})
	is.EnqueueAction(a)
	return a
}

func TestPerformSuccessCommitsAndDequeues(t *testing.T) {
	dev := &SimDevice{Declare: declare}
	is := state.New()
	a := queued(is, "book_trip")

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)

	assert.Equal(t, types.ResultSuccess, outcome.Result.Status)
	assert.True(t, outcome.Dequeued)
	assert.Equal(t, types.ActionSucceeded, a.Status)
	assert.Empty(t, is.Actions)
	assert.True(t, is.Commitments.HasPredicate("trip_booked"))
	assert.Equal(t, []string{"book_trip"}, dev.Executed)
}

func TestPerformFailureRollsBackOptimisticCommitments(t *testing.T) {
	dev := &SimDevice{
		Declare: declare,
		Script:  map[string]types.ResultStatus{"book_hotel": types.ResultFailure},
	}
	is := state.New()
	is.Commitments.Add(types.PropArgs("hotel_booked", map[string]string{"destination": "paris"}))
	a := queued(is, "book_hotel")

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)

	assert.Equal(t, types.ResultFailure, outcome.Result.Status)
	assert.True(t, outcome.Dequeued)
	assert.Equal(t, types.ActionFailed, a.Status)
	assert.Empty(t, is.Actions)

	require.Len(t, outcome.RolledBack, 1)
	assert.Equal(t, "hotel_booked", outcome.RolledBack[0].Predicate)
	assert.False(t, is.Commitments.HasPredicate("hotel_booked"))

	require.Len(t, is.Rollbacks, 1)
	assert.Equal(t, "book_hotel", is.Rollbacks[0].ActionName)
	assert.Len(t, is.Rollbacks[0].Retracted, 1)
}

func TestPerformFailureWithNothingToRollBack(t *testing.T) {
	dev := &SimDevice{
		Declare: declare,
		Script:  map[string]types.ResultStatus{"book_hotel": types.ResultFailure},
	}
	is := state.New()
	a := queued(is, "book_hotel")

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)

	assert.Empty(t, outcome.RolledBack)
	require.Len(t, is.Rollbacks, 1, "the failure is still recorded")
	assert.Empty(t, is.Rollbacks[0].Retracted)
}

func TestPerformPreconditionFailureStaysQueued(t *testing.T) {
	dev := &SimDevice{Declare: declare}
	is := state.New()
	a := queued(is, "book_trip")
	a.Preconditions = []string{"payment_method"}

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)

	assert.Equal(t, types.ResultPreconditionFailed, outcome.Result.Status)
	assert.False(t, outcome.Dequeued)
	assert.Len(t, is.Actions, 1)
	assert.Empty(t, dev.Executed, "the device is never consulted")

	// Committing the missing predicate unblocks the same action.
	is.Commitments.Add(types.Prop("payment_method", "visa"))
	outcome, err = Perform(context.Background(), dev, a, is)
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, outcome.Result.Status)
}

func TestPerformScriptedPreconditionResultRequeues(t *testing.T) {
	dev := &SimDevice{
		Declare: declare,
		Script:  map[string]types.ResultStatus{"book_trip": types.ResultPreconditionFailed},
	}
	is := state.New()
	a := queued(is, "book_trip")

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)

	assert.Equal(t, types.ResultPreconditionFailed, outcome.Result.Status)
	assert.False(t, outcome.Dequeued)
	assert.Equal(t, types.ActionQueued, a.Status)
	assert.Len(t, is.Actions, 1)
}

type faultyDevice struct {
	SimDevice
	err    error
	result *types.ActionResult
}

func (d *faultyDevice) Execute(context.Context, *types.Action, *state.InformationState) (*types.ActionResult, error) {
	return d.result, d.err
}

func TestPerformDeviceErrorPropagates(t *testing.T) {
	boom := errors.New("backend unreachable")
	is := state.New()
	a := queued(is, "book_trip")

	_, err := Perform(context.Background(), &faultyDevice{err: boom}, a, is)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, types.ActionFailed, a.Status)

	a2 := queued(is, "book_trip")
	_, err = Perform(context.Background(), &faultyDevice{}, a2, is)
	require.ErrorContains(t, err, "no result")
}

func TestSimDeviceGateOverridesPreconditions(t *testing.T) {
	dev := &SimDevice{
		Declare: declare,
		Gate:    func(*types.Action, *state.InformationState) bool { return true },
	}
	is := state.New()
	a := queued(is, "book_trip")
	a.Preconditions = []string{"never_committed"}

	outcome, err := Perform(context.Background(), dev, a, is)
	require.NoError(t, err)
	assert.Equal(t, types.ResultSuccess, outcome.Result.Status)
}
