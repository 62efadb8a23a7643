package state

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"converse/internal/types"
)

func TestQUDStackSemantics(t *testing.T) {
	is := New()
	q1 := types.WhAbout("destination")
	q2 := types.WhAbout("departure_day")

	is.PushQUD(q1)
	is.PushQUD(q2)
	require.Equal(t, q2.Key(), is.TopQUD().Key())

	// Re-pushing an existing question moves it to the top instead of
	// duplicating it.
	is.PushQUD(q1)
	require.Len(t, is.QUD, 2)
	require.Equal(t, q1.Key(), is.TopQUD().Key())

	popped := is.PopQUD()
	require.Equal(t, q1.Key(), popped.Key())
	require.Equal(t, q2.Key(), is.TopQUD().Key())
	is.PopQUD()
	require.Nil(t, is.TopQUD())
	require.Nil(t, is.PopQUD())
}

func TestIssuesFIFO(t *testing.T) {
	is := New()
	q1 := types.WhAbout("destination")
	q2 := types.WhAbout("departure_day")

	require.True(t, is.AddIssue(q1))
	require.False(t, is.AddIssue(q1), "duplicate issues are not added")
	require.True(t, is.AddIssue(q2))
	require.Equal(t, q1.Key(), is.Issues[0].Key())

	require.True(t, is.RemoveIssue(q1))
	require.Equal(t, q2.Key(), is.Issues[0].Key())
}

func TestActionQueueFIFO(t *testing.T) {
	is := New()
	a := types.NewAction("booking", "book_trip", nil)
	b := types.NewAction("booking", "book_hotel", nil)
	is.EnqueueAction(a)
	is.EnqueueAction(b)

	require.Equal(t, a.ID, is.PeekAction().ID)
	require.Equal(t, a.ID, is.DequeueAction().ID)
	require.Equal(t, b.ID, is.PeekAction().ID)
}

func TestSwapMoveReplacesHistoryAndSalience(t *testing.T) {
	is := New()
	m := types.NewMove(types.SpeakerUser, types.MoveGreet, types.Text("hi"))
	is.AppendMove(m)

	updated := m.Clone()
	updated.Grounding = types.Grounded
	is.SwapMove(updated)

	require.Equal(t, types.Grounded, is.FindMove(m.ID).Grounding)
	require.Equal(t, types.Grounded, is.LastMoves[0].Grounding)
}

func TestClearTaskKeepsHistory(t *testing.T) {
	is := New()
	is.Dialogue = DialogueActive
	is.Plan = types.Findout(types.WhAbout("destination"))
	is.PushQUD(types.WhAbout("destination"))
	is.AddIssue(types.WhAbout("departure_day"))
	is.Commitments.Add(types.Prop("destination", "paris"))
	is.Commitments.Add(types.Prop("unrelated", "kept"))
	is.AppendMove(types.NewMove(types.SpeakerUser, types.MoveGreet, types.Text("hi")))

	is.ClearTask([]string{"destination"})

	require.Nil(t, is.Plan)
	require.Empty(t, is.QUD)
	require.Empty(t, is.Issues)
	require.False(t, is.Commitments.HasPredicate("destination"))
	require.True(t, is.Commitments.HasPredicate("unrelated"))
	require.Len(t, is.Moves, 1, "move history survives cancellation")
	require.Equal(t, DialogueNotStarted, is.Dialogue)
}

// populated builds a state exercising every serialized field.
func populated(t *testing.T) *InformationState {
	t.Helper()
	is := New()
	is.Dialogue = DialogueActive
	is.NextSpeaker = types.SpeakerSystem

	is.PushQUD(types.WhAbout("destination"))
	is.PushQUD(types.YNQuestion{Prop: types.Prop("trip_booked", "yes")})
	is.AddIssue(types.AltQuestion{Variable: "travel_class", Alternatives: []types.Proposition{
		types.Prop("travel_class", "economy"),
		types.Prop("travel_class", "business"),
	}})
	is.Commitments.Add(types.Prop("destination", "paris"))

	user := types.NewMove(types.SpeakerUser, types.MoveAnswer,
		types.AnswerTo(types.WhAbout("destination"), types.Prop("destination", "paris")))
	user.Confidence = 0.85
	user.Grounding = types.Grounded
	is.AppendMove(user)
	icm := types.NewMove(types.SpeakerSystem, types.MoveICM, types.ICM{
		Level: types.LevelAcceptance, Polarity: types.PolarityPositive, TargetID: user.ID,
	})
	is.AppendMove(icm)

	action := types.NewAction("booking", "book_trip", map[string]string{"destination": "paris"})
	plan := types.Sequence(types.Findout(types.WhAbout("departure_day")), types.Exec(action))
	is.Plan = plan
	is.EnqueueAction(action)

	is.IUN = append(is.IUN, types.Prop("hotel", "grand_plaza"))
	is.Rejected = append(is.Rejected, types.Prop("hotel", "hostel_central"))
	is.Beliefs["opening_hours"] = "9-17"
	is.Rollbacks = append(is.Rollbacks, RollbackNotice{
		ActionName: "book_hotel", Reason: "backend refused", Retracted: []string{"hotel_booked(value=yes)"},
	})
	is.Pending = types.NewMove(types.SpeakerUser, types.MoveAnswer,
		types.Answer{Prop: types.Prop("departure_day", "monday")})
	return is
}

func TestSerializeRoundTripLossless(t *testing.T) {
	is := populated(t)

	data, err := json.Marshal(is)
	require.NoError(t, err)

	restored := New()
	require.NoError(t, json.Unmarshal(data, restored))

	// Round-tripping again must be byte-stable; that catches any field
	// the decoder drops or reorders.
	again, err := json.Marshal(restored)
	require.NoError(t, err)
	require.JSONEq(t, string(data), string(again))

	require.Equal(t, is.TopQUD().Key(), restored.TopQUD().Key())
	require.Equal(t, is.Commitments.Canonicals(), restored.Commitments.Canonicals())
	require.Equal(t, types.Grounded, restored.Moves[0].Grounding)
	require.Equal(t, is.Issues[0].Key(), restored.Issues[0].Key())
	require.Equal(t, is.Pending.ID, restored.Pending.ID)

	// LastMoves must be restored by identity into the history.
	require.Len(t, restored.LastMoves, 2)
	require.Same(t, restored.Moves[0], restored.LastMoves[0])

	// The queued action and the plan exec leaf must be one object again.
	exec := restored.Plan.Subplans[1]
	require.Same(t, exec.Action, restored.Actions[0])
}

func TestCloneIsIndependentAndEquivalent(t *testing.T) {
	is := populated(t)
	clone := is.Clone()

	origJSON, err := json.Marshal(is)
	require.NoError(t, err)
	cloneJSON, err := json.Marshal(clone)
	require.NoError(t, err)
	require.JSONEq(t, string(origJSON), string(cloneJSON))

	clone.PopQUD()
	clone.Commitments.Add(types.Prop("extra", "x"))
	clone.Moves[0].Grounding = types.UnderstandingFailed
	clone.Actions[0].Params["destination"] = "london"

	require.Equal(t, 2, len(is.QUD))
	require.False(t, is.Commitments.HasPredicate("extra"))
	require.Equal(t, types.Grounded, is.Moves[0].Grounding)
	require.Equal(t, "paris", is.Actions[0].Params["destination"])

	// Clone preserves queue/plan pointer identity.
	require.Same(t, clone.Plan.Subplans[1].Action, clone.Actions[0])
	if diff := cmp.Diff(is.Commitments.Canonicals(), []string{"destination(value=paris)"}); diff != "" {
		t.Fatalf("commitments changed under clone mutation (-want +got):\n%s", diff)
	}
}
