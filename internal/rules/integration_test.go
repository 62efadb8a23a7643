package rules

import (
	"testing"

	"github.com/stretchr/testify/require"

	"converse/internal/state"
	"converse/internal/types"
)

func integrate(t *testing.T, rs *RuleSet, is *state.InformationState, tc *TurnContext, m *types.Move) {
	t.Helper()
	tc.Move = m
	_, err := rs.ApplyAll(PhaseIntegration, is, tc)
	require.NoError(t, err)
}

func TestIntegrateAnswerResolvesFocusedQuestion(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	plan, err := reg.PlanFor("book_trip")
	require.NoError(t, err)
	is.Plan = plan

	q := reg.QuestionFor("destination")
	is.AddIssue(q)
	is.PushQUD(q)

	integrate(t, rs, is, tc, answerMove("destination", "paris", 0.9))

	require.Empty(t, is.QUD)
	require.True(t, is.Commitments.Contains(types.Prop("destination", "paris")))
	require.False(t, is.HasIssue(q))

	// The plan advances to the next findout.
	next := is.Plan.NextFindout()
	require.NotNil(t, next)
	require.Equal(t, "departure_day", next.Question.PredicateName())
}

func TestInvalidAnswerRaisesClarification(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	q := reg.QuestionFor("destination")
	is.PushQUD(q)

	integrate(t, rs, is, tc, answerMove("destination", "atlantis", 0.9))

	// Nothing committed, the clarification sits above the original question.
	require.False(t, is.Commitments.HasPredicate("destination"))
	require.Len(t, is.QUD, 2)
	alt, ok := is.TopQUD().(types.AltQuestion)
	require.True(t, ok)
	require.Equal(t, "destination", alt.Variable)
	require.Len(t, alt.Alternatives, 3)
	require.True(t, is.QUD[1].Equal(q))
}

func TestClarificationAnswerResolvesBothQuestions(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	q := reg.QuestionFor("destination")
	is.PushQUD(q)
	clar, ok := reg.ClarificationFor(q)
	require.True(t, ok)
	is.PushQUD(clar)

	integrate(t, rs, is, tc, answerMove("destination", "london", 0.9))

	require.Empty(t, is.QUD, "a valid choice closes both the clarification and the question under it")
	require.True(t, is.Commitments.Contains(types.Prop("destination", "london")))
}

func TestCorrectionCascadeRetractsDependents(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	plan, err := reg.PlanFor("book_trip")
	require.NoError(t, err)
	is.Plan = plan
	for _, pred := range []string{"destination", "departure_day", "travel_class"} {
		plan.CompleteQuestion(reg.QuestionFor(pred))
	}
	is.Commitments.Add(types.Prop("destination", "paris"))
	is.Commitments.Add(types.Prop("departure_day", "monday"))
	is.Commitments.Add(types.Prop("travel_class", "business"))

	integrate(t, rs, is, tc, answerMove("destination", "london", 0.9))

	require.True(t, is.Commitments.Contains(types.Prop("destination", "london")))
	require.False(t, is.Commitments.Contains(types.Prop("destination", "paris")))

	// travel_class depends on destination: retracted and back on the table.
	require.False(t, is.Commitments.HasPredicate("travel_class"))
	require.True(t, is.HasIssue(reg.QuestionFor("travel_class")))
	next := is.Plan.NextFindout()
	require.NotNil(t, next)
	require.Equal(t, "travel_class", next.Question.PredicateName())

	// departure_day does not depend on destination and survives.
	require.True(t, is.Commitments.Contains(types.Prop("departure_day", "monday")))
}

func TestVolunteeredAnswerLeavesQUDAlone(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	focused := reg.QuestionFor("destination")
	is.PushQUD(focused)
	is.AddIssue(reg.QuestionFor("departure_day"))

	integrate(t, rs, is, tc, answerMove("departure_day", "monday", 0.9))

	require.True(t, is.Commitments.Contains(types.Prop("departure_day", "monday")))
	require.False(t, is.HasIssue(reg.QuestionFor("departure_day")))
	require.Len(t, is.QUD, 1)
	require.True(t, is.TopQUD().Equal(focused), "the focused question keeps the floor")
}

func TestFreeAssertionCommitsWithoutQuestion(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	m := types.NewMove(types.SpeakerUser, types.MoveAssert, types.Prop("budget", "low"))
	m.Confidence = 0.9
	integrate(t, rs, is, tc, m)

	require.True(t, is.Commitments.Contains(types.Prop("budget", "low")))
	require.Empty(t, is.QUD)
}

func TestActionConfirmation(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	a := reg.NewAction("book_trip")
	a.Status = types.ActionAwaitingConf
	is.EnqueueAction(a)
	is.PushQUD(confirmationQuestion(a))

	yes := types.NewMove(types.SpeakerUser, types.MoveAnswer, types.Answer{Prop: types.Yes()})
	integrate(t, rs, is, tc, yes)

	require.Empty(t, is.QUD)
	require.True(t, a.Confirmed)
	require.Equal(t, types.ActionQueued, a.Status)
	require.Same(t, a, is.PeekAction(), "the action stays at the queue head")
}

func TestActionDecline(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	a := reg.NewAction("book_trip")
	a.Status = types.ActionAwaitingConf
	is.EnqueueAction(a)
	is.PushQUD(confirmationQuestion(a))

	no := types.NewMove(types.SpeakerUser, types.MoveAnswer, types.Answer{Prop: types.No()})
	integrate(t, rs, is, tc, no)

	require.Empty(t, is.QUD)
	require.Nil(t, is.PeekAction())
	require.Equal(t, types.ActionFailed, a.Status)
	require.Same(t, a, tc.DeclinedAction)

	// Selection owes an acknowledgement.
	tc.GroundingHandled = true
	r, err := rs.ApplyFirstMatching(PhaseSelection, is, tc)
	require.NoError(t, err)
	require.Equal(t, "SelectDeclineAck", r.Name)
	require.Len(t, is.Agenda, 1)
	txt, ok := is.Agenda[0].Content.(types.Text)
	require.True(t, ok)
	require.Equal(t, "Okay, I won't book trip.", string(txt))
}

func TestPolarAnswerPrefersConfirmationOverNegotiation(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	a := reg.NewAction("book_hotel")
	a.Status = types.ActionAwaitingConf
	is.EnqueueAction(a)
	is.PushQUD(confirmationQuestion(a))
	is.AddIUN(types.Prop("hotel", "city_lodge"))

	yes := types.NewMove(types.SpeakerUser, types.MoveAnswer, types.Answer{Prop: types.Yes()})
	integrate(t, rs, is, tc, yes)

	require.True(t, a.Confirmed)
	require.Len(t, is.IUN, 1, "the open proposal is untouched while a confirmation was pending")
	require.False(t, is.Commitments.HasPredicate("hotel"))
}

func TestProposalRejectTriggersDominatingCounter(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	lodge := types.Prop("hotel", "city_lodge")
	is.AddIUN(lodge)
	is.Beliefs[presentedKey(lodge)] = "true"

	no := types.NewMove(types.SpeakerUser, types.MoveAnswer, types.Answer{Prop: types.No()})
	integrate(t, rs, is, tc, no)

	require.Empty(t, is.IUN)
	require.Contains(t, is.Rejected, lodge)
	require.NotNil(t, tc.RejectedProposal)

	tc.GroundingHandled = true
	r, err := rs.ApplyFirstMatching(PhaseSelection, is, tc)
	require.NoError(t, err)
	require.Equal(t, "SelectCounterProposal", r.Name)

	plaza := types.Prop("hotel", "grand_plaza")
	require.Len(t, is.IUN, 1)
	require.True(t, is.IUN[0].Equal(plaza), "the counter dominates the rejected proposal")
	require.Len(t, is.Agenda, 1)
	require.Equal(t, types.MovePropose, is.Agenda[0].Type)
	require.Equal(t, "true", is.Beliefs[presentedKey(plaza)])
}

func TestProposalAcceptCommitsAndClosesNegotiation(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	plaza := types.Prop("hotel", "grand_plaza")
	hostel := types.Prop("hotel", "hostel_central")
	is.AddIUN(plaza)
	is.AddIUN(hostel)

	yes := types.NewMove(types.SpeakerUser, types.MoveAnswer, types.Answer{Prop: types.Yes()})
	integrate(t, rs, is, tc, yes)

	require.True(t, is.Commitments.Contains(plaza), "a bare yes accepts the salient proposal")
	require.Empty(t, is.IUN)
}

func TestNamedAcceptPicksTheNamedAlternative(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	plaza := types.Prop("hotel", "grand_plaza")
	hostel := types.Prop("hotel", "hostel_central")
	is.AddIUN(plaza)
	is.AddIUN(hostel)

	m := types.NewMove(types.SpeakerUser, types.MoveAccept, types.Answer{Prop: hostel})
	integrate(t, rs, is, tc, m)

	require.True(t, is.Commitments.Contains(hostel))
	require.False(t, is.Commitments.Contains(plaza))
	require.Empty(t, is.IUN)
}

func TestSystemAlternativesAccommodatedIntoIUN(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	m := types.NewMove(types.SpeakerSystem, types.MovePropose, types.Prop("hotel", "grand_plaza"))
	m.Alternatives = reg.Alternatives("hotel")
	integrate(t, rs, is, tc, m)

	require.Len(t, is.IUN, 3)
	require.True(t, is.IUN[0].Equal(types.Prop("hotel", "grand_plaza")), "best ranked is salient")
}

func TestCancellationClearsTaskState(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	plan, err := reg.PlanFor("book_trip")
	require.NoError(t, err)
	is.Plan = plan
	is.PushQUD(reg.QuestionFor("destination"))
	is.AddIssue(reg.QuestionFor("departure_day"))
	is.Commitments.Add(types.Prop("destination", "paris"))
	is.Beliefs[completionKey] = "true"
	is.Beliefs["weather"] = "sunny"

	cancel := types.NewMove(types.SpeakerUser, types.MoveCancel, types.Text("cancel"))
	integrate(t, rs, is, tc, cancel)

	require.Nil(t, is.Plan)
	require.Empty(t, is.QUD)
	require.Empty(t, is.Issues)
	require.False(t, is.Commitments.HasPredicate("destination"))
	require.NotContains(t, is.Beliefs, completionKey)
	require.Equal(t, "sunny", is.Beliefs["weather"], "real beliefs survive cancellation")
}

func TestEveryUserMoveLandsInHistory(t *testing.T) {
	reg := testRegistry(t)
	tc, _ := testTC(t, reg)
	rs := Standard()
	is := state.New()

	m := answerMove("destination", "paris", 0.9)
	integrate(t, rs, is, tc, m)
	require.NotNil(t, is.FindMove(m.ID))

	// Integrating the same move twice does not duplicate history.
	before := len(is.Moves)
	integrate(t, rs, is, tc, m)
	require.Len(t, is.Moves, before)
}
