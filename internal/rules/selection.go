package rules

import (
	"strings"

	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// Selection rule priorities. Selection runs ApplyFirstMatching in a loop:
// each iteration the single highest-priority satisfied rule fires, until no
// rule matches or the engine's cycle cap is hit.
const (
	prioSelectGrounding       = 200
	prioSelectGreet           = 190
	prioSelectFarewell        = 185
	prioSelectRaiseStep       = 175
	prioSelectAccommodate     = 170
	prioSelectRaiseIssue      = 160
	prioSelectQueueAction     = 155
	prioSelectConfirmRequest  = 150
	prioSelectDeclineAck      = 145
	prioSelectExecuteAction   = 140
	prioSelectAnswerBeliefs   = 130
	prioSelectAsk             = 120
	prioSelectCounterProposal = 110
	prioSelectPresentProposal = 100
	prioSelectCompletion      = 90
)

func selectionRules() []Rule {
	all := []Rule{
		{
			Name:     "SelectGroundingFeedback",
			Phase:    PhaseSelection,
			Priority: prioSelectGrounding,
			When:     selectGroundingFeedback,
			Then:     emitGroundingFeedback,
		},
		{
			Name:     "SelectGreeting",
			Phase:    PhaseSelection,
			Priority: prioSelectGreet,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				latest := is.LatestUserMove()
				if latest == nil || latest.Type != types.MoveGreet {
					return false
				}
				return !agendaHas(is, types.MoveGreet) && !lastSystemMoveIs(is, types.MoveGreet)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.PushAgenda(types.NewMove(types.SpeakerSystem, types.MoveGreet, types.Text("Hello! How can I help you?")))
				return nil
			},
		},
		{
			Name:     "SelectFarewell",
			Phase:    PhaseSelection,
			Priority: prioSelectFarewell,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return is.Dialogue == state.DialogueEnded &&
					!agendaHas(is, types.MoveQuit) && !lastSystemMoveIs(is, types.MoveQuit)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.PushAgenda(types.NewMove(types.SpeakerSystem, types.MoveQuit, types.Text("Goodbye!")))
				return nil
			},
		},
		{
			Name:     "SelectRaiseStep",
			Phase:    PhaseSelection,
			Priority: prioSelectRaiseStep,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if is.Pending != nil {
					return false
				}
				leaf := nextRaiseLeaf(is)
				return leaf != nil && !is.OnQUD(leaf.Question) && !tc.AskedQuestions[leaf.Question.Key()]
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				leaf := nextRaiseLeaf(is)
				is.PushQUD(leaf.Question)
				// A raise step does not block the plan on an answer.
				leaf.Status = types.PlanCompleted
				logging.Rules("plan raises %s without requiring an answer", leaf.Question.Key())
				return nil
			},
		},
		{
			Name:     "AccommodateIssue",
			Phase:    PhaseSelection,
			Priority: prioSelectAccommodate,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return nextAccommodatable(is) != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				q := nextAccommodatable(is)
				is.AddIssue(q)
				logging.Rules("plan question %s accommodated as issue", q.Key())
				return nil
			},
		},
		{
			Name:     "RaiseIssue",
			Phase:    PhaseSelection,
			Priority: prioSelectRaiseIssue,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if len(is.QUD) > 0 || is.Pending != nil {
					return false
				}
				return nextRaisableIssue(is, tc) != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				q := nextRaisableIssue(is, tc)
				is.RemoveIssue(q)
				is.PushQUD(q)
				logging.Rules("issue %s raised onto QUD", q.Key())
				return nil
			},
		},
		{
			Name:     "SelectAnswerFromBeliefs",
			Phase:    PhaseSelection,
			Priority: prioSelectAnswerBeliefs,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				q, _, ok := answerableFromBeliefs(is)
				return ok && q != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				q, value, _ := answerableFromBeliefs(is)
				wh := q.(types.WhQuestion)
				prop := types.Prop(wh.Predicate, value)
				is.PopQUD()
				is.Commitments.Add(prop)
				if is.Plan != nil {
					is.Plan.CompleteQuestion(q)
				}
				answer := types.NewMove(types.SpeakerSystem, types.MoveAnswer, types.AnswerTo(q, prop))
				is.PushAgenda(answer)
				logging.Rules("question %s answered from beliefs", q.Key())
				return nil
			},
		},
		{
			Name:     "SelectAsk",
			Phase:    PhaseSelection,
			Priority: prioSelectAsk,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				// An outstanding understanding check keeps the floor; the
				// task question is not re-raised beside it.
				if is.Pending != nil {
					return false
				}
				top := is.TopQUD()
				if top == nil || tc.AskedQuestions[top.Key()] {
					return false
				}
				return !agendaAsks(is, top)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				top := is.TopQUD()
				is.PushAgenda(types.NewMove(types.SpeakerSystem, types.MoveAsk, top))
				tc.AskedQuestions[top.Key()] = true
				return nil
			},
		},
		{
			Name:     "SelectCompletionReport",
			Phase:    PhaseSelection,
			Priority: prioSelectCompletion,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return is.Plan != nil && is.Plan.Completed() &&
					is.Beliefs[completionKey] != "true"
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.Beliefs[completionKey] = "true"
				is.PushAgenda(types.NewMove(types.SpeakerSystem, types.MoveReport,
					types.Text("That completes everything I needed. Anything else?")))
				return nil
			},
		},
	}
	all = append(all, actionSelectionRules()...)
	all = append(all, negotiationSelectionRules()...)
	return all
}

const completionKey = scratchPrefix + "completion_announced"

// nextAccommodatable returns the head plan findout question not yet an
// issue, not on QUD and not already resolved by a commitment.
func nextAccommodatable(is *state.InformationState) types.Question {
	if is.Plan == nil {
		return nil
	}
	leaf := is.Plan.NextFindout()
	if leaf == nil || leaf.Question == nil {
		return nil
	}
	q := leaf.Question
	if is.HasIssue(q) || is.OnQUD(q) || is.Commitments.HasPredicate(q.PredicateName()) {
		return nil
	}
	return q
}

// nextRaisableIssue returns the first issue (FIFO) whose prerequisites are
// all committed. Issues with unmet prerequisites are deferred, not dropped.
func nextRaisableIssue(is *state.InformationState, tc *TurnContext) types.Question {
	for _, q := range is.Issues {
		if prerequisitesMet(is, tc, q) {
			return q
		}
	}
	return nil
}

func prerequisitesMet(is *state.InformationState, tc *TurnContext, q types.Question) bool {
	for _, pred := range tc.Domain.Prerequisites(q.PredicateName()) {
		if !is.Commitments.HasPredicate(pred) {
			return false
		}
	}
	return true
}

func nextRaiseLeaf(is *state.InformationState) *types.Plan {
	if is.Plan == nil {
		return nil
	}
	leaf := is.Plan.NextActiveLeaf()
	if leaf == nil || leaf.Type != types.PlanRaise || leaf.Question == nil {
		return nil
	}
	return leaf
}

// answerableFromBeliefs reports whether the focused question is a
// wh-question whose predicate the system already has a belief about.
func answerableFromBeliefs(is *state.InformationState) (types.Question, string, bool) {
	top := is.TopQUD()
	if top == nil {
		return nil, "", false
	}
	wh, ok := top.(types.WhQuestion)
	if !ok {
		return nil, "", false
	}
	value, ok := is.Beliefs[wh.Predicate]
	if !ok || value == "" {
		return nil, "", false
	}
	return top, value, true
}

func agendaHas(is *state.InformationState, mt types.MoveType) bool {
	for _, m := range is.Agenda {
		if m.Type == mt {
			return true
		}
	}
	return false
}

func agendaAsks(is *state.InformationState, q types.Question) bool {
	for _, m := range is.Agenda {
		if m.Type != types.MoveAsk {
			continue
		}
		if mq, ok := m.QuestionContent(); ok && mq.Equal(q) {
			return true
		}
	}
	return false
}

func lastSystemMoveIs(is *state.InformationState, mt types.MoveType) bool {
	for _, m := range is.LastMoves {
		if m.Speaker == types.SpeakerSystem && m.Type == mt {
			return true
		}
	}
	return false
}

// humanizeName turns snake_case action names into surface text.
func humanizeName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
