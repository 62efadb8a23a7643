package rules

import (
	"strings"

	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// Integration rule priorities. Integration runs ApplyAll: every satisfied
// rule fires in this order, each effect feeding the next precondition.
const (
	prioIntegrateCancel       = 100
	prioIntegrateICM          = 95
	prioIntegrateGreet        = 90
	prioIntegrateQuit         = 88
	prioIntegrateRequest      = 86
	prioIntegrateUserAsk      = 84
	prioIntegrateConfirmAct   = 80
	prioIntegrateDeclineAct   = 78
	prioIntegrateAccept       = 76
	prioIntegrateReject       = 74
	prioIntegrateCorrection   = 70
	prioIntegrateClarify      = 66
	prioIntegrateAnswerQUD    = 62
	prioIntegrateVolunteer    = 58
	prioIntegrateFreeAssert   = 54
	prioAccommodateAlternates = 50
	prioTrackMove             = 10
)

func integrationRules() []Rule {
	var all []Rule
	all = append(all, controlIntegrationRules()...)
	all = append(all, issueIntegrationRules()...)
	all = append(all, actionIntegrationRules()...)
	all = append(all, negotiationIntegrationRules()...)
	return all
}

func controlIntegrationRules() []Rule {
	return []Rule{
		{
			Name:     "IntegrateCancellation",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateCancel,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return userMove(tc, types.MoveCancel)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.ClearTask(tc.Domain.TaskPredicates())
				clearScratchBeliefs(is)
				logging.Rules("task cancelled, state returned to idle")
				return nil
			},
		},
		{
			Name:     "IntegrateICM",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateICM,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.Move == nil || tc.Move.Type != types.MoveICM {
					return false
				}
				_, ok := tc.Move.ICMContent()
				return ok
			},
			Then: integrateICM,
		},
		{
			Name:     "IntegrateGreet",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateGreet,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return userMove(tc, types.MoveGreet)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				if is.Dialogue == state.DialogueNotStarted {
					is.Dialogue = state.DialogueActive
				}
				return nil
			},
		},
		{
			Name:     "IntegrateQuit",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateQuit,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return userMove(tc, types.MoveQuit)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.Dialogue = state.DialogueEnded
				return nil
			},
		},
		{
			Name:     "IntegrateTaskRequest",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateRequest,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if !userMove(tc, types.MoveRequest) {
					return false
				}
				task, ok := tc.Move.Content.(types.Text)
				if !ok {
					return false
				}
				_, err := tc.Domain.PlanFor(string(task))
				return err == nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				task, _ := tc.Move.Content.(types.Text)
				plan, err := tc.Domain.PlanFor(string(task))
				if err != nil {
					return err
				}
				is.Plan = plan
				is.Dialogue = state.DialogueActive
				clearScratchBeliefs(is)
				logging.Rules("task %q requested, plan instantiated (%d leaves)", task, plan.Leaves())
				return nil
			},
		},
		{
			Name:     "IntegrateUserAsk",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateUserAsk,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if !userMove(tc, types.MoveAsk) {
					return false
				}
				_, ok := tc.Move.QuestionContent()
				return ok
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				q, _ := tc.Move.QuestionContent()
				is.PushQUD(q)
				if is.Dialogue == state.DialogueNotStarted {
					is.Dialogue = state.DialogueActive
				}
				return nil
			},
		},
		{
			Name:     "TrackMove",
			Phase:    PhaseIntegration,
			Priority: prioTrackMove,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return tc.Move != nil && is.FindMove(tc.Move.ID) == nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				is.AppendMove(tc.Move)
				return nil
			},
		},
	}
}

// userMove reports whether the move under consideration is a user move of
// the given type.
func userMove(tc *TurnContext, mt types.MoveType) bool {
	return tc.Move != nil && tc.Move.Speaker == types.SpeakerUser && tc.Move.Type == mt
}

// answerOf extracts answer content from answer moves and from bare
// propositional asserts, which integrate the same way.
func answerOf(m *types.Move) (types.Answer, bool) {
	if m == nil {
		return types.Answer{}, false
	}
	if a, ok := m.AnswerContent(); ok {
		return a, true
	}
	if m.Type == types.MoveAssert {
		if p, ok := m.PropContent(); ok {
			return types.Answer{Prop: p}, true
		}
	}
	return types.Answer{}, false
}

func isPolar(a types.Answer) bool {
	return a.Prop.Predicate == "yes" || a.Prop.Predicate == "no"
}

// Scratch markers the selection rules keep in Beliefs (presentation and
// completion announcements) live under this prefix so cancellation can
// clear them without touching real domain beliefs.
const scratchPrefix = "_converse."

func clearScratchBeliefs(is *state.InformationState) {
	for k := range is.Beliefs {
		if strings.HasPrefix(k, scratchPrefix) {
			delete(is.Beliefs, k)
		}
	}
}
