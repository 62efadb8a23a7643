package rules

import (
	"fmt"

	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/tactile"
	"converse/internal/types"
)

// The confirm_action predicate carries the action identity so a polar
// answer can be routed to the right queue head.
const confirmPredicate = "confirm_action"

func confirmationQuestion(a *types.Action) types.YNQuestion {
	return types.YNQuestion{Prop: types.PropArgs(confirmPredicate, map[string]string{
		"action": a.Name,
		"id":     a.ID,
	})}
}

// confirmationTarget returns the queue head when the focused question is
// its confirmation question.
func confirmationTarget(is *state.InformationState) *types.Action {
	head := is.PeekAction()
	if head == nil {
		return nil
	}
	top := is.TopQUD()
	if top == nil {
		return nil
	}
	yn, ok := top.(types.YNQuestion)
	if !ok || yn.Prop.Predicate != confirmPredicate {
		return nil
	}
	if yn.Prop.Args["id"] != head.ID {
		return nil
	}
	return head
}

// withdrawStaleActions drops queued actions that drew a parameter from any
// of the touched predicates. The confirmation question of a withdrawn
// action leaves the QUD with it, so a cascade-retracted slot can be
// re-asked; selection requeues the action from the updated commitments
// once its plan step is ready again.
func withdrawStaleActions(is *state.InformationState, tc *TurnContext, touched map[string]bool) {
	kept := is.Actions[:0]
	for _, a := range is.Actions {
		if !drawsOn(tc, a, touched) {
			kept = append(kept, a)
			continue
		}
		is.RemoveQUD(confirmationQuestion(a))
		a.Confirmed = false
		a.Status = types.ActionQueued
		a.Params = nil
		logging.Rules("action %s withdrawn from queue, parameters touched by correction", a.Name)
	}
	is.Actions = kept
}

func drawsOn(tc *TurnContext, a *types.Action, touched map[string]bool) bool {
	for _, pred := range tc.Domain.ParamsFrom(a.Name) {
		if touched[pred] {
			return true
		}
	}
	return false
}

func actionIntegrationRules() []Rule {
	return []Rule{
		{
			Name:     "IntegrateActionConfirmation",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateConfirmAct,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.Move == nil || tc.Move.Speaker != types.SpeakerUser || !tc.Move.IsAffirmative() {
					return false
				}
				return confirmationTarget(is) != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				head := confirmationTarget(is)
				is.PopQUD()
				head.Confirmed = true
				head.Status = types.ActionQueued
				logging.Rules("action %s confirmed by user", head.Name)
				return nil
			},
		},
		{
			Name:     "IntegrateActionDecline",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateDeclineAct,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.Move == nil || tc.Move.Speaker != types.SpeakerUser || !tc.Move.IsNegative() {
					return false
				}
				return confirmationTarget(is) != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				head := confirmationTarget(is)
				is.PopQUD()
				is.DequeueAction()
				head.Status = types.ActionFailed
				tc.DeclinedAction = head
				logging.Rules("action %s declined, removed from queue", head.Name)
				return nil
			},
		},
	}
}

func actionSelectionRules() []Rule {
	return []Rule{
		{
			Name:     "SelectQueueAction",
			Phase:    PhaseSelection,
			Priority: prioSelectQueueAction,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				leaf := nextExecLeaf(is)
				if leaf == nil || leaf.Action.Status != types.ActionQueued {
					return false
				}
				for _, queued := range is.Actions {
					if queued.ID == leaf.Action.ID {
						return false
					}
				}
				return true
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				leaf := nextExecLeaf(is)
				a := leaf.Action
				if a.Params == nil {
					a.Params = make(map[string]string)
				}
				for _, pred := range tc.Domain.ParamsFrom(a.Name) {
					if props := is.Commitments.ByPredicate(pred); len(props) > 0 {
						a.Params[pred] = props[0].Value()
					}
				}
				is.EnqueueAction(a)
				logging.Rules("action %s queued with %d params", a.Name, len(a.Params))
				return nil
			},
		},
		{
			Name:     "SelectConfirmationRequest",
			Phase:    PhaseSelection,
			Priority: prioSelectConfirmRequest,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if is.Pending != nil {
					return false
				}
				head := is.PeekAction()
				if head == nil || head.Confirmed || head.Status != types.ActionQueued {
					return false
				}
				if !tc.Domain.Critical(head) {
					return false
				}
				// Execution authority is still being negotiated; do not ask
				// for confirmation while an outcome proposition is in play.
				for _, p := range tc.Domain.Postconditions(head) {
					if is.UnderNegotiation(p.Predicate) {
						return false
					}
				}
				return !executionReady(is, tc, head)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				head := is.PeekAction()
				head.Status = types.ActionAwaitingConf
				q := confirmationQuestion(head)
				is.PushQUD(q)
				ask := types.NewMove(types.SpeakerSystem, types.MoveAsk, q)
				is.PushAgenda(ask)
				tc.AskedQuestions[q.Key()] = true
				logging.Rules("critical action %s awaiting confirmation", head.Name)
				return nil
			},
		},
		{
			Name:     "SelectDeclineAck",
			Phase:    PhaseSelection,
			Priority: prioSelectDeclineAck,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return tc.DeclinedAction != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				name := tc.DeclinedAction.Name
				tc.DeclinedAction = nil
				report := types.NewMove(types.SpeakerSystem, types.MoveReport,
					types.Text(fmt.Sprintf("Okay, I won't %s.", humanizeName(name))))
				is.PushAgenda(report)
				return nil
			},
		},
		{
			Name:     "SelectExecuteAction",
			Phase:    PhaseSelection,
			Priority: prioSelectExecuteAction,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if is.Pending != nil {
					return false
				}
				head := is.PeekAction()
				if head == nil || tc.AttemptedActions[head.ID] {
					return false
				}
				return executionReady(is, tc, head)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				head := is.PeekAction()
				tc.AttemptedActions[head.ID] = true
				outcome, err := tactile.Perform(tc.Ctx, tc.Device, head, is)
				if err != nil {
					return err
				}
				is.PushAgenda(reportFor(head, outcome))
				if outcome.Result.Status == types.ResultSuccess && is.Plan != nil {
					is.Plan.CompleteAction(head.ID)
				}
				return nil
			},
		},
	}
}

// executionReady implements the execution gate: non-critical actions run
// freely, critical ones need prior confirmation or an affirmative latest
// user move.
func executionReady(is *state.InformationState, tc *TurnContext, a *types.Action) bool {
	if !tc.Domain.Critical(a) {
		return true
	}
	if a.Confirmed {
		return true
	}
	latest := is.LatestUserMove()
	return latest != nil && latest.IsAffirmative()
}

func nextExecLeaf(is *state.InformationState) *types.Plan {
	if is.Plan == nil {
		return nil
	}
	leaf := is.Plan.NextExec()
	if leaf == nil || leaf.Action == nil {
		return nil
	}
	return leaf
}

func reportFor(a *types.Action, outcome *tactile.Outcome) *types.Move {
	name := humanizeName(a.Name)
	var text string
	switch outcome.Result.Status {
	case types.ResultSuccess:
		if outcome.Result.Value != "" {
			text = fmt.Sprintf("Done: %s (%s).", name, outcome.Result.Value)
		} else {
			text = fmt.Sprintf("Done: %s.", name)
		}
	case types.ResultFailure:
		text = fmt.Sprintf("I couldn't %s: %s.", name, outcome.Result.ErrorMessage)
		if len(outcome.RolledBack) > 0 {
			text += fmt.Sprintf(" I've undone %d related record(s).", len(outcome.RolledBack))
		}
	case types.ResultPreconditionFailed:
		text = fmt.Sprintf("I can't %s yet: %s.", name, outcome.Result.ErrorMessage)
	}
	return types.NewMove(types.SpeakerSystem, types.MoveReport, types.Text(text))
}
