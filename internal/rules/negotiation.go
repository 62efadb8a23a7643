package rules

import (
	"fmt"

	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// Negotiation rules manage the IUN set: system proposals enter it, user
// accepts promote one member to a commitment and dissolve the rest, user
// rejects remove the salient member and may trigger a dominating
// counter-proposal.
func negotiationIntegrationRules() []Rule {
	return []Rule{
		{
			Name:     "IntegrateProposalAccept",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateAccept,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.Move == nil || tc.Move.Speaker != types.SpeakerUser || !tc.Move.IsAffirmative() {
					return false
				}
				// Confirmation of a queued action takes the polar answer
				// first; negotiation only sees it when no confirmation is
				// pending.
				if confirmationTarget(is) != nil {
					return false
				}
				return len(is.IUN) > 0
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				accepted := pickNegotiated(is, tc.Move)
				is.Commitments.Add(accepted)
				is.ClearIUN()
				logging.Rules("proposal accepted: %s, negotiation closed", accepted.Canonical())
				return nil
			},
		},
		{
			Name:     "IntegrateProposalReject",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateReject,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.Move == nil || tc.Move.Speaker != types.SpeakerUser || !tc.Move.IsNegative() {
					return false
				}
				if confirmationTarget(is) != nil {
					return false
				}
				return len(is.IUN) > 0
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				rejected := pickNegotiated(is, tc.Move)
				is.RemoveIUN(rejected)
				is.Rejected = append(is.Rejected, rejected)
				tc.RejectedProposal = &rejected
				logging.Rules("proposal rejected: %s (%d left in play)", rejected.Canonical(), len(is.IUN))
				return nil
			},
		},
		{
			Name:     "AccommodateAlternatives",
			Phase:    PhaseIntegration,
			Priority: prioAccommodateAlternates,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				return tc.Move != nil && tc.Move.Speaker == types.SpeakerSystem && len(tc.Move.Alternatives) > 0
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				for _, alt := range tc.Move.Alternatives {
					is.AddIUN(alt)
				}
				return nil
			},
		},
	}
}

func negotiationSelectionRules() []Rule {
	return []Rule{
		{
			Name:     "SelectCounterProposal",
			Phase:    PhaseSelection,
			Priority: prioSelectCounterProposal,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				if tc.RejectedProposal == nil {
					return false
				}
				_, ok := counterFor(is, tc, *tc.RejectedProposal)
				return ok
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				rejected := *tc.RejectedProposal
				tc.RejectedProposal = nil
				counter, _ := counterFor(is, tc, rejected)
				is.IUN = append([]types.Proposition{counter}, is.IUN...)
				is.PushAgenda(proposalMove(counter))
				is.Beliefs[presentedKey(counter)] = "true"
				logging.Rules("counter-proposal %s offered over rejected %s", counter.Canonical(), rejected.Canonical())
				return nil
			},
		},
		{
			Name:     "SelectPresentProposal",
			Phase:    PhaseSelection,
			Priority: prioSelectPresentProposal,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				salient := is.SalientIUN()
				return salient != nil && is.Beliefs[presentedKey(*salient)] != "true"
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				salient := *is.SalientIUN()
				is.PushAgenda(proposalMove(salient))
				is.Beliefs[presentedKey(salient)] = "true"
				return nil
			},
		},
	}
}

// pickNegotiated chooses which IUN member a response addresses: a member
// named in the move content, otherwise the salient one.
func pickNegotiated(is *state.InformationState, m *types.Move) types.Proposition {
	if a, ok := answerOf(m); ok && !isPolar(a) {
		for _, cur := range is.IUN {
			if cur.SamePredicate(a.Prop) && cur.Value() == a.Prop.Value() {
				return cur
			}
		}
	}
	return *is.SalientIUN()
}

// counterFor finds a domain alternative strictly dominating the rejected
// proposal that has not been rejected or offered already.
func counterFor(is *state.InformationState, tc *TurnContext, rejected types.Proposition) (types.Proposition, bool) {
	for _, cand := range tc.Domain.Alternatives(rejected.Predicate) {
		if !tc.Domain.Dominates(cand, rejected) {
			continue
		}
		if containsProp(is.Rejected, cand) || containsProp(is.IUN, cand) {
			continue
		}
		return cand, true
	}
	return types.Proposition{}, false
}

func containsProp(set []types.Proposition, p types.Proposition) bool {
	for _, cur := range set {
		if cur.Equal(p) {
			return true
		}
	}
	return false
}

func proposalMove(p types.Proposition) *types.Move {
	m := types.NewMove(types.SpeakerSystem, types.MovePropose, p)
	m.Alternatives = []types.Proposition{p}
	return m
}

func presentedKey(p types.Proposition) string {
	return fmt.Sprintf("%spresented.%s", scratchPrefix, p.Canonical())
}
