package rules

import (
	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// issueIntegrationRules cover answers: resolving the focused question,
// clarification of invalid answers, corrections with their retraction
// cascade, volunteered answers for accommodated issues, and free-standing
// assertions that match no open question.
func issueIntegrationRules() []Rule {
	return []Rule{
		{
			Name:     "IntegrateCorrection",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateCorrection,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				a, ok := userAnswer(tc)
				if !ok || isPolar(a) {
					return false
				}
				pred := a.Prop.Predicate
				if !is.Commitments.HasPredicate(pred) || is.Commitments.Contains(a.Prop) {
					return false
				}
				return tc.Domain.Validate(a, tc.Domain.QuestionFor(pred))
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				a, _ := userAnswer(tc)
				pred := a.Prop.Predicate
				old := is.Commitments.RetractPredicate(pred)
				is.Commitments.Add(a.Prop)
				logging.Rules("correction: %s replaces %d commitment(s) on %q", a.Prop.Canonical(), len(old), pred)
				touched := map[string]bool{pred: true}
				for _, dep := range tc.Domain.Dependents(pred) {
					stale := is.Commitments.RetractPredicate(dep)
					if len(stale) == 0 {
						continue
					}
					touched[dep] = true
					q := tc.Domain.QuestionFor(dep)
					is.RemoveQUD(q)
					is.AddIssue(q)
					if is.Plan != nil {
						is.Plan.ReactivateQuestion(q)
					}
					logging.Rules("correction cascade: retracted %q, issue re-added", dep)
				}
				withdrawStaleActions(is, tc, touched)
				return nil
			},
		},
		{
			Name:     "IntegrateClarificationRequest",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateClarify,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				a, ok := userAnswer(tc)
				if !ok || isPolar(a) {
					return false
				}
				top := is.TopQUD()
				if top == nil || !tc.Domain.Resolves(a, top) || tc.Domain.Validate(a, top) {
					return false
				}
				_, ok = tc.Domain.ClarificationFor(top)
				return ok
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				a, _ := userAnswer(tc)
				top := is.TopQUD()
				clar, _ := tc.Domain.ClarificationFor(top)
				is.PushQUD(clar)
				logging.Rules("answer %s failed validation, clarification raised over %q", a.Prop.Canonical(), clar.Variable)
				return nil
			},
		},
		{
			Name:     "IntegrateAnswer",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateAnswerQUD,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				a, ok := userAnswer(tc)
				if !ok {
					return false
				}
				top := is.TopQUD()
				return top != nil && tc.Domain.Resolves(a, top) && tc.Domain.Validate(a, top)
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				a, _ := userAnswer(tc)
				top := is.PopQUD()
				prop, ok := resolvedProp(a, top)
				if ok {
					is.Commitments.Add(prop)
					if is.Plan != nil {
						is.Plan.CompleteQuestion(top)
					}
					is.RemoveIssue(top)
					logging.Rules("answer integrated: %s resolves %s", prop.Canonical(), top.Key())
				}
				// A clarification answer also resolves the question the
				// clarification was about, still sitting underneath.
				if next := is.TopQUD(); next != nil {
					if wh, isWh := next.(types.WhQuestion); isWh && wh.Predicate == a.Prop.Predicate && tc.Domain.Validate(a, next) {
						is.PopQUD()
						is.Commitments.Add(a.Prop)
						if is.Plan != nil {
							is.Plan.CompleteQuestion(next)
						}
						is.RemoveIssue(next)
					}
				}
				return nil
			},
		},
		{
			Name:     "IntegrateVolunteeredAnswer",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateVolunteer,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				a, ok := userAnswer(tc)
				if !ok || isPolar(a) {
					return false
				}
				if top := is.TopQUD(); top != nil && tc.Domain.Resolves(a, top) {
					return false
				}
				return matchingIssue(is, tc, a) != nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				a, _ := userAnswer(tc)
				q := matchingIssue(is, tc, a)
				is.RemoveIssue(q)
				is.Commitments.Add(a.Prop)
				if is.Plan != nil {
					is.Plan.CompleteQuestion(q)
				}
				logging.Rules("volunteered answer %s resolves unraised issue %s", a.Prop.Canonical(), q.Key())
				return nil
			},
		},
		{
			Name:     "IntegrateFreeAssertion",
			Phase:    PhaseIntegration,
			Priority: prioIntegrateFreeAssert,
			When: func(is *state.InformationState, tc *TurnContext) bool {
				a, ok := userAnswer(tc)
				if !ok || isPolar(a) || a.Prop.Predicate == "" {
					return false
				}
				if is.Commitments.HasPredicate(a.Prop.Predicate) {
					return false
				}
				if top := is.TopQUD(); top != nil && tc.Domain.Resolves(a, top) {
					return false
				}
				if !tc.Domain.Validate(a, tc.Domain.QuestionFor(a.Prop.Predicate)) {
					return false
				}
				return matchingIssue(is, tc, a) == nil
			},
			Then: func(is *state.InformationState, tc *TurnContext) error {
				a, _ := userAnswer(tc)
				is.Commitments.Add(a.Prop)
				if is.Plan != nil {
					is.Plan.CompleteQuestion(tc.Domain.QuestionFor(a.Prop.Predicate))
				}
				logging.RulesDebug("free-standing assertion committed: %s", a.Prop.Canonical())
				return nil
			},
		},
	}
}

// userAnswer extracts answer content from the user move under
// consideration.
func userAnswer(tc *TurnContext) (types.Answer, bool) {
	if tc.Move == nil || tc.Move.Speaker != types.SpeakerUser {
		return types.Answer{}, false
	}
	return answerOf(tc.Move)
}

// matchingIssue returns the first accommodated issue the answer resolves
// and validates against, or nil.
func matchingIssue(is *state.InformationState, tc *TurnContext, a types.Answer) types.Question {
	for _, q := range is.Issues {
		if tc.Domain.Resolves(a, q) && tc.Domain.Validate(a, q) {
			return q
		}
	}
	return nil
}

// resolvedProp normalizes an answer against the question it resolves: polar
// answers to a yn-question become the question proposition or its negation,
// everything else carries its own proposition.
func resolvedProp(a types.Answer, q types.Question) (types.Proposition, bool) {
	if yn, ok := q.(types.YNQuestion); ok && isPolar(a) {
		if a.Prop.Predicate == "yes" {
			return yn.Prop, true
		}
		return yn.Prop.Negate(), true
	}
	if a.Prop.Predicate == "" || isPolar(a) {
		return types.Proposition{}, false
	}
	return a.Prop, true
}
