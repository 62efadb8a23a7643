// Package rules contains the priority-ordered rule engine the dialogue
// manager runs on, plus the four rule families built on it: issue/plan
// resolution, grounding/ICM, action execution and negotiation. A rule is a
// named (precondition, effect) pair with a phase and a priority; rule sets
// evaluate a phase either by applying every satisfied rule in descending
// priority (integration) or only the single highest-priority satisfied rule
// (selection).
package rules

import (
	"context"
	"fmt"
	"sort"

	"converse/internal/domain"
	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/tactile"
	"converse/internal/types"
)

// Phase separates the two evaluation points of the turn loop.
type Phase string

const (
	PhaseIntegration Phase = "integration"
	PhaseSelection   Phase = "selection"
)

// TurnContext is the explicit per-turn scratch threaded through every
// precondition and effect. It carries the move under consideration and the
// collaborators the rules may consult; nothing in it survives the turn.
type TurnContext struct {
	// Ctx bounds device calls made from rule effects.
	Ctx context.Context

	// Move is the move currently being considered (the single documented
	// scratch slot).
	Move *types.Move

	// Strategy is the grounding strategy the engine computed for Move.
	Strategy Strategy

	Domain *domain.Registry
	Device tactile.Device
	Policy GroundingPolicy

	// GroundingHandled is set once feedback for Move has been selected.
	GroundingHandled bool

	// AttemptedActions guards against re-attempting an action within the
	// same turn after a precondition failure.
	AttemptedActions map[string]bool

	// AskedQuestions guards against asking the same question twice
	// within one selection cycle chain.
	AskedQuestions map[string]bool

	// DeclinedAction carries an action the user refused to confirm, so
	// selection can acknowledge the cancellation.
	DeclinedAction *types.Action

	// RejectedProposal carries the proposition the user just rejected,
	// consulted by the counter-proposal rule.
	RejectedProposal *types.Proposition
}

// NewTurnContext builds a scratch context for one turn.
func NewTurnContext(ctx context.Context, reg *domain.Registry, dev tactile.Device, policy GroundingPolicy) *TurnContext {
	return &TurnContext{
		Ctx:              ctx,
		Domain:           reg,
		Device:           dev,
		Policy:           policy,
		AttemptedActions: make(map[string]bool),
		AskedQuestions:   make(map[string]bool),
	}
}

// Rule is one named update: fire the effect iff the precondition holds.
type Rule struct {
	Name     string
	Phase    Phase
	Priority int
	When     func(*state.InformationState, *TurnContext) bool
	Then     func(*state.InformationState, *TurnContext) error
}

// Apply evaluates the rule against the state. When the precondition is
// false the state is returned untouched and applied is false; an
// unsatisfied rule is never an error.
func (r Rule) Apply(is *state.InformationState, tc *TurnContext) (applied bool, err error) {
	if !r.When(is, tc) {
		return false, nil
	}
	if err := r.Then(is, tc); err != nil {
		return true, fmt.Errorf("rule %s failed: %w", r.Name, err)
	}
	return true, nil
}

// RuleSet groups rules per phase in descending priority order. Priorities
// within a phase are a total order: registering a duplicate is an error.
type RuleSet struct {
	byPhase map[Phase][]Rule
}

// NewRuleSet returns an empty rule set.
func NewRuleSet() *RuleSet {
	return &RuleSet{byPhase: make(map[Phase][]Rule)}
}

// Register adds a rule to its phase, keeping descending priority order.
func (rs *RuleSet) Register(r Rule) error {
	if r.Name == "" || r.When == nil || r.Then == nil {
		return fmt.Errorf("rule must have a name, precondition and effect")
	}
	for _, existing := range rs.byPhase[r.Phase] {
		if existing.Priority == r.Priority {
			return fmt.Errorf("rule %s: priority %d already taken by %s in phase %s",
				r.Name, r.Priority, existing.Name, r.Phase)
		}
		if existing.Name == r.Name {
			return fmt.Errorf("rule %s registered twice in phase %s", r.Name, r.Phase)
		}
	}
	rules := append(rs.byPhase[r.Phase], r)
	sort.SliceStable(rules, func(i, j int) bool { return rules[i].Priority > rules[j].Priority })
	rs.byPhase[r.Phase] = rules
	return nil
}

// MustRegister registers a batch and panics on a wiring mistake; rule
// tables are static so a failure here is a programming error.
func (rs *RuleSet) MustRegister(batch ...Rule) {
	for _, r := range batch {
		if err := rs.Register(r); err != nil {
			panic(err)
		}
	}
}

// Rules returns the rules of a phase in evaluation order.
func (rs *RuleSet) Rules(phase Phase) []Rule {
	return rs.byPhase[phase]
}

// ApplyAll applies every satisfied rule of the phase in descending
// priority, pipelining each effect into the next precondition. It returns
// the names of the rules that fired.
func (rs *RuleSet) ApplyAll(phase Phase, is *state.InformationState, tc *TurnContext) ([]string, error) {
	var fired []string
	for _, r := range rs.byPhase[phase] {
		applied, err := r.Apply(is, tc)
		if err != nil {
			return fired, err
		}
		if applied {
			logging.RulesDebug("%s: %s fired (priority %d)", phase, r.Name, r.Priority)
			fired = append(fired, r.Name)
		}
	}
	return fired, nil
}

// ApplyFirstMatching applies only the highest-priority satisfied rule of
// the phase, returning it, or nil when no rule matched.
func (rs *RuleSet) ApplyFirstMatching(phase Phase, is *state.InformationState, tc *TurnContext) (*Rule, error) {
	for _, r := range rs.byPhase[phase] {
		applied, err := r.Apply(is, tc)
		if err != nil {
			return &r, err
		}
		if applied {
			logging.RulesDebug("%s: %s selected (priority %d)", phase, r.Name, r.Priority)
			matched := r
			return &matched, nil
		}
	}
	return nil, nil
}

// Standard builds the full rule set of the dialogue manager: all four
// families registered into their phases.
func Standard() *RuleSet {
	rs := NewRuleSet()
	rs.MustRegister(integrationRules()...)
	rs.MustRegister(selectionRules()...)
	return rs
}
