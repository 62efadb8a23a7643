// Package engine runs the per-turn control loop of the dialogue manager:
// NLU, grounding strategy, integration once per move, selection until
// quiescence, then NLG over the agenda. The engine owns the information
// state; everything else is injected.
package engine

import (
	"context"
	"fmt"
	"sync"

	"converse/internal/articulation"
	"converse/internal/config"
	"converse/internal/domain"
	"converse/internal/logging"
	"converse/internal/perception"
	"converse/internal/rules"
	"converse/internal/state"
	"converse/internal/tactile"
	"converse/internal/types"
)

// Engine drives one dialogue. Safe for use from one goroutine at a time
// per method; a domain registry swap is deferred to the next turn boundary
// so a turn never sees two registries.
type Engine struct {
	mu sync.Mutex

	cfg      config.Config
	ruleset  *rules.RuleSet
	registry *domain.Registry
	pending  *domain.Registry
	device   tactile.Device
	nlu      perception.Interpreter
	nlg      articulation.Generator
	policy   rules.GroundingPolicy

	is *state.InformationState
}

// New assembles an engine over the standard rule set.
func New(cfg config.Config, reg *domain.Registry, dev tactile.Device, nlu perception.Interpreter, nlg articulation.Generator) *Engine {
	policy := rules.GroundingPolicy{
		PessimisticBelow: cfg.Grounding.PessimisticBelow,
		OptimisticFrom:   cfg.Grounding.OptimisticFrom,
		AlwaysConfirm:    make(map[types.MoveType]bool, len(cfg.Grounding.AlwaysConfirm)),
	}
	for _, mt := range cfg.Grounding.AlwaysConfirm {
		policy.AlwaysConfirm[types.MoveType(mt)] = true
	}
	return &Engine{
		cfg:      cfg,
		ruleset:  rules.Standard(),
		registry: reg,
		device:   dev,
		nlu:      nlu,
		nlg:      nlg,
		policy:   policy,
		is:       state.New(),
	}
}

// SwapRegistry installs a reloaded domain registry. It takes effect at the
// start of the next turn.
func (e *Engine) SwapRegistry(reg *domain.Registry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = reg
	logging.Engine("domain registry swap staged for next turn")
}

// Snapshot returns a deep copy of the information state for checkpointing.
func (e *Engine) Snapshot() *state.InformationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.is.Clone()
}

// Restore replaces the information state, e.g. from a checkpoint.
func (e *Engine) Restore(is *state.InformationState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.is = is
}

// Ended reports whether the dialogue has reached its terminal state.
func (e *Engine) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.is.Dialogue == state.DialogueEnded
}

// Start opens the dialogue with a system greeting and returns its surface
// form.
func (e *Engine) Start(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.is.Dialogue = state.DialogueActive
	greet := types.NewMove(types.SpeakerSystem, types.MoveGreet, types.Text("Hello! How can I help you?"))
	e.is.PushAgenda(greet)
	tc := rules.NewTurnContext(ctx, e.registry, e.device, e.policy)
	return e.drainAgenda(tc)
}

// ProcessTurn runs one full user turn and returns the system utterances.
func (e *Engine) ProcessTurn(ctx context.Context, utterance string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginTurn()

	timer := logging.StartTimer(logging.CategoryEngine, "ProcessTurn")
	defer timer.Stop()

	tc := rules.NewTurnContext(ctx, e.registry, e.device, e.policy)
	moves, err := e.nlu.Interpret(ctx, e.registry, utterance, e.is)
	if err != nil {
		return nil, fmt.Errorf("interpretation failed: %w", err)
	}
	if len(moves) == 0 {
		moves = []*types.Move{uninterpreted(utterance)}
	}

	moves, err = e.resolvePending(tc, moves)
	if err != nil {
		return nil, err
	}

	for _, m := range moves {
		if err := e.integrateMove(tc, m); err != nil {
			return nil, err
		}
	}

	if err := e.selectLoop(tc); err != nil {
		return nil, err
	}
	return e.respond(tc, moves)
}

// StartTask begins a task directly, bypassing NLU; the replay and scripted
// entry points use it.
func (e *Engine) StartTask(ctx context.Context, task string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.beginTurn()
	tc := rules.NewTurnContext(ctx, e.registry, e.device, e.policy)
	req := types.NewMove(types.SpeakerUser, types.MoveRequest, types.Text(task))
	if err := e.integrateMove(tc, req); err != nil {
		return nil, err
	}
	if err := e.selectLoop(tc); err != nil {
		return nil, err
	}
	return e.respond(tc, []*types.Move{req})
}

// ProposeAlternatives opens a negotiation over the domain alternatives of
// a predicate: the full candidate set enters IUN and the best-ranked one
// is put on the table.
func (e *Engine) ProposeAlternatives(ctx context.Context, predicate string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alts := e.registry.Alternatives(predicate)
	if len(alts) == 0 {
		return nil, fmt.Errorf("no alternatives declared for %q", predicate)
	}
	e.beginTurn()
	tc := rules.NewTurnContext(ctx, e.registry, e.device, e.policy)
	offer := types.NewMove(types.SpeakerSystem, types.MovePropose, alts[0])
	offer.Alternatives = alts
	tc.Move = offer
	if _, err := e.ruleset.ApplyAll(rules.PhaseIntegration, e.is, tc); err != nil {
		return nil, err
	}
	if err := e.selectLoop(tc); err != nil {
		return nil, err
	}
	outputs, err := e.drainAgenda(tc)
	if err != nil {
		return nil, err
	}
	e.is.NextSpeaker = types.SpeakerUser
	return outputs, nil
}

func (e *Engine) beginTurn() {
	if e.pending != nil {
		e.registry = e.pending
		e.pending = nil
		logging.Engine("domain registry swapped at turn boundary")
	}
	e.is.BeginTurn()
	e.is.NextSpeaker = types.SpeakerSystem
}

// integrateMove applies the grounding strategy to one user move: integrate
// now, hold pending, or refuse at the perception level.
func (e *Engine) integrateMove(tc *rules.TurnContext, m *types.Move) error {
	tc.Move = m
	tc.Strategy = e.policy.StrategyFor(m)
	logging.EngineDebug("move %s (%s, confidence %.2f): strategy %s", m.ID, m.Type, m.Confidence, tc.Strategy)

	switch tc.Strategy {
	case rules.StrategyPessimistic:
		// Content is not integrated; the move lands in the history and
		// the negative-perception feedback annotates it from there.
		e.is.AppendMove(m)
		return nil
	case rules.StrategyCautious:
		m.Grounding = types.Perceived
		e.is.Pending = m
		return nil
	default:
		_, err := e.ruleset.ApplyAll(rules.PhaseIntegration, e.is, tc)
		return err
	}
}

// resolvePending consumes a held cautious move when the turn opens with a
// polar response to the understanding check. Any other content drops the
// held move.
func (e *Engine) resolvePending(tc *rules.TurnContext, moves []*types.Move) ([]*types.Move, error) {
	held := e.is.Pending
	if held == nil {
		return moves, nil
	}
	e.is.Pending = nil
	first := moves[0]

	if first.IsAffirmative() {
		e.is.AppendMove(first)
		tc.Move = held
		tc.Strategy = rules.StrategyOptimistic
		if _, err := e.ruleset.ApplyAll(rules.PhaseIntegration, e.is, tc); err != nil {
			return nil, fmt.Errorf("pending move integration failed: %w", err)
		}
		logging.Grounding("held move %s confirmed and integrated", held.ID)
		return moves[1:], nil
	}

	if first.IsNegative() {
		held.Grounding = types.UnderstandingFailed
		held.NeedsClarification = true
		e.is.AppendMove(held)
		e.is.AppendMove(first)
		e.is.PushAgenda(types.NewMove(types.SpeakerSystem, types.MoveICM, types.ICM{
			Level:    types.LevelUnderstanding,
			Polarity: types.PolarityNegative,
			TargetID: held.ID,
		}))
		tc.GroundingHandled = true
		logging.Grounding("held move %s disconfirmed", held.ID)
		return moves[1:], nil
	}

	logging.Grounding("held move %s dropped, turn carried new content", held.ID)
	return moves, nil
}

// selectLoop runs selection until no rule matches or the cycle cap is hit.
// The cap scales with the plan so a long task cannot be starved, while a
// rule cycle cannot spin the turn forever.
func (e *Engine) selectLoop(tc *rules.TurnContext) error {
	limit := e.cfg.Engine.SelectionCapFloor
	if e.is.Plan != nil {
		if scaled := e.is.Plan.Leaves() + e.cfg.Engine.SelectionCapSlack; scaled > limit {
			limit = scaled
		}
	}
	for i := 0; i < limit; i++ {
		r, err := e.ruleset.ApplyFirstMatching(rules.PhaseSelection, e.is, tc)
		if err != nil {
			return err
		}
		if r == nil {
			return nil
		}
	}
	logging.Engine("selection cap %d reached, closing turn", limit)
	return nil
}

// respond realizes the agenda. A turn in which a response was expected but
// nothing was produced still yields an explanation.
func (e *Engine) respond(tc *rules.TurnContext, userMoves []*types.Move) ([]string, error) {
	outputs, err := e.drainAgenda(tc)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 && len(userMoves) > 0 {
		fallback := types.NewMove(types.SpeakerSystem, types.MoveReport, types.Text("I didn't understand that."))
		e.is.PushAgenda(fallback)
		more, err := e.drainAgenda(tc)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, more...)
	}
	e.is.NextSpeaker = types.SpeakerUser
	return outputs, nil
}

// drainAgenda renders each agenda move and runs integration over it, so
// system moves land in the history and their side effects (IUN
// accommodation, grounding updates from ICM) apply.
func (e *Engine) drainAgenda(tc *rules.TurnContext) ([]string, error) {
	var outputs []string
	for _, m := range e.is.DrainAgenda() {
		tc.Move = m
		if _, err := e.ruleset.ApplyAll(rules.PhaseIntegration, e.is, tc); err != nil {
			return outputs, err
		}
		text, err := e.nlg.Realize(e.registry, m)
		if err != nil {
			return outputs, fmt.Errorf("realization failed for %s move: %w", m.Type, err)
		}
		if text != "" {
			logging.Articulation("sys: %s", text)
			outputs = append(outputs, text)
		}
	}
	return outputs, nil
}

// uninterpreted wraps an utterance no parse covered; its confidence forces
// the pessimistic strategy so the user is asked to rephrase.
func uninterpreted(utterance string) *types.Move {
	m := types.NewMove(types.SpeakerUser, types.MoveAssert, types.Text(utterance))
	m.Confidence = 0.2
	return m
}
