package rules

import (
	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// Strategy is the grounding stance taken toward one incoming move.
type Strategy int

const (
	// StrategyPessimistic rejects the move at the perception level: the
	// content is not integrated and the user is asked to re-utter.
	StrategyPessimistic Strategy = iota

	// StrategyCautious holds the move pending an explicit confirmation
	// before its content is integrated.
	StrategyCautious

	// StrategyOptimistic integrates immediately and acknowledges.
	StrategyOptimistic
)

func (s Strategy) String() string {
	switch s {
	case StrategyPessimistic:
		return "pessimistic"
	case StrategyCautious:
		return "cautious"
	default:
		return "optimistic"
	}
}

// GroundingPolicy holds the confidence thresholds and the set of move
// types that are always explicitly confirmed regardless of confidence.
type GroundingPolicy struct {
	PessimisticBelow float64
	OptimisticFrom   float64
	AlwaysConfirm    map[types.MoveType]bool
}

// DefaultGroundingPolicy mirrors the standard thresholds: below 0.5
// pessimistic, below 0.7 cautious, otherwise optimistic.
func DefaultGroundingPolicy() GroundingPolicy {
	return GroundingPolicy{
		PessimisticBelow: 0.5,
		OptimisticFrom:   0.7,
		AlwaysConfirm:    map[types.MoveType]bool{},
	}
}

// StrategyFor is a pure function of the move's confidence and type. The
// boundary values resolve upward: exactly 0.5 is cautious, exactly 0.7 is
// optimistic.
func (p GroundingPolicy) StrategyFor(m *types.Move) Strategy {
	if p.AlwaysConfirm[m.Type] || m.Confidence < p.PessimisticBelow {
		return StrategyPessimistic
	}
	if m.Confidence < p.OptimisticFrom {
		return StrategyCautious
	}
	return StrategyOptimistic
}

// icmFor builds the feedback move a strategy owes for an incoming move.
func icmFor(strategy Strategy, target *types.Move) *types.Move {
	var icm types.ICM
	switch strategy {
	case StrategyPessimistic:
		icm = types.ICM{Level: types.LevelPerception, Polarity: types.PolarityNegative, TargetID: target.ID}
	case StrategyCautious:
		icm = types.ICM{Level: types.LevelUnderstanding, Polarity: types.PolarityInterrogative, TargetID: target.ID}
		if a, ok := target.AnswerContent(); ok {
			p := a.Prop.Clone()
			icm.Prop = &p
		} else if p, ok := target.PropContent(); ok {
			c := p.Clone()
			icm.Prop = &c
		}
	default:
		icm = types.ICM{Level: types.LevelAcceptance, Polarity: types.PolarityPositive, TargetID: target.ID}
	}
	return types.NewMove(types.SpeakerSystem, types.MoveICM, icm)
}

// integrateICM updates the target move's grounding status per the feedback
// level and polarity. The specific handler runs before generic history
// tracking; the ICM move itself still lands in Moves through trackMove.
func integrateICM(is *state.InformationState, tc *TurnContext) error {
	icm, _ := tc.Move.ICMContent()
	target := is.FindMove(icm.TargetID)
	if target == nil {
		logging.GroundingDebug("icm for unknown move %s, tracking only", icm.TargetID)
		return nil
	}
	status, ok := icm.GroundingEffect()
	if !ok || !target.Grounding.CanAdvanceTo(status) {
		return nil
	}
	updated := target.Clone()
	updated.Grounding = status
	switch status {
	case types.PerceptionFailed:
		updated.NeedsReutterance = true
	case types.UnderstandingFailed:
		updated.NeedsClarification = true
	}
	is.SwapMove(updated)
	logging.Grounding("move %s grounding -> %s", target.ID, status)
	return nil
}

// selectGroundingFeedback emits the ICM move the current strategy owes.
// It never fires when the agenda already has output queued or when the
// move under consideration is the system's own.
func selectGroundingFeedback(is *state.InformationState, tc *TurnContext) bool {
	return tc.Move != nil &&
		tc.Move.Speaker == types.SpeakerUser &&
		!tc.GroundingHandled &&
		len(is.Agenda) == 0
}

func emitGroundingFeedback(is *state.InformationState, tc *TurnContext) error {
	feedback := icmFor(tc.Strategy, tc.Move)
	is.PushAgenda(feedback)
	tc.GroundingHandled = true
	logging.Grounding("strategy %s for move %s (confidence %.2f)", tc.Strategy, tc.Move.ID, tc.Move.Confidence)
	return nil
}
