// Package perception turns raw user utterances into dialogue moves. The
// interpreter is deliberately pluggable: the built-in keyword interpreter
// covers the CLI surface, and anything smarter (an LLM front end, a speech
// recognizer) slots in behind the same interface with per-move confidence
// scores the grounding policy can act on.
package perception

import (
	"context"

	"converse/internal/domain"
	"converse/internal/state"
	"converse/internal/types"
)

// Interpreter maps one user utterance to zero or more dialogue moves.
// Implementations set Confidence on every move they emit; the registry is
// passed per call so a hot-reloaded domain takes effect at the next turn.
type Interpreter interface {
	Interpret(ctx context.Context, reg *domain.Registry, utterance string, is *state.InformationState) ([]*types.Move, error)
}

// move builds a user move with the given confidence.
func move(mt types.MoveType, content types.Content, confidence float64) *types.Move {
	m := types.NewMove(types.SpeakerUser, mt, content)
	m.Confidence = confidence
	return m
}
