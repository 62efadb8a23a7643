package types

import (
	"github.com/google/uuid"
)

// Speaker identifies which dialogue participant produced a move.
type Speaker string

const (
	SpeakerUser   Speaker = "usr"
	SpeakerSystem Speaker = "sys"
)

// MoveType enumerates the dialogue acts the engine understands.
type MoveType string

const (
	MoveAsk     MoveType = "ask"
	MoveAnswer  MoveType = "answer"
	MoveAssert  MoveType = "assert"
	MoveGreet   MoveType = "greet"
	MoveQuit    MoveType = "quit"
	MoveICM     MoveType = "icm"
	MoveRequest MoveType = "request" // user asks for an action to be performed
	MovePropose MoveType = "propose" // system presents a negotiable alternative
	MoveAccept  MoveType = "accept"
	MoveReject  MoveType = "reject"
	MoveCancel  MoveType = "cancel" // task cancellation, clears the agenda side
	MoveReport  MoveType = "report" // action outcome report
)

// GroundingStatus tracks how far an utterance has progressed toward mutual
// understanding. Progression is monotone except for the two failure states.
type GroundingStatus string

const (
	Ungrounded          GroundingStatus = "ungrounded"
	Perceived           GroundingStatus = "perceived"
	Understood          GroundingStatus = "understood"
	Grounded            GroundingStatus = "grounded"
	PerceptionFailed    GroundingStatus = "perception_failed"
	UnderstandingFailed GroundingStatus = "understanding_failed"
)

var groundingRank = map[GroundingStatus]int{
	Ungrounded: 0,
	Perceived:  1,
	Understood: 2,
	Grounded:   3,
}

// CanAdvanceTo reports whether the transition g -> next is legal: forward
// along the grounding ladder, or into a failure state from any non-grounded
// status. Failure states are terminal.
func (g GroundingStatus) CanAdvanceTo(next GroundingStatus) bool {
	if g == PerceptionFailed || g == UnderstandingFailed {
		return false
	}
	if next == PerceptionFailed || next == UnderstandingFailed {
		return g != Grounded
	}
	return groundingRank[next] > groundingRank[g]
}

// Failed reports whether grounding has entered a failure state.
func (g GroundingStatus) Failed() bool {
	return g == PerceptionFailed || g == UnderstandingFailed
}

// Content is the closed sum of payloads a move can carry: a Question, an
// Answer, a Proposition, an ICM feedback packet, or plain Text.
type Content interface {
	kind() string
}

// Text is free-form content for greetings, farewells and reports.
type Text string

func (Text) kind() string { return "text" }

// Move is a single dialogue act. Moves are immutable once created; the
// integration rules re-annotate via Clone rather than mutating a move that
// is already part of the history.
type Move struct {
	ID         string
	Speaker    Speaker
	Type       MoveType
	Content    Content
	Confidence float64
	Grounding  GroundingStatus

	// NeedsReutterance is set when perception failed and the system has
	// asked the user to repeat.
	NeedsReutterance bool

	// NeedsClarification is set when understanding failed and a
	// clarification request is owed.
	NeedsClarification bool

	// Alternatives annotates a system propose/assert move with the full
	// candidate set; integration accommodates them into IUN.
	Alternatives []Proposition
}

// NewMove creates a move with a fresh identity and default annotations.
func NewMove(speaker Speaker, mt MoveType, content Content) *Move {
	return &Move{
		ID:         uuid.NewString(),
		Speaker:    speaker,
		Type:       mt,
		Content:    content,
		Confidence: 1.0,
		Grounding:  Ungrounded,
	}
}

// Clone returns a deep copy sharing no mutable structure with the original.
func (m *Move) Clone() *Move {
	if m == nil {
		return nil
	}
	out := *m
	if m.Alternatives != nil {
		out.Alternatives = make([]Proposition, len(m.Alternatives))
		for i, p := range m.Alternatives {
			out.Alternatives[i] = p.Clone()
		}
	}
	return &out
}

// QuestionContent returns the embedded question when the move carries one.
func (m *Move) QuestionContent() (Question, bool) {
	q, ok := m.Content.(Question)
	return q, ok
}

// AnswerContent returns the embedded answer when the move carries one.
func (m *Move) AnswerContent() (Answer, bool) {
	a, ok := m.Content.(Answer)
	return a, ok
}

// PropContent returns the embedded bare proposition when the move carries one.
func (m *Move) PropContent() (Proposition, bool) {
	p, ok := m.Content.(Proposition)
	return p, ok
}

// ICMContent returns the embedded feedback packet when the move carries one.
func (m *Move) ICMContent() (ICM, bool) {
	i, ok := m.Content.(ICM)
	return i, ok
}

// IsAffirmative reports whether the move is a polar "yes" (an accept move,
// or an answer whose proposition is the reserved yes predicate).
func (m *Move) IsAffirmative() bool {
	if m.Type == MoveAccept {
		return true
	}
	if a, ok := m.AnswerContent(); ok {
		return a.Prop.Predicate == "yes" && !a.Prop.Negated
	}
	return false
}

// IsNegative reports whether the move is a polar "no".
func (m *Move) IsNegative() bool {
	if m.Type == MoveReject {
		return true
	}
	if a, ok := m.AnswerContent(); ok {
		return a.Prop.Predicate == "no" || (a.Prop.Predicate == "yes" && a.Prop.Negated)
	}
	return false
}

// Yes and No are the reserved polar answer propositions.
func Yes() Proposition { return Proposition{Predicate: "yes"} }
func No() Proposition  { return Proposition{Predicate: "no"} }
