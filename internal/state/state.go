package state

import (
	"converse/internal/types"
)

// DialogueState is the coarse control state of a conversation.
type DialogueState string

const (
	DialogueNotStarted DialogueState = "not_started"
	DialogueActive     DialogueState = "active"
	DialogueEnded      DialogueState = "ended"
)

// RollbackNotice records a retraction performed after a failed action, so
// the system can explain what was undone and why.
type RollbackNotice struct {
	ActionName string   `json:"action_name"`
	Reason     string   `json:"reason"`
	Retracted  []string `json:"retracted,omitempty"`
}

// InformationState is the complete dialogue state of one conversation.
//
// Shared state (common ground): QUD, Commitments, Moves, LastMoves.
// Private state: Agenda, Plan, Issues, Actions, IUN, Rejected, Beliefs.
// Control: Dialogue, NextSpeaker.
//
// QUD and Issues hold question values; questions are immutable so sharing
// them across slices is safe. Moves and Plans are clone-before-mutate.
type InformationState struct {
	// QUD is the stack of questions under discussion; index 0 is the top.
	QUD []types.Question

	// Commitments is the monotone (except explicit correction) set of
	// agreed propositions.
	Commitments *CommitmentSet

	// Moves is the full annotated move history.
	Moves []*types.Move

	// LastMoves holds the moves of the most recent turn, the salience
	// window for grounding and negotiation.
	LastMoves []*types.Move

	// Agenda queues the system's output moves for this turn.
	Agenda []*types.Move

	// Plan is the task forest driving issue accommodation.
	Plan *types.Plan

	// Issues holds accommodated, not-yet-raised questions, FIFO unless a
	// dependency defers one.
	Issues []types.Question

	// Actions is the FIFO queue of pending device actions.
	Actions []*types.Action

	// IUN is the set of propositions under negotiation; index 0 is the
	// salient member.
	IUN []types.Proposition

	// Rejected records proposals the user has turned down, consulted by
	// counter-proposal dominance checks.
	Rejected []types.Proposition

	// Beliefs is an open key/value store for domain knowledge the system
	// can answer from.
	Beliefs map[string]string

	// Rollbacks records retractions performed after failed actions.
	Rollbacks []RollbackNotice

	// Pending holds a move integrated cautiously: its content is not yet
	// part of the state and awaits explicit confirmation.
	Pending *types.Move

	Dialogue    DialogueState
	NextSpeaker types.Speaker
}

// New returns a fresh information state for a conversation that has not
// started.
func New() *InformationState {
	return &InformationState{
		Commitments: NewCommitmentSet(),
		Beliefs:     make(map[string]string),
		Dialogue:    DialogueNotStarted,
		NextSpeaker: types.SpeakerUser,
	}
}

// ----- QUD --------------------------------------------------------------

// PushQUD raises a question into focus. A question already on QUD is not
// duplicated; it is moved to the top instead.
func (is *InformationState) PushQUD(q types.Question) {
	is.RemoveQUD(q)
	is.QUD = append([]types.Question{q}, is.QUD...)
}

// TopQUD returns the question in focus, or nil when QUD is empty.
func (is *InformationState) TopQUD() types.Question {
	if len(is.QUD) == 0 {
		return nil
	}
	return is.QUD[0]
}

// PopQUD removes and returns the question in focus.
func (is *InformationState) PopQUD() types.Question {
	if len(is.QUD) == 0 {
		return nil
	}
	top := is.QUD[0]
	is.QUD = is.QUD[1:]
	return top
}

// RemoveQUD removes the question wherever it sits on the stack.
func (is *InformationState) RemoveQUD(q types.Question) bool {
	for i, cur := range is.QUD {
		if cur.Equal(q) {
			is.QUD = append(is.QUD[:i], is.QUD[i+1:]...)
			return true
		}
	}
	return false
}

// OnQUD reports QUD membership.
func (is *InformationState) OnQUD(q types.Question) bool {
	for _, cur := range is.QUD {
		if cur.Equal(q) {
			return true
		}
	}
	return false
}

// ----- Issues -----------------------------------------------------------

// AddIssue appends the question to the issue list unless already present.
func (is *InformationState) AddIssue(q types.Question) bool {
	if is.HasIssue(q) {
		return false
	}
	is.Issues = append(is.Issues, q)
	return true
}

// HasIssue reports issue membership.
func (is *InformationState) HasIssue(q types.Question) bool {
	for _, cur := range is.Issues {
		if cur.Equal(q) {
			return true
		}
	}
	return false
}

// RemoveIssue removes the question from the issue list.
func (is *InformationState) RemoveIssue(q types.Question) bool {
	for i, cur := range is.Issues {
		if cur.Equal(q) {
			is.Issues = append(is.Issues[:i], is.Issues[i+1:]...)
			return true
		}
	}
	return false
}

// ----- Actions ----------------------------------------------------------

// EnqueueAction appends an action to the pending queue.
func (is *InformationState) EnqueueAction(a *types.Action) {
	is.Actions = append(is.Actions, a)
}

// PeekAction returns the head of the queue without removing it.
func (is *InformationState) PeekAction() *types.Action {
	if len(is.Actions) == 0 {
		return nil
	}
	return is.Actions[0]
}

// DequeueAction removes and returns the head of the queue.
func (is *InformationState) DequeueAction() *types.Action {
	if len(is.Actions) == 0 {
		return nil
	}
	head := is.Actions[0]
	is.Actions = is.Actions[1:]
	return head
}

// ----- IUN --------------------------------------------------------------

// AddIUN adds a proposition under negotiation unless already present.
func (is *InformationState) AddIUN(p types.Proposition) bool {
	for _, cur := range is.IUN {
		if cur.Equal(p) {
			return false
		}
	}
	is.IUN = append(is.IUN, p)
	return true
}

// SalientIUN returns the proposition currently on the table, or nil.
func (is *InformationState) SalientIUN() *types.Proposition {
	if len(is.IUN) == 0 {
		return nil
	}
	p := is.IUN[0]
	return &p
}

// RemoveIUN removes the proposition from negotiation.
func (is *InformationState) RemoveIUN(p types.Proposition) bool {
	for i, cur := range is.IUN {
		if cur.Equal(p) {
			is.IUN = append(is.IUN[:i], is.IUN[i+1:]...)
			return true
		}
	}
	return false
}

// ClearIUN empties the negotiation set.
func (is *InformationState) ClearIUN() {
	is.IUN = nil
}

// UnderNegotiation reports whether any proposition about the predicate is
// being negotiated. An unresolved negotiation on a proposition excludes a
// simultaneous action confirmation on it.
func (is *InformationState) UnderNegotiation(predicate string) bool {
	for _, p := range is.IUN {
		if p.Predicate == predicate {
			return true
		}
	}
	return false
}

// ----- Moves and agenda -------------------------------------------------

// BeginTurn resets the salience window. The engine calls this once per
// user turn before integration.
func (is *InformationState) BeginTurn() {
	is.LastMoves = nil
}

// AppendMove records a move in the history and the salience window.
func (is *InformationState) AppendMove(m *types.Move) {
	is.Moves = append(is.Moves, m)
	is.LastMoves = append(is.LastMoves, m)
}

// FindMove returns the historical move with the given ID.
func (is *InformationState) FindMove(id string) *types.Move {
	for i := len(is.Moves) - 1; i >= 0; i-- {
		if is.Moves[i].ID == id {
			return is.Moves[i]
		}
	}
	return nil
}

// SwapMove replaces the historical move carrying the same ID, preserving
// its position in Moves and LastMoves. Moves are immutable; re-annotation
// during integration goes through clone-then-swap.
func (is *InformationState) SwapMove(m *types.Move) bool {
	swapped := false
	for i, cur := range is.Moves {
		if cur.ID == m.ID {
			is.Moves[i] = m
			swapped = true
			break
		}
	}
	for i, cur := range is.LastMoves {
		if cur.ID == m.ID {
			is.LastMoves[i] = m
		}
	}
	return swapped
}

// LatestUserMove returns the most recent user move in the salience window.
func (is *InformationState) LatestUserMove() *types.Move {
	for i := len(is.LastMoves) - 1; i >= 0; i-- {
		if is.LastMoves[i].Speaker == types.SpeakerUser {
			return is.LastMoves[i]
		}
	}
	return nil
}

// PushAgenda queues a system move for output.
func (is *InformationState) PushAgenda(m *types.Move) {
	is.Agenda = append(is.Agenda, m)
}

// DrainAgenda empties the agenda and returns its moves in order.
func (is *InformationState) DrainAgenda() []*types.Move {
	out := is.Agenda
	is.Agenda = nil
	return out
}

// ----- Lifecycle --------------------------------------------------------

// Clone returns a deep copy of the state. Question values are immutable
// and shared; moves, plans and actions are copied.
func (is *InformationState) Clone() *InformationState {
	out := &InformationState{
		QUD:         append([]types.Question(nil), is.QUD...),
		Commitments: is.Commitments.Clone(),
		Plan:        is.Plan.Clone(),
		Issues:      append([]types.Question(nil), is.Issues...),
		IUN:         append([]types.Proposition(nil), is.IUN...),
		Rejected:    append([]types.Proposition(nil), is.Rejected...),
		Rollbacks:   append([]RollbackNotice(nil), is.Rollbacks...),
		Pending:     is.Pending.Clone(),
		Dialogue:    is.Dialogue,
		NextSpeaker: is.NextSpeaker,
		Beliefs:     make(map[string]string, len(is.Beliefs)),
	}
	for k, v := range is.Beliefs {
		out.Beliefs[k] = v
	}
	byID := make(map[string]*types.Move, len(is.Moves))
	for _, m := range is.Moves {
		c := m.Clone()
		byID[c.ID] = c
		out.Moves = append(out.Moves, c)
	}
	for _, m := range is.LastMoves {
		if c, ok := byID[m.ID]; ok {
			out.LastMoves = append(out.LastMoves, c)
		} else {
			out.LastMoves = append(out.LastMoves, m.Clone())
		}
	}
	for _, m := range is.Agenda {
		out.Agenda = append(out.Agenda, m.Clone())
	}
	planActions := actionsByID(out.Plan)
	for _, a := range is.Actions {
		// The queue shares action pointers with plan exec leaves; keep
		// that identity across the copy.
		if linked, ok := planActions[a.ID]; ok {
			out.Actions = append(out.Actions, linked)
		} else {
			out.Actions = append(out.Actions, a.Clone())
		}
	}
	return out
}

func actionsByID(p *types.Plan) map[string]*types.Action {
	out := make(map[string]*types.Action)
	var walk func(*types.Plan)
	walk = func(node *types.Plan) {
		if node == nil {
			return
		}
		if node.Action != nil {
			out[node.Action.ID] = node.Action
		}
		for _, sub := range node.Subplans {
			walk(sub)
		}
	}
	walk(p)
	return out
}

// ClearTask drops all task-related state on cancellation: plan, issues,
// QUD, pending actions, negotiation, and the commitments the task
// produced. Move history and dialogue-level state survive.
func (is *InformationState) ClearTask(taskPredicates []string) {
	is.Plan = nil
	is.Issues = nil
	is.QUD = nil
	is.Actions = nil
	is.IUN = nil
	is.Rejected = nil
	is.Pending = nil
	for _, pred := range taskPredicates {
		is.Commitments.RetractPredicate(pred)
	}
	is.Dialogue = DialogueNotStarted
}
