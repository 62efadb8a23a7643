package state

import (
	"encoding/json"
	"fmt"

	"converse/internal/types"
)

// Checkpointing requires a lossless structured round trip: QUD order,
// commitment membership, plan-tree shape and grounding annotations must all
// survive serialize/deserialize exactly. Question slices go through the
// tagged envelope from the types package; LastMoves are stored as IDs into
// the move history to preserve identity on restore.

type stateJSON struct {
	QUD         []json.RawMessage   `json:"qud,omitempty"`
	Commitments *CommitmentSet      `json:"commitments"`
	Moves       []*types.Move       `json:"moves,omitempty"`
	LastMoveIDs []string            `json:"last_move_ids,omitempty"`
	Agenda      []*types.Move       `json:"agenda,omitempty"`
	Plan        *types.Plan         `json:"plan,omitempty"`
	Issues      []json.RawMessage   `json:"issues,omitempty"`
	Actions     []*types.Action     `json:"actions,omitempty"`
	IUN         []types.Proposition `json:"iun,omitempty"`
	Rejected    []types.Proposition `json:"rejected,omitempty"`
	Beliefs     map[string]string   `json:"beliefs,omitempty"`
	Rollbacks   []RollbackNotice    `json:"rollbacks,omitempty"`
	Pending     *types.Move         `json:"pending,omitempty"`
	Dialogue    DialogueState       `json:"dialogue"`
	NextSpeaker types.Speaker       `json:"next_speaker"`
}

func encodeQuestions(qs []types.Question) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(qs))
	for _, q := range qs {
		raw, err := types.EncodeQuestion(q)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func decodeQuestions(raws []json.RawMessage) ([]types.Question, error) {
	var out []types.Question
	for _, raw := range raws {
		q, err := types.DecodeQuestion(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

// MarshalJSON serializes the full information state.
func (is *InformationState) MarshalJSON() ([]byte, error) {
	qud, err := encodeQuestions(is.QUD)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QUD: %w", err)
	}
	issues, err := encodeQuestions(is.Issues)
	if err != nil {
		return nil, fmt.Errorf("failed to encode issues: %w", err)
	}
	lastIDs := make([]string, 0, len(is.LastMoves))
	for _, m := range is.LastMoves {
		lastIDs = append(lastIDs, m.ID)
	}
	return json.Marshal(stateJSON{
		QUD:         qud,
		Commitments: is.Commitments,
		Moves:       is.Moves,
		LastMoveIDs: lastIDs,
		Agenda:      is.Agenda,
		Plan:        is.Plan,
		Issues:      issues,
		Actions:     is.Actions,
		IUN:         is.IUN,
		Rejected:    is.Rejected,
		Beliefs:     is.Beliefs,
		Rollbacks:   is.Rollbacks,
		Pending:     is.Pending,
		Dialogue:    is.Dialogue,
		NextSpeaker: is.NextSpeaker,
	})
}

// UnmarshalJSON reverses MarshalJSON.
func (is *InformationState) UnmarshalJSON(data []byte) error {
	var sj stateJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	qud, err := decodeQuestions(sj.QUD)
	if err != nil {
		return fmt.Errorf("failed to decode QUD: %w", err)
	}
	issues, err := decodeQuestions(sj.Issues)
	if err != nil {
		return fmt.Errorf("failed to decode issues: %w", err)
	}

	is.QUD = qud
	is.Commitments = sj.Commitments
	if is.Commitments == nil {
		is.Commitments = NewCommitmentSet()
	}
	is.Moves = sj.Moves
	is.Agenda = sj.Agenda
	is.Plan = sj.Plan
	is.Issues = issues
	is.Actions = sj.Actions
	// Restore pointer identity between the action queue and plan exec
	// leaves; the JSON encodes them as separate values.
	planActions := actionsByID(is.Plan)
	for i, a := range is.Actions {
		if a == nil {
			continue
		}
		if linked, ok := planActions[a.ID]; ok {
			is.Actions[i] = linked
		}
	}
	is.IUN = sj.IUN
	is.Rejected = sj.Rejected
	is.Beliefs = sj.Beliefs
	if is.Beliefs == nil {
		is.Beliefs = make(map[string]string)
	}
	is.Rollbacks = sj.Rollbacks
	is.Pending = sj.Pending
	is.Dialogue = sj.Dialogue
	is.NextSpeaker = sj.NextSpeaker

	is.LastMoves = nil
	for _, id := range sj.LastMoveIDs {
		if m := is.FindMove(id); m != nil {
			is.LastMoves = append(is.LastMoves, m)
		}
	}
	return nil
}
