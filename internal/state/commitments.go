// Package state holds the information state of one conversation: the shared
// part (QUD, commitments, move history), the private part (agenda, plan,
// issues, pending actions, propositions under negotiation, beliefs) and the
// control state. One InformationState exists per conversation and is only
// ever touched by that conversation's engine.
package state

import (
	"encoding/json"

	"converse/internal/types"
)

// CommitmentSet is an insertion-ordered set of propositions keyed by their
// polarity-blind canonical form. Two entries for the same predicate and
// arguments can never coexist: re-adding the same key replaces in place, so
// a replacement is always an explicit retract-then-add.
type CommitmentSet struct {
	order []string
	byKey map[string]types.Proposition
}

// NewCommitmentSet returns an empty set.
func NewCommitmentSet() *CommitmentSet {
	return &CommitmentSet{byKey: make(map[string]types.Proposition)}
}

// Add inserts the proposition, replacing any entry with the same predicate
// and arguments. It reports whether the set grew.
func (c *CommitmentSet) Add(p types.Proposition) bool {
	key := p.Key()
	if _, ok := c.byKey[key]; ok {
		c.byKey[key] = p
		return false
	}
	c.order = append(c.order, key)
	c.byKey[key] = p
	return true
}

// Retract removes the entry matching the proposition's predicate and
// arguments, reporting whether one was present.
func (c *CommitmentSet) Retract(p types.Proposition) bool {
	key := p.Key()
	if _, ok := c.byKey[key]; !ok {
		return false
	}
	delete(c.byKey, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// RetractPredicate removes every commitment about the predicate and returns
// the removed propositions in order.
func (c *CommitmentSet) RetractPredicate(predicate string) []types.Proposition {
	var removed []types.Proposition
	for _, p := range c.ByPredicate(predicate) {
		if c.Retract(p) {
			removed = append(removed, p)
		}
	}
	return removed
}

// Contains reports exact membership, polarity included.
func (c *CommitmentSet) Contains(p types.Proposition) bool {
	got, ok := c.byKey[p.Key()]
	return ok && got.Negated == p.Negated
}

// HasPredicate reports whether any commitment speaks about the predicate.
func (c *CommitmentSet) HasPredicate(predicate string) bool {
	return len(c.ByPredicate(predicate)) > 0
}

// ByPredicate returns all commitments about the predicate in insertion
// order.
func (c *CommitmentSet) ByPredicate(predicate string) []types.Proposition {
	var out []types.Proposition
	for _, key := range c.order {
		if p := c.byKey[key]; p.Predicate == predicate {
			out = append(out, p)
		}
	}
	return out
}

// All returns the commitments in insertion order.
func (c *CommitmentSet) All() []types.Proposition {
	out := make([]types.Proposition, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.byKey[key])
	}
	return out
}

// Canonicals returns the canonical strings in insertion order.
func (c *CommitmentSet) Canonicals() []string {
	out := make([]string, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.byKey[key].Canonical())
	}
	return out
}

// Len returns the number of commitments.
func (c *CommitmentSet) Len() int { return len(c.order) }

// Clone returns a deep copy.
func (c *CommitmentSet) Clone() *CommitmentSet {
	out := NewCommitmentSet()
	for _, p := range c.All() {
		out.Add(p.Clone())
	}
	return out
}

// MarshalJSON serializes the set as an ordered array of propositions.
func (c *CommitmentSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.All())
}

// UnmarshalJSON reverses MarshalJSON.
func (c *CommitmentSet) UnmarshalJSON(data []byte) error {
	var props []types.Proposition
	if err := json.Unmarshal(data, &props); err != nil {
		return err
	}
	c.order = nil
	c.byKey = make(map[string]types.Proposition, len(props))
	for _, p := range props {
		c.Add(p)
	}
	return nil
}
