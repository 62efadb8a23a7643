package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"converse/internal/types"
)

func TestAddReplacesSameSlot(t *testing.T) {
	cs := NewCommitmentSet()
	require.True(t, cs.Add(types.Prop("destination", "paris")))
	require.Equal(t, 1, cs.Len())

	// A negation shares the slot with its positive form: the set never
	// holds p and not-p at once.
	cs.Add(types.Prop("destination", "paris").Negate())
	require.Equal(t, 1, cs.Len())
	require.True(t, cs.Contains(types.Prop("destination", "paris").Negate()))
	require.False(t, cs.Contains(types.Prop("destination", "paris")))

	// Same predicate, different value is a different slot.
	cs.Add(types.Prop("destination", "london"))
	require.Equal(t, 2, cs.Len())
}

func TestRetractPredicate(t *testing.T) {
	cs := NewCommitmentSet()
	cs.Add(types.Prop("destination", "paris"))
	cs.Add(types.Prop("destination", "london"))
	cs.Add(types.Prop("departure_day", "monday"))

	removed := cs.RetractPredicate("destination")
	require.Len(t, removed, 2)
	require.False(t, cs.HasPredicate("destination"))
	require.True(t, cs.HasPredicate("departure_day"))

	require.Empty(t, cs.RetractPredicate("destination"))
}

func TestByPredicateAndOrder(t *testing.T) {
	cs := NewCommitmentSet()
	cs.Add(types.Prop("b", "2"))
	cs.Add(types.Prop("a", "1"))

	require.Equal(t, []string{"b(value=2)", "a(value=1)"}, cs.Canonicals(),
		"insertion order is preserved")
	props := cs.ByPredicate("a")
	require.Len(t, props, 1)
	require.Equal(t, "1", props[0].Value())
}

func TestCloneIndependence(t *testing.T) {
	cs := NewCommitmentSet()
	cs.Add(types.Prop("destination", "paris"))

	clone := cs.Clone()
	clone.Add(types.Prop("departure_day", "monday"))
	clone.RetractPredicate("destination")

	require.Equal(t, 1, cs.Len())
	require.True(t, cs.HasPredicate("destination"))
	require.False(t, cs.HasPredicate("departure_day"))
}
