package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeSortMembership(t *testing.T) {
	kb, err := NewKnowledge(map[string][]string{
		"city": {"paris", "london"},
		"day":  {"monday"},
	}, "")
	require.NoError(t, err)

	assert.True(t, kb.HasSort("paris", "city"))
	assert.True(t, kb.HasSort("monday", "day"))
	assert.False(t, kb.HasSort("paris", "day"))
	assert.False(t, kb.HasSort("atlantis", "city"))

	assert.Equal(t, []string{"london", "paris"}, kb.Values("city"))
	assert.Empty(t, kb.Values("planet"))
}

func TestKnowledgeDerivedPredicates(t *testing.T) {
	axioms := `
Decl capital(City).
capital("paris").
Decl bookable(City).
bookable(X) :- sortal(X, "city"), capital(X).
`
	kb, err := NewKnowledge(map[string][]string{"city": {"paris", "london"}}, axioms)
	require.NoError(t, err)

	assert.True(t, kb.Holds("capital", "paris"))
	assert.True(t, kb.Holds("bookable", "paris"))
	assert.False(t, kb.Holds("bookable", "london"))
	assert.True(t, kb.Holds("bookable", ""), "empty pattern matches any argument")
	assert.False(t, kb.Holds("unknown_predicate", "paris"))
}

func TestKnowledgeRejectsBrokenAxioms(t *testing.T) {
	_, err := NewKnowledge(nil, "this is not mangle")
	assert.Error(t, err)
}
