package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsArgs(t *testing.T) {
	p := PropArgs("book", map[string]string{"day": "monday", "city": "paris"})
	require.Equal(t, "book(city=paris, day=monday)", p.Canonical())

	q := PropArgs("book", map[string]string{"city": "paris", "day": "monday"})
	require.Equal(t, p.Canonical(), q.Canonical())
	require.True(t, p.Equal(q))
}

func TestCanonicalNegation(t *testing.T) {
	p := Prop("destination", "paris")
	n := p.Negate()
	require.Equal(t, "not destination(value=paris)", n.Canonical())
	require.False(t, p.Equal(n))

	// Key is polarity-blind so a negation lands on the same commitment
	// slot as the positive form.
	require.Equal(t, p.Key(), n.Key())
}

func TestSamePredicateIgnoresValue(t *testing.T) {
	a := Prop("destination", "paris")
	b := Prop("destination", "london")
	c := Prop("departure_day", "paris")
	require.True(t, a.SamePredicate(b))
	require.False(t, a.SamePredicate(c))
}

func TestQuestionEquality(t *testing.T) {
	wh := WhAbout("destination")
	require.True(t, wh.Equal(WhAbout("destination")))
	require.False(t, wh.Equal(WhAbout("departure_day")))

	yn := YNQuestion{Prop: Prop("trip_booked", "yes")}
	require.False(t, wh.Equal(yn))
	require.Equal(t, "trip_booked", yn.PredicateName())

	alt := AltQuestion{Variable: "destination", Alternatives: []Proposition{
		Prop("destination", "paris"),
		Prop("destination", "london"),
	}}
	require.Equal(t, "destination", alt.PredicateName())
	require.NotEqual(t, alt.Key(), wh.Key())
}
