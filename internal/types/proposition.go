// Package types provides the leaf dialogue vocabulary shared across converse
// packages: moves, questions, answers, propositions, plans and actions.
// This package exists to break import cycles between state, rules and engine.
// Types in this package are foundational data structures with no complex
// dependencies.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Proposition is the unit of commitment, negotiation and action
// postconditions: a predicate with a named argument map and a polarity.
type Proposition struct {
	Predicate string            `json:"predicate"`
	Args      map[string]string `json:"args,omitempty"`
	Negated   bool              `json:"negated,omitempty"`
}

// Prop builds a positive proposition with a single "value" argument, the
// most common shape for slot-filling answers (e.g. destination=paris).
func Prop(predicate, value string) Proposition {
	return Proposition{Predicate: predicate, Args: map[string]string{"value": value}}
}

// PropArgs builds a positive proposition over an arbitrary argument map.
func PropArgs(predicate string, args map[string]string) Proposition {
	return Proposition{Predicate: predicate, Args: args}
}

// Value returns the "value" argument, or "" when the proposition does not
// carry one.
func (p Proposition) Value() string {
	return p.Args["value"]
}

// Canonical returns the canonical string form used for set membership:
// predicate(k=v, ...) with keys sorted, prefixed "not " when negated.
func (p Proposition) Canonical() string {
	keys := make([]string, 0, len(p.Args))
	for k := range p.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, p.Args[k]))
	}

	s := fmt.Sprintf("%s(%s)", p.Predicate, strings.Join(pairs, ", "))
	if p.Negated {
		return "not " + s
	}
	return s
}

// Key returns the polarity-blind canonical form. Commitment storage keys on
// this so a proposition and its negation can never silently coexist.
func (p Proposition) Key() string {
	pos := p
	pos.Negated = false
	return pos.Canonical()
}

// Equal reports full structural equality including polarity.
func (p Proposition) Equal(other Proposition) bool {
	return p.Canonical() == other.Canonical()
}

// SamePredicate reports whether both propositions speak about the same
// predicate, regardless of arguments. Corrections are detected at this level.
func (p Proposition) SamePredicate(other Proposition) bool {
	return p.Predicate == other.Predicate
}

// Negate returns the proposition with flipped polarity.
func (p Proposition) Negate() Proposition {
	p.Negated = !p.Negated
	// Args is shared; callers treat propositions as values and never mutate
	// the map after construction.
	return p
}

// Clone returns a deep copy.
func (p Proposition) Clone() Proposition {
	if p.Args == nil {
		return p
	}
	args := make(map[string]string, len(p.Args))
	for k, v := range p.Args {
		args[k] = v
	}
	p.Args = args
	return p
}

func (p Proposition) String() string { return p.Canonical() }

func (Proposition) kind() string { return "prop" }
