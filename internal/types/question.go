package types

import (
	"fmt"
	"sort"
	"strings"
)

// Question is the closed sum of question forms the dialogue manager reasons
// about. The three variants are WhQuestion, YNQuestion and AltQuestion;
// nothing else satisfies the interface. Questions compare structurally: QUD
// membership, answer matching and dependency lookup all go through Equal.
type Question interface {
	Content

	isQuestion()

	// PredicateName is the predicate the question asks about. For a
	// yes/no question this is the predicate of the embedded proposition.
	PredicateName() string

	// Equal reports structural equality with another question.
	Equal(Question) bool

	// Key returns a canonical string usable as a map key.
	Key() string
}

// WhQuestion asks for a value of a variable under a predicate, optionally
// constrained (e.g. ?x.destination(x), x a city).
type WhQuestion struct {
	Variable    string            `json:"variable"`
	Predicate   string            `json:"predicate"`
	Constraints map[string]string `json:"constraints,omitempty"`
}

func (q WhQuestion) isQuestion()           {}
func (q WhQuestion) kind() string          { return "wh" }
func (q WhQuestion) PredicateName() string { return q.Predicate }

func (q WhQuestion) Key() string {
	keys := make([]string, 0, len(q.Constraints))
	for k := range q.Constraints {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, q.Constraints[k]))
	}
	return fmt.Sprintf("?%s.%s(%s){%s}", q.Variable, q.Predicate, q.Variable, strings.Join(pairs, ","))
}

func (q WhQuestion) Equal(other Question) bool {
	o, ok := other.(WhQuestion)
	return ok && q.Key() == o.Key()
}

// YNQuestion asks whether a proposition holds.
type YNQuestion struct {
	Prop Proposition `json:"prop"`
}

func (q YNQuestion) isQuestion()           {}
func (q YNQuestion) kind() string          { return "yn" }
func (q YNQuestion) PredicateName() string { return q.Prop.Predicate }
func (q YNQuestion) Key() string           { return "?" + q.Prop.Canonical() }

func (q YNQuestion) Equal(other Question) bool {
	o, ok := other.(YNQuestion)
	return ok && q.Prop.Equal(o.Prop)
}

// AltQuestion asks the hearer to choose among explicit alternatives.
type AltQuestion struct {
	Variable     string        `json:"variable"`
	Alternatives []Proposition `json:"alternatives"`
}

func (q AltQuestion) isQuestion() {}

func (q AltQuestion) kind() string { return "alt" }

func (q AltQuestion) PredicateName() string {
	if len(q.Alternatives) > 0 {
		return q.Alternatives[0].Predicate
	}
	return q.Variable
}

func (q AltQuestion) Key() string {
	alts := make([]string, 0, len(q.Alternatives))
	for _, a := range q.Alternatives {
		alts = append(alts, a.Canonical())
	}
	return fmt.Sprintf("?%s{%s}", q.Variable, strings.Join(alts, "|"))
}

func (q AltQuestion) Equal(other Question) bool {
	o, ok := other.(AltQuestion)
	return ok && q.Key() == o.Key()
}

// WhAbout is a convenience constructor for the common one-slot question.
func WhAbout(predicate string) WhQuestion {
	return WhQuestion{Variable: "x", Predicate: predicate}
}
