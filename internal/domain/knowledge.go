// Package domain supplies the swappable domain model consumed by the rule
// engine: task plans, question prerequisites, answer validation, action
// criticality and the dominance order over negotiable alternatives. The
// core stays ignorant of concrete domains; everything here is data loaded
// from a library file.
package domain

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	"github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"converse/internal/logging"
)

// Knowledge is the Mangle-backed sortal knowledge base. Sort membership
// facts (sortal(Value, Sort)) come from the domain library; an optional
// axiom block can add derived predicates. Answer validation queries it to
// decide whether a value is an acceptable filler for a question's sort.
type Knowledge struct {
	mu          sync.RWMutex
	programInfo *analysis.ProgramInfo
	store       factstore.FactStore
}

const derivedFactLimit = 100000

// NewKnowledge compiles sort membership plus any raw Mangle axioms into an
// evaluated fact store. The program must compile; a broken domain library
// fails loudly at load time, not mid-dialogue.
func NewKnowledge(sorts map[string][]string, axioms string) (*Knowledge, error) {
	timer := logging.StartTimer(logging.CategoryKernel, "NewKnowledge")
	defer timer.Stop()

	var sb strings.Builder
	sb.WriteString("Decl sortal(Value, Sort).\n")
	if axioms != "" {
		sb.WriteString(axioms)
		sb.WriteString("\n")
	}

	parsed, err := parse.Unit(strings.NewReader(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse domain axioms: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(parsed, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze domain axioms: %w", err)
	}

	store := factstore.NewSimpleInMemoryStore()
	sortNames := make([]string, 0, len(sorts))
	for name := range sorts {
		sortNames = append(sortNames, name)
	}
	sort.Strings(sortNames)
	total := 0
	for _, name := range sortNames {
		for _, value := range sorts[name] {
			store.Add(ast.NewAtom("sortal", ast.String(value), ast.String(name)))
			total++
		}
	}
	logging.KernelDebug("knowledge base loaded %d sortal facts across %d sorts", total, len(sorts))

	if _, err := engine.EvalProgramWithStats(programInfo, store,
		engine.WithCreatedFactLimit(derivedFactLimit)); err != nil {
		return nil, fmt.Errorf("failed to evaluate domain axioms: %w", err)
	}

	return &Knowledge{programInfo: programInfo, store: store}, nil
}

// HasSort reports whether the value belongs to the sort.
func (k *Knowledge) HasSort(value, sortName string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	found := false
	k.query("sortal", func(args []string) {
		if len(args) == 2 && args[0] == value && args[1] == sortName {
			found = true
		}
	})
	return found
}

// Values returns the members of a sort in store order.
func (k *Knowledge) Values(sortName string) []string {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var out []string
	k.query("sortal", func(args []string) {
		if len(args) == 2 && args[1] == sortName {
			out = append(out, args[0])
		}
	})
	sort.Strings(out)
	return out
}

// Holds reports whether any fact of the given predicate matches the
// argument pattern ("" matches anything). Derived predicates from the
// axiom block are queryable the same way as base facts.
func (k *Knowledge) Holds(predicate string, pattern ...string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()

	found := false
	k.query(predicate, func(args []string) {
		if len(args) != len(pattern) {
			return
		}
		for i, want := range pattern {
			if want != "" && args[i] != want {
				return
			}
		}
		found = true
	})
	return found
}

func (k *Knowledge) query(predicate string, fn func(args []string)) {
	if k.programInfo == nil {
		return
	}
	for pred := range k.programInfo.Decls {
		if pred.Symbol != predicate {
			continue
		}
		k.store.GetFacts(ast.NewQuery(pred), func(a ast.Atom) error {
			args := make([]string, len(a.Args))
			for i, term := range a.Args {
				args[i] = baseTermToString(term)
			}
			fn(args)
			return nil
		})
		return
	}
}

func baseTermToString(term ast.BaseTerm) string {
	switch t := term.(type) {
	case ast.Constant:
		switch t.Type {
		case ast.NameType, ast.StringType, ast.BytesType:
			return t.Symbol
		case ast.NumberType:
			return fmt.Sprintf("%d", t.NumValue)
		case ast.Float64Type:
			return fmt.Sprintf("%g", math.Float64frombits(uint64(t.NumValue)))
		default:
			return t.Symbol
		}
	default:
		return fmt.Sprintf("%v", term)
	}
}
