package domain

import (
	"fmt"
	"sort"
	"strings"

	"converse/internal/types"
)

// Registry is a compiled, read-only domain library. Engines share a
// registry freely across conversations; nothing in it mutates after
// construction.
type Registry struct {
	Name        string
	defaultTask string

	tasks     map[string]TaskSpec
	questions map[string]QuestionSpec
	actions   map[string]ActionSpec

	criticalTypes map[string]bool
	alternatives  map[string][]Alternative
	ranks         map[string]map[string]int

	// dependents is the reverse of the question prerequisite edges:
	// predicate -> question predicates that directly require it.
	dependents map[string][]string

	kb *Knowledge
}

// NewRegistry compiles a parsed library, including its knowledge base.
func NewRegistry(lib Library) (*Registry, error) {
	if len(lib.Tasks) == 0 {
		return nil, fmt.Errorf("domain library declares no tasks")
	}
	kb, err := NewKnowledge(lib.Sorts, lib.Axioms)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		Name:          lib.Name,
		defaultTask:   lib.DefaultTask,
		tasks:         lib.Tasks,
		questions:     lib.Questions,
		actions:       lib.Actions,
		criticalTypes: make(map[string]bool),
		alternatives:  lib.Alternatives,
		ranks:         make(map[string]map[string]int),
		dependents:    make(map[string][]string),
		kb:            kb,
	}
	if r.questions == nil {
		r.questions = map[string]QuestionSpec{}
	}
	if r.actions == nil {
		r.actions = map[string]ActionSpec{}
	}
	for _, t := range lib.CriticalTypes {
		r.criticalTypes[t] = true
	}
	for pred, alts := range lib.Alternatives {
		r.ranks[pred] = make(map[string]int, len(alts))
		for _, a := range alts {
			r.ranks[pred][a.Value] = a.Rank
		}
	}
	for qPred, spec := range r.questions {
		for _, req := range spec.Requires {
			r.dependents[req] = append(r.dependents[req], qPred)
		}
	}
	for _, deps := range r.dependents {
		sort.Strings(deps)
	}

	if r.defaultTask == "" {
		names := make([]string, 0, len(r.tasks))
		for name := range r.tasks {
			names = append(names, name)
		}
		sort.Strings(names)
		r.defaultTask = names[0]
	}
	if _, ok := r.tasks[r.defaultTask]; !ok {
		return nil, fmt.Errorf("default task %q is not declared", r.defaultTask)
	}
	for name, t := range r.tasks {
		for _, step := range t.Steps {
			if err := r.checkStep(name, step); err != nil {
				return nil, err
			}
		}
	}
	return r, nil
}

func (r *Registry) checkStep(task string, step StepSpec) error {
	set := 0
	for _, s := range []string{step.Findout, step.Raise, step.Execute} {
		if s != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("task %q has a step with %d of findout/raise/execute set", task, set)
	}
	if step.Execute != "" {
		if _, ok := r.actions[step.Execute]; !ok {
			return fmt.Errorf("task %q executes undeclared action %q", task, step.Execute)
		}
	}
	return nil
}

// DefaultTask returns the task a conversation starts with.
func (r *Registry) DefaultTask() string { return r.defaultTask }

// MatchTask finds the task whose trigger keywords occur in the utterance.
func (r *Registry) MatchTask(utterance string) (string, bool) {
	lower := strings.ToLower(utterance)
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, trigger := range r.tasks[name].Triggers {
			if strings.Contains(lower, strings.ToLower(trigger)) {
				return name, true
			}
		}
	}
	return "", false
}

// PlanFor instantiates a fresh plan tree for the task.
func (r *Registry) PlanFor(task string) (*types.Plan, error) {
	spec, ok := r.tasks[task]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", task)
	}
	var subplans []*types.Plan
	for _, step := range spec.Steps {
		switch {
		case step.Findout != "":
			subplans = append(subplans, types.Findout(r.QuestionFor(step.Findout)))
		case step.Raise != "":
			subplans = append(subplans, types.Raise(r.QuestionFor(step.Raise)))
		case step.Execute != "":
			subplans = append(subplans, types.Exec(r.NewAction(step.Execute)))
		}
	}
	return types.Sequence(subplans...), nil
}

// QuestionFor builds the wh-question asking about a predicate, carrying its
// sort as a constraint when one is declared.
func (r *Registry) QuestionFor(predicate string) types.WhQuestion {
	q := types.WhAbout(predicate)
	if spec, ok := r.questions[predicate]; ok && spec.Sort != "" {
		q.Constraints = map[string]string{"sort": spec.Sort}
	}
	return q
}

// NewAction instantiates a declared action with empty parameters; the
// action rules fill parameters from commitments when the action is queued.
func (r *Registry) NewAction(name string) *types.Action {
	spec := r.actions[name]
	a := types.NewAction(spec.Type, name, nil)
	a.Preconditions = append([]string(nil), spec.Preconditions...)
	return a
}

// ParamsFrom returns the committed predicates that parameterize an action.
func (r *Registry) ParamsFrom(actionName string) []string {
	return r.actions[actionName].ParamsFrom
}

// Critical reports whether the action requires explicit confirmation,
// either by per-action flag or by its type.
func (r *Registry) Critical(a *types.Action) bool {
	if a == nil {
		return false
	}
	if spec, ok := r.actions[a.Name]; ok && spec.Critical {
		return true
	}
	return r.criticalTypes[a.Type]
}

// Postconditions instantiates the action's declared postconditions with its
// parameters. Also consulted off the execution path for rollback
// eligibility.
func (r *Registry) Postconditions(a *types.Action) []types.Proposition {
	if a == nil {
		return nil
	}
	spec, ok := r.actions[a.Name]
	if !ok {
		return nil
	}
	out := make([]types.Proposition, 0, len(spec.Postconditions))
	for _, pred := range spec.Postconditions {
		out = append(out, types.PropArgs(pred, cloneParams(a.Params)))
	}
	return out
}

func cloneParams(params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}
	return out
}

// Prompt returns the surface form asking about a predicate, or "".
func (r *Registry) Prompt(predicate string) string {
	return r.questions[predicate].Prompt
}

// Sort returns the declared value sort of a question predicate, or "".
func (r *Registry) Sort(predicate string) string {
	return r.questions[predicate].Sort
}

// Prerequisites returns the predicates that must be committed before the
// question about this predicate may be raised.
func (r *Registry) Prerequisites(predicate string) []string {
	return r.questions[predicate].Requires
}

// Dependents returns every question predicate that transitively requires
// the given predicate. Retraction cascades traverse this graph.
func (r *Registry) Dependents(predicate string) []string {
	var out []string
	seen := map[string]bool{predicate: true}
	queue := []string{predicate}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range r.dependents[cur] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			out = append(out, dep)
			queue = append(queue, dep)
		}
	}
	return out
}

// QuestionPredicates returns every declared question predicate, sorted.
func (r *Registry) QuestionPredicates() []string {
	out := make([]string, 0, len(r.questions))
	for pred := range r.questions {
		out = append(out, pred)
	}
	sort.Strings(out)
	return out
}

// TaskPredicates returns the predicates a task cancellation should clear:
// every question predicate plus every declared postcondition predicate.
func (r *Registry) TaskPredicates() []string {
	out := r.QuestionPredicates()
	seen := make(map[string]bool, len(out))
	for _, p := range out {
		seen[p] = true
	}
	for _, spec := range r.actions {
		for _, pred := range spec.Postconditions {
			if !seen[pred] {
				seen[pred] = true
				out = append(out, pred)
			}
		}
	}
	return out
}

// Resolves implements the domain answerhood relation: does the answer
// content address the question?
func (r *Registry) Resolves(a types.Answer, q types.Question) bool {
	if q == nil {
		return false
	}
	if a.About != nil {
		return a.About.Equal(q)
	}
	switch qq := q.(type) {
	case types.WhQuestion:
		return a.Prop.Predicate == qq.Predicate
	case types.YNQuestion:
		if a.Prop.Predicate == "yes" || a.Prop.Predicate == "no" {
			return true
		}
		return a.Prop.SamePredicate(qq.Prop)
	case types.AltQuestion:
		for _, alt := range qq.Alternatives {
			if a.Prop.SamePredicate(alt) && a.Prop.Value() == alt.Value() {
				return true
			}
		}
		return false
	}
	return false
}

// Validate checks the answer's value against the question sort in the
// knowledge base. Questions without a declared sort accept anything.
func (r *Registry) Validate(a types.Answer, q types.Question) bool {
	wh, ok := q.(types.WhQuestion)
	if !ok {
		return true
	}
	sortName := r.Sort(wh.Predicate)
	if sortName == "" {
		return true
	}
	value := a.Prop.Value()
	if value == "" {
		return false
	}
	return r.kb.HasSort(value, sortName)
}

// ClarificationFor builds the alternative question offered when an answer
// fails validation: the valid sort members become explicit choices.
func (r *Registry) ClarificationFor(q types.Question) (types.AltQuestion, bool) {
	wh, ok := q.(types.WhQuestion)
	if !ok {
		return types.AltQuestion{}, false
	}
	sortName := r.Sort(wh.Predicate)
	if sortName == "" {
		return types.AltQuestion{}, false
	}
	values := r.kb.Values(sortName)
	if len(values) == 0 {
		return types.AltQuestion{}, false
	}
	alts := make([]types.Proposition, 0, len(values))
	for _, v := range values {
		alts = append(alts, types.Prop(wh.Predicate, v))
	}
	return types.AltQuestion{Variable: wh.Predicate, Alternatives: alts}, true
}

// Alternatives returns the negotiable candidates for a predicate, best
// rank first.
func (r *Registry) Alternatives(predicate string) []types.Proposition {
	alts := append([]Alternative(nil), r.alternatives[predicate]...)
	sort.SliceStable(alts, func(i, j int) bool { return alts[i].Rank > alts[j].Rank })
	out := make([]types.Proposition, 0, len(alts))
	for _, a := range alts {
		out = append(out, types.Prop(predicate, a.Value))
	}
	return out
}

// Dominates implements the domain partial order over proposals: a strictly
// higher declared rank on the same predicate. Unranked values are
// incomparable.
func (r *Registry) Dominates(a, b types.Proposition) bool {
	if !a.SamePredicate(b) {
		return false
	}
	ranks, ok := r.ranks[a.Predicate]
	if !ok {
		return false
	}
	ra, okA := ranks[a.Value()]
	rb, okB := ranks[b.Value()]
	return okA && okB && ra > rb
}

// KB exposes the knowledge base for perception-side value spotting.
func (r *Registry) KB() *Knowledge { return r.kb }
