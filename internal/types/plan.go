package types

// PlanType classifies a plan node.
type PlanType string

const (
	// PlanSequence is an interior node whose subplans are consumed
	// depth-first, left to right.
	PlanSequence PlanType = "sequence"

	// PlanFindout is a leaf that obliges the system to find out the
	// answer to its question.
	PlanFindout PlanType = "findout"

	// PlanRaise is a leaf that raises its question without requiring an
	// answer before moving on.
	PlanRaise PlanType = "raise"

	// PlanExec is a leaf that queues its action for execution.
	PlanExec PlanType = "exec"
)

// PlanStatus is the lifecycle state of a plan node.
type PlanStatus string

const (
	PlanActive    PlanStatus = "active"
	PlanCompleted PlanStatus = "completed"
)

// Plan is an ordered task tree. Findout/raise leaves carry a Question, exec
// leaves carry an Action. Interior sequence nodes complete when all of
// their subplans have completed.
type Plan struct {
	Type     PlanType
	Question Question
	Action   *Action
	Status   PlanStatus
	Subplans []*Plan
}

// Findout builds an active findout leaf.
func Findout(q Question) *Plan {
	return &Plan{Type: PlanFindout, Question: q, Status: PlanActive}
}

// Sequence builds an active interior node over the given subplans.
func Sequence(subplans ...*Plan) *Plan {
	return &Plan{Type: PlanSequence, Status: PlanActive, Subplans: subplans}
}

// Raise builds an active raise leaf.
func Raise(q Question) *Plan {
	return &Plan{Type: PlanRaise, Question: q, Status: PlanActive}
}

// Exec builds an active exec leaf.
func Exec(a *Action) *Plan {
	return &Plan{Type: PlanExec, Action: a, Status: PlanActive}
}

// Clone returns a deep copy of the plan tree.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{Type: p.Type, Question: p.Question, Status: p.Status}
	if p.Action != nil {
		out.Action = p.Action.Clone()
	}
	for _, sub := range p.Subplans {
		out.Subplans = append(out.Subplans, sub.Clone())
	}
	return out
}

// NextFindout returns the head active findout leaf in depth-first,
// left-to-right order, or nil when none remains.
func (p *Plan) NextFindout() *Plan {
	if p == nil || p.Status == PlanCompleted {
		return nil
	}
	if len(p.Subplans) == 0 {
		if p.Type == PlanFindout {
			return p
		}
		return nil
	}
	for _, sub := range p.Subplans {
		if leaf := sub.NextFindout(); leaf != nil {
			return leaf
		}
	}
	return nil
}

// NextExec returns the head active exec leaf, honoring declaration order.
// An exec leaf only becomes the head once every findout leaf declared
// before it has completed.
func (p *Plan) NextExec() *Plan {
	leaf := p.nextActiveLeaf()
	if leaf != nil && leaf.Type == PlanExec {
		return leaf
	}
	return nil
}

// NextActiveLeaf returns the head active leaf of any type, in declaration
// order.
func (p *Plan) NextActiveLeaf() *Plan {
	return p.nextActiveLeaf()
}

func (p *Plan) nextActiveLeaf() *Plan {
	if p == nil || p.Status == PlanCompleted {
		return nil
	}
	if len(p.Subplans) == 0 {
		return p
	}
	for _, sub := range p.Subplans {
		if leaf := sub.nextActiveLeaf(); leaf != nil {
			return leaf
		}
	}
	return nil
}

// CompleteQuestion marks the first active leaf whose question structurally
// equals q as completed, then collapses completed interior nodes upward.
// It reports whether any node was marked.
func (p *Plan) CompleteQuestion(q Question) bool {
	if p == nil || p.Status == PlanCompleted || q == nil {
		return false
	}
	if len(p.Subplans) == 0 {
		if p.Question != nil && p.Question.Equal(q) {
			p.Status = PlanCompleted
			return true
		}
		return false
	}
	marked := false
	for _, sub := range p.Subplans {
		if sub.CompleteQuestion(q) {
			marked = true
			break
		}
	}
	if marked {
		p.collapse()
	}
	return marked
}

// CompleteAction marks the active exec leaf carrying the action as
// completed.
func (p *Plan) CompleteAction(actionID string) bool {
	if p == nil || p.Status == PlanCompleted {
		return false
	}
	if len(p.Subplans) == 0 {
		if p.Action != nil && p.Action.ID == actionID {
			p.Status = PlanCompleted
			return true
		}
		return false
	}
	marked := false
	for _, sub := range p.Subplans {
		if sub.CompleteAction(actionID) {
			marked = true
			break
		}
	}
	if marked {
		p.collapse()
	}
	return marked
}

// ReactivateQuestion re-opens the completed leaf carrying q and its
// ancestors, so a corrected answer makes the question askable again.
func (p *Plan) ReactivateQuestion(q Question) bool {
	if p == nil || q == nil {
		return false
	}
	if len(p.Subplans) == 0 {
		if p.Question != nil && p.Question.Equal(q) && p.Status == PlanCompleted {
			p.Status = PlanActive
			return true
		}
		return false
	}
	for _, sub := range p.Subplans {
		if sub.ReactivateQuestion(q) {
			p.Status = PlanActive
			return true
		}
	}
	return false
}

// collapse marks an interior node completed once all subplans are.
func (p *Plan) collapse() {
	if len(p.Subplans) == 0 {
		return
	}
	for _, sub := range p.Subplans {
		if sub.Status != PlanCompleted {
			return
		}
	}
	p.Status = PlanCompleted
}

// Completed reports whether the whole tree has completed.
func (p *Plan) Completed() bool {
	if p == nil {
		return true
	}
	if len(p.Subplans) == 0 {
		return p.Status == PlanCompleted
	}
	for _, sub := range p.Subplans {
		if !sub.Completed() {
			return false
		}
	}
	return true
}

// Leaves counts the leaf nodes of the tree, completed or not. The engine
// sizes its selection-cycle cap from this.
func (p *Plan) Leaves() int {
	if p == nil {
		return 0
	}
	if len(p.Subplans) == 0 {
		return 1
	}
	n := 0
	for _, sub := range p.Subplans {
		n += sub.Leaves()
	}
	return n
}
