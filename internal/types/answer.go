package types

// Answer carries the propositional content of an answer move plus an
// optional reference to the question it targets. NLU binds the reference
// when it can; an unbound answer is matched against QUD and Issues by
// predicate during integration, and falls back to a free-standing assertion
// when nothing matches.
type Answer struct {
	Prop  Proposition
	About Question // nil when unbound
}

func (Answer) kind() string { return "answer" }

// AnswerTo builds an answer bound to the question it resolves.
func AnswerTo(q Question, p Proposition) Answer {
	return Answer{Prop: p, About: q}
}

// Bound reports whether NLU attached a target question.
func (a Answer) Bound() bool { return a.About != nil }

// ICMLevel is the feedback level of an interactive communication management
// move: perception, understanding or acceptance.
type ICMLevel string

const (
	LevelPerception    ICMLevel = "perception"
	LevelUnderstanding ICMLevel = "understanding"
	LevelAcceptance    ICMLevel = "acceptance"
)

// ICMPolarity is the feedback polarity.
type ICMPolarity string

const (
	PolarityPositive      ICMPolarity = "positive"
	PolarityNegative      ICMPolarity = "negative"
	PolarityInterrogative ICMPolarity = "interrogative"
)

// ICM is the content of a feedback move: level, polarity, the move it is
// about, and an optional proposition for interrogative understanding checks
// ("did you mean X?").
type ICM struct {
	Level    ICMLevel     `json:"level"`
	Polarity ICMPolarity  `json:"polarity"`
	TargetID string       `json:"target_id,omitempty"`
	Prop     *Proposition `json:"prop,omitempty"`
}

func (ICM) kind() string { return "icm" }

// GroundingEffect maps (level, polarity) to the grounding status the target
// move should take. The second return is false for pairs with no effect
// (interrogative polarity probes rather than asserts).
func (i ICM) GroundingEffect() (GroundingStatus, bool) {
	switch {
	case i.Level == LevelPerception && i.Polarity == PolarityPositive:
		return Perceived, true
	case i.Level == LevelUnderstanding && i.Polarity == PolarityPositive:
		return Understood, true
	case i.Level == LevelAcceptance && i.Polarity == PolarityPositive:
		return Grounded, true
	case i.Level == LevelPerception && i.Polarity == PolarityNegative:
		return PerceptionFailed, true
	case i.Level == LevelUnderstanding && i.Polarity == PolarityNegative:
		return UnderstandingFailed, true
	}
	return Ungrounded, false
}
