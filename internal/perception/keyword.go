package perception

import (
	"context"
	"strings"

	"converse/internal/domain"
	"converse/internal/logging"
	"converse/internal/state"
	"converse/internal/types"
)

// KeywordInterpreter is a rule-of-thumb NLU over the domain vocabulary:
// control keywords, polar answers, task triggers and sort-member spotting.
// Confidence reflects how the content was recognized, so the grounding
// policy downgrades hedged or guessed input on its own.
type KeywordInterpreter struct{}

// NewKeywordInterpreter returns the default utterance interpreter.
func NewKeywordInterpreter() *KeywordInterpreter {
	return &KeywordInterpreter{}
}

const (
	confControl = 1.0
	confPolar   = 0.95
	confKnown   = 0.9
	confGuess   = 0.75
	hedgeFactor = 0.6
)

var (
	greetWords  = []string{"hello", "hi", "hey", "good morning", "good afternoon"}
	quitWords   = []string{"bye", "goodbye", "quit", "exit", "that's all"}
	cancelWords = []string{"cancel", "never mind", "nevermind", "forget it", "start over"}
	yesWords    = []string{"yes", "yeah", "yep", "sure", "ok", "okay", "confirm", "go ahead", "do it"}
	noWords     = []string{"no", "nope", "nah", "don't", "do not"}
	hedgeWords  = []string{"maybe", "i think", "perhaps", "i guess", "possibly"}
)

// Interpret produces the move sequence for one utterance. A single turn
// can carry several answers ("to paris, tomorrow, economy"); each becomes
// its own move and integrates in order.
func (ki *KeywordInterpreter) Interpret(ctx context.Context, reg *domain.Registry, utterance string, is *state.InformationState) ([]*types.Move, error) {
	_ = ctx
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return nil, nil
	}

	hedged := false
	for _, h := range hedgeWords {
		if strings.Contains(text, h) {
			hedged = true
			text = strings.TrimSpace(strings.Replace(text, h, "", 1))
			break
		}
	}
	scale := 1.0
	if hedged {
		scale = hedgeFactor
	}

	if m := controlMove(text); m != nil {
		return []*types.Move{m}, nil
	}

	var moves []*types.Move

	// A leading negation reads as rejection/decline; the remainder may
	// carry a replacement value ("no, paris").
	rest := text
	if neg, tail := splitNegation(text); neg {
		moves = append(moves, polarMove(types.No(), scale))
		rest = tail
	} else if matchesAny(text, yesWords) {
		moves = append(moves, polarMove(types.Yes(), scale))
		rest = trimLeadingKeyword(text, yesWords)
	}

	// A task trigger starts or restarts a plan; only when none is active.
	if is.Plan == nil {
		if task, ok := reg.MatchTask(text); ok {
			moves = append(moves, move(types.MoveRequest, types.Text(task), confControl*scale))
			rest = ""
		}
	}

	if rest != "" {
		moves = append(moves, ki.spotAnswers(reg, rest, is, scale)...)
	}

	if len(moves) == 0 {
		logging.Perception("no parse for %q", utterance)
		return nil, nil
	}
	return moves, nil
}

// controlMove recognizes utterances that are purely dialogue control.
func controlMove(text string) *types.Move {
	switch {
	case matchesWhole(text, greetWords):
		return move(types.MoveGreet, types.Text(text), confControl)
	case matchesWhole(text, quitWords):
		return move(types.MoveQuit, types.Text(text), confControl)
	case matchesAny(text, cancelWords):
		return move(types.MoveCancel, types.Text(text), confControl)
	}
	return nil
}

// spotAnswers scans the utterance for known sort members and, failing
// that, treats a short remainder as a guessed answer to the focused
// question.
func (ki *KeywordInterpreter) spotAnswers(reg *domain.Registry, text string, is *state.InformationState, scale float64) []*types.Move {
	var moves []*types.Move
	kb := reg.KB()
	claimed := map[string]bool{}
	for _, pred := range reg.QuestionPredicates() {
		sortName := reg.Sort(pred)
		if sortName == "" {
			continue
		}
		for _, value := range kb.Values(sortName) {
			if claimed[value] || !containsWord(text, value) {
				continue
			}
			claimed[value] = true
			a := types.Answer{Prop: types.Prop(pred, value)}
			if top := is.TopQUD(); top != nil && reg.Resolves(a, top) {
				a.About = top
			}
			moves = append(moves, move(types.MoveAnswer, a, confKnown*scale))
		}
	}
	if len(moves) > 0 {
		return moves
	}

	// Unknown short remainder aimed at the focused wh-question: emit it
	// anyway and let validation decide whether to clarify.
	if wh, ok := is.TopQUD().(types.WhQuestion); ok && wh.Predicate != "confirm_action" {
		words := strings.Fields(text)
		if len(words) > 0 && len(words) <= 3 {
			value := strings.Join(words, " ")
			a := types.AnswerTo(is.TopQUD(), types.Prop(wh.Predicate, value))
			moves = append(moves, move(types.MoveAnswer, a, confGuess*scale))
		}
	}
	return moves
}

func polarMove(p types.Proposition, scale float64) *types.Move {
	return move(types.MoveAnswer, types.Answer{Prop: p}, confPolar*scale)
}

func splitNegation(text string) (bool, string) {
	for _, w := range noWords {
		if text == w {
			return true, ""
		}
		for _, sep := range []string{", ", " "} {
			if strings.HasPrefix(text, w+sep) {
				return true, strings.TrimSpace(text[len(w)+len(sep):])
			}
		}
		if strings.HasPrefix(text, w+",") {
			return true, strings.TrimSpace(text[len(w)+1:])
		}
	}
	return false, text
}

func trimLeadingKeyword(text string, words []string) string {
	for _, w := range words {
		if text == w {
			return ""
		}
		for _, sep := range []string{", ", " ", ","} {
			if strings.HasPrefix(text, w+sep) {
				return strings.TrimSpace(text[len(w)+len(sep):])
			}
		}
	}
	return ""
}

func matchesWhole(text string, words []string) bool {
	for _, w := range words {
		if text == w {
			return true
		}
	}
	return false
}

func matchesAny(text string, words []string) bool {
	for _, w := range words {
		if text == w || strings.HasPrefix(text, w+" ") || strings.HasPrefix(text, w+",") {
			return true
		}
	}
	return false
}

func containsWord(text, value string) bool {
	idx := strings.Index(text, value)
	if idx < 0 {
		return false
	}
	before := idx == 0 || text[idx-1] == ' ' || text[idx-1] == ','
	end := idx + len(value)
	after := end == len(text) || text[end] == ' ' || text[end] == ',' || text[end] == '.'
	return before && after
}
