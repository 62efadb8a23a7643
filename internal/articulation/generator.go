// Package articulation renders system moves as surface text. The template
// generator covers every move type the selection rules can emit; domain
// prompts from the registry take precedence over the generic templates.
package articulation

import (
	"fmt"
	"strings"

	"converse/internal/domain"
	"converse/internal/logging"
	"converse/internal/types"
)

// Generator realizes one system move. The registry is passed per call so
// prompt changes from a domain reload apply immediately.
type Generator interface {
	Realize(reg *domain.Registry, m *types.Move) (string, error)
}

// TemplateGenerator is the built-in surface realizer.
type TemplateGenerator struct{}

// NewTemplateGenerator returns the default realizer.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Realize maps a move to text. Moves with no surface form (positive
// acceptance for content the system is about to answer anyway) return "".
func (tg *TemplateGenerator) Realize(reg *domain.Registry, m *types.Move) (string, error) {
	switch m.Type {
	case types.MoveGreet, types.MoveQuit, types.MoveReport:
		if t, ok := m.Content.(types.Text); ok {
			return string(t), nil
		}
		return "", fmt.Errorf("%s move without text content", m.Type)

	case types.MoveAsk:
		q, ok := m.QuestionContent()
		if !ok {
			return "", fmt.Errorf("ask move without question content")
		}
		return tg.renderQuestion(reg, q), nil

	case types.MoveAnswer:
		a, ok := m.AnswerContent()
		if !ok {
			return "", fmt.Errorf("answer move without answer content")
		}
		return fmt.Sprintf("The %s is %s.", spaced(a.Prop.Predicate), a.Prop.Value()), nil

	case types.MoveAssert:
		if p, ok := m.PropContent(); ok {
			return fmt.Sprintf("For the record: %s %s.", spaced(p.Predicate), p.Value()), nil
		}
		if t, ok := m.Content.(types.Text); ok {
			return string(t), nil
		}
		return "", fmt.Errorf("assert move without content")

	case types.MovePropose:
		p, ok := m.PropContent()
		if !ok {
			return "", fmt.Errorf("propose move without proposition content")
		}
		return fmt.Sprintf("How about %s for the %s?", p.Value(), spaced(p.Predicate)), nil

	case types.MoveICM:
		icm, ok := m.ICMContent()
		if !ok {
			return "", fmt.Errorf("icm move without feedback content")
		}
		return tg.renderICM(icm), nil

	default:
		logging.Articulation("no template for move type %s, dropping", m.Type)
		return "", nil
	}
}

func (tg *TemplateGenerator) renderQuestion(reg *domain.Registry, q types.Question) string {
	switch qq := q.(type) {
	case types.WhQuestion:
		if prompt := reg.Prompt(qq.Predicate); prompt != "" {
			return prompt
		}
		return fmt.Sprintf("What %s would you like?", spaced(qq.Predicate))

	case types.YNQuestion:
		if qq.Prop.Predicate == "confirm_action" {
			return fmt.Sprintf("Should I %s? (yes/no)", spaced(qq.Prop.Args["action"]))
		}
		return fmt.Sprintf("Is the %s %s? (yes/no)", spaced(qq.Prop.Predicate), qq.Prop.Value())

	case types.AltQuestion:
		values := make([]string, 0, len(qq.Alternatives))
		for _, alt := range qq.Alternatives {
			values = append(values, alt.Value())
		}
		return fmt.Sprintf("I don't have that %s. Your options are: %s.",
			spaced(qq.Variable), strings.Join(values, ", "))
	}
	return "Could you tell me more?"
}

func (tg *TemplateGenerator) renderICM(icm types.ICM) string {
	switch {
	case icm.Level == types.LevelPerception && icm.Polarity == types.PolarityNegative:
		return "Sorry, I didn't catch that. Could you say it again?"
	case icm.Level == types.LevelUnderstanding && icm.Polarity == types.PolarityInterrogative:
		if icm.Prop != nil {
			return fmt.Sprintf("Did you mean %s %s? (yes/no)", spaced(icm.Prop.Predicate), icm.Prop.Value())
		}
		return "Did I understand you correctly? (yes/no)"
	case icm.Level == types.LevelUnderstanding && icm.Polarity == types.PolarityNegative:
		return "Sorry, my mistake."
	case icm.Level == types.LevelAcceptance && icm.Polarity == types.PolarityPositive:
		return "Okay."
	case icm.Polarity == types.PolarityPositive:
		return "Got it."
	}
	return "Hmm."
}

func spaced(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}
