package articulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converse/internal/domain"
	"converse/internal/types"
)

func testRegistry(t *testing.T) *domain.Registry {
	t.Helper()
	reg, err := domain.ParseLibrary([]byte(`
name: travel
tasks:
  book_trip:
    steps:
      - findout: destination
      - execute: book_trip
questions:
  destination:
    sort: city
    prompt: "Where would you like to go?"
  departure_day:
    sort: day
sorts:
  city: [paris, london]
  day: [monday]
actions:
  book_trip:
    type: booking
`))
	require.NoError(t, err)
	return reg
}

func realize(t *testing.T, m *types.Move) string {
	t.Helper()
	text, err := NewTemplateGenerator().Realize(testRegistry(t), m)
	require.NoError(t, err)
	return text
}

func TestTextMovesRenderVerbatim(t *testing.T) {
	assert.Equal(t, "Hello! How can I help you?",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveGreet, types.Text("Hello! How can I help you?"))))
	assert.Equal(t, "Goodbye!",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveQuit, types.Text("Goodbye!"))))
	assert.Equal(t, "Done: book trip.",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveReport, types.Text("Done: book trip."))))
}

func TestAskUsesDomainPromptWhenDeclared(t *testing.T) {
	ask := types.NewMove(types.SpeakerSystem, types.MoveAsk, types.WhAbout("destination"))
	assert.Equal(t, "Where would you like to go?", realize(t, ask))

	// No prompt declared falls back to the generic template.
	ask = types.NewMove(types.SpeakerSystem, types.MoveAsk, types.WhAbout("departure_day"))
	assert.Equal(t, "What departure day would you like?", realize(t, ask))
}

func TestConfirmationQuestionRendering(t *testing.T) {
	q := types.YNQuestion{Prop: types.PropArgs("confirm_action", map[string]string{
		"action": "book_trip", "id": "a1",
	})}
	assert.Equal(t, "Should I book trip? (yes/no)",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveAsk, q)))

	plain := types.YNQuestion{Prop: types.Prop("travel_class", "business")}
	assert.Equal(t, "Is the travel class business? (yes/no)",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveAsk, plain)))
}

func TestAltQuestionListsOptions(t *testing.T) {
	q := types.AltQuestion{Variable: "destination", Alternatives: []types.Proposition{
		types.Prop("destination", "paris"),
		types.Prop("destination", "london"),
	}}
	assert.Equal(t, "I don't have that destination. Your options are: paris, london.",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveAsk, q)))
}

func TestAnswerAndProposalRendering(t *testing.T) {
	answer := types.NewMove(types.SpeakerSystem, types.MoveAnswer,
		types.AnswerTo(types.WhAbout("departure_day"), types.Prop("departure_day", "monday")))
	assert.Equal(t, "The departure day is monday.", realize(t, answer))

	propose := types.NewMove(types.SpeakerSystem, types.MovePropose, types.Prop("hotel", "grand_plaza"))
	assert.Equal(t, "How about grand_plaza for the hotel?", realize(t, propose))
}

func TestICMRendering(t *testing.T) {
	cases := []struct {
		icm  types.ICM
		want string
	}{
		{types.ICM{Level: types.LevelPerception, Polarity: types.PolarityNegative},
			"Sorry, I didn't catch that. Could you say it again?"},
		{types.ICM{Level: types.LevelUnderstanding, Polarity: types.PolarityNegative},
			"Sorry, my mistake."},
		{types.ICM{Level: types.LevelAcceptance, Polarity: types.PolarityPositive},
			"Okay."},
		{types.ICM{Level: types.LevelUnderstanding, Polarity: types.PolarityInterrogative},
			"Did I understand you correctly? (yes/no)"},
	}
	for _, tc := range cases {
		got := realize(t, types.NewMove(types.SpeakerSystem, types.MoveICM, tc.icm))
		assert.Equal(t, tc.want, got)
	}

	prop := types.Prop("destination", "paris")
	check := types.ICM{Level: types.LevelUnderstanding, Polarity: types.PolarityInterrogative, Prop: &prop}
	assert.Equal(t, "Did you mean destination paris? (yes/no)",
		realize(t, types.NewMove(types.SpeakerSystem, types.MoveICM, check)))
}

func TestMalformedMovesError(t *testing.T) {
	gen := NewTemplateGenerator()
	reg := testRegistry(t)

	_, err := gen.Realize(reg, types.NewMove(types.SpeakerSystem, types.MoveAsk, types.Text("not a question")))
	assert.Error(t, err)

	_, err = gen.Realize(reg, types.NewMove(types.SpeakerSystem, types.MoveGreet, types.Prop("x", "y")))
	assert.Error(t, err)
}

func TestUnknownMoveTypeIsSilent(t *testing.T) {
	text, err := NewTemplateGenerator().Realize(testRegistry(t),
		types.NewMove(types.SpeakerSystem, types.MoveCancel, types.Text("cancel")))
	require.NoError(t, err)
	assert.Empty(t, text)
}
