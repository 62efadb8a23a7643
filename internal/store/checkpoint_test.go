package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"converse/internal/state"
	"converse/internal/types"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleState() *state.InformationState {
	is := state.New()
	is.Dialogue = state.DialogueActive
	is.Commitments.Add(types.Prop("destination", "paris"))
	is.PushQUD(types.WhAbout("departure_day"))
	is.AppendMove(types.NewMove(types.SpeakerUser, types.MoveGreet, types.Text("hi")))
	return is
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := openStore(t)
	is := sampleState()

	id, err := s.Save("dlg-1", "after greeting", is)
	require.NoError(t, err)
	require.Positive(t, id)

	loaded, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, state.DialogueActive, loaded.Dialogue)
	assert.True(t, loaded.Commitments.Contains(types.Prop("destination", "paris")))
	require.Len(t, loaded.QUD, 1)
	assert.Equal(t, "departure_day", loaded.TopQUD().PredicateName())
	require.Len(t, loaded.Moves, 1)
	assert.Equal(t, types.MoveGreet, loaded.Moves[0].Type)
}

func TestLoadLatestPicksNewest(t *testing.T) {
	s := openStore(t)

	first := sampleState()
	_, err := s.Save("dlg-1", "first", first)
	require.NoError(t, err)

	second := sampleState()
	second.Commitments.Add(types.Prop("departure_day", "monday"))
	_, err = s.Save("dlg-1", "second", second)
	require.NoError(t, err)

	// Another dialogue must not shadow dlg-1.
	_, err = s.Save("dlg-2", "other", state.New())
	require.NoError(t, err)

	latest, err := s.LoadLatest("dlg-1")
	require.NoError(t, err)
	assert.True(t, latest.Commitments.Contains(types.Prop("departure_day", "monday")))

	_, err = s.LoadLatest("dlg-unknown")
	assert.ErrorContains(t, err, "no checkpoints")
}

func TestListAndDelete(t *testing.T) {
	s := openStore(t)

	id1, err := s.Save("dlg-1", "a", state.New())
	require.NoError(t, err)
	id2, err := s.Save("dlg-1", "b", state.New())
	require.NoError(t, err)
	_, err = s.Save("dlg-2", "c", state.New())
	require.NoError(t, err)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := s.List("dlg-1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, id2, mine[0].ID, "newest first")
	assert.Equal(t, "b", mine[0].Label)
	assert.Equal(t, id1, mine[1].ID)

	require.NoError(t, s.Delete(id1))
	mine, err = s.List("dlg-1")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = s.Load(id1)
	assert.ErrorContains(t, err, "not found")
}

func TestLoadRestoresActionQueueIdentity(t *testing.T) {
	s := openStore(t)

	is := state.New()
	a := types.NewAction("booking", "book_trip", map[string]string{"destination": "paris"})
	plan := types.Sequence(types.Exec(a))
	is.Plan = plan
	is.EnqueueAction(a)

	id, err := s.Save("dlg-1", "", is)
	require.NoError(t, err)
	loaded, err := s.Load(id)
	require.NoError(t, err)

	require.Len(t, loaded.Actions, 1)
	leaf := loaded.Plan.NextExec()
	require.NotNil(t, leaf)
	assert.Same(t, leaf.Action, loaded.Actions[0],
		"the queued action and the plan leaf stay one object across persistence")
}
