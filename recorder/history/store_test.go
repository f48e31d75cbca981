package history

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esrecorder/esrecorder/recorder"
	"github.com/esrecorder/esrecorder/recorder/stats"
	"github.com/esrecorder/esrecorder/recorder/sweep"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history", "esrecorder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_ListNewestFirst(t *testing.T) {
	// GIVEN three runs saved in start order
	s := openTestStore(t)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := uuid.NewV7()
		require.NoError(t, err)
		ids = append(ids, id.String())
		require.NoError(t, s.Save(Entry{ID: id.String(), Engine: "E", Recorded: i}))
		time.Sleep(2 * time.Millisecond)
	}

	// WHEN listed
	all, err := s.List(0)
	require.NoError(t, err)
	two, err := s.List(2)
	require.NoError(t, err)

	// THEN the newest run comes first
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)
	assert.Equal(t, ids[0], all[2].ID)
	assert.Len(t, two, 2)
}

func TestStore_GetAndNotFound(t *testing.T) {
	s := openTestStore(t)
	res := &sweep.Result{
		RunID:    uuid.Must(uuid.NewV7()),
		Engine:   recorder.EngineInfo{Name: "V6", Displacement: 3.5},
		Started:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Elapsed:  90 * time.Second,
		GridSize: 30,
		Recorded: 28,
		Missed:   []sweep.Sample{{RPM: 1000, Throttle: 0}, {RPM: 1500, Throttle: 0}},
		Aborted:  true,
		Timing:   stats.Summary{Count: 28, P50Ms: 1200},
	}
	require.NoError(t, s.Save(FromResult(res)))

	got, err := s.Get(res.RunID.String())
	require.NoError(t, err)
	assert.Equal(t, "V6", got.Engine)
	assert.Equal(t, 2, got.Missed)
	assert.True(t, got.Aborted)
	assert.True(t, res.Started.Equal(got.Started))
	assert.Equal(t, int64(28), got.Timing.Count)

	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Error(t, s.Save(Entry{}))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Save(Entry{ID: "a", Engine: "I4"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "I4", entries[0].Engine)
}
