package audit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	r := NewRecorder()

	r.LogEvent(EventJobScheduled, "job j1 scheduled", map[string]any{"job_id": "j1"})
	r.LogEvent(EventJobPreemption, "job j1 preempted j2", map[string]any{"job_id": "j1"})
	r.LogEvent(EventJobScheduled, "job j3 scheduled", map[string]any{"job_id": "j3"})

	events := r.Events()
	require.Len(t, events, 3)
	assert.Equal(t, EventJobScheduled, events[0].Type)
	assert.Equal(t, "job j1 scheduled", events[0].Message)
	assert.NotEmpty(t, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())

	scheduled := r.EventsOfType(EventJobScheduled)
	require.Len(t, scheduled, 2)
	assert.Equal(t, "j1", scheduled[0].Metadata["job_id"])
	assert.Equal(t, "j3", scheduled[1].Metadata["job_id"])

	assert.Empty(t, r.EventsOfType(EventConflictDetected))
}

func TestFanout(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	f := Fanout{a, b, Nop{}}

	f.LogEvent(EventConflictDetected, "conflict", nil)

	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

func TestJournalPersistsEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.db")

	j, err := OpenJournal(path)
	require.NoError(t, err)

	j.LogEvent(EventReservationCancelled, "reservation r1 cancelled", map[string]any{"reservation_id": "r1"})
	j.LogEvent(EventConflictResolved, "conflict c1 resolved", nil)
	require.NoError(t, j.Close())

	// Reopen and read back.
	j, err = OpenJournal(path)
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Events()
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventReservationCancelled, events[0].Type)
	assert.Equal(t, "r1", events[0].Metadata["reservation_id"])
	assert.Equal(t, EventConflictResolved, events[1].Type)
}

func TestJournalEmpty(t *testing.T) {
	j, err := OpenJournal(filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Events()
	require.NoError(t, err)
	assert.Empty(t, events)
}
