// ABOUTME: Tests for the in-memory job tracker.
// ABOUTME: Covers terminal-state transitions and retention purging.

package job

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTracker() *Tracker {
	return NewTracker(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTrackerAddAndGet(t *testing.T) {
	tr := newTestTracker()

	tr.Add(&Job{ID: "j1", ClientID: "c1", Status: StatusQueued, CreatedAt: time.Now().UTC()})

	got, ok := tr.Get("j1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, got.Status)
	assert.Equal(t, "c1", got.ClientID)

	_, ok = tr.Get("missing")
	assert.False(t, ok)
}

func TestTrackerGetReturnsSnapshot(t *testing.T) {
	tr := newTestTracker()
	tr.Add(&Job{ID: "j1", Status: StatusQueued})

	snap, _ := tr.Get("j1")
	snap.Status = StatusError

	fresh, _ := tr.Get("j1")
	assert.Equal(t, StatusQueued, fresh.Status)
}

func TestTrackerFinishOnce(t *testing.T) {
	tr := newTestTracker()
	tr.Add(&Job{ID: "j1", Status: StatusProcessing})

	first, changed := tr.Finish("j1", StatusCompleted, "")
	require.True(t, changed)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.EndedAt)

	// A second terminal transition must not overwrite the first.
	second, changed := tr.Finish("j1", StatusError, "late failure")
	assert.False(t, changed)
	assert.Equal(t, StatusCompleted, second.Status)
	assert.Empty(t, second.Err)

	_, changed = tr.Finish("missing", StatusCompleted, "")
	assert.False(t, changed)
}

func TestTrackerSetProcessingSkipsTerminal(t *testing.T) {
	tr := newTestTracker()
	tr.Add(&Job{ID: "j1", Status: StatusQueued})

	tr.Finish("j1", StatusCompleted, "")
	tr.SetProcessing("j1")

	got, _ := tr.Get("j1")
	assert.Equal(t, StatusCompleted, got.Status)
}

func TestTrackerSetThread(t *testing.T) {
	tr := newTestTracker()
	tr.Add(&Job{ID: "j1", Status: StatusProcessing})

	tr.SetThread("j1", "th_1")

	got, _ := tr.Get("j1")
	assert.Equal(t, "th_1", got.ThreadID)
}

func TestTrackerPurgeExpired(t *testing.T) {
	tr := newTestTracker()

	old := time.Now().UTC().Add(-2 * time.Hour)
	recent := time.Now().UTC()

	tr.Add(&Job{ID: "old-done", Status: StatusCompleted, EndedAt: &old})
	tr.Add(&Job{ID: "old-failed", Status: StatusError, EndedAt: &old})
	tr.Add(&Job{ID: "fresh-done", Status: StatusCompleted, EndedAt: &recent})
	tr.Add(&Job{ID: "running", Status: StatusProcessing})

	purged := tr.PurgeExpired(time.Hour)
	assert.Equal(t, 2, purged)
	assert.Equal(t, 2, tr.Len())

	_, ok := tr.Get("old-done")
	assert.False(t, ok)
	_, ok = tr.Get("old-failed")
	assert.False(t, ok)
	_, ok = tr.Get("fresh-done")
	assert.True(t, ok)

	// Running jobs are never purged, however old.
	_, ok = tr.Get("running")
	assert.True(t, ok)
}
