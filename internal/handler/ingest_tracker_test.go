package handler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codechat-ai/codechat/internal/domain"
)

func TestIngestTracker_Lifecycle(t *testing.T) {
	tracker := NewIngestTracker()
	tracker.Create("job1", "sess1", "https://example.com/repo.git")

	job, ok := tracker.Get("job1")
	require.True(t, ok)
	assert.Equal(t, "running", job.Status)
	assert.Equal(t, "fetching", job.Stage)

	tracker.Progress("job1", "embedding", 10, 40)
	job, _ = tracker.Get("job1")
	assert.Equal(t, "embedding", job.Stage)
	assert.Equal(t, 10, job.Done)
	assert.Equal(t, 40, job.Total)

	tracker.Complete("job1", &domain.RepositoryInfo{Name: "repo"})
	job, _ = tracker.Get("job1")
	assert.Equal(t, "complete", job.Status)
	require.NotNil(t, job.Repository)
	assert.Equal(t, "repo", job.Repository.Name)
	assert.False(t, job.CompletedAt.IsZero())
}

func TestIngestTracker_Fail(t *testing.T) {
	tracker := NewIngestTracker()
	tracker.Create("job1", "sess1", "url")
	tracker.Fail("job1", errors.New("clone failed"))

	job, ok := tracker.Get("job1")
	require.True(t, ok)
	assert.Equal(t, "error", job.Status)
	assert.Equal(t, "clone failed", job.Error)
}

func TestIngestTracker_UnknownJob(t *testing.T) {
	tracker := NewIngestTracker()
	_, ok := tracker.Get("missing")
	assert.False(t, ok)

	// Updating a missing job is a no-op, not a panic.
	tracker.Progress("missing", "fetching", 0, 0)
}

func TestIngestTracker_Subscribers(t *testing.T) {
	tracker := NewIngestTracker()
	tracker.Create("job1", "sess1", "url")

	ch := tracker.Subscribe("job1")
	defer tracker.Unsubscribe("job1", ch)

	tracker.Progress("job1", "indexing", 5, 5)

	select {
	case update := <-ch:
		assert.Equal(t, "indexing", update.Stage)
		assert.Equal(t, 5, update.Done)
	case <-time.After(time.Second):
		t.Fatal("no update received")
	}
}

func TestIngestTracker_TerminalEventSurvivesFullBuffer(t *testing.T) {
	tracker := NewIngestTracker()
	tracker.Create("job1", "sess1", "url")

	ch := tracker.Subscribe("job1")
	defer tracker.Unsubscribe("job1", ch)

	// Overflow the subscriber buffer without draining it.
	for i := 0; i < 2*cap(ch); i++ {
		tracker.Progress("job1", "embedding", i, 100)
	}
	tracker.Complete("job1", &domain.RepositoryInfo{Name: "repo"})

	var last IngestStatus
	for {
		select {
		case update := <-ch:
			last = update
			continue
		default:
		}
		break
	}
	assert.Equal(t, "complete", last.Status)
}
