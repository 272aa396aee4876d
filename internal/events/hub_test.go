package events_test

import (
	"testing"
	"time"

	"teamsync/internal/events"
	"teamsync/internal/model"
	"teamsync/internal/progress"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFor(projectID uuid.UUID, completed, total int) events.Snapshot {
	tasks := make([]events.TaskState, total)
	modelTasks := make([]model.Task, total)
	for i := range tasks {
		tasks[i] = events.TaskState{ID: uuid.NewString(), ProjectID: projectID.String(), Completed: i < completed}
		modelTasks[i] = model.Task{Completed: i < completed}
	}
	return events.Snapshot{
		Project:  events.ProjectState{ID: projectID.String(), Status: model.StatusInProgress},
		Tasks:    tasks,
		Progress: progress.Compute(modelTasks),
	}
}

func TestHub_DeliversToSubscriber(t *testing.T) {
	hub := events.NewHub()
	projectID := uuid.New()

	ch, cancel := hub.Subscribe(projectID)
	defer cancel()

	hub.Publish(projectID, snapshotFor(projectID, 1, 2))

	select {
	case snap := <-ch:
		assert.Equal(t, projectID.String(), snap.Project.ID)
		assert.Equal(t, 50.0, snap.Progress.PercentComplete)
	case <-time.After(time.Second):
		t.Fatal("expected a snapshot delivery")
	}
}

func TestHub_ScopedToProject(t *testing.T) {
	hub := events.NewHub()
	watched := uuid.New()
	other := uuid.New()

	ch, cancel := hub.Subscribe(watched)
	defer cancel()

	hub.Publish(other, snapshotFor(other, 0, 1))

	select {
	case <-ch:
		t.Fatal("snapshot for an unrelated project must not be delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := events.NewHub()
	projectID := uuid.New()

	ch, cancel := hub.Subscribe(projectID)
	require.Equal(t, 1, hub.SubscriberCount(projectID))

	cancel()
	assert.Equal(t, 0, hub.SubscriberCount(projectID))

	// Channel is closed after cancel; publishing afterwards is a no-op.
	hub.Publish(projectID, snapshotFor(projectID, 0, 1))
	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()
}

func TestHub_SlowSubscriberDoesNotBlockPublisher(t *testing.T) {
	hub := events.NewHub()
	projectID := uuid.New()

	_, cancel := hub.Subscribe(projectID)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More publishes than the subscriber buffer holds.
		for i := 0; i < 100; i++ {
			hub.Publish(projectID, snapshotFor(projectID, i%3, 3))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on a slow subscriber")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := events.NewHub()
	projectID := uuid.New()

	ch1, cancel1 := hub.Subscribe(projectID)
	ch2, cancel2 := hub.Subscribe(projectID)
	defer cancel1()
	defer cancel2()

	hub.Publish(projectID, snapshotFor(projectID, 2, 2))

	for _, ch := range []<-chan events.Snapshot{ch1, ch2} {
		select {
		case snap := <-ch:
			assert.True(t, snap.Progress.AllCompleted())
		case <-time.After(time.Second):
			t.Fatal("each subscriber should receive the snapshot")
		}
	}
}
