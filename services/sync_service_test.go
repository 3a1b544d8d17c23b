package services

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQueue(t *testing.T, q *memQueue, ids ...string) {
	t.Helper()
	for i, id := range ids {
		require.NoError(t, q.Enqueue(context.Background(), models.Alert{
			ID:        id,
			Address:   LocationUnavailable,
			CreatedAt: time.Date(2024, 3, 1, 10, i, 0, 0, time.UTC),
		}))
	}
}

func TestSyncDeliversQueuedAlert(t *testing.T) {
	queue := &memQueue{}
	seedQueue(t, queue, "offline_1")
	submitter := &fakeSubmitter{}
	notifier := &recordingNotifier{}

	sc := NewSyncCoordinator(queue, submitter, notifier, 3)
	report, err := sc.SyncNow(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Coalesced)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, []string{"offline_1"}, report.Sent)
	assert.Empty(t, queue.All())
	assert.True(t, notifier.Has("All offline alerts synced successfully", models.SeveritySuccess))
	assert.False(t, sc.IsRunning())
	require.NotNil(t, sc.LastReport())
}

func TestSyncRetriesThenFailsPermanently(t *testing.T) {
	queue := &memQueue{}
	seedQueue(t, queue, "offline_1")
	submitter := &fakeSubmitter{submitFn: failingSubmit}
	notifier := &recordingNotifier{}
	sc := NewSyncCoordinator(queue, submitter, notifier, 3)
	ctx := context.Background()

	for attempt := 1; attempt <= 2; attempt++ {
		report, err := sc.SyncNow(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"offline_1"}, report.Retried)

		queued := queue.All()
		require.Len(t, queued, 1)
		assert.Equal(t, attempt, queued[0].RetryCount)
		assert.Equal(t, models.AlertStatusPending, queued[0].Status)
	}

	report, err := sc.SyncNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"offline_1"}, report.FailedPermanently)
	assert.Empty(t, queue.All())

	failed := sc.FailedAlerts()
	require.Len(t, failed, 1)
	assert.Equal(t, models.AlertStatusFailedPermanently, failed[0].Status)
	assert.Equal(t, 3, failed[0].RetryCount)
	assert.Len(t, submitter.Submitted(), 3)

	var errors int
	for _, n := range notifier.Items() {
		if n.Severity == models.SeverityError {
			errors++
		}
	}
	assert.Equal(t, 1, errors)
	assert.False(t, notifier.Has("All offline alerts synced successfully", models.SeveritySuccess))
}

func TestSyncPreservesOrderAndIsolatesFailures(t *testing.T) {
	queue := &memQueue{}
	seedQueue(t, queue, "offline_1", "offline_2", "offline_3")
	submitter := &fakeSubmitter{submitFn: func(alert models.Alert) (string, error) {
		if alert.ID == "offline_2" {
			return "", utils.NewServerRejectedError(500, "boom")
		}
		return "srv-" + alert.ID, nil
	}}

	sc := NewSyncCoordinator(queue, submitter, &recordingNotifier{}, 3)
	report, err := sc.SyncNow(context.Background())
	require.NoError(t, err)

	var order []string
	for _, a := range submitter.Submitted() {
		order = append(order, a.ID)
	}
	assert.Equal(t, []string{"offline_1", "offline_2", "offline_3"}, order)
	assert.Equal(t, []string{"offline_1", "offline_3"}, report.Sent)
	assert.Equal(t, []string{"offline_2"}, report.Retried)

	queued := queue.All()
	require.Len(t, queued, 1)
	assert.Equal(t, "offline_2", queued[0].ID)
	assert.Equal(t, 1, queued[0].RetryCount)
}

func TestSyncEmptyQueue(t *testing.T) {
	notifier := &recordingNotifier{}
	sc := NewSyncCoordinator(&memQueue{}, &fakeSubmitter{}, notifier, 0)

	report, err := sc.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, notifier.Items())
}

func TestSyncCoalescesConcurrentCalls(t *testing.T) {
	queue := &memQueue{}
	seedQueue(t, queue, "offline_1")
	release := make(chan struct{})
	submitter := &fakeSubmitter{release: release}
	sc := NewSyncCoordinator(queue, submitter, &recordingNotifier{}, 3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = sc.SyncNow(context.Background())
	}()

	require.Eventually(t, sc.IsRunning, time.Second, 5*time.Millisecond)

	report, err := sc.SyncNow(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Coalesced)

	close(release)
	wg.Wait()

	assert.Len(t, submitter.Submitted(), 1)
	assert.Empty(t, queue.All())
}

func TestSyncStopsWhenContextCancelled(t *testing.T) {
	queue := &memQueue{}
	seedQueue(t, queue, "offline_1", "offline_2")

	ctx, cancel := context.WithCancel(context.Background())
	submitter := &fakeSubmitter{submitFn: func(alert models.Alert) (string, error) {
		cancel()
		return fmt.Sprintf("srv-%s", alert.ID), nil
	}}

	sc := NewSyncCoordinator(queue, submitter, &recordingNotifier{}, 3)
	report, err := sc.SyncNow(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"offline_1"}, report.Sent)

	queued := queue.All()
	require.Len(t, queued, 1)
	assert.Equal(t, "offline_2", queued[0].ID)
}
