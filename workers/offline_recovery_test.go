package workers

import (
	"aaisaheb/models"
	"aaisaheb/repositories"
	"aaisaheb/services"
	"aaisaheb/utils"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// endpoint stands in for the remote SOS server; while down every submit
// fails as a transport failure.
type endpoint struct {
	down      atomic.Bool
	mutex     sync.Mutex
	delivered []string
}

func (e *endpoint) Submit(ctx context.Context, alert models.Alert) (string, error) {
	if e.down.Load() {
		return "", utils.NewTransportFailureError(errors.New("connection refused"))
	}
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.delivered = append(e.delivered, alert.ID)
	return "srv-" + alert.ID, nil
}

func (e *endpoint) Cancel(ctx context.Context, alertID, reason string) error {
	return nil
}

func (e *endpoint) Delivered() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]string(nil), e.delivered...)
}

func newRecoveryQueue(t *testing.T) *repositories.FileQueueRepository {
	t.Helper()
	queue, err := repositories.NewFileQueueRepository(filepath.Join(t.TempDir(), "offline_alerts.json"))
	require.NoError(t, err)
	return queue
}

func pendingCount(queue *repositories.FileQueueRepository) int {
	pending, err := queue.ListPending(context.Background())
	if err != nil {
		return -1
	}
	return len(pending)
}

func TestRestorationDrainsQueuedAlerts(t *testing.T) {
	ctx := context.Background()
	queue := newRecoveryQueue(t)
	server := &endpoint{}
	notifier := &recordingNotifier{}
	coordinator := services.NewSyncCoordinator(queue, server, notifier, 3)

	created := time.Date(2024, 3, 1, 22, 15, 0, 0, time.UTC)
	for _, id := range []string{"offline_1709331300000", "offline_1709331305000"} {
		require.NoError(t, queue.Enqueue(ctx, models.Alert{ID: id, CreatedAt: created}))
	}

	var online atomic.Bool
	cw := NewConnectivityWorker(ConnectivityWorkerConfig{}, func(ctx context.Context) bool {
		return online.Load()
	}, notifier)
	cw.OnConnectivityRestored(func() {
		_, err := coordinator.SyncNow(context.Background())
		assert.NoError(t, err)
	})

	assert.False(t, cw.Check(ctx))
	assert.Equal(t, 2, pendingCount(queue))

	online.Store(true)
	assert.True(t, cw.Check(ctx))

	require.Eventually(t, func() bool { return pendingCount(queue) == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"offline_1709331300000", "offline_1709331305000"}, server.Delivered())
	require.Eventually(t, func() bool {
		for _, m := range notifier.Messages() {
			if m == "success: All offline alerts synced successfully" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, cw.Stop())
}

func TestFailedSubmissionArmsRestorationSync(t *testing.T) {
	ctx := context.Background()
	queue := newRecoveryQueue(t)
	server := &endpoint{}
	server.down.Store(true)
	notifier := &recordingNotifier{}

	sos := services.NewSOSService(
		server,
		queue,
		services.NewStaticLocationProvider(12.9716, 77.5946, 20),
		nil,
		notifier,
		nil,
		nil,
		services.SOSConfig{CountdownSteps: 0},
	)
	coordinator := services.NewSyncCoordinator(queue, server, notifier, 3)

	// The probe never sees the outage; only the failed submission does.
	cw := NewConnectivityWorker(ConnectivityWorkerConfig{}, func(ctx context.Context) bool {
		return true
	}, notifier)
	cw.OnConnectivityRestored(func() {
		_, err := coordinator.SyncNow(context.Background())
		assert.NoError(t, err)
	})
	sos.OnEndpointUnreachable(func() { cw.SetOnline(false) })

	require.True(t, sos.RequestActivation(models.SourceButton))
	sos.Wait()

	assert.False(t, cw.IsOnline())
	require.Equal(t, 1, pendingCount(queue))

	server.down.Store(false)
	assert.True(t, cw.Check(ctx))

	require.Eventually(t, func() bool { return pendingCount(queue) == 0 }, 2*time.Second, 10*time.Millisecond)
	delivered := server.Delivered()
	require.Len(t, delivered, 1)
	assert.True(t, utils.IsOfflineID(delivered[0]))
	assert.Equal(t, int64(1), cw.GetStats().Restorations)
	require.NoError(t, cw.Stop())
}
