package workers

import (
	"aaisaheb/models"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReconciler struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeReconciler) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return &models.ReconcileResult{RanAt: time.Now()}, f.err
	}
	return &models.ReconcileResult{Scanned: 2, Synced: 2, RanAt: time.Now()}, nil
}

func TestReconcileRunNowUpdatesStats(t *testing.T) {
	rw := NewReconcileWorker(&fakeReconciler{}, "", nil)

	result, err := rw.RunNow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.Synced)

	stats := rw.GetStats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(2), stats.RecordsSynced)
	require.NotNil(t, stats.LastResult)
}

func TestReconcileRunNowRecordsFailure(t *testing.T) {
	rw := NewReconcileWorker(&fakeReconciler{err: errors.New("database is locked")}, "", nil)

	_, err := rw.RunNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, int64(1), rw.GetStats().FailedRuns)
}

func TestReconcileRunNowIsSingleFlight(t *testing.T) {
	reconciler := &fakeReconciler{release: make(chan struct{})}
	rw := NewReconcileWorker(reconciler, "", nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rw.RunNow(context.Background())
	}()
	require.Eventually(t, func() bool { return reconciler.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	result, err := rw.RunNow(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, result)

	close(reconciler.release)
	wg.Wait()

	stats := rw.GetStats()
	assert.Equal(t, int64(1), stats.Runs)
	assert.Equal(t, int64(1), stats.SkippedRuns)
	assert.Equal(t, int32(1), reconciler.calls.Load())
}

func TestReconcileWorkerSchedule(t *testing.T) {
	reconciler := &fakeReconciler{}
	rw := NewReconcileWorker(reconciler, "@every 1s", time.UTC)

	require.NoError(t, rw.Start())
	assert.True(t, rw.IsRunning())
	require.Eventually(t, func() bool { return reconciler.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
	require.NoError(t, rw.Stop())
	assert.False(t, rw.IsRunning())
}

func TestReconcileWorkerRejectsBadSchedule(t *testing.T) {
	rw := NewReconcileWorker(&fakeReconciler{}, "every now and then", nil)
	assert.Error(t, rw.Start())
	assert.False(t, rw.IsRunning())
}
