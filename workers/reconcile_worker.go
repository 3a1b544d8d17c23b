package workers

import (
	"aaisaheb/models"
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const DefaultReconcileSchedule = "@every 1m"

// Reconciler replays offline-logged requests.
type Reconciler interface {
	Reconcile(ctx context.Context) (*models.ReconcileResult, error)
}

type ReconcileWorkerStats struct {
	Runs          int64                   `json:"runs"`
	FailedRuns    int64                   `json:"failedRuns"`
	SkippedRuns   int64                   `json:"skippedRuns"`
	RecordsSynced int64                   `json:"recordsSynced"`
	LastResult    *models.ReconcileResult `json:"lastResult,omitempty"`
	StartTime     time.Time               `json:"startTime"`
}

// ReconcileWorker replays the interception log on a cron schedule.
type ReconcileWorker struct {
	reconciler Reconciler
	schedule   string
	cron       *cron.Cron

	isRunning bool
	mutex     sync.RWMutex

	runMutex sync.Mutex
	busy     bool

	ctx    context.Context
	cancel context.CancelFunc

	stats      ReconcileWorkerStats
	statsMutex sync.RWMutex
}

func NewReconcileWorker(reconciler Reconciler, schedule string, loc *time.Location) *ReconcileWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if schedule == "" {
		schedule = DefaultReconcileSchedule
	}
	if loc == nil {
		loc = time.Local
	}

	return &ReconcileWorker{
		reconciler: reconciler,
		schedule:   schedule,
		cron:       cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		ctx:        ctx,
		cancel:     cancel,
		stats: ReconcileWorkerStats{
			StartTime: time.Now(),
		},
	}
}

func (rw *ReconcileWorker) Start() error {
	rw.mutex.Lock()
	defer rw.mutex.Unlock()

	if rw.isRunning {
		return nil
	}

	if _, err := rw.cron.AddFunc(rw.schedule, func() { rw.RunNow(rw.ctx) }); err != nil {
		return err
	}
	rw.cron.Start()
	rw.isRunning = true

	logrus.Infof("Reconcile Worker started with schedule %q", rw.schedule)
	return nil
}

func (rw *ReconcileWorker) Stop() error {
	rw.mutex.Lock()
	defer rw.mutex.Unlock()

	if !rw.isRunning {
		return nil
	}

	logrus.Info("Stopping Reconcile Worker...")

	rw.cancel()
	<-rw.cron.Stop().Done()
	rw.isRunning = false

	logrus.Info("Reconcile Worker stopped successfully")
	return nil
}

// RunNow performs one reconcile pass unless one is already running, in
// which case it returns nil, nil.
func (rw *ReconcileWorker) RunNow(ctx context.Context) (*models.ReconcileResult, error) {
	rw.runMutex.Lock()
	if rw.busy {
		rw.runMutex.Unlock()
		rw.statsMutex.Lock()
		rw.stats.SkippedRuns++
		rw.statsMutex.Unlock()
		return nil, nil
	}
	rw.busy = true
	rw.runMutex.Unlock()

	defer func() {
		rw.runMutex.Lock()
		rw.busy = false
		rw.runMutex.Unlock()
	}()

	result, err := rw.reconciler.Reconcile(ctx)

	rw.statsMutex.Lock()
	rw.stats.Runs++
	if err != nil {
		rw.stats.FailedRuns++
	}
	if result != nil {
		rw.stats.RecordsSynced += int64(result.Synced)
		rw.stats.LastResult = result
	}
	rw.statsMutex.Unlock()

	if err != nil {
		logrus.WithError(err).Error("Offline request reconcile failed")
		return result, err
	}
	if result != nil && result.Scanned > 0 {
		logrus.WithFields(logrus.Fields{
			"scanned": result.Scanned,
			"synced":  result.Synced,
			"failed":  result.Failed,
		}).Info("Offline request reconcile finished")
	}
	return result, nil
}

func (rw *ReconcileWorker) GetStats() ReconcileWorkerStats {
	rw.statsMutex.RLock()
	defer rw.statsMutex.RUnlock()
	return rw.stats
}

func (rw *ReconcileWorker) IsRunning() bool {
	rw.mutex.RLock()
	defer rw.mutex.RUnlock()
	return rw.isRunning
}
