package services

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultMaxRetries = 3

// SyncCoordinator drains the offline queue through the submitter, one alert
// at a time in insertion order.
type SyncCoordinator struct {
	queue      interfaces.AlertQueue
	submitter  interfaces.AlertSubmitter
	notifier   interfaces.Notifier
	maxRetries int

	runMutex sync.Mutex
	running  bool

	statsMutex sync.RWMutex
	failed     []models.Alert
	lastReport *models.SyncReport
}

func NewSyncCoordinator(queue interfaces.AlertQueue, submitter interfaces.AlertSubmitter, notifier interfaces.Notifier, maxRetries int) *SyncCoordinator {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	if notifier == nil {
		notifier = NewLogNotifier()
	}
	return &SyncCoordinator{
		queue:      queue,
		submitter:  submitter,
		notifier:   notifier,
		maxRetries: maxRetries,
	}
}

// SyncNow runs one pass over the pending alerts. A call made while a pass is
// already running returns immediately with Coalesced set.
func (sc *SyncCoordinator) SyncNow(ctx context.Context) (*models.SyncReport, error) {
	sc.runMutex.Lock()
	if sc.running {
		sc.runMutex.Unlock()
		logrus.Debug("Sync already in progress, coalescing request")
		now := time.Now()
		return &models.SyncReport{Coalesced: true, StartedAt: now, FinishedAt: now}, nil
	}
	sc.running = true
	sc.runMutex.Unlock()

	defer func() {
		sc.runMutex.Lock()
		sc.running = false
		sc.runMutex.Unlock()
	}()

	report := &models.SyncReport{StartedAt: time.Now()}
	defer func() {
		report.FinishedAt = time.Now()
		sc.statsMutex.Lock()
		r := *report
		sc.lastReport = &r
		sc.statsMutex.Unlock()
	}()

	pending, err := sc.queue.ListPending(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failed to read offline alert queue")
		return report, err
	}
	report.Scanned = len(pending)
	if len(pending) == 0 {
		return report, nil
	}

	logrus.WithField("pending", len(pending)).Info("Syncing offline SOS alerts")

	for _, alert := range pending {
		if err := ctx.Err(); err != nil {
			logrus.WithError(err).Warn("Sync interrupted")
			return report, err
		}
		sc.syncOne(ctx, alert, report)
	}

	remaining, err := sc.queue.ListPending(ctx)
	if err == nil && len(remaining) == 0 && len(report.Sent) > 0 {
		sc.notifier.Notify("All offline alerts synced successfully", models.SeveritySuccess)
	}

	logrus.WithFields(logrus.Fields{
		"sent":              len(report.Sent),
		"retried":           len(report.Retried),
		"failedPermanently": len(report.FailedPermanently),
	}).Info("Offline sync pass finished")
	return report, nil
}

func (sc *SyncCoordinator) syncOne(ctx context.Context, alert models.Alert, report *models.SyncReport) {
	serverID, err := sc.submitter.Submit(ctx, alert)
	if err == nil {
		if rmErr := sc.queue.Remove(ctx, alert.ID); rmErr != nil {
			logrus.WithFields(logrus.Fields{
				"alertId": alert.ID,
				"error":   rmErr,
			}).Error("Sent alert could not be removed from queue")
		}
		report.Sent = append(report.Sent, alert.ID)
		logrus.WithFields(logrus.Fields{
			"alertId":       alert.ID,
			"serverAlertId": serverID,
		}).Info("Offline SOS alert synced")
		return
	}

	alert.RetryCount++
	if alert.RetryCount >= sc.maxRetries {
		alert.Status = models.AlertStatusFailedPermanently
		if rmErr := sc.queue.Remove(ctx, alert.ID); rmErr != nil {
			logrus.WithFields(logrus.Fields{
				"alertId": alert.ID,
				"error":   rmErr,
			}).Error("Failed alert could not be removed from queue")
		}

		sc.statsMutex.Lock()
		sc.failed = append(sc.failed, alert)
		sc.statsMutex.Unlock()
		report.FailedPermanently = append(report.FailedPermanently, alert.ID)

		logrus.WithFields(logrus.Fields{
			"alertId":    alert.ID,
			"retryCount": alert.RetryCount,
			"error":      err,
		}).Error("Offline SOS alert failed permanently")
		sc.notifier.Notify(
			fmt.Sprintf("SOS alert from %s could not be delivered after %d attempts. Call %s directly.",
				alert.CreatedAt.Format("02 Jan 15:04"), alert.RetryCount, EmergencyNumber),
			models.SeverityError,
		)
		return
	}

	if upErr := sc.queue.Update(ctx, alert); upErr != nil {
		logrus.WithFields(logrus.Fields{
			"alertId": alert.ID,
			"error":   upErr,
		}).Error("Failed to record retry for offline alert")
	}
	report.Retried = append(report.Retried, alert.ID)
	logrus.WithFields(logrus.Fields{
		"alertId":    alert.ID,
		"retryCount": alert.RetryCount,
		"error":      err,
	}).Warn("Offline SOS alert sync failed, will retry")
}

// FailedAlerts returns alerts that exhausted their retries.
func (sc *SyncCoordinator) FailedAlerts() []models.Alert {
	sc.statsMutex.RLock()
	defer sc.statsMutex.RUnlock()
	out := make([]models.Alert, len(sc.failed))
	copy(out, sc.failed)
	return out
}

func (sc *SyncCoordinator) LastReport() *models.SyncReport {
	sc.statsMutex.RLock()
	defer sc.statsMutex.RUnlock()
	if sc.lastReport == nil {
		return nil
	}
	r := *sc.lastReport
	return &r
}

func (sc *SyncCoordinator) IsRunning() bool {
	sc.runMutex.Lock()
	defer sc.runMutex.Unlock()
	return sc.running
}
