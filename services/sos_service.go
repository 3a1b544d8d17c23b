package services

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Timer is the handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so the countdown can be driven deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

type SOSConfig struct {
	CountdownSteps  int
	CountdownUnit   time.Duration
	LocationTimeout time.Duration
	EvidenceTimeout time.Duration
	Notes           string
}

func DefaultSOSConfig() SOSConfig {
	return SOSConfig{
		CountdownSteps:  3,
		CountdownUnit:   time.Second,
		LocationTimeout: 10 * time.Second,
		EvidenceTimeout: 5 * time.Second,
	}
}

// SOSService owns the activation state machine. At most one session is
// counting down, submitting or active at any time.
type SOSService struct {
	mutex        sync.Mutex
	session      models.Session
	last         *models.Session
	timer        Timer
	cancelling   bool
	cancelReason string

	submitter interfaces.AlertSubmitter
	queue     interfaces.AlertQueue
	location  interfaces.LocationProvider
	evidence  interfaces.EvidenceCollector
	notifier  interfaces.Notifier
	fallback  *FallbackService
	clock     Clock
	config    SOSConfig

	observerMutex sync.RWMutex
	observers     []interfaces.SessionObserver
	unreachable   []func()

	wg sync.WaitGroup
}

func NewSOSService(
	submitter interfaces.AlertSubmitter,
	queue interfaces.AlertQueue,
	location interfaces.LocationProvider,
	evidence interfaces.EvidenceCollector,
	notifier interfaces.Notifier,
	fallback *FallbackService,
	clock Clock,
	config SOSConfig,
) *SOSService {
	if clock == nil {
		clock = RealClock()
	}
	if config.CountdownUnit <= 0 {
		config.CountdownUnit = time.Second
	}
	if config.LocationTimeout <= 0 {
		config.LocationTimeout = 10 * time.Second
	}
	if config.EvidenceTimeout <= 0 {
		config.EvidenceTimeout = 5 * time.Second
	}
	if notifier == nil {
		notifier = NewLogNotifier()
	}

	return &SOSService{
		session:   models.Session{State: models.SessionStateIdle},
		submitter: submitter,
		queue:     queue,
		location:  location,
		evidence:  evidence,
		notifier:  notifier,
		fallback:  fallback,
		clock:     clock,
		config:    config,
	}
}

// AddObserver registers a listener for session snapshots.
func (s *SOSService) AddObserver(o interfaces.SessionObserver) {
	s.observerMutex.Lock()
	s.observers = append(s.observers, o)
	s.observerMutex.Unlock()
}

// OnEndpointUnreachable registers a callback run when a submission fails
// because the SOS endpoint could not be reached (transport failure or
// timeout). A rejection by the server does not count.
func (s *SOSService) OnEndpointUnreachable(callback func()) {
	s.observerMutex.Lock()
	s.unreachable = append(s.unreachable, callback)
	s.observerMutex.Unlock()
}

func (s *SOSService) endpointUnreachable() {
	s.observerMutex.RLock()
	callbacks := make([]func(), len(s.unreachable))
	copy(callbacks, s.unreachable)
	s.observerMutex.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

func (s *SOSService) publish(snapshots ...models.Session) {
	s.observerMutex.RLock()
	observers := make([]interfaces.SessionObserver, len(s.observers))
	copy(observers, s.observers)
	s.observerMutex.RUnlock()

	for _, snap := range snapshots {
		for _, o := range observers {
			o.SessionChanged(snap)
		}
	}
}

// Session returns a snapshot of the current session.
func (s *SOSService) Session() models.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.session
}

// LastSession returns the most recent session that ended cancelled or failed.
func (s *SOSService) LastSession() *models.Session {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.last == nil {
		return nil
	}
	last := *s.last
	return &last
}

// RequestActivation starts a countdown. It reports false when a session is
// already counting down, submitting or active.
func (s *SOSService) RequestActivation(source models.ActivationSource) bool {
	if source == "" {
		source = models.SourceAPI
	}

	s.mutex.Lock()
	if s.session.State.IsBusy() {
		s.mutex.Unlock()
		logrus.WithFields(logrus.Fields{
			"source": source,
			"state":  s.session.State,
		}).Debug("SOS activation ignored, session in progress")
		return false
	}

	now := s.clock.Now()
	s.session = models.Session{
		ID:                 utils.GenerateUUID(),
		State:              models.SessionStateCountingDown,
		Source:             source,
		CountdownRemaining: s.config.CountdownSteps,
		StartedAt:          now,
		UpdatedAt:          now,
	}
	s.cancelReason = ""
	sessionID := s.session.ID

	var snapshots []models.Session
	submitNow := s.config.CountdownSteps <= 0
	if submitNow {
		snapshots = append(snapshots, s.session)
		snapshots = append(snapshots, s.beginSubmitLocked())
	} else {
		s.scheduleTickLocked(sessionID)
		snapshots = append(snapshots, s.session)
	}
	s.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"source":    source,
		"countdown": s.config.CountdownSteps,
	}).Info("SOS activation requested")

	s.publish(snapshots...)
	if submitNow {
		go s.submit(sessionID)
	}
	return true
}

func (s *SOSService) scheduleTickLocked(sessionID string) {
	s.timer = s.clock.AfterFunc(s.config.CountdownUnit, func() {
		s.tick(sessionID)
	})
}

func (s *SOSService) tick(sessionID string) {
	s.mutex.Lock()
	if s.session.ID != sessionID || s.session.State != models.SessionStateCountingDown {
		s.mutex.Unlock()
		return
	}

	s.session.CountdownRemaining--
	s.session.UpdatedAt = s.clock.Now()

	if s.session.CountdownRemaining > 0 {
		s.scheduleTickLocked(sessionID)
		snapshot := s.session
		s.mutex.Unlock()
		s.publish(snapshot)
		return
	}

	s.timer = nil
	snapshot := s.beginSubmitLocked()
	s.mutex.Unlock()

	s.publish(snapshot)
	go s.submit(sessionID)
}

// beginSubmitLocked moves the session to submitting and reserves the
// submission. The caller holds s.mutex and must start submit after
// publishing the snapshot.
func (s *SOSService) beginSubmitLocked() models.Session {
	s.session.State = models.SessionStateSubmitting
	s.session.CountdownRemaining = 0
	s.session.UpdatedAt = s.clock.Now()
	s.wg.Add(1)
	return s.session
}

func (s *SOSService) submit(sessionID string) {
	defer s.wg.Done()
	ctx := context.Background()
	alert := s.buildAlert(ctx)

	serverID, err := s.submitter.Submit(ctx, alert)
	if err != nil {
		s.handleSubmitFailure(ctx, sessionID, alert, err)
		return
	}

	s.mutex.Lock()
	if s.session.ID != sessionID {
		s.mutex.Unlock()
		return
	}
	s.session.State = models.SessionStateActive
	s.session.ActiveAlertID = serverID
	s.session.UpdatedAt = s.clock.Now()
	cancelRequested := s.session.CancelRequested
	reason := s.cancelReason
	snapshot := s.session
	s.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"alertId":   serverID,
	}).Info("SOS session active")
	s.notifier.Notify("SOS alert sent successfully! Help is on the way.", models.SeveritySuccess)
	s.publish(snapshot)

	if cancelRequested {
		if err := s.Cancel(ctx, reason); err != nil {
			logrus.WithError(err).Warn("Deferred SOS cancel failed")
		}
	}
}

// buildAlert gathers location and evidence without ever blocking past the
// configured timeouts.
func (s *SOSService) buildAlert(ctx context.Context) models.Alert {
	var loc *models.Location
	if s.location != nil {
		lctx, cancel := context.WithTimeout(ctx, s.config.LocationTimeout)
		l, err := s.location.CurrentLocation(lctx)
		cancel()
		if err != nil {
			logrus.WithError(err).Warn("Location unavailable for SOS alert")
		} else {
			loc = l
		}
	}

	evidence := false
	if s.evidence != nil {
		ectx, cancel := context.WithTimeout(ctx, s.config.EvidenceTimeout)
		ok, err := s.evidence.Collect(ectx)
		cancel()
		if err != nil {
			logrus.WithError(err).Debug("Evidence collection skipped")
		}
		evidence = ok && err == nil
	}

	return models.Alert{
		Location:          loc,
		Address:           FormatAddress(loc),
		Notes:             s.config.Notes,
		CreatedAt:         s.clock.Now(),
		EvidenceAvailable: evidence,
		Status:            models.AlertStatusPending,
	}
}

func (s *SOSService) handleSubmitFailure(ctx context.Context, sessionID string, alert models.Alert, cause error) {
	alert.ID = utils.OfflineAlertID(s.clock.Now())
	alert.Status = models.AlertStatusPending
	alert.RetryCount = 0

	logrus.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"alertId":   alert.ID,
		"error":     cause,
	}).Warn("SOS submission failed, queueing alert")

	if s.queue != nil {
		if err := s.queue.Enqueue(ctx, alert); err != nil {
			logrus.WithFields(logrus.Fields{
				"alertId": alert.ID,
				"error":   err,
			}).Error("Failed to store SOS alert offline")
			s.notifier.Notify("Failed to store SOS alert offline. Call emergency services directly.", models.SeverityError)
		}
	}

	if utils.IsTransportFailure(cause) || utils.IsTimeout(cause) {
		s.endpointUnreachable()
	}

	if s.fallback != nil {
		s.fallback.Trigger(ctx, alert)
	}
	s.notifier.Notify("SOS alert saved offline. It will be sent when connection is restored.", models.SeverityWarning)

	s.mutex.Lock()
	if s.session.ID != sessionID {
		s.mutex.Unlock()
		return
	}
	failed, idle := s.endSessionLocked(models.SessionStateFailed)
	s.mutex.Unlock()

	s.publish(failed, idle)
}

// endSessionLocked records the terminal snapshot and resets to idle.
func (s *SOSService) endSessionLocked(state models.SessionState) (models.Session, models.Session) {
	s.session.State = state
	s.session.UpdatedAt = s.clock.Now()
	ended := s.session
	s.last = &ended

	s.session = models.Session{State: models.SessionStateIdle, UpdatedAt: ended.UpdatedAt}
	s.timer = nil
	s.cancelling = false
	return ended, s.session
}

// Cancel stops the current session. During submitting the request is recorded
// and applied once the submission succeeds.
func (s *SOSService) Cancel(ctx context.Context, reason string) error {
	if reason == "" {
		reason = DefaultCancelReason
	}

	s.mutex.Lock()
	switch s.session.State {
	case models.SessionStateCountingDown:
		if s.timer != nil {
			s.timer.Stop()
		}
		sessionID := s.session.ID
		cancelled, idle := s.endSessionLocked(models.SessionStateCancelled)
		s.mutex.Unlock()

		logrus.WithField("sessionId", sessionID).Info("SOS countdown cancelled")
		s.notifier.Notify("SOS cancelled", models.SeverityInfo)
		s.publish(cancelled, idle)
		return nil

	case models.SessionStateSubmitting:
		s.session.CancelRequested = true
		s.session.UpdatedAt = s.clock.Now()
		s.cancelReason = reason
		snapshot := s.session
		s.mutex.Unlock()

		logrus.WithField("sessionId", snapshot.ID).Info("SOS cancel requested during submission")
		s.publish(snapshot)
		return nil

	case models.SessionStateActive:
		if s.cancelling {
			s.mutex.Unlock()
			return utils.NewConflictError("SOS cancel already in progress")
		}
		s.cancelling = true
		sessionID := s.session.ID
		alertID := s.session.ActiveAlertID
		s.mutex.Unlock()

		return s.cancelActive(ctx, sessionID, alertID, reason)

	default:
		s.mutex.Unlock()
		return utils.ErrNoActiveSession
	}
}

func (s *SOSService) cancelActive(ctx context.Context, sessionID, alertID, reason string) error {
	err := s.submitter.Cancel(ctx, alertID, reason)

	s.mutex.Lock()
	if s.session.ID != sessionID {
		s.mutex.Unlock()
		return err
	}
	if err != nil {
		s.cancelling = false
		s.mutex.Unlock()

		logrus.WithFields(logrus.Fields{
			"sessionId": sessionID,
			"alertId":   alertID,
			"error":     err,
		}).Error("Failed to cancel active SOS alert")
		s.notifier.Notify("Failed to cancel SOS alert. Please try again or contact emergency services.", models.SeverityError)
		return err
	}
	cancelled, idle := s.endSessionLocked(models.SessionStateCancelled)
	s.mutex.Unlock()

	logrus.WithFields(logrus.Fields{
		"sessionId": sessionID,
		"alertId":   alertID,
	}).Info("SOS alert cancelled")
	s.notifier.Notify("SOS alert cancelled. Stay safe.", models.SeveritySuccess)
	s.publish(cancelled, idle)
	return nil
}

// Wait blocks until in-flight submissions have finished.
func (s *SOSService) Wait() {
	s.wg.Wait()
}
