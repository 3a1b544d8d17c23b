package services

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"sort"
	"sync"
	"time"
)

// fakeClock only moves when Advance is called. Due callbacks run outside the
// clock's lock so they may schedule further timers.
type fakeClock struct {
	mutex  sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	t := &fakeTimer{clock: c, when: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mutex.Lock()
	defer t.clock.mutex.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mutex.Lock()
	target := c.now.Add(d)
	for {
		due := c.nextDueLocked(target)
		if due == nil {
			break
		}
		c.now = due.when
		due.fired = true
		c.mutex.Unlock()
		due.fn()
		c.mutex.Lock()
	}
	c.now = target
	c.mutex.Unlock()
}

func (c *fakeClock) nextDueLocked(target time.Time) *fakeTimer {
	var live []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(live, func(i, j int) bool { return live[i].when.Before(live[j].when) })
	if len(live) == 0 || live[0].when.After(target) {
		return nil
	}
	return live[0]
}

func (c *fakeClock) Pending() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type cancelCall struct {
	AlertID string
	Reason  string
}

// fakeSubmitter answers from submitFn and records every call.
type fakeSubmitter struct {
	mutex     sync.Mutex
	submitFn  func(alert models.Alert) (string, error)
	cancelErr error
	submitted []models.Alert
	cancels   []cancelCall
	release   chan struct{}
}

func (f *fakeSubmitter) Submit(ctx context.Context, alert models.Alert) (string, error) {
	f.mutex.Lock()
	release := f.release
	f.mutex.Unlock()
	if release != nil {
		<-release
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.submitted = append(f.submitted, alert)
	if f.submitFn == nil {
		return "srv-1", nil
	}
	return f.submitFn(alert)
}

func (f *fakeSubmitter) Cancel(ctx context.Context, alertID, reason string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.cancels = append(f.cancels, cancelCall{AlertID: alertID, Reason: reason})
	return f.cancelErr
}

func (f *fakeSubmitter) setCancelErr(err error) {
	f.mutex.Lock()
	f.cancelErr = err
	f.mutex.Unlock()
}

func (f *fakeSubmitter) Submitted() []models.Alert {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]models.Alert, len(f.submitted))
	copy(out, f.submitted)
	return out
}

func (f *fakeSubmitter) Cancels() []cancelCall {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]cancelCall, len(f.cancels))
	copy(out, f.cancels)
	return out
}

func failingSubmit(models.Alert) (string, error) {
	return "", utils.NewTransportFailureError(context.DeadlineExceeded)
}

// memQueue is an in-memory queue with the same ordering rules as the
// persistent backends.
type memQueue struct {
	mutex      sync.Mutex
	alerts     []models.Alert
	enqueueErr error
}

func (q *memQueue) Enqueue(ctx context.Context, alert models.Alert) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	alert.Status = models.AlertStatusPending
	q.alerts = append(q.alerts, alert)
	return nil
}

func (q *memQueue) ListPending(ctx context.Context) ([]models.Alert, error) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	out := make([]models.Alert, 0, len(q.alerts))
	for _, a := range q.alerts {
		if a.Status != models.AlertStatusSent {
			out = append(out, a)
		}
	}
	return out, nil
}

func (q *memQueue) Remove(ctx context.Context, alertID string) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, a := range q.alerts {
		if a.ID == alertID {
			q.alerts = append(q.alerts[:i], q.alerts[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *memQueue) Update(ctx context.Context, alert models.Alert) error {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i, a := range q.alerts {
		if a.ID == alert.ID {
			q.alerts[i].RetryCount = alert.RetryCount
			q.alerts[i].Status = alert.Status
			return nil
		}
	}
	return utils.NewNotFoundError("Alert")
}

func (q *memQueue) All() []models.Alert {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	out := make([]models.Alert, len(q.alerts))
	copy(out, q.alerts)
	return out
}

type notification struct {
	Message  string
	Severity models.Severity
}

type recordingNotifier struct {
	mutex sync.Mutex
	items []notification
}

func (n *recordingNotifier) Notify(message string, severity models.Severity) {
	n.mutex.Lock()
	n.items = append(n.items, notification{Message: message, Severity: severity})
	n.mutex.Unlock()
}

func (n *recordingNotifier) Items() []notification {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	out := make([]notification, len(n.items))
	copy(out, n.items)
	return out
}

func (n *recordingNotifier) Has(message string, severity models.Severity) bool {
	for _, item := range n.Items() {
		if item.Message == message && item.Severity == severity {
			return true
		}
	}
	return false
}

type recordingObserver struct {
	mutex  sync.Mutex
	states []models.SessionState
}

func (o *recordingObserver) SessionChanged(session models.Session) {
	o.mutex.Lock()
	o.states = append(o.states, session.State)
	o.mutex.Unlock()
}

func (o *recordingObserver) States() []models.SessionState {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	out := make([]models.SessionState, len(o.states))
	copy(out, o.states)
	return out
}
