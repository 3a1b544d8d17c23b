package services

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"context"
	"sync"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (ln *LogNotifier) Notify(message string, severity models.Severity) {
	entry := logrus.WithFields(logrus.Fields{
		"severity": severity,
		"channel":  "notification",
	})
	switch severity {
	case models.SeverityError:
		entry.Error(message)
	case models.SeverityWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}
}

// MultiNotifier fans a notification out to every registered notifier.
type MultiNotifier struct {
	mutex     sync.RWMutex
	notifiers []interfaces.Notifier
}

func NewMultiNotifier(notifiers ...interfaces.Notifier) *MultiNotifier {
	mn := &MultiNotifier{}
	for _, n := range notifiers {
		mn.Add(n)
	}
	return mn
}

func (mn *MultiNotifier) Add(n interfaces.Notifier) {
	if n == nil {
		return
	}
	mn.mutex.Lock()
	mn.notifiers = append(mn.notifiers, n)
	mn.mutex.Unlock()
}

func (mn *MultiNotifier) Notify(message string, severity models.Severity) {
	mn.mutex.RLock()
	notifiers := make([]interfaces.Notifier, len(mn.notifiers))
	copy(notifiers, mn.notifiers)
	mn.mutex.RUnlock()

	for _, n := range notifiers {
		n.Notify(message, severity)
	}
}

// PushSender is the subset of the FCM client used for device pushes.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// PushNotifier mirrors warning and error notifications to the device through FCM.
// Info and success notifications stay local.
type PushNotifier struct {
	client      PushSender
	deviceToken string
	timeout     time.Duration
}

func NewPushNotifier(client PushSender, deviceToken string) *PushNotifier {
	return &PushNotifier{
		client:      client,
		deviceToken: deviceToken,
		timeout:     10 * time.Second,
	}
}

func (pn *PushNotifier) Notify(message string, severity models.Severity) {
	if pn.client == nil || pn.deviceToken == "" {
		return
	}
	if severity != models.SeverityError && severity != models.SeverityWarning {
		return
	}

	msg := &messaging.Message{
		Token: pn.deviceToken,
		Notification: &messaging.Notification{
			Title: pushTitle(severity),
			Body:  message,
		},
		Data: map[string]string{
			"type":     "sos",
			"severity": string(severity),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Icon:  "ic_notification",
				Color: "#E53935",
			},
		},
	}

	// Fire-and-forget.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), pn.timeout)
		defer cancel()

		id, err := pn.client.Send(ctx, msg)
		if err != nil {
			logrus.WithError(err).Warn("Failed to send push notification")
			return
		}
		logrus.WithField("messageId", id).Debug("Push notification sent")
	}()
}

func pushTitle(severity models.Severity) string {
	if severity == models.SeverityError {
		return "SOS Alert Problem"
	}
	return "SOS Alert"
}
