package services

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Direct-dial numbers offered when the server cannot be reached.
const (
	EmergencyNumber     = "112"
	WomenHelplineNumber = "1091"
	WomenSafetyNumber   = "181"
)

// DialSuggestion is the text surfaced when fallback channels are used.
var DialSuggestion = fmt.Sprintf(
	"Could not reach the server. Call %s (Emergency), %s (Women Helpline) or %s (Women Safety) directly.",
	EmergencyNumber, WomenHelplineNumber, WomenSafetyNumber,
)

// TwilioSMSSender sends SMS through the Twilio REST API.
type TwilioSMSSender struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioSMSSender(accountSID, authToken, fromNumber string) *TwilioSMSSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSMSSender{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (ts *TwilioSMSSender) SendSMS(ctx context.Context, phone, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(ts.fromNumber)
	params.SetBody(message)

	resp, err := ts.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}

	if resp.Sid != nil {
		logrus.WithField("sid", *resp.Sid).Debug("SMS accepted by Twilio")
	}
	return nil
}

// MockSMSSender records messages instead of sending them.
type MockSMSSender struct {
	mutex sync.Mutex
	Sent  []SentSMS
}

type SentSMS struct {
	Phone   string
	Message string
}

func NewMockSMSSender() *MockSMSSender {
	return &MockSMSSender{}
}

func (ms *MockSMSSender) SendSMS(ctx context.Context, phone, message string) error {
	ms.mutex.Lock()
	ms.Sent = append(ms.Sent, SentSMS{Phone: phone, Message: message})
	ms.mutex.Unlock()

	logrus.WithField("phone", phone).Info("Mock SMS sent")
	return nil
}

func (ms *MockSMSSender) Messages() []SentSMS {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	out := make([]SentSMS, len(ms.Sent))
	copy(out, ms.Sent)
	return out
}

// FallbackService runs the out-of-band channels after a failed submission.
type FallbackService struct {
	sms      interfaces.SMSSender
	contacts []models.EmergencyContact
	notifier interfaces.Notifier
	userName string
}

func NewFallbackService(sms interfaces.SMSSender, contacts []models.EmergencyContact, notifier interfaces.Notifier, userName string) *FallbackService {
	return &FallbackService{
		sms:      sms,
		contacts: contacts,
		notifier: notifier,
		userName: strings.TrimSpace(userName),
	}
}

// Trigger suggests direct dialing and texts every emergency contact.
// SMS failures are logged; it returns the number of messages delivered.
func (fs *FallbackService) Trigger(ctx context.Context, alert models.Alert) int {
	if fs.notifier != nil {
		fs.notifier.Notify(DialSuggestion, models.SeverityError)
	}
	if fs.sms == nil || len(fs.contacts) == 0 {
		return 0
	}

	delivered := 0
	for _, contact := range fs.contacts {
		message := fs.FormatMessage(alert, time.Now())
		if err := fs.sms.SendSMS(ctx, contact.Phone, message); err != nil {
			logrus.WithFields(logrus.Fields{
				"contact": contact.Name,
				"error":   err,
			}).Warn("Failed to send emergency SMS")
			continue
		}
		delivered++
	}

	logrus.WithFields(logrus.Fields{
		"alertId":   alert.ID,
		"contacts":  len(fs.contacts),
		"delivered": delivered,
	}).Info("Fallback channels triggered")
	return delivered
}

// FormatMessage renders the emergency SMS body.
func (fs *FallbackService) FormatMessage(alert models.Alert, now time.Time) string {
	who := fs.userName
	if who == "" {
		who = "Your contact"
	}
	address := alert.Address
	if address == "" && alert.HasLocation() {
		address = FormatAddress(alert.Location)
	}
	if address == "" {
		address = LocationUnavailable
	}

	var b strings.Builder
	b.WriteString("EMERGENCY ALERT from aai Saheb\n\n")
	fmt.Fprintf(&b, "%s needs immediate help!\n", who)
	fmt.Fprintf(&b, "Location: %s\n", address)
	fmt.Fprintf(&b, "Time: %s\n\n", now.Format("02 Jan 2006 15:04:05"))
	b.WriteString("Please call immediately or contact emergency services:\n")
	fmt.Fprintf(&b, "Emergency: %s\nWomen Helpline: %s\n\n", EmergencyNumber, WomenHelplineNumber)
	b.WriteString("This is an automated emergency alert.")
	return b.String()
}
