package services

import (
	"aaisaheb/models"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakySMS struct {
	failFor string
	sent    []string
}

func (f *flakySMS) SendSMS(ctx context.Context, phone, message string) error {
	if phone == f.failFor {
		return errors.New("carrier rejected")
	}
	f.sent = append(f.sent, phone)
	return nil
}

func TestFallbackFormatMessage(t *testing.T) {
	fs := NewFallbackService(nil, nil, nil, "Priya")
	now := time.Date(2024, 3, 1, 22, 15, 30, 0, time.UTC)

	msg := fs.FormatMessage(models.Alert{Address: "28.613900, 77.209000"}, now)
	assert.True(t, strings.HasPrefix(msg, "EMERGENCY ALERT from aai Saheb"))
	assert.Contains(t, msg, "Priya needs immediate help!")
	assert.Contains(t, msg, "Location: 28.613900, 77.209000")
	assert.Contains(t, msg, "Time: 01 Mar 2024 22:15:30")
	assert.Contains(t, msg, "Emergency: 112")
	assert.Contains(t, msg, "Women Helpline: 1091")

	anonymous := NewFallbackService(nil, nil, nil, "  ")
	msg = anonymous.FormatMessage(models.Alert{}, now)
	assert.Contains(t, msg, "Your contact needs immediate help!")
	assert.Contains(t, msg, "Location: "+LocationUnavailable)

	msg = fs.FormatMessage(models.Alert{Location: &models.Location{Latitude: 19.076, Longitude: 72.8777}}, now)
	assert.Contains(t, msg, "Location: 19.076000, 72.877700")
}

func TestFallbackTriggerTextsEveryContact(t *testing.T) {
	sms := &flakySMS{failFor: "+912222222222"}
	notifier := &recordingNotifier{}
	contacts := []models.EmergencyContact{
		{Name: "Mom", Phone: "+911111111111"},
		{Name: "Sister", Phone: "+912222222222"},
		{Name: "Friend", Phone: "+913333333333"},
	}
	fs := NewFallbackService(sms, contacts, notifier, "Priya")

	delivered := fs.Trigger(context.Background(), models.Alert{ID: "offline_1"})
	assert.Equal(t, 2, delivered)
	assert.Equal(t, []string{"+911111111111", "+913333333333"}, sms.sent)

	items := notifier.Items()
	require.Len(t, items, 1)
	assert.Equal(t, DialSuggestion, items[0].Message)
	assert.Equal(t, models.SeverityError, items[0].Severity)
	assert.Contains(t, DialSuggestion, "181")
}

func TestFallbackTriggerWithoutContacts(t *testing.T) {
	notifier := &recordingNotifier{}
	fs := NewFallbackService(NewMockSMSSender(), nil, notifier, "")

	assert.Zero(t, fs.Trigger(context.Background(), models.Alert{}))
	assert.True(t, notifier.Has(DialSuggestion, models.SeverityError))
}
