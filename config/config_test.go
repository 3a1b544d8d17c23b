package config

import (
	"aaisaheb/repositories"
	"aaisaheb/services"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "http://sos.local:5000/")
	t.Setenv("SUBMIT_URL", "")
	t.Setenv("STATIC_LATITUDE", "")

	cfg := Load()
	assert.Equal(t, "http://sos.local:5000", cfg.APIBaseURL)
	assert.Equal(t, "http://sos.local:5000/api/sos/activate", cfg.SubmitURL)
	assert.Equal(t, "http://sos.local:5000/api/sos/cancel", cfg.CancelURL)
	assert.Equal(t, 3, cfg.CountdownSteps)
	assert.Equal(t, time.Second, cfg.CountdownUnit)
	assert.Equal(t, services.DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, "file", cfg.QueueBackend)
	assert.Equal(t, repositories.DefaultQueueKey, cfg.RedisQueueKey)
	assert.False(t, cfg.UseStaticLocation)
	assert.True(t, cfg.SyncOnStartup)
	assert.False(t, cfg.UsesMongo())

	t.Setenv("INTERCEPTOR_STORE", "MongoDB")
	assert.True(t, Load().UsesMongo())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOS_COUNTDOWN_STEPS", "5")
	t.Setenv("SOS_COUNTDOWN_UNIT", "500ms")
	t.Setenv("SYNC_MAX_RETRIES", "not-a-number")
	t.Setenv("QUEUE_BACKEND", "Redis")
	t.Setenv("STATIC_LATITUDE", "28.6139")
	t.Setenv("STATIC_LONGITUDE", "77.2090")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, http://127.0.0.1:3000 ,")
	t.Setenv("SYNC_ON_STARTUP", "false")

	cfg := Load()
	assert.Equal(t, 5, cfg.CountdownSteps)
	assert.Equal(t, 500*time.Millisecond, cfg.CountdownUnit)
	assert.Equal(t, services.DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.True(t, cfg.UseStaticLocation)
	assert.InDelta(t, 28.6139, cfg.StaticLatitude, 1e-9)
	assert.Equal(t, []string{"http://localhost:3000", "http://127.0.0.1:3000"}, cfg.AllowedOrigins)
	assert.False(t, cfg.SyncOnStartup)

	sos := cfg.SOSConfig()
	assert.Equal(t, 5, sos.CountdownSteps)
	assert.Equal(t, 500*time.Millisecond, sos.CountdownUnit)
}

func TestInitAlertQueueFileBackend(t *testing.T) {
	cfg := &Config{QueueBackend: "file", QueueFile: filepath.Join(t.TempDir(), "q", "alerts.json")}

	queue, closeFn, err := cfg.InitAlertQueue(context.Background())
	require.NoError(t, err)
	defer closeFn()

	pending, err := queue.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestInitFallbackSender(t *testing.T) {
	cfg := &Config{SMSProvider: "twilio"}
	_, ok := cfg.InitFallbackSender().(*services.MockSMSSender)
	assert.True(t, ok)

	cfg = &Config{SMSProvider: "twilio", TwilioAccountSID: "AC123", TwilioAuthToken: "token", TwilioPhoneNumber: "+15005550006"}
	_, ok = cfg.InitFallbackSender().(*services.TwilioSMSSender)
	assert.True(t, ok)
}
