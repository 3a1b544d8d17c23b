package config

import (
	"aaisaheb/database"
	"aaisaheb/interfaces"
	"aaisaheb/repositories"
	"aaisaheb/services"
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

type Config struct {
	Environment string
	Port        string

	// Logging
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int

	// Remote SOS endpoints
	APIBaseURL     string
	SubmitURL      string
	CancelURL      string
	HealthURL      string
	APIToken       string
	RequestTimeout time.Duration

	// SOS lifecycle
	CountdownSteps  int
	CountdownUnit   time.Duration
	LocationTimeout time.Duration
	EvidenceTimeout time.Duration
	LocationMaxAge  time.Duration
	MaxRetries      int
	AlertNotes      string
	UserName        string

	// Optional fixed position for devices without a location source
	StaticLatitude    float64
	StaticLongitude   float64
	UseStaticLocation bool

	// Offline queue
	QueueBackend  string
	QueueFile     string
	RedisURL      string
	RedisQueueKey string

	// Interception log
	InterceptorStore  string
	SQLitePath        string
	DatabaseURL       string
	ReconcileSchedule string
	ProbeInterval     time.Duration
	SyncOnStartup     bool

	// Fallback channels
	EmergencyContacts string
	SMSProvider       string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	// Push notifications
	FirebaseCredentials string
	DeviceToken         string

	// Local surface
	AllowedOrigins []string
	LocalAPIToken  string
}

func Load() *Config {
	apiBase := strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:5000"), "/")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),

		LogFile:       getEnv("LOG_FILE", ""),
		LogMaxSizeMB:  getEnvAsInt("LOG_MAX_SIZE_MB", 50),
		LogMaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 3),

		APIBaseURL:     apiBase,
		SubmitURL:      getEnv("SUBMIT_URL", apiBase+"/api/sos/activate"),
		CancelURL:      getEnv("CANCEL_URL", apiBase+"/api/sos/cancel"),
		HealthURL:      getEnv("HEALTH_URL", apiBase+"/health"),
		APIToken:       getEnv("API_TOKEN", ""),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),

		CountdownSteps:  getEnvAsInt("SOS_COUNTDOWN_STEPS", 3),
		CountdownUnit:   getEnvAsDuration("SOS_COUNTDOWN_UNIT", time.Second),
		LocationTimeout: getEnvAsDuration("LOCATION_TIMEOUT", 10*time.Second),
		EvidenceTimeout: getEnvAsDuration("EVIDENCE_TIMEOUT", 5*time.Second),
		LocationMaxAge:  getEnvAsDuration("LOCATION_MAX_AGE", time.Minute),
		MaxRetries:      getEnvAsInt("SYNC_MAX_RETRIES", services.DefaultMaxRetries),
		AlertNotes:      getEnv("SOS_NOTES", ""),
		UserName:        getEnv("USER_NAME", ""),

		QueueBackend:  strings.ToLower(getEnv("QUEUE_BACKEND", "file")),
		QueueFile:     getEnv("QUEUE_FILE", "data/offline_alerts.json"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
		RedisQueueKey: getEnv("REDIS_QUEUE_KEY", repositories.DefaultQueueKey),

		InterceptorStore:  strings.ToLower(getEnv("INTERCEPTOR_STORE", "sqlite")),
		SQLitePath:        getEnv("SQLITE_PATH", "data/offline_requests.db"),
		DatabaseURL:       getEnv("DATABASE_URL", "mongodb://localhost:27017/aaisaheb"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		ProbeInterval:     getEnvAsDuration("PROBE_INTERVAL", 15*time.Second),
		SyncOnStartup:     getEnvAsBool("SYNC_ON_STARTUP", true),

		EmergencyContacts: getEnv("EMERGENCY_CONTACTS", ""),
		SMSProvider:       strings.ToLower(getEnv("SMS_PROVIDER", "twilio")),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioPhoneNumber: getEnv("TWILIO_PHONE_NUMBER", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		DeviceToken:         getEnv("DEVICE_TOKEN", ""),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "")),
		LocalAPIToken:  getEnv("LOCAL_API_TOKEN", ""),
	}

	if lat, lon := os.Getenv("STATIC_LATITUDE"), os.Getenv("STATIC_LONGITUDE"); lat != "" && lon != "" {
		cfg.StaticLatitude = getEnvAsFloat("STATIC_LATITUDE", 0)
		cfg.StaticLongitude = getEnvAsFloat("STATIC_LONGITUDE", 0)
		cfg.UseStaticLocation = true
	}

	return cfg
}

// SOSConfig maps the lifecycle settings onto the service configuration.
func (c *Config) SOSConfig() services.SOSConfig {
	return services.SOSConfig{
		CountdownSteps:  c.CountdownSteps,
		CountdownUnit:   c.CountdownUnit,
		LocationTimeout: c.LocationTimeout,
		EvidenceTimeout: c.EvidenceTimeout,
		Notes:           c.AlertNotes,
	}
}

func InitRedis(cfg *Config) *redis.Client {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		// Fallback to default config
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	return redis.NewClient(opt)
}

// InitAlertQueue opens the offline alert queue for the configured backend.
// The returned close function releases backend resources.
func (c *Config) InitAlertQueue(ctx context.Context) (interfaces.AlertQueue, func(), error) {
	switch c.QueueBackend {
	case "redis":
		client := InitRedis(c)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, err
		}
		logrus.Infof("Offline alert queue backed by Redis key %s", c.RedisQueueKey)
		return repositories.NewRedisQueueRepository(client, c.RedisQueueKey), func() { client.Close() }, nil
	default:
		if c.QueueBackend != "file" {
			logrus.Warnf("Unknown queue backend %q, using file", c.QueueBackend)
		}
		repo, err := repositories.NewFileQueueRepository(c.QueueFile)
		if err != nil {
			return nil, nil, err
		}
		logrus.Infof("Offline alert queue backed by %s", repo.Path())
		return repo, func() {}, nil
	}
}

func (c *Config) UsesMongo() bool {
	return c.InterceptorStore == "mongo" || c.InterceptorStore == "mongodb"
}

// InitOfflineRequestStore opens the interception log.
func (c *Config) InitOfflineRequestStore(ctx context.Context) (interfaces.OfflineRequestStore, func(), error) {
	switch {
	case c.UsesMongo():
		db, err := database.Connect(c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		repo := repositories.NewMongoOfflineRequestRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			logrus.Errorf("Failed to create offline request indexes: %v", err)
		}
		return repo, func() { database.Disconnect() }, nil
	default:
		db, err := database.OpenSQLite(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repositories.NewOfflineRequestRepository(db), func() { database.CloseSQLite() }, nil
	}
}

// InitFallbackSender picks the SMS channel used for emergency contacts.
func (c *Config) InitFallbackSender() interfaces.SMSSender {
	switch c.SMSProvider {
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioPhoneNumber == "" {
			logrus.Warn("Twilio credentials not configured, using mock SMS sender")
			return services.NewMockSMSSender()
		}
		return services.NewTwilioSMSSender(c.TwilioAccountSID, c.TwilioAuthToken, c.TwilioPhoneNumber)
	case "mock":
		return services.NewMockSMSSender()
	default:
		logrus.Warn("Unknown SMS provider, using mock SMS sender")
		return services.NewMockSMSSender()
	}
}

// InitNotifier combines the log, the given local notifiers and, when
// configured, FCM pushes to the device.
func (c *Config) InitNotifier(local ...interfaces.Notifier) *services.MultiNotifier {
	notifier := services.NewMultiNotifier(services.NewLogNotifier())
	for _, n := range local {
		notifier.Add(n)
	}

	if c.DeviceToken == "" {
		return notifier
	}

	app, err := initializeFirebase(c)
	if err != nil {
		logrus.Errorf("Failed to initialize Firebase: %v", err)
		return notifier
	}
	client, err := app.Messaging(context.Background())
	if err != nil {
		logrus.Errorf("Failed to get FCM client: %v", err)
		return notifier
	}

	notifier.Add(services.NewPushNotifier(client, c.DeviceToken))
	logrus.Info("Push notifications enabled")
	return notifier
}

func initializeFirebase(c *Config) (*firebase.App, error) {
	ctx := context.Background()
	if c.FirebaseCredentials != "" {
		return firebase.NewApp(ctx, nil, option.WithCredentialsFile(c.FirebaseCredentials))
	}
	// Default credentials for cloud environments
	return firebase.NewApp(ctx, nil)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		logrus.Warnf("Invalid duration for %s: %q, using %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
