package main

import (
	"aaisaheb/config"
	"aaisaheb/controllers"
	"aaisaheb/database"
	"aaisaheb/interceptor"
	"aaisaheb/interfaces"
	"aaisaheb/routes"
	"aaisaheb/services"
	"aaisaheb/utils"
	"aaisaheb/websocket"
	"aaisaheb/workers"
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	setupLogger(cfg)

	ctx := context.Background()

	// Storage
	queue, closeQueue, err := cfg.InitAlertQueue(ctx)
	if err != nil {
		logrus.Fatal("Failed to open offline alert queue: ", err)
	}
	defer closeQueue()

	offlineStore, closeStore, err := cfg.InitOfflineRequestStore(ctx)
	if err != nil {
		logrus.Fatal("Failed to open offline request log: ", err)
	}
	defer closeStore()

	// UI channel and notifications
	hub := websocket.NewHub()
	go hub.Run()
	defer hub.Stop()

	notifier := cfg.InitNotifier(hub)

	// SOS lifecycle
	submitter := services.NewSubmissionService(cfg.SubmitURL, cfg.CancelURL, cfg.APIToken, cfg.RequestTimeout, nil)

	var location interfaces.LocationProvider
	if cfg.UseStaticLocation {
		location = services.NewStaticLocationProvider(cfg.StaticLatitude, cfg.StaticLongitude, 0)
	} else {
		device := services.NewDeviceLocationProvider(cfg.LocationMaxAge)
		hub.SetLocationSink(device)
		location = device
	}

	contacts := utils.ParseContacts(cfg.EmergencyContacts)
	fallback := services.NewFallbackService(cfg.InitFallbackSender(), contacts, notifier, cfg.UserName)

	sosService := services.NewSOSService(
		submitter,
		queue,
		location,
		services.NoEvidenceCollector{},
		notifier,
		fallback,
		services.RealClock(),
		cfg.SOSConfig(),
	)
	sosService.AddObserver(hub)
	hub.SetEventHandler(services.NewTriggerService(sosService, nil, nil, nil))

	syncCoordinator := services.NewSyncCoordinator(queue, submitter, notifier, cfg.MaxRetries)

	// Edge interception
	transport := interceptor.NewTransport(http.DefaultTransport, offlineStore, nil)

	// Workers
	reconcileWorker := workers.NewReconcileWorker(transport, cfg.ReconcileSchedule, nil)
	connectivityWorker := workers.NewConnectivityWorker(workers.ConnectivityWorkerConfig{
		ProbeURL:      cfg.HealthURL,
		ProbeInterval: cfg.ProbeInterval,
	}, nil, notifier)

	connectivityWorker.OnConnectivityRestored(func() {
		if _, err := syncCoordinator.SyncNow(context.Background()); err != nil {
			logrus.Errorf("Sync after reconnect failed: %v", err)
		}
	})
	connectivityWorker.OnConnectivityRestored(func() {
		reconcileWorker.RunNow(context.Background())
	})
	// A failed submission is evidence of an outage the probe may not have seen.
	sosService.OnEndpointUnreachable(func() {
		connectivityWorker.SetOnline(false)
	})

	if err := reconcileWorker.Start(); err != nil {
		logrus.Fatal("Failed to start reconcile worker: ", err)
	}
	defer reconcileWorker.Stop()

	connectivityWorker.Start()
	defer connectivityWorker.Stop()

	if cfg.SyncOnStartup {
		go func() {
			if _, err := syncCoordinator.SyncNow(ctx); err != nil {
				logrus.Errorf("Startup sync failed: %v", err)
			}
		}()
	}

	// Routes
	target, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		logrus.Fatal("Invalid API_BASE_URL: ", err)
	}

	healthController := controllers.NewHealthController(connectivityWorker, cfg.QueueBackend, cfg.InterceptorStore)
	if cfg.UsesMongo() {
		healthController.WithLogStoreCheck(database.IsConnected)
	}

	router := routes.SetupRoutes(&routes.Controllers{
		SOS:            controllers.NewSOSController(sosService, syncCoordinator, queue, connectivityWorker),
		OfflineRequest: controllers.NewOfflineRequestController(offlineStore, reconcileWorker),
		Proxy:          controllers.NewProxyController(target, transport),
		WebSocket:      controllers.NewWebSocketController(hub),
		Health:         healthController,
	}, routes.Options{
		Environment:    cfg.Environment,
		AllowedOrigins: cfg.AllowedOrigins,
		LocalAPIToken:  cfg.LocalAPIToken,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		logrus.Info("aai Saheb SOS agent starting on port ", cfg.Port)
		logrus.Info("WebSocket endpoint: /ws")
		logrus.Info("Health Check: /health")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatal("Failed to start server: ", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Error("Server forced to shutdown: ", err)
	}

	logrus.Info("Server shutdown complete")
}

func setupLogger(cfg *config.Config) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if cfg.Environment == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogFile != "" {
		logrus.SetOutput(io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Compress:   true,
		}))
	}
}
