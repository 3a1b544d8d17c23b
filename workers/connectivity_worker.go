package workers

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProbeFunc reports whether the remote endpoint is reachable.
type ProbeFunc func(ctx context.Context) bool

type ConnectivityWorkerConfig struct {
	ProbeURL      string        `json:"probeUrl"`
	ProbeInterval time.Duration `json:"probeInterval"`
	ProbeTimeout  time.Duration `json:"probeTimeout"`
}

type ConnectivityWorkerStats struct {
	Probes          int64     `json:"probes"`
	FailedProbes    int64     `json:"failedProbes"`
	Restorations    int64     `json:"restorations"`
	Losses          int64     `json:"losses"`
	LastChangeAt    time.Time `json:"lastChangeAt"`
	LastProbeAt     time.Time `json:"lastProbeAt"`
	StartTime       time.Time `json:"startTime"`
	CurrentlyOnline bool      `json:"currentlyOnline"`
}

// ConnectivityWorker watches reachability of the SOS server and fires the
// restored callbacks once per offline to online transition.
type ConnectivityWorker struct {
	config   ConnectivityWorkerConfig
	probe    ProbeFunc
	notifier interfaces.Notifier

	online    bool
	callbacks []func()
	stateMu   sync.Mutex

	isRunning bool
	mutex     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats      ConnectivityWorkerStats
	statsMutex sync.RWMutex
}

func NewConnectivityWorker(config ConnectivityWorkerConfig, probe ProbeFunc, notifier interfaces.Notifier) *ConnectivityWorker {
	ctx, cancel := context.WithCancel(context.Background())

	if config.ProbeInterval <= 0 {
		config.ProbeInterval = 15 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	if probe == nil {
		probe = HTTPProbe(config.ProbeURL, &http.Client{})
	}

	return &ConnectivityWorker{
		config:   config,
		probe:    probe,
		notifier: notifier,
		online:   true,
		ctx:      ctx,
		cancel:   cancel,
		stats: ConnectivityWorkerStats{
			StartTime:       time.Now(),
			CurrentlyOnline: true,
		},
	}
}

// HTTPProbe treats any response below 500 as reachable.
func HTTPProbe(url string, client *http.Client) ProbeFunc {
	return func(ctx context.Context) bool {
		if url == "" {
			return true
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		resp, err := client.Do(req)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode < http.StatusInternalServerError
	}
}

// OnConnectivityRestored registers a callback run on every restoration.
func (cw *ConnectivityWorker) OnConnectivityRestored(callback func()) {
	cw.stateMu.Lock()
	cw.callbacks = append(cw.callbacks, callback)
	cw.stateMu.Unlock()
}

func (cw *ConnectivityWorker) Start() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return nil
	}
	cw.isRunning = true

	logrus.Info("Starting Connectivity Worker...")

	cw.wg.Add(1)
	go cw.probeLoop()

	logrus.Infof("Connectivity Worker started, probing every %s", cw.config.ProbeInterval)
	return nil
}

func (cw *ConnectivityWorker) Stop() error {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return nil
	}

	logrus.Info("Stopping Connectivity Worker...")

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Connectivity Worker stopped successfully")
	return nil
}

func (cw *ConnectivityWorker) probeLoop() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.config.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cw.Check(cw.ctx)

		case <-cw.ctx.Done():
			return
		}
	}
}

// Check runs one probe and applies the result.
func (cw *ConnectivityWorker) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, cw.config.ProbeTimeout)
	online := cw.probe(probeCtx)
	cancel()

	cw.statsMutex.Lock()
	cw.stats.Probes++
	if !online {
		cw.stats.FailedProbes++
	}
	cw.stats.LastProbeAt = time.Now()
	cw.statsMutex.Unlock()

	cw.SetOnline(online)
	return online
}

// SetOnline records an observed connectivity state. Callbacks fire only on
// an offline to online edge.
func (cw *ConnectivityWorker) SetOnline(online bool) {
	cw.stateMu.Lock()
	if cw.online == online {
		cw.stateMu.Unlock()
		return
	}
	cw.online = online
	callbacks := make([]func(), len(cw.callbacks))
	copy(callbacks, cw.callbacks)
	cw.stateMu.Unlock()

	cw.statsMutex.Lock()
	cw.stats.LastChangeAt = time.Now()
	cw.stats.CurrentlyOnline = online
	if online {
		cw.stats.Restorations++
	} else {
		cw.stats.Losses++
	}
	cw.statsMutex.Unlock()

	if !online {
		logrus.Warn("Connectivity lost")
		if cw.notifier != nil {
			cw.notifier.Notify("You are offline. Emergency features still available.", models.SeverityWarning)
		}
		return
	}

	logrus.Info("Connectivity restored")
	for _, cb := range callbacks {
		cw.wg.Add(1)
		go func(cb func()) {
			defer cw.wg.Done()
			cb()
		}(cb)
	}
}

func (cw *ConnectivityWorker) IsOnline() bool {
	cw.stateMu.Lock()
	defer cw.stateMu.Unlock()
	return cw.online
}

func (cw *ConnectivityWorker) GetStats() ConnectivityWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()
	return cw.stats
}

func (cw *ConnectivityWorker) IsRunning() bool {
	cw.mutex.RLock()
	defer cw.mutex.RUnlock()
	return cw.isRunning
}
