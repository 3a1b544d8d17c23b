package controllers

import (
	"aaisaheb/models"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const Version = "1.0.0"

type HealthController struct {
	startTime    time.Time
	connectivity ConnectivityStatus
	queueBackend string
	logBackend   string
	logAlive     func() bool
}

func NewHealthController(connectivity ConnectivityStatus, queueBackend, logBackend string) *HealthController {
	return &HealthController{
		startTime:    time.Now(),
		connectivity: connectivity,
		queueBackend: queueBackend,
		logBackend:   logBackend,
	}
}

// WithLogStoreCheck makes the health check report the interception log
// as unreachable (and the agent as degraded) when alive returns false.
func (hc *HealthController) WithLogStoreCheck(alive func() bool) *HealthController {
	hc.logAlive = alive
	return hc
}

func (hc *HealthController) HealthCheck(c *gin.Context) {
	status := "healthy"
	upstream := "reachable"
	if hc.connectivity != nil && !hc.connectivity.IsOnline() {
		upstream = "unreachable"
	}

	logBackend := hc.logBackend
	if hc.logAlive != nil && !hc.logAlive() {
		logBackend += " (unreachable)"
		status = "degraded"
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services: map[string]string{
			"upstream":        upstream,
			"alertQueue":      hc.queueBackend,
			"interceptionLog": logBackend,
		},
		Version: Version,
		Uptime:  time.Since(hc.startTime).Round(time.Second).String(),
	})
}
