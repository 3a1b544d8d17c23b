package services

import (
	"aaisaheb/models"
	"aaisaheb/utils"
	"context"
	"sync"
	"time"
)

const LocationUnavailable = "Location unavailable"

// DeviceLocationProvider serves the most recent fix reported by the UI.
// CurrentLocation blocks until a fix younger than maxAge arrives or ctx ends.
type DeviceLocationProvider struct {
	mutex   sync.Mutex
	latest  *models.Location
	maxAge  time.Duration
	waiters []chan struct{}
	denied  bool
}

func NewDeviceLocationProvider(maxAge time.Duration) *DeviceLocationProvider {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &DeviceLocationProvider{maxAge: maxAge}
}

// Update records a new fix and wakes every waiting caller.
func (p *DeviceLocationProvider) Update(loc models.Location) {
	if loc.Timestamp.IsZero() {
		loc.Timestamp = time.Now()
	}

	p.mutex.Lock()
	p.latest = &loc
	p.denied = false
	waiters := p.waiters
	p.waiters = nil
	p.mutex.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// Deny marks location access as refused by the user. Callers already
// waiting for a fix return PermissionDenied.
func (p *DeviceLocationProvider) Deny() {
	p.mutex.Lock()
	p.denied = true
	waiters := p.waiters
	p.waiters = nil
	p.mutex.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

func (p *DeviceLocationProvider) removeWaiter(wait chan struct{}) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for i, w := range p.waiters {
		if w == wait {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *DeviceLocationProvider) pendingWaiters() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.waiters)
}

func (p *DeviceLocationProvider) CurrentLocation(ctx context.Context) (*models.Location, error) {
	for {
		p.mutex.Lock()
		if p.denied {
			p.mutex.Unlock()
			return nil, utils.NewPermissionDeniedError("Location")
		}
		if p.latest != nil && time.Since(p.latest.Timestamp) <= p.maxAge {
			loc := *p.latest
			p.mutex.Unlock()
			return &loc, nil
		}
		wait := make(chan struct{})
		p.waiters = append(p.waiters, wait)
		p.mutex.Unlock()

		select {
		case <-ctx.Done():
			p.removeWaiter(wait)
			return nil, utils.NewTimeoutError("Location", ctx.Err())
		case <-wait:
		}
	}
}

// StaticLocationProvider always returns a configured position.
type StaticLocationProvider struct {
	location models.Location
}

func NewStaticLocationProvider(lat, lon, accuracy float64) *StaticLocationProvider {
	return &StaticLocationProvider{location: models.Location{Latitude: lat, Longitude: lon, Accuracy: accuracy}}
}

func (p *StaticLocationProvider) CurrentLocation(ctx context.Context) (*models.Location, error) {
	loc := p.location
	loc.Timestamp = time.Now()
	return &loc, nil
}

// NoEvidenceCollector is used when no capture device is attached.
type NoEvidenceCollector struct{}

func (NoEvidenceCollector) Collect(ctx context.Context) (bool, error) {
	return false, utils.NewPermissionDeniedError("Media")
}

// FormatAddress derives the human-readable address of an alert.
func FormatAddress(loc *models.Location) string {
	if loc == nil {
		return LocationUnavailable
	}
	return utils.FormatCoordinates(loc.Latitude, loc.Longitude)
}
