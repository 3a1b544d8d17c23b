package interceptor

import (
	"aaisaheb/interfaces"
	"aaisaheb/models"
	"aaisaheb/utils"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

var DefaultPatterns = []string{"/activate_sos", "/api/sos/activate"}

const (
	offlineStoredMessage = "SOS alert stored offline and will be sent when connection is restored"
	offlineStoreFailed   = "Failed to store offline SOS data"
	reconcileBatchSize   = 100
)

// Transport wraps a base RoundTripper. Failed submission requests are logged
// to the offline store and answered with a synthesized offline response.
type Transport struct {
	base     http.RoundTripper
	store    interfaces.OfflineRequestStore
	patterns []string
	now      func() time.Time
}

func NewTransport(base http.RoundTripper, store interfaces.OfflineRequestStore, patterns []string) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}
	return &Transport{
		base:     base,
		store:    store,
		patterns: patterns,
		now:      time.Now,
	}
}

// Matches reports whether a request is an observed SOS submission.
func (t *Transport) Matches(req *http.Request) bool {
	if req.Method != http.MethodPost || req.URL == nil {
		return false
	}
	for _, p := range t.patterns {
		if strings.Contains(req.URL.Path, p) {
			return true
		}
	}
	return false
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	observed := t.Matches(req)

	var payload []byte
	if observed && req.Body != nil {
		data, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
		payload = data
		req.Body = io.NopCloser(bytes.NewReader(payload))
		req.ContentLength = int64(len(payload))
	}

	resp, err := t.base.RoundTrip(req)
	if err == nil {
		return resp, nil
	}

	if !observed {
		logrus.WithFields(logrus.Fields{
			"url":   req.URL.String(),
			"error": err,
		}).Debug("Upstream unreachable")
		return jsonResponse(req, http.StatusServiceUnavailable, map[string]interface{}{
			"error":   "Offline",
			"message": "Request cannot be completed offline",
		}), nil
	}

	return t.storeOffline(req, payload, err), nil
}

func (t *Transport) storeOffline(req *http.Request, payload []byte, cause error) *http.Response {
	record := &models.OfflineRequest{
		URL:         req.URL.String(),
		Method:      req.Method,
		ContentType: req.Header.Get("Content-Type"),
		Payload:     payload,
		Timestamp:   t.now(),
		LastError:   utils.Truncate(cause.Error(), 512),
	}

	if err := t.store.Create(req.Context(), record); err != nil {
		logrus.WithFields(logrus.Fields{
			"url":   record.URL,
			"error": err,
		}).Error("Failed to store offline SOS request")
		return jsonResponse(req, http.StatusInternalServerError, models.SubmitAlertResponse{
			Success: false,
			Offline: true,
			Error:   offlineStoreFailed,
		})
	}

	logrus.WithFields(logrus.Fields{
		"recordId": record.ID,
		"url":      record.URL,
	}).Info("SOS request stored offline")

	return jsonResponse(req, http.StatusOK, models.SubmitAlertResponse{
		Success: true,
		Offline: true,
		AlertID: utils.OfflineAlertID(t.now()),
		Message: offlineStoredMessage,
	})
}

// Reconcile replays unsynced records through the base transport in timestamp
// order. Delivered records are marked synced and kept.
func (t *Transport) Reconcile(ctx context.Context) (*models.ReconcileResult, error) {
	result := &models.ReconcileResult{RanAt: t.now()}

	records, err := t.store.ListUnsynced(ctx, reconcileBatchSize)
	if err != nil {
		return result, err
	}
	result.Scanned = len(records)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := t.replay(ctx, record); err != nil {
			result.Failed++
			if ferr := t.store.RecordFailure(ctx, record.ID, err.Error()); ferr != nil {
				logrus.WithError(ferr).Warn("Failed to record replay failure")
			}
			logrus.WithFields(logrus.Fields{
				"recordId": record.ID,
				"error":    err,
			}).Warn("Offline SOS request replay failed")
			continue
		}
		if err := t.store.MarkSynced(ctx, record.ID, t.now()); err != nil {
			result.Failed++
			logrus.WithError(err).Error("Failed to mark offline request synced")
			continue
		}
		result.Synced++
		logrus.WithField("recordId", record.ID).Info("Offline SOS request synced")
	}

	return result, nil
}

func (t *Transport) replay(ctx context.Context, record models.OfflineRequest) error {
	method := record.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, record.URL, bytes.NewReader(record.Payload))
	if err != nil {
		return err
	}
	if record.ContentType != "" {
		req.Header.Set("Content-Type", record.ContentType)
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upstream returned %s", resp.Status)
	}
	return nil
}

func jsonResponse(req *http.Request, status int, body interface{}) *http.Response {
	data, _ := json.Marshal(body)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
		Request:       req,
	}
}
