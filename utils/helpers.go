package utils

import (
	"aaisaheb/models"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const OfflineIDPrefix = "offline_"

// UUID Generation
func GenerateUUID() string {
	return uuid.New().String()
}

// OfflineAlertID returns the temporary client id given to an alert that
// has not been acknowledged by the server.
func OfflineAlertID(t time.Time) string {
	return fmt.Sprintf("%s%d", OfflineIDPrefix, t.UnixMilli())
}

func IsOfflineID(id string) bool {
	return strings.HasPrefix(id, OfflineIDPrefix)
}

// FormatCoordinates renders a position as the display address used when no
// reverse geocoder is available.
func FormatCoordinates(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// ParseContacts parses "Name:+911234567890,Other:+919876543210".
// Entries without a phone number are skipped.
func ParseContacts(raw string) []models.EmergencyContact {
	var out []models.EmergencyContact
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, phone, found := strings.Cut(entry, ":")
		if !found {
			name, phone = "", name
		}
		phone = strings.TrimSpace(phone)
		if phone == "" {
			continue
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = phone
		}
		out = append(out, models.EmergencyContact{Name: name, Phone: phone})
	}
	return out
}

// Truncate shortens s to max bytes, marking the cut with "...".
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
