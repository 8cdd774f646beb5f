package panel

import (
	"strconv"
	"strings"
	"time"
)

// Shared helpers for decoding loosely typed vendor JSON.

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func toInt64(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

func getInt64(m map[string]interface{}, key string) int64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	return toInt64(v)
}

func boolFromAny(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "1" || s == "yes"
	}
	return false
}

// parseAnyTime accepts unix seconds (number or numeric string) or an
// RFC3339-ish timestamp and returns unix seconds.
func parseAnyTime(v interface{}) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.Unix()
			}
		}
	}
	return 0
}

// canonicalStatus maps a vendor status string onto the canonical set.
// Unknown states are treated as active only when explicitly enabled.
func canonicalStatus(raw string, enabled bool) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case StatusActive:
		return StatusActive
	case StatusDisabled:
		return StatusDisabled
	case StatusLimited:
		return StatusLimited
	case StatusExpired:
		return StatusExpired
	case StatusOnHold, "onhold":
		return StatusOnHold
	case StatusUnsuccessful:
		return StatusUnsuccessful
	}
	if enabled {
		return StatusActive
	}
	return StatusDisabled
}

// expireFromDays converts a day count to absolute unix seconds, 0 days
// meaning never.
func expireFromDays(days int) int64 {
	if days <= 0 {
		return 0
	}
	return time.Now().Add(time.Duration(days) * 24 * time.Hour).Unix()
}

func gbToBytes(gb float64) int64 {
	return int64(gb * 1024 * 1024 * 1024)
}

// absolutizeURL joins a possibly relative vendor link with the panel
// base URL.
func absolutizeURL(base, link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(link, "/")
}
