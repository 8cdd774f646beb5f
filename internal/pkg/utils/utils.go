package utils

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// GBToBytes converts gigabytes to bytes (1024-based).
func GBToBytes(gb float64) int64 {
	return int64(gb * 1024 * 1024 * 1024)
}

// BytesToGB converts bytes to gigabytes (1024-based).
func BytesToGB(bytes int64) float64 {
	return float64(bytes) / (1024 * 1024 * 1024)
}

// FormatBytes renders a byte count as a human readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// RandomHex returns n random bytes hex encoded.
func RandomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(b)
}

// ServiceUsername derives the remote account name from a Telegram chat ID.
// Format: user_<md5(chatID)[:8]>_<last 4 digits of chatID>. Stable in shape,
// unique in practice because the hash input is the unique chat ID.
func ServiceUsername(chatID string) string {
	sum := md5.Sum([]byte(chatID))
	suffix := chatID
	if len(suffix) > 4 {
		suffix = suffix[len(suffix)-4:]
	}
	return "user_" + hex.EncodeToString(sum[:])[:8] + "_" + suffix
}

// ParseInt64 parses s, returning defaultVal on failure.
func ParseInt64(s string, defaultVal int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return defaultVal
	}
	return v
}

// NowUnix returns the current unix time in seconds.
func NowUnix() int64 {
	return time.Now().Unix()
}
