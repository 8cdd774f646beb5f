package panel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalStatus(t *testing.T) {
	assert.Equal(t, StatusActive, canonicalStatus("Active", false))
	assert.Equal(t, StatusOnHold, canonicalStatus("onHold", false))
	assert.Equal(t, StatusLimited, canonicalStatus(" limited ", false))
	assert.Equal(t, StatusActive, canonicalStatus("something-new", true))
	assert.Equal(t, StatusDisabled, canonicalStatus("something-new", false))
	assert.Equal(t, StatusDisabled, canonicalStatus("", false))
}

func TestParseAnyTime(t *testing.T) {
	now := time.Now().Unix()
	assert.Equal(t, now, parseAnyTime(float64(now)))
	assert.Equal(t, int64(1735689600), parseAnyTime("1735689600"))

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, ts.Unix(), parseAnyTime(ts.Format(time.RFC3339)))
	assert.Zero(t, parseAnyTime(""))
	assert.Zero(t, parseAnyTime(nil))
}

func TestAbsolutizeURL(t *testing.T) {
	assert.Equal(t, "https://p.example.com/sub/abc", absolutizeURL("https://p.example.com/", "/sub/abc"))
	assert.Equal(t, "https://other.example.com/x", absolutizeURL("https://p.example.com", "https://other.example.com/x"))
	assert.Empty(t, absolutizeURL("https://p.example.com", ""))
}

func TestAccountRemaining(t *testing.T) {
	assert.Equal(t, int64(30), (&Account{DataLimit: 100, UsedTraffic: 70}).Remaining())
	assert.Zero(t, (&Account{DataLimit: 100, UsedTraffic: 150}).Remaining())
	assert.Zero(t, (&Account{DataLimit: 0, UsedTraffic: 50}).Remaining())
}

func TestMsToUnix(t *testing.T) {
	assert.Equal(t, int64(1700000000), msToUnix(1700000000123))
	assert.Zero(t, msToUnix(0))
	assert.Zero(t, msToUnix(-30*86400*1000))
}
