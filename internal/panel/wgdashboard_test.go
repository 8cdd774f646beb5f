package panel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sarvbot/internal/models"
)

func TestNewWGKeys(t *testing.T) {
	k1, err := newWGKeys()
	require.NoError(t, err)
	k2, err := newWGKeys()
	require.NoError(t, err)

	for _, s := range []string{k1.private, k1.public, k1.preshared} {
		raw, err := base64.StdEncoding.DecodeString(s)
		require.NoError(t, err)
		assert.Len(t, raw, 32)
	}

	// Private keys must be clamped.
	raw, _ := base64.StdEncoding.DecodeString(k1.private)
	assert.Zero(t, raw[0]&7)
	assert.Zero(t, raw[31]&128)
	assert.NotZero(t, raw[31]&64)

	assert.NotEqual(t, k1.public, k2.public)
}

type wgFixture struct {
	srv      *httptest.Server
	peers    []map[string]interface{}
	added    []map[string]interface{}
	jobs     []map[string]interface{}
	deleted  []map[string]interface{}
	poolFull bool
}

func newWGFixture(t *testing.T) *wgFixture {
	f := &wgFixture{}
	mux := http.NewServeMux()

	requireKey := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("wg-dashboard-apikey") != "api-key-1" {
			w.WriteHeader(http.StatusForbidden)
			return false
		}
		return true
	}

	mux.HandleFunc("/api/getWireguardConfigurationInfo", func(w http.ResponseWriter, r *http.Request) {
		if !requireKey(w, r) {
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data": map[string]interface{}{
				"configurationPeers": f.peers,
			},
		})
	})

	mux.HandleFunc("/api/getAvailableIPs/", func(w http.ResponseWriter, r *http.Request) {
		if !requireKey(w, r) {
			return
		}
		data := []string{"10.8.0.5/32", "10.8.0.6/32"}
		if f.poolFull {
			data = nil
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"status": true, "data": data})
	})

	mux.HandleFunc("/api/addPeers/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.added = append(f.added, body)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": true})
	})

	mux.HandleFunc("/api/savePeerScheduleJob", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.jobs = append(f.jobs, body)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": true})
	})

	mux.HandleFunc("/api/downloadPeer/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": true,
			"data":   map[string]string{"file": "[Interface]\nPrivateKey = x\n", "fileName": "peer.conf"},
		})
	})

	mux.HandleFunc("/api/deletePeers/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.deleted = append(f.deleted, body)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": true})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *wgFixture) adapter() *WGDashboard {
	return NewWGDashboard(&models.Panel{
		Type:     models.PanelWGDashboard,
		URL:      f.srv.URL,
		Password: "api-key-1",
		Inbound:  "wg0",
	}, zap.NewNop())
}

func TestWGDashboardCreateUser(t *testing.T) {
	f := newWGFixture(t)
	wg := f.adapter()

	acct, err := wg.CreateUser(context.Background(), CreateUserInput{Username: "peer1", VolumeGB: 25, DurationDays: 30})
	require.NoError(t, err)

	assert.Equal(t, StatusActive, acct.Status)
	assert.Equal(t, int64(25*1024*1024*1024), acct.DataLimit)
	assert.Contains(t, acct.SubscriptionURL, "[Interface]")

	require.Len(t, f.added, 1)
	assert.Equal(t, "peer1", f.added[0]["name"])
	assert.Equal(t, []interface{}{"10.8.0.5/32"}, f.added[0]["allowed_ips"])
	assert.NotEmpty(t, f.added[0]["public_key"])
	assert.NotEmpty(t, f.added[0]["preshared_key"])

	// One job per enforcement dimension.
	require.Len(t, f.jobs, 2)
	fields := []string{}
	for _, j := range f.jobs {
		job := j["Job"].(map[string]interface{})
		fields = append(fields, job["Field"].(string))
		assert.Equal(t, "restrict", job["Action"])
	}
	assert.ElementsMatch(t, []string{"date", "total_data"}, fields)
}

func TestWGDashboardCreateUserPoolExhausted(t *testing.T) {
	f := newWGFixture(t)
	f.poolFull = true

	_, err := f.adapter().CreateUser(context.Background(), CreateUserInput{Username: "peer1", VolumeGB: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no available IPs")
	assert.Empty(t, f.added)
}

func TestWGDashboardGetUser(t *testing.T) {
	f := newWGFixture(t)
	f.peers = []map[string]interface{}{
		{"name": "peer1", "public_key": "pk1", "total_data": 25.0, "total_data_usage": 5.5},
	}

	acct, err := f.adapter().GetUser(context.Background(), "peer1")
	require.NoError(t, err)
	assert.Equal(t, StatusActive, acct.Status)
	assert.Equal(t, int64(25*1024*1024*1024), acct.DataLimit)
	assert.Equal(t, gbToBytes(5.5), acct.UsedTraffic)

	_, err = f.adapter().GetUser(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestWGDashboardRemoveUser(t *testing.T) {
	f := newWGFixture(t)
	f.peers = []map[string]interface{}{
		{"name": "peer1", "public_key": "pk1"},
	}

	require.NoError(t, f.adapter().RemoveUser(context.Background(), "peer1"))
	require.Len(t, f.deleted, 1)
	assert.Equal(t, []interface{}{"pk1"}, f.deleted[0]["peers"])
}
