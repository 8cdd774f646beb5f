package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarvbot/internal/models"
)

func marzbanTestServer(t *testing.T, authCount *int) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/admin/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.FormValue("username") != "admin" || r.FormValue("password") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if authCount != nil {
			*authCount++
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	})

	mux.HandleFunc("/api/user", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		body["status"] = "active"
		body["subscription_url"] = "/sub/abc"
		json.NewEncoder(w).Encode(body)
	})

	mux.HandleFunc("/api/user/alice", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"username":         "alice",
			"status":           "limited",
			"data_limit":       10737418240,
			"used_traffic":     10737418240,
			"expire":           time.Now().Add(48 * time.Hour).Unix(),
			"subscription_url": "/sub/alice",
		})
	})

	mux.HandleFunc("/api/user/ghost", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "User not found"})
	})

	return httptest.NewServer(mux)
}

func marzbanPanel(url string) *models.Panel {
	return &models.Panel{Code: "mz1", Type: models.PanelMarzban, URL: url, Username: "admin", Password: "secret", Status: "active"}
}

func TestMarzbanCreateUser(t *testing.T) {
	srv := marzbanTestServer(t, nil)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))
	acct, err := m.CreateUser(context.Background(), CreateUserInput{
		Username:     "user_ab12cd34_5678",
		VolumeGB:     10,
		DurationDays: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, "user_ab12cd34_5678", acct.Username)
	assert.Equal(t, StatusActive, acct.Status)
	assert.Equal(t, int64(10*1024*1024*1024), acct.DataLimit)

	wantExpire := time.Now().Add(30 * 24 * time.Hour).Unix()
	assert.InDelta(t, wantExpire, acct.ExpireAt, 5)
	assert.Equal(t, srv.URL+"/sub/abc", acct.SubscriptionURL)
}

func TestMarzbanCreateUserNeverExpires(t *testing.T) {
	srv := marzbanTestServer(t, nil)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))
	acct, err := m.CreateUser(context.Background(), CreateUserInput{Username: "u", VolumeGB: 1})
	require.NoError(t, err)
	assert.Zero(t, acct.ExpireAt)
}

func TestMarzbanGetUser(t *testing.T) {
	srv := marzbanTestServer(t, nil)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))

	acct, err := m.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, StatusLimited, acct.Status)
	assert.Equal(t, int64(10737418240), acct.DataLimit)
	assert.Zero(t, acct.Remaining())

	// Same status and quota on an immediate re-read.
	again, err := m.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, acct.Status, again.Status)
	assert.Equal(t, acct.DataLimit, again.DataLimit)
}

func TestMarzbanGetUserNotFound(t *testing.T) {
	srv := marzbanTestServer(t, nil)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))
	_, err := m.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMarzbanTokenReuse(t *testing.T) {
	var authCount int
	srv := marzbanTestServer(t, &authCount)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))
	for i := 0; i < 3; i++ {
		_, err := m.GetUser(context.Background(), "alice")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, authCount, "token must be cached across calls")
}

func TestMarzbanConcurrentAuthSingleFlight(t *testing.T) {
	var authCount int
	srv := marzbanTestServer(t, &authCount)
	defer srv.Close()

	m := NewMarzban(marzbanPanel(srv.URL))

	// One shared adapter instance, several reconciliation goroutines.
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = m.GetUser(context.Background(), "alice")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, 1, authCount, "cold token must be refreshed exactly once")
}

func TestMarzbanAuthFailureIsPanelError(t *testing.T) {
	srv := marzbanTestServer(t, nil)
	defer srv.Close()

	p := marzbanPanel(srv.URL)
	p.Password = "wrong"
	m := NewMarzban(p)

	_, err := m.GetUser(context.Background(), "alice")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, models.PanelMarzban, perr.Vendor)
}
