package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sarvbot/internal/models"
)

type suiFixture struct {
	srv     *httptest.Server
	clients []suiClient
	saves   []map[string]string
}

func newSUIFixture(t *testing.T) *suiFixture {
	f := &suiFixture{}
	mux := http.NewServeMux()

	mux.HandleFunc("/apiv2/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "obj": "session-token"})
	})

	mux.HandleFunc("/apiv2/clients", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Token") != "session-token" {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "msg": "unauthorized"})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "obj": f.clients})
	})

	mux.HandleFunc("/apiv2/save", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.saves = append(f.saves, map[string]string{
			"object": r.FormValue("object"),
			"action": r.FormValue("action"),
			"data":   r.FormValue("data"),
		})
		json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *suiFixture) adapter() *SUI {
	return NewSUI(&models.Panel{
		Type:     models.PanelSUI,
		URL:      f.srv.URL,
		Username: "admin",
		Password: "secret",
		SubLink:  "https://sub.example.com/sui",
	})
}

func TestSUICreateUser(t *testing.T) {
	f := newSUIFixture(t)
	s := f.adapter()

	acct, err := s.CreateUser(context.Background(), CreateUserInput{Username: "u9", VolumeGB: 3, DurationDays: 14})
	require.NoError(t, err)
	assert.Equal(t, StatusActive, acct.Status)
	assert.Equal(t, int64(3*1024*1024*1024), acct.DataLimit)
	assert.Equal(t, "https://sub.example.com/sui/u9", acct.SubscriptionURL)

	require.Len(t, f.saves, 1)
	assert.Equal(t, "clients", f.saves[0]["object"])
	assert.Equal(t, "new", f.saves[0]["action"])

	var cl suiClient
	require.NoError(t, json.Unmarshal([]byte(f.saves[0]["data"]), &cl))
	assert.Equal(t, "u9", cl.Name)
	assert.True(t, cl.Enable)

	var cfg map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(cl.Config), &cfg))
	assert.Contains(t, cfg, "vmess")
	assert.Contains(t, cfg, "vless")
}

func TestSUIGetUserStatuses(t *testing.T) {
	now := time.Now().Unix()
	f := newSUIFixture(t)
	f.clients = []suiClient{
		{ID: 1, Name: "ok", Enable: true, Volume: 100, Up: 10, Down: 20, Expiry: now + 86400},
		{ID: 2, Name: "off", Enable: false, Volume: 100},
		{ID: 3, Name: "full", Enable: true, Volume: 50, Up: 30, Down: 30},
		{ID: 4, Name: "old", Enable: true, Volume: 0, Expiry: now - 60},
	}

	s := f.adapter()
	ctx := context.Background()

	cases := map[string]string{
		"ok":   StatusActive,
		"off":  StatusDisabled,
		"full": StatusLimited,
		"old":  StatusExpired,
	}
	for name, want := range cases {
		acct, err := s.GetUser(ctx, name)
		require.NoError(t, err, name)
		assert.Equal(t, want, acct.Status, name)
	}

	_, err := s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSUIRemoveUserSendsID(t *testing.T) {
	f := newSUIFixture(t)
	f.clients = []suiClient{{ID: 42, Name: "bob", Enable: true}}

	s := f.adapter()
	require.NoError(t, s.RemoveUser(context.Background(), "bob"))
	require.Len(t, f.saves, 1)
	assert.Equal(t, "del", f.saves[0]["action"])
	assert.Equal(t, "42", f.saves[0]["data"])
}

func TestSUIResetDataUsage(t *testing.T) {
	f := newSUIFixture(t)
	f.clients = []suiClient{{ID: 7, Name: "carol", Enable: true, Up: 100, Down: 200, Volume: 500}}

	s := f.adapter()
	require.NoError(t, s.ResetDataUsage(context.Background(), "carol"))
	require.Len(t, f.saves, 1)
	assert.Equal(t, "edit", f.saves[0]["action"])

	var cl suiClient
	require.NoError(t, json.Unmarshal([]byte(f.saves[0]["data"]), &cl))
	assert.Zero(t, cl.Up)
	assert.Zero(t, cl.Down)
	assert.Equal(t, int64(500), cl.Volume)
}
