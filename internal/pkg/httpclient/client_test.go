package httpclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPreservesStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"ok": true}`))
	}))
	defer srv.Close()

	c := New()
	ctx := context.Background()

	resp, err := c.Get(ctx, srv.URL+"/found")
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.False(t, resp.IsNotFound())
	assert.JSONEq(t, `{"ok": true}`, string(resp.Body))

	resp, err = c.Get(ctx, srv.URL+"/missing")
	require.NoError(t, err, "a 404 is an answer, not a transport failure")
	assert.True(t, resp.IsNotFound())
	assert.False(t, resp.IsSuccess())
}

func TestAuthDecorations(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New().
		WithBearerToken("tok-1").
		WithHeader("wg-dashboard-apikey", "key-1").
		WithCookie("session", "abc")

	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-1", got.Get("Authorization"))
	assert.Equal(t, "key-1", got.Get("wg-dashboard-apikey"))
	assert.Contains(t, got.Get("Cookie"), "session=abc")
}

func TestPostForm(t *testing.T) {
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user = r.FormValue("username")
		pass = r.FormValue("password")
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "s1"})
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	resp, err := New().PostForm(context.Background(), srv.URL, map[string]string{
		"username": "admin",
		"password": "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
	assert.Equal(t, "secret", pass)

	// Session cookies from the reply are exposed to the caller.
	require.Len(t, resp.Cookies, 1)
	assert.Equal(t, "sid", resp.Cookies[0].Name)
}

func TestPostJSONBody(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := New().Post(context.Background(), srv.URL, map[string]interface{}{"name": "u1"})
	require.NoError(t, err)
	assert.Equal(t, "u1", body["name"])
}
