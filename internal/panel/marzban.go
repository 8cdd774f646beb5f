package panel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sarvbot/internal/models"
	"sarvbot/internal/pkg/httpclient"
)

// Marzban speaks the Marzban REST API: bearer token from a form POST,
// singular /api/user resource paths, absolute unix-second expiry.
// Instances are shared across reconciliation goroutines; mu guards the
// token cache.
type Marzban struct {
	baseURL  string
	username string
	password string
	client   *httpclient.Client

	mu        sync.Mutex
	token     string
	tokenTime time.Time
}

// Token lifetime is about an hour server side; refresh a little early.
const marzbanTokenTTL = 50 * time.Minute

func NewMarzban(p *models.Panel) *Marzban {
	return &Marzban{
		baseURL:  p.URL,
		username: p.Username,
		password: p.Password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (m *Marzban) Vendor() string {
	return models.PanelMarzban
}

func (m *Marzban) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx)
}

// login refreshes the token. Callers hold mu, which also makes the
// refresh single flight: concurrent batch goroutines hitting an expired
// token produce one login, not a stampede.
func (m *Marzban) login(ctx context.Context) error {
	resp, err := m.client.PostForm(ctx, m.baseURL+"/api/admin/token", map[string]string{
		"username": m.username,
		"password": m.password,
	})
	if err != nil {
		return wrapErr(m.Vendor(), "authenticate", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(m.Vendor(), "authenticate", err)
	}

	token, ok := result["access_token"].(string)
	if !ok || token == "" {
		return vendorErr(m.Vendor(), "authenticate", "no access_token in response")
	}

	m.token = token
	m.tokenTime = time.Now()
	m.client = m.client.WithBearerToken(token)
	return nil
}

func (m *Marzban) ensureAuth(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || time.Since(m.tokenTime) > marzbanTokenTTL {
		return m.login(ctx)
	}
	return nil
}

func (m *Marzban) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"username":   in.Username,
		"status":     "active",
		"data_limit": gbToBytes(in.VolumeGB),
		"expire":     expireFromDays(in.DurationDays),
		"note":       in.Note,
		"proxies":    map[string]interface{}{"vless": map[string]interface{}{}},
	}
	if in.OnHold && in.DurationDays > 0 {
		body["status"] = "on_hold"
		body["expire"] = nil
		body["on_hold_expire_duration"] = int64(in.DurationDays) * 86400
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user", body)
	if err != nil {
		return nil, wrapErr(m.Vendor(), "create user", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, wrapErr(m.Vendor(), "create user", err)
	}
	if !resp.IsSuccess() {
		return nil, vendorErr(m.Vendor(), "create user", "%s", detailOf(raw))
	}

	return m.toAccount(raw), nil
}

func (m *Marzban) GetUser(ctx context.Context, username string) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/user/"+username)
	if err != nil {
		return nil, wrapErr(m.Vendor(), "get user", err)
	}
	if resp.IsNotFound() {
		return nil, ErrUserNotFound
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, wrapErr(m.Vendor(), "get user", err)
	}
	if !resp.IsSuccess() {
		return nil, vendorErr(m.Vendor(), "get user", "%s", detailOf(raw))
	}

	return m.toAccount(raw), nil
}

func (m *Marzban) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	body := map[string]interface{}{}
	if in.VolumeGB > 0 {
		body["data_limit"] = gbToBytes(in.VolumeGB)
	}
	if in.DurationDays > 0 {
		body["expire"] = expireFromDays(in.DurationDays)
	}

	resp, err := m.client.Put(ctx, m.baseURL+"/api/user/"+username, body)
	if err != nil {
		return wrapErr(m.Vendor(), "modify user", err)
	}
	if resp.IsNotFound() {
		return ErrUserNotFound
	}
	if !resp.IsSuccess() {
		return vendorErr(m.Vendor(), "modify user", "status %d", resp.StatusCode)
	}
	return nil
}

func (m *Marzban) RemoveUser(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	resp, err := m.client.Delete(ctx, m.baseURL+"/api/user/"+username)
	if err != nil {
		return wrapErr(m.Vendor(), "remove user", err)
	}
	if resp.IsNotFound() {
		return ErrUserNotFound
	}
	if !resp.IsSuccess() {
		return vendorErr(m.Vendor(), "remove user", "status %d", resp.StatusCode)
	}
	return nil
}

func (m *Marzban) RevokeSubscription(ctx context.Context, username string) (string, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return "", err
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user/"+username+"/revoke_sub", nil)
	if err != nil {
		return "", wrapErr(m.Vendor(), "revoke subscription", err)
	}
	if resp.IsNotFound() {
		return "", ErrUserNotFound
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return "", wrapErr(m.Vendor(), "revoke subscription", err)
	}
	return absolutizeURL(m.baseURL, getString(raw, "subscription_url")), nil
}

func (m *Marzban) ResetDataUsage(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/user/"+username+"/reset", nil)
	if err != nil {
		return wrapErr(m.Vendor(), "reset usage", err)
	}
	if resp.IsNotFound() {
		return ErrUserNotFound
	}
	if !resp.IsSuccess() {
		return vendorErr(m.Vendor(), "reset usage", "status %d", resp.StatusCode)
	}
	return nil
}

func (m *Marzban) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/system")
	if err != nil {
		return nil, wrapErr(m.Vendor(), "system stats", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(m.Vendor(), "system stats", err)
	}
	return result, nil
}

func (m *Marzban) toAccount(raw map[string]interface{}) *Account {
	status := canonicalStatus(getString(raw, "status"), false)
	return &Account{
		Username:        getString(raw, "username"),
		Status:          status,
		DataLimit:       getInt64(raw, "data_limit"),
		UsedTraffic:     getInt64(raw, "used_traffic"),
		ExpireAt:        getInt64(raw, "expire"),
		SubscriptionURL: absolutizeURL(m.baseURL, getString(raw, "subscription_url")),
	}
}

func detailOf(raw map[string]interface{}) string {
	if d := getString(raw, "detail"); d != "" {
		return d
	}
	return "unexpected response"
}
