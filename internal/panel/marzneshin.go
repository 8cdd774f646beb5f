package panel

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sarvbot/internal/models"
	"sarvbot/internal/pkg/httpclient"
)

// Marzneshin speaks the Marzneshin REST API. Differs from Marzban in
// three ways that matter here: short-lived tokens, plural /api/users
// paths, and an expire_strategy field instead of a raw timestamp.
// Instances are shared across reconciliation goroutines; mu guards the
// token cache.
type Marzneshin struct {
	baseURL  string
	username string
	password string
	client   *httpclient.Client

	mu        sync.Mutex
	token     string
	tokenTime time.Time
}

// Marzneshin tokens expire fast; refresh every ten minutes.
const marzneshinTokenTTL = 10 * time.Minute

const (
	strategyNever      = "never"
	strategyFixedDate  = "fixed_date"
	strategyOnFirstUse = "start_on_first_use"
)

func NewMarzneshin(p *models.Panel) *Marzneshin {
	return &Marzneshin{
		baseURL:  p.URL,
		username: p.Username,
		password: p.Password,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (m *Marzneshin) Vendor() string {
	return models.PanelMarzneshin
}

func (m *Marzneshin) Authenticate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.login(ctx)
}

// login refreshes the token. Callers hold mu, making the refresh single
// flight.
func (m *Marzneshin) login(ctx context.Context) error {
	resp, err := m.client.PostForm(ctx, m.baseURL+"/api/admins/token", map[string]string{
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

func (m *Marzneshin) ensureAuth(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" || time.Since(m.tokenTime) > marzneshinTokenTTL {
		return m.login(ctx)
	}
	return nil
}

// expireStrategy derives the full strategy payload for a duration. The
// API rejects partial patches of expiry fields, so create and modify
// both send the complete strategy.
func expireStrategy(days int, onHold bool) map[string]interface{} {
	switch {
	case days <= 0:
		return map[string]interface{}{"expire_strategy": strategyNever}
	case onHold:
		return map[string]interface{}{
			"expire_strategy": strategyOnFirstUse,
			"usage_duration":  int64(days) * 86400,
		}
	default:
		return map[string]interface{}{
			"expire_strategy": strategyFixedDate,
			"expire_date":     time.Now().Add(time.Duration(days) * 24 * time.Hour).Format(time.RFC3339),
		}
	}
}

func (m *Marzneshin) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"username":   in.Username,
		"data_limit": gbToBytes(in.VolumeGB),
		"note":       in.Note,
	}
	for k, v := range expireStrategy(in.DurationDays, in.OnHold) {
		body[k] = v
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/users", body)
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

func (m *Marzneshin) GetUser(ctx context.Context, username string) (*Account, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := m.client.Get(ctx, m.baseURL+"/api/users/"+username)
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

func (m *Marzneshin) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	body := map[string]interface{}{}
	if in.VolumeGB > 0 {
		body["data_limit"] = gbToBytes(in.VolumeGB)
	}
	if in.DurationDays != 0 {
		for k, v := range expireStrategy(in.DurationDays, false) {
			body[k] = v
		}
	}

	resp, err := m.client.Put(ctx, m.baseURL+"/api/users/"+username, body)
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

func (m *Marzneshin) RemoveUser(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	resp, err := m.client.Delete(ctx, m.baseURL+"/api/users/"+username)
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

func (m *Marzneshin) RevokeSubscription(ctx context.Context, username string) (string, error) {
	if err := m.ensureAuth(ctx); err != nil {
		return "", err
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/users/"+username+"/revoke_sub", nil)
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

func (m *Marzneshin) ResetDataUsage(ctx context.Context, username string) error {
	if err := m.ensureAuth(ctx); err != nil {
		return err
	}

	resp, err := m.client.Post(ctx, m.baseURL+"/api/users/"+username+"/reset", nil)
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

func (m *Marzneshin) SystemStats(ctx context.Context) (map[string]interface{}, error) {
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

func (m *Marzneshin) toAccount(raw map[string]interface{}) *Account {
	acct := &Account{
		Username:        getString(raw, "username"),
		DataLimit:       getInt64(raw, "data_limit"),
		UsedTraffic:     getInt64(raw, "used_traffic"),
		SubscriptionURL: absolutizeURL(m.baseURL, getString(raw, "subscription_url")),
	}

	strategy := getString(raw, "expire_strategy")
	switch strategy {
	case strategyOnFirstUse:
		// Clock has not started until the account is activated.
		if !boolFromAny(raw["activated"]) {
			acct.Status = StatusOnHold
		}
		acct.ExpireAt = parseAnyTime(raw["expire_date"])
	case strategyFixedDate:
		acct.ExpireAt = parseAnyTime(raw["expire_date"])
	case strategyNever:
		acct.ExpireAt = 0
	}

	if acct.Status == "" {
		switch {
		case !boolFromAny(raw["enabled"]):
			acct.Status = StatusDisabled
		case boolFromAny(raw["data_limit_reached"]):
			acct.Status = StatusLimited
		case boolFromAny(raw["expired"]):
			acct.Status = StatusExpired
		default:
			acct.Status = canonicalStatus(getString(raw, "status"), boolFromAny(raw["is_active"]))
		}
	}
	return acct
}
