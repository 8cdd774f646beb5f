package panel

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"sarvbot/internal/models"
	"sarvbot/internal/pkg/httpclient"
)

// Mikrotik speaks the RouterOS REST API with basic auth. User Manager
// has no per-user data quota or expiry, so DataLimit and ExpireAt on the
// returned account are local bookkeeping only and are NOT enforced by
// the router. This is a product limitation of the vendor, accepted and
// surfaced as such, not hidden.
type Mikrotik struct {
	baseURL string
	profile string
	client  *httpclient.Client
}

func NewMikrotik(p *models.Panel) *Mikrotik {
	return &Mikrotik{
		baseURL: p.URL,
		profile: p.Inbound,
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithInsecureSkipVerify().
			WithBasicAuth(p.Username, p.Password),
	}
}

func (m *Mikrotik) Vendor() string {
	return models.PanelMikrotik
}

// Authenticate checks API reachability; basic auth needs no session.
func (m *Mikrotik) Authenticate(ctx context.Context) error {
	resp, err := m.client.Get(ctx, m.baseURL+"/rest/system/resource")
	if err != nil {
		return wrapErr(m.Vendor(), "authenticate", err)
	}
	if !resp.IsSuccess() {
		return vendorErr(m.Vendor(), "authenticate", "status %d", resp.StatusCode)
	}
	return nil
}

func (m *Mikrotik) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	body := map[string]interface{}{
		"name":     in.Username,
		"password": in.Username,
	}
	resp, err := m.client.Put(ctx, m.baseURL+"/rest/user-manager/user", body)
	if err != nil {
		return nil, wrapErr(m.Vendor(), "create user", err)
	}
	if !resp.IsSuccess() {
		return nil, vendorErr(m.Vendor(), "create user", "status %d: %s", resp.StatusCode, string(resp.Body))
	}

	if m.profile != "" {
		profResp, err := m.client.Put(ctx, m.baseURL+"/rest/user-manager/user-profile", map[string]interface{}{
			"user":    in.Username,
			"profile": m.profile,
		})
		if err != nil {
			return nil, wrapErr(m.Vendor(), "assign profile", err)
		}
		if !profResp.IsSuccess() {
			return nil, vendorErr(m.Vendor(), "assign profile", "status %d", profResp.StatusCode)
		}
	}

	// Bookkeeping values; the router does not enforce them.
	return &Account{
		Username:  in.Username,
		Status:    StatusActive,
		DataLimit: gbToBytes(in.VolumeGB),
		ExpireAt:  expireFromDays(in.DurationDays),
	}, nil
}

func (m *Mikrotik) GetUser(ctx context.Context, username string) (*Account, error) {
	user, err := m.lookup(ctx, username)
	if err != nil {
		return nil, err
	}

	status := StatusActive
	if boolFromAny(user["disabled"]) {
		status = StatusDisabled
	}
	return &Account{
		Username:    getString(user, "name"),
		Status:      status,
		UsedTraffic: m.usedTraffic(ctx, getString(user, ".id")),
	}, nil
}

// usedTraffic sums per-user upload and download via the monitor
// endpoint. Best effort: a failure reads as zero usage.
func (m *Mikrotik) usedTraffic(ctx context.Context, id string) int64 {
	if id == "" {
		return 0
	}
	resp, err := m.client.Post(ctx, m.baseURL+"/rest/user-manager/user/monitor", map[string]interface{}{
		"once": true,
		".id":  id,
	})
	if err != nil || !resp.IsSuccess() {
		return 0
	}

	var rows []map[string]interface{}
	if json.Unmarshal(resp.Body, &rows) != nil || len(rows) == 0 {
		return 0
	}
	return getInt64(rows[0], "bytes-in") + getInt64(rows[0], "bytes-out")
}

// ModifyUser cannot adjust quota or expiry; User Manager has no such
// fields. Callers needing renewal on this vendor must recreate the
// account against a different profile.
func (m *Mikrotik) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	return wrapErr(m.Vendor(), "modify user", ErrUnsupported)
}

func (m *Mikrotik) RemoveUser(ctx context.Context, username string) error {
	user, err := m.lookup(ctx, username)
	if err != nil {
		return err
	}

	id := getString(user, ".id")
	if id == "" {
		return vendorErr(m.Vendor(), "remove user", "user record has no id")
	}

	resp, err := m.client.Delete(ctx, m.baseURL+"/rest/user-manager/user/"+url.PathEscape(id))
	if err != nil {
		return wrapErr(m.Vendor(), "remove user", err)
	}
	if !resp.IsSuccess() {
		return vendorErr(m.Vendor(), "remove user", "status %d", resp.StatusCode)
	}
	return nil
}

// RevokeSubscription disables the user; there is no link to rotate.
func (m *Mikrotik) RevokeSubscription(ctx context.Context, username string) (string, error) {
	user, err := m.lookup(ctx, username)
	if err != nil {
		return "", err
	}

	id := getString(user, ".id")
	resp, err := m.client.Post(ctx, m.baseURL+"/rest/user-manager/user/set", map[string]interface{}{
		".id":      id,
		"disabled": "yes",
	})
	if err != nil {
		return "", wrapErr(m.Vendor(), "revoke subscription", err)
	}
	if !resp.IsSuccess() {
		return "", vendorErr(m.Vendor(), "revoke subscription", "status %d", resp.StatusCode)
	}
	return "User " + username + " has been disabled", nil
}

func (m *Mikrotik) ResetDataUsage(ctx context.Context, username string) error {
	return wrapErr(m.Vendor(), "reset usage", ErrUnsupported)
}

func (m *Mikrotik) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	resp, err := m.client.Get(ctx, m.baseURL+"/rest/system/resource")
	if err != nil {
		return nil, wrapErr(m.Vendor(), "system stats", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(m.Vendor(), "system stats", err)
	}
	return result, nil
}

func (m *Mikrotik) lookup(ctx context.Context, username string) (map[string]interface{}, error) {
	resp, err := m.client.Get(ctx, m.baseURL+"/rest/user-manager/user?name="+url.QueryEscape(username))
	if err != nil {
		return nil, wrapErr(m.Vendor(), "get user", err)
	}
	if !resp.IsSuccess() {
		return nil, vendorErr(m.Vendor(), "get user", "status %d", resp.StatusCode)
	}

	var users []map[string]interface{}
	if err := json.Unmarshal(resp.Body, &users); err != nil {
		return nil, wrapErr(m.Vendor(), "get user", err)
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}
