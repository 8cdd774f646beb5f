package panel

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"sarvbot/internal/models"
	"sarvbot/internal/pkg/httpclient"
	"sarvbot/internal/pkg/utils"
)

// XUI speaks the 3x-ui/x-ui API. Authentication is a form login whose
// session cookie lives about an hour. Client definitions are stored as a
// JSON string inside the parent inbound's settings field, so every
// modification is fetch, decode, replace, re-encode, send. Instances
// are shared across reconciliation goroutines; mu guards the session
// state.
type XUI struct {
	baseURL   string
	username  string
	password  string
	subLink   string
	inboundID int
	client    *httpclient.Client

	mu        sync.Mutex
	loginTime time.Time
	loggedIn  bool
}

const xuiSessionTTL = 50 * time.Minute

// Negative expiry beyond this many milliseconds marks a
// start-on-first-use client.
const xuiOnHoldThresholdMS = -10000

type xuiClient struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	TotalGB    int64  `json:"totalGB"`
	ExpiryTime int64  `json:"expiryTime"`
	Enable     bool   `json:"enable"`
	SubID      string `json:"subId,omitempty"`
	Flow       string `json:"flow,omitempty"`
	LimitIP    int    `json:"limitIp,omitempty"`
}

type xuiInbound struct {
	ID          int                      `json:"id"`
	Settings    string                   `json:"settings"`
	ClientStats []map[string]interface{} `json:"clientStats"`
}

func NewXUI(p *models.Panel) *XUI {
	inboundID, _ := strconv.Atoi(p.Inbound)
	return &XUI{
		baseURL:   p.URL,
		username:  p.Username,
		password:  p.Password,
		subLink:   p.SubLink,
		inboundID: inboundID,
		client:    httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (x *XUI) Vendor() string {
	return models.PanelXUI
}

func (x *XUI) Authenticate(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.login(ctx)
}

// login establishes a fresh session. Callers hold mu, making the
// refresh single flight.
func (x *XUI) login(ctx context.Context) error {
	resp, err := x.client.PostForm(ctx, x.baseURL+"/login", map[string]string{
		"username": x.username,
		"password": x.password,
	})
	if err != nil {
		return wrapErr(x.Vendor(), "authenticate", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(x.Vendor(), "authenticate", err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(x.Vendor(), "authenticate", "login rejected: %s", getString(result, "msg"))
	}

	// Drop the previous session cookie so requests never carry a stale
	// one next to the fresh one.
	x.client = x.client.ClearCookies()
	for _, c := range resp.Cookies {
		x.client = x.client.WithCookie(c.Name, c.Value)
	}
	x.loggedIn = true
	x.loginTime = time.Now()
	return nil
}

func (x *XUI) ensureAuth(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if !x.loggedIn || time.Since(x.loginTime) > xuiSessionTTL {
		return x.login(ctx)
	}
	return nil
}

func (x *XUI) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	if err := x.ensureAuth(ctx); err != nil {
		return nil, err
	}

	expiryMS := int64(0)
	if in.DurationDays > 0 {
		if in.OnHold {
			expiryMS = -int64(in.DurationDays) * 86400 * 1000
		} else {
			expiryMS = time.Now().Add(time.Duration(in.DurationDays)*24*time.Hour).UnixMilli()
		}
	}

	cl := xuiClient{
		ID:         uuid.NewString(),
		Email:      in.Username,
		TotalGB:    gbToBytes(in.VolumeGB),
		ExpiryTime: expiryMS,
		Enable:     true,
		SubID:      utils.RandomHex(8),
	}

	settings, err := json.Marshal(map[string]interface{}{"clients": []xuiClient{cl}})
	if err != nil {
		return nil, wrapErr(x.Vendor(), "create user", err)
	}

	resp, err := x.client.Post(ctx, x.baseURL+"/panel/api/inbounds/addClient", map[string]interface{}{
		"id":       x.inboundID,
		"settings": string(settings),
	})
	if err != nil {
		return nil, wrapErr(x.Vendor(), "create user", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(x.Vendor(), "create user", err)
	}
	if !boolFromAny(result["success"]) {
		return nil, vendorErr(x.Vendor(), "create user", "%s", getString(result, "msg"))
	}

	status := StatusActive
	if cl.ExpiryTime < xuiOnHoldThresholdMS {
		status = StatusOnHold
	}
	return &Account{
		Username:        in.Username,
		Status:          status,
		DataLimit:       cl.TotalGB,
		ExpireAt:        msToUnix(cl.ExpiryTime),
		SubscriptionURL: x.subscriptionURL(cl.SubID),
	}, nil
}

func (x *XUI) GetUser(ctx context.Context, username string) (*Account, error) {
	_, cl, stats, err := x.findClient(ctx, username)
	if err != nil {
		return nil, err
	}
	return x.toAccount(cl, stats), nil
}

func (x *XUI) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	inbound, cl, _, err := x.findClient(ctx, username)
	if err != nil {
		return err
	}

	if in.VolumeGB > 0 {
		cl.TotalGB = gbToBytes(in.VolumeGB)
	}
	if in.DurationDays > 0 {
		cl.ExpiryTime = time.Now().Add(time.Duration(in.DurationDays) * 24 * time.Hour).UnixMilli()
	}
	return x.updateClient(ctx, inbound.ID, cl)
}

func (x *XUI) RemoveUser(ctx context.Context, username string) error {
	inbound, cl, _, err := x.findClient(ctx, username)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/panel/api/inbounds/%d/delClient/%s", x.baseURL, inbound.ID, cl.ID)
	resp, err := x.client.Post(ctx, url, nil)
	if err != nil {
		return wrapErr(x.Vendor(), "remove user", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(x.Vendor(), "remove user", err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(x.Vendor(), "remove user", "%s", getString(result, "msg"))
	}
	return nil
}

// RevokeSubscription disables the client. Subscription links on x-ui are
// derived from the stable subId, so there is nothing to rotate; the
// returned value is a status string.
func (x *XUI) RevokeSubscription(ctx context.Context, username string) (string, error) {
	inbound, cl, _, err := x.findClient(ctx, username)
	if err != nil {
		return "", err
	}

	cl.Enable = false
	if err := x.updateClient(ctx, inbound.ID, cl); err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s has been disabled", username), nil
}

func (x *XUI) ResetDataUsage(ctx context.Context, username string) error {
	inbound, _, _, err := x.findClient(ctx, username)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/panel/api/inbounds/%d/resetClientTraffic/%s", x.baseURL, inbound.ID, username)
	resp, err := x.client.Post(ctx, url, nil)
	if err != nil {
		return wrapErr(x.Vendor(), "reset usage", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(x.Vendor(), "reset usage", err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(x.Vendor(), "reset usage", "%s", getString(result, "msg"))
	}
	return nil
}

func (x *XUI) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	if err := x.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := x.client.Post(ctx, x.baseURL+"/server/status", nil)
	if err != nil {
		return nil, wrapErr(x.Vendor(), "system stats", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(x.Vendor(), "system stats", err)
	}
	return result, nil
}

// findClient scans every inbound because x-ui has no lookup by email.
func (x *XUI) findClient(ctx context.Context, username string) (*xuiInbound, *xuiClient, map[string]interface{}, error) {
	inbounds, err := x.listInbounds(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	for i := range inbounds {
		inbound := &inbounds[i]
		var settings struct {
			Clients []xuiClient `json:"clients"`
		}
		if err := json.Unmarshal([]byte(inbound.Settings), &settings); err != nil {
			continue
		}
		for j := range settings.Clients {
			if settings.Clients[j].Email != username {
				continue
			}
			var stats map[string]interface{}
			for _, st := range inbound.ClientStats {
				if getString(st, "email") == username {
					stats = st
					break
				}
			}
			return inbound, &settings.Clients[j], stats, nil
		}
	}
	return nil, nil, nil, ErrUserNotFound
}

func (x *XUI) listInbounds(ctx context.Context) ([]xuiInbound, error) {
	if err := x.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := x.client.Get(ctx, x.baseURL+"/panel/api/inbounds/list")
	if err != nil {
		return nil, wrapErr(x.Vendor(), "list inbounds", err)
	}

	var result struct {
		Success bool         `json:"success"`
		Msg     string       `json:"msg"`
		Obj     []xuiInbound `json:"obj"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(x.Vendor(), "list inbounds", err)
	}
	if !result.Success {
		return nil, vendorErr(x.Vendor(), "list inbounds", "%s", result.Msg)
	}
	return result.Obj, nil
}

// updateClient re-sends the whole client object inside a fresh settings
// blob, keyed by the client UUID.
func (x *XUI) updateClient(ctx context.Context, inboundID int, cl *xuiClient) error {
	settings, err := json.Marshal(map[string]interface{}{"clients": []xuiClient{*cl}})
	if err != nil {
		return wrapErr(x.Vendor(), "modify user", err)
	}

	resp, err := x.client.Post(ctx, x.baseURL+"/panel/api/inbounds/updateClient/"+cl.ID, map[string]interface{}{
		"id":       inboundID,
		"settings": string(settings),
	})
	if err != nil {
		return wrapErr(x.Vendor(), "modify user", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(x.Vendor(), "modify user", err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(x.Vendor(), "modify user", "%s", getString(result, "msg"))
	}
	return nil
}

func (x *XUI) toAccount(cl *xuiClient, stats map[string]interface{}) *Account {
	var used, total int64
	if stats != nil {
		used = getInt64(stats, "up") + getInt64(stats, "down")
		total = getInt64(stats, "total")
	}
	if total == 0 {
		total = cl.TotalGB
	}

	acct := &Account{
		Username:        cl.Email,
		UsedTraffic:     used,
		DataLimit:       total,
		ExpireAt:        msToUnix(cl.ExpiryTime),
		SubscriptionURL: x.subscriptionURL(cl.SubID),
	}

	nowMS := time.Now().UnixMilli()
	switch {
	case !cl.Enable:
		acct.Status = StatusDisabled
	case cl.ExpiryTime < xuiOnHoldThresholdMS:
		acct.Status = StatusOnHold
	case total > 0 && used >= total:
		acct.Status = StatusLimited
	case cl.ExpiryTime > 0 && cl.ExpiryTime <= nowMS:
		acct.Status = StatusExpired
	default:
		acct.Status = StatusActive
	}
	return acct
}

func (x *XUI) subscriptionURL(subID string) string {
	if x.subLink == "" || subID == "" {
		return ""
	}
	return absolutizeURL(x.subLink, subID)
}

func msToUnix(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return ms / 1000
}
