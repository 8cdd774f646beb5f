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
)

// SUI speaks the s-ui API. Login yields a session token attached as a
// Token header. All writes go through one form endpoint, /apiv2/save,
// with an object/action pair; edits re-send the full client object.
// Instances are shared across reconciliation goroutines; mu guards the
// session state.
type SUI struct {
	baseURL  string
	username string
	password string
	subLink  string
	client   *httpclient.Client

	mu        sync.Mutex
	loginTime time.Time
	token     string
}

const suiSessionTTL = 50 * time.Minute

type suiClient struct {
	ID     int64  `json:"id,omitempty"`
	Enable bool   `json:"enable"`
	Name   string `json:"name"`
	Config string `json:"config"`
	Volume int64  `json:"volume"`
	Expiry int64  `json:"expiry"`
	Up     int64  `json:"up"`
	Down   int64  `json:"down"`
	Desc   string `json:"desc,omitempty"`
}

func NewSUI(p *models.Panel) *SUI {
	return &SUI{
		baseURL:  p.URL,
		username: p.Username,
		password: p.Password,
		subLink:  p.SubLink,
		client:   httpclient.New().WithTimeout(30 * time.Second).WithInsecureSkipVerify(),
	}
}

func (s *SUI) Vendor() string {
	return models.PanelSUI
}

func (s *SUI) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(ctx)
}

// login establishes a fresh session. Callers hold mu, making the
// refresh single flight.
func (s *SUI) login(ctx context.Context) error {
	resp, err := s.client.PostForm(ctx, s.baseURL+"/apiv2/login", map[string]string{
		"user": s.username,
		"pass": s.password,
	})
	if err != nil {
		return wrapErr(s.Vendor(), "authenticate", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(s.Vendor(), "authenticate", err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(s.Vendor(), "authenticate", "login rejected: %s", getString(result, "msg"))
	}

	token := getString(result, "obj")
	if token == "" {
		// Some versions hand the session back as a cookie instead. Drop
		// the previous session cookie before storing the fresh one.
		s.client = s.client.ClearCookies()
		for _, c := range resp.Cookies {
			s.client = s.client.WithCookie(c.Name, c.Value)
		}
	} else {
		s.token = token
		s.client = s.client.WithHeader("Token", token)
	}
	s.loginTime = time.Now()
	return nil
}

func (s *SUI) ensureAuth(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loginTime.IsZero() || time.Since(s.loginTime) > suiSessionTTL {
		return s.login(ctx)
	}
	return nil
}

func (s *SUI) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	if err := s.ensureAuth(ctx); err != nil {
		return nil, err
	}

	cfg, err := json.Marshal(map[string]interface{}{
		"mixed": map[string]interface{}{
			"username": in.Username,
			"password": uuid.NewString(),
		},
		"vmess": map[string]interface{}{"id": uuid.NewString()},
		"vless": map[string]interface{}{"id": uuid.NewString(), "flow": ""},
	})
	if err != nil {
		return nil, wrapErr(s.Vendor(), "create user", err)
	}

	cl := suiClient{
		Enable: true,
		Name:   in.Username,
		Config: string(cfg),
		Volume: gbToBytes(in.VolumeGB),
		Expiry: expireFromDays(in.DurationDays),
		Desc:   in.Note,
	}
	if err := s.save(ctx, "new", cl); err != nil {
		return nil, err
	}

	return &Account{
		Username:        in.Username,
		Status:          StatusActive,
		DataLimit:       cl.Volume,
		ExpireAt:        cl.Expiry,
		SubscriptionURL: s.subscriptionURL(in.Username),
	}, nil
}

func (s *SUI) GetUser(ctx context.Context, username string) (*Account, error) {
	cl, err := s.findClient(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.toAccount(cl), nil
}

func (s *SUI) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	cl, err := s.findClient(ctx, username)
	if err != nil {
		return err
	}

	if in.VolumeGB > 0 {
		cl.Volume = gbToBytes(in.VolumeGB)
	}
	if in.DurationDays > 0 {
		cl.Expiry = expireFromDays(in.DurationDays)
	}
	return s.save(ctx, "edit", *cl)
}

func (s *SUI) RemoveUser(ctx context.Context, username string) error {
	cl, err := s.findClient(ctx, username)
	if err != nil {
		return err
	}

	resp, err := s.client.PostForm(ctx, s.baseURL+"/apiv2/save", map[string]string{
		"object": "clients",
		"action": "del",
		"data":   strconv.FormatInt(cl.ID, 10),
	})
	if err != nil {
		return wrapErr(s.Vendor(), "remove user", err)
	}
	return s.checkSave(resp, "remove user")
}

// RevokeSubscription disables the client and reports it as a status
// string; s-ui links are derived from the stable client name.
func (s *SUI) RevokeSubscription(ctx context.Context, username string) (string, error) {
	cl, err := s.findClient(ctx, username)
	if err != nil {
		return "", err
	}

	cl.Enable = false
	if err := s.save(ctx, "edit", *cl); err != nil {
		return "", err
	}
	return fmt.Sprintf("User %s has been disabled", username), nil
}

func (s *SUI) ResetDataUsage(ctx context.Context, username string) error {
	cl, err := s.findClient(ctx, username)
	if err != nil {
		return err
	}

	cl.Up = 0
	cl.Down = 0
	return s.save(ctx, "edit", *cl)
}

func (s *SUI) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	if err := s.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/apiv2/status")
	if err != nil {
		return nil, wrapErr(s.Vendor(), "system stats", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(s.Vendor(), "system stats", err)
	}
	return result, nil
}

// findClient scans the full client list; s-ui has no lookup by name.
func (s *SUI) findClient(ctx context.Context, username string) (*suiClient, error) {
	if err := s.ensureAuth(ctx); err != nil {
		return nil, err
	}

	resp, err := s.client.Get(ctx, s.baseURL+"/apiv2/clients")
	if err != nil {
		return nil, wrapErr(s.Vendor(), "list clients", err)
	}

	var result struct {
		Success bool        `json:"success"`
		Msg     string      `json:"msg"`
		Obj     []suiClient `json:"obj"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(s.Vendor(), "list clients", err)
	}
	if !result.Success {
		return nil, vendorErr(s.Vendor(), "list clients", "%s", result.Msg)
	}

	for i := range result.Obj {
		if result.Obj[i].Name == username {
			return &result.Obj[i], nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *SUI) save(ctx context.Context, action string, cl suiClient) error {
	data, err := json.Marshal(cl)
	if err != nil {
		return wrapErr(s.Vendor(), "save client", err)
	}

	resp, err := s.client.PostForm(ctx, s.baseURL+"/apiv2/save", map[string]string{
		"object": "clients",
		"action": action,
		"data":   string(data),
	})
	if err != nil {
		return wrapErr(s.Vendor(), "save client", err)
	}
	return s.checkSave(resp, "save client")
}

func (s *SUI) checkSave(resp *httpclient.Response, op string) error {
	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(s.Vendor(), op, err)
	}
	if !boolFromAny(result["success"]) {
		return vendorErr(s.Vendor(), op, "%s", getString(result, "msg"))
	}
	return nil
}

func (s *SUI) toAccount(cl *suiClient) *Account {
	used := cl.Up + cl.Down
	acct := &Account{
		Username:        cl.Name,
		UsedTraffic:     used,
		DataLimit:       cl.Volume,
		ExpireAt:        cl.Expiry,
		SubscriptionURL: s.subscriptionURL(cl.Name),
	}

	now := time.Now().Unix()
	switch {
	case !cl.Enable:
		acct.Status = StatusDisabled
	case cl.Volume > 0 && used >= cl.Volume:
		acct.Status = StatusLimited
	case cl.Expiry > 0 && cl.Expiry <= now:
		acct.Status = StatusExpired
	default:
		acct.Status = StatusActive
	}
	return acct
}

func (s *SUI) subscriptionURL(name string) string {
	if s.subLink == "" {
		return ""
	}
	return absolutizeURL(s.subLink, name)
}
