package panel

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/curve25519"

	"sarvbot/internal/models"
	"sarvbot/internal/pkg/httpclient"
)

// WGDashboard speaks the WGDashboard API. No login step; a static API
// key rides on every request. The panel has no native per-peer quota or
// expiry fields, so both are registered as side-channel schedule jobs.
// Those jobs are best effort: a failure is logged, never surfaced as a
// provisioning failure.
type WGDashboard struct {
	baseURL    string
	configName string
	client     *httpclient.Client
	logger     *zap.Logger
}

type wgPeer struct {
	Name       string  `json:"name"`
	PublicKey  string  `json:"public_key"`
	Restricted bool    `json:"restricted"`
	TotalData  float64 `json:"total_data"`
	TotalUsage float64 `json:"total_data_usage"`
	DateStart  int64   `json:"date_start"`
}

func NewWGDashboard(p *models.Panel, logger *zap.Logger) *WGDashboard {
	name := p.Inbound
	if name == "" {
		name = "wg0"
	}
	return &WGDashboard{
		baseURL:    p.URL,
		configName: name,
		client: httpclient.New().
			WithTimeout(30 * time.Second).
			WithInsecureSkipVerify().
			WithHeader("wg-dashboard-apikey", p.Password),
		logger: logger,
	}
}

func (w *WGDashboard) Vendor() string {
	return models.PanelWGDashboard
}

// Authenticate verifies the API key by probing the configuration.
func (w *WGDashboard) Authenticate(ctx context.Context) error {
	resp, err := w.client.Get(ctx, w.infoURL())
	if err != nil {
		return wrapErr(w.Vendor(), "authenticate", err)
	}
	if !resp.IsSuccess() {
		return vendorErr(w.Vendor(), "authenticate", "status %d", resp.StatusCode)
	}
	return nil
}

func (w *WGDashboard) CreateUser(ctx context.Context, in CreateUserInput) (*Account, error) {
	keys, err := newWGKeys()
	if err != nil {
		return nil, wrapErr(w.Vendor(), "create user", err)
	}

	ip, err := w.availableIP(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := w.client.Post(ctx, w.baseURL+"/api/addPeers/"+w.configName, map[string]interface{}{
		"name":          in.Username,
		"allowed_ips":   []string{ip},
		"private_key":   keys.private,
		"public_key":    keys.public,
		"preshared_key": keys.preshared,
	})
	if err != nil {
		return nil, wrapErr(w.Vendor(), "create user", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(w.Vendor(), "create user", err)
	}
	if !boolFromAny(result["status"]) {
		return nil, vendorErr(w.Vendor(), "create user", "%s", getString(result, "message"))
	}

	// Enforcement jobs are fire and forget.
	expireAt := expireFromDays(in.DurationDays)
	if expireAt > 0 {
		if err := w.saveScheduleJob(ctx, keys.public, "date", expireAt); err != nil {
			w.logger.Warn("wgdashboard expiry job not registered",
				zap.String("peer", in.Username), zap.Error(err))
		}
	}
	if in.VolumeGB > 0 {
		if err := w.saveScheduleJob(ctx, keys.public, "total_data", in.VolumeGB); err != nil {
			w.logger.Warn("wgdashboard quota job not registered",
				zap.String("peer", in.Username), zap.Error(err))
		}
	}

	conf, err := w.downloadPeer(ctx, keys.public)
	if err != nil {
		w.logger.Warn("wgdashboard peer config download failed",
			zap.String("peer", in.Username), zap.Error(err))
	}

	return &Account{
		Username:        in.Username,
		Status:          StatusActive,
		DataLimit:       gbToBytes(in.VolumeGB),
		ExpireAt:        expireAt,
		SubscriptionURL: conf,
	}, nil
}

func (w *WGDashboard) GetUser(ctx context.Context, username string) (*Account, error) {
	peer, err := w.findPeer(ctx, username)
	if err != nil {
		return nil, err
	}

	conf, err := w.downloadPeer(ctx, peer.PublicKey)
	if err != nil {
		conf = ""
	}

	status := StatusActive
	if peer.Restricted {
		status = StatusDisabled
	}
	return &Account{
		Username:        peer.Name,
		Status:          status,
		UsedTraffic:     gbToBytes(peer.TotalUsage),
		DataLimit:       gbToBytes(peer.TotalData),
		ExpireAt:        peer.DateStart,
		SubscriptionURL: conf,
	}, nil
}

func (w *WGDashboard) ModifyUser(ctx context.Context, username string, in ModifyUserInput) error {
	peer, err := w.findPeer(ctx, username)
	if err != nil {
		return err
	}

	if in.VolumeGB > 0 {
		if err := w.saveScheduleJob(ctx, peer.PublicKey, "total_data", in.VolumeGB); err != nil {
			return wrapErr(w.Vendor(), "modify user", err)
		}
	}
	if in.DurationDays > 0 {
		if err := w.saveScheduleJob(ctx, peer.PublicKey, "date", expireFromDays(in.DurationDays)); err != nil {
			return wrapErr(w.Vendor(), "modify user", err)
		}
	}
	return nil
}

func (w *WGDashboard) RemoveUser(ctx context.Context, username string) error {
	peer, err := w.findPeer(ctx, username)
	if err != nil {
		return err
	}

	// Restricted peers cannot be deleted directly.
	if peer.Restricted {
		if _, err := w.client.Post(ctx, w.baseURL+"/api/allowAccessPeers/"+w.configName, map[string]interface{}{
			"peers": []string{peer.PublicKey},
		}); err != nil {
			return wrapErr(w.Vendor(), "remove user", err)
		}
	}

	resp, err := w.client.Post(ctx, w.baseURL+"/api/deletePeers/"+w.configName, map[string]interface{}{
		"peers": []string{peer.PublicKey},
	})
	if err != nil {
		return wrapErr(w.Vendor(), "remove user", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(w.Vendor(), "remove user", err)
	}
	if !boolFromAny(result["status"]) {
		return vendorErr(w.Vendor(), "remove user", "%s", getString(result, "message"))
	}
	return nil
}

// RevokeSubscription restricts the peer. WireGuard configs cannot be
// rotated server side, so the return value is a status string.
func (w *WGDashboard) RevokeSubscription(ctx context.Context, username string) (string, error) {
	peer, err := w.findPeer(ctx, username)
	if err != nil {
		return "", err
	}

	resp, err := w.client.Post(ctx, w.baseURL+"/api/restrictPeers/"+w.configName, map[string]interface{}{
		"peers": []string{peer.PublicKey},
	})
	if err != nil {
		return "", wrapErr(w.Vendor(), "revoke subscription", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", wrapErr(w.Vendor(), "revoke subscription", err)
	}
	if !boolFromAny(result["status"]) {
		return "", vendorErr(w.Vendor(), "revoke subscription", "%s", getString(result, "message"))
	}
	return fmt.Sprintf("User %s has been disabled", username), nil
}

func (w *WGDashboard) ResetDataUsage(ctx context.Context, username string) error {
	peer, err := w.findPeer(ctx, username)
	if err != nil {
		return err
	}

	resp, err := w.client.Post(ctx, w.baseURL+"/api/resetPeerData/"+w.configName, map[string]interface{}{
		"id": peer.PublicKey,
	})
	if err != nil {
		return wrapErr(w.Vendor(), "reset usage", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return wrapErr(w.Vendor(), "reset usage", err)
	}
	if !boolFromAny(result["status"]) {
		return vendorErr(w.Vendor(), "reset usage", "%s", getString(result, "message"))
	}
	return nil
}

func (w *WGDashboard) SystemStats(ctx context.Context) (map[string]interface{}, error) {
	resp, err := w.client.Get(ctx, w.infoURL())
	if err != nil {
		return nil, wrapErr(w.Vendor(), "system stats", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(w.Vendor(), "system stats", err)
	}
	return result, nil
}

// findPeer scans normal and restricted peers of the configuration.
func (w *WGDashboard) findPeer(ctx context.Context, username string) (*wgPeer, error) {
	resp, err := w.client.Get(ctx, w.infoURL())
	if err != nil {
		return nil, wrapErr(w.Vendor(), "get peers", err)
	}

	var result struct {
		Status bool `json:"status"`
		Data   struct {
			Peers           []wgPeer `json:"configurationPeers"`
			RestrictedPeers []wgPeer `json:"configurationRestrictedPeers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, wrapErr(w.Vendor(), "get peers", err)
	}

	for i := range result.Data.Peers {
		if result.Data.Peers[i].Name == username {
			return &result.Data.Peers[i], nil
		}
	}
	for i := range result.Data.RestrictedPeers {
		p := result.Data.RestrictedPeers[i]
		if p.Name == username {
			p.Restricted = true
			return &p, nil
		}
	}
	return nil, ErrUserNotFound
}

func (w *WGDashboard) availableIP(ctx context.Context) (string, error) {
	resp, err := w.client.Get(ctx, w.baseURL+"/api/getAvailableIPs/"+w.configName)
	if err != nil {
		return "", wrapErr(w.Vendor(), "allocate ip", err)
	}

	var result struct {
		Status bool     `json:"status"`
		Data   []string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", wrapErr(w.Vendor(), "allocate ip", err)
	}
	if !result.Status || len(result.Data) == 0 {
		return "", vendorErr(w.Vendor(), "allocate ip", "no available IPs in pool")
	}
	return result.Data[0], nil
}

func (w *WGDashboard) saveScheduleJob(ctx context.Context, publicKey, field string, value interface{}) error {
	resp, err := w.client.Post(ctx, w.baseURL+"/api/savePeerScheduleJob", map[string]interface{}{
		"Job": map[string]interface{}{
			"JobID":         fmt.Sprintf("%s-%s", publicKey, field),
			"Configuration": w.configName,
			"Peer":          publicKey,
			"Field":         field,
			"Operator":      "lgt",
			"Value":         value,
			"Action":        "restrict",
		},
	})
	if err != nil {
		return err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return err
	}
	if !boolFromAny(result["status"]) {
		return fmt.Errorf("schedule job rejected: %s", getString(result, "message"))
	}
	return nil
}

func (w *WGDashboard) downloadPeer(ctx context.Context, publicKey string) (string, error) {
	resp, err := w.client.Get(ctx, w.baseURL+"/api/downloadPeer/"+w.configName+"?id="+publicKey)
	if err != nil {
		return "", err
	}

	var result struct {
		Status bool `json:"status"`
		Data   struct {
			File     string `json:"file"`
			FileName string `json:"fileName"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", err
	}
	if !result.Status {
		return "", fmt.Errorf("download rejected")
	}
	return result.Data.File, nil
}

func (w *WGDashboard) infoURL() string {
	return w.baseURL + "/api/getWireguardConfigurationInfo?configurationName=" + w.configName
}

type wgKeys struct {
	private   string
	public    string
	preshared string
}

// newWGKeys generates a clamped curve25519 keypair plus a preshared key,
// all base64 encoded the way wg(8) expects.
func newWGKeys() (*wgKeys, error) {
	var priv [32]byte
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, err
	}
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}

	var psk [32]byte
	if _, err := rand.Read(psk[:]); err != nil {
		return nil, err
	}

	return &wgKeys{
		private:   base64.StdEncoding.EncodeToString(priv[:]),
		public:    base64.StdEncoding.EncodeToString(pub),
		preshared: base64.StdEncoding.EncodeToString(psk[:]),
	}, nil
}
