package panel

import "context"

// Canonical account statuses. Every adapter maps vendor-specific state
// into this set; callers branch on these values only.
const (
	StatusActive       = "active"
	StatusDisabled     = "disabled"
	StatusLimited      = "limited"
	StatusExpired      = "expired"
	StatusOnHold       = "on_hold"
	StatusUnsuccessful = "unsuccessful"
)

// Account is the normalized view of a remote account. Computed on every
// fetch, never persisted.
type Account struct {
	Username        string `json:"username"`
	Status          string `json:"status"`
	UsedTraffic     int64  `json:"used_traffic"`
	DataLimit       int64  `json:"data_limit"`
	ExpireAt        int64  `json:"expire_at"` // unix seconds, 0 = never
	SubscriptionURL string `json:"subscription_url"`
}

// Remaining returns the unused quota in bytes, never negative.
func (a *Account) Remaining() int64 {
	if a.DataLimit <= 0 {
		return 0
	}
	left := a.DataLimit - a.UsedTraffic
	if left < 0 {
		return 0
	}
	return left
}

// CreateUserInput carries the provisioning parameters. VolumeGB is
// converted to bytes (1024-based) by each adapter; DurationDays 0 means
// the account never expires.
type CreateUserInput struct {
	Username     string
	VolumeGB     float64
	DurationDays int
	OnHold       bool
	Note         string
}

// ModifyUserInput adjusts quota and/or duration on an existing account.
// Zero values leave the field unchanged.
type ModifyUserInput struct {
	VolumeGB     float64
	DurationDays int
}

// Adapter is the uniform contract over all panel vendors.
//
// Every method that talks to the network wraps vendor failures into
// *Error. GetUser returns ErrUserNotFound when the account does not
// exist upstream; that is the only way absence is signalled.
type Adapter interface {
	// Authenticate establishes or refreshes the vendor session. Safe to
	// call before every request; a cached credential is reused until its
	// known expiry.
	Authenticate(ctx context.Context) error

	// CreateUser provisions a new remote account.
	CreateUser(ctx context.Context, in CreateUserInput) (*Account, error)

	// GetUser fetches and normalizes one account by username.
	GetUser(ctx context.Context, username string) (*Account, error)

	// ModifyUser adjusts volume and/or duration.
	ModifyUser(ctx context.Context, username string, in ModifyUserInput) error

	// RemoveUser deletes the remote account. Callers confirm existence
	// first; adapters may report an absent user as a failure.
	RemoveUser(ctx context.Context, username string) error

	// RevokeSubscription rotates the subscription link where the vendor
	// supports it. Vendors with deterministic links disable the account
	// instead and return a status string, not a URL.
	RevokeSubscription(ctx context.Context, username string) (string, error)

	// ResetDataUsage zeroes the usage counter. Returns ErrUnsupported on
	// vendors without such an API.
	ResetDataUsage(ctx context.Context, username string) error

	// SystemStats probes vendor health. Used by the operator test
	// connection flow only.
	SystemStats(ctx context.Context) (map[string]interface{}, error)

	// Vendor returns the vendor kind identifier.
	Vendor() string
}
