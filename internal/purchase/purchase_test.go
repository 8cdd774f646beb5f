package purchase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
	"sarvbot/internal/panel"
	"sarvbot/internal/pkg/utils"
)

type fakeStore struct {
	users    map[string]*models.User
	products map[string]*models.Product
	panels   map[string]*models.Panel

	committed []*models.Invoice
	credits   map[string]int64
	commitErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]*models.User{},
		products: map[string]*models.Product{},
		panels:   map[string]*models.Panel{},
		credits:  map[string]int64{},
	}
}

func (f *fakeStore) FindUser(chatID string) (*models.User, error) {
	u, ok := f.users[chatID]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (f *fakeStore) FindProduct(code string) (*models.Product, error) {
	p, ok := f.products[code]
	if !ok {
		return nil, apperr.NotFound("product")
	}
	return p, nil
}

func (f *fakeStore) FindPanel(code string) (*models.Panel, error) {
	p, ok := f.panels[code]
	if !ok {
		return nil, apperr.NotFound("panel")
	}
	return p, nil
}

func (f *fakeStore) Commit(invoice *models.Invoice, referrerID string, referralReward int64) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	u := f.users[invoice.UserID]
	if u.Balance < invoice.Price {
		return apperr.InsufficientBalance()
	}
	u.Balance -= invoice.Price
	if referrerID != "" && referralReward > 0 {
		f.credits[referrerID] += referralReward
	}
	f.committed = append(f.committed, invoice)
	return nil
}

// fakeAdapter provisions in memory and records removals.
type fakeAdapter struct {
	existing  map[string]*panel.Account
	createErr error
	created   []panel.CreateUserInput
	removed   []string
	probeErr  error
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{existing: map[string]*panel.Account{}}
}

func (a *fakeAdapter) Vendor() string                        { return "fake" }
func (a *fakeAdapter) Authenticate(context.Context) error    { return nil }
func (a *fakeAdapter) RemoveUser(_ context.Context, username string) error {
	a.removed = append(a.removed, username)
	delete(a.existing, username)
	return nil
}

func (a *fakeAdapter) GetUser(_ context.Context, username string) (*panel.Account, error) {
	if a.probeErr != nil {
		return nil, a.probeErr
	}
	if acct, ok := a.existing[username]; ok {
		return acct, nil
	}
	return nil, panel.ErrUserNotFound
}

func (a *fakeAdapter) CreateUser(_ context.Context, in panel.CreateUserInput) (*panel.Account, error) {
	if a.createErr != nil {
		return nil, a.createErr
	}
	a.created = append(a.created, in)
	acct := &panel.Account{
		Username:        in.Username,
		Status:          panel.StatusActive,
		DataLimit:       int64(in.VolumeGB) * 1024 * 1024 * 1024,
		ExpireAt:        1893456000,
		SubscriptionURL: "https://sub.example.com/" + in.Username,
	}
	a.existing[in.Username] = acct
	return acct, nil
}

func (a *fakeAdapter) ModifyUser(context.Context, string, panel.ModifyUserInput) error { return nil }
func (a *fakeAdapter) RevokeSubscription(context.Context, string) (string, error)     { return "", nil }
func (a *fakeAdapter) ResetDataUsage(context.Context, string) error                   { return nil }
func (a *fakeAdapter) SystemStats(context.Context) (map[string]interface{}, error)    { return nil, nil }

type fakeAdapterSource struct {
	adapter panel.Adapter
	err     error
}

func (s *fakeAdapterSource) Get(*models.Panel) (panel.Adapter, error) {
	return s.adapter, s.err
}

func seedStore(f *fakeStore) {
	f.users["12345678"] = &models.User{ID: "12345678", Balance: 100000}
	f.products["p30"] = &models.Product{
		Code: "p30", Price: 80000, VolumeGB: 30, DurationDays: 30,
		PanelCode: "de-1", Status: "active",
	}
	f.panels["de-1"] = &models.Panel{Code: "de-1", Type: models.PanelMarzban, Status: "active"}
}

func TestBuySuccess(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	adapter := newFakeAdapter()
	svc := New(store, &fakeAdapterSource{adapter: adapter}, 5000, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	require.True(t, res.OK, res.Message)
	require.NotNil(t, res.Invoice)

	assert.Equal(t, int64(20000), store.users["12345678"].Balance)
	assert.Equal(t, int64(80000), res.Invoice.Price)
	assert.Equal(t, models.InvoiceActive, res.Invoice.Status)
	assert.Equal(t, "de-1", res.Invoice.PanelCode)
	assert.Equal(t, 30, res.Invoice.VolumeGB)
	assert.NotEmpty(t, res.Invoice.ID)
	assert.Contains(t, res.Invoice.SubscriptionURL, res.Invoice.Username)

	require.Len(t, adapter.created, 1)
	assert.Equal(t, utils.ServiceUsername("12345678"), adapter.created[0].Username)
	assert.Equal(t, float64(30), adapter.created[0].VolumeGB)
	require.Len(t, store.committed, 1)
	assert.Empty(t, adapter.removed)
}

func TestBuyPriceOverride(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	svc := New(store, &fakeAdapterSource{adapter: newFakeAdapter()}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30", PriceOverride: 60000})
	require.True(t, res.OK)
	assert.Equal(t, int64(60000), res.Invoice.Price)
	assert.Equal(t, int64(40000), store.users["12345678"].Balance)
}

func TestBuyReferralCredit(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	store.users["12345678"].ReferrerID = "99999999"
	svc := New(store, &fakeAdapterSource{adapter: newFakeAdapter()}, 5000, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	require.True(t, res.OK)
	assert.Equal(t, int64(5000), store.credits["99999999"])
}

func TestBuyInsufficientBalance(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	store.users["12345678"].Balance = 50000
	adapter := newFakeAdapter()
	svc := New(store, &fakeAdapterSource{adapter: adapter}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgInsufficientBalance, res.Message)

	// The remote panel must never have been touched.
	assert.Empty(t, adapter.created)
	assert.Empty(t, store.committed)
}

func TestBuyPanelFailureLeavesBalance(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	adapter := newFakeAdapter()
	adapter.createErr = &panel.Error{Vendor: "marzban", Op: "create user", Message: "boom"}
	svc := New(store, &fakeAdapterSource{adapter: adapter}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgPanelFailure, res.Message)
	assert.Equal(t, int64(100000), store.users["12345678"].Balance)
	assert.Empty(t, store.committed)
}

func TestBuyCommitFailureCompensates(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	store.commitErr = apperr.InsufficientBalance()
	adapter := newFakeAdapter()
	svc := New(store, &fakeAdapterSource{adapter: adapter}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgInsufficientBalance, res.Message)

	// The freshly provisioned account is torn back down.
	require.Len(t, adapter.created, 1)
	require.Len(t, adapter.removed, 1)
	assert.Equal(t, adapter.created[0].Username, adapter.removed[0])
}

func TestBuyInactiveProduct(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	store.products["p30"].Status = "disabled"
	svc := New(store, &fakeAdapterSource{adapter: newFakeAdapter()}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgNotFound, res.Message)
}

func TestBuyInactivePanel(t *testing.T) {
	store := newFakeStore()
	seedStore(store)
	store.panels["de-1"].Status = "disabled"
	svc := New(store, &fakeAdapterSource{adapter: newFakeAdapter()}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgNotFound, res.Message)
}

func TestResolveUsernameCollision(t *testing.T) {
	adapter := newFakeAdapter()
	base := utils.ServiceUsername("12345678")
	adapter.existing[base] = &panel.Account{Username: base}

	svc := New(newFakeStore(), &fakeAdapterSource{adapter: adapter}, 0, zap.NewNop())
	name, err := svc.resolveUsername(context.Background(), adapter, "12345678")
	require.NoError(t, err)
	assert.NotEqual(t, base, name)
	assert.True(t, strings.HasPrefix(name, base+"_"))
}

func TestResolveUsernameProbeFailureAborts(t *testing.T) {
	adapter := newFakeAdapter()
	adapter.probeErr = &panel.Error{Vendor: "marzban", Op: "get user", Message: "timeout"}

	store := newFakeStore()
	seedStore(store)
	svc := New(store, &fakeAdapterSource{adapter: adapter}, 0, zap.NewNop())

	res := svc.Buy(context.Background(), Request{ChatID: "12345678", ProductCode: "p30"})
	assert.False(t, res.OK)
	assert.Equal(t, msgPanelFailure, res.Message)
	assert.Empty(t, adapter.created)
}
