package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"sarvbot/internal/apperr"
	"sarvbot/internal/models"
	"sarvbot/internal/panel"
	"sarvbot/internal/pkg/utils"
)

// Store is the persistence surface the purchase flow needs.
type Store interface {
	FindUser(chatID string) (*models.User, error)
	FindProduct(code string) (*models.Product, error)
	FindPanel(code string) (*models.Panel, error)
	// Commit performs the atomic financial commit: guarded balance
	// debit, optional referral credit, invoice insert.
	Commit(invoice *models.Invoice, referrerID string, referralReward int64) error
}

// AdapterSource hands out a panel adapter for a panel record.
type AdapterSource interface {
	Get(p *models.Panel) (panel.Adapter, error)
}

// Request is one purchase attempt. PriceOverride, when positive,
// replaces the product price (discount application).
type Request struct {
	ChatID        string
	ProductCode   string
	PriceOverride int64
}

// Result is the uniform outcome shape handed back to the chat UI.
// Message carries a user-facing text on failure and never leaks vendor
// internals.
type Result struct {
	OK      bool
	Invoice *models.Invoice
	Message string
}

// Service orchestrates a purchase: balance check, remote provisioning,
// then the financial commit with a compensating removal if the commit
// loses a balance race.
type Service struct {
	store          Store
	adapters       AdapterSource
	referralReward int64
	logger         *zap.Logger
}

func New(store Store, adapters AdapterSource, referralReward int64, logger *zap.Logger) *Service {
	return &Service{
		store:          store,
		adapters:       adapters,
		referralReward: referralReward,
		logger:         logger,
	}
}

// Buy runs the purchase to completion and never returns an error past
// its own boundary; failures come back as a Result with a mapped
// message.
func (s *Service) Buy(ctx context.Context, req Request) Result {
	invoice, err := s.buy(ctx, req)
	if err != nil {
		s.logger.Warn("purchase failed",
			zap.String("chat_id", req.ChatID),
			zap.String("product", req.ProductCode),
			zap.Error(err))
		return Result{Message: userMessage(err)}
	}
	return Result{OK: true, Invoice: invoice}
}

func (s *Service) buy(ctx context.Context, req Request) (*models.Invoice, error) {
	user, err := s.store.FindUser(req.ChatID)
	if err != nil {
		return nil, err
	}

	product, err := s.store.FindProduct(req.ProductCode)
	if err != nil {
		return nil, err
	}
	if !product.IsActive() {
		return nil, apperr.NotFound("product")
	}
	if product.PanelCode == "" {
		return nil, apperr.Validation("product %s has no panel bound", product.Code)
	}

	pcfg, err := s.store.FindPanel(product.PanelCode)
	if err != nil {
		return nil, err
	}
	if !pcfg.IsActive() {
		return nil, apperr.NotFound("panel")
	}

	price := product.Price
	if req.PriceOverride > 0 {
		price = req.PriceOverride
	}
	// Pre-check only; the authoritative guard is the conditional debit
	// inside Commit.
	if user.Balance < price {
		return nil, apperr.InsufficientBalance()
	}

	adapter, err := s.adapters.Get(pcfg)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	username, err := s.resolveUsername(ctx, adapter, user.ID)
	if err != nil {
		return nil, err
	}

	// Remote side effect first. Nothing financial has happened yet, so
	// a failure here needs no rollback.
	account, err := adapter.CreateUser(ctx, panel.CreateUserInput{
		Username:     username,
		VolumeGB:     float64(product.VolumeGB),
		DurationDays: product.DurationDays,
		OnHold:       pcfg.OnHold,
		Note:         user.ID,
	})
	if err != nil {
		return nil, err
	}

	invoice := &models.Invoice{
		ID:              uuid.NewString(),
		UserID:          user.ID,
		ProductCode:     product.Code,
		PanelCode:       pcfg.Code,
		Username:        account.Username,
		SubscriptionURL: account.SubscriptionURL,
		Price:           price,
		VolumeGB:        product.VolumeGB,
		DurationDays:    product.DurationDays,
		CreatedAt:       utils.NowUnix(),
		ExpireAt:        account.ExpireAt,
		Status:          models.InvoiceActive,
	}

	if err := s.store.Commit(invoice, user.ReferrerID, s.referralReward); err != nil {
		// A concurrent spend won the balance race after remote creation.
		// Compensate by removing the account we just made; the orphan is
		// acceptable only if loudly reported.
		if rmErr := adapter.RemoveUser(ctx, account.Username); rmErr != nil {
			s.logger.Error("purchase compensation failed, manual reconciliation needed",
				zap.String("chat_id", user.ID),
				zap.String("panel", pcfg.Code),
				zap.String("username", account.Username),
				zap.Error(rmErr))
		}
		return nil, err
	}
	return invoice, nil
}

// resolveUsername derives the remote account name from the chat ID and
// de-collides against an existing account by suffixing random hex. A
// transport failure during the existence probe aborts the purchase; only
// a definite not-found clears a name for use.
func (s *Service) resolveUsername(ctx context.Context, adapter panel.Adapter, chatID string) (string, error) {
	name := utils.ServiceUsername(chatID)
	for i := 0; i < 5; i++ {
		_, err := adapter.GetUser(ctx, name)
		if errors.Is(err, panel.ErrUserNotFound) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
		name = utils.ServiceUsername(chatID) + "_" + utils.RandomHex(2)
	}
	return "", apperr.Validation("could not allocate a free username for %s", chatID)
}
