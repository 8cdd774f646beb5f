package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v3"

	"sarvbot/internal/config"
	"sarvbot/internal/models"
	"sarvbot/internal/panel"
)

// InvoiceStore is the slice of invoice persistence the workers touch.
type InvoiceStore interface {
	ListByStatus(statuses []string, limit int) ([]models.Invoice, error)
	ListTestByStatus(statuses []string, limit int) ([]models.Invoice, error)
	TransitionStatus(id string, from []string, to string) (bool, error)
}

// PanelStore resolves panel records.
type PanelStore interface {
	FindByCode(code string) (*models.Panel, error)
}

// AdapterSource hands out a panel adapter per panel record.
type AdapterSource interface {
	Get(p *models.Panel) (panel.Adapter, error)
}

// Notifier delivers best-effort messages.
type Notifier interface {
	Send(chatID string, text string)
	SendWithKeyboard(chatID string, text string, markup *tele.ReplyMarkup)
	ReportAdmin(text string)
}

// Scheduler runs the four reconciliation workers on cron schedules.
// Each worker holds a Redis run lock so overlapping ticks skip instead
// of double-processing, caps in-flight upstream calls, and rate-limits
// total invocations per minute.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.WorkersConfig
	logger   *zap.Logger
	invoices InvoiceStore
	panels   PanelStore
	adapters AdapterSource
	notifier Notifier
	rdb      *redis.Client
	limiter  *rate.Limiter
}

func New(cfg *config.WorkersConfig, invoices InvoiceStore, panels PanelStore, adapters AdapterSource, notifier Notifier, rdb *redis.Client, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		logger:   logger,
		invoices: invoices,
		panels:   panels,
		adapters: adapters,
		notifier: notifier,
		rdb:      rdb,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(max(cfg.RatePerMinute, 1))), 1),
	}
}

// Start registers and starts the worker schedules.
func (s *Scheduler) Start() {
	s.logger.Info("starting reconciliation workers")

	s.register("expiry_warning", s.cfg.ExpiryWarnCron, s.expiryWarning)
	s.register("volume_warning", s.cfg.VolumeWarnCron, s.volumeWarning)
	s.register("expired_cleanup", s.cfg.CleanupCron, s.expiredCleanup)
	s.register("test_cleanup", s.cfg.TestCleanupCron, s.testCleanup)

	s.cron.Start()
}

// Stop stops the cron runner, waiting for in-flight jobs.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) register(name, spec string, job func(ctx context.Context) error) {
	_, err := s.cron.AddFunc(spec, func() {
		defer s.recoverFromPanic(name)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.JobTimeout)
		defer cancel()

		if !s.acquireLock(ctx, name) {
			s.logger.Debug("worker already running, skipping tick", zap.String("worker", name))
			return
		}
		defer s.releaseLock(name)

		if err := job(ctx); err != nil {
			// Batch-level failure only; per-record errors are handled
			// inside the batch.
			s.logger.Error("worker run failed", zap.String("worker", name), zap.Error(err))
		}
	})
	if err != nil {
		s.logger.Error("invalid cron spec", zap.String("worker", name), zap.String("spec", spec), zap.Error(err))
	}
}

func (s *Scheduler) recoverFromPanic(name string) {
	if r := recover(); r != nil {
		s.logger.Error("worker panicked", zap.String("worker", name), zap.Any("panic", r))
	}
}

// acquireLock takes a per-worker Redis lock so two instances (or an
// overlapping tick) cannot run the same worker at once. Without Redis
// the lock degrades to always acquired.
func (s *Scheduler) acquireLock(ctx context.Context, name string) bool {
	if s.rdb == nil {
		return true
	}
	ok, err := s.rdb.SetNX(ctx, "worker:lock:"+name, 1, s.cfg.JobTimeout).Result()
	if err != nil {
		s.logger.Warn("worker lock unavailable, proceeding", zap.String("worker", name), zap.Error(err))
		return true
	}
	return ok
}

func (s *Scheduler) releaseLock(name string) {
	if s.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rdb.Del(ctx, "worker:lock:"+name).Err(); err != nil {
		s.logger.Warn("worker lock release failed", zap.String("worker", name), zap.Error(err))
	}
}

// forEach processes records with bounded concurrency and the shared
// upstream rate limit. A failure on one record never aborts the rest.
func (s *Scheduler) forEach(ctx context.Context, name string, invoices []models.Invoice, fn func(ctx context.Context, inv models.Invoice) error) {
	concurrency := s.cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i := range invoices {
		inv := invoices[i]
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.recoverFromPanic(name)

			if err := fn(ctx, inv); err != nil {
				s.logger.Warn("record reconciliation failed",
					zap.String("worker", name),
					zap.String("invoice", inv.ID),
					zap.String("panel", inv.PanelCode),
					zap.Error(err))
			}
		}()
	}
	wg.Wait()
}

// fetchAccount resolves the panel, builds the adapter, and fetches the
// live remote account for an invoice. skip is true when the record must
// not transition: the account is gone upstream or still reports the
// unsuccessful sentinel.
func (s *Scheduler) fetchAccount(ctx context.Context, inv models.Invoice) (acct *panel.Account, skip bool, err error) {
	p, err := s.panels.FindByCode(inv.PanelCode)
	if err != nil {
		return nil, false, err
	}

	adapter, err := s.adapters.Get(p)
	if err != nil {
		return nil, false, err
	}

	acct, err = adapter.GetUser(ctx, inv.Username)
	if errors.Is(err, panel.ErrUserNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if acct.Status == panel.StatusUnsuccessful {
		return nil, true, nil
	}
	return acct, false, nil
}

func (s *Scheduler) adapterFor(inv models.Invoice) (panel.Adapter, error) {
	p, err := s.panels.FindByCode(inv.PanelCode)
	if err != nil {
		return nil, err
	}
	return s.adapters.Get(p)
}
