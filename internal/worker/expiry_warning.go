package worker

import (
	"context"
	"fmt"
	"time"

	"sarvbot/internal/models"
	"sarvbot/internal/panel"
)

// expiryWarning warns users whose service expiry falls on one of the
// configured day thresholds, and records disables observed remotely.
// An invoice already warned about volume moves to SENDEDWARN, otherwise
// to END_OF_TIME, which keeps this worker from re-sending.
func (s *Scheduler) expiryWarning(ctx context.Context) error {
	invoices, err := s.invoices.ListByStatus(
		[]string{models.InvoiceActive, models.InvoiceEndOfVolume},
		s.cfg.ExpiryBatchSize,
	)
	if err != nil {
		return err
	}

	s.forEach(ctx, "expiry_warning", invoices, func(ctx context.Context, inv models.Invoice) error {
		acct, skip, err := s.fetchAccount(ctx, inv)
		if err != nil || skip {
			return err
		}

		if acct.Status == panel.StatusDisabled {
			_, err := s.invoices.TransitionStatus(inv.ID,
				[]string{models.InvoiceActive, models.InvoiceEndOfVolume},
				models.InvoiceDisabled)
			return err
		}

		// Only usable accounts get expiry warnings. A limited or expired
		// account belongs to the cleanup worker, not here.
		if acct.Status != panel.StatusActive && acct.Status != panel.StatusOnHold {
			return nil
		}

		if acct.ExpireAt <= 0 || acct.ExpireAt <= time.Now().Unix() {
			return nil
		}

		days := daysUntil(acct.ExpireAt)
		if !containsDay(s.cfg.ExpiryWarnDays, days) {
			return nil
		}

		next := models.InvoiceEndOfTime
		if inv.Status == models.InvoiceEndOfVolume {
			next = models.InvoiceSendedWarn
		}
		changed, err := s.invoices.TransitionStatus(inv.ID, []string{inv.Status}, next)
		if err != nil {
			return err
		}
		if changed {
			s.notifier.Send(inv.UserID, fmt.Sprintf(msgExpiryWarn, inv.Username, days))
		}
		return nil
	})
	return nil
}

// daysUntil counts whole remaining days, rounding up so that an expiry
// 25 hours away reads as 2 days and one 23 hours away as 1 day.
func daysUntil(expireAt int64) int {
	remaining := expireAt - time.Now().Unix()
	if remaining <= 0 {
		return 0
	}
	return int(remaining/86400) + 1
}

func containsDay(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}
