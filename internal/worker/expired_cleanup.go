package worker

import (
	"context"
	"fmt"
	"time"

	"sarvbot/internal/models"
	"sarvbot/internal/panel"
)

var cleanupStatuses = []string{
	models.InvoiceActive,
	models.InvoiceEndOfTime,
	models.InvoiceEndOfVolume,
	models.InvoiceSendedWarn,
}

// expiredCleanup removes accounts that have been limited or expired for
// longer than the grace period, marks the invoice REMOVE_TIME, and
// reports the removal to the operator channel.
func (s *Scheduler) expiredCleanup(ctx context.Context) error {
	invoices, err := s.invoices.ListByStatus(cleanupStatuses, s.cfg.CleanupBatchSize)
	if err != nil {
		return err
	}

	s.forEach(ctx, "expired_cleanup", invoices, func(ctx context.Context, inv models.Invoice) error {
		acct, skip, err := s.fetchAccount(ctx, inv)
		if err != nil || skip {
			return err
		}
		if acct.Status != panel.StatusLimited && acct.Status != panel.StatusExpired {
			return nil
		}

		// Prefer the remote expiry; fall back to local bookkeeping for
		// quota-limited accounts with no expiry on record.
		expiredAt := acct.ExpireAt
		if expiredAt <= 0 {
			expiredAt = inv.ExpireAt
		}
		if expiredAt <= 0 || daysSince(expiredAt) < s.cfg.RemoveGraceDays {
			return nil
		}

		adapter, err := s.adapterFor(inv)
		if err != nil {
			return err
		}
		// Existence was confirmed by the fetch above.
		if err := adapter.RemoveUser(ctx, inv.Username); err != nil {
			return err
		}

		changed, err := s.invoices.TransitionStatus(inv.ID, cleanupStatuses, models.InvoiceRemoveTime)
		if err != nil {
			return err
		}
		if changed {
			s.notifier.Send(inv.UserID, fmt.Sprintf(msgServiceRemoved, inv.Username, removalReason(acct.Status)))
			s.notifier.ReportAdmin(fmt.Sprintf(msgAdminRemoved, inv.Username, inv.UserID, inv.PanelCode))
		}
		return nil
	})
	return nil
}

func removalReason(status string) string {
	if status == panel.StatusLimited {
		return reasonVolumeOver
	}
	return reasonTimeOver
}

func daysSince(ts int64) int {
	elapsed := time.Now().Unix() - ts
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / 86400)
}
