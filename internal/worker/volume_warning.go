package worker

import (
	"context"
	"fmt"

	"sarvbot/internal/models"
	"sarvbot/internal/panel"
	"sarvbot/internal/pkg/utils"
)

// volumeWarning warns users whose remaining quota has fallen to or
// below the configured threshold while the account is still usable.
func (s *Scheduler) volumeWarning(ctx context.Context) error {
	invoices, err := s.invoices.ListByStatus(
		[]string{models.InvoiceActive, models.InvoiceEndOfTime},
		s.cfg.VolumeBatchSize,
	)
	if err != nil {
		return err
	}

	thresholdBytes := utils.GBToBytes(s.cfg.VolumeWarnGB)

	s.forEach(ctx, "volume_warning", invoices, func(ctx context.Context, inv models.Invoice) error {
		acct, skip, err := s.fetchAccount(ctx, inv)
		if err != nil || skip {
			return err
		}
		if acct.Status != panel.StatusActive {
			return nil
		}

		remaining := acct.Remaining()
		if acct.DataLimit <= 0 || remaining <= 0 || remaining > thresholdBytes {
			return nil
		}

		next := models.InvoiceEndOfVolume
		if inv.Status == models.InvoiceEndOfTime {
			next = models.InvoiceSendedWarn
		}
		changed, err := s.invoices.TransitionStatus(inv.ID, []string{inv.Status}, next)
		if err != nil {
			return err
		}
		if changed {
			s.notifier.Send(inv.UserID,
				fmt.Sprintf(msgVolumeWarn, inv.Username, utils.BytesToGB(remaining)))
		}
		return nil
	})
	return nil
}
