package worker

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"sarvbot/internal/models"
	"sarvbot/internal/panel"
)

// testCleanup removes trial accounts that have naturally lapsed and
// nudges the user toward a paid plan. Accounts still active, waiting
// for first use, disabled by an operator, or in the unsuccessful
// sentinel are left alone.
func (s *Scheduler) testCleanup(ctx context.Context) error {
	invoices, err := s.invoices.ListTestByStatus(
		[]string{models.InvoiceActive},
		s.cfg.TestBatchSize,
	)
	if err != nil {
		return err
	}

	s.forEach(ctx, "test_cleanup", invoices, func(ctx context.Context, inv models.Invoice) error {
		acct, skip, err := s.fetchAccount(ctx, inv)
		if err != nil || skip {
			return err
		}

		switch acct.Status {
		case panel.StatusActive, panel.StatusOnHold, panel.StatusUnsuccessful, panel.StatusDisabled:
			return nil
		}

		adapter, err := s.adapterFor(inv)
		if err != nil {
			return err
		}
		if err := adapter.RemoveUser(ctx, inv.Username); err != nil {
			return err
		}

		changed, err := s.invoices.TransitionStatus(inv.ID,
			[]string{models.InvoiceActive}, models.InvoiceDisabled)
		if err != nil {
			return err
		}
		if changed {
			s.notifier.SendWithKeyboard(inv.UserID,
				fmt.Sprintf(msgTestEnded, inv.Username), buyServiceKeyboard())
		}
		return nil
	})
	return nil
}

func buyServiceKeyboard() *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btn := markup.Data("🛒 خرید سرویس", "buy_service")
	markup.Inline(markup.Row(btn))
	return markup
}
