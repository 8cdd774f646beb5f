package purchase

import (
	"errors"

	"sarvbot/internal/apperr"
	"sarvbot/internal/panel"
)

// User-facing failure texts. Vendor details never appear here; they go
// to the logs only.
const (
	msgInsufficientBalance = "موجودی کیف پول شما کافی نیست. لطفا ابتدا حساب خود را شارژ کنید."
	msgNotFound            = "اطلاعات مورد نظر یافت نشد. لطفا دوباره تلاش کنید."
	msgPanelFailure        = "در حال حاضر امکان ساخت سرویس وجود ندارد. لطفا کمی بعد دوباره تلاش کنید."
	msgGenericFailure      = "خطایی رخ داد. لطفا دوباره تلاش کنید."
)

func userMessage(err error) string {
	var perr *panel.Error
	if errors.As(err, &perr) {
		return msgPanelFailure
	}

	switch apperr.KindOf(err) {
	case apperr.KindInsufficientBalance:
		return msgInsufficientBalance
	case apperr.KindNotFound:
		return msgNotFound
	case apperr.KindValidation:
		return msgGenericFailure
	default:
		return msgGenericFailure
	}
}
