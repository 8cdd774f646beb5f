package notify

import (
	"strconv"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// Notifier delivers user and operator messages over the Telegram Bot
// API. Delivery is best effort: failures are logged and never bubble up
// into the purchase path or the reconciliation batches.
type Notifier struct {
	bot          *tele.Bot
	adminChannel int64
	logger       *zap.Logger
}

// New builds a Notifier. The bot is created offline; no webhook or
// polling is registered since this process only sends.
func New(token string, adminChannel int64, logger *zap.Logger) (*Notifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: token == "",
	})
	if err != nil {
		return nil, err
	}
	return &Notifier{bot: bot, adminChannel: adminChannel, logger: logger}, nil
}

// Send delivers an HTML-formatted message to a chat.
func (n *Notifier) Send(chatID string, text string) {
	n.send(chatID, text, nil)
}

// SendWithKeyboard delivers a message with an inline keyboard.
func (n *Notifier) SendWithKeyboard(chatID string, text string, markup *tele.ReplyMarkup) {
	n.send(chatID, text, markup)
}

func (n *Notifier) send(chatID string, text string, markup *tele.ReplyMarkup) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		n.logger.Warn("notify: bad chat id", zap.String("chat_id", chatID))
		return
	}

	opts := []interface{}{tele.ModeHTML}
	if markup != nil {
		opts = append(opts, markup)
	}
	if _, err := n.bot.Send(tele.ChatID(id), text, opts...); err != nil {
		n.logger.Warn("notify: send failed",
			zap.String("chat_id", chatID), zap.Error(err))
	}
}

// ReportAdmin posts an operator report to the configured admin channel.
// No-op when the channel is unset.
func (n *Notifier) ReportAdmin(text string) {
	if n.adminChannel == 0 {
		return
	}
	if _, err := n.bot.Send(tele.ChatID(n.adminChannel), text, tele.ModeHTML); err != nil {
		n.logger.Warn("notify: admin report failed", zap.Error(err))
	}
}
