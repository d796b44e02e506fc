package providers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"custom-alerts-service/internal/config"
	"custom-alerts-service/internal/logging"
	"custom-alerts-service/internal/models"
	"custom-alerts-service/internal/notifier"
	"custom-alerts-service/internal/utils"
)

// TelegramSummary posts a one-line run summary to an ops chat after each
// dispatch run. It is optional; a nil *TelegramSummary is a no-op.
type TelegramSummary struct {
	token   string
	chatID  int64
	logger  *logging.Logger
	limiter *rate.Limiter
}

func NewTelegramSummary(cfg config.Config, logger *logging.Logger) *TelegramSummary {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == 0 {
		return nil
	}
	return &TelegramSummary{
		token:   cfg.Telegram.BotToken,
		chatID:  cfg.Telegram.ChatID,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(1), 5),
	}
}

// SendRunSummary reports the outcome of one (period, site) dispatch run.
func (t *TelegramSummary) SendRunSummary(ctx context.Context, period models.Period, siteID int64, report notifier.DispatchReport) {
	if t == nil {
		return
	}

	if err := t.limiter.Wait(ctx); err != nil {
		t.logger.Warnf("Telegram rate limit wait aborted: %v", err)
		return
	}

	text := fmt.Sprintf("Alert run %s site %d: %d emails, %d SMS, %d failures",
		period, siteID, report.EmailsSent, report.SmsSent, len(report.Failures))

	err := utils.Retry(t.logger, 3, time.Second, func() error {
		b, err := bot.New(t.token)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram bot: %w", err)
		}
		params := &bot.SendMessageParams{
			ChatID: t.chatID,
			Text:   text,
		}
		if _, err := b.SendMessage(ctx, params); err != nil {
			return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", t.chatID, err)
		}
		return nil
	})
	if err != nil {
		t.logger.Errorf("Telegram run summary failed: %v", err)
	}
}
