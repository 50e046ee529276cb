package app

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/telegram"
)

type telegramBot struct {
	bot         *tgbotapi.BotAPI
	notifier    *telegram.Notifier
	timeoutSecs int
}

func telegramFrontend(cfg config.TelegramConfig) (Frontend, error) {
	bot, err := telegram.NewBot(cfg.Token, cfg.APIEndpoint, cfg.Debug)
	if err != nil {
		return nil, err
	}
	log.Info().Str("bot", bot.Self.UserName).Msg("connected to telegram")
	return &telegramBot{
		bot:         bot,
		notifier:    telegram.NewNotifier(bot),
		timeoutSecs: cfg.PollTimeoutSecs,
	}, nil
}

func (t *telegramBot) Notifier() ports.Notifier {
	return t.notifier
}

func (t *telegramBot) Run(ctx context.Context, handler ports.CommandHandler) error {
	return telegram.NewPoller(t.bot, handler, t.timeoutSecs).Run(ctx)
}
