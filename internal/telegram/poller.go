package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// Poller long-polls the Bot API and hands every message and button press
// to a ports.CommandHandler.
type Poller struct {
	bot      *tgbotapi.BotAPI
	notifier *Notifier
	handler  ports.CommandHandler
	timeout  int
}

// NewPoller creates a poller. timeoutSecs is the long-poll timeout.
func NewPoller(bot *tgbotapi.BotAPI, handler ports.CommandHandler, timeoutSecs int) *Poller {
	return &Poller{
		bot:      bot,
		notifier: NewNotifier(bot),
		handler:  handler,
		timeout:  timeoutSecs,
	}
}

// Run polls until ctx is cancelled. Commands of one user are handled
// sequentially in arrival order; different users do not wait on each other.
// Button presses are answered before they are queued.
func (p *Poller) Run(ctx context.Context) error {
	queue := newUserQueue(p.handler)
	defer queue.Wait()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = p.timeout
	updates := p.bot.GetUpdatesChan(u)

	log.Info().Str("bot", p.bot.Self.UserName).Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			p.bot.StopReceivingUpdates()
			log.Info().Msg("telegram polling stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				return fmt.Errorf("telegram update channel closed")
			}
			cmd, callbackID, ok := toCommand(update)
			if !ok {
				continue
			}
			if callbackID != "" {
				if err := p.notifier.AnswerCallback(callbackID); err != nil {
					log.Debug().Err(err).Msg("failed to answer callback")
				}
			}
			queue.Push(ctx, cmd)
		}
	}
}

// toCommand converts an update into a command. It reports false for
// updates that carry neither text nor a button press.
func toCommand(update tgbotapi.Update) (ports.Command, string, bool) {
	switch {
	case update.CallbackQuery != nil:
		q := update.CallbackQuery
		if q.From == nil {
			return ports.Command{}, "", false
		}
		cmd := ports.Command{
			UserID:   strconv.FormatInt(q.From.ID, 10),
			Callback: q.Data,
		}
		if q.Message != nil {
			cmd.MessageID = q.Message.MessageID
		}
		return cmd, q.ID, true

	case update.Message != nil:
		m := update.Message
		if m.From == nil || m.Text == "" {
			return ports.Command{}, "", false
		}
		if m.Chat != nil && !m.Chat.IsPrivate() {
			return ports.Command{}, "", false
		}
		return ports.Command{
			UserID:    strconv.FormatInt(m.From.ID, 10),
			MessageID: m.MessageID,
			Text:      m.Text,
		}, "", true
	}
	return ports.Command{}, "", false
}

// logAdapter routes the library's logging into zerolog.
type logAdapter struct{}

func (logAdapter) Println(v ...interface{}) {
	log.Debug().Str("component", "telegram").Msg(fmt.Sprint(v...))
}

func (logAdapter) Printf(format string, v ...interface{}) {
	log.Debug().Str("component", "telegram").Msgf(format, v...)
}

// NewBot connects to the Bot API with token. A non-empty endpoint replaces
// the public API and must hold two %s verbs, for the token and the method.
func NewBot(token, endpoint string, debug bool) (*tgbotapi.BotAPI, error) {
	_ = tgbotapi.SetLogger(logAdapter{})
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	bot.Debug = debug
	return bot, nil
}
