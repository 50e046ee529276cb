// Package telegram connects grouppilot to the Telegram Bot API: outbound
// messages through Notifier and inbound updates through Poller.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// Sender is the subset of *tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Notifier implements ports.Notifier over a bot. User IDs double as chat IDs
// because the bot only talks in private chats.
type Notifier struct {
	bot Sender
}

// NewNotifier creates a notifier sending through bot.
func NewNotifier(bot Sender) *Notifier {
	return &Notifier{bot: bot}
}

func chatID(userID string) (int64, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram user id %q: %w", userID, err)
	}
	return id, nil
}

func keyboard(buttons [][]ports.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(buttons) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btns...))
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

func parseMode(opts ports.MessageOptions) string {
	if opts.Markdown {
		return tgbotapi.ModeMarkdown
	}
	return ""
}

// SendMessage implements ports.Notifier.
func (n *Notifier) SendMessage(ctx context.Context, userID, text string, opts ports.MessageOptions) (int, error) {
	id, err := chatID(userID)
	if err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(id, text)
	msg.ParseMode = parseMode(opts)
	if kb := keyboard(opts.Buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}

	sent, err := n.bot.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMessage implements ports.Notifier. Editing to identical content is
// not an error.
func (n *Notifier) EditMessage(ctx context.Context, userID string, messageID int, text string, opts ports.MessageOptions) error {
	id, err := chatID(userID)
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(id, messageID, text)
	edit.ParseMode = parseMode(opts)
	edit.ReplyMarkup = keyboard(opts.Buttons)

	if _, err := n.bot.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// DeleteMessage implements ports.Notifier.
func (n *Notifier) DeleteMessage(ctx context.Context, userID string, messageID int) error {
	id, err := chatID(userID)
	if err != nil {
		return err
	}
	if _, err := n.bot.Request(tgbotapi.NewDeleteMessage(id, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// SendImage implements ports.Notifier.
func (n *Notifier) SendImage(ctx context.Context, userID string, png []byte, caption string) error {
	id, err := chatID(userID)
	if err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(id, tgbotapi.FileBytes{Name: "qr.png", Bytes: png})
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown

	if _, err := n.bot.Send(photo); err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	log.Debug().Str("user_id", userID).Int("bytes", len(png)).Msg("image sent")
	return nil
}

// AnswerCallback acknowledges a button press so the client stops its
// loading spinner.
func (n *Notifier) AnswerCallback(callbackID string) error {
	_, err := n.bot.Request(tgbotapi.NewCallback(callbackID, ""))
	return err
}

var _ ports.Notifier = (*Notifier)(nil)
