package ports

import "context"

// Button is an inline button carrying a callback token.
type Button struct {
	Text string
	Data string
}

// MessageOptions controls how an outbound message is rendered.
type MessageOptions struct {
	// Markdown enables lightweight markup in the text.
	Markdown bool
	// Buttons are laid out one slice per row.
	Buttons [][]Button
}

// Notifier is the outbound side of the command/notification channel.
type Notifier interface {
	// SendMessage sends text to the user and returns the new message ID.
	SendMessage(ctx context.Context, userID, text string, opts MessageOptions) (int, error)

	// EditMessage replaces the text of a previously sent message.
	EditMessage(ctx context.Context, userID string, messageID int, text string, opts MessageOptions) error

	// DeleteMessage removes a message.
	DeleteMessage(ctx context.Context, userID string, messageID int) error

	// SendImage sends a PNG image with a caption.
	SendImage(ctx context.Context, userID string, png []byte, caption string) error
}
