package ports

import "context"

// Command is one inbound interaction from the chat front-end: either a text
// message or a button press.
type Command struct {
	UserID string

	// MessageID identifies the user's text message, or the bot message
	// carrying the pressed button.
	MessageID int

	Text     string
	Callback string
}

// IsCallback reports whether the command is a button press.
func (c Command) IsCallback() bool {
	return c.Callback != ""
}

// CommandHandler consumes inbound commands.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd Command)
}
