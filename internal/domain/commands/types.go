// Package commands defines the inbound commands grouppilot accepts from the
// chat front-end.
package commands

import (
	"strconv"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// CommandType represents the type of command (the callback token carried by
// an inline button, or a slash command).
type CommandType string

const (
	CommandStart            CommandType = "/start"
	CommandCancel           CommandType = "/cancel"
	CommandLogin            CommandType = "login"
	CommandLoginQR          CommandType = "login_qr"
	CommandCancelLogin      CommandType = "cancel_login"
	CommandAutoAccept       CommandType = "auto_accept"
	CommandToggleAutoAccept CommandType = "toggle_auto_accept"
	CommandStatus           CommandType = "status"
	CommandLogout           CommandType = "logout"
	CommandMainMenu         CommandType = "main_menu"
	CommandRename           CommandType = "rename"
	CommandRenameConfirm    CommandType = "rename_confirm"
	CommandRenameCancel     CommandType = "rename_cancel"
	CommandSelectCluster    CommandType = "cluster"
)

// clusterPrefix prefixes cluster selection tokens ("cluster:2").
const clusterPrefix = string(CommandSelectCluster) + ":"

// Of returns the command type of a button press or slash command. Free text
// yields an empty type.
func Of(cmd ports.Command) CommandType {
	if cmd.Callback != "" {
		if strings.HasPrefix(cmd.Callback, clusterPrefix) {
			return CommandSelectCluster
		}
		return CommandType(cmd.Callback)
	}
	return Slash(cmd.Text)
}

// Slash returns the slash command at the start of text, without a bot
// suffix: "/start@my_bot args" is CommandStart.
func Slash(text string) CommandType {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	name := strings.Fields(text)[0]
	if at := strings.Index(name, "@"); at > 0 {
		name = name[:at]
	}
	return CommandType(name)
}

// ClusterToken builds the callback token that selects the cluster at the
// 0-based index.
func ClusterToken(index int) string {
	return clusterPrefix + strconv.Itoa(index)
}

// ClusterIndex parses a cluster token. ok is false for any other token.
func ClusterIndex(callback string) (index int, ok bool) {
	rest, found := strings.CutPrefix(callback, clusterPrefix)
	if !found {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
