// Package identity compares account identifiers that may arrive in
// different formats. The protocol names one account by a phone-based ID
// ("628123456789:12@s.whatsapp.net") and by a linked ID ("1234567@lid");
// participant lists may carry either, with or without a device suffix.
package identity

import (
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// Normalize returns the canonical key of id: the user part before any
// "@server" and ":device" suffix. Normalize("628123:12@s.whatsapp.net") and
// Normalize("628123@s.whatsapp.net") are both "628123". An empty id yields "".
func Normalize(id string) string {
	id = strings.TrimSpace(id)
	if at := strings.IndexByte(id, '@'); at >= 0 {
		id = id[:at]
	}
	if colon := strings.IndexByte(id, ':'); colon >= 0 {
		id = id[:colon]
	}
	return id
}

// Matches reports whether participantID names the account described by
// self, either exactly or after normalization of the primary or the
// alternate ID.
func Matches(self ports.SelfIdentity, participantID string) bool {
	if participantID == "" {
		return false
	}
	if participantID == self.ID || (self.AltID != "" && participantID == self.AltID) {
		return true
	}
	key := Normalize(participantID)
	if key == "" {
		return false
	}
	return key == Normalize(self.ID) || (self.AltID != "" && key == Normalize(self.AltID))
}

// IsAdminOf reports whether self holds an admin role in group.
func IsAdminOf(self ports.SelfIdentity, group ports.Group) bool {
	for _, p := range group.Participants {
		if p.IsAdmin() && Matches(self, p.ID) {
			return true
		}
	}
	return false
}
