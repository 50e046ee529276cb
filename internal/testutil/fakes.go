package testutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// Approval records one ApproveJoinRequest call.
type Approval struct {
	GroupID       string
	ParticipantID string
}

// Rename records one RenameGroup call.
type Rename struct {
	GroupID string
	NewName string
}

// FakeProtocolClient implements ports.ProtocolClient in memory.
type FakeProtocolClient struct {
	mu     sync.Mutex
	events chan events.Event
	closed bool

	self    ports.SelfIdentity
	groups  []ports.Group
	pending map[string][]string

	approvals  []Approval
	renames    []Rename
	pairPhones []string
	loggedOut  bool

	// Configurable failures.
	PairingCode string
	PairingErr  error
	ListErr     error
	ApproveErr  error
	LogoutErr   error
	RenameErrs  map[string]error
}

// NewFakeProtocolClient creates a client with a buffered event channel.
func NewFakeProtocolClient() *FakeProtocolClient {
	return &FakeProtocolClient{
		events:      make(chan events.Event, 64),
		pending:     make(map[string][]string),
		RenameErrs:  make(map[string]error),
		PairingCode: "ABCD-EFGH",
	}
}

// SetSelf sets the identity returned by Self.
func (c *FakeProtocolClient) SetSelf(self ports.SelfIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.self = self
}

// SetGroups sets the groups returned by ListGroups.
func (c *FakeProtocolClient) SetGroups(groups ...ports.Group) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups = groups
}

// SetPending sets the pending join requests of a group.
func (c *FakeProtocolClient) SetPending(groupID string, participants ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending[groupID] = participants
}

// Emit delivers an event to the client's consumer. Emitting on a closed
// client is a no-op.
func (c *FakeProtocolClient) Emit(e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.events <- e
}

// Events implements ports.ProtocolClient.
func (c *FakeProtocolClient) Events() <-chan events.Event {
	return c.events
}

// RequestPairingCode implements ports.ProtocolClient.
func (c *FakeProtocolClient) RequestPairingCode(_ context.Context, phone string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairPhones = append(c.pairPhones, phone)
	if c.PairingErr != nil {
		return "", c.PairingErr
	}
	return c.PairingCode, nil
}

// Self implements ports.ProtocolClient.
func (c *FakeProtocolClient) Self(_ context.Context) (ports.SelfIdentity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.self, nil
}

// ListGroups implements ports.ProtocolClient.
func (c *FakeProtocolClient) ListGroups(_ context.Context) ([]ports.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	out := make([]ports.Group, len(c.groups))
	copy(out, c.groups)
	return out, nil
}

// FetchPendingJoinRequests implements ports.ProtocolClient.
func (c *FakeProtocolClient) FetchPendingJoinRequests(_ context.Context, groupID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pending[groupID]...), nil
}

// ApproveJoinRequest implements ports.ProtocolClient.
func (c *FakeProtocolClient) ApproveJoinRequest(_ context.Context, groupID, participantID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.approvals = append(c.approvals, Approval{GroupID: groupID, ParticipantID: participantID})
	return c.ApproveErr
}

// RenameGroup implements ports.ProtocolClient.
func (c *FakeProtocolClient) RenameGroup(_ context.Context, groupID, newName string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.renames = append(c.renames, Rename{GroupID: groupID, NewName: newName})
	return c.RenameErrs[groupID]
}

// Logout implements ports.ProtocolClient.
func (c *FakeProtocolClient) Logout(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return c.LogoutErr
}

// Close implements ports.ProtocolClient.
func (c *FakeProtocolClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Approvals returns the recorded approvals.
func (c *FakeProtocolClient) Approvals() []Approval {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Approval(nil), c.approvals...)
}

// Renames returns the recorded renames in call order.
func (c *FakeProtocolClient) Renames() []Rename {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Rename(nil), c.renames...)
}

// PairingPhones returns the phones pairing codes were requested for.
func (c *FakeProtocolClient) PairingPhones() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pairPhones...)
}

// LoggedOut reports whether Logout was called.
func (c *FakeProtocolClient) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// IsClosed reports whether Close was called.
func (c *FakeProtocolClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

var _ ports.ProtocolClient = (*FakeProtocolClient)(nil)

// OpenCall records one ClientFactory.Open call.
type OpenCall struct {
	UserID      string
	Credentials []byte
}

// FakeClientFactory implements ports.ClientFactory and hands out
// FakeProtocolClients.
type FakeClientFactory struct {
	mu      sync.Mutex
	opens   []OpenCall
	clients []*FakeProtocolClient

	// OpenErr fails every Open call when set.
	OpenErr error
	// Configure runs on every new client before it is returned.
	Configure func(*FakeProtocolClient)
}

// NewFakeClientFactory creates a factory.
func NewFakeClientFactory() *FakeClientFactory {
	return &FakeClientFactory{}
}

// Open implements ports.ClientFactory.
func (f *FakeClientFactory) Open(_ context.Context, userID string, credentials []byte) (ports.ProtocolClient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens = append(f.opens, OpenCall{UserID: userID, Credentials: credentials})
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	client := NewFakeProtocolClient()
	if f.Configure != nil {
		f.Configure(client)
	}
	f.clients = append(f.clients, client)
	return client, nil
}

// Opens returns the recorded Open calls.
func (f *FakeClientFactory) Opens() []OpenCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OpenCall(nil), f.opens...)
}

// OpenCount returns the number of Open calls.
func (f *FakeClientFactory) OpenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opens)
}

// Clients returns every client handed out.
func (f *FakeClientFactory) Clients() []*FakeProtocolClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeProtocolClient(nil), f.clients...)
}

// Last returns the most recent client, or nil.
func (f *FakeClientFactory) Last() *FakeProtocolClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.clients) == 0 {
		return nil
	}
	return f.clients[len(f.clients)-1]
}

var _ ports.ClientFactory = (*FakeClientFactory)(nil)

// SentMessage records one outbound message or edit.
type SentMessage struct {
	UserID    string
	MessageID int
	Text      string
	Options   ports.MessageOptions
	Edit      bool
}

// SentImage records one SendImage call.
type SentImage struct {
	UserID  string
	PNG     []byte
	Caption string
}

// FakeNotifier implements ports.Notifier and records everything it is asked
// to send.
type FakeNotifier struct {
	mu       sync.Mutex
	nextID   int
	messages []SentMessage
	deleted  []int
	images   []SentImage

	// SendErr fails every SendMessage call when set.
	SendErr error
}

// NewFakeNotifier creates a notifier.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{nextID: 100}
}

// SendMessage implements ports.Notifier.
func (n *FakeNotifier) SendMessage(_ context.Context, userID, text string, opts ports.MessageOptions) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.SendErr != nil {
		return 0, n.SendErr
	}
	n.nextID++
	n.messages = append(n.messages, SentMessage{UserID: userID, MessageID: n.nextID, Text: text, Options: opts})
	return n.nextID, nil
}

// EditMessage implements ports.Notifier.
func (n *FakeNotifier) EditMessage(_ context.Context, userID string, messageID int, text string, opts ports.MessageOptions) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, SentMessage{UserID: userID, MessageID: messageID, Text: text, Options: opts, Edit: true})
	return nil
}

// DeleteMessage implements ports.Notifier.
func (n *FakeNotifier) DeleteMessage(_ context.Context, _ string, messageID int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deleted = append(n.deleted, messageID)
	return nil
}

// SendImage implements ports.Notifier.
func (n *FakeNotifier) SendImage(_ context.Context, userID string, png []byte, caption string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.images = append(n.images, SentImage{UserID: userID, PNG: png, Caption: caption})
	return nil
}

// Messages returns the messages and edits sent to userID.
func (n *FakeNotifier) Messages(userID string) []SentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []SentMessage
	for _, m := range n.messages {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

// Texts returns the texts sent to userID in order.
func (n *FakeNotifier) Texts(userID string) []string {
	var out []string
	for _, m := range n.Messages(userID) {
		out = append(out, m.Text)
	}
	return out
}

// LastText returns the most recent text sent to userID.
func (n *FakeNotifier) LastText(userID string) string {
	texts := n.Texts(userID)
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// HasText reports whether any text sent to userID contains substr.
func (n *FakeNotifier) HasText(userID, substr string) bool {
	return n.CountText(userID, substr) > 0
}

// CountText counts the texts sent to userID that contain substr.
func (n *FakeNotifier) CountText(userID, substr string) int {
	count := 0
	for _, t := range n.Texts(userID) {
		if strings.Contains(t, substr) {
			count++
		}
	}
	return count
}

// Deleted returns the deleted message IDs.
func (n *FakeNotifier) Deleted() []int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]int(nil), n.deleted...)
}

// Images returns the images sent.
func (n *FakeNotifier) Images() []SentImage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]SentImage(nil), n.images...)
}

var _ ports.Notifier = (*FakeNotifier)(nil)

// ErrNotStored is returned by MemoryCredentialStore for unknown users.
var ErrNotStored = errors.New("not stored")

// MemoryCredentialStore implements ports.CredentialStore in memory.
type MemoryCredentialStore struct {
	mu       sync.Mutex
	creds    map[string][]byte
	settings map[string]ports.Settings
	dirs     map[string]bool

	// DeleteErr fails every Delete call when set.
	DeleteErr error
}

// NewMemoryCredentialStore creates an empty store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		creds:    make(map[string][]byte),
		settings: make(map[string]ports.Settings),
		dirs:     make(map[string]bool),
	}
}

// HasCredentials implements ports.CredentialStore.
func (s *MemoryCredentialStore) HasCredentials(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.creds[userID]) > 0
}

// LoadCredentials implements ports.CredentialStore.
func (s *MemoryCredentialStore) LoadCredentials(userID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	blob, ok := s.creds[userID]
	if !ok {
		return nil, fmt.Errorf("credentials for %s: %w", userID, ErrNotStored)
	}
	return blob, nil
}

// SaveCredentials implements ports.CredentialStore.
func (s *MemoryCredentialStore) SaveCredentials(userID string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID] = append([]byte(nil), blob...)
	s.dirs[userID] = true
	return nil
}

// LoadSettings implements ports.CredentialStore.
func (s *MemoryCredentialStore) LoadSettings(userID string) (ports.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings[userID], nil
}

// SaveSettings implements ports.CredentialStore.
func (s *MemoryCredentialStore) SaveSettings(userID string, settings ports.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[userID] = settings
	s.dirs[userID] = true
	return nil
}

// Delete implements ports.CredentialStore.
func (s *MemoryCredentialStore) Delete(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.creds, userID)
	delete(s.settings, userID)
	delete(s.dirs, userID)
	return nil
}

// Users implements ports.CredentialStore.
func (s *MemoryCredentialStore) Users() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make([]string, 0, len(s.dirs))
	for id := range s.dirs {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// AddDir registers an empty storage directory for userID.
func (s *MemoryCredentialStore) AddDir(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[userID] = true
}

var _ ports.CredentialStore = (*MemoryCredentialStore)(nil)
