// ABOUTME: Matrix account implementing the driver contracts over mautrix
// ABOUTME: Resolves contacts from config and m.direct, runs the sync loop feeding incoming streams

package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-meta/internal/broadcast"
	"github.com/2389/coven-meta/internal/driver"
)

// DriverName prefixes every matrix global id.
const DriverName = "matrix"

// networkTimeout bounds Matrix API calls made without a caller context.
const networkTimeout = 10 * time.Second

// ErrForeignID is returned when an id belongs to another driver
var ErrForeignID = errors.New("not a matrix id")

// Config describes one Matrix login.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	DeviceID    string
	Contacts    []string
}

// Account is a Matrix user reachable through one homeserver.
type Account struct {
	client   *mautrix.Client
	self     id.UserID
	id       driver.GlobalID
	contacts []id.UserID
	events   *broadcast.Broadcaster[driver.Message]
	logger   *slog.Logger
	now      func() time.Time

	registerOnce sync.Once
	mu           sync.RWMutex
	startedAt    time.Time
}

// NewAccount creates the client for cfg. No request is made until a method
// needs the homeserver.
func NewAccount(cfg Config, logger *slog.Logger) (*Account, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := mautrix.NewClient(cfg.Homeserver, id.UserID(cfg.UserID), cfg.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	if cfg.DeviceID != "" {
		client.DeviceID = id.DeviceID(cfg.DeviceID)
	}

	self := id.UserID(cfg.UserID)
	logger = logger.With("component", "matrix", "account_id", cfg.UserID)
	return &Account{
		client:   client,
		self:     self,
		id:       userGlobalID(self),
		contacts: lo.Uniq(lo.Map(cfg.Contacts, func(c string, _ int) id.UserID { return id.UserID(c) })),
		events:   broadcast.New[driver.Message](logger),
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (a *Account) GlobalID() driver.GlobalID { return a.id }
func (a *Account) DriverName() string        { return DriverName }

// HasContact checks the configured contacts first and only then fetches
// m.direct from the homeserver.
func (a *Account) HasContact(ctx context.Context, contact driver.Contact) (bool, error) {
	if contact.ID.Driver() != DriverName {
		return false, nil
	}
	user := id.UserID(contact.ID.Local())
	if slices.Contains(a.contacts, user) {
		return true, nil
	}

	direct, err := a.directChats(ctx)
	if err != nil {
		return false, err
	}
	_, ok := direct[user]
	return ok, nil
}

// ContactAccounts lists configured contacts followed by the m.direct partners
// not configured.
func (a *Account) ContactAccounts(ctx context.Context) ([]driver.Contact, error) {
	direct, err := a.directChats(ctx)
	if err != nil {
		return nil, err
	}

	users := slices.Clone(a.contacts)
	partners := lo.Keys(direct)
	slices.Sort(partners)
	for _, u := range partners {
		if !slices.Contains(users, u) {
			users = append(users, u)
		}
	}
	return lo.Map(users, func(u id.UserID, _ int) driver.Contact {
		return driver.Contact{ID: userGlobalID(u), DisplayName: localpart(u)}
	}), nil
}

func (a *Account) directChats(ctx context.Context) (event.DirectChatsEventContent, error) {
	direct := event.DirectChatsEventContent{}
	err := a.client.GetAccountData(ctx, event.AccountDataDirectChats.Type, &direct)
	if errors.Is(err, mautrix.MNotFound) {
		return event.DirectChatsEventContent{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching m.direct: %w", err)
	}
	return direct, nil
}

func (a *Account) Session(_ context.Context) (driver.Session, error) {
	return &session{account: a}, nil
}

// GetOrCreateDiscussion returns the first joined room whose members are
// exactly the account and contacts, creating a room when none matches.
func (a *Account) GetOrCreateDiscussion(ctx context.Context, contacts []driver.Contact) (driver.Discussion, error) {
	users, err := userIDs(lo.Map(contacts, func(c driver.Contact, _ int) driver.GlobalID { return c.ID }))
	if err != nil {
		return nil, err
	}
	want := append([]id.UserID{a.self}, users...)

	rooms, err := a.client.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing joined rooms: %w", err)
	}
	for _, room := range rooms.JoinedRooms {
		members, err := a.client.JoinedMembers(ctx, room)
		if err != nil {
			a.logger.Debug("skipping room with unreadable members", "room", room, "error", err)
			continue
		}
		if sameMembers(lo.Keys(members.Joined), want) {
			return a.handle(room, time.Time{}), nil
		}
	}

	return a.createRoom(ctx, users)
}

// Discussions lists every joined room.
func (a *Account) Discussions(ctx context.Context) ([]driver.Discussion, error) {
	rooms, err := a.client.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing joined rooms: %w", err)
	}
	return lo.Map(rooms.JoinedRooms, func(room id.RoomID, _ int) driver.Discussion {
		return a.handle(room, time.Time{})
	}), nil
}

// Run syncs with the homeserver and publishes incoming room messages until ctx
// ends. Events older than the start of the first Run are ignored so the
// initial sync does not replay history.
func (a *Account) Run(ctx context.Context) error {
	syncer, ok := a.client.Syncer.(*mautrix.DefaultSyncer)
	if !ok {
		return fmt.Errorf("unexpected syncer type: %T", a.client.Syncer)
	}

	a.mu.Lock()
	if a.startedAt.IsZero() {
		a.startedAt = a.now()
	}
	a.mu.Unlock()

	a.registerOnce.Do(func() {
		syncer.OnEventType(event.EventMessage, a.handleEvent)
	})

	a.logger.Info("starting matrix sync", "homeserver", a.client.HomeserverURL.String())

	syncErr := make(chan error, 1)
	go func() {
		syncErr <- a.client.SyncWithContext(ctx)
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("matrix sync stopped")
		return nil
	case err := <-syncErr:
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("matrix sync failed: %w", err)
	}
}

// Close ends every incoming stream.
func (a *Account) Close() {
	a.events.Close()
}

func (a *Account) handleEvent(_ context.Context, evt *event.Event) {
	if evt.Sender == a.self {
		return
	}

	a.mu.RLock()
	startedAt := a.startedAt
	a.mu.RUnlock()
	if !startedAt.IsZero() && time.UnixMilli(evt.Timestamp).Before(startedAt) {
		return
	}

	msg, ok := toMessage(evt)
	if !ok {
		return
	}

	a.logger.Debug("received message", "room", evt.RoomID, "sender", evt.Sender)
	a.events.Publish(string(evt.RoomID), msg, "")
}

func (a *Account) createRoom(ctx context.Context, users []id.UserID) (*Discussion, error) {
	resp, err := a.client.CreateRoom(ctx, &mautrix.ReqCreateRoom{
		Preset:   "trusted_private_chat",
		Invite:   users,
		IsDirect: len(users) == 1,
	})
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}

	a.logger.Info("room created", "room", resp.RoomID, "invited", len(users))
	return a.handle(resp.RoomID, a.now()), nil
}

func (a *Account) handle(room id.RoomID, createdAt time.Time) *Discussion {
	return &Discussion{account: a, room: room, createdAt: createdAt}
}

type session struct {
	account *Account
}

// CreateDiscussion always creates a new room and invites contacts.
func (s *session) CreateDiscussion(ctx context.Context, contacts []driver.GlobalID) (driver.Discussion, error) {
	users, err := userIDs(contacts)
	if err != nil {
		return nil, err
	}
	return s.account.createRoom(ctx, users)
}

func (s *session) Discussion(ctx context.Context, discussionID driver.GlobalID) (driver.Discussion, error) {
	room, err := roomID(discussionID)
	if err != nil {
		return nil, err
	}

	rooms, err := s.account.client.JoinedRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing joined rooms: %w", err)
	}
	if !slices.Contains(rooms.JoinedRooms, room) {
		return nil, fmt.Errorf("%w: %s", driver.ErrUnknownDiscussion, discussionID)
	}
	return s.account.handle(room, time.Time{}), nil
}

func (s *session) LeaveDiscussion(ctx context.Context, discussionID driver.GlobalID) error {
	room, err := roomID(discussionID)
	if err != nil {
		return err
	}
	if _, err := s.account.client.LeaveRoom(ctx, room); err != nil {
		return fmt.Errorf("leaving %s: %w", room, err)
	}
	return nil
}
