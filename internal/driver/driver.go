// ABOUTME: Protocol driver contracts consumed by the discussion layer
// ABOUTME: Defines GlobalID, Contact, Message and the Account/Session/Discussion interfaces

package driver

import (
	"context"
	"errors"
	"strings"
	"time"
)

//go:generate go run go.uber.org/mock/mockgen -source=driver.go -destination=mocks/driver_mock.go -package=mocks

// ErrUnknownDiscussion is returned when a session cannot find a discussion by id
var ErrUnknownDiscussion = errors.New("unknown discussion")

// ErrUnsupported is returned by drivers for operations their protocol cannot perform
var ErrUnsupported = errors.New("operation not supported by driver")

// GlobalID is a durable, driver-qualified identifier for an account, a contact,
// a discussion or a message. It is stable across process restarts.
type GlobalID string

// NewGlobalID builds "<driver>:<local>".
func NewGlobalID(driverName, local string) GlobalID {
	return GlobalID(driverName + ":" + local)
}

// Driver returns the driver prefix, or "" when the id carries none.
func (g GlobalID) Driver() string {
	driverName, _, ok := strings.Cut(string(g), ":")
	if !ok {
		return ""
	}
	return driverName
}

// Local returns the driver-local part of the id.
func (g GlobalID) Local() string {
	_, local, ok := strings.Cut(string(g), ":")
	if !ok {
		return string(g)
	}
	return local
}

func (g GlobalID) String() string { return string(g) }

// Contact is a remote party reachable through an account.
type Contact struct {
	ID          GlobalID
	DisplayName string
}

// Message is a single protocol-level message.
type Message struct {
	ID           GlobalID
	DiscussionID GlobalID
	Author       GlobalID
	Body         string
	CreatedAt    time.Time
}

// MessageOptions narrows message retrieval.
type MessageOptions struct {
	MaxMessages int                 // 0 means no limit
	AfterDate   time.Time           // zero means no lower bound; inclusive
	Filter      func(Message) bool // nil keeps everything
}

// Apply filters msgs (assumed chronological) by AfterDate and Filter, then keeps
// the most recent MaxMessages of what remains.
func (o MessageOptions) Apply(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if !o.AfterDate.IsZero() && m.CreatedAt.Before(o.AfterDate) {
			continue
		}
		if o.Filter != nil && !o.Filter(m) {
			continue
		}
		out = append(out, m)
	}
	if o.MaxMessages > 0 && len(out) > o.MaxMessages {
		out = out[len(out)-o.MaxMessages:]
	}
	return out
}

// Account is one local identity on one driver.
type Account interface {
	GlobalID() GlobalID
	DriverName() string

	// HasContact reports whether contact is among this account's known contacts.
	HasContact(ctx context.Context, contact Contact) (bool, error)
	// ContactAccounts lists the account's known contacts.
	ContactAccounts(ctx context.Context) ([]Contact, error)

	// Session returns the driver session, connecting on first use.
	Session(ctx context.Context) (Session, error)

	// GetOrCreateDiscussion returns the account's discussion with exactly these
	// contacts, creating it when none exists yet.
	GetOrCreateDiscussion(ctx context.Context, contacts []Contact) (Discussion, error)
	// Discussions lists every discussion the account takes part in.
	Discussions(ctx context.Context) ([]Discussion, error)
}

// Session is a connected driver handle.
type Session interface {
	CreateDiscussion(ctx context.Context, contacts []GlobalID) (Discussion, error)
	Discussion(ctx context.Context, id GlobalID) (Discussion, error)
	LeaveDiscussion(ctx context.Context, id GlobalID) error
}

// Discussion is a protocol-level conversation as seen by one account.
type Discussion interface {
	GlobalID() GlobalID
	Name() string
	Description() string
	CreatedAt() time.Time

	Messages(ctx context.Context, opts MessageOptions) ([]Message, error)
	Participants(ctx context.Context) ([]Contact, error)
	SendMessage(ctx context.Context, body string) (Message, error)
	AddParticipant(ctx context.Context, contact GlobalID) error
	RemoveParticipant(ctx context.Context, contact GlobalID) error

	// Merge folds other into this discussion using protocol-specific rules.
	Merge(ctx context.Context, other Discussion) error

	// Incoming streams messages authored by other participants. The channel is
	// closed when ctx ends.
	Incoming(ctx context.Context) (<-chan Message, error)
}
