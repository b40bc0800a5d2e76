// ABOUTME: Shared discussion/message contracts and the closed {Simple, Meta} variant set
// ABOUTME: Also holds sentinel errors and revocable subscription handles

package discussion

import (
	"context"
	"errors"
	"time"

	"github.com/2389/coven-meta/internal/broadcast"
	"github.com/2389/coven-meta/internal/driver"
)

var (
	// ErrNotFound covers unknown contacts, unknown accounts and missing sub-discussions
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an account or sub-discussion is already registered
	ErrConflict = errors.New("already existing")
	// ErrMalformed is returned when a value of an unexpected variant is supplied
	ErrMalformed = errors.New("malformed")
	// ErrUnimplemented is returned for operations that need a backing store that is not configured
	ErrUnimplemented = errors.New("unimplemented")
)

// Kind tells the two discussion and message variants apart.
type Kind int

const (
	KindSimple Kind = iota + 1
	KindMeta
)

func (k Kind) String() string {
	switch k {
	case KindSimple:
		return "simple"
	case KindMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Discussion is the contract shared by simple and meta discussions. The set of
// implementations is closed: only *Simple and *Meta satisfy it.
type Discussion interface {
	GlobalID() driver.GlobalID
	Kind() Kind
	Name() string
	Description() string
	CreatedAt() time.Time

	Messages(ctx context.Context, opts driver.MessageOptions) ([]Message, error)
	Participants(ctx context.Context) ([]driver.Contact, error)
	AddParticipant(ctx context.Context, contact driver.Contact) error
	RemoveParticipants(ctx context.Context, contact driver.Contact) error
	SendMessage(ctx context.Context, body string) (Message, error)

	// Subscribe streams "message" events until ctx ends or the subscription is cancelled.
	Subscribe(ctx context.Context) (<-chan Message, *Subscription)

	sealedDiscussion()
}

// Message is the contract shared by simple and meta messages. Only
// *SimpleMessage and *MetaMessage satisfy it.
type Message interface {
	ID() driver.GlobalID
	Kind() Kind
	Body() string
	Author() driver.GlobalID
	CreatedAt() time.Time
	BodyEquals(other Message) bool

	sealedMessage()
}

// DefaultQuotePrefix marks relayed copies of a message.
const DefaultQuotePrefix = ">>"

// Subscription is a revocable handle on an event stream.
type Subscription struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// Cancel ends the subscription and closes its channel. Safe on nil and when
// called more than once.
func (s *Subscription) Cancel() {
	if s == nil {
		return
	}
	s.cancel()
}

// Done is closed once the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.ctx.Done()
}

func subscribe[T any](ctx context.Context, b *broadcast.Broadcaster[T], key string) (<-chan T, *Subscription) {
	subCtx, cancel := context.WithCancel(ctx)
	ch, _ := b.Subscribe(subCtx, key)
	return ch, &Subscription{ctx: subCtx, cancel: cancel}
}

// subscribeLossless is subscribe with a queue that never drops. Used where
// every value must be handled, such as the relay.
func subscribeLossless[T any](ctx context.Context, b *broadcast.Broadcaster[T], key string) (<-chan T, *Subscription) {
	subCtx, cancel := context.WithCancel(ctx)
	ch, _ := b.SubscribeLossless(subCtx, key)
	return ch, &Subscription{ctx: subCtx, cancel: cancel}
}

// widen turns a typed event stream into a stream of the Message contract.
func widen[T Message](in <-chan T, sub *Subscription) <-chan Message {
	out := make(chan Message, 1)
	go func() {
		defer close(out)
		for v := range in {
			select {
			case out <- v:
			case <-sub.Done():
				return
			}
		}
	}()
	return out
}
