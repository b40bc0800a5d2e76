// ABOUTME: Simple discussion wrapping exactly one driver-level discussion
// ABOUTME: Republishes the driver's incoming stream as SimpleMessage events

package discussion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/broadcast"
	"github.com/2389/coven-meta/internal/driver"
)

// Simple is a single-protocol, single-account discussion.
type Simple struct {
	account driver.Account
	handle  driver.Discussion
	events  *broadcast.Broadcaster[*SimpleMessage]
	logger  *slog.Logger

	mu         sync.Mutex
	listenGen  int
	listenCtx  context.Context
	stopListen context.CancelFunc
}

// NewSimple wraps handle, a discussion of account. Pass nil logger for default.
func NewSimple(account driver.Account, handle driver.Discussion, logger *slog.Logger) *Simple {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		"component", "simple_discussion",
		"discussion_id", handle.GlobalID(),
		"driver", account.DriverName(),
	)
	return &Simple{
		account: account,
		handle:  handle,
		events:  broadcast.New[*SimpleMessage](logger),
		logger:  logger,
	}
}

func (s *Simple) GlobalID() driver.GlobalID    { return s.handle.GlobalID() }
func (s *Simple) Kind() Kind                   { return KindSimple }
func (s *Simple) Name() string                 { return s.handle.Name() }
func (s *Simple) Description() string          { return s.handle.Description() }
func (s *Simple) CreatedAt() time.Time         { return s.handle.CreatedAt() }
func (s *Simple) DriverName() string           { return s.account.DriverName() }
func (s *Simple) LocalAccount() driver.Account { return s.account }
func (s *Simple) Handle() driver.Discussion    { return s.handle }
func (s *Simple) sealedDiscussion()            {}

// IsTheSameAs reports whether other wraps the same driver discussion for the
// same local account.
func (s *Simple) IsTheSameAs(other *Simple) bool {
	if other == nil {
		return false
	}
	return s.DriverName() == other.DriverName() &&
		s.account.GlobalID() == other.account.GlobalID() &&
		s.GlobalID() == other.GlobalID()
}

// SimpleMessages fetches the driver history as simple messages.
func (s *Simple) SimpleMessages(ctx context.Context, opts driver.MessageOptions) ([]*SimpleMessage, error) {
	raw, err := s.handle.Messages(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("fetching messages of %s: %w", s.GlobalID(), err)
	}
	return lo.Map(raw, func(m driver.Message, _ int) *SimpleMessage {
		return newSimpleMessage(s, m)
	}), nil
}

func (s *Simple) Messages(ctx context.Context, opts driver.MessageOptions) ([]Message, error) {
	msgs, err := s.SimpleMessages(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(m *SimpleMessage, _ int) Message { return m }), nil
}

func (s *Simple) Participants(ctx context.Context) ([]driver.Contact, error) {
	contacts, err := s.handle.Participants(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing participants of %s: %w", s.GlobalID(), err)
	}
	return contacts, nil
}

func (s *Simple) AddParticipant(ctx context.Context, contact driver.Contact) error {
	if err := s.handle.AddParticipant(ctx, contact.ID); err != nil {
		return fmt.Errorf("adding %s to %s: %w", contact.ID, s.GlobalID(), err)
	}
	s.logger.Debug("participant added", "contact_id", contact.ID)
	return nil
}

func (s *Simple) RemoveParticipants(ctx context.Context, contact driver.Contact) error {
	if err := s.handle.RemoveParticipant(ctx, contact.ID); err != nil {
		return fmt.Errorf("removing %s from %s: %w", contact.ID, s.GlobalID(), err)
	}
	s.logger.Debug("participant removed", "contact_id", contact.ID)
	return nil
}

// Send posts body and returns the typed message.
func (s *Simple) Send(ctx context.Context, body string) (*SimpleMessage, error) {
	raw, err := s.handle.SendMessage(ctx, body)
	if err != nil {
		return nil, fmt.Errorf("sending to %s: %w", s.GlobalID(), err)
	}
	return newSimpleMessage(s, raw), nil
}

func (s *Simple) SendMessage(ctx context.Context, body string) (Message, error) {
	msg, err := s.Send(ctx, body)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Merge folds other into this discussion with the driver's merge rules.
func (s *Simple) Merge(ctx context.Context, other *Simple) error {
	if other == nil {
		return fmt.Errorf("merging into %s: %w: nil discussion", s.GlobalID(), ErrMalformed)
	}
	if err := s.handle.Merge(ctx, other.handle); err != nil {
		return fmt.Errorf("merging %s into %s: %w", other.GlobalID(), s.GlobalID(), err)
	}
	s.logger.Debug("discussion merged", "merged_id", other.GlobalID())
	return nil
}

// Listen starts republishing the driver's incoming messages. It is a no-op
// while already listening. Listening stops when ctx ends or on Close.
func (s *Simple) Listen(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopListen != nil && s.listenCtx.Err() == nil {
		return nil
	}

	listenCtx, cancel := context.WithCancel(ctx)
	in, err := s.handle.Incoming(listenCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("listening on %s: %w", s.GlobalID(), err)
	}

	s.listenGen++
	gen := s.listenGen
	s.listenCtx = listenCtx
	s.stopListen = cancel

	go func() {
		for raw := range in {
			if listenCtx.Err() != nil {
				continue
			}
			s.events.Publish(string(s.GlobalID()), newSimpleMessage(s, raw), "")
		}
		s.mu.Lock()
		if s.listenGen == gen {
			s.stopListen = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	s.logger.Debug("listening")
	return nil
}

// Listening reports whether the incoming stream is being republished.
func (s *Simple) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopListen != nil && s.listenCtx.Err() == nil
}

// SubscribeMessages streams incoming messages as *SimpleMessage. A reader
// falling far behind loses messages.
func (s *Simple) SubscribeMessages(ctx context.Context) (<-chan *SimpleMessage, *Subscription) {
	return subscribe(ctx, s.events, string(s.GlobalID()))
}

// subscribeAll streams every incoming message, however slow the reader.
func (s *Simple) subscribeAll(ctx context.Context) (<-chan *SimpleMessage, *Subscription) {
	return subscribeLossless(ctx, s.events, string(s.GlobalID()))
}

func (s *Simple) Subscribe(ctx context.Context) (<-chan Message, *Subscription) {
	ch, sub := s.SubscribeMessages(ctx)
	return widen(ch, sub), sub
}

// StopListening releases the driver's incoming stream. Subscriptions stay
// open and Listen may be called again.
func (s *Simple) StopListening() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopListen != nil {
		s.stopListen()
		s.stopListen = nil
		s.logger.Debug("stopped listening")
	}
}

// Close stops listening and closes every subscription.
func (s *Simple) Close() {
	s.StopListening()
	s.events.Close()
}
