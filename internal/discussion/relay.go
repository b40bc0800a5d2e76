// ABOUTME: Live relay between the sub-discussions of a meta-discussion
// ABOUTME: Copies each incoming message, quoted, to every other active sub-discussion

package discussion

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/dedupe"
	"github.com/2389/coven-meta/internal/driver"
)

// Listen starts relaying. Calling it again while listening does nothing.
// Sub-discussions added later are attached as they join; removed ones have
// their relay revoked.
func (m *Meta) Listen(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listening {
		return nil
	}

	m.listenCtx, m.stopListening = context.WithCancel(ctx)
	m.listening = true
	for _, e := range m.entries {
		if e.active() {
			m.attachRelayLocked(e)
		}
	}

	m.logger.Info("relay started", "sub_discussions", len(m.activeLocked()))
	return nil
}

// Listening reports whether the relay is running.
func (m *Meta) Listening() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listening
}

// StopListening stops relaying and revokes every relay subscription.
func (m *Meta) StopListening() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Meta) stopLocked() {
	if !m.listening {
		return
	}
	m.stopListening()
	for _, e := range m.entries {
		e.relay.Cancel()
		e.relay = nil
	}
	m.listening = false
	m.listenCtx = nil
	m.stopListening = nil
	m.logger.Info("relay stopped")
}

// attachRelayLocked makes e's discussion listen and subscribes the relay to
// it. The subscription is taken before returning and never drops, so no later
// message is missed. Failures are logged and leave e without a relay.
func (m *Meta) attachRelayLocked(e *entry) {
	if err := e.disc.Listen(m.listenCtx); err != nil {
		m.logger.Error("failed to listen on sub-discussion",
			"discussion_id", e.disc.GlobalID(),
			"error", err)
		return
	}

	in, sub := e.disc.subscribeAll(m.listenCtx)
	e.relay = sub
	go m.relayLoop(in, sub, e.disc)
}

func (m *Meta) relayLoop(in <-chan *SimpleMessage, sub *Subscription, origin *Simple) {
	for {
		select {
		case msg, ok := <-in:
			if !ok || sub.ctx.Err() != nil {
				return
			}
			m.relay(sub.ctx, origin, msg)
		case <-sub.Done():
			return
		}
	}
}

// relay copies msg to every other active sub-discussion concurrently and
// publishes one MetaMessage made of msg and the copies that were delivered.
// Messages written by one of the owner's own accounts are not relayed, and a
// message delivered again under the same id is relayed once.
func (m *Meta) relay(ctx context.Context, origin *Simple, msg *SimpleMessage) {
	if m.ownedBy(msg.Author()) {
		m.logger.Debug("skipping message from an own account",
			"discussion_id", origin.GlobalID(),
			"message_id", msg.ID(),
			"author", msg.Author())
		return
	}

	seenKey := dedupe.Key(string(origin.GlobalID()), string(msg.ID()))
	if m.seen.CheckAndMark(seenKey) {
		m.logger.Debug("skipping redelivered message", "discussion_id", origin.GlobalID(), "message_id", msg.ID())
		return
	}

	m.mu.RLock()
	targets := lo.Filter(m.activeLocked(), func(s *Simple, _ int) bool {
		return !s.IsTheSameAs(origin)
	})
	m.mu.RUnlock()

	quoted := m.quotePrefix + msg.Body()
	copies := make([]*SimpleMessage, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Go(func() {
			sent, err := target.Send(ctx, quoted)
			if err != nil {
				m.logger.Warn("relay to sub-discussion failed",
					"from_id", origin.GlobalID(),
					"to_id", target.GlobalID(),
					"error", err)
				return
			}
			copies[i] = sent
		})
	}
	wg.Wait()

	delivered := lo.Compact(copies)
	if len(targets) > 0 && len(delivered) == 0 {
		// Nothing got through; a redelivery may try again.
		m.seen.Forget(seenKey)
	}

	m.logger.Debug("message relayed",
		"from_id", origin.GlobalID(),
		"message_id", msg.ID(),
		"targets", len(targets),
		"delivered", len(delivered))

	m.events.Publish(string(m.id), NewMetaMessage(msg, delivered...), "")
}

// ownedBy reports whether author is one of the owner's accounts.
func (m *Meta) ownedBy(author driver.GlobalID) bool {
	return lo.ContainsBy(m.owner.Accounts(), func(a driver.Account) bool {
		return a.GlobalID() == author
	})
}

// SendMessage posts body to every active sub-discussion concurrently. It fails
// only when no sub-discussion accepted the message.
func (m *Meta) SendMessage(ctx context.Context, body string) (Message, error) {
	subs := m.SubDiscussions()
	if len(subs) == 0 {
		return nil, fmt.Errorf("sending to %s: no active sub-discussion: %w", m.id, ErrNotFound)
	}

	sent := make([]*SimpleMessage, len(subs))
	errs := make([]error, len(subs))

	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Go(func() {
			msg, err := sub.Send(ctx, body)
			if err != nil {
				errs[i] = err
				return
			}
			sent[i] = msg
		})
	}
	wg.Wait()

	delivered := lo.Compact(sent)
	if len(delivered) == 0 {
		return nil, fmt.Errorf("sending to %s: %w", m.id, errors.Join(errs...))
	}
	for _, err := range lo.Compact(errs) {
		m.logger.Warn("send to sub-discussion failed", "error", err)
	}
	return NewMetaMessage(delivered[0], delivered[1:]...), nil
}

// SubscribeMessages streams relay events as *MetaMessage.
func (m *Meta) SubscribeMessages(ctx context.Context) (<-chan *MetaMessage, *Subscription) {
	return subscribe(ctx, m.events, string(m.id))
}

func (m *Meta) Subscribe(ctx context.Context) (<-chan Message, *Subscription) {
	ch, sub := m.SubscribeMessages(ctx)
	return widen(ch, sub), sub
}
