// ABOUTME: In-memory fan-out broadcaster keyed by topic
// ABOUTME: Delivers incoming messages and merged events to every subscriber of a discussion

package broadcast

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// subscriber is one registration. Lossy subscribers receive straight on ch;
// lossless ones go through queue, whose pump owns ch.
type subscriber[T any] struct {
	ch    chan T
	queue *queue[T]
}

func (s *subscriber[T]) close() {
	if s.queue != nil {
		s.queue.close()
		return
	}
	close(s.ch)
}

// Broadcaster provides in-memory pub/sub for values of type T. Subscribers
// register for a key (a discussion global id) and receive every value
// published on that key after subscribing.
type Broadcaster[T any] struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*subscriber[T] // key -> subID -> sub
	closed      bool
	logger      *slog.Logger
}

// New creates a broadcaster. Pass nil logger for default.
func New[T any](logger *slog.Logger) *Broadcaster[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster[T]{
		subscribers: make(map[string]map[string]*subscriber[T]),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers a subscriber for key. It returns the receive channel
// and a subscription id for Unsubscribe. The subscription is removed and its
// channel closed when ctx is cancelled. Subscribing to a closed broadcaster
// returns an already closed channel.
//
// A subscriber that falls more than subscriberBufferSize values behind loses
// values.
func (b *Broadcaster[T]) Subscribe(ctx context.Context, key string) (<-chan T, string) {
	return b.subscribe(ctx, key, false)
}

// SubscribeLossless is Subscribe with an unbounded queue in front of the
// channel: Publish still never blocks and no value is dropped, however slow
// the reader. Values still queued when the subscription ends are discarded.
func (b *Broadcaster[T]) SubscribeLossless(ctx context.Context, key string) (<-chan T, string) {
	return b.subscribe(ctx, key, true)
}

func (b *Broadcaster[T]) subscribe(ctx context.Context, key string, lossless bool) (<-chan T, string) {
	subID := uuid.New().String()
	sub := &subscriber[T]{ch: make(chan T, subscriberBufferSize)}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(sub.ch)
		return sub.ch, subID
	}
	if lossless {
		sub.queue = newQueue[T]()
		go sub.queue.pump(sub.ch)
	}
	if _, ok := b.subscribers[key]; !ok {
		b.subscribers[key] = make(map[string]*subscriber[T])
	}
	b.subscribers[key][subID] = sub
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "key", key, "sub_id", subID, "lossless", lossless)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(key, subID)
	}()

	return sub.ch, subID
}

// Publish sends v to every subscriber of key except excludeSubID.
// Non-blocking: values are dropped for lossy subscribers whose channels are
// full and queued for lossless ones.
func (b *Broadcaster[T]) Publish(key string, v T, excludeSubID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs, ok := b.subscribers[key]
	if !ok || len(subs) == 0 {
		return
	}

	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send; every send is non-blocking.
	for id, sub := range subs {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		if sub.queue != nil {
			sub.queue.push(v)
			continue
		}
		select {
		case sub.ch <- v:
		default:
			b.logger.Warn("dropped value for slow subscriber", "key", key, "sub_id", id)
		}
	}
}

// Subscribers returns the number of live subscriptions on key.
func (b *Broadcaster[T]) Subscribers(key string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[key])
}

// Unsubscribe removes a subscription and closes its channel. Unknown ids are ignored.
func (b *Broadcaster[T]) Unsubscribe(key, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[key]
	if !ok {
		return
	}
	sub, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	sub.close()

	if len(subs) == 0 {
		delete(b.subscribers, key)
	}

	b.logger.Debug("subscriber removed", "key", key, "sub_id", subID)
}

// Close closes every subscriber channel. Later subscriptions get closed channels.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key, subs := range b.subscribers {
		for subID, sub := range subs {
			sub.close()
			delete(subs, subID)
		}
		delete(b.subscribers, key)
	}
	b.closed = true

	b.logger.Debug("broadcaster closed")
}
