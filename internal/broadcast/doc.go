// Package broadcast provides a generic in-memory fan-out broadcaster.
//
// Drivers use it to stream incoming messages per discussion, simple
// discussions use it to republish those messages, and meta-discussions use it
// to emit one merged "message" event per relayed message.
//
//	b := broadcast.New[string](logger)
//	ch, subID := b.Subscribe(ctx, "memory:room-1")
//	b.Publish("memory:room-1", "hello", "")
//	b.Unsubscribe("memory:room-1", subID)
//
// Publishing never blocks. A Subscribe subscriber whose buffer is full loses
// the value and a warning is logged. A SubscribeLossless subscriber gets an
// unbounded queue instead, so it sees every value in publish order; the relay
// and the driver incoming streams it reads from use that mode.
package broadcast
