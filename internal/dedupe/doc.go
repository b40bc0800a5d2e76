// Package dedupe provides a TTL-bounded, size-bounded set of recently seen
// keys.
//
// The relay marks every message it handles as (origin discussion, message id),
// so a message that a backend delivers a second time, for instance a Matrix
// sync replayed after a reconnect, is relayed only once.
package dedupe
