// Package driver defines the contracts between chat-protocol backends and the
// discussion layer.
//
// # Identity
//
// Every account, contact, discussion and message carries a GlobalID of the
// form "<driver>:<local>". The prefix "meta" is reserved for meta-discussions
// and never used by a real driver.
//
// # Interfaces
//
//   - Account: one local identity; knows its contacts and opens a Session
//   - Session: connected handle that creates, finds and leaves discussions
//   - Discussion: one protocol-level conversation with history, members,
//     sending and an incoming message stream
//
// Implementations live in subpackages:
//
//   - memory: in-process loopback network used by tests and demos
//   - matrix: Matrix homeserver accounts via mautrix
//
// The mocks subpackage holds gomock doubles of the three interfaces,
// regenerated with go generate.
package driver
