// ABOUTME: Simple messages and meta-messages
// ABOUTME: A MetaMessage groups simple messages judged to be one logical event

package discussion

import (
	"slices"
	"time"

	"github.com/2389/coven-meta/internal/driver"
)

// SimpleMessage is a protocol-level message seen through one simple discussion.
type SimpleMessage struct {
	raw        driver.Message
	discussion *Simple
}

func newSimpleMessage(d *Simple, raw driver.Message) *SimpleMessage {
	return &SimpleMessage{raw: raw, discussion: d}
}

func (m *SimpleMessage) ID() driver.GlobalID     { return m.raw.ID }
func (m *SimpleMessage) Kind() Kind              { return KindSimple }
func (m *SimpleMessage) Body() string            { return m.raw.Body }
func (m *SimpleMessage) Author() driver.GlobalID { return m.raw.Author }
func (m *SimpleMessage) CreatedAt() time.Time    { return m.raw.CreatedAt }
func (m *SimpleMessage) Raw() driver.Message     { return m.raw }
func (m *SimpleMessage) Discussion() *Simple     { return m.discussion }
func (m *SimpleMessage) sealedMessage()          {}

// BodyEquals reports whether both bodies are byte-for-byte identical.
func (m *SimpleMessage) BodyEquals(other Message) bool {
	return other != nil && m.Body() == other.Body()
}

// MetaMessage is an ordered, non-empty set of simple messages delivered
// redundantly over several channels. Its identity comes from the first
// constituent. It is not safe for concurrent mutation.
type MetaMessage struct {
	messages []*SimpleMessage
}

// NewMetaMessage builds a meta-message whose identity is first.
func NewMetaMessage(first *SimpleMessage, rest ...*SimpleMessage) *MetaMessage {
	msgs := make([]*SimpleMessage, 0, 1+len(rest))
	msgs = append(msgs, first)
	for _, m := range rest {
		if m != nil {
			msgs = append(msgs, m)
		}
	}
	return &MetaMessage{messages: msgs}
}

func (m *MetaMessage) ID() driver.GlobalID     { return m.messages[0].ID() }
func (m *MetaMessage) Kind() Kind              { return KindMeta }
func (m *MetaMessage) Body() string            { return m.messages[0].Body() }
func (m *MetaMessage) Author() driver.GlobalID { return m.messages[0].Author() }
func (m *MetaMessage) Len() int                { return len(m.messages) }
func (m *MetaMessage) sealedMessage()          {}

// CreatedAt returns the earliest constituent's creation time.
func (m *MetaMessage) CreatedAt() time.Time {
	earliest := m.messages[0].CreatedAt()
	for _, msg := range m.messages[1:] {
		if msg.CreatedAt().Before(earliest) {
			earliest = msg.CreatedAt()
		}
	}
	return earliest
}

// Messages returns the constituents in order.
func (m *MetaMessage) Messages() []*SimpleMessage {
	return slices.Clone(m.messages)
}

// BodyEquals compares the identity body with other's.
func (m *MetaMessage) BodyEquals(other Message) bool {
	return m.messages[0].BodyEquals(other)
}

// Merge appends other's constituents, skipping ones already present, and
// returns m. Transitive body equality is not re-checked.
func (m *MetaMessage) Merge(other *MetaMessage) *MetaMessage {
	if other == nil || other == m {
		return m
	}
	for _, msg := range other.messages {
		if !m.contains(msg) {
			m.messages = append(m.messages, msg)
		}
	}
	return m
}

func (m *MetaMessage) add(msg *SimpleMessage) {
	m.messages = append(m.messages, msg)
}

func (m *MetaMessage) contains(msg *SimpleMessage) bool {
	return slices.ContainsFunc(m.messages, func(have *SimpleMessage) bool {
		return have == msg || have.ID() == msg.ID()
	})
}
