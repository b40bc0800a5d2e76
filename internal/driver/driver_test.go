// ABOUTME: Tests for driver identity helpers and message option filtering
// ABOUTME: Covers GlobalID parsing and MessageOptions.Apply ordering/limits

package driver

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGlobalID_Parts(t *testing.T) {
	tests := []struct {
		id     GlobalID
		driver string
		local  string
	}{
		{NewGlobalID("matrix", "@bob:example.org"), "matrix", "@bob:example.org"},
		{NewGlobalID("memory", "carol"), "memory", "carol"},
		{GlobalID("bare"), "", "bare"},
	}

	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			assert.Equal(t, tt.driver, tt.id.Driver())
			assert.Equal(t, tt.local, tt.id.Local())
		})
	}
}

func TestMessageOptions_Apply(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	msgs := []Message{
		{ID: "m:1", Body: "one", CreatedAt: base},
		{ID: "m:2", Body: "two", CreatedAt: base.Add(time.Minute)},
		{ID: "m:3", Body: "three", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "m:4", Body: "four", CreatedAt: base.Add(3 * time.Minute)},
	}

	t.Run("zero options keep everything", func(t *testing.T) {
		assert.Len(t, MessageOptions{}.Apply(msgs), 4)
	})

	t.Run("after date is inclusive", func(t *testing.T) {
		out := MessageOptions{AfterDate: base.Add(time.Minute)}.Apply(msgs)
		assert.Equal(t, []GlobalID{"m:2", "m:3", "m:4"}, ids(out))
	})

	t.Run("limit keeps the most recent", func(t *testing.T) {
		out := MessageOptions{MaxMessages: 2}.Apply(msgs)
		assert.Equal(t, []GlobalID{"m:3", "m:4"}, ids(out))
	})

	t.Run("filter runs before limit", func(t *testing.T) {
		out := MessageOptions{
			MaxMessages: 1,
			Filter:      func(m Message) bool { return strings.HasPrefix(m.Body, "t") },
		}.Apply(msgs)
		assert.Equal(t, []GlobalID{"m:3"}, ids(out))
	})
}

func ids(msgs []Message) []GlobalID {
	out := make([]GlobalID, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}
