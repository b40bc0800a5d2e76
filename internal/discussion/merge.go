// ABOUTME: Unified history of a meta-discussion
// ABOUTME: Pools dated sub-discussion histories and folds redundant copies into MetaMessages

package discussion

import (
	"context"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/driver"
)

// MetaMessages returns the merged history of every sub-discussion, removed
// ones included, each restricted to the period it belonged to the registry.
//
// opts apply to each sub-discussion fetch, not to the merged result. AfterDate
// is raised to the date each entry was added.
func (m *Meta) MetaMessages(ctx context.Context, opts driver.MessageOptions) ([]*MetaMessage, error) {
	var pool []*SimpleMessage
	for _, e := range m.DatedSubDiscussions() {
		subOpts := opts
		if subOpts.AfterDate.Before(e.AddedAt) {
			subOpts.AfterDate = e.AddedAt
		}

		msgs, err := e.Discussion.SimpleMessages(ctx, subOpts)
		if err != nil {
			return nil, err
		}
		if e.RemovedAt != nil {
			removedAt := *e.RemovedAt
			msgs = lo.Filter(msgs, func(msg *SimpleMessage, _ int) bool {
				return msg.CreatedAt().Before(removedAt)
			})
		}
		pool = append(pool, msgs...)
	}

	return mergeMessages(pool, m.mergeWindow, m.isRelayCopy), nil
}

// isRelayCopy reports whether candidate is a copy of orig that the relay
// posted: quoted body, another sub-discussion, authored by that
// sub-discussion's own account.
func (m *Meta) isRelayCopy(orig, candidate *SimpleMessage) bool {
	if candidate.Body() != m.quotePrefix+orig.Body() {
		return false
	}
	from, to := orig.Discussion(), candidate.Discussion()
	if from == nil || to == nil || to.IsTheSameAs(from) {
		return false
	}
	return candidate.Author() == to.LocalAccount().GlobalID()
}

func (m *Meta) Messages(ctx context.Context, opts driver.MessageOptions) ([]Message, error) {
	msgs, err := m.MetaMessages(ctx, opts)
	if err != nil {
		return nil, err
	}
	return lo.Map(msgs, func(mm *MetaMessage, _ int) Message { return mm }), nil
}

// mergeMessages sorts pool chronologically (stable) and sweeps it: each head
// absorbs every later candidate at most window after it whose body is equal,
// or which isCopy recognises as a copy of the head or the head of it.
// Absorbed candidates leave the pool and the scan resumes at the same index.
// isCopy may be nil.
func mergeMessages(pool []*SimpleMessage, window time.Duration, isCopy func(orig, candidate *SimpleMessage) bool) []*MetaMessage {
	pool = slices.Clone(pool)
	slices.SortStableFunc(pool, func(a, b *SimpleMessage) int {
		return a.CreatedAt().Compare(b.CreatedAt())
	})

	out := make([]*MetaMessage, 0, len(pool))
	for len(pool) > 0 {
		head := pool[0]
		pool = pool[1:]
		merged := NewMetaMessage(head)

		for i := 0; i < len(pool); {
			candidate := pool[i]
			if candidate.CreatedAt().Sub(head.CreatedAt()) > window {
				break
			}
			if head.BodyEquals(candidate) ||
				(isCopy != nil && (isCopy(head, candidate) || isCopy(candidate, head))) {
				merged.add(candidate)
				pool = slices.Delete(pool, i, i+1)
				continue
			}
			i++
		}
		out = append(out, merged)
	}
	return out
}
