// ABOUTME: Meta-discussion spanning several simple discussions across drivers and accounts
// ABOUTME: Owns the dated sub-discussion registry and resolves participant changes

package discussion

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/broadcast"
	"github.com/2389/coven-meta/internal/dedupe"
	"github.com/2389/coven-meta/internal/driver"
	"github.com/2389/coven-meta/internal/store"
)

// MetaDriverName is the reserved pseudo-driver tagging meta-discussion ids.
const MetaDriverName = "meta"

// DefaultMergeWindow bounds how far apart two equal bodies may be and still
// count as one logical message.
const DefaultMergeWindow = 5 * time.Minute

// Owner is the user a meta-discussion belongs to.
type Owner interface {
	GlobalID() driver.GlobalID
	Accounts() []driver.Account
}

// Recorder persists registry changes. It is satisfied by store.Store.
type Recorder interface {
	SaveMeta(ctx context.Context, rec *store.MetaRecord) error
	AppendEntry(ctx context.Context, rec *store.EntryRecord) error
	MarkEntryRemoved(ctx context.Context, metaID, discussionID string, at time.Time) error
}

// SubdiscussionEntry is a dated view of one registry entry.
type SubdiscussionEntry struct {
	Discussion *Simple
	AddedAt    time.Time
	RemovedAt  *time.Time
}

// Active reports whether the entry has not been removed.
func (e SubdiscussionEntry) Active() bool { return e.RemovedAt == nil }

type entry struct {
	disc      *Simple
	addedAt   time.Time
	removedAt *time.Time
	relay     *Subscription
	merged    []driver.GlobalID // discussions folded into disc by AddSubdiscussion
}

func (e *entry) active() bool { return e.removedAt == nil }

// Meta aggregates sub-discussions into one logical discussion.
//
// Structural operations (AddParticipant, RemoveParticipants, AddSubdiscussion,
// RemoveSubdiscussion, Listen, Close) are serialized by opMu for their whole
// duration, driver calls included. Registry reads only take mu.
type Meta struct {
	id          driver.GlobalID
	name        string
	createdAt   time.Time
	owner       Owner
	recorder    Recorder
	logger      *slog.Logger
	quotePrefix string
	mergeWindow time.Duration
	now         func() time.Time
	seen        *dedupe.Cache
	ownsSeen    bool
	events      *broadcast.Broadcaster[*MetaMessage]

	opMu sync.Mutex

	mu            sync.RWMutex
	entries       []*entry
	recorded      bool
	listening     bool
	listenCtx     context.Context
	stopListening context.CancelFunc
}

// MetaOption configures a Meta.
type MetaOption func(*Meta)

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) MetaOption {
	return func(m *Meta) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithRecorder persists registry changes through r.
func WithRecorder(r Recorder) MetaOption {
	return func(m *Meta) { m.recorder = r }
}

// WithQuotePrefix sets the marker prepended to relayed copies.
func WithQuotePrefix(prefix string) MetaOption {
	return func(m *Meta) { m.quotePrefix = prefix }
}

// WithMergeWindow sets the deduplication window used by Messages.
func WithMergeWindow(d time.Duration) MetaOption {
	return func(m *Meta) {
		if d > 0 {
			m.mergeWindow = d
		}
	}
}

// WithSeenCache shares the cache of already relayed message ids between
// meta-discussions. Without it each meta-discussion creates its own.
func WithSeenCache(c *dedupe.Cache) MetaOption {
	return func(m *Meta) { m.seen = c }
}

// WithID restores a known id instead of generating one.
func WithID(id driver.GlobalID) MetaOption {
	return func(m *Meta) { m.id = id }
}

// WithName sets a display name.
func WithName(name string) MetaOption {
	return func(m *Meta) { m.name = name }
}

// WithCreatedAt restores a creation time.
func WithCreatedAt(t time.Time) MetaOption {
	return func(m *Meta) { m.createdAt = t }
}

// WithClock replaces time.Now for registry dates.
func WithClock(now func() time.Time) MetaOption {
	return func(m *Meta) { m.now = now }
}

// WithPersisted marks the meta-discussion as already stored.
func WithPersisted() MetaOption {
	return func(m *Meta) { m.recorded = true }
}

// NewMeta creates an empty meta-discussion owned by owner.
func NewMeta(owner Owner, opts ...MetaOption) *Meta {
	m := &Meta{
		owner:       owner,
		logger:      slog.Default(),
		quotePrefix: DefaultQuotePrefix,
		mergeWindow: DefaultMergeWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.id == "" {
		m.id = driver.NewGlobalID(MetaDriverName, uuid.New().String())
	}
	if m.createdAt.IsZero() {
		m.createdAt = m.now()
	}
	if m.seen == nil {
		m.seen = dedupe.New(m.mergeWindow, 10_000)
		m.ownsSeen = true
	}
	m.logger = m.logger.With("component", "meta_discussion", "meta_id", m.id)
	m.events = broadcast.New[*MetaMessage](m.logger)
	return m
}

func (m *Meta) GlobalID() driver.GlobalID { return m.id }
func (m *Meta) Kind() Kind                { return KindMeta }
func (m *Meta) CreatedAt() time.Time      { return m.createdAt }
func (m *Meta) Owner() Owner              { return m.owner }
func (m *Meta) sealedDiscussion()         {}

// Name returns the configured name or the active sub-discussion names.
func (m *Meta) Name() string {
	if m.name != "" {
		return m.name
	}
	return strings.Join(lo.Map(m.SubDiscussions(), func(s *Simple, _ int) string {
		return s.Name()
	}), " + ")
}

// Description lists the drivers the meta-discussion spans.
func (m *Meta) Description() string {
	drivers := lo.Uniq(lo.Map(m.SubDiscussions(), func(s *Simple, _ int) string {
		return s.DriverName()
	}))
	if len(drivers) == 0 {
		return "meta discussion"
	}
	return "meta discussion over " + strings.Join(drivers, ", ")
}

// SubDiscussions returns the active sub-discussions in registry order.
func (m *Meta) SubDiscussions() []*Simple {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeLocked()
}

func (m *Meta) activeLocked() []*Simple {
	var out []*Simple
	for _, e := range m.entries {
		if e.active() {
			out = append(out, e.disc)
		}
	}
	return out
}

// DatedSubDiscussions returns every entry, removed ones included, in registry
// order. Callers needing temporal correctness apply RemovedAt themselves.
func (m *Meta) DatedSubDiscussions() []SubdiscussionEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return lo.Map(m.entries, func(e *entry, _ int) SubdiscussionEntry {
		return SubdiscussionEntry{Discussion: e.disc, AddedAt: e.addedAt, RemovedAt: e.removedAt}
	})
}

// IsHeterogeneous reports whether the active sub-discussions span more than
// one driver or more than one local account.
func (m *Meta) IsHeterogeneous() bool {
	active := m.SubDiscussions()
	if len(active) < 2 {
		return false
	}
	drivers := lo.UniqBy(active, func(s *Simple) string { return s.DriverName() })
	accounts := lo.UniqBy(active, func(s *Simple) driver.GlobalID { return s.LocalAccount().GlobalID() })
	return len(drivers) > 1 || len(accounts) > 1
}

// Participants returns the union of the active sub-discussions' participants,
// unique by global id, in registry order.
func (m *Meta) Participants(ctx context.Context) ([]driver.Contact, error) {
	var all []driver.Contact
	for _, sub := range m.SubDiscussions() {
		contacts, err := sub.Participants(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, contacts...)
	}
	return lo.UniqBy(all, func(c driver.Contact) driver.GlobalID { return c.ID }), nil
}

// AddParticipant adds contact through the first active sub-discussion whose
// account knows it, or else opens a new sub-discussion through the first
// owned account that knows it.
func (m *Meta) AddParticipant(ctx context.Context, contact driver.Contact) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	for _, sub := range m.SubDiscussions() {
		known, err := sub.LocalAccount().HasContact(ctx, contact)
		if err != nil {
			return fmt.Errorf("checking contact %s on %s: %w", contact.ID, sub.GlobalID(), err)
		}
		if known {
			return sub.AddParticipant(ctx, contact)
		}
	}

	var candidates []driver.Account
	for _, account := range m.owner.Accounts() {
		known, err := account.HasContact(ctx, contact)
		if err != nil {
			return fmt.Errorf("checking contact %s on account %s: %w", contact.ID, account.GlobalID(), err)
		}
		if known {
			candidates = append(candidates, account)
		}
	}
	if len(candidates) == 0 {
		return fmt.Errorf("contact unknown: %s: %w", contact.ID, ErrNotFound)
	}
	account := candidates[0]
	if len(candidates) > 1 {
		m.logger.Info("several accounts know the contact, using the first",
			"contact_id", contact.ID,
			"account_id", account.GlobalID(),
			"candidates", len(candidates))
	}

	session, err := account.Session(ctx)
	if err != nil {
		return fmt.Errorf("opening session for %s: %w", account.GlobalID(), err)
	}
	handle, err := session.CreateDiscussion(ctx, []driver.GlobalID{contact.ID})
	if err != nil {
		return fmt.Errorf("creating discussion with %s: %w", contact.ID, err)
	}

	return m.appendEntry(ctx, NewSimple(account, handle, m.logger))
}

// RemoveParticipants removes contact from the first active sub-discussion that
// lists it. When none does nothing happens.
func (m *Meta) RemoveParticipants(ctx context.Context, contact driver.Contact) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	for _, sub := range m.SubDiscussions() {
		participants, err := sub.Participants(ctx)
		if err != nil {
			return err
		}
		if lo.ContainsBy(participants, func(c driver.Contact) bool { return c.ID == contact.ID }) {
			return sub.RemoveParticipants(ctx, contact)
		}
	}

	m.logger.Warn("no sub-discussion lists the participant, nothing removed", "contact_id", contact.ID)
	return nil
}

// AddSubdiscussion folds a pre-existing simple discussion into the registry.
// An active entry with the same driver and local account absorbs it through a
// protocol merge instead of a new entry being added. Adding a discussion that
// is already registered, or was already merged, returns ErrConflict.
func (m *Meta) AddSubdiscussion(ctx context.Context, sub *Simple) error {
	if sub == nil {
		return fmt.Errorf("adding sub-discussion: %w: nil discussion", ErrMalformed)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	driverName := sub.DriverName()
	accountID := sub.LocalAccount().GlobalID()
	id := sub.GlobalID()

	m.mu.RLock()
	var target *entry
	for _, e := range m.entries {
		if e.disc.GlobalID() == id || slices.Contains(e.merged, id) {
			m.mu.RUnlock()
			return fmt.Errorf("sub-discussion %s: %w", id, ErrConflict)
		}
		if target == nil && e.active() &&
			e.disc.DriverName() == driverName &&
			e.disc.LocalAccount().GlobalID() == accountID {
			target = e
		}
	}
	m.mu.RUnlock()

	if target != nil {
		if err := target.disc.Merge(ctx, sub); err != nil {
			return err
		}
		m.mu.Lock()
		target.merged = append(target.merged, id)
		m.mu.Unlock()

		m.logger.Debug("sub-discussion merged into existing entry",
			"discussion_id", id,
			"into_id", target.disc.GlobalID())
		return nil
	}

	return m.appendEntry(ctx, sub)
}

// RemoveSubdiscussion tombstones the active entry matching sub, revokes its
// relay subscription and stops its discussion listening. The entry stays in
// the registry for history.
func (m *Meta) RemoveSubdiscussion(ctx context.Context, sub *Simple) error {
	if sub == nil {
		return fmt.Errorf("removing sub-discussion: %w: nil discussion", ErrMalformed)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	var found *entry
	for _, e := range m.entries {
		if e.active() && e.disc.IsTheSameAs(sub) {
			found = e
			break
		}
	}
	if found == nil {
		m.mu.Unlock()
		return fmt.Errorf("no such discussion: %s: %w", sub.GlobalID(), ErrNotFound)
	}
	at := m.now()
	found.removedAt = &at
	relay := found.relay
	found.relay = nil
	recorded := m.recorded
	m.mu.Unlock()

	relay.Cancel()
	found.disc.StopListening()
	m.logger.Debug("sub-discussion removed", "discussion_id", sub.GlobalID())

	if m.recorder != nil && recorded {
		if err := m.recorder.MarkEntryRemoved(ctx, string(m.id), string(sub.GlobalID()), at); err != nil {
			return fmt.Errorf("recording removal of %s: %w", sub.GlobalID(), err)
		}
	}
	return nil
}

// RestoreEntry appends a previously persisted entry without recording it
// again. It is meant for rebuilding a meta-discussion from storage.
func (m *Meta) RestoreEntry(sub *Simple, addedAt time.Time, removedAt *time.Time) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	e := &entry{disc: sub, addedAt: addedAt, removedAt: removedAt}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening && e.active() {
		m.attachRelayLocked(e)
	}
	m.entries = append(m.entries, e)
}

// appendEntry records then registers sub with addedAt = now, attaching the
// relay when listening. Callers hold opMu.
func (m *Meta) appendEntry(ctx context.Context, sub *Simple) error {
	e := &entry{disc: sub, addedAt: m.now()}

	m.mu.RLock()
	position := len(m.entries)
	m.mu.RUnlock()

	if err := m.record(ctx, e, position); err != nil {
		return err
	}

	m.mu.Lock()
	if m.listening {
		m.attachRelayLocked(e)
	}
	m.entries = append(m.entries, e)
	m.mu.Unlock()

	m.logger.Debug("sub-discussion added",
		"discussion_id", sub.GlobalID(),
		"driver", sub.DriverName(),
		"account_id", sub.LocalAccount().GlobalID())
	return nil
}

// Persist starts recording through r: the meta-discussion and every entry so
// far are written, then later registry changes follow. It lets a caller build
// a meta-discussion completely before anything reaches storage.
func (m *Meta) Persist(ctx context.Context, r Recorder) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	if r == nil {
		return fmt.Errorf("persisting %s: %w: nil recorder", m.id, ErrMalformed)
	}

	m.mu.Lock()
	m.recorder = r
	m.recorded = false
	entries := slices.Clone(m.entries)
	m.mu.Unlock()

	if err := m.saveMeta(ctx); err != nil {
		return err
	}
	for i, e := range entries {
		if err := m.record(ctx, e, i); err != nil {
			return err
		}
		if e.removedAt != nil {
			if err := r.MarkEntryRemoved(ctx, string(m.id), string(e.disc.GlobalID()), *e.removedAt); err != nil {
				return fmt.Errorf("recording removal of %s: %w", e.disc.GlobalID(), err)
			}
		}
	}

	m.logger.Debug("meta discussion persisted", "entries", len(entries))
	return nil
}

// record persists the meta-discussion on first use, then the entry.
func (m *Meta) record(ctx context.Context, e *entry, position int) error {
	if m.recorder == nil {
		return nil
	}

	m.mu.RLock()
	recorded := m.recorded
	m.mu.RUnlock()

	if !recorded {
		if err := m.saveMeta(ctx); err != nil {
			return err
		}
	}

	rec := &store.EntryRecord{
		MetaID:       string(m.id),
		Position:     position,
		DiscussionID: string(e.disc.GlobalID()),
		DriverName:   e.disc.DriverName(),
		AccountID:    string(e.disc.LocalAccount().GlobalID()),
		AddedAt:      e.addedAt,
	}
	if err := m.recorder.AppendEntry(ctx, rec); err != nil {
		return fmt.Errorf("recording sub-discussion %s: %w", e.disc.GlobalID(), err)
	}
	return nil
}

func (m *Meta) saveMeta(ctx context.Context) error {
	rec := &store.MetaRecord{
		ID:        string(m.id),
		OwnerID:   string(m.owner.GlobalID()),
		Name:      m.name,
		CreatedAt: m.createdAt,
	}
	if err := m.recorder.SaveMeta(ctx, rec); err != nil {
		return fmt.Errorf("recording meta discussion: %w", err)
	}
	m.mu.Lock()
	m.recorded = true
	m.mu.Unlock()
	return nil
}

// Close stops relaying, revokes every relay subscription and closes the event
// stream. The registry is left intact.
func (m *Meta) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	m.mu.Lock()
	m.stopLocked()
	m.mu.Unlock()

	m.events.Close()
	if m.ownsSeen {
		m.seen.Close()
	}
}
