// ABOUTME: Tests for meta-discussion registry operations
// ABOUTME: Uses two in-memory networks to cover homogeneous and heterogeneous cases

package discussion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-meta/internal/driver"
	"github.com/2389/coven-meta/internal/driver/memory"
	"github.com/2389/coven-meta/internal/store"
)

type testOwner struct {
	id       driver.GlobalID
	accounts []driver.Account
}

func (o *testOwner) GlobalID() driver.GlobalID  { return o.id }
func (o *testOwner) Accounts() []driver.Account { return o.accounts }

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// fixture is alice with one account on network x and one on network y. Bob is
// reachable on both, carol only on x.
type fixture struct {
	x, y       *memory.Network
	aliceX     *memory.Account
	aliceY     *memory.Account
	bobX, bobY driver.Contact
	carolX     driver.Contact
	owner      *testOwner
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{x: memory.NewNetwork("x"), y: memory.NewNetwork("y")}
	t.Cleanup(f.x.Close)
	t.Cleanup(f.y.Close)

	f.bobX = driver.Contact{ID: f.x.ID("bob"), DisplayName: "Bob"}
	f.bobY = driver.Contact{ID: f.y.ID("bob"), DisplayName: "Bob"}
	f.carolX = driver.Contact{ID: f.x.ID("carol"), DisplayName: "Carol"}

	f.aliceX = f.x.NewAccount("alice").AddContact(f.bobX).AddContact(f.carolX)
	f.aliceY = f.y.NewAccount("alice").AddContact(f.bobY)
	f.owner = &testOwner{id: "user:alice", accounts: []driver.Account{f.aliceX, f.aliceY}}
	return f
}

// simple opens a discussion of account with contacts.
func (f *fixture) simple(t *testing.T, account driver.Account, contacts ...driver.Contact) *Simple {
	t.Helper()
	sess, err := account.Session(t.Context())
	require.NoError(t, err)
	ids := make([]driver.GlobalID, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	handle, err := sess.CreateDiscussion(t.Context(), ids)
	require.NoError(t, err)
	return NewSimple(account, handle, nil)
}

func participantIDs(t *testing.T, d Discussion) []driver.GlobalID {
	t.Helper()
	contacts, err := d.Participants(t.Context())
	require.NoError(t, err)
	ids := make([]driver.GlobalID, 0, len(contacts))
	for _, c := range contacts {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestNewMeta(t *testing.T) {
	f := newFixture(t)
	m := NewMeta(f.owner)
	defer m.Close()

	assert.Equal(t, MetaDriverName, m.GlobalID().Driver())
	assert.NotEmpty(t, m.GlobalID().Local())
	assert.Equal(t, KindMeta, m.Kind())
	assert.Empty(t, m.SubDiscussions())
	assert.False(t, m.IsHeterogeneous())
	assert.Equal(t, "meta discussion", m.Description())

	named := NewMeta(f.owner, WithName("team"), WithID("meta:fixed"))
	defer named.Close()
	assert.Equal(t, "team", named.Name())
	assert.Equal(t, driver.GlobalID("meta:fixed"), named.GlobalID())
}

func TestMeta_AddParticipant(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	m := NewMeta(f.owner)
	defer m.Close()

	t.Run("opens a sub-discussion through an account that knows the contact", func(t *testing.T) {
		require.NoError(t, m.AddParticipant(ctx, f.bobY))
		subs := m.SubDiscussions()
		require.Len(t, subs, 1)
		assert.Equal(t, "y", subs[0].DriverName())
		assert.Equal(t, []driver.GlobalID{f.bobY.ID}, participantIDs(t, m))
	})

	t.Run("opens another sub-discussion when no active one knows the contact", func(t *testing.T) {
		require.NoError(t, m.AddParticipant(ctx, f.carolX))
		require.Len(t, m.SubDiscussions(), 2)
		assert.True(t, m.IsHeterogeneous())
	})

	t.Run("delegates to the sub-discussion whose account knows the contact", func(t *testing.T) {
		require.NoError(t, m.AddParticipant(ctx, f.bobX))
		subs := m.SubDiscussions()
		require.Len(t, subs, 2)
		assert.ElementsMatch(t, []driver.GlobalID{f.carolX.ID, f.bobX.ID}, participantIDs(t, subs[1]))
	})

	t.Run("unknown contact", func(t *testing.T) {
		err := m.AddParticipant(ctx, driver.Contact{ID: "x:mallory"})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Len(t, m.SubDiscussions(), 2)
	})
}

func TestMeta_RemoveParticipants(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	m := NewMeta(f.owner)
	defer m.Close()

	require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, f.aliceX, f.bobX, f.carolX)))

	require.NoError(t, m.RemoveParticipants(ctx, f.carolX))
	assert.Equal(t, []driver.GlobalID{f.bobX.ID}, participantIDs(t, m))

	require.NoError(t, m.RemoveParticipants(ctx, f.carolX), "absent participant is a no-op")
	assert.Equal(t, []driver.GlobalID{f.bobX.ID}, participantIDs(t, m))
}

func TestMeta_AddSubdiscussion(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	m := NewMeta(f.owner)
	defer m.Close()

	withBob := f.simple(t, f.aliceX, f.bobX)
	require.NoError(t, m.AddSubdiscussion(ctx, withBob))

	t.Run("same discussion twice conflicts", func(t *testing.T) {
		err := m.AddSubdiscussion(ctx, withBob)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("same driver and account merges into the existing entry", func(t *testing.T) {
		withCarol := f.simple(t, f.aliceX, f.carolX)
		require.NoError(t, m.AddSubdiscussion(ctx, withCarol))

		subs := m.SubDiscussions()
		require.Len(t, subs, 1)
		assert.True(t, subs[0].IsTheSameAs(withBob))
		assert.ElementsMatch(t, []driver.GlobalID{f.bobX.ID, f.carolX.ID}, participantIDs(t, m))
		assert.False(t, m.IsHeterogeneous())

		err := m.AddSubdiscussion(ctx, withCarol)
		assert.ErrorIs(t, err, ErrConflict, "a merged discussion cannot be merged again")
		assert.Len(t, m.SubDiscussions(), 1)
	})

	t.Run("other driver appends", func(t *testing.T) {
		require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, f.aliceY, f.bobY)))
		assert.Len(t, m.SubDiscussions(), 2)
		assert.True(t, m.IsHeterogeneous())
	})

	t.Run("nil is malformed", func(t *testing.T) {
		assert.ErrorIs(t, m.AddSubdiscussion(ctx, nil), ErrMalformed)
	})
}

func TestMeta_IsHeterogeneous_SameDriverTwoAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()

	second := f.x.NewAccount("alice2").AddContact(f.bobX)
	m := NewMeta(f.owner)
	defer m.Close()

	require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, f.aliceX, f.bobX)))
	assert.False(t, m.IsHeterogeneous())
	require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, second, f.bobX)))
	assert.True(t, m.IsHeterogeneous())
}

func TestMeta_RemoveSubdiscussion(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	clock := &testClock{now: t0}
	m := NewMeta(f.owner, WithClock(clock.Now))
	defer m.Close()

	sub := f.simple(t, f.aliceX, f.bobX)
	other := f.simple(t, f.aliceY, f.bobY)

	assert.ErrorIs(t, m.RemoveSubdiscussion(ctx, sub), ErrNotFound)

	require.NoError(t, m.AddSubdiscussion(ctx, sub))
	require.NoError(t, m.AddSubdiscussion(ctx, other))

	clock.Set(t0.Add(time.Hour))
	require.NoError(t, m.RemoveSubdiscussion(ctx, sub))
	assert.ErrorIs(t, m.RemoveSubdiscussion(ctx, sub), ErrNotFound, "already removed")

	subs := m.SubDiscussions()
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsTheSameAs(other))

	dated := m.DatedSubDiscussions()
	require.Len(t, dated, 2)
	assert.Equal(t, t0, dated[0].AddedAt)
	require.NotNil(t, dated[0].RemovedAt)
	assert.Equal(t, t0.Add(time.Hour), *dated[0].RemovedAt)
	assert.False(t, dated[0].Active())
	assert.True(t, dated[1].Active())

	assert.ErrorIs(t, m.AddSubdiscussion(ctx, sub), ErrConflict, "removed entries stay in the registry")
}

func TestMeta_MessagesRespectEntryDates(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	clock := &testClock{now: t0.Add(10 * time.Minute)}
	m := NewMeta(f.owner, WithClock(clock.Now))
	defer m.Close()

	onX := f.simple(t, f.aliceX, f.bobX)
	onY := f.simple(t, f.aliceY, f.bobY)

	post := func(n *memory.Network, s *Simple, author driver.GlobalID, body string, at time.Time) {
		t.Helper()
		_, err := n.Post(s.GlobalID(), author, body, at)
		require.NoError(t, err)
	}

	post(f.x, onX, f.bobX.ID, "before joining", t0)
	require.NoError(t, m.AddSubdiscussion(ctx, onX))
	require.NoError(t, m.AddSubdiscussion(ctx, onY))

	post(f.x, onX, f.bobX.ID, "hello", t0.Add(11*time.Minute))
	post(f.y, onY, f.aliceY.GlobalID(), ">>hello", t0.Add(12*time.Minute))
	post(f.y, onY, f.bobY.ID, "only on y", t0.Add(13*time.Minute))

	clock.Set(t0.Add(20 * time.Minute))
	require.NoError(t, m.RemoveSubdiscussion(ctx, onX))
	post(f.x, onX, f.bobX.ID, "after leaving", t0.Add(21*time.Minute))

	msgs, err := m.MetaMessages(ctx, driver.MessageOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello/2", "only on y/1"}, bodies(msgs))

	last, err := m.MetaMessages(ctx, driver.MessageOptions{MaxMessages: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"only on y/1"}, bodies(last))

	generic, err := m.Messages(ctx, driver.MessageOptions{AfterDate: t0.Add(13 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, generic, 1)
	assert.Equal(t, KindMeta, generic[0].Kind())
}

func TestMeta_SendMessage(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	m := NewMeta(f.owner)
	defer m.Close()

	_, err := m.SendMessage(ctx, "nobody home")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, f.aliceX, f.bobX)))
	require.NoError(t, m.AddSubdiscussion(ctx, f.simple(t, f.aliceY, f.bobY)))

	sent, err := m.SendMessage(ctx, "to everyone")
	require.NoError(t, err)
	assert.Equal(t, KindMeta, sent.Kind())
	assert.Equal(t, "to everyone", sent.Body())

	boom := errors.New("down")
	f.y.FailSends(f.aliceY.GlobalID(), boom)
	sent, err = m.SendMessage(ctx, "partial")
	require.NoError(t, err)
	assert.Equal(t, 1, sent.(*MetaMessage).Len())

	f.x.FailSends(f.aliceX.GlobalID(), boom)
	_, err = m.SendMessage(ctx, "lost")
	assert.ErrorIs(t, err, boom)
}

type recordedCall struct {
	op           string
	discussionID string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
	fail  error
}

func (r *fakeRecorder) add(op, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.calls = append(r.calls, recordedCall{op: op, discussionID: id})
	return nil
}

func (r *fakeRecorder) SaveMeta(_ context.Context, rec *store.MetaRecord) error {
	return r.add("save", rec.ID)
}

func (r *fakeRecorder) AppendEntry(_ context.Context, rec *store.EntryRecord) error {
	return r.add("append", rec.DiscussionID)
}

func (r *fakeRecorder) MarkEntryRemoved(_ context.Context, _, discussionID string, _ time.Time) error {
	return r.add("remove", discussionID)
}

func TestMeta_Recorder(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	rec := &fakeRecorder{}
	m := NewMeta(f.owner, WithRecorder(rec))
	defer m.Close()

	a := f.simple(t, f.aliceX, f.bobX)
	b := f.simple(t, f.aliceY, f.bobY)
	require.NoError(t, m.AddSubdiscussion(ctx, a))
	require.NoError(t, m.AddSubdiscussion(ctx, b))
	require.NoError(t, m.RemoveSubdiscussion(ctx, a))

	assert.Equal(t, []recordedCall{
		{op: "save", discussionID: string(m.GlobalID())},
		{op: "append", discussionID: string(a.GlobalID())},
		{op: "append", discussionID: string(b.GlobalID())},
		{op: "remove", discussionID: string(a.GlobalID())},
	}, rec.calls)

	rec.fail = errors.New("disk full")
	third := f.y.NewAccount("alice3").AddContact(f.bobY)
	err := m.AddSubdiscussion(ctx, f.simple(t, third, f.bobY))
	require.Error(t, err)
	assert.Len(t, m.SubDiscussions(), 1, "a failed record leaves the registry unchanged")
}

func TestMeta_Persist(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	m := NewMeta(f.owner)
	defer m.Close()

	a := f.simple(t, f.aliceX, f.bobX)
	b := f.simple(t, f.aliceY, f.bobY)
	require.NoError(t, m.AddSubdiscussion(ctx, a))
	require.NoError(t, m.AddSubdiscussion(ctx, b))
	require.NoError(t, m.RemoveSubdiscussion(ctx, a))

	assert.ErrorIs(t, m.Persist(ctx, nil), ErrMalformed)

	rec := &fakeRecorder{}
	require.NoError(t, m.Persist(ctx, rec))

	third := f.y.NewAccount("alice3").AddContact(f.bobY)
	c := f.simple(t, third, f.bobY)
	require.NoError(t, m.AddSubdiscussion(ctx, c))

	assert.Equal(t, []recordedCall{
		{op: "save", discussionID: string(m.GlobalID())},
		{op: "append", discussionID: string(a.GlobalID())},
		{op: "remove", discussionID: string(a.GlobalID())},
		{op: "append", discussionID: string(b.GlobalID())},
		{op: "append", discussionID: string(c.GlobalID())},
	}, rec.calls, "nothing is recorded before Persist, everything after")
}

func TestMeta_RestoreEntry(t *testing.T) {
	f := newFixture(t)
	m := NewMeta(f.owner, WithPersisted())
	defer m.Close()

	removed := t0.Add(time.Hour)
	m.RestoreEntry(f.simple(t, f.aliceX, f.bobX), t0, &removed)
	m.RestoreEntry(f.simple(t, f.aliceY, f.bobY), t0, nil)

	assert.Len(t, m.DatedSubDiscussions(), 2)
	assert.Len(t, m.SubDiscussions(), 1)
}
