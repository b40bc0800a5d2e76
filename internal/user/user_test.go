// ABOUTME: Tests for the User: account ownership, discussion resolution and restore
// ABOUTME: Uses in-memory networks, the mock store and gomock driver doubles

package user

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/2389/coven-meta/internal/discussion"
	"github.com/2389/coven-meta/internal/driver"
	"github.com/2389/coven-meta/internal/driver/memory"
	"github.com/2389/coven-meta/internal/driver/mocks"
	"github.com/2389/coven-meta/internal/store"
)

// world is two networks: a1 on "x" knows c1, a2 on "y" knows c2.
type world struct {
	x, y   *memory.Network
	a1, a2 *memory.Account
	c1, c2 driver.Contact
}

func newWorld(t *testing.T) *world {
	t.Helper()
	w := &world{x: memory.NewNetwork("x"), y: memory.NewNetwork("y")}
	t.Cleanup(w.x.Close)
	t.Cleanup(w.y.Close)

	w.c1 = driver.Contact{ID: w.x.ID("bob")}
	w.c2 = driver.Contact{ID: w.y.ID("carol")}
	w.a1 = w.x.NewAccount("alice").AddContact(w.c1)
	w.a2 = w.y.NewAccount("alice").AddContact(w.c2)
	return w
}

func (w *world) user(t *testing.T, opts ...Option) *User {
	t.Helper()
	u := New("alice", opts...)
	t.Cleanup(u.Close)
	_, err := u.AddAccount(w.a1)
	require.NoError(t, err)
	_, err = u.AddAccount(w.a2)
	require.NoError(t, err)
	return u
}

func TestUser_Accounts(t *testing.T) {
	w := newWorld(t)
	u := New("alice")

	got, err := u.AddAccount(w.a1)
	require.NoError(t, err)
	assert.Same(t, u, got, "AddAccount returns the user for chaining")

	_, err = u.AddAccount(w.a1)
	assert.ErrorIs(t, err, discussion.ErrConflict)

	_, err = u.AddAccount(w.a2)
	require.NoError(t, err)
	assert.Equal(t, []driver.Account{w.a1, w.a2}, u.Accounts())

	acc, err := u.Account(w.a2.GlobalID())
	require.NoError(t, err)
	assert.Same(t, w.a2, acc)

	got, err = u.RemoveAccount(w.a1.GlobalID())
	require.NoError(t, err)
	assert.Same(t, u, got)
	assert.Equal(t, []driver.Account{w.a2}, u.Accounts())

	_, err = u.RemoveAccount(w.a1.GlobalID())
	assert.ErrorIs(t, err, discussion.ErrNotFound)
	_, err = u.Account(w.a1.GlobalID())
	assert.ErrorIs(t, err, discussion.ErrNotFound)

	assert.Equal(t, driver.GlobalID("user:alice"), u.GlobalID())
}

func TestUser_GetOrCreateDiscussion_SingleAccount(t *testing.T) {
	w := newWorld(t)
	u := w.user(t)
	ctx := t.Context()

	d, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1})
	require.NoError(t, err)
	require.Equal(t, discussion.KindSimple, d.Kind())

	simple := d.(*discussion.Simple)
	assert.Equal(t, "x", simple.DriverName())
	assert.Same(t, w.a1, simple.LocalAccount())
	assert.Empty(t, u.MetaDiscussions())

	again, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1})
	require.NoError(t, err)
	assert.Equal(t, d.GlobalID(), again.GlobalID(), "the account reuses its discussion")
}

func TestUser_GetOrCreateDiscussion_SeveralAccounts(t *testing.T) {
	w := newWorld(t)
	u := w.user(t)
	ctx := t.Context()

	d, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)
	require.Equal(t, discussion.KindMeta, d.Kind())

	meta := d.(*discussion.Meta)
	assert.True(t, meta.IsHeterogeneous())
	require.Len(t, meta.SubDiscussions(), 2)
	assert.Equal(t, "x", meta.SubDiscussions()[0].DriverName())
	assert.Equal(t, "y", meta.SubDiscussions()[1].DriverName())
	assert.Equal(t, []*discussion.Meta{meta}, u.MetaDiscussions())

	other, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)
	assert.NotEqual(t, meta.GlobalID(), other.GlobalID(), "a new meta-discussion each time")
}

func TestUser_GetOrCreateDiscussion_Errors(t *testing.T) {
	w := newWorld(t)
	u := w.user(t)
	ctx := t.Context()

	_, err := u.GetOrCreateDiscussion(ctx, nil)
	assert.ErrorIs(t, err, discussion.ErrMalformed)

	_, err = u.GetOrCreateDiscussion(ctx, []driver.Contact{{ID: "x:stranger"}})
	assert.ErrorIs(t, err, discussion.ErrNotFound)
}

func TestUser_GetOrCreateDiscussion_AccountFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	broken := mocks.NewMockAccount(ctrl)
	boom := errors.New("homeserver unreachable")

	broken.EXPECT().GlobalID().Return(driver.GlobalID("z:alice")).AnyTimes()
	broken.EXPECT().DriverName().Return("z").AnyTimes()
	broken.EXPECT().HasContact(gomock.Any(), gomock.Any()).Return(false, boom)

	u := New("alice")
	_, err := u.AddAccount(broken)
	require.NoError(t, err)

	_, err = u.GetOrCreateDiscussion(t.Context(), []driver.Contact{{ID: "z:bob"}})
	assert.ErrorIs(t, err, boom)
}

func TestUser_GetOrCreateDiscussion_PartialFailureStoresNothing(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()
	s := store.NewMockStore()

	ctrl := gomock.NewController(t)
	flaky := mocks.NewMockAccount(ctrl)
	dave := driver.Contact{ID: "z:dave"}
	down := errors.New("z is down")

	flaky.EXPECT().GlobalID().Return(driver.GlobalID("z:alice")).AnyTimes()
	flaky.EXPECT().DriverName().Return("z").AnyTimes()
	flaky.EXPECT().HasContact(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, c driver.Contact) (bool, error) { return c.ID == dave.ID, nil },
	).AnyTimes()
	flaky.EXPECT().Session(gomock.Any()).Return(nil, down)

	u := New("alice", WithStore(s))
	t.Cleanup(u.Close)
	_, err := u.AddAccount(w.a1)
	require.NoError(t, err)
	_, err = u.AddAccount(flaky)
	require.NoError(t, err)

	_, err = u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, dave})
	require.ErrorIs(t, err, down)
	assert.Empty(t, u.MetaDiscussions())

	records, err := s.ListMetas(ctx, string(u.GlobalID()))
	require.NoError(t, err)
	assert.Empty(t, records, "a meta-discussion that failed to build is not stored")

	fresh := New("alice", WithStore(s))
	t.Cleanup(fresh.Close)
	loaded, err := fresh.LoadMetaDiscussions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// entryFailingStore accepts meta-discussions but refuses their entries.
type entryFailingStore struct {
	*store.MockStore
	err error
}

func (s *entryFailingStore) AppendEntry(context.Context, *store.EntryRecord) error {
	return s.err
}

func TestUser_GetOrCreateDiscussion_StorageFailureRollsBack(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()
	diskFull := errors.New("disk full")
	s := &entryFailingStore{MockStore: store.NewMockStore(), err: diskFull}

	u := w.user(t, WithStore(s))
	_, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.ErrorIs(t, err, diskFull)
	assert.Empty(t, u.MetaDiscussions())

	records, err := s.ListMetas(ctx, string(u.GlobalID()))
	require.NoError(t, err)
	assert.Empty(t, records, "the saved meta-discussion row is removed again")
}

func TestUser_GetOrCreateDiscussion_DelegatesToAccount(t *testing.T) {
	ctrl := gomock.NewController(t)
	account := mocks.NewMockAccount(ctrl)
	handle := mocks.NewMockDiscussion(ctrl)
	bob := driver.Contact{ID: "z:bob"}

	account.EXPECT().GlobalID().Return(driver.GlobalID("z:alice")).AnyTimes()
	account.EXPECT().DriverName().Return("z").AnyTimes()
	account.EXPECT().HasContact(gomock.Any(), bob).Return(true, nil)
	account.EXPECT().GetOrCreateDiscussion(gomock.Any(), []driver.Contact{bob}).Return(handle, nil)
	handle.EXPECT().GlobalID().Return(driver.GlobalID("z:room-1")).AnyTimes()

	u := New("alice")
	_, err := u.AddAccount(account)
	require.NoError(t, err)

	d, err := u.GetOrCreateDiscussion(t.Context(), []driver.Contact{bob})
	require.NoError(t, err)
	assert.Equal(t, discussion.KindSimple, d.Kind())
	assert.Equal(t, driver.GlobalID("z:room-1"), d.GlobalID())
}

func TestUser_AllDiscussions(t *testing.T) {
	w := newWorld(t)
	u := w.user(t)
	ctx := t.Context()

	meta, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)

	sess, err := w.a1.Session(ctx)
	require.NoError(t, err)
	lone, err := sess.CreateDiscussion(ctx, []driver.GlobalID{w.x.ID("dave")})
	require.NoError(t, err)

	all, err := u.AllDiscussions(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2, "constituents of the meta-discussion are hidden")
	assert.Equal(t, meta.GlobalID(), all[0].GlobalID())
	assert.Equal(t, discussion.KindMeta, all[0].Kind())
	assert.Equal(t, lone.GlobalID(), all[1].GlobalID())
	assert.Equal(t, discussion.KindSimple, all[1].Kind())
}

func TestUser_LoadMetaDiscussions_NoStore(t *testing.T) {
	u := New("alice")
	_, err := u.LoadMetaDiscussions(t.Context())
	assert.ErrorIs(t, err, discussion.ErrUnimplemented)
}

func TestUser_LoadMetaDiscussions(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()
	s := store.NewMockStore()

	first := w.user(t, WithStore(s))
	d, err := first.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)
	meta := d.(*discussion.Meta)
	removed := meta.SubDiscussions()[0]
	require.NoError(t, meta.RemoveSubdiscussion(ctx, removed))

	t.Run("rebuilds registry with dates", func(t *testing.T) {
		second := w.user(t, WithStore(s))
		loaded, err := second.LoadMetaDiscussions(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)

		restored := loaded[0]
		assert.Equal(t, meta.GlobalID(), restored.GlobalID())
		assert.True(t, meta.CreatedAt().Equal(restored.CreatedAt()))

		dated := restored.DatedSubDiscussions()
		require.Len(t, dated, 2)
		assert.True(t, dated[0].Discussion.IsTheSameAs(removed))
		assert.NotNil(t, dated[0].RemovedAt)
		assert.Nil(t, dated[1].RemovedAt)
		assert.Len(t, restored.SubDiscussions(), 1)

		again, err := second.LoadMetaDiscussions(ctx)
		require.NoError(t, err)
		assert.Empty(t, again, "already loaded meta-discussions are skipped")
	})

	t.Run("skips entries of accounts no longer owned", func(t *testing.T) {
		third := New("alice", WithStore(s))
		t.Cleanup(third.Close)
		_, err := third.AddAccount(w.a2)
		require.NoError(t, err)

		loaded, err := third.LoadMetaDiscussions(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)
		assert.Len(t, loaded[0].DatedSubDiscussions(), 1)
	})

	t.Run("restored meta keeps recording", func(t *testing.T) {
		fourth := w.user(t, WithStore(s))
		loaded, err := fourth.LoadMetaDiscussions(ctx)
		require.NoError(t, err)
		require.Len(t, loaded, 1)

		restored := loaded[0]
		active := restored.SubDiscussions()[0]
		require.NoError(t, restored.RemoveSubdiscussion(ctx, active))

		entries, err := s.ListEntries(ctx, string(restored.GlobalID()))
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.NotNil(t, entries[1].RemovedAt)
	})
}

func TestUser_OnRegister(t *testing.T) {
	w := newWorld(t)
	ctx := t.Context()
	s := store.NewMockStore()

	var mu sync.Mutex
	var seen []driver.GlobalID
	var listening []bool
	hook := WithOnRegister(func(meta *discussion.Meta) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, meta.GlobalID())
		listening = append(listening, meta.Listening())
	})

	first := w.user(t, WithStore(s), hook)
	require.NoError(t, first.ListenAll(ctx))
	created, err := first.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)

	_, err = first.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1})
	require.NoError(t, err)

	second := w.user(t, WithStore(s), hook)
	loaded, err := second.LoadMetaDiscussions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []driver.GlobalID{created.GlobalID(), created.GlobalID()}, seen,
		"created and restored meta-discussions are reported, simple ones are not")
	assert.Equal(t, []bool{true, false}, listening, "the relay is started before the hook runs")
}

func TestUser_ListenAll(t *testing.T) {
	w := newWorld(t)
	u := w.user(t)
	ctx := t.Context()

	require.NoError(t, u.ListenAll(ctx))

	d, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{w.c1, w.c2})
	require.NoError(t, err)
	meta := d.(*discussion.Meta)
	assert.True(t, meta.Listening(), "meta-discussions created after ListenAll relay too")

	events, sub := meta.SubscribeMessages(ctx)
	defer sub.Cancel()

	onX := meta.SubDiscussions()[0]
	_, err = w.x.Post(onX.GlobalID(), w.c1.ID, "hi", time.Now())
	require.NoError(t, err)

	select {
	case mm := <-events:
		assert.Equal(t, "hi", mm.Body())
		require.Equal(t, 2, mm.Len())
		assert.Equal(t, ">>hi", mm.Messages()[1].Body())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay event")
	}
}
