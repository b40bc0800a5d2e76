// ABOUTME: Tests for simple discussions
// ABOUTME: Covers identity, delegation to the driver and the republished stream

package discussion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-meta/internal/driver"
)

func TestSimple_Identity(t *testing.T) {
	f := newFixture(t)
	s := f.simple(t, f.aliceX, f.bobX)

	assert.Equal(t, KindSimple, s.Kind())
	assert.Equal(t, "x", s.DriverName())
	assert.Same(t, f.aliceX, s.LocalAccount())
	assert.True(t, s.IsTheSameAs(s))
	assert.False(t, s.IsTheSameAs(nil))

	sess, err := f.aliceX.Session(t.Context())
	require.NoError(t, err)
	handle, err := sess.Discussion(t.Context(), s.GlobalID())
	require.NoError(t, err)
	assert.True(t, s.IsTheSameAs(NewSimple(f.aliceX, handle, nil)), "same discussion through a new handle")

	assert.False(t, s.IsTheSameAs(f.simple(t, f.aliceX, f.bobX)))
}

func TestSimple_SendAndFetch(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	s := f.simple(t, f.aliceX, f.bobX)

	sent, err := s.SendMessage(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, KindSimple, sent.Kind())
	assert.Equal(t, f.aliceX.GlobalID(), sent.Author())

	msgs, err := s.Messages(ctx, driver.MessageOptions{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sent.ID(), msgs[0].ID())
}

func TestSimple_Participants(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	s := f.simple(t, f.aliceX, f.bobX)

	require.NoError(t, s.AddParticipant(ctx, f.carolX))
	assert.ElementsMatch(t, []driver.GlobalID{f.bobX.ID, f.carolX.ID}, participantIDs(t, s))

	require.NoError(t, s.RemoveParticipants(ctx, f.bobX))
	assert.Equal(t, []driver.GlobalID{f.carolX.ID}, participantIDs(t, s))

	assert.Error(t, s.RemoveParticipants(ctx, f.bobX))
}

func TestSimple_MergeRejectsNil(t *testing.T) {
	f := newFixture(t)
	s := f.simple(t, f.aliceX, f.bobX)
	assert.ErrorIs(t, s.Merge(t.Context(), nil), ErrMalformed)
}

func TestSimple_ListenAndSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	s := f.simple(t, f.aliceX, f.bobX)
	defer s.Close()

	assert.False(t, s.Listening())
	require.NoError(t, s.Listen(ctx))
	require.NoError(t, s.Listen(ctx))
	assert.True(t, s.Listening())

	typed, typedSub := s.SubscribeMessages(ctx)
	defer typedSub.Cancel()
	generic, genericSub := s.Subscribe(ctx)
	defer genericSub.Cancel()

	_, err := f.x.Post(s.GlobalID(), f.bobX.ID, "incoming", time.Now())
	require.NoError(t, err)

	select {
	case msg := <-typed:
		assert.Equal(t, "incoming", msg.Body())
		assert.Same(t, s, msg.Discussion())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on typed stream")
	}

	select {
	case msg := <-generic:
		assert.Equal(t, KindSimple, msg.Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out on generic stream")
	}

	genericSub.Cancel()
	select {
	case <-genericSub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription not cancelled")
	}
}

func TestSimple_StopListening(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	s := f.simple(t, f.aliceX, f.bobX)
	defer s.Close()

	s.StopListening()
	require.NoError(t, s.Listen(ctx))
	msgs, sub := s.SubscribeMessages(ctx)
	defer sub.Cancel()

	s.StopListening()
	assert.False(t, s.Listening())

	_, err := f.x.Post(s.GlobalID(), f.bobX.ID, "unheard", time.Now())
	require.NoError(t, err)
	select {
	case msg := <-msgs:
		t.Fatalf("unexpected message %q", msg.Body())
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, s.Listen(ctx))
	assert.True(t, s.Listening())
	_, err = f.x.Post(s.GlobalID(), f.bobX.ID, "heard", time.Now())
	require.NoError(t, err)

	select {
	case msg := <-msgs:
		assert.Equal(t, "heard", msg.Body())
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not survive StopListening")
	}
}

func TestSubscription_CancelNil(t *testing.T) {
	var sub *Subscription
	assert.NotPanics(t, sub.Cancel)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "simple", KindSimple.String())
	assert.Equal(t, "meta", KindMeta.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
