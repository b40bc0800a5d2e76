// ABOUTME: Memory driver account, session and discussion handles
// ABOUTME: Implements driver.Account, driver.Session and driver.Discussion over a Network

package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/driver"
)

// Account is a local identity on a memory Network.
type Account struct {
	net      *Network
	id       driver.GlobalID
	contacts []driver.Contact // guarded by net.mu
}

var (
	_ driver.Account    = (*Account)(nil)
	_ driver.Session    = (*session)(nil)
	_ driver.Discussion = (*Discussion)(nil)
)

func (a *Account) GlobalID() driver.GlobalID { return a.id }
func (a *Account) DriverName() string        { return a.net.name }

// AddContact adds c to the account's contacts; duplicates are ignored.
func (a *Account) AddContact(c driver.Contact) *Account {
	a.net.mu.Lock()
	defer a.net.mu.Unlock()

	if !lo.ContainsBy(a.contacts, func(k driver.Contact) bool { return k.ID == c.ID }) {
		a.contacts = append(a.contacts, c)
	}
	return a
}

// HasContact reports whether contact is known to the account.
func (a *Account) HasContact(_ context.Context, contact driver.Contact) (bool, error) {
	a.net.mu.RLock()
	defer a.net.mu.RUnlock()
	return lo.ContainsBy(a.contacts, func(k driver.Contact) bool { return k.ID == contact.ID }), nil
}

// ContactAccounts lists known contacts in insertion order.
func (a *Account) ContactAccounts(_ context.Context) ([]driver.Contact, error) {
	a.net.mu.RLock()
	defer a.net.mu.RUnlock()
	return slices.Clone(a.contacts), nil
}

// Session returns the account's session; memory accounts are always connected.
func (a *Account) Session(_ context.Context) (driver.Session, error) {
	return &session{account: a}, nil
}

// GetOrCreateDiscussion returns the oldest room whose members are exactly the
// account plus contacts, creating one when none matches.
func (a *Account) GetOrCreateDiscussion(_ context.Context, contacts []driver.Contact) (driver.Discussion, error) {
	want := lo.Uniq(append([]driver.GlobalID{a.id}, lo.Map(contacts, func(c driver.Contact, _ int) driver.GlobalID {
		return c.ID
	})...))

	a.net.mu.Lock()
	defer a.net.mu.Unlock()

	for _, id := range a.net.roomOrder {
		r := a.net.rooms[id]
		if sameMembers(r.members, want) {
			return a.handle(r), nil
		}
	}
	return a.handle(a.net.createRoomLocked(want)), nil
}

// Discussions lists the rooms the account is a member of, oldest first.
func (a *Account) Discussions(_ context.Context) ([]driver.Discussion, error) {
	a.net.mu.RLock()
	defer a.net.mu.RUnlock()

	var out []driver.Discussion
	for _, id := range a.net.roomOrder {
		if r := a.net.rooms[id]; r.hasMember(a.id) {
			out = append(out, a.handle(r))
		}
	}
	return out, nil
}

func (a *Account) handle(r *room) *Discussion {
	return &Discussion{net: a.net, room: r, self: a.id}
}

func sameMembers(have, want []driver.GlobalID) bool {
	if len(have) != len(want) {
		return false
	}
	for _, id := range want {
		if !slices.Contains(have, id) {
			return false
		}
	}
	return true
}

type session struct {
	account *Account
}

// CreateDiscussion always opens a new room with the account and contacts.
func (s *session) CreateDiscussion(_ context.Context, contacts []driver.GlobalID) (driver.Discussion, error) {
	n := s.account.net
	n.mu.Lock()
	defer n.mu.Unlock()

	r := n.createRoomLocked(append([]driver.GlobalID{s.account.id}, contacts...))
	return s.account.handle(r), nil
}

func (s *session) Discussion(_ context.Context, id driver.GlobalID) (driver.Discussion, error) {
	n := s.account.net
	n.mu.RLock()
	defer n.mu.RUnlock()

	r, ok := n.rooms[id]
	if !ok || !r.hasMember(s.account.id) {
		return nil, fmt.Errorf("%w: %s", driver.ErrUnknownDiscussion, id)
	}
	return s.account.handle(r), nil
}

func (s *session) LeaveDiscussion(_ context.Context, id driver.GlobalID) error {
	n := s.account.net
	n.mu.Lock()
	defer n.mu.Unlock()

	r, ok := n.rooms[id]
	if !ok {
		return fmt.Errorf("%w: %s", driver.ErrUnknownDiscussion, id)
	}
	return removeMemberLocked(r, s.account.id)
}

func removeMemberLocked(r *room, member driver.GlobalID) error {
	idx := slices.Index(r.members, member)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotMember, member)
	}
	r.members = slices.Delete(r.members, idx, idx+1)
	return nil
}

// Discussion is a room as seen by one account.
type Discussion struct {
	net  *Network
	room *room
	self driver.GlobalID
}

func (d *Discussion) GlobalID() driver.GlobalID { return d.room.id }
func (d *Discussion) Description() string       { return "" }
func (d *Discussion) CreatedAt() time.Time      { return d.room.createdAt }

func (d *Discussion) Name() string {
	d.net.mu.RLock()
	defer d.net.mu.RUnlock()
	return d.room.name
}

// Messages returns the room history filtered by opts.
func (d *Discussion) Messages(_ context.Context, opts driver.MessageOptions) ([]driver.Message, error) {
	d.net.mu.RLock()
	msgs := slices.Clone(d.room.messages)
	d.net.mu.RUnlock()
	return opts.Apply(msgs), nil
}

// Participants lists the other members of the room.
func (d *Discussion) Participants(_ context.Context) ([]driver.Contact, error) {
	d.net.mu.RLock()
	defer d.net.mu.RUnlock()

	others := lo.Filter(d.room.members, func(m driver.GlobalID, _ int) bool { return m != d.self })
	return lo.Map(others, func(m driver.GlobalID, _ int) driver.Contact {
		return driver.Contact{ID: m, DisplayName: m.Local()}
	}), nil
}

// SendMessage posts body as the account and delivers it to the other members.
func (d *Discussion) SendMessage(_ context.Context, body string) (driver.Message, error) {
	d.net.mu.Lock()
	if err, failing := d.net.failSends[d.self]; failing {
		d.net.mu.Unlock()
		return driver.Message{}, fmt.Errorf("sending to %s: %w", d.room.id, err)
	}
	if !d.room.hasMember(d.self) {
		d.net.mu.Unlock()
		return driver.Message{}, fmt.Errorf("%w: %s", ErrNotMember, d.self)
	}
	msg := d.net.appendLocked(d.room, d.self, body, d.net.now())
	members := slices.Clone(d.room.members)
	d.net.mu.Unlock()

	d.net.deliver(msg, members)
	return msg, nil
}

func (d *Discussion) AddParticipant(_ context.Context, contact driver.GlobalID) error {
	d.net.mu.Lock()
	defer d.net.mu.Unlock()

	if !d.room.hasMember(contact) {
		d.room.members = append(d.room.members, contact)
	}
	return nil
}

func (d *Discussion) RemoveParticipant(_ context.Context, contact driver.GlobalID) error {
	d.net.mu.Lock()
	defer d.net.mu.Unlock()
	return removeMemberLocked(d.room, contact)
}

// Merge moves other's members and history into this room and makes the
// account leave other. Both rooms must belong to the same network.
func (d *Discussion) Merge(_ context.Context, other driver.Discussion) error {
	o, ok := other.(*Discussion)
	if !ok || o.net != d.net {
		return fmt.Errorf("merging %s into %s: %w", other.GlobalID(), d.room.id, driver.ErrUnsupported)
	}
	if o.room == d.room {
		return nil
	}

	d.net.mu.Lock()
	defer d.net.mu.Unlock()

	for _, m := range o.room.members {
		if !d.room.hasMember(m) {
			d.room.members = append(d.room.members, m)
		}
	}
	for _, m := range o.room.messages {
		d.net.appendLocked(d.room, m.Author, m.Body, m.CreatedAt)
	}
	_ = removeMemberLocked(o.room, o.self)

	d.net.logger.Debug("rooms merged", "discussion_id", d.room.id, "merged_id", o.room.id)
	return nil
}

// Incoming streams messages other members post in the room.
func (d *Discussion) Incoming(ctx context.Context) (<-chan driver.Message, error) {
	ch, _ := d.net.incoming.SubscribeLossless(ctx, streamKey(d.room.id, d.self))
	return ch, nil
}
