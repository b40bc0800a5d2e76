// ABOUTME: In-process loopback chat network implementing the driver contracts
// ABOUTME: Holds rooms, members and history; delivers sends to other members' streams

package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/broadcast"
	"github.com/2389/coven-meta/internal/driver"
)

// DefaultDriverName is the driver name used when none is given.
const DefaultDriverName = "memory"

// ErrNotMember is returned when an operation names someone who is not in the room
var ErrNotMember = errors.New("not a member of the discussion")

type room struct {
	id        driver.GlobalID
	name      string
	createdAt time.Time
	members   []driver.GlobalID
	messages  []driver.Message
}

func (r *room) hasMember(id driver.GlobalID) bool {
	return slices.Contains(r.members, id)
}

// Network is a whole chat backend living in memory. Several networks with
// different driver names model several protocols.
type Network struct {
	mu        sync.RWMutex
	name      string
	accounts  map[driver.GlobalID]*Account
	rooms     map[driver.GlobalID]*room
	roomOrder []driver.GlobalID
	failSends map[driver.GlobalID]error
	incoming  *broadcast.Broadcaster[driver.Message]
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Network.
type Option func(*Network)

// WithClock replaces time.Now for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(n *Network) { n.now = now }
}

// WithLogger sets the network logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// NewNetwork creates an empty network whose ids are prefixed with driverName.
func NewNetwork(driverName string, opts ...Option) *Network {
	if driverName == "" {
		driverName = DefaultDriverName
	}
	n := &Network{
		name:      driverName,
		accounts:  make(map[driver.GlobalID]*Account),
		rooms:     make(map[driver.GlobalID]*room),
		failSends: make(map[driver.GlobalID]error),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.With("component", "memory_driver", "driver", driverName)
	n.incoming = broadcast.New[driver.Message](n.logger)
	return n
}

// Name returns the driver name.
func (n *Network) Name() string { return n.name }

// ID builds a global id on this network.
func (n *Network) ID(local string) driver.GlobalID {
	return driver.NewGlobalID(n.name, local)
}

// NewAccount registers a local account on the network. Registering the same
// local name twice returns the existing account.
func (n *Network) NewAccount(local string) *Account {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.ID(local)
	if a, ok := n.accounts[id]; ok {
		return a
	}
	a := &Account{net: n, id: id}
	n.accounts[id] = a
	return a
}

// FailSends makes every send by account fail with err. A nil err clears it.
func (n *Network) FailSends(account driver.GlobalID, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if err == nil {
		delete(n.failSends, account)
		return
	}
	n.failSends[account] = err
}

// Post appends a message authored by author (usually a remote contact) at the
// given time and delivers it to every other member.
func (n *Network) Post(roomID, author driver.GlobalID, body string, at time.Time) (driver.Message, error) {
	n.mu.Lock()
	r, ok := n.rooms[roomID]
	if !ok {
		n.mu.Unlock()
		return driver.Message{}, fmt.Errorf("%w: %s", driver.ErrUnknownDiscussion, roomID)
	}
	msg := n.appendLocked(r, author, body, at)
	members := slices.Clone(r.members)
	n.mu.Unlock()

	n.deliver(msg, members)
	return msg, nil
}

// Close releases every incoming stream.
func (n *Network) Close() {
	n.incoming.Close()
}

func (n *Network) createRoomLocked(members []driver.GlobalID) *room {
	local := uuid.New().String()
	r := &room{
		id:        n.ID("room-" + local),
		createdAt: n.now(),
		members:   lo.Uniq(members),
	}
	r.name = roomName(r.members)
	n.rooms[r.id] = r
	n.roomOrder = append(n.roomOrder, r.id)

	n.logger.Debug("room created", "discussion_id", r.id, "members", len(r.members))
	return r
}

// appendLocked keeps history ordered by creation time.
func (n *Network) appendLocked(r *room, author driver.GlobalID, body string, at time.Time) driver.Message {
	msg := driver.Message{
		ID:           n.ID("msg-" + uuid.New().String()),
		DiscussionID: r.id,
		Author:       author,
		Body:         body,
		CreatedAt:    at,
	}
	idx, _ := slices.BinarySearchFunc(r.messages, at, func(m driver.Message, t time.Time) int {
		if m.CreatedAt.After(t) {
			return 1
		}
		return -1
	})
	r.messages = slices.Insert(r.messages, idx, msg)
	return msg
}

func (n *Network) deliver(msg driver.Message, members []driver.GlobalID) {
	for _, member := range members {
		if member == msg.Author {
			continue
		}
		n.incoming.Publish(streamKey(msg.DiscussionID, member), msg, "")
	}
}

func streamKey(roomID, member driver.GlobalID) string {
	return string(roomID) + "|" + string(member)
}

func roomName(members []driver.GlobalID) string {
	return strings.Join(lo.Map(members, func(m driver.GlobalID, _ int) string {
		return m.Local()
	}), ", ")
}
