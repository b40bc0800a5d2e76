// ABOUTME: Matrix room as a driver discussion
// ABOUTME: History via /messages paging, sends with formatted bodies, membership via invite and kick

package matrix

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-meta/internal/driver"
)

const (
	// historyPageSize is the /messages limit per request.
	historyPageSize = 100
	// maxHistoryPages bounds one Messages call.
	maxHistoryPages = 50
)

// Discussion is a Matrix room as seen by one account.
type Discussion struct {
	account   *Account
	room      id.RoomID
	createdAt time.Time
}

func (d *Discussion) GlobalID() driver.GlobalID { return roomGlobalID(d.room) }
func (d *Discussion) CreatedAt() time.Time      { return d.createdAt }

// Name returns the m.room.name state, or the room id when the room has none.
func (d *Discussion) Name() string {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	var content event.RoomNameEventContent
	if err := d.account.client.StateEvent(ctx, d.room, event.StateRoomName, "", &content); err != nil || content.Name == "" {
		return d.room.String()
	}
	return content.Name
}

// Description returns the room topic.
func (d *Discussion) Description() string {
	ctx, cancel := context.WithTimeout(context.Background(), networkTimeout)
	defer cancel()

	var content event.TopicEventContent
	if err := d.account.client.StateEvent(ctx, d.room, event.StateTopic, "", &content); err != nil {
		return ""
	}
	return content.Topic
}

// Messages pages backwards through the room timeline until opts are satisfied
// or the start of the room is reached, then returns the result oldest first.
func (d *Discussion) Messages(ctx context.Context, opts driver.MessageOptions) ([]driver.Message, error) {
	var newestFirst []driver.Message
	from := ""

pages:
	for range maxHistoryPages {
		resp, err := d.account.client.Messages(ctx, d.room, from, "", mautrix.DirectionBackward, nil, historyPageSize)
		if err != nil {
			return nil, fmt.Errorf("fetching history of %s: %w", d.room, err)
		}

		for _, evt := range resp.Chunk {
			msg, ok := toMessage(evt)
			if !ok {
				continue
			}
			if !opts.AfterDate.IsZero() && msg.CreatedAt.Before(opts.AfterDate) {
				break pages
			}
			newestFirst = append(newestFirst, msg)
		}

		if opts.Filter == nil && opts.MaxMessages > 0 && len(newestFirst) >= opts.MaxMessages {
			break
		}
		if resp.End == "" || len(resp.Chunk) == 0 {
			break
		}
		from = resp.End
	}

	slices.Reverse(newestFirst)
	return opts.Apply(newestFirst), nil
}

// Participants lists the joined members other than the account.
func (d *Discussion) Participants(ctx context.Context) ([]driver.Contact, error) {
	resp, err := d.account.client.JoinedMembers(ctx, d.room)
	if err != nil {
		return nil, fmt.Errorf("listing members of %s: %w", d.room, err)
	}

	users := lo.Without(lo.Keys(resp.Joined), d.account.self)
	slices.Sort(users)
	return lo.Map(users, func(u id.UserID, _ int) driver.Contact {
		name := resp.Joined[u].DisplayName
		if name == "" {
			name = localpart(u)
		}
		return driver.Contact{ID: userGlobalID(u), DisplayName: name}
	}), nil
}

// SendMessage posts body as m.text. Bodies containing markdown also carry an
// HTML formatted_body.
func (d *Discussion) SendMessage(ctx context.Context, body string) (driver.Message, error) {
	resp, err := d.account.client.SendMessageEvent(ctx, d.room, event.EventMessage, messageContent(body))
	if err != nil {
		return driver.Message{}, fmt.Errorf("sending to %s: %w", d.room, err)
	}

	return driver.Message{
		ID:           eventGlobalID(resp.EventID),
		DiscussionID: d.GlobalID(),
		Author:       d.account.id,
		Body:         body,
		CreatedAt:    d.account.now(),
	}, nil
}

// AddParticipant invites contact.
func (d *Discussion) AddParticipant(ctx context.Context, contact driver.GlobalID) error {
	user, err := userID(contact)
	if err != nil {
		return err
	}
	if _, err := d.account.client.InviteUser(ctx, d.room, &mautrix.ReqInviteUser{UserID: user}); err != nil {
		return fmt.Errorf("inviting %s to %s: %w", user, d.room, err)
	}
	return nil
}

// RemoveParticipant kicks contact.
func (d *Discussion) RemoveParticipant(ctx context.Context, contact driver.GlobalID) error {
	user, err := userID(contact)
	if err != nil {
		return err
	}
	if _, err := d.account.client.KickUser(ctx, d.room, &mautrix.ReqKickUser{UserID: user}); err != nil {
		return fmt.Errorf("removing %s from %s: %w", user, d.room, err)
	}
	return nil
}

// Merge invites the members of other into this room and leaves other. Both
// rooms must be seen through the same account.
func (d *Discussion) Merge(ctx context.Context, other driver.Discussion) error {
	o, ok := other.(*Discussion)
	if !ok || o.account != d.account {
		return fmt.Errorf("merging %s into %s: %w", other.GlobalID(), d.room, driver.ErrUnsupported)
	}
	if o.room == d.room {
		return nil
	}

	theirs, err := d.account.client.JoinedMembers(ctx, o.room)
	if err != nil {
		return fmt.Errorf("listing members of %s: %w", o.room, err)
	}
	ours, err := d.account.client.JoinedMembers(ctx, d.room)
	if err != nil {
		return fmt.Errorf("listing members of %s: %w", d.room, err)
	}

	for user := range theirs.Joined {
		if _, joined := ours.Joined[user]; joined {
			continue
		}
		if _, err := d.account.client.InviteUser(ctx, d.room, &mautrix.ReqInviteUser{UserID: user}); err != nil {
			return fmt.Errorf("inviting %s to %s: %w", user, d.room, err)
		}
	}

	if _, err := d.account.client.LeaveRoom(ctx, o.room); err != nil {
		return fmt.Errorf("leaving %s: %w", o.room, err)
	}

	d.account.logger.Info("rooms merged", "room", d.room, "merged_room", o.room)
	return nil
}

// Incoming streams messages from other members while Run is syncing.
func (d *Discussion) Incoming(ctx context.Context) (<-chan driver.Message, error) {
	ch, _ := d.account.events.SubscribeLossless(ctx, string(d.room))
	return ch, nil
}
