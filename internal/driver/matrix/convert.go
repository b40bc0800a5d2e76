// ABOUTME: Conversions between Matrix identifiers and events and driver values
// ABOUTME: Also renders markdown bodies into HTML formatted_body with goldmark

package matrix

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/coven-meta/internal/driver"
)

func userGlobalID(u id.UserID) driver.GlobalID   { return driver.NewGlobalID(DriverName, u.String()) }
func roomGlobalID(r id.RoomID) driver.GlobalID   { return driver.NewGlobalID(DriverName, r.String()) }
func eventGlobalID(e id.EventID) driver.GlobalID { return driver.NewGlobalID(DriverName, e.String()) }

func userID(g driver.GlobalID) (id.UserID, error) {
	if g.Driver() != DriverName {
		return "", fmt.Errorf("%w: %s", ErrForeignID, g)
	}
	return id.UserID(g.Local()), nil
}

func userIDs(ids []driver.GlobalID) ([]id.UserID, error) {
	out := make([]id.UserID, 0, len(ids))
	for _, g := range ids {
		u, err := userID(g)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(out, u) {
			out = append(out, u)
		}
	}
	return out, nil
}

func roomID(g driver.GlobalID) (id.RoomID, error) {
	if g.Driver() != DriverName {
		return "", fmt.Errorf("%w: %s", ErrForeignID, g)
	}
	return id.RoomID(g.Local()), nil
}

func localpart(u id.UserID) string {
	lp, _, err := u.Parse()
	if err != nil {
		return u.String()
	}
	return lp
}

// sameMembers reports whether have and want hold the same users.
func sameMembers(have, want []id.UserID) bool {
	if len(have) != len(want) {
		return false
	}
	for _, u := range want {
		if !slices.Contains(have, u) {
			return false
		}
	}
	return true
}

// toMessage converts a text-like m.room.message event. Content arriving raw
// from /messages is parsed first.
func toMessage(evt *event.Event) (driver.Message, bool) {
	if evt == nil || evt.Type != event.EventMessage {
		return driver.Message{}, false
	}
	if evt.Content.Parsed == nil {
		if err := evt.Content.ParseRaw(evt.Type); err != nil {
			return driver.Message{}, false
		}
	}

	content, ok := evt.Content.Parsed.(*event.MessageEventContent)
	if !ok || content.Body == "" {
		return driver.Message{}, false
	}
	switch content.MsgType {
	case event.MsgText, event.MsgNotice, event.MsgEmote:
	default:
		return driver.Message{}, false
	}

	return driver.Message{
		ID:           eventGlobalID(evt.ID),
		DiscussionID: roomGlobalID(evt.RoomID),
		Author:       userGlobalID(evt.Sender),
		Body:         content.Body,
		CreatedAt:    time.UnixMilli(evt.Timestamp),
	}, true
}

// messageContent builds an m.text event for body, with formatted_body only
// when markdown rendering produced more than a plain paragraph.
func messageContent(body string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    body,
	}
	if html, ok := renderMarkdown(body); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = html
	}
	return content
}

func renderMarkdown(body string) (string, bool) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(body), &buf); err != nil {
		return "", false
	}
	html := strings.TrimSpace(buf.String())

	inner, isParagraph := strings.CutPrefix(html, "<p>")
	inner, closed := strings.CutSuffix(inner, "</p>")
	if isParagraph && closed && !strings.Contains(inner, "<") {
		return "", false
	}
	return html, true
}
