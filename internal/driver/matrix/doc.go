// Package matrix implements the driver contracts on Matrix through mautrix.
//
// An Account is one logged-in Matrix user. Its contacts are the users listed
// in configuration plus the partners recorded in the m.direct account data.
// Joined rooms are discussions: history is read by paging /messages
// backwards, sends are m.text events whose markdown is rendered to HTML, and
// membership changes are invites and kicks. Merging a room into another
// invites its members and leaves it.
//
// Incoming messages only flow while Run is syncing:
//
//	acc, _ := matrix.NewAccount(matrix.Config{Homeserver: hs, UserID: uid, AccessToken: tok}, logger)
//	go acc.Run(ctx)
package matrix
