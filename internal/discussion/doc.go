// Package discussion aggregates conversations that live on several chat
// protocols and several accounts into meta-discussions.
//
// # Variants
//
// The Discussion and Message contracts have exactly two implementations each:
//
//   - *Simple / *SimpleMessage: one driver discussion seen through one account
//   - *Meta / *MetaMessage: a registry of simple discussions and the messages
//     they carried redundantly
//
// Use Kind() to tell them apart.
//
// # Registry
//
// A Meta keeps every sub-discussion it ever held with the date it was added
// and, once removed, the date it was removed. Removed entries are kept so the
// history of the period they belonged to the meta-discussion stays visible:
//
//	meta := discussion.NewMeta(user)
//	err := meta.AddParticipant(ctx, contact)     // reuses or opens a sub-discussion
//	err = meta.AddSubdiscussion(ctx, simple)     // ErrConflict if already present
//	err = meta.RemoveSubdiscussion(ctx, simple)  // ErrNotFound if not active
//
// # Merging
//
// Messages pools the dated histories, sorts them by creation time and folds
// every message whose body equals an earlier one within the merge window
// (five minutes by default) into a single MetaMessage. Bodies are compared
// exactly. A quoted copy the relay posted, recognised by its author being the
// sub-discussion's own account, folds into the message it copies.
//
// # Relay
//
// Listen makes every active sub-discussion forward what it receives to all the
// others as a quoted copy (">>" + body). Messages written by the owner's own
// accounts are not forwarded, and the relay reads its sub-discussions through
// queues that never drop. One "message" event carrying the original and its
// delivered copies is emitted per relayed message:
//
//	_ = meta.Listen(ctx)
//	events, sub := meta.SubscribeMessages(ctx)
//	defer sub.Cancel()
//	for mm := range events {
//		fmt.Println(mm.Body(), mm.Len())
//	}
package discussion
