// Package user models the human behind several chat accounts.
//
// A User owns accounts from any number of drivers and decides, for a set of
// contacts, whether one account can host the conversation or whether a
// meta-discussion spanning several accounts is needed:
//
//	u := user.New("alice", user.WithStore(s))
//	u.AddAccount(matrixAccount)
//	u.AddAccount(memoryAccount)
//
//	d, err := u.GetOrCreateDiscussion(ctx, []driver.Contact{bob, carol})
//	switch d.Kind() {
//	case discussion.KindSimple:
//		// a single account knows the contacts
//	case discussion.KindMeta:
//		// contacts are spread across accounts
//	}
//
// With a store, meta-discussions are persisted as they change and
// LoadMetaDiscussions rebuilds them on the next start. ListenAll relays every
// meta-discussion, including ones created afterwards.
package user
