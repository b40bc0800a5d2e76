// Package memory implements the driver contracts on an in-process network.
//
// A Network is one protocol: create several with different driver names to
// model several backends. Accounts register on a network, know contacts, and
// open rooms with them. Sending appends to the room history and delivers the
// message to the incoming stream of every other member.
//
//	x := memory.NewNetwork("x")
//	alice := x.NewAccount("alice").AddContact(driver.Contact{ID: x.ID("bob")})
//	room, _ := alice.GetOrCreateDiscussion(ctx, []driver.Contact{{ID: x.ID("bob")}})
//	x.Post(room.GlobalID(), x.ID("bob"), "hi", time.Now())
//
// Post injects messages from remote parties with explicit timestamps and
// FailSends makes an account's sends fail, which the discussion tests use to
// exercise merge windows and relay failure isolation.
package memory
