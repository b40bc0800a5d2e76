// ABOUTME: User owning chat accounts across drivers
// ABOUTME: Resolves contacts to a simple or meta discussion and restores persisted meta-discussions

package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/lo"

	"github.com/2389/coven-meta/internal/discussion"
	"github.com/2389/coven-meta/internal/driver"
	"github.com/2389/coven-meta/internal/store"
)

// DriverName tags user ids.
const DriverName = "user"

// User owns an ordered set of accounts, unique by global id, and the
// meta-discussions created on its behalf.
type User struct {
	id       driver.GlobalID
	root     *slog.Logger
	logger   *slog.Logger
	store      store.Store
	metaOpts   []discussion.MetaOption
	onRegister func(*discussion.Meta)

	mu        sync.RWMutex
	accounts  []driver.Account
	metas     []*discussion.Meta
	listenCtx context.Context
}

// Option configures a User.
type Option func(*User)

// WithLogger sets the logger. Nil keeps the default.
func WithLogger(logger *slog.Logger) Option {
	return func(u *User) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// WithStore persists meta-discussions and enables LoadMetaDiscussions.
func WithStore(s store.Store) Option {
	return func(u *User) { u.store = s }
}

// WithMetaOptions are applied to every meta-discussion the user creates or
// restores.
func WithMetaOptions(opts ...discussion.MetaOption) Option {
	return func(u *User) { u.metaOpts = append(u.metaOpts, opts...) }
}

// WithOnRegister calls fn for every meta-discussion the user starts tracking,
// whether created or restored, after its relay has been started.
func WithOnRegister(fn func(*discussion.Meta)) Option {
	return func(u *User) { u.onRegister = fn }
}

// New creates a user with no accounts.
func New(id string, opts ...Option) *User {
	u := &User{
		id:     driver.NewGlobalID(DriverName, id),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	u.root = u.logger
	u.logger = u.logger.With("component", "user", "user_id", u.id)
	return u
}

func (u *User) GlobalID() driver.GlobalID { return u.id }

// Accounts returns the owned accounts in insertion order.
func (u *User) Accounts() []driver.Account {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return slices.Clone(u.accounts)
}

// Account returns the owned account with the given id.
func (u *User) Account(id driver.GlobalID) (driver.Account, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()

	acc, ok := lo.Find(u.accounts, func(a driver.Account) bool { return a.GlobalID() == id })
	if !ok {
		return nil, fmt.Errorf("account %s: %w", id, discussion.ErrNotFound)
	}
	return acc, nil
}

// AddAccount appends account. Returns ErrConflict when an account with the
// same id is already owned.
func (u *User) AddAccount(account driver.Account) (*User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if lo.ContainsBy(u.accounts, func(a driver.Account) bool { return a.GlobalID() == account.GlobalID() }) {
		return u, fmt.Errorf("account %s: %w", account.GlobalID(), discussion.ErrConflict)
	}
	u.accounts = append(u.accounts, account)

	u.logger.Info("account added", "account_id", account.GlobalID(), "driver", account.DriverName())
	return u, nil
}

// RemoveAccount detaches the account permanently. Returns ErrNotFound when it
// is not owned.
func (u *User) RemoveAccount(id driver.GlobalID) (*User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	idx := slices.IndexFunc(u.accounts, func(a driver.Account) bool { return a.GlobalID() == id })
	if idx < 0 {
		return u, fmt.Errorf("account %s: %w", id, discussion.ErrNotFound)
	}
	u.accounts = slices.Delete(u.accounts, idx, idx+1)

	u.logger.Info("account removed", "account_id", id)
	return u, nil
}

// GetOrCreateDiscussion resolves contacts to a discussion. When a single
// account knows any of them, that account's own discussion is returned as a
// *discussion.Simple. When several accounts are involved a new meta-discussion
// is created and every contact is added to it. The meta-discussion is stored
// only once every contact has been added.
func (u *User) GetOrCreateDiscussion(ctx context.Context, contacts []driver.Contact) (discussion.Discussion, error) {
	if len(contacts) == 0 {
		return nil, fmt.Errorf("no contacts given: %w", discussion.ErrMalformed)
	}

	var involved []driver.Account
	for _, account := range u.Accounts() {
		for _, contact := range contacts {
			known, err := account.HasContact(ctx, contact)
			if err != nil {
				return nil, fmt.Errorf("checking contact %s on account %s: %w", contact.ID, account.GlobalID(), err)
			}
			if known {
				involved = append(involved, account)
				break
			}
		}
	}

	switch len(involved) {
	case 0:
		return nil, fmt.Errorf("no account knows the contacts: %w", discussion.ErrNotFound)
	case 1:
		account := involved[0]
		handle, err := account.GetOrCreateDiscussion(ctx, contacts)
		if err != nil {
			return nil, fmt.Errorf("resolving discussion on %s: %w", account.GlobalID(), err)
		}
		return discussion.NewSimple(account, handle, u.root), nil
	}

	meta := u.newMeta()
	for _, contact := range contacts {
		if err := meta.AddParticipant(ctx, contact); err != nil {
			meta.Close()
			return nil, fmt.Errorf("adding %s to meta discussion: %w", contact.ID, err)
		}
	}

	if u.store != nil {
		if err := meta.Persist(ctx, u.store); err != nil {
			meta.Close()
			u.discardRecord(ctx, meta.GlobalID())
			return nil, fmt.Errorf("storing meta discussion: %w", err)
		}
	}

	u.register(meta)

	u.logger.Info("meta discussion created",
		"meta_id", meta.GlobalID(),
		"accounts", len(involved),
		"sub_discussions", len(meta.SubDiscussions()))
	return meta, nil
}

// MetaDiscussions returns the meta-discussions created or restored by this
// user.
func (u *User) MetaDiscussions() []*discussion.Meta {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return slices.Clone(u.metas)
}

// AllDiscussions returns every meta-discussion followed by every simple
// discussion of every account. Simple discussions that are an active
// sub-discussion of a listed meta-discussion are left out.
func (u *User) AllDiscussions(ctx context.Context) ([]discussion.Discussion, error) {
	metas := u.MetaDiscussions()

	var out []discussion.Discussion
	var constituents []*discussion.Simple
	for _, meta := range metas {
		out = append(out, meta)
		constituents = append(constituents, meta.SubDiscussions()...)
	}

	for _, account := range u.Accounts() {
		handles, err := account.Discussions(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing discussions of %s: %w", account.GlobalID(), err)
		}
		for _, handle := range handles {
			simple := discussion.NewSimple(account, handle, u.root)
			if lo.ContainsBy(constituents, simple.IsTheSameAs) {
				continue
			}
			out = append(out, simple)
		}
	}
	return out, nil
}

// LoadMetaDiscussions rebuilds persisted meta-discussions not yet loaded.
// Entries whose account is no longer owned or whose discussion is gone are
// skipped. Returns ErrUnimplemented when the user has no store.
func (u *User) LoadMetaDiscussions(ctx context.Context) ([]*discussion.Meta, error) {
	if u.store == nil {
		return nil, fmt.Errorf("loading meta discussions: %w", discussion.ErrUnimplemented)
	}

	records, err := u.store.ListMetas(ctx, string(u.id))
	if err != nil {
		return nil, fmt.Errorf("listing meta discussions: %w", err)
	}

	var loaded []*discussion.Meta
	for _, rec := range records {
		if u.hasMeta(driver.GlobalID(rec.ID)) {
			continue
		}

		meta, err := u.restore(ctx, rec)
		if err != nil {
			return loaded, err
		}
		u.register(meta)
		loaded = append(loaded, meta)
	}

	u.logger.Info("meta discussions loaded", "count", len(loaded))
	return loaded, nil
}

func (u *User) restore(ctx context.Context, rec *store.MetaRecord) (*discussion.Meta, error) {
	entries, err := u.store.ListEntries(ctx, rec.ID)
	if err != nil {
		return nil, fmt.Errorf("listing entries of %s: %w", rec.ID, err)
	}

	opts := append(u.baseMetaOptions(),
		discussion.WithID(driver.GlobalID(rec.ID)),
		discussion.WithName(rec.Name),
		discussion.WithCreatedAt(rec.CreatedAt),
		discussion.WithPersisted(),
	)
	meta := discussion.NewMeta(u, opts...)

	for _, entry := range entries {
		sub, err := u.resolveEntry(ctx, entry)
		if err != nil {
			u.logger.Warn("skipping unresolvable sub-discussion",
				"meta_id", rec.ID,
				"discussion_id", entry.DiscussionID,
				"account_id", entry.AccountID,
				"error", err)
			continue
		}
		meta.RestoreEntry(sub, entry.AddedAt, entry.RemovedAt)
	}
	return meta, nil
}

func (u *User) resolveEntry(ctx context.Context, entry *store.EntryRecord) (*discussion.Simple, error) {
	account, err := u.Account(driver.GlobalID(entry.AccountID))
	if err != nil {
		return nil, err
	}
	session, err := account.Session(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening session for %s: %w", account.GlobalID(), err)
	}
	handle, err := session.Discussion(ctx, driver.GlobalID(entry.DiscussionID))
	if err != nil {
		return nil, err
	}
	return discussion.NewSimple(account, handle, u.root), nil
}

// ListenAll starts relaying on every meta-discussion, including the ones
// created or loaded later, until ctx ends.
func (u *User) ListenAll(ctx context.Context) error {
	u.mu.Lock()
	u.listenCtx = ctx
	metas := slices.Clone(u.metas)
	u.mu.Unlock()

	var errs []error
	for _, meta := range metas {
		if err := meta.Listen(ctx); err != nil {
			errs = append(errs, fmt.Errorf("listening on %s: %w", meta.GlobalID(), err))
		}
	}
	return errors.Join(errs...)
}

// Close stops every meta-discussion.
func (u *User) Close() {
	for _, meta := range u.MetaDiscussions() {
		meta.Close()
	}
}

// newMeta builds an unrecorded meta-discussion; see Persist.
func (u *User) newMeta() *discussion.Meta {
	opts := append([]discussion.MetaOption{discussion.WithLogger(u.root)}, u.metaOpts...)
	return discussion.NewMeta(u, opts...)
}

func (u *User) baseMetaOptions() []discussion.MetaOption {
	opts := []discussion.MetaOption{discussion.WithLogger(u.root)}
	if u.store != nil {
		opts = append(opts, discussion.WithRecorder(u.store))
	}
	return append(opts, u.metaOpts...)
}

// discardRecord removes whatever a failed Persist left behind.
func (u *User) discardRecord(ctx context.Context, id driver.GlobalID) {
	err := u.store.DeleteMeta(ctx, string(id))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		u.logger.Error("failed to discard partial meta discussion record", "meta_id", id, "error", err)
	}
}

func (u *User) hasMeta(id driver.GlobalID) bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return lo.ContainsBy(u.metas, func(m *discussion.Meta) bool { return m.GlobalID() == id })
}

// register tracks meta, starts its relay when ListenAll is active and
// notifies the register hook.
func (u *User) register(meta *discussion.Meta) {
	u.mu.Lock()
	u.metas = append(u.metas, meta)
	listenCtx := u.listenCtx
	u.mu.Unlock()

	if listenCtx != nil && listenCtx.Err() == nil {
		if err := meta.Listen(listenCtx); err != nil {
			u.logger.Error("failed to start relay", "meta_id", meta.GlobalID(), "error", err)
		}
	}
	if u.onRegister != nil {
		u.onRegister(meta)
	}
}
