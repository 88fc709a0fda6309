package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pharmacy/internal/domain"
	"pharmacy/internal/identity"
	"pharmacy/internal/repository"
	"pharmacy/internal/store"
)

// Workspace is one client's set of state containers.
type Workspace struct {
	ID       string
	Catalog  *store.Catalog
	Cart     *store.Cart
	Wishlist *store.Wishlist
	UI       *store.UIBus
	Session  *store.Session
}

func newWorkspace(id string) *Workspace {
	return &Workspace{
		ID:       id,
		Catalog:  store.NewCatalog(),
		Cart:     store.NewCart(),
		Wishlist: store.NewWishlist(),
		UI:       store.NewUIBus(),
		Session:  store.NewSession(),
	}
}

// UserID returns the signed-in uid or "".
func (w *Workspace) UserID() string {
	if s := w.Session.Snapshot(); s.User != nil {
		return s.User.UID
	}
	return ""
}

type persistedAuth struct {
	User    *domain.User        `json:"user"`
	Profile *domain.UserProfile `json:"profile,omitempty"`
	Token   string              `json:"token"`
}

const (
	sliceAuth     = "auth"
	sliceCart     = "cart"
	sliceWishlist = "wishlist"
)

func stateKey(id, slice string) string { return "ws:" + id + ":" + slice }

// Workspaces opens workspaces on first use and keeps them in memory.
// The auth, cart and wishlist slices are restored from and flushed to the
// state store; the catalog and UI signals always start fresh.
//
// At most maxOpen workspaces stay open. Workspaces idle for longer than
// idleTTL, or the least recently used ones past the cap, are flushed and
// dropped; the next Get restores them from the state store.
type Workspaces struct {
	state   repository.StateStore
	catalog *CatalogService
	idp     identity.Provider
	maxOpen int
	idleTTL time.Duration
	now     func() time.Time

	mu   sync.Mutex
	open map[string]*openWorkspace
}

type openWorkspace struct {
	ws       *Workspace
	lastUsed time.Time
}

const (
	DefaultMaxOpenWorkspaces = 10000
	DefaultWorkspaceIdleTTL  = 30 * time.Minute
)

type WorkspacesOption func(*Workspaces)

// WithMaxOpen caps the number of open workspaces. n <= 0 keeps the default.
func WithMaxOpen(n int) WorkspacesOption {
	return func(w *Workspaces) {
		if n > 0 {
			w.maxOpen = n
		}
	}
}

// WithIdleTTL sets how long an unused workspace stays open. d <= 0 keeps the default.
func WithIdleTTL(d time.Duration) WorkspacesOption {
	return func(w *Workspaces) {
		if d > 0 {
			w.idleTTL = d
		}
	}
}

func WithWorkspaceClock(now func() time.Time) WorkspacesOption {
	return func(w *Workspaces) { w.now = now }
}

func NewWorkspaces(state repository.StateStore, catalog *CatalogService, idp identity.Provider, opts ...WorkspacesOption) *Workspaces {
	w := &Workspaces{
		state:   state,
		catalog: catalog,
		idp:     idp,
		maxOpen: DefaultMaxOpenWorkspaces,
		idleTTL: DefaultWorkspaceIdleTTL,
		now:     time.Now,
		open:    make(map[string]*openWorkspace),
	}
	for _, opt := range opts {
		opt(w)
	}
	if idp != nil {
		idp.Subscribe(w.onPresence)
	}
	return w
}

// Get returns the open workspace for id, restoring it if needed. A catalog
// whose last load failed is loaded again.
func (w *Workspaces) Get(ctx context.Context, id string) (*Workspace, error) {
	if id == "" {
		return nil, &domain.ValidationError{Fields: map[string]string{"sessionId": "is required"}}
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	if o, ok := w.open[id]; ok {
		o.lastUsed = now
		if o.ws.Catalog.Snapshot().Error != "" {
			w.catalog.Hydrate(ctx, o.ws.Catalog)
		}
		return o.ws, nil
	}
	ws := newWorkspace(id)
	if err := w.restore(ctx, ws); err != nil {
		return nil, err
	}
	w.catalog.Hydrate(ctx, ws.Catalog)
	w.evictLocked(ctx, now)
	w.open[id] = &openWorkspace{ws: ws, lastUsed: now}
	return ws, nil
}

// Len reports how many workspaces are open.
func (w *Workspaces) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.open)
}

// Sweep flushes and drops workspaces that have been idle too long.
func (w *Workspaces) Sweep(ctx context.Context) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	before := len(w.open)
	w.dropIdleLocked(ctx, w.now())
	return before - len(w.open)
}

func (w *Workspaces) dropIdleLocked(ctx context.Context, now time.Time) {
	for id, o := range w.open {
		if now.Sub(o.lastUsed) > w.idleTTL {
			w.dropLocked(ctx, id, o)
		}
	}
}

// evictLocked makes room for one more workspace. A workspace that cannot be
// flushed stays open.
func (w *Workspaces) evictLocked(ctx context.Context, now time.Time) {
	w.dropIdleLocked(ctx, now)
	for len(w.open) >= w.maxOpen {
		var (
			oldestID string
			oldest   *openWorkspace
		)
		for id, o := range w.open {
			if oldest == nil || o.lastUsed.Before(oldest.lastUsed) {
				oldestID, oldest = id, o
			}
		}
		if oldest == nil || !w.dropLocked(ctx, oldestID, oldest) {
			return
		}
	}
}

func (w *Workspaces) dropLocked(ctx context.Context, id string, o *openWorkspace) bool {
	if err := w.Flush(ctx, o.ws); err != nil {
		slog.Error("failed to flush evicted workspace", "op", "Workspaces.evict", "workspace", id, "err", err)
		return false
	}
	delete(w.open, id)
	slog.Debug("workspace evicted", "workspace", id)
	return true
}

func (w *Workspaces) restore(ctx context.Context, ws *Workspace) error {
	const op = "Workspaces.restore"

	var auth persistedAuth
	ok, err := w.load(ctx, stateKey(ws.ID, sliceAuth), &auth)
	if err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if ok && auth.User != nil {
		// tokens may have been revoked while the workspace was closed
		if u, err := w.verify(ctx, auth.Token); err == nil && u.UID == auth.User.UID {
			ws.Session.Dispatch(store.SetUser{User: *auth.User, Profile: auth.Profile, Token: auth.Token})
		} else {
			slog.Info("dropping stale session", "op", op, "workspace", ws.ID)
		}
	}

	var lines []domain.CartLine
	if ok, err = w.load(ctx, stateKey(ws.ID, sliceCart), &lines); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	} else if ok {
		ws.Cart.Dispatch(store.RestoreCart{Lines: lines})
	}

	var items []domain.WishlistItem
	if ok, err = w.load(ctx, stateKey(ws.ID, sliceWishlist), &items); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	} else if ok {
		ws.Wishlist.Dispatch(store.RestoreWishlist{Items: items})
	}
	return nil
}

func (w *Workspaces) verify(ctx context.Context, token string) (domain.User, error) {
	if w.idp == nil || token == "" {
		return domain.User{}, domain.ErrAuthRequired
	}
	return w.idp.Verify(ctx, token)
}

func (w *Workspaces) load(ctx context.Context, key string, v any) (bool, error) {
	b, err := w.state.GetState(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, v); err != nil {
		// a corrupt slice is discarded rather than blocking the workspace
		slog.Warn("discarding unreadable state", "key", key, "err", err)
		return false, nil
	}
	return true, nil
}

// Flush writes the persisted slices of ws.
func (w *Workspaces) Flush(ctx context.Context, ws *Workspace) error {
	const op = "Workspaces.Flush"

	sess := ws.Session.Snapshot()
	if sess.User != nil {
		auth := persistedAuth{User: sess.User, Profile: sess.Profile, Token: sess.Token}
		if err := w.save(ctx, stateKey(ws.ID, sliceAuth), auth); err != nil {
			return &domain.PersistenceError{Op: op, Err: err}
		}
	} else if err := w.state.DeleteState(ctx, stateKey(ws.ID, sliceAuth)); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return &domain.PersistenceError{Op: op, Err: err}
	}

	if err := w.save(ctx, stateKey(ws.ID, sliceCart), ws.Cart.Snapshot().Lines); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	if err := w.save(ctx, stateKey(ws.ID, sliceWishlist), ws.Wishlist.Snapshot().Items); err != nil {
		return &domain.PersistenceError{Op: op, Err: err}
	}
	return nil
}

func (w *Workspaces) save(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return w.state.PutState(ctx, key, b)
}

// onPresence clears every open workspace of a user who signed out elsewhere.
func (w *Workspaces) onPresence(uid string, u *domain.User) {
	if u != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, o := range w.open {
		if o.ws.UserID() == uid {
			o.ws.Session.Dispatch(store.ClearUser{})
		}
	}
}
