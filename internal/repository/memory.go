package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"pharmacy/internal/domain"
)

type storedOrder struct {
	seq   int64
	order domain.Order
}

// MemoryStore keeps every document in process memory. It backs the whole
// service when no external storage is configured, and is the fake used in tests.
type MemoryStore struct {
	mu          sync.RWMutex
	nextOrderID int64
	medicines   []domain.Medicine
	ordersByID  map[string]storedOrder
	profiles    map[string]domain.UserProfile
	accounts    map[string]Account
	uidByEmail  map[string]string
	state       map[string][]byte
}

func NewMemoryStore(medicines ...domain.Medicine) *MemoryStore {
	return &MemoryStore{
		nextOrderID: 1,
		medicines:   slices.Clone(medicines),
		ordersByID:  make(map[string]storedOrder),
		profiles:    make(map[string]domain.UserProfile),
		accounts:    make(map[string]Account),
		uidByEmail:  make(map[string]string),
		state:       make(map[string][]byte),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

var (
	_ MedicineSource    = (*MemoryStore)(nil)
	_ DocumentStore     = (*MemoryStore)(nil)
	_ AccountRepository = (*MemoryStore)(nil)
	_ StateStore        = (*MemoryStore)(nil)
)

func (m *MemoryStore) ListMedicines(ctx context.Context) ([]domain.Medicine, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	return slices.Clone(m.medicines), nil
}

// ReplaceMedicines swaps the catalog served by ListMedicines.
func (m *MemoryStore) ReplaceMedicines(ctx context.Context, ms []domain.Medicine) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.medicines = slices.Clone(ms)
}

// Orders

func (m *MemoryStore) CreateOrder(ctx context.Context, o *domain.Order) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	seq := m.nextOrderID
	m.nextOrderID++
	o.ID = fmt.Sprintf("ORD-%06d", seq)
	m.ordersByID[o.ID] = storedOrder{seq: seq, order: o.Clone()}
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	so, ok := m.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := so.order.Clone()
	return &cp, nil
}

func (m *MemoryStore) ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	found := make([]storedOrder, 0)
	for _, so := range m.ordersByID {
		if so.order.UserID == userID {
			found = append(found, so)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		a, b := found[i], found[j]
		if !a.order.CreatedAt.Equal(b.order.CreatedAt) {
			return a.order.CreatedAt.After(b.order.CreatedAt)
		}
		return a.seq > b.seq
	})
	out := make([]domain.Order, 0, len(found))
	for _, so := range found {
		out = append(out, so.order.Clone())
	}
	return out, nil
}

func (m *MemoryStore) UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	so, ok := m.ordersByID[id]
	if !ok {
		return nil, ErrNotFound
	}
	patch.ApplyTo(&so.order)
	m.ordersByID[id] = so
	cp := so.order.Clone()
	return &cp, nil
}

// Profiles

func (m *MemoryStore) PutProfile(ctx context.Context, p domain.UserProfile) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.profiles[p.UID] = p
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	p, ok := m.profiles[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// MergeProfile creates the document when it does not exist yet.
func (m *MemoryStore) MergeProfile(ctx context.Context, uid string, u domain.ProfileUpdate, at time.Time) (*domain.UserProfile, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	p, ok := m.profiles[uid]
	if !ok {
		p = domain.UserProfile{UID: uid, CreatedAt: at}
	}
	u.ApplyTo(&p)
	p.UpdatedAt = at
	m.profiles[uid] = p
	return &p, nil
}

// Accounts

func (m *MemoryStore) CreateAccount(ctx context.Context, a Account) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	email := strings.ToLower(a.Email)
	if _, taken := m.uidByEmail[email]; taken {
		return ErrDuplicate
	}
	m.accounts[a.UID] = a
	m.uidByEmail[email] = a.UID
	return nil
}

func (m *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	uid, ok := m.uidByEmail[strings.ToLower(email)]
	if !ok {
		return nil, ErrNotFound
	}
	a := m.accounts[uid]
	return &a, nil
}

func (m *MemoryStore) GetAccountByUID(ctx context.Context, uid string) (*Account, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	a, ok := m.accounts[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *MemoryStore) BumpTokenVersion(ctx context.Context, uid string) (int, error) {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	a, ok := m.accounts[uid]
	if !ok {
		return 0, ErrNotFound
	}
	a.TokenVersion++
	m.accounts[uid] = a
	return a.TokenVersion, nil
}

// Workspace state

func (m *MemoryStore) GetState(ctx context.Context, key string) ([]byte, error) {
	m.rlock(ctx)
	defer m.runlock(ctx)
	v, ok := m.state[key]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *MemoryStore) PutState(ctx context.Context, key string, value []byte) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	m.state[key] = slices.Clone(value)
	return nil
}

func (m *MemoryStore) DeleteState(ctx context.Context, key string) error {
	m.wlock(ctx)
	defer m.wunlock(ctx)
	delete(m.state, key)
	return nil
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// repositories skip their own locks while the context carries txKey
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	ctx = context.WithValue(ctx, txKey{}, true)
	return fn(ctx)
}
