package repository

import (
	"context"
	"errors"
	"time"

	"pharmacy/internal/domain"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("duplicate")

// MedicineSource yields the full catalog in display order.
type MedicineSource interface {
	ListMedicines(ctx context.Context) ([]domain.Medicine, error)
}

// OrderRepository stores order documents. CreateOrder assigns o.ID.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	// ListOrdersByUser returns orders newest first.
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	// UpdateOrder merges the patch into the stored document and returns the result.
	UpdateOrder(ctx context.Context, id string, patch domain.OrderPatch) (*domain.Order, error)
}

// ProfileRepository stores user profile documents keyed by uid.
type ProfileRepository interface {
	PutProfile(ctx context.Context, p domain.UserProfile) error
	GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
	MergeProfile(ctx context.Context, uid string, u domain.ProfileUpdate, at time.Time) (*domain.UserProfile, error)
}

// DocumentStore is the remote document collaborator: orders and profiles.
type DocumentStore interface {
	OrderRepository
	ProfileRepository
}

// Account is a credential record kept by the local identity provider.
type Account struct {
	UID          string
	Email        string
	DisplayName  string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

// AccountRepository stores credentials. CreateAccount fails with ErrDuplicate on a taken email.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a Account) error
	GetAccountByEmail(ctx context.Context, email string) (*Account, error)
	GetAccountByUID(ctx context.Context, uid string) (*Account, error)
	BumpTokenVersion(ctx context.Context, uid string) (int, error)
}

// StateStore is a key/value store for persisted workspace slices.
type StateStore interface {
	GetState(ctx context.Context, key string) ([]byte, error)
	PutState(ctx context.Context, key string, value []byte) error
	DeleteState(ctx context.Context, key string) error
}

// TxManager runs fn atomically with respect to other writers of the same store.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
