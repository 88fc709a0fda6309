// Package identity provides the sign-in collaborator used by the session adapter.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pharmacy/internal/domain"
	"pharmacy/internal/repository"
)

// Listener receives presence changes. A nil user means signed out.
type Listener func(uid string, u *domain.User)

// Provider is the identity collaborator.
type Provider interface {
	Register(ctx context.Context, email, password, displayName string) (Session, error)
	Login(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, uid string) error
	Verify(ctx context.Context, token string) (domain.User, error)
	Subscribe(l Listener) (unsubscribe func())
}

// Session is a signed-in user plus the bearer token proving it.
type Session struct {
	User      domain.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

type Option func(*LocalProvider)

func WithClock(now func() time.Time) Option { return func(p *LocalProvider) { p.now = now } }

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) Option { return func(p *LocalProvider) { p.cost = cost } }

// LocalProvider keeps credentials in an AccountRepository and issues HS256 tokens.
// SignOut revokes every token issued so far by bumping the account's token version.
type LocalProvider struct {
	accounts repository.AccountRepository
	secret   []byte
	ttl      time.Duration
	cost     int
	now      func() time.Time

	mu        sync.RWMutex
	nextSub   int
	listeners map[int]Listener
}

func NewLocalProvider(accounts repository.AccountRepository, secret string, ttl time.Duration, opts ...Option) *LocalProvider {
	p := &LocalProvider{
		accounts:  accounts,
		secret:    []byte(secret),
		ttl:       ttl,
		cost:      bcrypt.DefaultCost,
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ Provider = (*LocalProvider)(nil)

func (p *LocalProvider) Register(ctx context.Context, email, password, displayName string) (Session, error) {
	const op = "LocalProvider.Register"
	email = strings.TrimSpace(email)
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return Session{}, fmt.Errorf("%s: %w", op, err)
	}
	acc := repository.Account{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    p.now().UTC(),
	}
	if err := p.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return Session{}, domain.ErrEmailTaken
		}
		return Session{}, &domain.PersistenceError{Op: op, Err: err}
	}
	return p.open(acc)
}

func (p *LocalProvider) Login(ctx context.Context, email, password string) (Session, error) {
	const op = "LocalProvider.Login"
	acc, err := p.accounts.GetAccountByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, repository.ErrNotFound) {
		return Session{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, &domain.PersistenceError{Op: op, Err: err}
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return Session{}, domain.ErrInvalidCredentials
	}
	return p.open(*acc)
}

func (p *LocalProvider) SignOut(ctx context.Context, uid string) error {
	const op = "LocalProvider.SignOut"
	if _, err := p.accounts.BumpTokenVersion(ctx, uid); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &domain.NotFoundError{Kind: "user", ID: uid}
		}
		return &domain.PersistenceError{Op: op, Err: err}
	}
	p.emit(uid, nil)
	return nil
}

// Verify accepts only unexpired tokens whose version matches the account's current one.
func (p *LocalProvider) Verify(ctx context.Context, raw string) (domain.User, error) {
	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return domain.User{}, domain.ErrAuthRequired
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return domain.User{}, domain.ErrAuthRequired
	}
	uid, _ := claims["sub"].(string)
	tv, _ := claims["tv"].(float64)
	if uid == "" {
		return domain.User{}, domain.ErrAuthRequired
	}

	acc, err := p.accounts.GetAccountByUID(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.User{}, domain.ErrAuthRequired
	}
	if err != nil {
		return domain.User{}, &domain.PersistenceError{Op: "LocalProvider.Verify", Err: err}
	}
	if int(tv) != acc.TokenVersion {
		return domain.User{}, domain.ErrAuthRequired
	}
	return userOf(*acc), nil
}

func (p *LocalProvider) Subscribe(l Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.listeners[id] = l
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners, id)
	}
}

func (p *LocalProvider) emit(uid string, u *domain.User) {
	p.mu.RLock()
	ls := make([]Listener, 0, len(p.listeners))
	for _, l := range p.listeners {
		ls = append(ls, l)
	}
	p.mu.RUnlock()
	for _, l := range ls {
		l(uid, u)
	}
}

func (p *LocalProvider) open(acc repository.Account) (Session, error) {
	now := p.now()
	exp := now.Add(p.ttl)
	claims := jwt.MapClaims{
		"sub":   acc.UID,
		"email": acc.Email,
		"tv":    acc.TokenVersion,
		"iat":   now.Unix(),
		"exp":   exp.Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	u := userOf(acc)
	p.emit(acc.UID, &u)
	return Session{User: u, Token: signed, ExpiresAt: exp}, nil
}

func userOf(acc repository.Account) domain.User {
	return domain.User{UID: acc.UID, Email: acc.Email, DisplayName: acc.DisplayName}
}
