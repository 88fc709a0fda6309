package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"pharmacy/internal/domain"
	"pharmacy/internal/identity"
	"pharmacy/internal/repository"
	"pharmacy/internal/store"
)

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"displayName" validate:"required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionService signs users in and out of a workspace and keeps their
// profile document in sync with the session state.
type SessionService struct {
	idp      identity.Provider
	profiles repository.ProfileRepository
	now      func() time.Time
}

func NewSessionService(idp identity.Provider, profiles repository.ProfileRepository) *SessionService {
	return &SessionService{idp: idp, profiles: profiles, now: time.Now}
}

func (s *SessionService) Register(ctx context.Context, ws *Workspace, in RegisterInput) (identity.Session, error) {
	const op = "SessionService.Register"
	if err := validateStruct(in); err != nil {
		return identity.Session{}, err
	}
	sess, err := s.idp.Register(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		return identity.Session{}, s.fail(ws, "Registration failed", err)
	}
	now := s.now().UTC()
	profile := domain.UserProfile{
		UID:         sess.User.UID,
		Email:       sess.User.Email,
		DisplayName: sess.User.DisplayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.profiles.PutProfile(ctx, profile); err != nil {
		return identity.Session{}, s.fail(ws, "Registration failed", &domain.PersistenceError{Op: op, Err: err})
	}
	ws.Session.Dispatch(store.SetUser{User: sess.User, Profile: &profile, Token: sess.Token})
	ws.UI.Notify(store.ToastSuccess, "Account created", "Welcome, "+sess.User.DisplayName)
	return sess, nil
}

func (s *SessionService) Login(ctx context.Context, ws *Workspace, in LoginInput) (identity.Session, error) {
	const op = "SessionService.Login"
	if err := validateStruct(in); err != nil {
		return identity.Session{}, err
	}
	sess, err := s.idp.Login(ctx, in.Email, in.Password)
	if err != nil {
		return identity.Session{}, s.fail(ws, "Sign in failed", err)
	}
	profile, err := s.profiles.GetProfile(ctx, sess.User.UID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		profile = nil
	case err != nil:
		return identity.Session{}, s.fail(ws, "Sign in failed", &domain.PersistenceError{Op: op, Err: err})
	}
	ws.Session.Dispatch(store.SetUser{User: sess.User, Profile: profile, Token: sess.Token})
	return sess, nil
}

// Adopt signs ws in with an already issued token.
func (s *SessionService) Adopt(ctx context.Context, ws *Workspace, token string) (domain.User, error) {
	u, err := s.idp.Verify(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	if ws.UserID() == u.UID {
		return u, nil
	}
	profile, err := s.profiles.GetProfile(ctx, u.UID)
	if err != nil {
		profile = nil
	}
	ws.Session.Dispatch(store.SetUser{User: u, Profile: profile, Token: token})
	return u, nil
}

// SignOut revokes the user's tokens and clears the session. Cart and
// wishlist are kept.
func (s *SessionService) SignOut(ctx context.Context, ws *Workspace) error {
	uid := ws.UserID()
	if uid == "" {
		return domain.ErrAuthRequired
	}
	if err := s.idp.SignOut(ctx, uid); err != nil {
		return s.fail(ws, "Sign out failed", err)
	}
	ws.Session.Dispatch(store.ClearUser{})
	return nil
}

func (s *SessionService) Profile(ctx context.Context, ws *Workspace) (*domain.UserProfile, error) {
	const op = "SessionService.Profile"
	uid := ws.UserID()
	if uid == "" {
		return nil, domain.ErrAuthRequired
	}
	p, err := s.profiles.GetProfile(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.NotFoundError{Kind: "profile", ID: uid}
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: op, Err: err}
	}
	ws.Session.Dispatch(store.SetProfile{Profile: *p})
	return p, nil
}

// UpdateProfile merges u into the stored profile. Text fields are trimmed and
// the phone number keeps its digits only before validation.
func (s *SessionService) UpdateProfile(ctx context.Context, ws *Workspace, u domain.ProfileUpdate) (*domain.UserProfile, error) {
	const op = "SessionService.UpdateProfile"
	uid := ws.UserID()
	if uid == "" {
		return nil, domain.ErrAuthRequired
	}
	normalizeProfile(&u)
	if err := validateStruct(u); err != nil {
		return nil, err
	}
	p, err := s.profiles.MergeProfile(ctx, uid, u, s.now().UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &domain.NotFoundError{Kind: "profile", ID: uid}
	}
	if err != nil {
		return nil, s.fail(ws, "Profile update failed", &domain.PersistenceError{Op: op, Err: err})
	}
	ws.Session.Dispatch(store.SetProfile{Profile: *p})
	ws.UI.Notify(store.ToastSuccess, "Profile updated", "")
	return p, nil
}

func (s *SessionService) fail(ws *Workspace, title string, err error) error {
	ws.Session.Dispatch(store.SessionFailed{Err: err})
	ws.UI.Notify(store.ToastError, title, err.Error())
	return err
}

func normalizeProfile(u *domain.ProfileUpdate) {
	for _, f := range []*string{u.DisplayName, u.FirstName, u.LastName, u.Address, u.City, u.State, u.PinCode} {
		if f != nil {
			*f = strings.TrimSpace(*f)
		}
	}
	// a phone with no digits at all stays as typed and fails validation
	if u.PhoneNumber != nil {
		raw := strings.TrimSpace(*u.PhoneNumber)
		if d := digitsOnly(raw); d != "" || raw == "" {
			raw = d
		}
		*u.PhoneNumber = raw
	}
}
