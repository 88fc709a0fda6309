package store

import "pharmacy/internal/domain"

// SessionState mirrors the identity provider's current user.
type SessionState struct {
	User    *domain.User        `json:"user"`
	Profile *domain.UserProfile `json:"profile"`
	Token   string              `json:"-"`
	Error   string              `json:"error,omitempty"`
}

func (s SessionState) SignedIn() bool { return s.User != nil }

func (s SessionState) clone() SessionState {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.Profile != nil {
		p := *s.Profile
		s.Profile = &p
	}
	return s
}

type SessionAction interface {
	reduceSession(SessionState) SessionState
}

type SetUser struct {
	User    domain.User
	Profile *domain.UserProfile
	Token   string
}

type ClearUser struct{}

type SetProfile struct{ Profile domain.UserProfile }

type SessionFailed struct{ Err error }

func (a SetUser) reduceSession(SessionState) SessionState {
	u := a.User
	return SessionState{User: &u, Profile: a.Profile, Token: a.Token}.clone()
}

func (ClearUser) reduceSession(SessionState) SessionState { return SessionState{} }

func (a SetProfile) reduceSession(s SessionState) SessionState {
	p := a.Profile
	s.Profile = &p
	s.Error = ""
	return s
}

func (a SessionFailed) reduceSession(s SessionState) SessionState {
	if a.Err != nil {
		s.Error = a.Err.Error()
	}
	return s
}

type Session struct {
	c container[SessionState]
}

func NewSession() *Session { return &Session{} }

func (s *Session) Dispatch(a SessionAction) SessionState {
	return s.c.apply(a.reduceSession).clone()
}

func (s *Session) Snapshot() SessionState { return s.c.get().clone() }
