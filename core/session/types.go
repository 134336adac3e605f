package session

import (
	"errors"
	"time"
)

var ErrNotHydrated = errors.New("session store not hydrated")

type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name,omitempty"`
	LastName    string   `json:"last_name,omitempty"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	Status      string   `json:"status,omitempty"`
}

func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type Session struct {
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	User      *User      `json:"user"`
}

// State is the persisted shape: {tokens, session}.
type State struct {
	Tokens  *Tokens  `json:"tokens"`
	Session *Session `json:"session"`
}

func (s State) clone() State {
	out := State{}
	if s.Tokens != nil {
		t := *s.Tokens
		out.Tokens = &t
	}
	if s.Session != nil {
		out.Session = s.Session.Clone()
	}
	return out
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := &Session{}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		out.ExpiresAt = &t
	}
	if s.User != nil {
		u := *s.User
		u.Permissions = append([]string(nil), s.User.Permissions...)
		out.User = &u
	}
	return out
}
