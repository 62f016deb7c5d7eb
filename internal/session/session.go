// Package session gives the per-browser session a typed surface. The
// authentication fields the login flow writes (access token, subject
// id, profile data, local user id) only make sense as a group, so they
// are read and written as one Identity value instead of loose keys.
package session

import (
	"fmt"

	"github.com/google/uuid"
)

// Session is the slice of the Fiber session API this package needs.
// *session.Session from the Fiber middleware satisfies it; tests use a
// map-backed fake.
type Session interface {
	Get(key string) interface{}
	Set(key string, value interface{})
	Delete(key string)
	Save() error
}

// Session keys. keyAccessToken doubles as the authentication marker:
// the session is authenticated iff it holds a non-empty access token.
const (
	keyState       = "state"
	keyAccessToken = "access_token"
	keySubjectID   = "gplus_id"
	keyUserID      = "user_id"
	keyDisplayName = "username"
	keyAvatarURL   = "picture"
	keyEmail       = "email"
)

// Identity is the authenticated state of one browser. All fields are
// written together on login and removed together on disconnect.
type Identity struct {
	AccessToken string
	SubjectID   string
	UserID      uint
	DisplayName string
	AvatarURL   string
	Email       string
}

// FromSession reads the identity group out of the session. The second
// return value reports whether the session is authenticated.
func FromSession(s Session) (Identity, bool) {
	token := getString(s, keyAccessToken)
	if token == "" {
		return Identity{}, false
	}
	id := Identity{
		AccessToken: token,
		SubjectID:   getString(s, keySubjectID),
		DisplayName: getString(s, keyDisplayName),
		AvatarURL:   getString(s, keyAvatarURL),
		Email:       getString(s, keyEmail),
	}
	if v, ok := s.Get(keyUserID).(uint); ok {
		id.UserID = v
	}
	return id, true
}

// Save writes every identity field into the session as one group.
func (id Identity) Save(s Session) error {
	s.Set(keyAccessToken, id.AccessToken)
	s.Set(keySubjectID, id.SubjectID)
	s.Set(keyUserID, id.UserID)
	s.Set(keyDisplayName, id.DisplayName)
	s.Set(keyAvatarURL, id.AvatarURL)
	s.Set(keyEmail, id.Email)
	if err := s.Save(); err != nil {
		return fmt.Errorf("failed to save session identity: %w", err)
	}
	return nil
}

// Clear removes the whole identity group. Deleting an absent key is a
// no-op, so a half-written session clears cleanly too.
func Clear(s Session) error {
	for _, key := range []string{keyAccessToken, keySubjectID, keyUserID, keyDisplayName, keyAvatarURL, keyEmail} {
		s.Delete(key)
	}
	if err := s.Save(); err != nil {
		return fmt.Errorf("failed to clear session identity: %w", err)
	}
	return nil
}

// StateToken returns the anti-forgery token last issued to this
// session, or "" if none has been issued.
func StateToken(s Session) string {
	return getString(s, keyState)
}

// IssueStateToken mints a fresh anti-forgery token, stores it in the
// session and returns it for embedding in the page.
func IssueStateToken(s Session) (string, error) {
	token := uuid.New().String()
	s.Set(keyState, token)
	if err := s.Save(); err != nil {
		return "", fmt.Errorf("failed to save state token: %w", err)
	}
	return token, nil
}

func getString(s Session, key string) string {
	v, _ := s.Get(key).(string)
	return v
}
