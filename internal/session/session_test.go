package session_test

import (
	"errors"
	"testing"

	"catalog/internal/session"

	"github.com/stretchr/testify/assert"
)

// fakeSession is a map-backed stand-in for the Fiber session.
type fakeSession struct {
	values   map[string]interface{}
	saves    int
	failSave bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{values: make(map[string]interface{})}
}

func (f *fakeSession) Get(key string) interface{} {
	return f.values[key]
}

func (f *fakeSession) Set(key string, value interface{}) {
	f.values[key] = value
}

func (f *fakeSession) Delete(key string) {
	delete(f.values, key)
}

func (f *fakeSession) Save() error {
	if f.failSave {
		return errors.New("storage unavailable")
	}
	f.saves++
	return nil
}

func TestFromSessionAnonymous(t *testing.T) {
	sess := newFakeSession()

	_, ok := session.FromSession(sess)
	assert.False(t, ok)
}

func TestSaveAndFromSession(t *testing.T) {
	sess := newFakeSession()
	identity := session.Identity{
		AccessToken: "tok-1",
		SubjectID:   "sub-1",
		UserID:      7,
		DisplayName: "Test User",
		AvatarURL:   "https://example.com/avatar.png",
		Email:       "user@example.com",
	}

	err := identity.Save(sess)
	assert.NoError(t, err)
	assert.Equal(t, 1, sess.saves)

	got, ok := session.FromSession(sess)
	assert.True(t, ok)
	assert.Equal(t, identity, got)
}

func TestClearRemovesWholeGroup(t *testing.T) {
	sess := newFakeSession()
	identity := session.Identity{AccessToken: "tok-1", SubjectID: "sub-1", UserID: 7}
	assert.NoError(t, identity.Save(sess))

	err := session.Clear(sess)
	assert.NoError(t, err)

	_, ok := session.FromSession(sess)
	assert.False(t, ok)
	assert.Nil(t, sess.Get("gplus_id"))
	assert.Nil(t, sess.Get("user_id"))
}

func TestClearToleratesPartialState(t *testing.T) {
	// A session holding only some of the group (the corruption the
	// handlers do not otherwise defend against) still clears cleanly.
	sess := newFakeSession()
	sess.Set("access_token", "tok-1")

	err := session.Clear(sess)
	assert.NoError(t, err)

	_, ok := session.FromSession(sess)
	assert.False(t, ok)
}

func TestClearIsIdempotent(t *testing.T) {
	sess := newFakeSession()
	assert.NoError(t, session.Clear(sess))
	assert.NoError(t, session.Clear(sess))
}

func TestIssueStateToken(t *testing.T) {
	sess := newFakeSession()

	first, err := session.IssueStateToken(sess)
	assert.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, session.StateToken(sess))

	// Each page load gets a fresh token.
	second, err := session.IssueStateToken(sess)
	assert.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, session.StateToken(sess))
}

func TestIssueStateTokenSaveFailure(t *testing.T) {
	sess := newFakeSession()
	sess.failSave = true

	_, err := session.IssueStateToken(sess)
	assert.Error(t, err)
}
