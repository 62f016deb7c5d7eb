package services

import (
	"context"
	"errors"
	"log"
	"net/http"

	"catalog/internal/models"
	"catalog/internal/repositories"
	"catalog/internal/session"
	"catalog/pkg/googleoauth"
)

// ServiceName identifies the external auth provider in user rows.
const ServiceName = "google"

// Response messages for the connect/disconnect endpoints. Each is
// returned to the browser as a JSON-encoded string.
const (
	MsgInvalidState     = "Invalid state parameter."
	MsgExchangeFailed   = "Failed to upgrade the authorization code."
	MsgSubjectMismatch  = "Token's user ID doesn't match given user ID."
	MsgClientIDMismatch = "Token's client ID does not match app's."
	MsgAlreadyConnected = "Current user is already connected."
	MsgConnectSuccess   = "Success."
	MsgNotConnected     = "Current user not connected."
	MsgDisconnected     = "Successfully disconnected."
	MsgRevokeFailed     = "Failed to revoke token for given user."
	MsgProfileFailed    = "Failed to fetch user info from provider."
	MsgUserStoreFailed  = "Failed to record user account."
	MsgSessionFailed    = "Failed to update session."
)

// Provider is the slice of the googleoauth client the service uses,
// split out so tests can substitute a mock.
type Provider interface {
	ClientID() string
	Exchange(ctx context.Context, code string) (*googleoauth.Token, error)
	TokenInfo(ctx context.Context, accessToken string) (*googleoauth.TokenInfo, error)
	UserInfo(ctx context.Context, accessToken string) (*googleoauth.Profile, error)
	Revoke(ctx context.Context, accessToken string) error
}

// AuthService drives the login state machine: anonymous sessions pick
// up a state token on page load, Connect verifies an authorization
// code and fills the session, Disconnect revokes the token and empties
// it again.
type AuthService struct {
	provider Provider
	userRepo repositories.UserRepository
}

// NewAuthService creates a new AuthService.
func NewAuthService(provider Provider, userRepo repositories.UserRepository) *AuthService {
	return &AuthService{
		provider: provider,
		userRepo: userRepo,
	}
}

// Connect validates a posted authorization code and, on success,
// writes the full identity group into the session and resolves a local
// user record. It returns the HTTP status and message for the browser;
// on any rejection the session is left untouched.
func (s *AuthService) Connect(ctx context.Context, sess session.Session, state, code string) (int, string) {
	// CSRF defense: the state must exactly match the token last issued
	// to this session on page load.
	if state == "" || state != session.StateToken(sess) {
		return http.StatusUnauthorized, MsgInvalidState
	}

	tok, err := s.provider.Exchange(ctx, code)
	if err != nil {
		log.Printf("Authorization code exchange failed: %v", err)
		return http.StatusUnauthorized, MsgExchangeFailed
	}

	info, err := s.provider.TokenInfo(ctx, tok.AccessToken)
	if err != nil {
		log.Printf("Token introspection failed: %v", err)
		return http.StatusUnauthorized, MsgExchangeFailed
	}
	if info.Error != "" {
		// Pass the provider's own error text through.
		return http.StatusUnauthorized, info.Error
	}

	// The introspected token must belong to the same subject as the
	// id_token from the exchange (token substitution) and must have
	// been issued to this application (confused-deployment reuse).
	if info.UserID != tok.SubjectID {
		return http.StatusUnauthorized, MsgSubjectMismatch
	}
	if info.IssuedTo != s.provider.ClientID() {
		return http.StatusUnauthorized, MsgClientIDMismatch
	}

	if current, ok := session.FromSession(sess); ok && current.SubjectID == tok.SubjectID {
		return http.StatusOK, MsgAlreadyConnected
	}

	profile, err := s.provider.UserInfo(ctx, tok.AccessToken)
	if err != nil {
		log.Printf("User info fetch failed: %v", err)
		return http.StatusUnauthorized, MsgProfileFailed
	}

	user, err := s.userRepo.GetByEmailAndService(profile.Email, ServiceName)
	if errors.Is(err, repositories.ErrNotFound) {
		user = &models.User{Email: profile.Email, Service: ServiceName}
		if err := s.userRepo.Create(user); err != nil {
			log.Printf("Failed to create user for %s: %v", profile.Email, err)
			return http.StatusInternalServerError, MsgUserStoreFailed
		}
	} else if err != nil {
		log.Printf("User lookup failed for %s: %v", profile.Email, err)
		return http.StatusInternalServerError, MsgUserStoreFailed
	}

	identity := session.Identity{
		AccessToken: tok.AccessToken,
		SubjectID:   tok.SubjectID,
		UserID:      user.ID,
		DisplayName: profile.Name,
		AvatarURL:   profile.Picture,
		Email:       profile.Email,
	}
	if err := identity.Save(sess); err != nil {
		log.Printf("Failed to save session identity: %v", err)
		return http.StatusInternalServerError, MsgSessionFailed
	}

	return http.StatusOK, MsgConnectSuccess
}

// Disconnect revokes the session's access token at the provider and
// clears the identity group. A session without an access token gets
// 401 rather than a second revoke attempt; a failed revoke leaves the
// session untouched.
func (s *AuthService) Disconnect(ctx context.Context, sess session.Session) (int, string) {
	identity, ok := session.FromSession(sess)
	if !ok {
		return http.StatusUnauthorized, MsgNotConnected
	}

	if err := s.provider.Revoke(ctx, identity.AccessToken); err != nil {
		log.Printf("Token revocation failed: %v", err)
		return http.StatusBadRequest, MsgRevokeFailed
	}

	if err := session.Clear(sess); err != nil {
		log.Printf("Failed to clear session identity: %v", err)
		return http.StatusInternalServerError, MsgSessionFailed
	}

	return http.StatusOK, MsgDisconnected
}
