package service

import (
	"context"
	"strings"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/models"
	"venuepark/internal/repository"

	"github.com/rs/zerolog"
)

// TokenIssuer signs session tokens for a caller.
type TokenIssuer interface {
	Issue(userID string) (token string, expiresAt time.Time, err error)
}

// IdentityVerifier resolves a platform-signed identity assertion into the
// caller id it vouches for.
type IdentityVerifier interface {
	VerifyIdentity(assertion string) (userID string, err error)
}

// LoginResult is returned by Login.
type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"userInfo"`
}

// UserService is the directory's login and profile surface.
type UserService struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	identities IdentityVerifier
	deps       Deps
	logger     zerolog.Logger
}

func NewUserService(d Deps, tokens TokenIssuer, identities IdentityVerifier) *UserService {
	d = d.withDefaults()
	return &UserService{
		users:      d.Store,
		tokens:     tokens,
		identities: identities,
		deps:       d,
		logger:     componentLogger(d.Logger, "user"),
	}
}

// Login verifies the platform identity assertion, creates or refreshes the
// directory entry for the caller it names and issues a session token. New
// users are never admins.
func (s *UserService) Login(ctx context.Context, assertion string, profile models.UserProfile) (*LoginResult, error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, apperr.Unauthorized("identity assertion is required")
	}
	userID, err := s.identities.VerifyIdentity(assertion)
	if err != nil {
		s.logger.Warn().Err(err).Msg("login refused")
		return nil, apperr.Unauthorized("identity could not be verified")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperr.Unauthorized("identity could not be verified")
	}
	if profile == (models.UserProfile{}) {
		return nil, apperr.Validation("user info is required")
	}

	now := s.deps.Clock()
	u := &models.User{
		ID:            userID,
		NickName:      profile.NickName,
		AvatarURL:     profile.AvatarURL,
		Phone:         profile.Phone,
		CreateTime:    now,
		UpdateTime:    now,
		LastLoginTime: now,
	}
	if err := s.users.UpsertUser(ctx, u); err != nil {
		return nil, translate(err, "user", "save user")
	}
	stored, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, translate(err, "user", "load user")
	}

	token, expiresAt, err := s.tokens.Issue(userID)
	if err != nil {
		return nil, apperr.Store("issue token", err)
	}

	s.logger.Info().Str("user_id", userID).Bool("is_admin", stored.IsAdmin).Msg("user logged in")
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: stored}, nil
}

func (s *UserService) GetUserInfo(ctx context.Context, sess Session) (*models.User, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, sess.CallerID)
	if err != nil {
		return nil, translate(err, "user", "load user")
	}
	return u, nil
}

// UpdateUserInfo overwrites the non-empty profile fields.
func (s *UserService) UpdateUserInfo(ctx context.Context, sess Session, profile models.UserProfile) (*models.User, error) {
	if err := sess.require(); err != nil {
		return nil, err
	}
	u, err := s.users.UpdateUserProfile(ctx, sess.CallerID, profile, s.deps.Clock())
	if err != nil {
		return nil, translate(err, "user", "update user")
	}
	s.logger.Info().Str("request_id", sess.RequestID).Str("user_id", sess.CallerID).Msg("profile updated")
	return u, nil
}
