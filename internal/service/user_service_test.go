package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"venuepark/internal/apperr"
	"venuepark/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubIssuer struct {
	err    error
	issued []string
}

func (s *stubIssuer) Issue(userID string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.issued = append(s.issued, userID)
	return "token-" + userID, time.Date(2026, 10, 22, 9, 0, 0, 0, time.UTC), nil
}

// stubVerifier accepts assertions of the form "signed:<userID>".
type stubVerifier struct{}

func (stubVerifier) VerifyIdentity(assertion string) (string, error) {
	userID, ok := strings.CutPrefix(assertion, "signed:")
	if !ok {
		return "", errors.New("bad signature")
	}
	return userID, nil
}

func signed(userID string) string { return "signed:" + userID }

func TestUserService_Login(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issuer := &stubIssuer{}
	users := NewUserService(f.deps, issuer, stubVerifier{})

	res, err := users.Login(ctx, signed(aliceID), models.UserProfile{NickName: "Alice", Phone: "13800000000"})
	require.NoError(t, err)
	assert.Equal(t, "token-alice", res.Token)
	assert.False(t, res.User.IsAdmin)
	assert.Equal(t, "Alice", res.User.NickName)
	assert.True(t, res.User.LastLoginTime.Equal(f.clock.Now()))

	f.clock.Set(f.clock.Now().Add(time.Hour))
	res, err = users.Login(ctx, signed(aliceID), models.UserProfile{NickName: "Alice B"})
	require.NoError(t, err)
	assert.Equal(t, "Alice B", res.User.NickName)
	assert.Equal(t, "13800000000", res.User.Phone)

	res, err = users.Login(ctx, signed(adminID), models.UserProfile{NickName: "Admin"})
	require.NoError(t, err)
	assert.True(t, res.User.IsAdmin)
	assert.Equal(t, []string{aliceID, aliceID, adminID}, issuer.issued)
}

func TestUserService_LoginRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issuer := &stubIssuer{}
	users := NewUserService(f.deps, issuer, stubVerifier{})

	tests := []struct {
		name      string
		assertion string
		profile   models.UserProfile
		kind      apperr.Kind
	}{
		{"missing assertion", " ", models.UserProfile{NickName: "x"}, apperr.KindUnauthorized},
		{"bare admin id", adminID, models.UserProfile{NickName: "x"}, apperr.KindUnauthorized},
		{"empty subject", signed(""), models.UserProfile{NickName: "x"}, apperr.KindUnauthorized},
		{"empty profile", signed(aliceID), models.UserProfile{}, apperr.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := users.Login(ctx, tt.assertion, tt.profile)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
	assert.Empty(t, issuer.issued)

	admin, err := f.store.GetUser(ctx, adminID)
	require.NoError(t, err)
	assert.Empty(t, admin.NickName, "a refused login must not touch the directory entry")

	failing := NewUserService(f.deps, &stubIssuer{err: errors.New("signing key missing")}, stubVerifier{})
	_, err = failing.Login(ctx, signed(aliceID), models.UserProfile{NickName: "x"})
	assert.Equal(t, apperr.KindStore, apperr.KindOf(err))
}

func TestUserService_Profile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	users := NewUserService(f.deps, &stubIssuer{}, stubVerifier{})

	_, err := users.GetUserInfo(ctx, Session{})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
	_, err = users.GetUserInfo(ctx, sess(bobID))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = users.Login(ctx, signed(bobID), models.UserProfile{NickName: "Bob", AvatarURL: "https://img/bob.png"})
	require.NoError(t, err)

	f.clock.Set(f.clock.Now().Add(time.Minute))
	u, err := users.UpdateUserInfo(ctx, sess(bobID), models.UserProfile{Phone: "13900000000"})
	require.NoError(t, err)
	assert.Equal(t, "Bob", u.NickName)
	assert.Equal(t, "13900000000", u.Phone)
	assert.True(t, u.UpdateTime.Equal(f.clock.Now()))

	got, err := users.GetUserInfo(ctx, sess(bobID))
	require.NoError(t, err)
	assert.Equal(t, "https://img/bob.png", got.AvatarURL)
}
