package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

type teamStoreStub struct {
	teams     map[string][]string
	members   map[string]bool
	memberErr error
}

func (s *teamStoreStub) ListTeamIDsByUser(_ context.Context, _, userID string) ([]string, error) {
	return s.teams[userID], nil
}

func (s *teamStoreStub) IsMember(_ context.Context, _, userID string) (bool, error) {
	if s.memberErr != nil {
		return false, s.memberErr
	}
	return s.members[userID], nil
}

type userStoreStub struct {
	users map[string]*models.User
}

func (s *userStoreStub) FindByEmail(_ context.Context, email string) (*models.User, error) {
	user, ok := s.users[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newAuthFixture() (*AuthService, *teamStoreStub) {
	teams := &teamStoreStub{
		teams:   map[string][]string{"user-1": {"team-a", "team-b"}},
		members: map[string]bool{"user-1": true},
	}
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2!"), bcrypt.MinCost)
	users := &userStoreStub{users: map[string]*models.User{
		"ada@example.org": {
			ID:             "user-1",
			OrganizationID: "org-1",
			Email:          "ada@example.org",
			PasswordHash:   string(hash),
			Active:         true,
		},
	}}
	return NewAuthService("test-secret", users, teams, time.Hour, nil), teams
}

func TestValidateTokenRoundTrip(t *testing.T) {
	svc, _ := newAuthFixture()
	token, err := svc.IssueToken("user-1", "org-1", false)
	require.NoError(t, err)

	actor, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "user-1", actor.UserID)
	require.Equal(t, "org-1", actor.OrganizationID)
	require.Equal(t, []string{"team-a", "team-b"}, actor.TeamIDs, "teams come from the store, not the token")
	require.False(t, actor.SuperAdmin)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, _ := newAuthFixture()
	other := NewAuthService("different-secret", &userStoreStub{}, &teamStoreStub{members: map[string]bool{"user-1": true}}, time.Hour, nil)
	token, err := other.IssueToken("user-1", "org-1", false)
	require.NoError(t, err)

	_, err = svc.ValidateToken(context.Background(), token)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture()
	_, err := svc.ValidateToken(context.Background(), "not.a.token")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsInactiveMember(t *testing.T) {
	svc, teams := newAuthFixture()
	token, err := svc.IssueToken("user-1", "org-1", false)
	require.NoError(t, err)

	teams.members["user-1"] = false
	_, err = svc.ValidateToken(context.Background(), token)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLoginIssuesUsableToken(t *testing.T) {
	svc, _ := newAuthFixture()
	token, user, err := svc.Login(context.Background(), LoginInput{Email: "ada@example.org", Password: "hunter2!"})
	require.NoError(t, err)
	require.Equal(t, "user-1", user.ID)

	actor, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, "org-1", actor.OrganizationID)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture()

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "ada@example.org", Password: "wrong"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, _, err = svc.Login(context.Background(), LoginInput{Email: "nobody@example.org", Password: "hunter2!"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code, "unknown email and wrong password look identical")
}

func TestLoginRejectsMalformedPayload(t *testing.T) {
	svc, _ := newAuthFixture()
	_, _, err := svc.Login(context.Background(), LoginInput{Email: "not-an-email", Password: "x"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	svc, _ := newAuthFixture()
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	svc.users.(*userStoreStub).users["bob@example.org"] = &models.User{
		ID: "user-2", OrganizationID: "org-1", Email: "bob@example.org",
		PasswordHash: string(hash), Active: false,
	}

	_, _, err := svc.Login(context.Background(), LoginInput{Email: "bob@example.org", Password: "pw"})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenFailsClosedOnLookupError(t *testing.T) {
	svc, teams := newAuthFixture()
	token, err := svc.IssueToken("user-1", "org-1", false)
	require.NoError(t, err)

	teams.memberErr = context.DeadlineExceeded
	_, err = svc.ValidateToken(context.Background(), token)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code, "lookup failure is a 401, never a default identity")
}
