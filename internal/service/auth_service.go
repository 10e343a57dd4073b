package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/berrihq/berri-api/internal/models"
	appErrors "github.com/berrihq/berri-api/pkg/errors"
)

type teamStore interface {
	ListTeamIDsByUser(ctx context.Context, orgID, userID string) ([]string, error)
	IsMember(ctx context.Context, orgID, userID string) (bool, error)
}

type userStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
}

// LoginInput carries login credentials.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// tokenClaims is the JWT payload. Team membership is resolved from the
// database on every request rather than trusted from the token, so a team
// change takes effect without reissuing tokens.
type tokenClaims struct {
	OrganizationID string `json:"org"`
	SuperAdmin     bool   `json:"super_admin"`
	jwt.RegisteredClaims
}

// AuthService authenticates users and resolves bearer tokens into Actors.
type AuthService struct {
	secret   []byte
	users    userStore
	teams    teamStore
	ttl      time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService constructs the service.
func NewAuthService(secret string, users userStore, teams teamStore, ttl time.Duration, logger *zap.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		secret:   []byte(secret),
		users:    users,
		teams:    teams,
		ttl:      ttl,
		validate: validator.New(),
		logger:   logger,
	}
}

// Login verifies credentials and issues a signed token. Wrong email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (string, *models.User, error) {
	if err := s.validate.Struct(input); err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid email or password")
		}
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid email or password")
	}

	token, err := s.IssueToken(user.ID, user.OrganizationID, user.SuperAdmin)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create token")
	}
	return token, user, nil
}

// IssueToken signs a token for a user.
func (s *AuthService) IssueToken(userID, orgID string, superAdmin bool) (string, error) {
	now := time.Now().UTC()
	claims := tokenClaims{
		OrganizationID: orgID,
		SuperAdmin:     superAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a bearer token, confirms the user is
// still an active member of the organization, and loads current team
// membership.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*models.Actor, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	if claims.Subject == "" || claims.OrganizationID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token is missing identity claims")
	}

	member, err := s.teams.IsMember(ctx, claims.OrganizationID, claims.Subject)
	if err != nil {
		// Identity lookup failures surface as authentication failures,
		// never as a silently defaulted identity.
		s.logger.Error("membership lookup failed during token validation",
			zap.String("user_id", claims.Subject), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "could not verify identity")
	}
	if !member {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user is not an active member of the organization")
	}

	teamIDs, err := s.teams.ListTeamIDsByUser(ctx, claims.OrganizationID, claims.Subject)
	if err != nil {
		s.logger.Error("team lookup failed during token validation",
			zap.String("user_id", claims.Subject), zap.Error(err))
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "could not resolve team membership")
	}

	return &models.Actor{
		UserID:         claims.Subject,
		OrganizationID: claims.OrganizationID,
		TeamIDs:        teamIDs,
		SuperAdmin:     claims.SuperAdmin,
	}, nil
}
