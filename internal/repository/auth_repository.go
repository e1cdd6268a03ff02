package repository

import (
	"context"
	"errors"
	"fmt"
	"music-tutor/internal/models"
	"music-tutor/internal/utils"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	tokenIssuer = "music-tutor"
	tokenTTL    = 30 * 24 * time.Hour
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrInvalidToken  = errors.New("invalid token")
)

func TokenKey(device string) string { return "auth_token_" + device }
func UserKey(device string) string  { return "auth_user_" + device }

type tokenRecord struct {
	Token string `json:"token"`
}

type AuthClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AuthRepository issues signed session tokens without checking credentials.
// Sign-in stays mocked; the token only proves which user id a device holds.
type AuthRepository struct {
	logger *logrus.Entry
	store  RecordStore
	secret []byte
	now    func() time.Time
}

func NewAuthRepository(logger *logrus.Entry, store RecordStore, secret string) utils.AuthRepository {
	return &AuthRepository{
		logger: logger,
		store:  store,
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Login reuses the user already stored for this device when the email matches.
func (r *AuthRepository) Login(ctx context.Context, device, email string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	user := models.AuthUser{ID: uuid.NewString(), Email: email}
	existing, _, err := getJSON[models.AuthUser](ctx, r.store, UserKey(device))
	if err != nil {
		return nil, fmt.Errorf("failed to read current user: %w", err)
	}
	if existing != nil && strings.EqualFold(existing.Email, email) {
		user = *existing
	}
	return r.signIn(ctx, device, user)
}

func (r *AuthRepository) Register(ctx context.Context, device, email, fullName string) (*models.LoginResponse, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	return r.signIn(ctx, device, models.AuthUser{
		ID:       uuid.NewString(),
		Email:    email,
		FullName: strings.TrimSpace(fullName),
	})
}

func (r *AuthRepository) signIn(ctx context.Context, device string, user models.AuthUser) (*models.LoginResponse, error) {
	now := r.now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AuthClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
		Email: user.Email,
		Name:  user.FullName,
	}).SignedString(r.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	if _, err := updateJSON(ctx, r.store, UserKey(device),
		func() *models.AuthUser { return &models.AuthUser{} },
		func(u *models.AuthUser) error { *u = user; return nil }); err != nil {
		r.logger.WithError(err).Error("Failed to store auth user")
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	if _, err := updateJSON(ctx, r.store, TokenKey(device),
		func() *tokenRecord { return &tokenRecord{} },
		func(t *tokenRecord) error { t.Token = token; return nil }); err != nil {
		r.logger.WithError(err).Error("Failed to store auth token")
		return nil, fmt.Errorf("failed to store token: %w", err)
	}

	r.logger.WithFields(logrus.Fields{
		"device": device,
		"userId": user.ID,
	}).Info("User signed in")
	return &models.LoginResponse{User: user, Token: token}, nil
}

func (r *AuthRepository) Logout(ctx context.Context, device string) error {
	if err := r.store.Delete(ctx, TokenKey(device), UserKey(device)); err != nil {
		return fmt.Errorf("failed to logout: %w", err)
	}
	return nil
}

// IsAuthenticated reports whether the device holds a token that still verifies.
func (r *AuthRepository) IsAuthenticated(ctx context.Context, device string) (bool, error) {
	token, err := r.Token(ctx, device)
	if err != nil || token == "" {
		return false, err
	}
	if _, err := r.ParseToken(token); err != nil {
		r.logger.WithError(err).Debug("Stored token rejected")
		return false, nil
	}
	return true, nil
}

// CurrentUser returns nil when nobody is signed in on the device.
func (r *AuthRepository) CurrentUser(ctx context.Context, device string) (*models.AuthUser, error) {
	user, _, err := getJSON[models.AuthUser](ctx, r.store, UserKey(device))
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return user, nil
}

func (r *AuthRepository) Token(ctx context.Context, device string) (string, error) {
	rec, _, err := getJSON[tokenRecord](ctx, r.store, TokenKey(device))
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.Token, nil
}

func (r *AuthRepository) ParseToken(raw string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
