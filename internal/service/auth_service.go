package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type authPersonStore interface {
	FindByCode(ctx context.Context, code string) (*models.Person, error)
}

// AuthService authenticates personnel by external code and issues tokens.
type AuthService struct {
	people   authPersonStore
	cfg      config.JWTConfig
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthService constructs an AuthService.
func NewAuthService(people authPersonStore, cfg config.JWTConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		people:   people,
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger,
	}
}

// Login verifies the credential and issues an HS256 token carrying the
// person's code and role set.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code and password are required")
	}

	person, err := s.people.FindByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	if bcrypt.CompareHashAndPassword([]byte(person.Credential), []byte(req.Password)) != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.cfg.Expiration)
	claims := models.JWTClaims{
		PersonCode: person.Code,
		FullName:   person.FullName,
		Roles:      person.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   person.Code,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	s.logger.Info("personnel login", zap.String("code", person.Code))
	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.cfg.Expiration.Seconds()),
		IssuedAt:    now,
		Code:        person.Code,
		FullName:    person.FullName,
		Roles:       person.Roles,
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	claims := &models.JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.ErrUnauthorized
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}
