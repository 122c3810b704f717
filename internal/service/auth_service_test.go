package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakePersonRepo) {
	t.Helper()
	people := newFakePersonRepo(newFakeRoleRepo())
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, people.Create(context.Background(), &models.Person{
		Code: "D0001", FullName: "Snapshot Admin", Credential: string(hash),
		Roles: []string{string(models.RoleAdmin)},
	}))
	cfg := config.JWTConfig{Secret: "test-secret", Expiration: time.Hour, Issuer: "academic-records"}
	return NewAuthService(people, cfg, nil), people
}

func TestLoginIssuesToken(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Code: "D0001", Password: "secret"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.AccessToken)
	require.Equal(t, "D0001", resp.Code)
	require.Equal(t, int64(3600), resp.ExpiresIn)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "D0001", claims.PersonCode)
	require.True(t, claims.HasRole(models.RoleAdmin))
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Code: "D0001", Password: "wrong"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))
}

func TestLoginUnknownCode(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Code: "T9999", Password: "secret"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrInvalidCredentials.Code))
}

func TestLoginValidatesRequest(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Code: "D0001"})
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrValidation.Code))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	svc, people := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Code: "D0001", Password: "secret"})
	require.NoError(t, err)

	other := NewAuthService(people, config.JWTConfig{Secret: "different", Expiration: time.Hour}, nil)
	_, err = other.ValidateToken(resp.AccessToken)
	require.Error(t, err)
	require.True(t, appErrors.HasCode(err, appErrors.ErrUnauthorized.Code))
}
