package services

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjperalta/fintera-contracts/internal/apperr"
	"github.com/sjperalta/fintera-contracts/internal/models"
)

func TestUserService_Create(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.svc.User.Create(ctx, &UserInput{
		Email:    "  Finance@Example.com ",
		Password: "s3cret-pass",
		FullName: "Fin <b>Ops</b>",
		Role:     models.RoleFinance,
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, "finance@example.com", user.Email)
	assert.NotEqual(t, "s3cret-pass", user.EncryptedPassword)
	assert.Equal(t, models.StatusActive, user.Status)

	tests := []struct {
		name  string
		input UserInput
		kind  apperr.Kind
	}{
		{"invalid email", UserInput{Email: "not-an-email", Password: "long-enough"}, apperr.KindInvalidInput},
		{"short password", UserInput{Email: "a@example.com", Password: "short"}, apperr.KindInvalidInput},
		{"unknown role", UserInput{Email: "b@example.com", Password: "long-enough", Role: "owner"}, apperr.KindInvalidInput},
		{"duplicate email", UserInput{Email: "finance@example.com", Password: "long-enough"}, apperr.KindDuplicateKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.User.Create(ctx, &tt.input, admin)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	viewer, err := env.svc.User.Create(ctx, &UserInput{Email: "viewer@example.com", Password: "long-enough"}, admin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleViewer, viewer.Role)
}

func TestAuthService_Login(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.svc.User.Create(ctx, &UserInput{
		Email:    "pm@example.com",
		Password: "correct-horse",
		Role:     models.RoleContractManager,
	}, admin)
	require.NoError(t, err)

	res, err := env.svc.Auth.Login(ctx, "PM@example.com", "correct-horse", Actor{IPAddress: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotNil(t, res.User.LastLoginAt)

	token, err := jwt.Parse(res.Token, func(*jwt.Token) (any, error) {
		return []byte(env.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, float64(user.ID), claims["user_id"])
	assert.Equal(t, models.RoleContractManager, claims["role"])
	assert.Equal(t, float64(res.ExpiresAt.Unix()), claims["exp"])

	_, err = env.svc.Auth.Login(ctx, "pm@example.com", "wrong", Actor{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	_, err = env.svc.Auth.Login(ctx, "nobody@example.com", "correct-horse", Actor{})
	assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))

	user.Status = models.StatusSuspended
	require.NoError(t, env.repos.User.Update(ctx, user))
	_, err = env.svc.Auth.Login(ctx, "pm@example.com", "correct-horse", Actor{})
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
}
