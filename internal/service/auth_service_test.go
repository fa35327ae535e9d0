package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/internal/apperror"
	"github.com/JackBerck/guyub-rukun-sub001/internal/repository"
	"github.com/JackBerck/guyub-rukun-sub001/internal/service"
	"github.com/JackBerck/guyub-rukun-sub001/internal/testutil"
	"github.com/JackBerck/guyub-rukun-sub001/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthService(t *testing.T) (*service.AuthService, *utils.TokenIssuer) {
	t.Helper()

	testDB := testutil.SetupTestDatabase(t)
	t.Cleanup(func() { testDB.Teardown(t) })

	tokens := utils.NewTokenIssuer("test-secret-key", time.Hour)
	return service.NewAuthService(repository.NewUserRepository(testDB.DB), tokens), tokens
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	auth, tokens := setupAuthService(t)
	ctx := context.Background()

	user, token, err := auth.Register(ctx, service.RegisterInput{
		Name:     " Dewi Lestari ",
		Email:    "Dewi@Example.com",
		Password: "rahasia123",
		Image:    "avatars/dewi.png",
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Dewi Lestari", user.Name)
	assert.Equal(t, "dewi@example.com", user.Email)

	claims, err := tokens.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	loggedIn, token, err := auth.Login(ctx, "dewi@example.com", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)
	assert.NotEmpty(t, token)

	me, err := auth.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "avatars/dewi.png", me.Image)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	auth, _ := setupAuthService(t)
	ctx := context.Background()

	in := service.RegisterInput{Name: "Dewi", Email: "dewi@example.com", Password: "rahasia123"}
	_, _, err := auth.Register(ctx, in)
	require.NoError(t, err)

	_, _, err = auth.Register(ctx, in)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.KindValidation))
}

func TestAuthService_RegisterValidation(t *testing.T) {
	auth, _ := setupAuthService(t)

	_, _, err := auth.Register(context.Background(), service.RegisterInput{
		Name:     "",
		Email:    "not-an-email",
		Password: "short",
	})
	require.Error(t, err)

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.KindValidation, appErr.Kind)
	assert.Contains(t, appErr.Fields, "name")
	assert.Contains(t, appErr.Fields, "email")
	assert.Contains(t, appErr.Fields, "password")
}

func TestAuthService_LoginFailures(t *testing.T) {
	auth, _ := setupAuthService(t)
	ctx := context.Background()

	_, _, err := auth.Register(ctx, service.RegisterInput{Name: "Dewi", Email: "dewi@example.com", Password: "rahasia123"})
	require.NoError(t, err)

	_, _, err = auth.Login(ctx, "dewi@example.com", "wrong-password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	_, _, err = auth.Login(ctx, "nobody@example.com", "rahasia123")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestAuthService_MeUnknown(t *testing.T) {
	auth, _ := setupAuthService(t)

	_, err := auth.Me(context.Background(), uuid.New())
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}
