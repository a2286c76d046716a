package memory

import (
	"context"
	"testing"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/mfa"
	"github.com/stretchr/testify/require"
)

func TestUsersLifecycle(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()

	_, err := users.GetUserByEmail(ctx, "alice@example.com")
	require.ErrorIs(t, err, authcore.ErrUserNotFound)

	u, err := users.CreateUser(ctx, authcore.CreateUserInput{
		Email:        "alice@example.com",
		PasswordHash: "hash-1",
		Roles:        []string{},
	})
	require.NoError(t, err)
	require.NotEmpty(t, u.UserID)
	require.NotNil(t, u.Roles)

	_, err = users.CreateUser(ctx, authcore.CreateUserInput{Email: "alice@example.com"})
	require.ErrorIs(t, err, authcore.ErrAccountExists)

	require.NoError(t, users.UpdatePasswordHash(ctx, u.UserID, "hash-2"))
	require.NoError(t, users.SetRoles(u.UserID, "admin"))
	require.NoError(t, users.UpdateMFA(ctx, u.UserID, mfa.MethodTOTP, "SECRET"))

	got, err := users.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "hash-2", got.PasswordHash)
	require.Equal(t, []string{"admin"}, got.Roles)
	require.Equal(t, mfa.MethodTOTP, got.MFAMethod)
	require.Equal(t, "SECRET", got.TOTPSecret)

	require.ErrorIs(t, users.UpdatePasswordHash(ctx, "missing", "x"), authcore.ErrUserNotFound)
}

func TestUsersReturnsCopies(t *testing.T) {
	ctx := context.Background()
	users := NewUsers()
	users.Put(authcore.UserRecord{UserID: "u-1", Email: "bob@example.com", Roles: []string{"reader"}})

	got, err := users.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	got.Roles[0] = "admin"

	again, err := users.GetUserByID(ctx, "u-1")
	require.NoError(t, err)
	require.Equal(t, []string{"reader"}, again.Roles)
}
