package service

import (
	"context"
	"testing"
	"time"

	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountService(t *testing.T) (*AccountService, repository.UserRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users := repository.NewUserRepository(testutil.NewSQLiteDB(t))
	return NewAccountService(users, rdb), users, mr
}

func TestAccountService_SignupAndLogin(t *testing.T) {
	svc, users, _ := newAccountService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: " Sari@Sekolah.ID ", Password: "rahasia123", DisplayName: "Bu Sari"})
	require.NoError(t, err)
	assert.Equal(t, "sari@sekolah.id", user.Email)
	assert.Equal(t, models.ProviderPassword, user.Provider)
	assert.NotEqual(t, "rahasia123", user.Password)
	assert.False(t, user.EmailVerified)

	profile, err := users.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bu Sari", profile.DisplayName)

	_, err = svc.Signup(ctx, SignupInput{Email: "sari@sekolah.id", Password: "rahasia123", DisplayName: "Sari Lain"})
	assertCode(t, err, models.CodeValidation)

	got, err := svc.Login(ctx, "SARI@sekolah.id", "rahasia123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = svc.Login(ctx, "sari@sekolah.id", "salah12345")
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.Login(ctx, "nobody@sekolah.id", "rahasia123")
	assertCode(t, err, models.CodeUnauthorized)
}

func TestAccountService_SignupValidation(t *testing.T) {
	svc, _, _ := newAccountService(t)
	ctx := context.Background()

	tests := []SignupInput{
		{Email: "bukan-email", Password: "rahasia123", DisplayName: "Sari"},
		{Email: "a@b.id", Password: "pendek1", DisplayName: "Sari"},
		{Email: "a@b.id", Password: "rahasia123", DisplayName: "S"},
	}
	for _, in := range tests {
		_, err := svc.Signup(ctx, in)
		assertCode(t, err, models.CodeValidation)
	}
}

func TestAccountService_GoogleSignIn(t *testing.T) {
	svc, users, _ := newAccountService(t)
	ctx := context.Background()

	existing, err := svc.Signup(ctx, SignupInput{Email: "budi@sekolah.id", Password: "rahasia123", DisplayName: "Pak Budi"})
	require.NoError(t, err)

	// An unverified Google email never signs into an existing account.
	_, err = svc.GoogleSignIn(ctx, GoogleIdentity{Email: "budi@sekolah.id", Name: "Budi G"})
	assertCode(t, err, models.CodeUnauthorized)
	_, err = svc.Login(ctx, "budi@sekolah.id", "rahasia123")
	require.NoError(t, err, "refused link leaves the account untouched")

	linked, err := svc.GoogleSignIn(ctx, GoogleIdentity{
		Email: "Budi@sekolah.id", Name: "Budi G", Picture: "https://lh3.example/b.png", EmailVerified: true,
	})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, linked.ID, "same email links to the existing account")
	assert.Equal(t, "Pak Budi", linked.DisplayName)
	assert.Equal(t, "https://lh3.example/b.png", linked.PhotoURL)
	assert.True(t, linked.EmailVerified)

	// The password was set on an unverified address, so it no longer signs in.
	_, err = svc.Login(ctx, "budi@sekolah.id", "rahasia123")
	assertCode(t, err, models.CodeUnauthorized)

	// A verified password account keeps its password when Google links in.
	sari, err := svc.Signup(ctx, SignupInput{Email: "sari@sekolah.id", Password: "rahasia123", DisplayName: "Bu Sari"})
	require.NoError(t, err)
	require.NoError(t, users.SetEmailVerified(ctx, sari.ID))
	_, err = svc.GoogleSignIn(ctx, GoogleIdentity{Email: "sari@sekolah.id", Name: "Sari", EmailVerified: true})
	require.NoError(t, err)
	_, err = svc.Login(ctx, "sari@sekolah.id", "rahasia123")
	require.NoError(t, err)

	fresh, err := svc.GoogleSignIn(ctx, GoogleIdentity{Email: "rina@gmail.com", Name: "Rina", EmailVerified: true})
	require.NoError(t, err)
	assert.Equal(t, models.ProviderGoogle, fresh.Provider)

	// Google-only accounts have no password to log in with.
	_, err = svc.Login(ctx, "rina@gmail.com", "")
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.GoogleSignIn(ctx, GoogleIdentity{Name: "No Email"})
	assertCode(t, err, models.CodeUnauthorized)
}

func TestAccountService_EmailVerification(t *testing.T) {
	svc, _, mr := newAccountService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "dedi@sekolah.id", Password: "rahasia123", DisplayName: "Pak Dedi"})
	require.NoError(t, err)

	token, err := svc.IssueVerification(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, VerificationTTL, mr.TTL(verifyKeyPrefix+token))

	verified, err := svc.ConfirmVerification(ctx, token)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	// Tokens are single use.
	_, err = svc.ConfirmVerification(ctx, token)
	assertCode(t, err, models.CodeValidation)

	_, err = svc.IssueVerification(ctx, user.ID)
	assertCode(t, err, models.CodeValidation)
}

func TestAccountService_VerificationExpires(t *testing.T) {
	svc, _, mr := newAccountService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "eka@sekolah.id", Password: "rahasia123", DisplayName: "Bu Eka"})
	require.NoError(t, err)
	token, err := svc.IssueVerification(ctx, user.ID)
	require.NoError(t, err)

	mr.FastForward(VerificationTTL + time.Second)
	_, err = svc.ConfirmVerification(ctx, token)
	assertCode(t, err, models.CodeValidation)
}

func TestAccountService_SessionReflectsAdminFlag(t *testing.T) {
	svc, users, _ := newAccountService(t)
	ctx := context.Background()

	user, err := svc.Signup(ctx, SignupInput{Email: "admin@sekolah.id", Password: "rahasia123", DisplayName: "Admin"})
	require.NoError(t, err)

	sess, err := svc.Session(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, sess.IsAdmin)

	require.NoError(t, users.SetAdmin(ctx, user.ID, true))
	sess, err = svc.Session(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, sess.IsAdmin)
	assert.Equal(t, "Admin", sess.DisplayName)
}

func TestAccountService_VerificationWithoutRedis(t *testing.T) {
	users := repository.NewUserRepository(testutil.NewSQLiteDB(t))
	svc := NewAccountService(users, nil)

	_, err := svc.IssueVerification(context.Background(), "u-1")
	assertCode(t, err, models.CodeInternal)
}
