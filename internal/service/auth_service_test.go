package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sprout/internal/auth"
	"sprout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func validRegisterInput() RegisterInput {
	return RegisterInput{
		Name:            "Alice Gardener",
		Email:           "Alice@Example.com",
		Password:        "secret1",
		Phone:           "0123456789",
		Address:         "12 Rose Lane",
		Role:            "user",
		SecurityAnswers: []string{"Rex", "Springfield"},
	}
}

func newAuthService(users *userRepoStub, mail *mailerStub) (*AuthService, *revokerStub) {
	revoker := &revokerStub{}
	svc := NewAuthService(users, plainHasher{}, tokenStub{}, revoker, mail, "http://localhost:5173")
	return svc, revoker
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	var stored *models.User
	users.createFn = func(_ context.Context, u *models.User) error {
		u.ID = 5
		stored = u
		return nil
	}
	svc, _ := newAuthService(users, &mailerStub{})

	user, err := svc.Register(context.Background(), validRegisterInput())
	require.NoError(t, err)
	assert.Equal(t, uint(5), user.ID)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, "hashed:secret1", stored.Password, "password is hashed before it is stored")
	assert.Equal(t, []string{"hashed:rex", "hashed:springfield"}, stored.SecurityAnswers)
	assert.Equal(t, models.RoleUser, stored.Role)
}

func TestAuthService_Register_Validation(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthService(noopUserRepo(), &mailerStub{})
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"short name", func(in *RegisterInput) { in.Name = "Al" }},
		{"bad email", func(in *RegisterInput) { in.Email = "alice" }},
		{"short password", func(in *RegisterInput) { in.Password = "abc" }},
		{"long password", func(in *RegisterInput) { in.Password = strings.Repeat("a", 21) }},
		{"short phone", func(in *RegisterInput) { in.Phone = "123" }},
		{"short address", func(in *RegisterInput) { in.Address = "abc" }},
		{"unknown role", func(in *RegisterInput) { in.Role = "gardener" }},
		{"one answer", func(in *RegisterInput) { in.SecurityAnswers = []string{"Rex"} }},
		{"blank answer", func(in *RegisterInput) { in.SecurityAnswers = []string{"Rex", " "} }},
		{"answer over 72 bytes", func(in *RegisterInput) { in.SecurityAnswers = []string{"Rex", strings.Repeat("b", 80)} }},
		{"multibyte password over 72 bytes", func(in *RegisterInput) { in.Password = strings.Repeat("🌱", 19) }},
		{"padded short name", func(in *RegisterInput) { in.Name = "   Al   " }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := validRegisterInput()
			tt.mutate(&in)
			_, err := svc.Register(context.Background(), in)
			assertValidationError(t, err)
		})
	}
}

func TestAuthService_SecretsFitBcrypt(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	var stored *models.User
	users.createFn = func(_ context.Context, u *models.User) error {
		stored = u
		return nil
	}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	svc := NewAuthService(users, hasher, tokenStub{}, &revokerStub{}, &mailerStub{}, "http://localhost:5173")
	ctx := context.Background()

	long := validRegisterInput()
	long.SecurityAnswers = []string{"Rex", strings.Repeat("b", 80)}
	_, err := svc.Register(ctx, long)
	appErr := assertAppError(t, err, models.CodeValidation)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "securityAnswers[1]", appErr.Fields[0].Field)

	emoji := validRegisterInput()
	emoji.Password = strings.Repeat("🌱", 19)
	_, err = svc.Register(ctx, emoji)
	assertAppError(t, err, models.CodeValidation)
	assert.Nil(t, stored)

	// Padding collapses away, so the stored answer is exactly 72 bytes.
	edge := validRegisterInput()
	edge.Password = strings.Repeat("🌱", 18)
	edge.SecurityAnswers = []string{"Rex", "  " + strings.Repeat("b", 72) + "  "}
	_, err = svc.Register(ctx, edge)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, hasher.Verify(strings.Repeat("🌱", 18), stored.Password))
	assert.True(t, hasher.Verify(strings.Repeat("b", 72), stored.SecurityAnswers[1]))

	_, err = svc.RecoverWithAnswers(ctx, RecoverWithAnswersInput{
		Email: "alice@example.com", Answer1: "Rex", Answer2: strings.Repeat("b", 80), NewPassword: "secret2",
	})
	assertAppError(t, err, models.CodeValidation)
	_, err = svc.ChangePassword(ctx, ChangePasswordInput{
		Email: "alice@example.com", OldPassword: "secret1", NewPassword: strings.Repeat("🌱", 19),
	})
	assertAppError(t, err, models.CodeValidation)
	err = svc.ResetPassword(ctx, ResetPasswordInput{Token: "t", NewPassword: strings.Repeat("🌱", 19)})
	assertAppError(t, err, models.CodeValidation)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		return &models.User{ID: 1, Email: email}, nil
	}
	created := false
	users.createFn = func(_ context.Context, _ *models.User) error {
		created = true
		return nil
	}
	svc, _ := newAuthService(users, &mailerStub{})

	_, err := svc.Register(context.Background(), validRegisterInput())
	appErr := assertAppError(t, err, models.CodeConflict)
	assert.Equal(t, "Email already exists", appErr.Message)
	assert.False(t, created)
}

func TestAuthService_Register_HasherFailure(t *testing.T) {
	t.Parallel()

	svc := NewAuthService(noopUserRepo(), plainHasher{err: errors.New("no entropy")}, tokenStub{}, &revokerStub{}, &mailerStub{}, "")
	_, err := svc.Register(context.Background(), validRegisterInput())
	assertAppError(t, err, models.CodeExternalService)
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email != "alice@example.com" {
			return nil, nil
		}
		return &models.User{ID: 1, Email: email, Password: "hashed:secret1", Role: models.RoleAdmin}, nil
	}
	svc, _ := newAuthService(users, &mailerStub{})
	ctx := context.Background()

	res, err := svc.Login(ctx, LoginInput{Email: "ALICE@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "token-for-admin", res.Token)
	assert.Equal(t, uint(1), res.User.ID)

	for _, in := range []LoginInput{
		{Email: "alice@example.com", Password: "wrong-password"},
		{Email: "nobody@example.com", Password: "secret1"},
	} {
		_, err := svc.Login(ctx, in)
		appErr := assertAppError(t, err, models.CodeUnauthenticated)
		assert.Equal(t, "Invalid email or password", appErr.Message)
	}
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	svc, revoker := newAuthService(noopUserRepo(), &mailerStub{})
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	err := svc.Logout(context.Background(), &auth.Claims{ID: "jti-1", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	assert.Equal(t, "jti-1", revoker.jti)
	assert.Equal(t, time.Hour, revoker.ttl)

	assertAppError(t, svc.Logout(context.Background(), nil), models.CodeUnauthenticated)
}

func TestAuthService_RecoverPassword(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	account := &models.User{ID: 3, Name: "Alice", Email: "alice@example.com"}

	setup := func(mailErr, clearErr error) (*AuthService, *mailerStub, *[]string) {
		users := noopUserRepo()
		users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
			if email == account.Email {
				return account, nil
			}
			return nil, nil
		}
		var calls []string
		users.setResetTokenFn = func(_ context.Context, id uint, hash string, expiresAt time.Time) error {
			assert.Len(t, hash, 64)
			assert.Equal(t, now.Add(ResetTokenTTL), expiresAt)
			calls = append(calls, "set")
			return nil
		}
		users.clearResetTokenFn = func(_ context.Context, _ uint) error {
			calls = append(calls, "clear")
			return clearErr
		}
		mail := &mailerStub{err: mailErr}
		svc, _ := newAuthService(users, mail)
		svc.now = func() time.Time { return now }
		return svc, mail, &calls
	}
	ctx := context.Background()

	t.Run("delivered", func(t *testing.T) {
		svc, mail, calls := setup(nil, nil)
		require.NoError(t, svc.RecoverPassword(ctx, RecoverPasswordInput{Email: "alice@example.com"}))
		assert.Equal(t, []string{"set"}, *calls)
		require.Len(t, mail.sent, 1)
		assert.Equal(t, "alice@example.com", mail.sent[0].To)
		assert.Contains(t, mail.sent[0].HTMLBody, "http://localhost:5173/reset-password?token=")
	})

	t.Run("unknown email", func(t *testing.T) {
		svc, _, calls := setup(nil, nil)
		err := svc.RecoverPassword(ctx, RecoverPasswordInput{Email: "bob@example.com"})
		appErr := assertAppError(t, err, models.CodeNotFound)
		assert.Equal(t, "User not found", appErr.Message)
		assert.Empty(t, *calls)
	})

	t.Run("delivery fails", func(t *testing.T) {
		svc, _, calls := setup(errors.New("smtp down"), nil)
		err := svc.RecoverPassword(ctx, RecoverPasswordInput{Email: "alice@example.com"})
		assertAppError(t, err, models.CodeExternalService)
		assert.Equal(t, []string{"set", "clear"}, *calls, "an undelivered token is revoked")
	})

	t.Run("delivery and cleanup fail", func(t *testing.T) {
		svc, _, _ := setup(errors.New("smtp down"), errDB)
		err := svc.RecoverPassword(ctx, RecoverPasswordInput{Email: "alice@example.com"})
		appErr := assertAppError(t, err, models.CodePartialUpdate)
		assert.ErrorIs(t, appErr, errDB)
		assert.Equal(t, 500, models.StatusFor(err))
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	t.Parallel()

	const token = "7d0f4f3a-reset"
	users := noopUserRepo()
	users.getByResetTokenHashFn = func(_ context.Context, hash string, _ time.Time) (*models.User, error) {
		if hash == digest(token) {
			return &models.User{ID: 3}, nil
		}
		return nil, nil
	}
	var newHash string
	users.updatePasswordFn = func(_ context.Context, id uint, hash string) error {
		assert.Equal(t, uint(3), id)
		newHash = hash
		return nil
	}
	svc, _ := newAuthService(users, &mailerStub{})
	ctx := context.Background()

	err := svc.ResetPassword(ctx, ResetPasswordInput{Token: "wrong", NewPassword: "secret2"})
	assertValidationError(t, err)
	assert.Empty(t, newHash)

	err = svc.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "abc"})
	assertValidationError(t, err)

	require.NoError(t, svc.ResetPassword(ctx, ResetPasswordInput{Token: token, NewPassword: "secret2"}))
	assert.Equal(t, "hashed:secret2", newHash)
}

func TestAuthService_RecoverWithAnswers(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		if email != "alice@example.com" {
			return nil, nil
		}
		return &models.User{ID: 1, Email: email, SecurityAnswers: []string{"hashed:rex", "hashed:springfield"}}, nil
	}
	var updated bool
	users.updatePasswordFn = func(_ context.Context, _ uint, hash string) error {
		updated = hash == "hashed:secret2"
		return nil
	}
	svc, _ := newAuthService(users, &mailerStub{})
	ctx := context.Background()

	_, err := svc.RecoverWithAnswers(ctx, RecoverWithAnswersInput{Email: "alice@example.com", Answer1: "Rex", Answer2: "Shelbyville", NewPassword: "secret2"})
	appErr := assertAppError(t, err, models.CodeUnauthenticated)
	assert.Equal(t, "Security answers are incorrect", appErr.Message)
	assert.False(t, updated)

	_, err = svc.RecoverWithAnswers(ctx, RecoverWithAnswersInput{Email: "bob@example.com", Answer1: "a", Answer2: "b", NewPassword: "secret2"})
	assertAppError(t, err, models.CodeNotFound)

	_, err = svc.RecoverWithAnswers(ctx, RecoverWithAnswersInput{Email: "alice@example.com", Answer1: " REX ", Answer2: "springfield", NewPassword: "secret2"})
	require.NoError(t, err)
	assert.True(t, updated)
}

func TestAuthService_ChangePassword(t *testing.T) {
	t.Parallel()

	users := noopUserRepo()
	users.getByEmailFn = func(_ context.Context, email string) (*models.User, error) {
		return &models.User{ID: 1, Email: email, Password: "hashed:secret1"}, nil
	}
	var newHash string
	users.updatePasswordFn = func(_ context.Context, _ uint, hash string) error {
		newHash = hash
		return nil
	}
	svc, _ := newAuthService(users, &mailerStub{})
	ctx := context.Background()

	_, err := svc.ChangePassword(ctx, ChangePasswordInput{Email: "alice@example.com", OldPassword: "nope", NewPassword: "secret2"})
	appErr := assertAppError(t, err, models.CodeUnauthenticated)
	assert.Equal(t, "Old password is incorrect", appErr.Message)

	_, err = svc.ChangePassword(ctx, ChangePasswordInput{Email: "alice@example.com", OldPassword: "secret1", NewPassword: "secret2"})
	require.NoError(t, err)
	assert.Equal(t, "hashed:secret2", newHash)
}
