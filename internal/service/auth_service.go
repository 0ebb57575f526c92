package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"sprout/internal/auth"
	"sprout/internal/mailer"
	"sprout/internal/middleware"
	"sprout/internal/models"
	"sprout/internal/observability"
	"sprout/internal/repository"
	"sprout/internal/validation"

	"github.com/google/uuid"
)

// ResetTokenTTL is how long an emailed reset token stays valid.
const ResetTokenTTL = time.Hour

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(userID uint, role models.Role) (string, auth.Claims, error)
}

// TokenRevoker revokes token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthService owns registration, login and password recovery.
type AuthService struct {
	users       repository.UserRepository
	hasher      auth.PasswordHasher
	tokens      TokenIssuer
	revocations TokenRevoker
	mail        mailer.Mailer
	frontendURL string
	now         func() time.Time
}

type RegisterInput struct {
	Name            string   `json:"name" validate:"required,min=3,max=50"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=6,max=20,maxbytes=72"`
	Phone           string   `json:"phone" validate:"required,min=10,max=15"`
	Address         string   `json:"address" validate:"required,min=5,max=100"`
	Role            string   `json:"role" validate:"omitempty,oneof=user admin"`
	ProfilePicture  string   `json:"profilePicture" validate:"omitempty,url"`
	SecurityAnswers []string `json:"securityAnswers" validate:"min=2,dive,notblank,max=100,maxbytes=72"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RecoverPasswordInput struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token" validate:"notblank"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=20,maxbytes=72"`
}

type RecoverWithAnswersInput struct {
	Email       string `json:"email" validate:"required,email"`
	Answer1     string `json:"answer1" validate:"notblank,maxbytes=72"`
	Answer2     string `json:"answer2" validate:"notblank,maxbytes=72"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=20,maxbytes=72"`
}

type ChangePasswordInput struct {
	Email       string `json:"email" validate:"required,email"`
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=20,maxbytes=72"`
}

// LoginResult is returned by Login.
type LoginResult struct {
	User  *models.User
	Token string
}

func NewAuthService(
	userRepo repository.UserRepository,
	hasher auth.PasswordHasher,
	tokens TokenIssuer,
	revocations TokenRevoker,
	mail mailer.Mailer,
	frontendURL string,
) *AuthService {
	return &AuthService{
		users:       userRepo,
		hasher:      hasher,
		tokens:      tokens,
		revocations: revocations,
		mail:        mail,
		frontendURL: frontendURL,
		now:         time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizeAnswer makes security answers case and whitespace insensitive.
func normalizeAnswer(answer string) string {
	return strings.ToLower(strings.Join(strings.Fields(answer), " "))
}

func normalizeAnswers(answers []string) []string {
	if answers == nil {
		return nil
	}
	out := make([]string, len(answers))
	for i, a := range answers {
		out[i] = normalizeAnswer(a)
	}
	return out
}

func (s *AuthService) hash(plain string) (string, error) {
	hashed, err := s.hasher.Hash(plain)
	if err != nil {
		return "", models.NewExternalServiceError("Failed to hash secret", err)
	}
	return hashed, nil
}

// Register creates a user. The password and security answers are hashed
// before anything is stored.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	// Bounds apply to the values that are stored and hashed.
	in.Name = strings.TrimSpace(in.Name)
	in.Address = strings.TrimSpace(in.Address)
	in.SecurityAnswers = normalizeAnswers(in.SecurityAnswers)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)

	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Email already exists")
	}

	passwordHash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	answers := make([]string, 0, len(in.SecurityAnswers))
	for _, a := range in.SecurityAnswers {
		h, err := s.hash(a)
		if err != nil {
			return nil, err
		}
		answers = append(answers, h)
	}

	role := models.Role(in.Role)
	if role == "" {
		role = models.RoleUser
	}
	user := &models.User{
		Name:            in.Name,
		Email:           email,
		Password:        passwordHash,
		Role:            role,
		Phone:           in.Phone,
		Address:         in.Address,
		ProfilePicture:  in.ProfilePicture,
		SecurityAnswers: answers,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	middleware.Logger.InfoContext(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(in.Password, user.Password) {
		return nil, models.NewUnauthenticatedError("Invalid email or password")
	}

	token, _, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &LoginResult{User: user, Token: token}, nil
}

// Logout revokes the presented token until it would have expired.
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return models.NewUnauthenticatedError("No token provided")
	}
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revocations.Revoke(ctx, claims.ID, ttl); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RecoverPassword emails a single-use reset token. Only its digest is
// stored. A token that could not be delivered is cleared again.
func (s *AuthService) RecoverPassword(ctx context.Context, in RecoverPasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewNotFoundMessage("User not found")
	}

	token := uuid.NewString()
	if err := s.users.SetResetToken(ctx, user.ID, digest(token), s.now().Add(ResetTokenTTL)); err != nil {
		return err
	}

	msg, err := mailer.PasswordResetMessage(user.Email, user.Name, s.frontendURL, token, ResetTokenTTL)
	if err == nil {
		err = s.mail.Send(ctx, msg)
	}
	if err == nil {
		return nil
	}

	if clearErr := s.users.ClearResetToken(ctx, user.ID); clearErr != nil {
		observability.PartialUpdatesTotal.WithLabelValues("recover_password").Inc()
		middleware.Logger.ErrorContext(ctx, "reset token left active after failed delivery",
			"user_id", user.ID, "send_error", err, "clear_error", clearErr)
		return models.NewPartialUpdateError(
			"Password reset email could not be sent and the reset token could not be revoked",
			errors.Join(err, clearErr))
	}
	return models.NewExternalServiceError("Failed to send password reset email", err)
}

// ResetPassword sets a new password for the holder of an unexpired reset
// token and invalidates the token.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	user, err := s.users.GetByResetTokenHash(ctx, digest(strings.TrimSpace(in.Token)), s.now())
	if err != nil {
		return err
	}
	if user == nil {
		return models.NewValidationError("Invalid or expired reset token")
	}
	passwordHash, err := s.hash(in.NewPassword)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, passwordHash)
}

// RecoverWithAnswers sets a new password when both security answers match.
func (s *AuthService) RecoverWithAnswers(ctx context.Context, in RecoverWithAnswersInput) (*models.User, error) {
	in.Answer1 = normalizeAnswer(in.Answer1)
	in.Answer2 = normalizeAnswer(in.Answer2)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundMessage("User not found")
	}

	if len(user.SecurityAnswers) < 2 ||
		!s.hasher.Verify(in.Answer1, user.SecurityAnswers[0]) ||
		!s.hasher.Verify(in.Answer2, user.SecurityAnswers[1]) {
		return nil, models.NewUnauthenticatedError("Security answers are incorrect")
	}

	passwordHash, err := s.hash(in.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword replaces the password after verifying the old one.
func (s *AuthService) ChangePassword(ctx context.Context, in ChangePasswordInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(in.Email))
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(in.OldPassword, user.Password) {
		return nil, models.NewUnauthenticatedError("Old password is incorrect")
	}

	passwordHash, err := s.hash(in.NewPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return nil, err
	}
	return user, nil
}
