package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sprout/internal/auth"
	"sprout/internal/mailer"
	"sprout/internal/models"
	"sprout/internal/notifications"
	"sprout/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// userRepoStub is a stub for repository.UserRepository.
type userRepoStub struct {
	getByIDFn             func(context.Context, uint) (*models.User, error)
	getByEmailFn          func(context.Context, string) (*models.User, error)
	getByResetTokenHashFn func(context.Context, string, time.Time) (*models.User, error)
	createFn              func(context.Context, *models.User) error
	updateFieldsFn        func(context.Context, uint, *models.User, ...string) error
	updatePasswordFn      func(context.Context, uint, string) error
	setResetTokenFn       func(context.Context, uint, string, time.Time) error
	clearResetTokenFn     func(context.Context, uint) error
	setVerifiedFn         func(context.Context, uint) error
}

func (s *userRepoStub) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return s.getByIDFn(ctx, id)
}
func (s *userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getByEmailFn(ctx, email)
}
func (s *userRepoStub) GetByResetTokenHash(ctx context.Context, hash string, now time.Time) (*models.User, error) {
	return s.getByResetTokenHashFn(ctx, hash, now)
}
func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	return s.createFn(ctx, user)
}
func (s *userRepoStub) UpdateFields(ctx context.Context, id uint, patch *models.User, fields ...string) error {
	return s.updateFieldsFn(ctx, id, patch, fields...)
}
func (s *userRepoStub) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return s.updatePasswordFn(ctx, id, hash)
}
func (s *userRepoStub) SetResetToken(ctx context.Context, id uint, hash string, expiresAt time.Time) error {
	return s.setResetTokenFn(ctx, id, hash, expiresAt)
}
func (s *userRepoStub) ClearResetToken(ctx context.Context, id uint) error {
	return s.clearResetTokenFn(ctx, id)
}
func (s *userRepoStub) SetVerified(ctx context.Context, id uint) error {
	return s.setVerifiedFn(ctx, id)
}

func noopUserRepo() *userRepoStub {
	return &userRepoStub{
		getByIDFn: func(_ context.Context, id uint) (*models.User, error) {
			return &models.User{ID: id, Name: "user", Role: models.RoleUser}, nil
		},
		getByEmailFn:          func(_ context.Context, _ string) (*models.User, error) { return nil, nil },
		getByResetTokenHashFn: func(_ context.Context, _ string, _ time.Time) (*models.User, error) { return nil, nil },
		createFn:              func(_ context.Context, u *models.User) error { u.ID = 1; return nil },
		updateFieldsFn:        func(_ context.Context, _ uint, _ *models.User, _ ...string) error { return nil },
		updatePasswordFn:      func(_ context.Context, _ uint, _ string) error { return nil },
		setResetTokenFn:       func(_ context.Context, _ uint, _ string, _ time.Time) error { return nil },
		clearResetTokenFn:     func(_ context.Context, _ uint) error { return nil },
		setVerifiedFn:         func(_ context.Context, _ uint) error { return nil },
	}
}

// socialRepoStub is a stub for repository.SocialRepository.
type socialRepoStub struct {
	toggleFollowFn    func(context.Context, uint, uint) (bool, error)
	isFollowingFn     func(context.Context, uint, uint) (bool, error)
	followersFn       func(context.Context, uint) ([]models.UserSummary, error)
	followingFn       func(context.Context, uint) ([]models.UserSummary, error)
	toggleFavouriteFn func(context.Context, uint, uint) (bool, error)
}

func (s *socialRepoStub) ToggleFollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.toggleFollowFn(ctx, followerID, followeeID)
}
func (s *socialRepoStub) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	return s.isFollowingFn(ctx, followerID, followeeID)
}
func (s *socialRepoStub) Followers(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return s.followersFn(ctx, userID)
}
func (s *socialRepoStub) Following(ctx context.Context, userID uint) ([]models.UserSummary, error) {
	return s.followingFn(ctx, userID)
}
func (s *socialRepoStub) ToggleFavourite(ctx context.Context, userID, postID uint) (bool, error) {
	return s.toggleFavouriteFn(ctx, userID, postID)
}

func noopSocialRepo() *socialRepoStub {
	return &socialRepoStub{
		toggleFollowFn:    func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
		isFollowingFn:     func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		followersFn:       func(_ context.Context, _ uint) ([]models.UserSummary, error) { return []models.UserSummary{}, nil },
		followingFn:       func(_ context.Context, _ uint) ([]models.UserSummary, error) { return []models.UserSummary{}, nil },
		toggleFavouriteFn: func(_ context.Context, _, _ uint) (bool, error) { return true, nil },
	}
}

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn         func(context.Context, *models.Post) error
	getByIDFn        func(context.Context, uint) (*models.Post, error)
	existsFn         func(context.Context, uint) (bool, error)
	listFn           func(context.Context, models.PostFilter) ([]models.Post, error)
	listFavouritesFn func(context.Context, uint, int, int) ([]models.Post, error)
	updateFieldsFn   func(context.Context, uint, *models.Post, ...string) error
	deleteFn         func(context.Context, uint) error
	setVoteFn        func(context.Context, uint, uint, models.VoteDirection) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id)
}
func (s *postRepoStub) Exists(ctx context.Context, id uint) (bool, error) {
	return s.existsFn(ctx, id)
}
func (s *postRepoStub) List(ctx context.Context, filter models.PostFilter) ([]models.Post, error) {
	return s.listFn(ctx, filter)
}
func (s *postRepoStub) ListFavourites(ctx context.Context, userID uint, limit, offset int) ([]models.Post, error) {
	return s.listFavouritesFn(ctx, userID, limit, offset)
}
func (s *postRepoStub) UpdateFields(ctx context.Context, id uint, patch *models.Post, fields ...string) error {
	return s.updateFieldsFn(ctx, id, patch, fields...)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) SetVote(ctx context.Context, postID, userID uint, direction models.VoteDirection) error {
	return s.setVoteFn(ctx, postID, userID, direction)
}

// postOwnedBy returns a GetByID stub for a post written by authorID.
func postOwnedBy(authorID uint) func(context.Context, uint) (*models.Post, error) {
	return func(_ context.Context, id uint) (*models.Post, error) {
		return &models.Post{ID: id, Title: "Tomatoes", AuthorID: authorID, Author: models.User{ID: authorID}}, nil
	}
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:         func(_ context.Context, p *models.Post) error { p.ID = 1; return nil },
		getByIDFn:        postOwnedBy(1),
		existsFn:         func(_ context.Context, _ uint) (bool, error) { return true, nil },
		listFn:           func(_ context.Context, _ models.PostFilter) ([]models.Post, error) { return nil, nil },
		listFavouritesFn: func(_ context.Context, _ uint, _, _ int) ([]models.Post, error) { return nil, nil },
		updateFieldsFn:   func(_ context.Context, _ uint, _ *models.Post, _ ...string) error { return nil },
		deleteFn:         func(_ context.Context, _ uint) error { return nil },
		setVoteFn:        func(_ context.Context, _, _ uint, _ models.VoteDirection) error { return nil },
	}
}

// commentRepoStub is a stub for repository.CommentRepository.
type commentRepoStub struct {
	createFn        func(context.Context, *models.Comment) error
	getByIDFn       func(context.Context, uint, uint) (*models.Comment, error)
	updateContentFn func(context.Context, uint, string) error
	deleteFn        func(context.Context, uint) error
	createReplyFn   func(context.Context, *models.Reply) error
}

func (s *commentRepoStub) Create(ctx context.Context, comment *models.Comment) error {
	return s.createFn(ctx, comment)
}
func (s *commentRepoStub) GetByID(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	return s.getByIDFn(ctx, postID, commentID)
}
func (s *commentRepoStub) UpdateContent(ctx context.Context, commentID uint, content string) error {
	return s.updateContentFn(ctx, commentID, content)
}
func (s *commentRepoStub) Delete(ctx context.Context, commentID uint) error {
	return s.deleteFn(ctx, commentID)
}
func (s *commentRepoStub) CreateReply(ctx context.Context, reply *models.Reply) error {
	return s.createReplyFn(ctx, reply)
}

func noopCommentRepo() *commentRepoStub {
	return &commentRepoStub{
		createFn: func(_ context.Context, c *models.Comment) error { c.ID = 1; return nil },
		getByIDFn: func(_ context.Context, postID, commentID uint) (*models.Comment, error) {
			return &models.Comment{ID: commentID, PostID: postID, AuthorID: 1}, nil
		},
		updateContentFn: func(_ context.Context, _ uint, _ string) error { return nil },
		deleteFn:        func(_ context.Context, _ uint) error { return nil },
		createReplyFn:   func(_ context.Context, r *models.Reply) error { r.ID = 1; return nil },
	}
}

// paymentRepoStub is a stub for repository.PaymentRepository.
type paymentRepoStub struct {
	createFn         func(context.Context, *models.Payment) error
	getBySessionIDFn func(context.Context, string) (*models.Payment, error)
	completeFn       func(context.Context, *models.Payment) error
	markFailedFn     func(context.Context, string) (bool, error)
}

func (s *paymentRepoStub) Create(ctx context.Context, p *models.Payment) error {
	return s.createFn(ctx, p)
}
func (s *paymentRepoStub) GetBySessionID(ctx context.Context, sessionID string) (*models.Payment, error) {
	return s.getBySessionIDFn(ctx, sessionID)
}
func (s *paymentRepoStub) Complete(ctx context.Context, p *models.Payment) error {
	return s.completeFn(ctx, p)
}
func (s *paymentRepoStub) MarkFailed(ctx context.Context, sessionID string) (bool, error) {
	return s.markFailedFn(ctx, sessionID)
}

func noopPaymentRepo() *paymentRepoStub {
	return &paymentRepoStub{
		createFn:         func(_ context.Context, _ *models.Payment) error { return nil },
		getBySessionIDFn: func(_ context.Context, _ string) (*models.Payment, error) { return nil, nil },
		completeFn:       func(_ context.Context, _ *models.Payment) error { return nil },
		markFailedFn:     func(_ context.Context, _ string) (bool, error) { return false, nil },
	}
}

// processorStub is a stub for payment.Processor.
type processorStub struct {
	createFn func(context.Context, payment.CheckoutRequest) (*payment.CheckoutSession, error)
	parseFn  func([]byte, string) (*payment.WebhookEvent, error)
}

func (s *processorStub) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	return s.createFn(ctx, req)
}
func (s *processorStub) ParseWebhook(payload []byte, signature string) (*payment.WebhookEvent, error) {
	return s.parseFn(payload, signature)
}

// plainHasher marks secrets instead of hashing them so tests stay fast.
type plainHasher struct {
	err error
}

func (h plainHasher) Hash(plain string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plain, nil
}
func (plainHasher) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

type tokenStub struct{}

func (tokenStub) Issue(userID uint, role models.Role) (string, auth.Claims, error) {
	return "token-for-" + string(role), auth.Claims{UserID: userID, Role: role, ID: "jti"}, nil
}

type revokerStub struct {
	jti string
	ttl time.Duration
}

func (r *revokerStub) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.jti, r.ttl = jti, ttl
	return nil
}

// mailerStub records sent messages and fails when err is set.
type mailerStub struct {
	err  error
	sent []mailer.Message
}

func (m *mailerStub) Send(_ context.Context, msg mailer.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (r *eventRecorder) Notify(_ context.Context, ev notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

var errDB = errors.New("database is on fire")

// assertAppError asserts that err is an AppError with code.
func assertAppError(t *testing.T, err error, code string) *models.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	return appErr
}

// assertValidationError asserts that err is an AppError with code VALIDATION_ERROR.
func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

// assertUnauthorizedError asserts that err is an AppError with code UNAUTHORIZED.
func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeUnauthorized)
}
