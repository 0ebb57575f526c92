package service

import (
	"context"
	"testing"

	"sprout/internal/models"
	"sprout/internal/policy"
	"sprout/internal/repository"
	"sprout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type services struct {
	db       *gorm.DB
	posts    *PostService
	comments *CommentService
	profiles *ProfileService
	auth     *AuthService
}

// newServices wires every service to repositories on a fresh SQLite database.
func newServices(t *testing.T) services {
	t.Helper()
	db := testutil.NewTestDB(t)
	users := repository.NewUserRepository(db)
	social := repository.NewSocialRepository(db)
	posts := repository.NewPostRepository(db)
	comments := repository.NewCommentRepository(db)
	return services{
		db:       db,
		posts:    NewPostService(posts, users, social, nil, nil),
		comments: NewCommentService(comments, posts, users, nil, nil),
		profiles: NewProfileService(users, social, nil),
		auth:     NewAuthService(users, plainHasher{}, tokenStub{}, &revokerStub{}, &mailerStub{}, ""),
	}
}

func actorOf(u *models.User) policy.Actor {
	return policy.Actor{ID: u.ID, Role: u.Role}
}

func TestScenario_PostLifecycle(t *testing.T) {
	t.Parallel()

	s := newServices(t)
	ctx := context.Background()
	alice := actorOf(testutil.MustCreateUser(t, s.db, "Alice"))
	bob := actorOf(testutil.MustCreateUser(t, s.db, "Bob"))

	post, err := s.posts.CreatePost(ctx, alice, validPostInput())
	require.NoError(t, err)
	assert.Equal(t, alice.ID, post.Author.ID)

	_, err = s.posts.UpdatePost(ctx, bob, post.ID, UpdatePostInput{Title: strPtr("Bob was here")})
	assertUnauthorizedError(t, err)

	view, err := s.comments.AddComment(ctx, bob, post.ID, CommentInput{Content: "Try companion planting basil."})
	require.NoError(t, err)
	require.Len(t, view.Comments, 1)
	commentID := view.Comments[0].ID
	assert.Equal(t, bob.ID, view.Comments[0].Author.ID)

	view, err = s.comments.AddReply(ctx, alice, post.ID, commentID, CommentInput{Content: "Thanks, will do!"})
	require.NoError(t, err)
	require.Len(t, view.Comments[0].Replies, 1)
	assert.Equal(t, alice.ID, view.Comments[0].Replies[0].Author.ID)

	_, err = s.comments.EditComment(ctx, alice, post.ID, commentID, CommentInput{Content: "edited by someone else"})
	assertUnauthorizedError(t, err)

	require.NoError(t, s.posts.DeletePost(ctx, alice, post.ID))
	_, err = s.posts.GetPost(ctx, bob, post.ID)
	assertAppError(t, err, models.CodeNotFound)

	var remaining int64
	require.NoError(t, s.db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&remaining).Error)
	assert.Zero(t, remaining, "comments go with their post")
}

func TestScenario_VotesAreIdempotentAndExclusive(t *testing.T) {
	t.Parallel()

	s := newServices(t)
	ctx := context.Background()
	author := testutil.MustCreateUser(t, s.db, "Author")
	voter := actorOf(testutil.MustCreateUser(t, s.db, "Voter"))
	post := testutil.MustCreatePost(t, s.db, author, "Pruning roses", models.CategoryFlowers)

	_, err := s.posts.Upvote(ctx, voter, post.ID)
	require.NoError(t, err)
	view, err := s.posts.Upvote(ctx, voter, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{voter.ID}, view.Upvotes)
	assert.Equal(t, 1, view.UpvoteCount)

	view, err = s.posts.Downvote(ctx, voter, post.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Upvotes)
	assert.Equal(t, []uint{voter.ID}, view.Downvotes)

	view, err = s.posts.Upvote(ctx, voter, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, view.UpvoteCount)
	assert.Zero(t, view.DownvoteCount)

	_, err = s.posts.Upvote(ctx, voter, post.ID+100)
	assertAppError(t, err, models.CodeNotFound)
}

func TestScenario_FollowTwiceRestoresState(t *testing.T) {
	t.Parallel()

	s := newServices(t)
	ctx := context.Background()
	alice := actorOf(testutil.MustCreateUser(t, s.db, "Alice"))
	bob := actorOf(testutil.MustCreateUser(t, s.db, "Bob"))

	res, err := s.profiles.ToggleFollow(ctx, alice, bob.ID)
	require.NoError(t, err)
	assert.True(t, res.Following)

	profile, err := s.profiles.GetProfile(ctx, bob)
	require.NoError(t, err)
	require.Len(t, profile.Followers, 1)
	assert.Equal(t, alice.ID, profile.Followers[0].ID)

	res, err = s.profiles.ToggleFollow(ctx, alice, bob.ID)
	require.NoError(t, err)
	assert.False(t, res.Following)

	profile, err = s.profiles.GetProfile(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, profile.Followers)
}

func TestScenario_FavouritesToggle(t *testing.T) {
	t.Parallel()

	s := newServices(t)
	ctx := context.Background()
	author := testutil.MustCreateUser(t, s.db, "Author")
	reader := actorOf(testutil.MustCreateUser(t, s.db, "Reader"))
	post := testutil.MustCreatePost(t, s.db, author, "Growing figs", models.CategoryFruits)

	res, err := s.posts.ToggleFavourite(ctx, reader, post.ID)
	require.NoError(t, err)
	assert.True(t, res.IsFavourite)

	favs, err := s.posts.ListFavourites(ctx, reader, reader.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, favs, 1)
	assert.Equal(t, post.ID, favs[0].ID)

	res, err = s.posts.ToggleFavourite(ctx, reader, post.ID)
	require.NoError(t, err)
	assert.False(t, res.IsFavourite)

	favs, err = s.posts.ListFavourites(ctx, reader, reader.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, favs)
}

func TestScenario_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	s := newServices(t)
	ctx := context.Background()

	_, err := s.auth.Register(ctx, validRegisterInput())
	require.NoError(t, err)

	in := validRegisterInput()
	in.Email = "ALICE@example.com"
	_, err = s.auth.Register(ctx, in)
	assertAppError(t, err, models.CodeConflict)

	var count int64
	require.NoError(t, s.db.Model(&models.User{}).Where("email = ?", "alice@example.com").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	res, err := s.auth.Login(ctx, LoginInput{Email: "alice@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "token-for-user", res.Token)
}
