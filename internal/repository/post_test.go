package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"sprout/internal/models"
	"sprout/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voteCounts(t *testing.T, post *models.Post) (up, down []uint) {
	t.Helper()
	view := models.NewPostView(post)
	return view.Upvotes, view.Downvotes
}

func TestPostRepository_SetVoteIsASetNotAToggle(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "Alice")
	bob := testutil.MustCreateUser(t, db, "Bob")
	post := testutil.MustCreatePost(t, db, alice, "Tomatoes", models.CategoryVegetables)

	require.NoError(t, repo.SetVote(ctx, post.ID, bob.ID, models.VoteUp))
	require.NoError(t, repo.SetVote(ctx, post.ID, bob.ID, models.VoteUp))

	loaded, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	up, down := voteCounts(t, loaded)
	assert.Equal(t, []uint{bob.ID}, up)
	assert.Empty(t, down)

	require.NoError(t, repo.SetVote(ctx, post.ID, bob.ID, models.VoteDown))
	loaded, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	up, down = voteCounts(t, loaded)
	assert.Empty(t, up)
	assert.Equal(t, []uint{bob.ID}, down)

	require.NoError(t, repo.SetVote(ctx, post.ID, bob.ID, models.VoteUp))
	loaded, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	up, down = voteCounts(t, loaded)
	assert.Equal(t, []uint{bob.ID}, up)
	assert.Empty(t, down)
}

func TestPostRepository_ConcurrentVotersAreNotLost(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	author := testutil.MustCreateUser(t, db, "Author")
	post := testutil.MustCreatePost(t, db, author, "Roses", models.CategoryFlowers)

	voters := make([]*models.User, 8)
	for i := range voters {
		voters[i] = testutil.MustCreateUser(t, db, fmt.Sprintf("Voter%d", i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(voters))
	for _, v := range voters {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			errs <- repo.SetVote(ctx, post.ID, id, models.VoteUp)
		}(v.ID)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	loaded, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	up, _ := voteCounts(t, loaded)
	assert.Len(t, up, len(voters))
}

func TestPostRepository_ListFiltersSortsAndPages(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "Alice")
	bob := testutil.MustCreateUser(t, db, "Bob")
	carol := testutil.MustCreateUser(t, db, "Carol")

	p1 := testutil.MustCreatePost(t, db, alice, "Carrots", models.CategoryVegetables)
	p2 := testutil.MustCreatePost(t, db, bob, "Tulips", models.CategoryFlowers)
	p3 := testutil.MustCreatePost(t, db, alice, "Kale", models.CategoryVegetables)

	require.NoError(t, repo.SetVote(ctx, p3.ID, bob.ID, models.VoteUp))
	require.NoError(t, repo.SetVote(ctx, p3.ID, carol.ID, models.VoteUp))
	require.NoError(t, repo.SetVote(ctx, p2.ID, alice.ID, models.VoteUp))
	require.NoError(t, repo.SetVote(ctx, p1.ID, carol.ID, models.VoteDown))

	ids := func(posts []models.Post) []uint {
		out := make([]uint, 0, len(posts))
		for _, p := range posts {
			out = append(out, p.ID)
		}
		return out
	}

	tests := []struct {
		name   string
		filter models.PostFilter
		want   []uint
	}{
		{"default insertion order", models.PostFilter{}, []uint{p1.ID, p2.ID, p3.ID}},
		{"category", models.PostFilter{Category: models.CategoryVegetables}, []uint{p1.ID, p3.ID}},
		{"author", models.PostFilter{AuthorID: bob.ID}, []uint{p2.ID}},
		{"category and author", models.PostFilter{Category: models.CategoryFlowers, AuthorID: alice.ID}, []uint{}},
		{"by upvotes", models.PostFilter{SortBy: models.SortByUpvotes}, []uint{p3.ID, p2.ID, p1.ID}},
		{"limit and offset", models.PostFilter{Limit: 1, Offset: 1}, []uint{p2.ID}},
		{"offset past end", models.PostFilter{Offset: 10}, []uint{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(posts))
		})
	}

	posts, err := repo.List(ctx, models.PostFilter{})
	require.NoError(t, err)
	assert.Equal(t, "Alice", posts[0].Author.Name, "authors are expanded")
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	social := NewSocialRepository(db)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "Alice")
	bob := testutil.MustCreateUser(t, db, "Bob")
	post := testutil.MustCreatePost(t, db, alice, "Compost", models.CategoryLandscaping)
	other := testutil.MustCreatePost(t, db, alice, "Hedges", models.CategoryLandscaping)

	comment := &models.Comment{PostID: post.ID, AuthorID: bob.ID, Content: "nice tip"}
	require.NoError(t, comments.Create(ctx, comment))
	require.NoError(t, comments.CreateReply(ctx, &models.Reply{CommentID: comment.ID, AuthorID: alice.ID, Content: "thanks"}))
	require.NoError(t, posts.SetVote(ctx, post.ID, bob.ID, models.VoteUp))
	_, err := social.ToggleFavourite(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	require.NoError(t, posts.SetVote(ctx, other.ID, bob.ID, models.VoteUp))

	require.NoError(t, posts.Delete(ctx, post.ID))

	for _, model := range []any{&models.Comment{}, &models.Reply{}, &models.Favourite{}} {
		var count int64
		require.NoError(t, db.Model(model).Count(&count).Error)
		assert.Zero(t, count, "%T", model)
	}
	var votes int64
	require.NoError(t, db.Model(&models.PostVote{}).Count(&votes).Error)
	assert.Equal(t, int64(1), votes, "votes on other posts survive")

	_, err = posts.GetByID(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	assert.True(t, models.IsCode(posts.Delete(ctx, post.ID), models.CodeNotFound))
}

func TestPostRepository_UpdateFieldsAndFavourites(t *testing.T) {
	db := testutil.NewTestDB(t)
	posts := NewPostRepository(db)
	social := NewSocialRepository(db)
	ctx := context.Background()

	alice := testutil.MustCreateUser(t, db, "Alice")
	first := testutil.MustCreatePost(t, db, alice, "Apples", models.CategoryFruits)
	second := testutil.MustCreatePost(t, db, alice, "Pears", models.CategoryFruits)

	patch := &models.Post{Title: "Apple trees", Tags: []string{"orchard", "pruning"}}
	require.NoError(t, posts.UpdateFields(ctx, first.ID, patch, "title", "tags"))
	loaded, err := posts.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Apple trees", loaded.Title)
	assert.Equal(t, []string{"orchard", "pruning"}, loaded.Tags)
	assert.Equal(t, models.CategoryFruits, loaded.Category)
	assert.Equal(t, alice.ID, loaded.AuthorID)

	_, err = social.ToggleFavourite(ctx, alice.ID, second.ID)
	require.NoError(t, err)
	_, err = social.ToggleFavourite(ctx, alice.ID, first.ID)
	require.NoError(t, err)

	favs, err := posts.ListFavourites(ctx, alice.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, favs, 2)
	assert.Equal(t, second.ID, favs[0].ID, "favourites keep insertion order")
	assert.Equal(t, first.ID, favs[1].ID)

	exists, err := posts.Exists(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = posts.Exists(ctx, 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, DefaultPageSize, 0},
		{-5, -1, DefaultPageSize, 0},
		{10, 20, 10, 20},
		{500, 0, MaxPageSize, 0},
	}
	for _, tt := range tests {
		limit, offset := normalizePage(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}
