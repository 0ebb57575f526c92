// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"sprout/internal/auth"
	"sprout/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the login password of every seeded account.
const DefaultPassword = "password123"

// DefaultAnswers are the security answers of every seeded account.
var DefaultAnswers = []string{"rex", "springfield"}

var plantNames = []string{
	"tomatoes", "basil", "roses", "lavender", "strawberries", "courgettes",
	"hydrangeas", "apple trees", "garlic", "sunflowers", "blueberries", "boxwood",
}

var tipTemplates = []string{
	"How I grow %s in a small garden",
	"Five mistakes to avoid with %s",
	"Watering schedule for %s",
	"Companion planting for %s",
	"Pruning %s the right way",
}

// Factory builds domain entities and persists them to the database.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand

	// synthetic ID counter when running in DryRun mode
	nextID   uint
	password string
	answers  []string
}

// NewFactory creates a new Factory bound to db. db may be nil in DryRun mode.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	gofakeit.Seed(time.Now().UnixNano())
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // seeding only
		nextID: 1000,
	}
}

// credentials hashes the shared password and answers once per factory.
func (f *Factory) credentials() (string, []string, error) {
	if f.password != "" {
		return f.password, f.answers, nil
	}
	if f.opts.SkipBcrypt {
		f.password = DefaultPassword
		f.answers = append([]string(nil), DefaultAnswers...)
		return f.password, f.answers, nil
	}

	hasher := auth.NewBcryptHasher(f.opts.BcryptCost)
	password, err := hasher.Hash(DefaultPassword)
	if err != nil {
		return "", nil, fmt.Errorf("hash seed password: %w", err)
	}
	answers := make([]string, 0, len(DefaultAnswers))
	for _, a := range DefaultAnswers {
		h, err := hasher.Hash(a)
		if err != nil {
			return "", nil, fmt.Errorf("hash seed answer: %w", err)
		}
		answers = append(answers, h)
	}
	f.password, f.answers = password, answers
	return password, answers, nil
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	password, answers, err := f.credentials()
	if err != nil {
		return nil, err
	}

	name := gofakeit.Name()
	if len(name) > 50 {
		name = name[:50]
	}
	user := &models.User{
		Name:            name,
		Email:           strings.ToLower(fmt.Sprintf("%s.%s@example.com", gofakeit.Username(), gofakeit.LetterN(4))),
		Password:        password,
		Role:            models.RoleUser,
		Phone:           gofakeit.Numerify("07#########"),
		Address:         gofakeit.Street(),
		ProfilePicture:  fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		SecurityAnswers: answers,
	}

	for _, override := range overrides {
		override(user)
	}

	if f.opts.DryRun {
		f.nextID++
		user.ID = f.nextID
		log.Printf("[dry-run] CreateUser: %s <%s>", user.Name, user.Email)
		return user, nil
	}

	if err := f.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// BuildPost constructs a post in category without persisting it.
// CreatedAt is spread over the last MaxDays days.
func (f *Factory) BuildPost(author *models.User, category models.Category, overrides ...func(*models.Post)) *models.Post {
	plant := plantNames[f.rng.Intn(len(plantNames))]
	title := fmt.Sprintf(tipTemplates[f.rng.Intn(len(tipTemplates))], plant)

	post := &models.Post{
		Title:     strings.ToUpper(title[:1]) + title[1:],
		Content:   gofakeit.Paragraph(2, 4, 12, "\n\n"),
		Category:  category,
		Tags:      []string{strings.ReplaceAll(plant, " ", "-"), strings.ToLower(string(category))},
		IsPremium: f.rng.Float64() < f.opts.PremiumRatio,
		AuthorID:  author.ID,
	}
	if f.rng.Float64() < 0.4 {
		post.Images = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/600", gofakeit.UUID())}
	}

	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	post.CreatedAt = time.Now().Add(-time.Duration(f.rng.Intn(maxDays*24*60)) * time.Minute)
	post.UpdatedAt = post.CreatedAt

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePostsBatch persists posts in a single statement when possible.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			f.nextID++
			p.ID = f.nextID
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	return f.db.CreateInBatches(posts, 100).Error
}

// CreateComment persists a comment by author on post.
func (f *Factory) CreateComment(author *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:   post.ID,
		AuthorID: author.ID,
		Content:  gofakeit.Sentence(12),
	}
	for _, override := range overrides {
		override(comment)
	}
	if err := f.db.Create(comment).Error; err != nil {
		return nil, err
	}
	return comment, nil
}

// CreateReply persists a reply by author to comment.
func (f *Factory) CreateReply(author *models.User, comment *models.Comment) (*models.Reply, error) {
	reply := &models.Reply{
		CommentID: comment.ID,
		AuthorID:  author.ID,
		Content:   gofakeit.Sentence(8),
	}
	if err := f.db.Create(reply).Error; err != nil {
		return nil, err
	}
	return reply, nil
}

// Vote records voter's vote on post, replacing any earlier vote.
func (f *Factory) Vote(voter *models.User, post *models.Post, direction models.VoteDirection) error {
	return f.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"direction", "updated_at"}),
	}).Create(&models.PostVote{PostID: post.ID, UserID: voter.ID, Direction: direction}).Error
}

// Follow makes follower follow followee. Existing edges are kept.
func (f *Factory) Follow(follower, followee *models.User) error {
	if follower.ID == followee.ID {
		return nil
	}
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: follower.ID, FolloweeID: followee.ID}).Error
}

// Favourite saves post to user's favourites. Existing entries are kept.
func (f *Factory) Favourite(user *models.User, post *models.Post) error {
	return f.db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Favourite{UserID: user.ID, PostID: post.ID}).Error
}
