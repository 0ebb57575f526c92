package seed

import (
	"fmt"
	"log"

	"sprout/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers     int
	NumPosts     int
	ShouldClean  bool
	SkipBcrypt   bool
	BcryptCost   int
	DryRun       bool
	MaxDays      int
	PremiumRatio float64
	// Preset names an entry of CategoryDistributions. Empty means "balanced".
	Preset string
}

// Distribution weights the share of posts per category.
type Distribution map[models.Category]int

// CategoryDistributions are the named post mixes accepted by Options.Preset.
var CategoryDistributions = map[string]Distribution{
	"balanced": {
		models.CategoryVegetables:  40,
		models.CategoryFlowers:     30,
		models.CategoryLandscaping: 15,
		models.CategoryFruits:      15,
	},
	"kitchen-garden": {
		models.CategoryVegetables: 60,
		models.CategoryFruits:     40,
	},
	"ornamental": {
		models.CategoryFlowers:     50,
		models.CategoryLandscaping: 50,
	},
}

var defaultDistribution = CategoryDistributions["balanced"]

// computeCounts splits total across models.Categories by d's weights. The
// rounding remainder goes to the first weighted category in display order.
func computeCounts(total int, d Distribution) map[models.Category]int {
	counts := make(map[models.Category]int, len(models.Categories))
	weightSum := 0
	for _, c := range models.Categories {
		weightSum += d[c]
	}
	if total <= 0 || weightSum == 0 {
		return counts
	}

	assigned := 0
	var first models.Category
	for _, c := range models.Categories {
		if d[c] == 0 {
			continue
		}
		if first == "" {
			first = c
		}
		counts[c] = total * d[c] / weightSum
		assigned += counts[c]
	}
	counts[first] += total - assigned
	return counts
}

// Seed populates the database with demo gardeners, tips and interactions.
func Seed(db *gorm.DB, opts Options) error {
	log.Printf("🌱 Starting database seeding with %d users and %d posts...", opts.NumUsers, opts.NumPosts)

	dist := defaultDistribution
	if opts.Preset != "" {
		d, ok := CategoryDistributions[opts.Preset]
		if !ok {
			return fmt.Errorf("unknown seed preset %q", opts.Preset)
		}
		dist = d
	}

	if opts.ShouldClean && !opts.DryRun {
		if err := clearData(db); err != nil {
			return fmt.Errorf("failed to clear data: %w", err)
		}
	}

	f := NewFactory(db, opts)

	users, err := createUsers(f, opts.NumUsers)
	if err != nil {
		return fmt.Errorf("failed to create users: %w", err)
	}
	log.Printf("✓ %d users created", len(users))
	if len(users) == 0 {
		return nil
	}

	posts, err := createPosts(f, users, opts.NumPosts, dist)
	if err != nil {
		return fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	if opts.DryRun {
		log.Println("[dry-run] skipping interactions")
		return nil
	}

	if err := createInteractions(f, users, posts); err != nil {
		return fmt.Errorf("failed to create interactions: %w", err)
	}

	log.Println("🎉 Database seeding completed successfully!")
	return nil
}

// clearData removes every row in dependency order.
func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	return db.Transaction(func(tx *gorm.DB) error {
		all := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{
			&models.Reply{}, &models.Comment{}, &models.PostVote{}, &models.Favourite{},
			&models.Post{}, &models.Follow{}, &models.Payment{}, &models.User{},
		} {
			if err := all.Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func createUsers(f *Factory, count int) ([]*models.User, error) {
	users := make([]*models.User, 0, count)

	// Fixed accounts so demo logins are predictable.
	fixed := []struct {
		name  string
		email string
		role  models.Role
	}{
		{"Demo Gardener", "gardener@example.com", models.RoleUser},
		{"Demo Admin", "admin@example.com", models.RoleAdmin},
	}
	for _, fx := range fixed {
		if len(users) >= count {
			break
		}
		u, err := f.CreateUser(func(u *models.User) {
			u.Name = fx.name
			u.Email = fx.email
			u.Role = fx.role
		})
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}

	for len(users) < count {
		u, err := f.CreateUser()
		if err != nil {
			return nil, err
		}
		users = append(users, u)
		if len(users)%100 == 0 {
			log.Printf("Created %d users...", len(users))
		}
	}
	return users, nil
}

func createPosts(f *Factory, users []*models.User, count int, dist Distribution) ([]*models.Post, error) {
	posts := make([]*models.Post, 0, count)
	counts := computeCounts(count, dist)
	for _, category := range models.Categories {
		for i := 0; i < counts[category]; i++ {
			author := users[f.rng.Intn(len(users))]
			posts = append(posts, f.BuildPost(author, category))
		}
	}
	if err := f.CreatePostsBatch(posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// createInteractions wires a small social mesh: every user follows a few
// others, votes on and saves some posts, and the first posts get threads.
func createInteractions(f *Factory, users []*models.User, posts []*models.Post) error {
	for _, u := range users {
		for i := 0; i < 3 && len(users) > 1; i++ {
			if err := f.Follow(u, users[f.rng.Intn(len(users))]); err != nil {
				return err
			}
		}
		for _, p := range posts {
			switch roll := f.rng.Float64(); {
			case roll < 0.3:
				if err := f.Vote(u, p, models.VoteUp); err != nil {
					return err
				}
			case roll < 0.35:
				if err := f.Vote(u, p, models.VoteDown); err != nil {
					return err
				}
			case roll < 0.4:
				if err := f.Favourite(u, p); err != nil {
					return err
				}
			}
		}
	}

	for i, p := range posts {
		if i >= 10 {
			break
		}
		c, err := f.CreateComment(users[f.rng.Intn(len(users))], p)
		if err != nil {
			return err
		}
		if _, err := f.CreateReply(users[f.rng.Intn(len(users))], c); err != nil {
			return err
		}
	}
	log.Println("✓ follows, votes, favourites and comments created")
	return nil
}
