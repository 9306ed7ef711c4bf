package seed

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"socialconnect/internal/database"
	"socialconnect/internal/models"

	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	DryRun     bool
	SkipBcrypt bool
	BatchSize  int
	MaxDays    int
	// RandomSeed makes generated data reproducible when non-zero.
	RandomSeed int64
	// Distribution overrides the category mix of generated posts.
	Distribution string
}

// Preset is a named size for a seeded dataset.
type Preset struct {
	Users        int
	Posts        int
	Distribution string
}

// Presets are the datasets selectable from the seed command.
var Presets = map[string]Preset{
	"minimal": {Users: 5, Posts: 10},
	"demo":    {Users: 50, Posts: 200},
	"qa":      {Users: 30, Posts: 150, Distribution: "questions"},
	"large":   {Users: 500, Posts: 4000},
}

// CategoryDistribution is the percentage of posts generated per category.
type CategoryDistribution struct {
	General      int
	Announcement int
	Question     int
}

var defaultDistribution = CategoryDistribution{General: 70, Announcement: 10, Question: 20}

// CategoryDistributions are named alternatives to the default mix.
var CategoryDistributions = map[string]CategoryDistribution{
	"default":       defaultDistribution,
	"questions":     {General: 30, Announcement: 0, Question: 70},
	"announcements": {General: 40, Announcement: 60, Question: 0},
}

// computeCounts splits total posts by dist. Rounding leftovers go to general.
func computeCounts(total int, dist CategoryDistribution) (general, announcement, question int) {
	announcement = total * dist.Announcement / 100
	question = total * dist.Question / 100
	general = total - announcement - question
	return general, announcement, question
}

// Seeder populates a database with users, follow edges and engagement.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a Seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// Factory exposes the underlying entity factory.
func (s *Seeder) Factory() *Factory {
	return s.factory
}

// ClearAll removes every row of every application table.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	log.Println("🗑️  Clearing existing data...")

	tables := make([]string, 0, len(database.PersistentModels()))
	for _, m := range database.PersistentModels() {
		stmt := &gorm.Statement{DB: s.db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("resolve table: %w", err)
		}
		tables = append(tables, stmt.Schema.Table)
	}

	if s.db.Dialector.Name() == "postgres" {
		return s.db.Exec("TRUNCATE TABLE " + strings.Join(tables, ", ") + " RESTART IDENTITY CASCADE").Error
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for i := len(tables) - 1; i >= 0; i-- {
			if err := tx.Exec("DELETE FROM " + tables[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ApplyPreset seeds the named preset.
func (s *Seeder) ApplyPreset(name string) error {
	preset, ok := Presets[strings.ToLower(name)]
	if !ok {
		names := make([]string, 0, len(Presets))
		for n := range Presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(names, ", "))
	}
	if preset.Distribution != "" && s.opts.Distribution == "" {
		s.opts.Distribution = preset.Distribution
	}

	users, err := s.SeedSocialMesh(preset.Users)
	if err != nil {
		return err
	}
	_, err = s.SeedEngagement(users, preset.Posts)
	return err
}

// SeedSocialMesh creates count users and connects each to a few others.
func (s *Seeder) SeedSocialMesh(count int) ([]*models.User, error) {
	log.Printf("🌱 Creating %d users...", count)
	users := make([]*models.User, 0, count)
	taken := make(map[string]bool, count)

	for attempts := 0; len(users) < count && attempts < count*3; attempts++ {
		user := s.factory.BuildUser()
		if taken[user.Username] {
			continue
		}
		taken[user.Username] = true

		if err := s.factory.SaveUser(user); err != nil {
			log.Printf("Failed to create user %s: %v", user.Username, err)
			continue
		}
		users = append(users, user)
	}
	if len(users) < count {
		return users, fmt.Errorf("created %d of %d users", len(users), count)
	}

	edges := 0
	for i, follower := range users {
		if len(users) < 2 {
			break
		}
		want := 1 + s.factory.rng.Intn(min(5, len(users)-1))
		picked := map[int]bool{i: true}
		for len(picked)-1 < want {
			j := s.factory.rng.Intn(len(users))
			if picked[j] {
				continue
			}
			picked[j] = true
			if err := s.factory.CreateFollow(follower, users[j]); err != nil {
				return users, fmt.Errorf("follow %d -> %d: %w", follower.ID, users[j].ID, err)
			}
			edges++
		}
	}
	log.Printf("✓ %d users created with %d follow edges", len(users), edges)
	return users, nil
}

// SeedEngagement creates numPosts posts spread over users, then likes and
// comments from other users. Post counters match the rows created.
func (s *Seeder) SeedEngagement(users []*models.User, numPosts int) ([]*models.Post, error) {
	if len(users) == 0 {
		return nil, fmt.Errorf("no users to author posts")
	}

	dist := defaultDistribution
	if s.opts.Distribution != "" {
		d, ok := CategoryDistributions[s.opts.Distribution]
		if !ok {
			return nil, fmt.Errorf("unknown distribution %q", s.opts.Distribution)
		}
		dist = d
	}
	general, announcement, question := computeCounts(numPosts, dist)

	rng := s.factory.rng
	posts := make([]*models.Post, 0, numPosts)
	for _, mix := range []struct {
		category models.Category
		n        int
	}{
		{models.CategoryGeneral, general},
		{models.CategoryAnnouncement, announcement},
		{models.CategoryQuestion, question},
	} {
		for i := 0; i < mix.n; i++ {
			posts = append(posts, s.factory.BuildPost(users[rng.Intn(len(users))], mix.category))
		}
	}
	if err := s.factory.CreatePostsBatch(posts); err != nil {
		return nil, fmt.Errorf("failed to create posts: %w", err)
	}
	log.Printf("✓ %d posts created", len(posts))

	likes, comments := 0, 0
	for _, post := range posts {
		likers := rng.Intn(min(len(users), 8) + 1)
		for _, idx := range rng.Perm(len(users))[:likers] {
			if err := s.factory.CreateLike(users[idx], post); err != nil {
				return posts, fmt.Errorf("like post %d: %w", post.ID, err)
			}
			likes++
		}
		for c := rng.Intn(4); c > 0; c-- {
			if _, err := s.factory.CreateComment(users[rng.Intn(len(users))], post); err != nil {
				return posts, fmt.Errorf("comment post %d: %w", post.ID, err)
			}
			comments++
		}
	}
	log.Printf("✓ %d likes and %d comments created", likes, comments)
	return posts, nil
}
