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

	"socialconnect/internal/auth"
	"socialconnect/internal/models"
	"socialconnect/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every generated account.
const DefaultPassword = "SeedPassword!2024"

// Factory builds domain entities and persists them to the database.
// It is a thin helper used by seed presets and tests.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	// synthetic ID counter when running in DryRun mode
	nextID uint

	passwordHash string
}

// NewFactory creates a new Factory bound to the provided Gorm DB.
func NewFactory(db *gorm.DB, opts Options) *Factory {
	seed := opts.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)
	return &Factory{
		db:     db,
		opts:   opts,
		rng:    rand.New(rand.NewSource(seed)), // #nosec G404: acceptable for seeding
		nextID: 1000,
	}
}

// hash returns the digest shared by every seeded account. Hashing once keeps
// large meshes fast; SkipBcrypt uses the cheapest cost.
func (f *Factory) hash() string {
	if f.passwordHash != "" {
		return f.passwordHash
	}
	cost := bcrypt.DefaultCost
	if f.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	digest, err := auth.NewPasswordHasher(cost).Hash(DefaultPassword)
	if err != nil {
		log.Printf("seed: hash password: %v", err)
		return ""
	}
	f.passwordHash = digest
	return digest
}

func (f *Factory) assignID() uint {
	f.nextID++
	return f.nextID
}

// pastTime returns a realistic created_at within opts.MaxDays.
func (f *Factory) pastTime() time.Time {
	maxDays := f.opts.MaxDays
	if maxDays <= 0 {
		maxDays = 90
	}
	back := time.Duration(f.rng.Intn(maxDays))*24*time.Hour +
		time.Duration(f.rng.Intn(24))*time.Hour +
		time.Duration(f.rng.Intn(60))*time.Minute
	return time.Now().Add(-back)
}

// BuildUser constructs an active user without persisting it.
func (f *Factory) BuildUser(overrides ...func(*models.User)) *models.User {
	first := gofakeit.FirstName()
	last := gofakeit.LastName()
	username := strings.ToLower(fmt.Sprintf("%s_%s%d", first, last, gofakeit.Number(100, 999)))
	username = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		}
		return -1
	}, username)
	if len(username) > 30 {
		username = strings.TrimRight(username[:30], "_")
	}

	user := &models.User{
		Username:          username,
		Email:             username + "@example.com",
		PasswordHash:      f.hash(),
		FirstName:         first,
		LastName:          last,
		Bio:               truncate(gofakeit.Sentence(10), validation.MaxBioLength),
		AvatarURL:         fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		Location:          gofakeit.City(),
		IsActive:          true,
		ProfileVisibility: f.visibility(),
	}
	for _, override := range overrides {
		override(user)
	}
	return user
}

func (f *Factory) visibility() models.Visibility {
	switch n := f.rng.Intn(10); {
	case n < 7:
		return models.VisibilityPublic
	case n < 9:
		return models.VisibilityFollowersOnly
	default:
		return models.VisibilityPrivate
	}
}

// CreateUser constructs and persists a sample user.
// Optional override functions may modify the generated user before saving.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	user := f.BuildUser(overrides...)
	if err := f.SaveUser(user); err != nil {
		return nil, err
	}
	return user, nil
}

// SaveUser persists a user built by BuildUser.
func (f *Factory) SaveUser(user *models.User) error {
	if f.opts.DryRun {
		user.ID = f.assignID()
		log.Printf("[dry-run] CreateUser: %s", user.Username)
		return nil
	}
	return f.db.Create(user).Error
}

// BuildPost constructs a post of the given category for user but does not
// persist it. Useful for batching.
func (f *Factory) BuildPost(user *models.User, category models.Category, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		AuthorID:  user.ID,
		Content:   truncate(gofakeit.Paragraph(1, 3, 8, " "), validation.MaxPostLength),
		Category:  category,
		IsActive:  true,
		CreatedAt: f.pastTime(),
	}

	switch category {
	case models.CategoryAnnouncement:
		post.Content = truncate(strings.ToUpper(gofakeit.HipsterWord())+": "+gofakeit.Sentence(12), validation.MaxPostLength)
		post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/400", gofakeit.UUID())
	case models.CategoryQuestion:
		post.Content = truncate(gofakeit.Question(), validation.MaxPostLength)
	default:
		if f.rng.Float32() < 0.4 {
			post.ImageURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", gofakeit.UUID())
		}
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// CreatePost constructs and persists a sample post for the given user.
func (f *Factory) CreatePost(user *models.User, category models.Category, overrides ...func(*models.Post)) (*models.Post, error) {
	post := f.BuildPost(user, category, overrides...)
	if f.opts.DryRun {
		post.ID = f.assignID()
		log.Printf("[dry-run] CreatePost: category=%s author=%d", post.Category, post.AuthorID)
		return post, nil
	}
	if err := f.db.Create(post).Error; err != nil {
		return nil, err
	}
	return post, nil
}

// CreatePostsBatch persists multiple posts in as few DB calls as BatchSize allows.
func (f *Factory) CreatePostsBatch(posts []*models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	if f.opts.DryRun {
		for _, p := range posts {
			p.ID = f.assignID()
		}
		log.Printf("[dry-run] CreatePostsBatch: %d posts (no DB write)", len(posts))
		return nil
	}
	size := f.opts.BatchSize
	if size <= 0 {
		size = 100
	}
	return f.db.CreateInBatches(&posts, size).Error
}

// CreateFollow persists a follow edge. Self-follows are rejected.
func (f *Factory) CreateFollow(follower, following *models.User) error {
	if follower.ID == following.ID {
		return fmt.Errorf("user %d cannot follow itself", follower.ID)
	}
	if f.opts.DryRun {
		return nil
	}
	return f.db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error
}

// CreateLike persists a like from user on post and bumps the post counter.
func (f *Factory) CreateLike(user *models.User, post *models.Post) error {
	if f.opts.DryRun {
		post.LikeCount++
		return nil
	}
	return f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.Like{UserID: user.ID, PostID: post.ID}).Error; err != nil {
			return err
		}
		post.LikeCount++
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
}

// CreateComment constructs and persists a comment on post authored by user
// and bumps the post counter.
func (f *Factory) CreateComment(user *models.User, post *models.Post, overrides ...func(*models.Comment)) (*models.Comment, error) {
	comment := &models.Comment{
		PostID:  post.ID,
		UserID:  user.ID,
		Content: truncate(gofakeit.Sentence(8), validation.MaxCommentLength),
	}
	for _, override := range overrides {
		override(comment)
	}

	if f.opts.DryRun {
		comment.ID = f.assignID()
		post.CommentCount++
		return comment, nil
	}

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.Post{}).Where("id = ?", post.ID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
	if err != nil {
		return nil, err
	}
	post.CommentCount++
	return comment, nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
