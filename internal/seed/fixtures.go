package seed

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"socialconnect/internal/auth"
	"socialconnect/internal/models"
	"socialconnect/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed fixtures/*.yaml
var builtinFixtures embed.FS

// Fixture is a hand-written dataset loaded from YAML.
type Fixture struct {
	Users   []FixtureUser   `yaml:"users"`
	Follows []FixtureFollow `yaml:"follows"`
	Posts   []FixturePost   `yaml:"posts"`
}

// FixtureUser describes one account. An empty password means DefaultPassword.
type FixtureUser struct {
	Username   string `yaml:"username"`
	Email      string `yaml:"email"`
	Password   string `yaml:"password"`
	FirstName  string `yaml:"first_name"`
	LastName   string `yaml:"last_name"`
	Bio        string `yaml:"bio"`
	Visibility string `yaml:"visibility"`
	Admin      bool   `yaml:"admin"`
	Inactive   bool   `yaml:"inactive"`
}

// FixtureFollow is a follow edge between two fixture usernames.
type FixtureFollow struct {
	Follower  string `yaml:"follower"`
	Following string `yaml:"following"`
}

// FixturePost is a post with its likes and comments.
type FixturePost struct {
	Author   string           `yaml:"author"`
	Category string           `yaml:"category"`
	Content  string           `yaml:"content"`
	LikedBy  []string         `yaml:"liked_by"`
	Comments []FixtureComment `yaml:"comments"`
}

// FixtureComment is a comment on a fixture post.
type FixtureComment struct {
	Author  string `yaml:"author"`
	Content string `yaml:"content"`
}

// LoadFixture reads a fixture from path, or a built-in fixture when path
// names one (e.g. "demo").
func LoadFixture(path string) (*Fixture, error) {
	data, err := builtinFixtures.ReadFile("fixtures/" + strings.TrimSuffix(path, ".yaml") + ".yaml")
	if err != nil {
		data, err = os.ReadFile(path) // #nosec G304: operator supplied path
		if err != nil {
			return nil, fmt.Errorf("read fixture %s: %w", path, err)
		}
	}
	return ParseFixture(data)
}

// ParseFixture decodes and validates a YAML fixture.
func ParseFixture(data []byte) (*Fixture, error) {
	var fx Fixture
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if err := fx.Validate(); err != nil {
		return nil, err
	}
	return &fx, nil
}

// Validate checks field formats and that every reference names a fixture user.
func (fx *Fixture) Validate() error {
	var errs []error
	known := make(map[string]bool, len(fx.Users))
	for i, u := range fx.Users {
		if err := validation.ValidateUsername(u.Username); err != nil {
			errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
		}
		if known[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		known[u.Username] = true
		if u.Email != "" {
			if err := validation.ValidateEmail(u.Email); err != nil {
				errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
			}
		}
		if u.Visibility != "" {
			if _, err := models.ParseVisibility(u.Visibility); err != nil {
				errs = append(errs, fmt.Errorf("users[%d]: %w", i, err))
			}
		}
	}

	ref := func(where, name string) {
		if !known[name] {
			errs = append(errs, fmt.Errorf("%s: unknown user %q", where, name))
		}
	}
	for i, f := range fx.Follows {
		ref(fmt.Sprintf("follows[%d]", i), f.Follower)
		ref(fmt.Sprintf("follows[%d]", i), f.Following)
		if f.Follower == f.Following {
			errs = append(errs, fmt.Errorf("follows[%d]: %q cannot follow itself", i, f.Follower))
		}
	}
	for i, p := range fx.Posts {
		where := fmt.Sprintf("posts[%d]", i)
		ref(where, p.Author)
		if _, err := models.ParseCategory(p.Category); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		if strings.TrimSpace(p.Content) == "" {
			errs = append(errs, fmt.Errorf("%s: content is required", where))
		} else if err := validation.ValidateLength("content", p.Content, validation.MaxPostLength); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", where, err))
		}
		for _, liker := range p.LikedBy {
			ref(where+".liked_by", liker)
		}
		for j, c := range p.Comments {
			ref(fmt.Sprintf("%s.comments[%d]", where, j), c.Author)
		}
	}
	return errors.Join(errs...)
}

// ApplyFixture writes fx in one transaction and returns the users by name.
// Usernames that already exist are reused rather than recreated.
func (s *Seeder) ApplyFixture(fx *Fixture) (map[string]*models.User, error) {
	users := make(map[string]*models.User, len(fx.Users))
	if s.opts.DryRun {
		for _, u := range fx.Users {
			users[u.Username] = &models.User{ID: s.factory.assignID(), Username: u.Username}
		}
		log.Printf("[dry-run] ApplyFixture: %d users, %d posts", len(fx.Users), len(fx.Posts))
		return users, nil
	}

	cost := bcrypt.DefaultCost
	if s.opts.SkipBcrypt {
		cost = bcrypt.MinCost
	}
	hasher := auth.NewPasswordHasher(cost)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		f := &Factory{db: tx, opts: s.opts, rng: s.factory.rng, nextID: s.factory.nextID}

		for _, fu := range fx.Users {
			var existing models.User
			err := tx.Where("username = ?", fu.Username).First(&existing).Error
			if err == nil {
				users[fu.Username] = &existing
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			password := fu.Password
			if password == "" {
				password = DefaultPassword
			}
			digest, err := hasher.Hash(password)
			if err != nil {
				return err
			}
			user := &models.User{
				Username:          fu.Username,
				Email:             validation.NormalizeEmail(fu.Email),
				PasswordHash:      digest,
				FirstName:         fu.FirstName,
				LastName:          fu.LastName,
				Bio:               fu.Bio,
				IsActive:          !fu.Inactive,
				IsAdmin:           fu.Admin,
				ProfileVisibility: models.Visibility(fu.Visibility),
			}
			if user.Email == "" {
				user.Email = fu.Username + "@example.com"
			}
			if user.ProfileVisibility == "" {
				user.ProfileVisibility = models.VisibilityPublic
			}
			if err := tx.Create(user).Error; err != nil {
				return fmt.Errorf("create user %s: %w", fu.Username, err)
			}
			users[fu.Username] = user
		}

		for _, edge := range fx.Follows {
			err := tx.Where(models.Follow{FollowerID: users[edge.Follower].ID, FollowingID: users[edge.Following].ID}).
				FirstOrCreate(&models.Follow{}).Error
			if err != nil {
				return fmt.Errorf("follow %s -> %s: %w", edge.Follower, edge.Following, err)
			}
		}

		for _, fp := range fx.Posts {
			category, _ := models.ParseCategory(fp.Category)
			post := &models.Post{
				AuthorID: users[fp.Author].ID,
				Content:  validation.NormalizeText(fp.Content),
				Category: category,
				IsActive: true,
			}
			if err := tx.Create(post).Error; err != nil {
				return fmt.Errorf("create post by %s: %w", fp.Author, err)
			}
			for _, liker := range fp.LikedBy {
				if err := f.CreateLike(users[liker], post); err != nil {
					return fmt.Errorf("like by %s: %w", liker, err)
				}
			}
			for _, fc := range fp.Comments {
				content := validation.NormalizeText(fc.Content)
				if _, err := f.CreateComment(users[fc.Author], post, func(c *models.Comment) { c.Content = content }); err != nil {
					return fmt.Errorf("comment by %s: %w", fc.Author, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("✓ fixture applied: %d users, %d follows, %d posts", len(users), len(fx.Follows), len(fx.Posts))
	return users, nil
}
