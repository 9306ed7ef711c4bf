package seed

import (
	"strings"
	"testing"

	"socialconnect/internal/auth"
	"socialconnect/internal/models"
	"socialconnect/internal/testutil"
)

func TestLoadFixture_BuiltInDemo(t *testing.T) {
	fx, err := LoadFixture("demo")
	if err != nil {
		t.Fatalf("load demo fixture: %v", err)
	}
	if len(fx.Users) == 0 || len(fx.Posts) == 0 {
		t.Fatalf("demo fixture is empty: %+v", fx)
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"bad yaml", "users: [", "decode fixture"},
		{"short username", "users:\n  - username: ab\n", "at least 3 characters"},
		{"bad visibility", "users:\n  - username: abc\n    visibility: friends\n", "profile_visibility"},
		{"unknown follower", "users:\n  - username: abc\nfollows:\n  - {follower: zed, following: abc}\n", `unknown user "zed"`},
		{"self follow", "users:\n  - username: abc\nfollows:\n  - {follower: abc, following: abc}\n", "cannot follow itself"},
		{"bad category", "users:\n  - username: abc\nposts:\n  - {author: abc, content: hi, category: rant}\n", "category"},
		{"empty content", "users:\n  - username: abc\nposts:\n  - {author: abc, content: \" \"}\n", "content is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestApplyFixture(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)
	fx, err := LoadFixture("demo")
	if err != nil {
		t.Fatalf("load demo fixture: %v", err)
	}

	seeder := NewSeeder(db, Options{SkipBcrypt: true})
	users, err := seeder.ApplyFixture(fx)
	if err != nil {
		t.Fatalf("apply fixture: %v", err)
	}

	ada := users["ada"]
	if ada == nil || !ada.IsAdmin || !ada.IsActive {
		t.Fatalf("unexpected ada: %+v", ada)
	}
	if !auth.NewPasswordHasher(4).Verify(DefaultPassword, ada.PasswordHash) {
		t.Fatal("fixture password does not verify")
	}
	if users["alan"].ProfileVisibility != models.VisibilityPrivate {
		t.Fatalf("alan visibility = %s", users["alan"].ProfileVisibility)
	}

	var welcome models.Post
	if err := db.Where("author_id = ? AND category = ?", ada.ID, models.CategoryAnnouncement).First(&welcome).Error; err != nil {
		t.Fatalf("load welcome post: %v", err)
	}
	if welcome.LikeCount != 2 || welcome.CommentCount != 2 {
		t.Fatalf("welcome counters like=%d comment=%d", welcome.LikeCount, welcome.CommentCount)
	}

	// Applying twice reuses existing accounts.
	again, err := seeder.ApplyFixture(&Fixture{Users: fx.Users[:1]})
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if again["ada"].ID != ada.ID {
		t.Fatalf("expected ada to be reused, got id %d want %d", again["ada"].ID, ada.ID)
	}
	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != int64(len(fx.Users)) {
		t.Fatalf("expected %d users, got %d", len(fx.Users), count)
	}
}
