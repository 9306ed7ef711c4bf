package seed

import (
	"testing"

	"socialconnect/internal/models"
	"socialconnect/internal/testutil"
)

func TestSeedSocialMesh_CreatesFollowEdges(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	seeder := NewSeeder(db, Options{SkipBcrypt: true, RandomSeed: 11})
	users, err := seeder.SeedSocialMesh(6)
	if err != nil {
		t.Fatalf("seed social mesh: %v", err)
	}
	if len(users) != 6 {
		t.Fatalf("expected 6 users, got %d", len(users))
	}

	var selfFollows int64
	if err := db.Model(&models.Follow{}).Where("follower_id = following_id").Count(&selfFollows).Error; err != nil {
		t.Fatalf("count self follows: %v", err)
	}
	if selfFollows != 0 {
		t.Fatalf("expected no self follows, got %d", selfFollows)
	}

	for _, u := range users {
		var n int64
		if err := db.Model(&models.Follow{}).Where("follower_id = ?", u.ID).Count(&n).Error; err != nil {
			t.Fatalf("count follows: %v", err)
		}
		if n < 1 || n > 5 {
			t.Fatalf("user %d follows %d users, want 1..5", u.ID, n)
		}
	}
}

func TestSeedEngagement_CountersMatchRows(t *testing.T) {
	t.Parallel()
	db := testutil.NewTestDB(t)

	seeder := NewSeeder(db, Options{SkipBcrypt: true, RandomSeed: 5, BatchSize: 4})
	users, err := seeder.SeedSocialMesh(4)
	if err != nil {
		t.Fatalf("seed social mesh: %v", err)
	}
	posts, err := seeder.SeedEngagement(users, 10)
	if err != nil {
		t.Fatalf("seed engagement: %v", err)
	}
	if len(posts) != 10 {
		t.Fatalf("expected 10 posts, got %d", len(posts))
	}

	var stored []models.Post
	if err := db.Find(&stored).Error; err != nil {
		t.Fatalf("load posts: %v", err)
	}
	for _, p := range stored {
		var likes, comments int64
		db.Model(&models.Like{}).Where("post_id = ?", p.ID).Count(&likes)
		db.Model(&models.Comment{}).Where("post_id = ?", p.ID).Count(&comments)
		if p.LikeCount != likes || p.CommentCount != comments {
			t.Fatalf("post %d counters like=%d/%d comment=%d/%d", p.ID, p.LikeCount, likes, p.CommentCount, comments)
		}
	}

	if err := seeder.ClearAll(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	var remaining int64
	db.Model(&models.User{}).Count(&remaining)
	if remaining != 0 {
		t.Fatalf("expected empty users table, got %d", remaining)
	}
}
