package models

// AdminStats is the moderation dashboard summary.
type AdminStats struct {
	Users      UserStats       `json:"users"`
	Posts      PostStats       `json:"posts"`
	Engagement EngagementStats `json:"engagement"`
}

// UserStats counts accounts.
type UserStats struct {
	Total       int64 `json:"total"`
	Active      int64 `json:"active"`
	ActiveToday int64 `json:"active_today"`
}

// PostStats counts posts.
type PostStats struct {
	Total        int64 `json:"total"`
	CreatedToday int64 `json:"created_today"`
}

// EngagementStats counts interactions.
type EngagementStats struct {
	TotalLikes    int64 `json:"total_likes"`
	TotalComments int64 `json:"total_comments"`
	TotalFollows  int64 `json:"total_follows"`
}

// UserActivity counts what a single user has written.
type UserActivity struct {
	Comments int64 `json:"comments_count"`
	Likes    int64 `json:"likes_count"`
}
