package service

import (
	"context"
	"strings"

	"socialconnect/internal/cache"
	"socialconnect/internal/featureflags"
	"socialconnect/internal/models"
	"socialconnect/internal/observability"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"
	"socialconnect/internal/validation"
)

// PostService implements posts, the feed and likes.
type PostService struct {
	posts    repository.PostRepository
	follows  repository.FollowRepository
	notifier ActivityNotifier
	flags    *featureflags.Manager
}

// NewPostService returns a PostService. notifier and flags may be nil.
func NewPostService(
	posts repository.PostRepository,
	follows repository.FollowRepository,
	notifier ActivityNotifier,
	flags *featureflags.Manager,
) *PostService {
	if notifier == nil {
		notifier = (*NotificationService)(nil)
	}
	return &PostService{posts: posts, follows: follows, notifier: notifier, flags: flags}
}

// ListPostsInput filters the feed.
type ListPostsInput struct {
	Viewer   policy.Viewer
	Category string
	AuthorID uint
	// Following restricts the feed to followed authors; nil applies the default.
	Following *bool
	Query     string
	Page      repository.Page
}

// List returns the feed as seen by the viewer. Each post is checked against
// its author's current visibility and the viewer's current follow edges.
func (s *PostService) List(ctx context.Context, in ListPostsInput) ([]*models.Post, int64, error) {
	category := models.Category("")
	if in.Category != "" {
		c, err := models.ParseCategory(in.Category)
		if err != nil {
			return nil, 0, models.NewValidationError(err.Error())
		}
		category = c
	}

	following, err := s.follows.FollowingIDs(ctx, in.Viewer.UserID)
	if err != nil {
		return nil, 0, err
	}

	onlyFollowing := in.Following != nil && *in.Following
	if in.Following == nil && in.Viewer.Authenticated {
		onlyFollowing = s.flags.Enabled(featureflags.FollowingFeedDefault, in.Viewer.UserID)
	}
	if onlyFollowing && !in.Viewer.Authenticated {
		return nil, 0, models.NewUnauthorizedError("Authentication required for the following feed")
	}

	filter := repository.PostFilter{
		Category:   category,
		AuthorID:   in.AuthorID,
		Query:      strings.TrimSpace(in.Query),
		Visibility: &repository.VisibilityScope{ViewerID: in.Viewer.UserID, Following: following},
		Page:       in.Page,
	}
	if onlyFollowing {
		filter.AuthorIDs = following
	}

	posts, total, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	followSet := make(map[uint]struct{}, len(following))
	for _, id := range following {
		followSet[id] = struct{}{}
	}
	visible := posts[:0]
	for _, p := range posts {
		_, follows := followSet[p.AuthorID]
		if p.Author == nil || !policy.CanView(in.Viewer, p.AuthorID, p.Author.ProfileVisibility, follows) {
			observability.VisibilityDenials.WithLabelValues("feed").Inc()
			continue
		}
		visible = append(visible, p)
	}
	if err := s.markLiked(ctx, in.Viewer, visible); err != nil {
		return nil, 0, err
	}
	return visible, total, nil
}

func (s *PostService) markLiked(ctx context.Context, viewer policy.Viewer, posts []*models.Post) error {
	if !viewer.Authenticated || len(posts) == 0 {
		return nil
	}
	ids := make([]uint, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	liked, err := s.posts.LikedPostIDs(ctx, viewer.UserID, ids)
	if err != nil {
		return err
	}
	set := make(map[uint]struct{}, len(liked))
	for _, id := range liked {
		set[id] = struct{}{}
	}
	for _, p := range posts {
		_, p.IsLiked = set[p.ID]
	}
	return nil
}

// Get returns a post the viewer may see. Missing, inactive and hidden posts
// are all NOT_FOUND so their existence is not revealed.
func (s *PostService) Get(ctx context.Context, viewer policy.Viewer, id uint) (*models.Post, error) {
	post, err := s.visiblePost(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	if err := s.markLiked(ctx, viewer, []*models.Post{post}); err != nil {
		return nil, err
	}
	return post, nil
}

func (s *PostService) visiblePost(ctx context.Context, viewer policy.Viewer, id uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !post.IsActive || post.Author == nil || !post.Author.IsActive {
		return nil, models.NewNotFoundError("Post", id)
	}
	follows := false
	if viewer.Authenticated && !viewer.IsOwner(post.AuthorID) && post.Author.ProfileVisibility == models.VisibilityFollowersOnly {
		follows, err = s.follows.Exists(ctx, viewer.UserID, post.AuthorID)
		if err != nil {
			return nil, err
		}
	}
	if !policy.CanView(viewer, post.AuthorID, post.Author.ProfileVisibility, follows) {
		observability.VisibilityDenials.WithLabelValues("post").Inc()
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// CreatePostInput is the new-post payload.
type CreatePostInput struct {
	AuthorID uint   `json:"-"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
	Category string `json:"category"`
}

// Validate normalizes the input and checks content, image and category.
func (in *CreatePostInput) Validate() (models.Category, error) {
	in.Content = validation.NormalizeText(in.Content)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Content == "" && in.ImageURL == "" {
		return "", models.NewValidationError("Post content or image is required")
	}
	if err := validation.ValidateLength("content", in.Content, validation.MaxPostLength); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	if err := validation.ValidateURL("image_url", in.ImageURL); err != nil {
		return "", models.NewValidationError(err.Error())
	}
	category, err := models.ParseCategory(strings.TrimSpace(in.Category))
	if err != nil {
		return "", models.NewValidationError(err.Error())
	}
	return category, nil
}

// Create publishes a post by in.AuthorID.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	category, err := in.Validate()
	if err != nil {
		return nil, err
	}
	post := &models.Post{
		AuthorID: in.AuthorID,
		Content:  in.Content,
		ImageURL: in.ImageURL,
		Category: category,
		IsActive: true,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, in.AuthorID)
	s.notifier.NotifyMentions(ctx, in.AuthorID, post.Content, post.ID)
	return s.posts.GetByID(ctx, post.ID)
}

// UpdatePostInput is a partial post edit; nil fields are left unchanged.
type UpdatePostInput struct {
	UserID   uint    `json:"-"`
	PostID   uint    `json:"-"`
	Content  *string `json:"content"`
	ImageURL *string `json:"image_url"`
	Category *string `json:"category"`
}

// Update edits a post. Only the author may edit.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	post, err := s.ownPost(ctx, in.UserID, in.PostID, "edit")
	if err != nil {
		return nil, err
	}
	if in.Content == nil && in.ImageURL == nil && in.Category == nil {
		return nil, models.NewValidationError("No valid fields to update")
	}

	merged := CreatePostInput{Content: post.Content, ImageURL: post.ImageURL, Category: string(post.Category)}
	if in.Content != nil {
		merged.Content = *in.Content
	}
	if in.ImageURL != nil {
		merged.ImageURL = *in.ImageURL
	}
	if in.Category != nil {
		merged.Category = *in.Category
	}
	category, err := merged.Validate()
	if err != nil {
		return nil, err
	}

	fields := map[string]any{"content": merged.Content, "image_url": merged.ImageURL, "category": category}
	if err := s.posts.UpdateFields(ctx, post.ID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, policy.User(in.UserID), post.ID)
}

// Delete deactivates a post. Only the author may delete.
func (s *PostService) Delete(ctx context.Context, userID, postID uint) error {
	post, err := s.ownPost(ctx, userID, postID, "delete")
	if err != nil {
		return err
	}
	if err := s.posts.SetActive(ctx, post.ID, false); err != nil {
		return err
	}
	cache.InvalidateUser(ctx, userID)
	return nil
}

func (s *PostService) ownPost(ctx context.Context, userID, postID uint, action string) (*models.Post, error) {
	post, err := s.visiblePost(ctx, policy.User(userID), postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID != userID {
		return nil, models.NewForbiddenError("You can only " + action + " your own posts")
	}
	return post, nil
}

// Like records userID's like of a visible post. A repeated like is a CONFLICT.
func (s *PostService) Like(ctx context.Context, userID, postID uint) (int64, error) {
	post, err := s.visiblePost(ctx, policy.User(userID), postID)
	if err != nil {
		return 0, err
	}
	if err := s.posts.Like(ctx, userID, postID); err != nil {
		return 0, err
	}
	pid := post.ID
	s.notifier.Notify(ctx, NotifyInput{RecipientID: post.AuthorID, ActorID: userID, Type: models.NotificationLike, PostID: &pid})
	return s.likeCount(ctx, postID)
}

// Unlike removes userID's like if present.
func (s *PostService) Unlike(ctx context.Context, userID, postID uint) (int64, error) {
	if _, err := s.visiblePost(ctx, policy.User(userID), postID); err != nil {
		return 0, err
	}
	if _, err := s.posts.Unlike(ctx, userID, postID); err != nil {
		return 0, err
	}
	return s.likeCount(ctx, postID)
}

func (s *PostService) likeCount(ctx context.Context, postID uint) (int64, error) {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return 0, err
	}
	return post.LikeCount, nil
}
