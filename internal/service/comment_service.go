package service

import (
	"context"

	"socialconnect/internal/models"
	"socialconnect/internal/policy"
	"socialconnect/internal/repository"
	"socialconnect/internal/validation"
)

// CommentService implements comments on posts. Comments inherit the post's visibility.
type CommentService struct {
	comments repository.CommentRepository
	users    repository.UserRepository
	posts    *PostService
	notifier ActivityNotifier
}

// NewCommentService returns a CommentService. notifier may be nil.
func NewCommentService(
	comments repository.CommentRepository,
	users repository.UserRepository,
	posts *PostService,
	notifier ActivityNotifier,
) *CommentService {
	if notifier == nil {
		notifier = (*NotificationService)(nil)
	}
	return &CommentService{comments: comments, users: users, posts: posts, notifier: notifier}
}

// List returns the comments of a post the viewer may see, oldest first.
func (s *CommentService) List(ctx context.Context, viewer policy.Viewer, postID uint, page repository.Page) ([]*models.Comment, int64, error) {
	if _, err := s.posts.visiblePost(ctx, viewer, postID); err != nil {
		return nil, 0, err
	}
	comments, total, err := s.comments.ListByPost(ctx, postID, page)
	if err != nil {
		return nil, 0, err
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return comments, total, nil
}

// CreateCommentInput is the new-comment payload.
type CreateCommentInput struct {
	UserID  uint   `json:"-"`
	PostID  uint   `json:"-"`
	Content string `json:"content"`
}

// Create adds a comment to a post the commenter may see.
func (s *CommentService) Create(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	content := validation.NormalizeText(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if err := validation.ValidateLength("content", content, validation.MaxCommentLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	post, err := s.posts.visiblePost(ctx, policy.User(in.UserID), in.PostID)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, UserID: in.UserID, Content: content}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	comment.User = publicUser(author)

	pid := post.ID
	s.notifier.Notify(ctx, NotifyInput{RecipientID: post.AuthorID, ActorID: in.UserID, Type: models.NotificationComment, PostID: &pid})
	s.notifier.NotifyMentions(ctx, in.UserID, content, post.ID)
	return comment, nil
}
