package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"socialconnect/internal/featureflags"
	"socialconnect/internal/models"
	"socialconnect/internal/repository"
)

// Publisher pushes stored notifications to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, n *models.Notification) error
}

// ActivityNotifier records social activity for the affected users.
type ActivityNotifier interface {
	Notify(ctx context.Context, in NotifyInput)
	NotifyMentions(ctx context.Context, actorID uint, text string, postID uint)
}

// NotifyInput describes one notification. Self-notifications are dropped.
type NotifyInput struct {
	RecipientID uint
	ActorID     uint
	Type        models.NotificationType
	PostID      *uint
}

// NotificationService stores notifications and publishes them to the owner's channel.
type NotificationService struct {
	repo      repository.NotificationRepository
	users     repository.UserRepository
	publisher Publisher
	flags     *featureflags.Manager
}

// NewNotificationService returns a NotificationService. publisher and flags may be nil.
func NewNotificationService(
	repo repository.NotificationRepository,
	users repository.UserRepository,
	publisher Publisher,
	flags *featureflags.Manager,
) *NotificationService {
	return &NotificationService{repo: repo, users: users, publisher: publisher, flags: flags}
}

var mentionPattern = regexp.MustCompile(`(?:^|[^a-zA-Z0-9_])@([a-zA-Z0-9_-]{3,30})`)

// ParseMentions returns the distinct usernames mentioned with @ in text, in order.
func ParseMentions(text string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range mentionPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func notificationText(typ models.NotificationType, actor string) string {
	switch typ {
	case models.NotificationLike:
		return fmt.Sprintf("%s liked your post", actor)
	case models.NotificationComment:
		return fmt.Sprintf("%s commented on your post", actor)
	case models.NotificationFollow:
		return fmt.Sprintf("%s started following you", actor)
	case models.NotificationMention:
		return fmt.Sprintf("%s mentioned you", actor)
	}
	return actor
}

// Notify stores and publishes a notification. Failures are logged and do not
// affect the action that caused them.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) {
	if s == nil || in.RecipientID == 0 || in.RecipientID == in.ActorID {
		return
	}
	actor, err := s.users.GetByID(ctx, in.ActorID)
	if err != nil {
		slog.WarnContext(ctx, "notification actor lookup failed", slog.Uint64("actor_id", uint64(in.ActorID)), slog.Any("error", err))
		return
	}
	s.store(ctx, &models.Notification{
		UserID:        in.RecipientID,
		Type:          in.Type,
		Content:       notificationText(in.Type, actor.Username),
		RelatedUserID: &actor.ID,
		RelatedPostID: in.PostID,
	}, actor)
}

// NotifyMentions notifies each active user mentioned in text when mention
// notifications are enabled for the actor.
func (s *NotificationService) NotifyMentions(ctx context.Context, actorID uint, text string, postID uint) {
	if s == nil || !s.flags.Enabled(featureflags.MentionNotifications, actorID) {
		return
	}
	names := ParseMentions(text)
	if len(names) == 0 {
		return
	}
	ids, err := s.users.IDsByUsernames(ctx, names)
	if err != nil {
		slog.WarnContext(ctx, "mention lookup failed", slog.Any("error", err))
		return
	}
	for _, name := range names {
		id, ok := ids[name]
		if !ok {
			continue
		}
		pid := postID
		s.Notify(ctx, NotifyInput{RecipientID: id, ActorID: actorID, Type: models.NotificationMention, PostID: &pid})
	}
}

func (s *NotificationService) store(ctx context.Context, n *models.Notification, actor *models.User) {
	if err := s.repo.Create(ctx, n); err != nil {
		slog.WarnContext(ctx, "notification not stored", slog.String("type", string(n.Type)), slog.Any("error", err))
		return
	}
	n.RelatedUser = publicUser(actor)
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, n); err != nil {
		slog.WarnContext(ctx, "notification not published", slog.Uint64("notification_id", uint64(n.ID)), slog.Any("error", err))
	}
}

// NotificationPage is the inbox listing.
type NotificationPage struct {
	Notifications []models.Notification `json:"notifications"`
	UnreadCount   int64                 `json:"unread_count"`
	Pagination    models.Pagination     `json:"pagination"`
}

// List returns userID's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, page repository.Page) (*NotificationPage, error) {
	items, total, err := s.repo.List(ctx, userID, unreadOnly, page)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Notification{}
	}
	return &NotificationPage{
		Notifications: items,
		UnreadCount:   unread,
		Pagination:    models.Pagination{Limit: page.Limit, Offset: page.Offset, Total: total},
	}, nil
}

// MarkRead marks one of userID's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return s.repo.MarkRead(ctx, id, userID)
}

// MarkAllRead marks every unread notification of userID as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

// publicUser returns the projection of u safe to show other users.
func publicUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	return &models.User{
		ID:                u.ID,
		Username:          u.Username,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		AvatarURL:         u.AvatarURL,
		ProfileVisibility: u.ProfileVisibility,
		IsActive:          u.IsActive,
	}
}
