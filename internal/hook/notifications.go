package hook

import (
	"context"
	"strings"

	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/cache"
	"github.com/lib64hardcoded/lib64hardcoded.github.io-sub000/internal/models"
	"go.uber.org/zap"
)

// NotificationLimit caps each user's list; the oldest entries are dropped first.
const NotificationLimit = 50

const cacheNotificationsPrefix = "notifications_"

// NotificationPublisher receives every notification after it is stored.
type NotificationPublisher interface {
	Publish(notification models.Notification)
}

// Notifications keeps a per-user list in the local cache only; there is no remote table.
type Notifications struct {
	*core
	publisher NotificationPublisher
}

func newNotifications(shared *core, publisher NotificationPublisher) *Notifications {
	return &Notifications{core: shared, publisher: publisher}
}

func (n *Notifications) collection(userID string) *cache.Collection[models.Notification] {
	return cache.NewCollection[models.Notification](n.cache, cacheNotificationsPrefix+userID)
}

// CacheKey returns the namespaced key holding userID's notifications.
func (n *Notifications) CacheKey(userID string) string {
	return n.collection(userID).Key()
}

// List returns userID's notifications, newest first.
func (n *Notifications) List(ctx context.Context, userID string) []models.Notification {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return []models.Notification{}
	}
	return n.collection(userID).Read(ctx)
}

func (n *Notifications) Unread(ctx context.Context, userID string) int {
	unread := 0
	for _, notification := range n.List(ctx, userID) {
		if !notification.Read {
			unread++
		}
	}
	return unread
}

// Push prepends a notification to userID's list and trims it to NotificationLimit.
func (n *Notifications) Push(ctx context.Context, userID string, notification models.Notification) (models.Notification, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return notification, newServiceError("hook.notifications.push", "invalid_user", ErrInvalidID)
	}
	if notification.ID == "" {
		id, err := n.newID()
		if err != nil {
			return notification, newServiceError("hook.notifications.push", "id_generation_failed", err)
		}
		notification.ID = id
	}
	notification.UserID = userID
	notification.Read = false
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = n.now()
	}

	err := n.collection(userID).Update(ctx, func(items []models.Notification) ([]models.Notification, error) {
		next := make([]models.Notification, 0, len(items)+1)
		next = append(next, notification)
		next = append(next, items...)
		if len(next) > NotificationLimit {
			next = next[:NotificationLimit]
		}
		return next, nil
	})
	if err != nil {
		return notification, newServiceError("hook.notifications.push", "local_write_failed", err)
	}
	if n.publisher != nil {
		n.publisher.Publish(notification)
	}
	return notification, nil
}

// FanOut pushes a copy of template to every recipient. Failures are logged and skipped; the
// number of delivered notifications is returned.
func (n *Notifications) FanOut(ctx context.Context, recipients []string, template models.Notification) int {
	delivered := 0
	for _, userID := range recipients {
		notification := template
		notification.ID = ""
		if _, err := n.Push(ctx, userID, notification); err != nil {
			n.logger.Warn("notification not delivered",
				zap.String("user_id", userID),
				zap.String("type", string(template.Type)),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (n *Notifications) MarkRead(ctx context.Context, userID, notificationID string) error {
	err := n.collection(userID).Update(ctx, func(items []models.Notification) ([]models.Notification, error) {
		for i := range items {
			if items[i].ID == notificationID {
				items[i].Read = true
				return items, nil
			}
		}
		return nil, ErrNotFound
	})
	if err != nil {
		return n.fail("hook.notifications.mark_read", "not_found", "Notification not found.", err,
			zap.String("user_id", userID), zap.String("notification_id", notificationID))
	}
	return nil
}

func (n *Notifications) MarkAllRead(ctx context.Context, userID string) error {
	err := n.collection(userID).Update(ctx, func(items []models.Notification) ([]models.Notification, error) {
		for i := range items {
			items[i].Read = true
		}
		return items, nil
	})
	if err != nil {
		return n.fail("hook.notifications.mark_all_read", "local_write_failed", "Could not update notifications.", err,
			zap.String("user_id", userID))
	}
	return nil
}

func (n *Notifications) Clear(ctx context.Context, userID string) error {
	if err := n.collection(userID).Replace(ctx, nil); err != nil {
		return n.fail("hook.notifications.clear", "local_write_failed", "Could not clear notifications.", err,
			zap.String("user_id", userID))
	}
	return nil
}

// recipients lists every known user except the excluded ids, optionally limited to a grade floor.
func recipients(users []models.User, minGrade models.Grade, exclude ...string) []string {
	skip := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	ids := make([]string, 0, len(users))
	for _, user := range users {
		if _, excluded := skip[user.ID]; excluded || user.ID == "" {
			continue
		}
		if minGrade != "" && !user.Grade.Meets(minGrade) {
			continue
		}
		ids = append(ids, user.ID)
	}
	return ids
}
