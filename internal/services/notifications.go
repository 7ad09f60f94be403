package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/diewo77/go-crm/internal/metrics"
	"github.com/diewo77/go-crm/internal/models"
	"github.com/diewo77/go-crm/internal/realtime"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Pusher delivers real-time messages. *realtime.Hub satisfies it.
type Pusher interface {
	SendTo(userID string, msg realtime.Message) error
	Broadcast(msg realtime.Message, exclude string) int
	IsOnline(userID string) bool
}

// NotificationMetrics counts deliveries. *metrics.Metrics satisfies it.
type NotificationMetrics interface {
	Notification(delivery string)
}

type NotifyInput struct {
	UserID   string
	Type     models.NotificationType
	Title    string
	Message  string
	Metadata map[string]any
}

// ListOptions pages a user's notifications.
type ListOptions struct {
	Skip       int
	Limit      int
	UnreadOnly bool
}

// NotificationService persists notifications and pushes them to the
// recipient's live connection.
type NotificationService struct {
	db      *gorm.DB
	push    Pusher
	metrics NotificationMetrics
	log     logrus.FieldLogger
}

func NewNotificationService(db *gorm.DB, push Pusher, m NotificationMetrics, log logrus.FieldLogger) *NotificationService {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &NotificationService{db: db, push: push, metrics: m, log: log}
}

// Notify stores an unread notification and pushes it when the user is
// connected. Delivery problems are logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, in NotifyInput) (*models.Notification, error) {
	if in.UserID == "" {
		return nil, fmt.Errorf("%w: notification recipient required", ErrInvalidInput)
	}
	if in.Type == "" {
		in.Type = models.NotifySystem
	}
	n := &models.Notification{
		UserID:  in.UserID,
		Type:    in.Type,
		Title:   in.Title,
		Message: in.Message,
	}
	if len(in.Metadata) > 0 {
		n.Metadata = datatypes.JSONMap(in.Metadata)
	}
	if err := s.db.WithContext(ctx).Create(n).Error; err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	s.deliver(n)
	return n, nil
}

func (s *NotificationService) deliver(n *models.Notification) {
	if s.push == nil || !s.push.IsOnline(n.UserID) {
		s.observe(metrics.DeliveryOffline)
		return
	}
	err := s.push.SendTo(n.UserID, realtime.Message{Type: realtime.TypeNotification, Data: n})
	if err != nil {
		s.log.WithError(err).WithField("user_id", n.UserID).Warn("notification: push failed")
		s.observe(metrics.DeliveryFailed)
		return
	}
	s.observe(metrics.DeliveryPushed)
}

func (s *NotificationService) observe(delivery string) {
	if s.metrics != nil {
		s.metrics.Notification(delivery)
	}
}

// NotifyQuietly is Notify for side effects of other operations: errors are
// logged and dropped.
func (s *NotificationService) NotifyQuietly(ctx context.Context, in NotifyInput) {
	if s == nil {
		return
	}
	if _, err := s.Notify(ctx, in); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": in.UserID, "type": in.Type}).
			Warn("notification: not created")
	}
}

func (s *NotificationService) List(ctx context.Context, userID string, opts ListOptions) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if opts.UnreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Offset(opts.Skip).Limit(clampLimit(opts.Limit)).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return n, nil
}

// MarkRead flags one of userID's notifications as read. A notification
// owned by someone else is reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	var n models.Notification
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: notification", ErrNotFound)
		}
		return nil, fmt.Errorf("find notification: %w", err)
	}
	if !n.IsRead {
		if err := s.db.WithContext(ctx).Model(&n).Update("is_read", true).Error; err != nil {
			return nil, fmt.Errorf("mark read: %w", err)
		}
		n.IsRead = true
	}
	return &n, nil
}

// MarkAllRead flags every unread notification of userID and returns how
// many changed. Calling it twice changes nothing the second time.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("mark all read: %w", res.Error)
	}
	return res.RowsAffected, nil
}
