package service

import (
	"context"

	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/session"
)

// NotificationPageSize is the number of notifications per page.
const NotificationPageSize = 20

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

// List returns the caller's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, sess *session.Session, page int) ([]models.Notification, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return s.notificationRepo.ListByRecipient(ctx, sess.UserID, NotificationPageSize, (page-1)*NotificationPageSize)
}

func (s *NotificationService) UnreadCount(ctx context.Context, sess *session.Session) (int64, error) {
	if err := requireSession(sess); err != nil {
		return 0, err
	}
	return s.notificationRepo.CountUnread(ctx, sess.UserID)
}

// MarkRead flips one of the caller's notifications to read.
func (s *NotificationService) MarkRead(ctx context.Context, sess *session.Session, id uint) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	return s.notificationRepo.MarkRead(ctx, id, sess.UserID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, sess *session.Session) (int64, error) {
	if err := requireSession(sess); err != nil {
		return 0, err
	}
	return s.notificationRepo.MarkAllRead(ctx, sess.UserID)
}
