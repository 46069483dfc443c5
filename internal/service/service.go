// Package service holds the use cases behind every page: browsing, detail
// reads, uploads, comments, profiles, notifications and accounts.
package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/observability"
	"mainq/internal/repository"
	"mainq/internal/session"
)

// AdminChecker reports whether userID currently holds the admin flag.
type AdminChecker func(ctx context.Context, userID string) (bool, error)

// LivePublisher pushes live updates to connected clients.
type LivePublisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
	PublishCatalogChange(ctx context.Context, collection string) error
}

// Outcome is the result of a best-effort operation. Callers may ignore it;
// failures have already been logged and counted.
type Outcome struct {
	Operation string
	Err       error
}

// OK reports whether the operation succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

func bestEffort(ctx context.Context, operation string, err error, attrs ...any) Outcome {
	if err != nil {
		observability.BestEffortFailures.WithLabelValues(operation).Inc()
		args := append([]any{"operation", operation, "error", err}, attrs...)
		middleware.Logger.WarnContext(ctx, "best-effort operation failed", args...)
	}
	return Outcome{Operation: operation, Err: err}
}

func requireSession(sess *session.Session) error {
	if !sess.Authenticated() {
		return models.NewUnauthorizedError("sign in required")
	}
	return nil
}

// authorize allows the owner, and admins when allowAdmin is set. Everyone
// else gets the same access-denied error.
func authorize(ctx context.Context, sess *session.Session, ownerID string, allowAdmin bool, isAdmin AdminChecker) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	if sess.Owns(ownerID) {
		return nil
	}
	if allowAdmin && isAdmin != nil {
		admin, err := isAdmin(ctx, sess.UserID)
		if err != nil {
			return err
		}
		if admin {
			return nil
		}
	}
	return models.NewForbiddenError()
}

// authorName snapshots the caller's public name for denormalized author fields.
func authorName(ctx context.Context, users repository.UserRepository, sess *session.Session) string {
	if users != nil {
		if p, err := users.GetProfile(ctx, sess.UserID); err == nil && strings.TrimSpace(p.DisplayName) != "" {
			return p.DisplayName
		}
	}
	if name := strings.TrimSpace(sess.DisplayName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(sess.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonim"
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func isNotFound(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr) && appErr.Code == models.CodeNotFound
}
