package repository

import (
	"context"

	"mainq/internal/cache"
	"mainq/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines persistence operations for comments.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	CreateWithNotification(ctx context.Context, comment *models.Comment, n *models.Notification) error
	ListByParent(ctx context.Context, parentType models.ParentType, parentID string) ([]models.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.CommentsKey(string(comment.ParentType), comment.ParentID))
	return nil
}

// CreateWithNotification writes the comment and its owner notification in one
// transaction; neither row exists without the other.
func (r *commentRepository) CreateWithNotification(ctx context.Context, comment *models.Comment, n *models.Notification) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(comment).Error; err != nil {
			return err
		}
		return tx.Create(n).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.CommentsKey(string(comment.ParentType), comment.ParentID))
	return nil
}

// ListByParent returns a thread newest first.
func (r *commentRepository) ListByParent(ctx context.Context, parentType models.ParentType, parentID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := cache.Aside(ctx, cache.CommentsKey(string(parentType), parentID), &comments, cache.CommentsTTL, func() error {
		err := readDB(r.db).WithContext(ctx).
			Where("parent_type = ? AND parent_id = ?", parentType, parentID).
			Order("created_at desc").
			Order("id desc").
			Find(&comments).Error
		if err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}
