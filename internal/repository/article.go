package repository

import (
	"context"
	"errors"

	"mainq/internal/cache"
	"mainq/internal/models"

	"gorm.io/gorm"
)

// ArticleRepository defines persistence operations for community articles.
type ArticleRepository interface {
	Create(ctx context.Context, article *models.Article) error
	GetByID(ctx context.Context, id string) (*models.Article, error)
	List(ctx context.Context, q Query) ([]models.Article, error)
	Snapshot(ctx context.Context) ([]models.Article, error)
	Update(ctx context.Context, article *models.Article) error
	Delete(ctx context.Context, id string) error
	IncrementViews(ctx context.Context, id string) error
}

var articleFields = fieldSet{
	"id":         "id",
	"owner_id":   "owner_id",
	"category":   "category",
	"views":      "views",
	"created_at": "created_at",
}

var articleListColumns = []string{
	"id", "owner_id", "author_name", "title", "category", "labels",
	"views", "created_at", "updated_at",
}

type articleRepository struct {
	db *gorm.DB
}

// NewArticleRepository creates a new article repository
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepository{db: db}
}

func (r *articleRepository) Create(ctx context.Context, article *models.Article) error {
	if err := r.db.WithContext(ctx).Create(article).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.CatalogKey("article"))
	return nil
}

func (r *articleRepository) GetByID(ctx context.Context, id string) (*models.Article, error) {
	var article models.Article
	if err := readDB(r.db).WithContext(ctx).Where("id = ?", id).First(&article).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Article", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &article, nil
}

func (r *articleRepository) List(ctx context.Context, q Query) ([]models.Article, error) {
	base := readDB(r.db).WithContext(ctx).Model(&models.Article{}).Select(articleListColumns)
	db, err := q.apply(base, articleFields)
	if err != nil {
		return nil, err
	}

	articles := []models.Article{}
	if err := db.Find(&articles).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return articles, nil
}

func (r *articleRepository) Snapshot(ctx context.Context) ([]models.Article, error) {
	var articles []models.Article
	err := cache.Aside(ctx, cache.CatalogKey("article"), &articles, cache.CatalogTTL, func() error {
		var err error
		articles, err = r.List(ctx, Query{}.Order("created_at", true))
		return err
	})
	if err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *articleRepository) Update(ctx context.Context, article *models.Article) error {
	res := r.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ?", article.ID).
		Select("title", "category", "labels", "content", "author_name", "updated_at").
		Updates(article)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Article", article.ID)
	}
	cache.Invalidate(ctx, cache.CatalogKey("article"))
	return nil
}

func (r *articleRepository) Delete(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ?", id).Delete(&models.Article{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError("Article", id)
		}
		if err := tx.Where("parent_type = ? AND parent_id = ?", models.ParentArticle, id).
			Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidateContent(ctx, "article", id)
	return nil
}

func (r *articleRepository) IncrementViews(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Article{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Article", id)
	}
	return nil
}
