package repository

import (
	"context"
	"errors"

	"mainq/internal/cache"
	"mainq/internal/models"

	"gorm.io/gorm"
)

// ItemRepository defines persistence operations for games and labs.
type ItemRepository interface {
	Create(ctx context.Context, item *models.Item) error
	GetByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error)
	List(ctx context.Context, kind models.ItemKind, q Query) ([]models.Item, error)
	Snapshot(ctx context.Context, kind models.ItemKind) ([]models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	Delete(ctx context.Context, kind models.ItemKind, id string) error
	IncrementViews(ctx context.Context, kind models.ItemKind, id string) error
}

var itemFields = fieldSet{
	"id":         "id",
	"owner_id":   "owner_id",
	"class":      "class",
	"subject":    "subject",
	"views":      "views",
	"created_at": "created_at",
}

// listColumns leaves out the HTML payload.
var itemListColumns = []string{
	"id", "kind", "owner_id", "author_name", "title", "description",
	"class", "subject", "views", "created_at", "updated_at",
}

type itemRepository struct {
	db *gorm.DB
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *models.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.Invalidate(ctx, cache.CatalogKey(string(item.Kind)))
	return nil
}

func (r *itemRepository) GetByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error) {
	var item models.Item
	err := readDB(r.db).WithContext(ctx).
		Where("id = ? AND kind = ?", id, kind).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(kindLabel(kind), id)
		}
		return nil, models.NewInternalError(err)
	}
	return &item, nil
}

func (r *itemRepository) List(ctx context.Context, kind models.ItemKind, q Query) ([]models.Item, error) {
	base := readDB(r.db).WithContext(ctx).
		Model(&models.Item{}).
		Select(itemListColumns).
		Where("kind = ?", kind)
	db, err := q.apply(base, itemFields)
	if err != nil {
		return nil, err
	}

	items := []models.Item{}
	if err := db.Find(&items).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// Snapshot returns every item of kind, newest first, served from cache when warm.
func (r *itemRepository) Snapshot(ctx context.Context, kind models.ItemKind) ([]models.Item, error) {
	var items []models.Item
	err := cache.Aside(ctx, cache.CatalogKey(string(kind)), &items, cache.CatalogTTL, func() error {
		var err error
		items, err = r.List(ctx, kind, Query{}.Order("created_at", true))
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Update replaces every editable field. Identity, owner, views and creation
// time are left untouched.
func (r *itemRepository) Update(ctx context.Context, item *models.Item) error {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND kind = ?", item.ID, item.Kind).
		Select("title", "description", "class", "subject", "content", "author_name", "updated_at").
		Updates(item)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(kindLabel(item.Kind), item.ID)
	}
	cache.Invalidate(ctx, cache.CatalogKey(string(item.Kind)))
	return nil
}

func (r *itemRepository) Delete(ctx context.Context, kind models.ItemKind, id string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id = ? AND kind = ?", id, kind).Delete(&models.Item{})
		if res.Error != nil {
			return models.NewInternalError(res.Error)
		}
		if res.RowsAffected == 0 {
			return models.NewNotFoundError(kindLabel(kind), id)
		}
		if err := tx.Where("parent_type = ? AND parent_id = ?", models.ParentForKind(kind), id).
			Delete(&models.Comment{}).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cache.InvalidateContent(ctx, string(kind), id)
	return nil
}

// IncrementViews adds exactly one view.
func (r *itemRepository) IncrementViews(ctx context.Context, kind models.ItemKind, id string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND kind = ?", id, kind).
		UpdateColumn("views", gorm.Expr("views + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError(kindLabel(kind), id)
	}
	return nil
}

func kindLabel(kind models.ItemKind) string {
	if kind == models.KindLab {
		return "Lab"
	}
	return "Game"
}
