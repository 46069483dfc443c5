package service

import (
	"context"
	"strings"
	"time"

	"mainq/internal/catalog"
	"mainq/internal/models"
	"mainq/internal/observability"
	"mainq/internal/repository"
	"mainq/internal/session"
	"mainq/internal/slug"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 2000
)

// ItemService serves one kind of published item (games or labs).
type ItemService struct {
	kind            models.ItemKind
	itemRepo        repository.ItemRepository
	userRepo        repository.UserRepository
	live            LivePublisher
	isAdmin         AdminChecker
	maxContentBytes int
	now             func() time.Time
}

// BrowseInput carries the catalog query of the games and labs pages.
type BrowseInput struct {
	Search    string
	Class     string
	Subject   string
	Page      int
	FilterKey string
}

// PopularInput carries the query of the popular page.
type PopularInput struct {
	Window    catalog.Window
	Page      int
	FilterKey string
}

// AdminListInput carries the query of the admin tables.
type AdminListInput struct {
	Search    string
	Page      int
	FilterKey string
}

// ItemInput is the full set of editable fields of an upload or edit form.
type ItemInput struct {
	Title       string
	Description string
	Class       string
	Subject     string
	Content     string
}

func NewItemService(
	kind models.ItemKind,
	itemRepo repository.ItemRepository,
	userRepo repository.UserRepository,
	live LivePublisher,
	isAdmin AdminChecker,
	maxContentBytes int,
) *ItemService {
	return &ItemService{
		kind:            kind,
		itemRepo:        itemRepo,
		userRepo:        userRepo,
		live:            live,
		isAdmin:         isAdmin,
		maxContentBytes: maxContentBytes,
		now:             nowUTC,
	}
}

// Kind returns the item kind this service serves.
func (s *ItemService) Kind() models.ItemKind {
	return s.kind
}

// Browse returns one page of the catalog, newest first.
func (s *ItemService) Browse(ctx context.Context, in BrowseInput) (page catalog.Page[models.Item], err error) {
	ctx, finish := observability.StartSpan(ctx, "catalog.browse", observability.AttrCollection.String(string(s.kind)))
	defer func() {
		observability.AnnotatePage(ctx, page.Page, len(page.Items))
		finish(err)
	}()

	snapshot, err := s.itemRepo.Snapshot(ctx, s.kind)
	if err != nil {
		return catalog.Page[models.Item]{}, err
	}
	filters := map[string]string{"subject": in.Subject}
	if s.kind == models.KindGame {
		filters["class"] = in.Class
	}
	p := catalog.Params{
		Search:   in.Search,
		Filters:  filters,
		Now:      s.now(),
		Sort:     catalog.SortRecent,
		PageSize: catalog.CatalogPageSize,
	}
	p.Page = catalog.ResolvePage(in.Page, in.FilterKey, p)
	return catalog.Run(snapshot, p), nil
}

// Popular returns the top items by views inside the window.
func (s *ItemService) Popular(ctx context.Context, in PopularInput) (page catalog.Page[models.Item], err error) {
	ctx, finish := observability.StartSpan(ctx, "catalog.popular",
		observability.AttrCollection.String(string(s.kind)),
		attribute.String("window", in.Window.String()),
	)
	defer func() {
		observability.AnnotatePage(ctx, page.Page, len(page.Items))
		finish(err)
	}()

	snapshot, err := s.itemRepo.Snapshot(ctx, s.kind)
	if err != nil {
		return catalog.Page[models.Item]{}, err
	}
	p := catalog.Params{
		Window:   in.Window,
		Now:      s.now(),
		Sort:     catalog.SortPopular,
		TopN:     catalog.PopularTopN,
		PageSize: catalog.ListPageSize,
	}
	p.Page = catalog.ResolvePage(in.Page, in.FilterKey, p)
	return catalog.Run(snapshot, p), nil
}

// AdminList returns the searchable admin table of every item of this kind.
func (s *ItemService) AdminList(ctx context.Context, in AdminListInput) (catalog.Page[models.Item], error) {
	snapshot, err := s.itemRepo.Snapshot(ctx, s.kind)
	if err != nil {
		return catalog.Page[models.Item]{}, err
	}
	p := catalog.Params{
		Search:   in.Search,
		Now:      s.now(),
		Sort:     catalog.SortRecent,
		PageSize: catalog.ListPageSize,
	}
	p.Page = catalog.ResolvePage(in.Page, in.FilterKey, p)
	return catalog.Run(snapshot, p), nil
}

// ListByOwner returns one profile-page slice of ownerID's uploads.
func (s *ItemService) ListByOwner(ctx context.Context, ownerID string, page int) (catalog.Page[models.Item], error) {
	items, err := s.itemRepo.List(ctx, s.kind,
		repository.Where("owner_id", repository.Eq, ownerID).Order("created_at", true))
	if err != nil {
		return catalog.Page[models.Item]{}, err
	}
	return catalog.Run(items, catalog.Params{
		Sort:     catalog.SortRecent,
		PageSize: catalog.ListPageSize,
		Page:     page,
	}), nil
}

// Get returns the item with its payload.
func (s *ItemService) Get(ctx context.Context, id string) (*models.Item, error) {
	return s.itemRepo.GetByID(ctx, s.kind, id)
}

// RecordView adds one impression. It never fails the caller.
func (s *ItemService) RecordView(ctx context.Context, id string) Outcome {
	err := s.itemRepo.IncrementViews(ctx, s.kind, id)
	if err == nil {
		observability.ItemViews.WithLabelValues(string(s.kind)).Inc()
	}
	return bestEffort(ctx, "increment_views", err, "kind", string(s.kind), "item_id", id)
}

func (s *ItemService) Create(ctx context.Context, sess *session.Session, in ItemInput) (*models.Item, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	item := &models.Item{
		ID:          slug.NewID(in.Title),
		Kind:        s.kind,
		OwnerID:     sess.UserID,
		AuthorName:  authorName(ctx, s.userRepo, sess),
		Title:       in.Title,
		Description: in.Description,
		Class:       in.Class,
		Subject:     in.Subject,
		Content:     in.Content,
		CreatedAt:   &now,
		UpdatedAt:   now,
	}
	if err := s.itemRepo.Create(ctx, item); err != nil {
		return nil, err
	}
	observability.ContentPublished.WithLabelValues(string(s.kind)).Inc()
	s.announce(ctx)
	return item, nil
}

// Update replaces the editable fields. Only the owner may edit; the check
// happens before any write.
func (s *ItemService) Update(ctx context.Context, sess *session.Session, id string, in ItemInput) (*models.Item, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	item, err := s.itemRepo.GetByID(ctx, s.kind, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, sess, item.OwnerID, false, s.isAdmin); err != nil {
		return nil, err
	}
	in, err = s.validate(in)
	if err != nil {
		return nil, err
	}

	item.Title = in.Title
	item.Description = in.Description
	item.Class = in.Class
	item.Subject = in.Subject
	item.Content = in.Content
	item.AuthorName = authorName(ctx, s.userRepo, sess)
	item.UpdatedAt = s.now()
	if err := s.itemRepo.Update(ctx, item); err != nil {
		return nil, err
	}
	s.announce(ctx)
	return item, nil
}

// Delete removes the item and its comments. Owners and admins may delete.
func (s *ItemService) Delete(ctx context.Context, sess *session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	item, err := s.itemRepo.GetByID(ctx, s.kind, id)
	if err != nil {
		return err
	}
	if err := authorize(ctx, sess, item.OwnerID, true, s.isAdmin); err != nil {
		return err
	}
	if err := s.itemRepo.Delete(ctx, s.kind, id); err != nil {
		return err
	}
	s.announce(ctx)
	return nil
}

func (s *ItemService) validate(in ItemInput) (ItemInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Class = strings.TrimSpace(in.Class)
	in.Subject = strings.TrimSpace(in.Subject)

	switch {
	case in.Title == "":
		return in, models.NewValidationError("Title is required")
	case runeLen(in.Title) > maxTitleLen:
		return in, models.NewValidationError("Title too long (max 200 characters)")
	case runeLen(in.Description) > maxDescriptionLen:
		return in, models.NewValidationError("Description too long (max 2000 characters)")
	case !models.Contains(models.Subjects, in.Subject):
		return in, models.NewValidationError("Unknown subject")
	case strings.TrimSpace(in.Content) == "":
		return in, models.NewValidationError("Content is required")
	case s.maxContentBytes > 0 && len(in.Content) > s.maxContentBytes:
		return in, models.NewValidationError("Content too large")
	}

	if s.kind == models.KindGame {
		if !models.Contains(models.Classes, in.Class) {
			return in, models.NewValidationError("Unknown class")
		}
	} else {
		in.Class = ""
	}
	return in, nil
}

func (s *ItemService) announce(ctx context.Context) {
	if s.live == nil {
		return
	}
	bestEffort(ctx, "publish_catalog_change", s.live.PublishCatalogChange(ctx, string(s.kind)))
}
