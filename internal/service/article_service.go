package service

import (
	"context"
	"strings"
	"time"

	"mainq/internal/catalog"
	"mainq/internal/models"
	"mainq/internal/observability"
	"mainq/internal/repository"
	"mainq/internal/richtext"
	"mainq/internal/session"
	"mainq/internal/slug"
)

const (
	maxLabels   = 5
	maxLabelLen = 30
)

type ArticleService struct {
	articleRepo     repository.ArticleRepository
	userRepo        repository.UserRepository
	live            LivePublisher
	isAdmin         AdminChecker
	maxContentBytes int
	now             func() time.Time
}

// ArticleBrowseInput carries the query of the community page.
type ArticleBrowseInput struct {
	Search    string
	Category  string
	Page      int
	FilterKey string
}

type ArticleInput struct {
	Title    string
	Category string
	Labels   []string
	Content  string
}

func NewArticleService(
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	live LivePublisher,
	isAdmin AdminChecker,
	maxContentBytes int,
) *ArticleService {
	return &ArticleService{
		articleRepo:     articleRepo,
		userRepo:        userRepo,
		live:            live,
		isAdmin:         isAdmin,
		maxContentBytes: maxContentBytes,
		now:             nowUTC,
	}
}

func (s *ArticleService) Browse(ctx context.Context, in ArticleBrowseInput) (page catalog.Page[models.Article], err error) {
	ctx, finish := observability.StartSpan(ctx, "catalog.browse", observability.AttrCollection.String("article"))
	defer func() {
		observability.AnnotatePage(ctx, page.Page, len(page.Items))
		finish(err)
	}()

	snapshot, err := s.articleRepo.Snapshot(ctx)
	if err != nil {
		return catalog.Page[models.Article]{}, err
	}
	p := catalog.Params{
		Search:   in.Search,
		Filters:  map[string]string{"category": in.Category},
		Now:      s.now(),
		Sort:     catalog.SortRecent,
		PageSize: catalog.ListPageSize,
	}
	p.Page = catalog.ResolvePage(in.Page, in.FilterKey, p)
	return catalog.Run(snapshot, p), nil
}

func (s *ArticleService) AdminList(ctx context.Context, in AdminListInput) (catalog.Page[models.Article], error) {
	return s.Browse(ctx, ArticleBrowseInput{Search: in.Search, Page: in.Page, FilterKey: in.FilterKey})
}

func (s *ArticleService) ListByOwner(ctx context.Context, ownerID string, page int) (catalog.Page[models.Article], error) {
	articles, err := s.articleRepo.List(ctx,
		repository.Where("owner_id", repository.Eq, ownerID).Order("created_at", true))
	if err != nil {
		return catalog.Page[models.Article]{}, err
	}
	return catalog.Run(articles, catalog.Params{
		Sort:     catalog.SortRecent,
		PageSize: catalog.ListPageSize,
		Page:     page,
	}), nil
}

func (s *ArticleService) Get(ctx context.Context, id string) (*models.Article, error) {
	return s.articleRepo.GetByID(ctx, id)
}

// RecordView adds one impression. It never fails the caller.
func (s *ArticleService) RecordView(ctx context.Context, id string) Outcome {
	err := s.articleRepo.IncrementViews(ctx, id)
	if err == nil {
		observability.ItemViews.WithLabelValues("article").Inc()
	}
	return bestEffort(ctx, "increment_views", err, "kind", "article", "item_id", id)
}

func (s *ArticleService) Create(ctx context.Context, sess *session.Session, in ArticleInput) (*models.Article, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	in, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	now := s.now()
	article := &models.Article{
		ID:         slug.NewID(in.Title),
		OwnerID:    sess.UserID,
		AuthorName: authorName(ctx, s.userRepo, sess),
		Title:      in.Title,
		Category:   models.ArticleCategory(in.Category),
		Labels:     models.Labels(in.Labels),
		Content:    in.Content,
		CreatedAt:  &now,
		UpdatedAt:  now,
	}
	if err := s.articleRepo.Create(ctx, article); err != nil {
		return nil, err
	}
	observability.ContentPublished.WithLabelValues("article").Inc()
	s.announce(ctx)
	return article, nil
}

func (s *ArticleService) Update(ctx context.Context, sess *session.Session, id string, in ArticleInput) (*models.Article, error) {
	if err := requireSession(sess); err != nil {
		return nil, err
	}
	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, sess, article.OwnerID, false, s.isAdmin); err != nil {
		return nil, err
	}
	in, err = s.validate(in)
	if err != nil {
		return nil, err
	}

	article.Title = in.Title
	article.Category = models.ArticleCategory(in.Category)
	article.Labels = models.Labels(in.Labels)
	article.Content = in.Content
	article.AuthorName = authorName(ctx, s.userRepo, sess)
	article.UpdatedAt = s.now()
	if err := s.articleRepo.Update(ctx, article); err != nil {
		return nil, err
	}
	s.announce(ctx)
	return article, nil
}

func (s *ArticleService) Delete(ctx context.Context, sess *session.Session, id string) error {
	if err := requireSession(sess); err != nil {
		return err
	}
	article, err := s.articleRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(ctx, sess, article.OwnerID, true, s.isAdmin); err != nil {
		return err
	}
	if err := s.articleRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.announce(ctx)
	return nil
}

func (s *ArticleService) validate(in ArticleInput) (ArticleInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))

	switch {
	case in.Title == "":
		return in, models.NewValidationError("Title is required")
	case runeLen(in.Title) > maxTitleLen:
		return in, models.NewValidationError("Title too long (max 200 characters)")
	case !models.ArticleCategory(in.Category).Valid():
		return in, models.NewValidationError("Unknown category")
	case strings.TrimSpace(in.Content) == "":
		return in, models.NewValidationError("Content is required")
	case s.maxContentBytes > 0 && len(in.Content) > s.maxContentBytes:
		return in, models.NewValidationError("Content too large")
	}

	labels, err := normalizeLabels(in.Labels)
	if err != nil {
		return in, err
	}
	in.Labels = labels

	content, err := richtext.Normalize(in.Content)
	if err != nil {
		return in, models.NewValidationError("Content is not valid HTML")
	}
	in.Content = content
	return in, nil
}

// normalizeLabels trims, lowercases and de-duplicates labels, keeping order.
func normalizeLabels(raw []string) ([]string, error) {
	seen := make(map[string]struct{}, len(raw))
	labels := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" {
			continue
		}
		if _, dup := seen[l]; dup {
			continue
		}
		if runeLen(l) > maxLabelLen {
			return nil, models.NewValidationError("Label too long (max 30 characters)")
		}
		seen[l] = struct{}{}
		labels = append(labels, l)
	}
	if len(labels) > maxLabels {
		return nil, models.NewValidationError("Too many labels (max 5)")
	}
	return labels, nil
}

func (s *ArticleService) announce(ctx context.Context) {
	if s.live == nil {
		return
	}
	bestEffort(ctx, "publish_catalog_change", s.live.PublishCatalogChange(ctx, "article"))
}
