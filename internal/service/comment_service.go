package service

import (
	"context"
	"strings"
	"time"

	"mainq/internal/models"
	"mainq/internal/observability"
	"mainq/internal/repository"
	"mainq/internal/session"
)

const maxCommentLen = 2000

type CommentService struct {
	commentRepo repository.CommentRepository
	itemRepo    repository.ItemRepository
	articleRepo repository.ArticleRepository
	userRepo    repository.UserRepository
	live        LivePublisher
	now         func() time.Time
}

type CreateCommentInput struct {
	ParentType models.ParentType
	ParentID   string
	Body       string
}

// parentRef is what a comment needs to know about the content it hangs off.
type parentRef struct {
	OwnerID string
	Title   string
	Link    string
}

func NewCommentService(
	commentRepo repository.CommentRepository,
	itemRepo repository.ItemRepository,
	articleRepo repository.ArticleRepository,
	userRepo repository.UserRepository,
	live LivePublisher,
) *CommentService {
	return &CommentService{
		commentRepo: commentRepo,
		itemRepo:    itemRepo,
		articleRepo: articleRepo,
		userRepo:    userRepo,
		live:        live,
		now:         nowUTC,
	}
}

// List returns the thread under a parent, newest first.
func (s *CommentService) List(ctx context.Context, parentType models.ParentType, parentID string) ([]models.Comment, error) {
	if _, err := s.parent(ctx, parentType, parentID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByParent(ctx, parentType, parentID)
}

// Create posts a comment. Commenting on someone else's content also stores a
// notification for the owner in the same transaction; the live push that
// follows is best-effort.
func (s *CommentService) Create(ctx context.Context, sess *session.Session, in CreateCommentInput) (_ *models.Comment, err error) {
	ctx, finish := observability.StartSpan(ctx, "comment.create",
		observability.AttrCollection.String(string(in.ParentType)),
		observability.AttrItemID.String(in.ParentID))
	defer func() { finish(err) }()

	if err := requireSession(sess); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, models.NewValidationError("Comment is required")
	}
	if runeLen(body) > maxCommentLen {
		return nil, models.NewValidationError("Comment too long (max 2000 characters)")
	}

	parent, err := s.parent(ctx, in.ParentType, in.ParentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	comment := &models.Comment{
		ParentType:  in.ParentType,
		ParentID:    in.ParentID,
		OwnerID:     sess.UserID,
		AuthorName:  authorName(ctx, s.userRepo, sess),
		AuthorPhoto: s.authorPhoto(ctx, sess),
		Body:        body,
		CreatedAt:   now,
	}

	if parent.OwnerID == "" || sess.Owns(parent.OwnerID) {
		if err := s.commentRepo.Create(ctx, comment); err != nil {
			return nil, err
		}
		return comment, nil
	}

	notification := &models.Notification{
		RecipientID:  parent.OwnerID,
		SenderName:   comment.AuthorName,
		Type:         models.NotificationComment,
		ContentTitle: parent.Title,
		Link:         parent.Link,
		CreatedAt:    now,
	}
	if err := s.commentRepo.CreateWithNotification(ctx, comment, notification); err != nil {
		return nil, err
	}
	if s.live != nil {
		bestEffort(ctx, "push_notification", s.live.PublishNotification(ctx, notification),
			"recipient_id", notification.RecipientID)
	}
	return comment, nil
}

func (s *CommentService) parent(ctx context.Context, parentType models.ParentType, parentID string) (*parentRef, error) {
	switch parentType {
	case models.ParentGame, models.ParentLab:
		kind := models.ItemKind(parentType)
		item, err := s.itemRepo.GetByID(ctx, kind, parentID)
		if err != nil {
			return nil, err
		}
		return &parentRef{OwnerID: item.OwnerID, Title: item.Title, Link: ContentLink(parentType, item.ID)}, nil
	case models.ParentArticle:
		article, err := s.articleRepo.GetByID(ctx, parentID)
		if err != nil {
			return nil, err
		}
		return &parentRef{OwnerID: article.OwnerID, Title: article.Title, Link: ContentLink(parentType, article.ID)}, nil
	}
	return nil, models.NewValidationError("Unknown comment parent")
}

func (s *CommentService) authorPhoto(ctx context.Context, sess *session.Session) string {
	if s.userRepo != nil {
		if p, err := s.userRepo.GetProfile(ctx, sess.UserID); err == nil && p.PhotoURL != "" {
			return p.PhotoURL
		}
	}
	return sess.PhotoURL
}

// ContentLink is the site path of a game, lab or article detail page.
func ContentLink(parentType models.ParentType, id string) string {
	return "/" + string(parentType) + "s/" + id
}
