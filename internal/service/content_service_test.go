package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/session"
	"mainq/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type contentFixture struct {
	db            *gorm.DB
	items         repository.ItemRepository
	articles      repository.ArticleRepository
	comments      repository.CommentRepository
	users         repository.UserRepository
	notifications repository.NotificationRepository
	live          *livePublisherStub
}

func newContentFixture(t *testing.T) *contentFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	return &contentFixture{
		db:            db,
		items:         repository.NewItemRepository(db),
		articles:      repository.NewArticleRepository(db),
		comments:      repository.NewCommentRepository(db),
		users:         repository.NewUserRepository(db),
		notifications: repository.NewNotificationRepository(db),
		live:          &livePublisherStub{},
	}
}

func (f *contentFixture) commentService() *CommentService {
	return NewCommentService(f.comments, f.items, f.articles, f.users, f.live)
}

func (f *contentFixture) seedItem(t *testing.T, owner string) *models.Item {
	t.Helper()
	now := time.Now().UTC()
	item := &models.Item{
		ID: "kuis-pecahan-abc123", Kind: models.KindGame, OwnerID: owner, AuthorName: "Bu Sari",
		Title: "Kuis Pecahan", Subject: "Matematika", Class: "Kelas 4", Content: "<p>x</p>", CreatedAt: &now,
	}
	require.NoError(t, f.items.Create(context.Background(), item))
	return item
}

func TestCommentService_NotifiesOwner(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "owner-1")
	svc := f.commentService()

	visitor := &session.Session{UserID: "visitor-1", DisplayName: "Pak Budi", PhotoURL: "https://cdn.example/b.png"}
	comment, err := svc.Create(ctx, visitor, CreateCommentInput{
		ParentType: models.ParentGame, ParentID: item.ID, Body: "  Bagus sekali!  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bagus sekali!", comment.Body)
	assert.Equal(t, "Pak Budi", comment.AuthorName)
	assert.Equal(t, "https://cdn.example/b.png", comment.AuthorPhoto)

	stored, err := f.notifications.ListByRecipient(ctx, "owner-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "Pak Budi", stored[0].SenderName)
	assert.Equal(t, "Kuis Pecahan", stored[0].ContentTitle)
	assert.Equal(t, "/games/kuis-pecahan-abc123", stored[0].Link)
	assert.Equal(t, models.NotificationComment, stored[0].Type)
	assert.False(t, stored[0].Read)

	require.Len(t, f.live.notifications, 1)
	assert.Equal(t, "owner-1", f.live.notifications[0].RecipientID)
}

func TestCommentService_OwnCommentCreatesNoNotification(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "owner-1")

	_, err := f.commentService().Create(ctx, &session.Session{UserID: "owner-1"}, CreateCommentInput{
		ParentType: models.ParentGame, ParentID: item.ID, Body: "Terima kasih",
	})
	require.NoError(t, err)

	n, err := f.notifications.CountUnread(ctx, "owner-1")
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.live.notifications)
}

func TestCommentService_PushFailureKeepsComment(t *testing.T) {
	logs := captureLogs(t)
	f := newContentFixture(t)
	f.live.err = errors.New("publish failed")
	ctx := context.Background()
	item := f.seedItem(t, "owner-1")

	_, err := f.commentService().Create(ctx, &session.Session{UserID: "visitor-1", Email: "budi@x.id"},
		CreateCommentInput{ParentType: models.ParentGame, ParentID: item.ID, Body: "Mantap"})
	require.NoError(t, err)

	thread, err := f.commentService().List(ctx, models.ParentGame, item.ID)
	require.NoError(t, err)
	require.Len(t, thread, 1)
	assert.Equal(t, "budi", thread[0].AuthorName)

	n, err := f.notifications.CountUnread(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Contains(t, logs.String(), "push_notification")
}

func TestCommentService_Validation(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	item := f.seedItem(t, "owner-1")
	svc := f.commentService()
	visitor := &session.Session{UserID: "visitor-1"}

	_, err := svc.Create(ctx, nil, CreateCommentInput{ParentType: models.ParentGame, ParentID: item.ID, Body: "hi"})
	assertCode(t, err, models.CodeUnauthorized)

	_, err = svc.Create(ctx, visitor, CreateCommentInput{ParentType: models.ParentGame, ParentID: item.ID, Body: "  "})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.Create(ctx, visitor, CreateCommentInput{ParentType: models.ParentLab, ParentID: item.ID, Body: "hi"})
	assertCode(t, err, models.CodeNotFound)

	_, err = svc.Create(ctx, visitor, CreateCommentInput{ParentType: "post", ParentID: item.ID, Body: "hi"})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.List(ctx, models.ParentArticle, "missing")
	assertCode(t, err, models.CodeNotFound)
}

func TestArticleService_CreateNormalizesAndNotifiesOnComment(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewArticleService(f.articles, f.users, f.live, nil, 0)
	author := &session.Session{UserID: "author-1", DisplayName: "Bu Rina"}

	article, err := svc.Create(ctx, author, ArticleInput{
		Title:    "Tips Mengajar Pecahan",
		Category: " Tips ",
		Labels:   []string{"Matematika", "matematika", " SD "},
		Content:  `<p>Tonton:</p><iframe src="https://youtu.be/dQw4w9WgXcQ" width="560" height="315"></iframe>`,
	})
	require.NoError(t, err)
	assert.Equal(t, models.CategoryTips, article.Category)
	assert.Equal(t, models.Labels{"matematika", "sd"}, article.Labels)
	assert.Contains(t, article.Content, `<div class="video-embed">`)
	assert.Contains(t, article.Content, "https://www.youtube.com/embed/dQw4w9WgXcQ")
	assert.NotContains(t, article.Content, `width="560"`)
	assert.Equal(t, []string{"article"}, f.live.collections)

	_, err = f.commentService().Create(ctx, &session.Session{UserID: "reader-1", DisplayName: "Pak Dedi"},
		CreateCommentInput{ParentType: models.ParentArticle, ParentID: article.ID, Body: "Terima kasih!"})
	require.NoError(t, err)

	stored, err := f.notifications.ListByRecipient(ctx, "author-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "/articles/"+article.ID, stored[0].Link)
}

func TestArticleService_Validation(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewArticleService(f.articles, f.users, nil, nil, 0)
	sess := &session.Session{UserID: "author-1"}

	_, err := svc.Create(ctx, sess, ArticleInput{Title: "T", Category: "gosip", Content: "<p>x</p>"})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.Create(ctx, sess, ArticleInput{Title: "T", Category: "tips", Content: "<p>x</p>",
		Labels: []string{"a", "b", "c", "d", "e", "f"}})
	assertCode(t, err, models.CodeValidation)
}

func TestArticleService_UpdateAndDelete(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewArticleService(f.articles, f.users, nil, adminIs("admin-1"), 0)
	owner := &session.Session{UserID: "author-1", DisplayName: "Bu Rina"}

	article, err := svc.Create(ctx, owner, ArticleInput{Title: "Diskusi Kurikulum", Category: "diskusi", Content: "<p>a</p>"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, &session.Session{UserID: "admin-1"}, article.ID,
		ArticleInput{Title: "Diubah", Category: "diskusi", Content: "<p>b</p>"})
	assertCode(t, err, models.CodeForbidden)

	updated, err := svc.Update(ctx, owner, article.ID, ArticleInput{Title: "Diskusi Kurikulum Merdeka", Category: "diskusi", Content: "<p>b</p>"})
	require.NoError(t, err)
	assert.Equal(t, article.ID, updated.ID)

	got, err := svc.Get(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, "Diskusi Kurikulum Merdeka", got.Title)

	outcome := svc.RecordView(ctx, article.ID)
	assert.True(t, outcome.OK())
	got, err = svc.Get(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Views)

	require.NoError(t, svc.Delete(ctx, &session.Session{UserID: "admin-1"}, article.ID))
	_, err = svc.Get(ctx, article.ID)
	assertCode(t, err, models.CodeNotFound)
}

func TestArticleService_BrowseByCategory(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewArticleService(f.articles, f.users, nil, nil, 0)
	sess := &session.Session{UserID: "author-1", DisplayName: "Bu Rina"}

	for _, c := range []string{"tips", "berita", "tips"} {
		_, err := svc.Create(ctx, sess, ArticleInput{Title: "Artikel " + c, Category: c, Content: "<p>x</p>"})
		require.NoError(t, err)
	}

	page, err := svc.Browse(ctx, ArticleBrowseInput{Category: "tips"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = svc.Browse(ctx, ArticleBrowseInput{Category: "all", Search: "rina"})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	mine, err := svc.ListByOwner(ctx, "author-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, mine.Total)
}

func TestProfileService(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewProfileService(f.users)

	require.NoError(t, f.users.Create(ctx, &models.User{ID: "u-1", Email: "sari@sekolah.id", DisplayName: "Sari"}))
	item := f.seedItem(t, "u-1")

	// Public view before the owner ever opened the profile page.
	public, err := svc.Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Sari", public.DisplayName)

	sess := &session.Session{UserID: "u-1", DisplayName: "Sari", PhotoURL: "https://cdn.example/s.png"}
	profile, err := svc.Ensure(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/s.png", profile.PhotoURL)

	_, err = svc.Update(ctx, sess, UpdateProfileInput{DisplayName: "Bu Sari", Bio: string(make([]rune, models.MaxBioLength+1))})
	assertCode(t, err, models.CodeValidation)

	_, err = svc.Update(ctx, sess, UpdateProfileInput{DisplayName: "Bu Sari", PhotoURL: "javascript:alert(1)"})
	assertCode(t, err, models.CodeValidation)

	updated, err := svc.Update(ctx, sess, UpdateProfileInput{DisplayName: "Bu Sari", Bio: "Guru SD"})
	require.NoError(t, err)
	assert.Equal(t, "Guru SD", updated.Bio)
	assert.Empty(t, updated.PhotoURL)

	renamed, err := f.items.GetByID(ctx, models.KindGame, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bu Sari", renamed.AuthorName)

	_, err = svc.Get(ctx, "ghost")
	assertCode(t, err, models.CodeNotFound)
}

func TestNotificationService(t *testing.T) {
	f := newContentFixture(t)
	ctx := context.Background()
	svc := NewNotificationService(f.notifications)
	owner := &session.Session{UserID: "owner-1"}

	for i := 0; i < 3; i++ {
		require.NoError(t, f.notifications.Create(ctx, &models.Notification{
			RecipientID: "owner-1", SenderName: "Pak Budi", Type: models.NotificationComment,
			ContentTitle: "Kuis", Link: "/games/kuis-abc123",
		}))
	}

	list, err := svc.List(ctx, owner, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)

	count, err := svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	err = svc.MarkRead(ctx, &session.Session{UserID: "someone-else"}, list[0].ID)
	assertCode(t, err, models.CodeNotFound)

	require.NoError(t, svc.MarkRead(ctx, owner, list[0].ID))
	marked, err := svc.MarkAllRead(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	count, err = svc.UnreadCount(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.List(ctx, nil, 1)
	assertCode(t, err, models.CodeUnauthorized)
}
