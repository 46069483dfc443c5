package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"mainq/internal/catalog"
	"mainq/internal/middleware"
	"mainq/internal/models"
	"mainq/internal/repository"
	"mainq/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// itemRepoStub is a stub for repository.ItemRepository that records writes.
type itemRepoStub struct {
	mu           sync.Mutex
	getByIDFn    func(context.Context, models.ItemKind, string) (*models.Item, error)
	snapshot     []models.Item
	listed       []models.Item
	lastQuery    repository.Query
	incrementErr error
	created      []*models.Item
	updated      []*models.Item
	deleted      []string
	increments   int
}

func (s *itemRepoStub) Create(_ context.Context, item *models.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, item)
	return nil
}
func (s *itemRepoStub) GetByID(ctx context.Context, kind models.ItemKind, id string) (*models.Item, error) {
	if s.getByIDFn == nil {
		return nil, models.NewNotFoundError("Game", id)
	}
	return s.getByIDFn(ctx, kind, id)
}
func (s *itemRepoStub) List(_ context.Context, _ models.ItemKind, q repository.Query) ([]models.Item, error) {
	s.lastQuery = q
	return s.listed, nil
}
func (s *itemRepoStub) Snapshot(_ context.Context, _ models.ItemKind) ([]models.Item, error) {
	return s.snapshot, nil
}
func (s *itemRepoStub) Update(_ context.Context, item *models.Item) error {
	s.updated = append(s.updated, item)
	return nil
}
func (s *itemRepoStub) Delete(_ context.Context, _ models.ItemKind, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}
func (s *itemRepoStub) IncrementViews(_ context.Context, _ models.ItemKind, _ string) error {
	s.increments++
	return s.incrementErr
}

func (s *itemRepoStub) writes() int {
	return len(s.created) + len(s.updated) + len(s.deleted) + s.increments
}

// livePublisherStub records catalog-change and notification pushes.
type livePublisherStub struct {
	mu            sync.Mutex
	err           error
	collections   []string
	notifications []*models.Notification
}

func (p *livePublisherStub) PublishNotification(_ context.Context, n *models.Notification) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
	return p.err
}
func (p *livePublisherStub) PublishCatalogChange(_ context.Context, collection string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collections = append(p.collections, collection)
	return p.err
}

func ownedItem(id, owner string) func(context.Context, models.ItemKind, string) (*models.Item, error) {
	return func(_ context.Context, kind models.ItemKind, _ string) (*models.Item, error) {
		created := time.Now().Add(-time.Hour)
		return &models.Item{ID: id, Kind: kind, OwnerID: owner, Title: "Kuis Pecahan", Subject: "Matematika",
			Class: "Kelas 4", Content: "<p>hi</p>", CreatedAt: &created}, nil
	}
}

func adminIs(ids ...string) AdminChecker {
	return func(_ context.Context, userID string) (bool, error) {
		for _, id := range ids {
			if id == userID {
				return true, nil
			}
		}
		return false, nil
	}
}

// captureLogs swaps the global logger for one writing into a buffer.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := middleware.Logger
	middleware.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	t.Cleanup(func() { middleware.Logger = prev })
	return &buf
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func validGame() ItemInput {
	return ItemInput{
		Title:       "  Kuis Pecahan Seru  ",
		Description: "Latihan pecahan untuk kelas 4",
		Class:       "Kelas 4",
		Subject:     "Matematika",
		Content:     "<!doctype html><html><body><script>start()</script></body></html>",
	}
}

func TestItemService_RecordView_FailureIsSwallowed(t *testing.T) {
	logs := captureLogs(t)

	repo := &itemRepoStub{
		getByIDFn:    ownedItem("kuis-pecahan-abc123", "owner-1"),
		incrementErr: errors.New("network unreachable"),
	}
	svc := NewItemService(models.KindGame, repo, nil, nil, nil, 0)
	ctx := context.Background()

	item, err := svc.Get(ctx, "kuis-pecahan-abc123")
	require.NoError(t, err)
	assert.Equal(t, "Kuis Pecahan", item.Title)

	outcome := svc.RecordView(ctx, item.ID)
	assert.False(t, outcome.OK())
	assert.Equal(t, "increment_views", outcome.Operation)
	assert.Equal(t, 1, repo.increments, "a failed increment is not retried")

	out := logs.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "best-effort operation failed")
	assert.Contains(t, out, "network unreachable")
	assert.Contains(t, out, "kuis-pecahan-abc123")
}

func TestItemService_RecordView_Success(t *testing.T) {
	logs := captureLogs(t)
	repo := &itemRepoStub{}
	svc := NewItemService(models.KindLab, repo, nil, nil, nil, 0)

	outcome := svc.RecordView(context.Background(), "titrasi-xyz789")
	assert.True(t, outcome.OK())
	assert.Equal(t, 1, repo.increments)
	assert.Empty(t, logs.String())
}

func TestItemService_Update_NonOwnerRejectedBeforeWrite(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{getByIDFn: ownedItem("kuis-abc123", "owner-1")}
	// An admin flag does not grant edit rights.
	svc := NewItemService(models.KindGame, repo, nil, nil, adminIs("intruder"), 0)

	_, err := svc.Update(context.Background(), &session.Session{UserID: "intruder"}, "kuis-abc123", validGame())
	assertCode(t, err, models.CodeForbidden)
	assert.Equal(t, "access denied", err.Error())
	assert.Zero(t, repo.writes())
}

func TestItemService_Update_Anonymous(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{getByIDFn: ownedItem("kuis-abc123", "owner-1")}
	svc := NewItemService(models.KindGame, repo, nil, nil, nil, 0)

	_, err := svc.Update(context.Background(), nil, "kuis-abc123", validGame())
	assertCode(t, err, models.CodeUnauthorized)
	assert.Zero(t, repo.writes())
}

func TestItemService_Update_Owner(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{getByIDFn: ownedItem("kuis-abc123", "owner-1")}
	live := &livePublisherStub{}
	svc := NewItemService(models.KindGame, repo, nil, live, nil, 0)

	in := validGame()
	in.Title = "Kuis Pecahan Baru"
	item, err := svc.Update(context.Background(),
		&session.Session{UserID: "owner-1", DisplayName: "Bu Sari"}, "kuis-abc123", in)
	require.NoError(t, err)
	assert.Equal(t, "kuis-abc123", item.ID, "the identifier never changes")
	assert.Equal(t, "Kuis Pecahan Baru", item.Title)
	assert.Equal(t, "Bu Sari", item.AuthorName)
	require.Len(t, repo.updated, 1)
	assert.Equal(t, []string{"game"}, live.collections)
}

func TestItemService_Delete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name    string
		sess    *session.Session
		code    string
		deleted bool
	}{
		{"owner", &session.Session{UserID: "owner-1"}, "", true},
		{"admin", &session.Session{UserID: "admin-1"}, "", true},
		{"stranger", &session.Session{UserID: "u-9"}, models.CodeForbidden, false},
		{"anonymous", nil, models.CodeUnauthorized, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &itemRepoStub{getByIDFn: ownedItem("kuis-abc123", "owner-1")}
			svc := NewItemService(models.KindGame, repo, nil, nil, adminIs("admin-1"), 0)

			err := svc.Delete(ctx, tt.sess, "kuis-abc123")
			if tt.code != "" {
				assertCode(t, err, tt.code)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.deleted, len(repo.deleted) == 1)
		})
	}
}

func TestItemService_Create_Validation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sess := &session.Session{UserID: "u-1", Email: "guru@sekolah.id"}

	tests := []struct {
		name   string
		kind   models.ItemKind
		mutate func(*ItemInput)
	}{
		{"blank title", models.KindGame, func(in *ItemInput) { in.Title = "   " }},
		{"long title", models.KindGame, func(in *ItemInput) { in.Title = strings.Repeat("a", 201) }},
		{"unknown subject", models.KindGame, func(in *ItemInput) { in.Subject = "Astrologi" }},
		{"game without class", models.KindGame, func(in *ItemInput) { in.Class = "" }},
		{"empty content", models.KindLab, func(in *ItemInput) { in.Content = " " }},
		{"content too large", models.KindLab, func(in *ItemInput) { in.Content = strings.Repeat("x", 1025) }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &itemRepoStub{}
			svc := NewItemService(tt.kind, repo, nil, nil, nil, 1024)
			in := validGame()
			tt.mutate(&in)
			_, err := svc.Create(ctx, sess, in)
			assertCode(t, err, models.CodeValidation)
			assert.Empty(t, repo.created)
		})
	}
}

func TestItemService_Create(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{}
	live := &livePublisherStub{err: errors.New("redis down")}
	svc := NewItemService(models.KindGame, repo, nil, live, nil, 0)

	item, err := svc.Create(context.Background(),
		&session.Session{UserID: "u-1", Email: "sari@sekolah.id"}, validGame())
	require.NoError(t, err, "a failed live push does not fail the upload")
	require.Len(t, repo.created, 1)

	assert.True(t, strings.HasPrefix(item.ID, "kuis-pecahan-seru-"), item.ID)
	assert.Len(t, item.ID, len("kuis-pecahan-seru-")+6)
	assert.Equal(t, "Kuis Pecahan Seru", item.Title)
	assert.Equal(t, "sari", item.AuthorName)
	assert.Equal(t, "u-1", item.OwnerID)
	assert.Zero(t, item.Views)
	require.NotNil(t, item.CreatedAt)
}

func TestItemService_Create_LabDropsClass(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{}
	svc := NewItemService(models.KindLab, repo, nil, nil, nil, 0)
	in := validGame()
	in.Subject = "Fisika"

	item, err := svc.Create(context.Background(), &session.Session{UserID: "u-1", DisplayName: "Pak Budi"}, in)
	require.NoError(t, err)
	assert.Empty(t, item.Class)
	assert.Equal(t, models.KindLab, item.Kind)
	assert.Equal(t, "Pak Budi", item.AuthorName)
}

func itemsAt(now time.Time, specs ...struct {
	title   string
	subject string
	views   int
	age     time.Duration
}) []models.Item {
	out := make([]models.Item, 0, len(specs))
	for i, s := range specs {
		created := now.Add(-s.age)
		out = append(out, models.Item{
			ID: s.title, Kind: models.KindGame, Title: s.title, Subject: s.subject,
			Class: "Kelas 5", Views: s.views, CreatedAt: &created, OwnerID: "u-" + string(rune('a'+i)),
		})
	}
	return out
}

func TestItemService_Browse(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	type fixture = struct {
		title   string
		subject string
		views   int
		age     time.Duration
	}
	repo := &itemRepoStub{snapshot: itemsAt(now,
		fixture{"Kuis Matematika", "Matematika", 3, time.Hour},
		fixture{"Game IPA", "IPA", 9, 2 * time.Hour},
		fixture{"Lomba matematika cepat", "Matematika", 1, 3 * time.Hour},
	)}
	svc := NewItemService(models.KindGame, repo, nil, nil, nil, 0)
	ctx := context.Background()

	page, err := svc.Browse(ctx, BrowseInput{Search: "Matematika"})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "Kuis Matematika", page.Items[0].Title)
	assert.Equal(t, "Lomba matematika cepat", page.Items[1].Title)
	assert.Equal(t, 1, page.TotalPages)

	all, err := svc.Browse(ctx, BrowseInput{Subject: catalog.All, Class: catalog.All})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	// A stale filter key sends the caller back to page 1.
	reset, err := svc.Browse(ctx, BrowseInput{Subject: "IPA", Page: 4, FilterKey: all.FilterKey})
	require.NoError(t, err)
	assert.Equal(t, 1, reset.Page)
	assert.Equal(t, 1, reset.Total)
}

func TestItemService_Popular(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	type fixture = struct {
		title   string
		subject string
		views   int
		age     time.Duration
	}
	snapshot := itemsAt(now,
		fixture{"a", "IPA", 5, time.Hour},
		fixture{"b", "IPA", 20, 2 * time.Hour},
		fixture{"c", "IPA", 20, 3 * time.Hour},
		fixture{"d", "IPA", 1, 4 * time.Hour},
		fixture{"old", "IPA", 500, 40 * 24 * time.Hour},
	)
	snapshot = append(snapshot, models.Item{ID: "legacy", Title: "legacy", Views: 900})
	repo := &itemRepoStub{snapshot: snapshot}
	svc := NewItemService(models.KindGame, repo, nil, nil, nil, 0)

	page, err := svc.Popular(context.Background(), PopularInput{Window: catalog.Weekly})
	require.NoError(t, err)
	titles := make([]string, 0, len(page.Items))
	for _, it := range page.Items {
		titles = append(titles, it.Title)
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, titles)

	allTime, err := svc.Popular(context.Background(), PopularInput{Window: catalog.Unbounded})
	require.NoError(t, err)
	assert.Equal(t, "legacy", allTime.Items[0].Title)
	assert.Equal(t, 6, allTime.Total)
}

func TestItemService_ListByOwner(t *testing.T) {
	t.Parallel()

	repo := &itemRepoStub{listed: make([]models.Item, 12)}
	svc := NewItemService(models.KindGame, repo, nil, nil, nil, 0)

	page, err := svc.ListByOwner(context.Background(), "u-1", 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, repo.lastQuery.Where, 1)
	assert.Equal(t, "owner_id", repo.lastQuery.Where[0].Field)
	assert.Equal(t, "u-1", repo.lastQuery.Where[0].Value)
}
