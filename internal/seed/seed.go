package seed

import (
	"fmt"
	"log/slog"

	"mainq/internal/models"
	"mainq/internal/service"

	"gorm.io/gorm"
)

// Options controls how much demo data is created.
type Options struct {
	Users    int
	Games    int
	Labs     int
	Articles int
	// CommentsPerEntry is the upper bound of comments on each entry.
	CommentsPerEntry int
	MaxDays          int
	LegacyRatio      float64
	RandSeed         int64
	SkipBcrypt       bool
}

// DefaultOptions returns a small but varied demo data set.
func DefaultOptions() Options {
	return Options{
		Users:            12,
		Games:            40,
		Labs:             20,
		Articles:         25,
		CommentsPerEntry: 4,
		MaxDays:          90,
		LegacyRatio:      0.1,
	}
}

func (o Options) withDefaults() Options {
	if o.Users <= 0 {
		o.Users = 1
	}
	if o.MaxDays <= 0 {
		o.MaxDays = 90
	}
	if o.LegacyRatio < 0 || o.LegacyRatio > 1 {
		o.LegacyRatio = 0
	}
	return o
}

// Result counts what a run created.
type Result struct {
	Users         int
	Items         int
	Articles      int
	Comments      int
	Notifications int
}

// Seeder creates demo data in one database.
type Seeder struct {
	db *gorm.DB
}

// NewSeeder returns a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// ClearAll removes every row of every seeded table, children first.
func (s *Seeder) ClearAll() error {
	tables := []any{
		&models.Notification{},
		&models.Comment{},
		&models.Article{},
		&models.Item{},
		&models.Profile{},
		&models.User{},
	}
	for _, t := range tables {
		if err := s.db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(t).Error; err != nil {
			return fmt.Errorf("clear %T: %w", t, err)
		}
	}
	return nil
}

// Run creates users, their uploads and articles, and comment threads. A
// comment from someone other than the owner also notifies the owner, as it
// would through the API.
func (s *Seeder) Run(opts Options) (Result, error) {
	var res Result
	f, err := NewFactory(s.db, opts)
	if err != nil {
		return res, err
	}
	opts = f.opts

	users := make([]*models.User, 0, opts.Users)
	for i := 0; i < opts.Users; i++ {
		u, err := f.CreateUser()
		if err != nil {
			return res, err
		}
		users = append(users, u)
	}
	res.Users = len(users)
	owner := func() *models.User { return users[f.rng.Intn(len(users))] }

	type parent struct {
		typ   models.ParentType
		id    string
		title string
		owner *models.User
	}
	var parents []parent

	for kind, n := range map[models.ItemKind]int{models.KindGame: opts.Games, models.KindLab: opts.Labs} {
		for i := 0; i < n; i++ {
			u := owner()
			item := f.BuildItem(kind, u)
			if err := s.db.Create(item).Error; err != nil {
				return res, fmt.Errorf("create %s: %w", kind, err)
			}
			res.Items++
			parents = append(parents, parent{models.ParentForKind(kind), item.ID, item.Title, u})
		}
	}

	for i := 0; i < opts.Articles; i++ {
		u := owner()
		article := f.BuildArticle(u)
		if err := s.db.Create(article).Error; err != nil {
			return res, fmt.Errorf("create article: %w", err)
		}
		res.Articles++
		parents = append(parents, parent{models.ParentArticle, article.ID, article.Title, u})
	}

	if opts.CommentsPerEntry <= 0 {
		return res, nil
	}
	for _, p := range parents {
		n := f.rng.Intn(opts.CommentsPerEntry + 1)
		for i := 0; i < n; i++ {
			author := owner()
			comment := f.BuildComment(p.typ, p.id, author)
			if err := s.db.Create(comment).Error; err != nil {
				return res, fmt.Errorf("create comment: %w", err)
			}
			res.Comments++

			if author.ID == p.owner.ID {
				continue
			}
			notification := &models.Notification{
				RecipientID:  p.owner.ID,
				SenderName:   author.DisplayName,
				Type:         models.NotificationComment,
				ContentTitle: p.title,
				Link:         service.ContentLink(p.typ, p.id),
				Read:         f.rng.Intn(2) == 0,
				CreatedAt:    comment.CreatedAt,
			}
			if err := s.db.Create(notification).Error; err != nil {
				return res, fmt.Errorf("create notification: %w", err)
			}
			res.Notifications++
		}
	}

	slog.Info("seed complete",
		"users", res.Users,
		"items", res.Items,
		"articles", res.Articles,
		"comments", res.Comments,
		"notifications", res.Notifications,
	)
	return res, nil
}
