// Package seed provides helpers to create demo data for development
// databases and tests.
package seed

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"mainq/internal/models"
	"mainq/internal/slug"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

var (
	firstNames = []string{"Sari", "Budi", "Rina", "Agus", "Dewi", "Eko", "Fitri", "Hendra", "Indah", "Joko", "Lestari", "Wahyu"}
	honorifics = []string{"Bu", "Pak"}
	topics     = []string{"Pecahan", "Tata Surya", "Fotosintesis", "Pantun", "Peta Indonesia", "Perkalian", "Gaya dan Gerak", "Kosakata Inggris", "Pancasila", "Siklus Air"}
	formats    = []string{"Kuis", "Teka-teki", "Petualangan", "Tebak Gambar", "Simulasi", "Lab Virtual"}
	remarks    = []string{"Terima kasih, sangat membantu!", "Murid saya suka sekali.", "Izin pakai di kelas ya, Bu.", "Keren, ditunggu materi lainnya.", "Apakah ada versi untuk kelas lain?"}
)

// Factory builds domain records and persists them.
type Factory struct {
	db   *gorm.DB
	opts Options
	rng  *rand.Rand
	now  time.Time
	hash string
}

// NewFactory creates a Factory bound to db. A zero Options.RandSeed seeds
// from the clock.
func NewFactory(db *gorm.DB, opts Options) (*Factory, error) {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	gofakeit.Seed(seed)

	var hash string
	if opts.SkipBcrypt {
		hash = DemoPassword
	} else {
		b, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash demo password: %w", err)
		}
		hash = string(b)
	}

	return &Factory{
		db:   db,
		opts: opts.withDefaults(),
		rng:  rand.New(rand.NewSource(seed)),
		now:  time.Now(),
		hash: hash,
	}, nil
}

func (f *Factory) pick(list []string) string {
	return list[f.rng.Intn(len(list))]
}

// createdAt spreads timestamps over the last MaxDays. A LegacyRatio share of
// records get no timestamp, like entries imported before dates were kept.
func (f *Factory) createdAt() *time.Time {
	if f.rng.Float64() < f.opts.LegacyRatio {
		return nil
	}
	back := time.Duration(f.rng.Intn(f.opts.MaxDays*24*60)) * time.Minute
	t := f.now.Add(-back)
	return &t
}

// views skews toward a long tail: most entries have a handful, a few are hits.
func (f *Factory) views() int {
	if f.rng.Intn(10) == 0 {
		return 200 + f.rng.Intn(1800)
	}
	return f.rng.Intn(60)
}

// CreateUser persists an account with its profile.
func (f *Factory) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	first := f.pick(firstNames)
	name := f.pick(honorifics) + " " + first
	user := &models.User{
		ID:            uuid.NewString(),
		Email:         strings.ToLower(fmt.Sprintf("%s.%s@%s", first, gofakeit.LetterN(5), "guru.mainq.id")),
		Password:      f.hash,
		Provider:      models.ProviderPassword,
		DisplayName:   name,
		PhotoURL:      fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		EmailVerified: gofakeit.Bool(),
	}
	for _, override := range overrides {
		override(user)
	}

	return user, f.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		profile := &models.Profile{
			UserID:      user.ID,
			DisplayName: user.DisplayName,
			Bio:         "Guru " + f.pick(models.Subjects) + ". " + gofakeit.Sentence(8),
			PhotoURL:    user.PhotoURL,
		}
		if err := tx.Create(profile).Error; err != nil {
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
}

// BuildItem constructs an unsaved game or lab owned by owner.
func (f *Factory) BuildItem(kind models.ItemKind, owner *models.User) *models.Item {
	topic := f.pick(topics)
	title := f.pick(formats) + " " + topic
	item := &models.Item{
		ID:          slug.NewID(title),
		Kind:        kind,
		OwnerID:     owner.ID,
		AuthorName:  owner.DisplayName,
		Title:       title,
		Description: gofakeit.Sentence(12),
		Subject:     f.pick(models.Subjects),
		Content:     demoPayload(title),
		Views:       f.views(),
		CreatedAt:   f.createdAt(),
		UpdatedAt:   f.now,
	}
	if kind == models.KindGame {
		item.Class = f.pick(models.Classes)
	}
	return item
}

// BuildArticle constructs an unsaved article owned by owner.
func (f *Factory) BuildArticle(owner *models.User) *models.Article {
	topic := f.pick(topics)
	category := models.ArticleCategories[f.rng.Intn(len(models.ArticleCategories))]
	title := fmt.Sprintf("%s: %s", strings.ToUpper(string(category[:1]))+string(category[1:]), topic)

	var body strings.Builder
	for i := 0; i < 3; i++ {
		body.WriteString("<p>")
		body.WriteString(gofakeit.Paragraph(1, 3, 10, " "))
		body.WriteString("</p>")
	}
	return &models.Article{
		ID:         slug.NewID(title),
		OwnerID:    owner.ID,
		AuthorName: owner.DisplayName,
		Title:      title,
		Category:   category,
		Labels:     models.Labels{strings.ToLower(topic), f.pick(models.Subjects)},
		Content:    body.String(),
		Views:      f.views(),
		CreatedAt:  f.createdAt(),
		UpdatedAt:  f.now,
	}
}

// BuildComment constructs an unsaved comment by author on a parent entry.
func (f *Factory) BuildComment(parentType models.ParentType, parentID string, author *models.User) *models.Comment {
	return &models.Comment{
		ParentType:  parentType,
		ParentID:    parentID,
		OwnerID:     author.ID,
		AuthorName:  author.DisplayName,
		AuthorPhoto: author.PhotoURL,
		Body:        f.pick(remarks),
		CreatedAt:   f.now.Add(-time.Duration(f.rng.Intn(72*60)) * time.Minute),
	}
}

func demoPayload(title string) string {
	return `<!DOCTYPE html><html lang="id"><head><meta charset="utf-8"><title>` + title +
		`</title></head><body><h1>` + title + `</h1><p>Konten contoh untuk pengembangan.</p></body></html>`
}
