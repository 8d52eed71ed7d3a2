package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

type Options struct {
	Driver      string
	DSN         string
	AutoMigrate bool
	// Debug logs every SQL statement
	Debug bool
}

// Open connects to the configured database and optionally migrates the schema.
func Open(opts Options) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.Driver == DriverSQLite {
		// a single connection keeps ":memory:" databases alive and serializes writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if opts.AutoMigrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates the tables of all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Store is the repository used by the HTTP handlers and the newsletter campaign.
type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, log: log}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", op, ErrConflict)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func affected(op string, res *gorm.DB) error {
	if res.Error != nil {
		return translate(op, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

// Subscribers

func (s *Store) SubscriberByEmail(ctx context.Context, email string) (*Subscriber, error) {
	var sub Subscriber
	err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&sub).Error
	if err != nil {
		return nil, translate("get subscriber", err)
	}
	sub.Status = sub.Status.Normalize()
	return &sub, nil
}

func (s *Store) SubscriberByID(ctx context.Context, id uuid.UUID) (*Subscriber, error) {
	var sub Subscriber
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		return nil, translate("get subscriber", err)
	}
	sub.Status = sub.Status.Normalize()
	return &sub, nil
}

func (s *Store) CreateSubscriber(ctx context.Context, sub *Subscriber) error {
	return translate("create subscriber", s.db.WithContext(ctx).Create(sub).Error)
}

func (s *Store) SetSubscriberStatus(ctx context.Context, id uuid.UUID, status SubscriberStatus) error {
	res := s.db.WithContext(ctx).Model(&Subscriber{}).Where("id = ?", id).Update("status", status)
	return affected("update subscriber status", res)
}

// ListSubscribers returns subscribers newest first, optionally filtered by status.
func (s *Store) ListSubscribers(ctx context.Context, status SubscriberStatus) ([]Subscriber, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	switch status.Normalize() {
	case "":
	case SubscriberUnsubscribed:
		q = q.Where("status IN ?", []SubscriberStatus{SubscriberUnsubscribed, subscriberInactive})
	default:
		q = q.Where("status = ?", status)
	}
	var subs []Subscriber
	if err := q.Find(&subs).Error; err != nil {
		return nil, translate("list subscribers", err)
	}
	for i := range subs {
		subs[i].Status = subs[i].Status.Normalize()
	}
	return subs, nil
}

// ActiveSubscriberEmails returns the recipients of the next newsletter in subscription order.
func (s *Store) ActiveSubscriberEmails(ctx context.Context) ([]string, error) {
	var emails []string
	err := s.db.WithContext(ctx).Model(&Subscriber{}).
		Where("status = ?", SubscriberActive).
		Order("created_at ASC").
		Pluck("email", &emails).Error
	if err != nil {
		return nil, translate("list active subscribers", err)
	}
	return emails, nil
}

// Posts

func (s *Store) CreatePost(ctx context.Context, p *Post) error {
	return translate("create post", s.db.WithContext(ctx).Create(p).Error)
}

func (s *Store) ListPosts(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := s.db.WithContext(ctx).Omit("content").Order("created_at DESC").Find(&posts).Error; err != nil {
		return nil, translate("list posts", err)
	}
	return posts, nil
}

// PublishedPosts returns all published posts, newest publication first.
func (s *Store) PublishedPosts(ctx context.Context, limit int) ([]Post, error) {
	q := s.db.WithContext(ctx).Omit("content").Where("published = ?", true).Order("published_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var posts []Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, translate("list published posts", err)
	}
	return posts, nil
}

// PostsPublishedBetween returns published posts with from <= publishedAt <= to, newest first.
func (s *Store) PostsPublishedBetween(ctx context.Context, from, to time.Time) ([]Post, error) {
	var posts []Post
	err := s.db.WithContext(ctx).Omit("content").
		Where("published = ? AND published_at >= ? AND published_at <= ?", true, from.UTC(), to.UTC()).
		Order("published_at DESC").
		Find(&posts).Error
	if err != nil {
		return nil, translate("list posts by publication date", err)
	}
	return posts, nil
}

// SetPostPublished changes the published flag; the first publication stamps publishedAt.
func (s *Store) SetPostPublished(ctx context.Context, id uuid.UUID, published bool) (*Post, error) {
	var post Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		updates := map[string]any{"published": published}
		if published && post.PublishedAt == nil {
			now := tx.NowFunc()
			updates["published_at"] = now
			post.PublishedAt = &now
		}
		post.Published = published
		return tx.Model(&post).Updates(updates).Error
	})
	if err != nil {
		return nil, translate("toggle post publication", err)
	}
	return &post, nil
}

// TogglePostPublished flips the published flag of a post and returns the updated post.
func (s *Store) TogglePostPublished(ctx context.Context, id uuid.UUID) (*Post, error) {
	var current Post
	if err := s.db.WithContext(ctx).Select("published").First(&current, "id = ?", id).Error; err != nil {
		return nil, translate("toggle post publication", err)
	}
	return s.SetPostPublished(ctx, id, !current.Published)
}

func (s *Store) DeletePost(ctx context.Context, id uuid.UUID) error {
	return affected("delete post", s.db.WithContext(ctx).Delete(&Post{}, "id = ?", id))
}

// Courses

func (s *Store) CreateCourse(ctx context.Context, c *Course) error {
	return translate("create course", s.db.WithContext(ctx).Create(c).Error)
}

// ActiveCourses returns active courses, newest first.
func (s *Store) ActiveCourses(ctx context.Context) ([]Course, error) {
	var courses []Course
	if err := s.db.WithContext(ctx).Where("active = ?", true).Order("created_at DESC").Find(&courses).Error; err != nil {
		return nil, translate("list active courses", err)
	}
	return courses, nil
}

// Contact submissions

func (s *Store) CreateMessage(ctx context.Context, m *ContactSubmission) error {
	return translate("create contact submission", s.db.WithContext(ctx).Create(m).Error)
}

func (s *Store) ListMessages(ctx context.Context, status MessageStatus) ([]ContactSubmission, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var msgs []ContactSubmission
	if err := q.Find(&msgs).Error; err != nil {
		return nil, translate("list contact submissions", err)
	}
	return msgs, nil
}

func (s *Store) SetMessageStatus(ctx context.Context, id uuid.UUID, status MessageStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid message status %q", status)
	}
	res := s.db.WithContext(ctx).Model(&ContactSubmission{}).Where("id = ?", id).Update("status", status)
	return affected("update contact submission", res)
}

func (s *Store) DeleteMessage(ctx context.Context, id uuid.UUID) error {
	return affected("delete contact submission", s.db.WithContext(ctx).Delete(&ContactSubmission{}, "id = ?", id))
}

// Stats

type Stats struct {
	Posts       int64 `json:"posts"`
	Courses     int64 `json:"courses"`
	Subscribers int64 `json:"subscribers"`
	Messages    int64 `json:"messages"`
}

// Stats counts the dashboard figures. A failing count is logged and reported as zero.
func (s *Store) Stats(ctx context.Context) Stats {
	var st Stats
	db := s.db.WithContext(ctx)
	count := func(name string, q *gorm.DB, dst *int64) {
		if err := q.Count(dst).Error; err != nil {
			s.log.Errorw("Failed to count records", "table", name, "error", err)
			*dst = 0
		}
	}
	count("blog_posts", db.Model(&Post{}), &st.Posts)
	count("courses", db.Model(&Course{}).Where("active = ?", true), &st.Courses)
	count("newsletter_subscriptions", db.Model(&Subscriber{}).Where("status = ?", SubscriberActive), &st.Subscribers)
	count("contact_submissions", db.Model(&ContactSubmission{}), &st.Messages)
	return st
}
