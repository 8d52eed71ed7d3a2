package store

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	// subscriberInactive is the legacy spelling of unsubscribed found in older rows
	subscriberInactive SubscriberStatus = "inactive"
)

// IsActive reports whether newsletters go to the subscriber.
func (s SubscriberStatus) IsActive() bool {
	return s == SubscriberActive
}

// Normalize maps legacy values onto the two known states.
func (s SubscriberStatus) Normalize() SubscriberStatus {
	if s == subscriberInactive {
		return SubscriberUnsubscribed
	}
	return s
}

// Toggle returns the opposite state.
func (s SubscriberStatus) Toggle() SubscriberStatus {
	if s.IsActive() {
		return SubscriberUnsubscribed
	}
	return SubscriberActive
}

type Subscriber struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string           `gorm:"uniqueIndex;not null" json:"email"`
	Status    SubscriberStatus `gorm:"index;not null" json:"status"`
	Source    string           `json:"source,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func (Subscriber) TableName() string { return "newsletter_subscriptions" }

func (s *Subscriber) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Email = NormalizeEmail(s.Email)
	if s.Status == "" {
		s.Status = SubscriberActive
	}
	return nil
}

type Post struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Title       string     `gorm:"not null" json:"title"`
	Slug        string     `gorm:"uniqueIndex;not null" json:"slug"`
	Excerpt     string     `json:"excerpt"`
	Content     string     `json:"content,omitempty"`
	CoverImage  string     `json:"coverImage,omitempty"`
	Author      string     `json:"author,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `gorm:"serializer:json" json:"tags,omitempty"`
	Published   bool       `gorm:"index" json:"published"`
	PublishedAt *time.Time `gorm:"index" json:"publishedAt,omitempty"`
	ReadingTime int        `json:"readingTime,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (Post) TableName() string { return "blog_posts" }

func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// LastModified is the newest of update and publication time.
func (p Post) LastModified() time.Time {
	if !p.UpdatedAt.IsZero() {
		return p.UpdatedAt
	}
	if p.PublishedAt != nil {
		return *p.PublishedAt
	}
	return p.CreatedAt
}

type CourseDate struct {
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	SpotsAvailable int       `json:"spotsAvailable,omitempty"`
}

type Course struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string       `gorm:"not null" json:"title"`
	DurationDays    int          `json:"durationDays"`
	Level           string       `json:"level"`
	ExperienceLevel string       `json:"experienceLevel,omitempty"`
	MaxParticipants int          `json:"maxParticipants"`
	Price           float64      `json:"price"`
	TargetAudience  string       `json:"targetAudience,omitempty"`
	Contents        []string     `gorm:"serializer:json" json:"contents,omitempty"`
	Requirements    string       `json:"requirements,omitempty"`
	Dates           []CourseDate `gorm:"serializer:json" json:"dates"`
	Location        string       `json:"location"`
	Active          bool         `gorm:"index" json:"active"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

func (Course) TableName() string { return "courses" }

func (c *Course) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type MessageStatus string

const (
	MessageNew      MessageStatus = "new"
	MessageRead     MessageStatus = "read"
	MessageReplied  MessageStatus = "replied"
	MessageArchived MessageStatus = "archived"
)

// Valid reports whether s is one of the known message states.
func (s MessageStatus) Valid() bool {
	switch s {
	case MessageNew, MessageRead, MessageReplied, MessageArchived:
		return true
	}
	return false
}

// ContactCategories are the topics a contact form submission can be filed under.
var ContactCategories = []string{"forestales", "desarrollo", "formacion", "general"}

type ContactSubmission struct {
	ID        uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string        `gorm:"not null" json:"name"`
	Email     string        `gorm:"not null" json:"email"`
	Phone     string        `json:"phone,omitempty"`
	Subject   string        `gorm:"not null" json:"subject"`
	Message   string        `gorm:"not null" json:"message"`
	Category  string        `gorm:"index;not null" json:"category"`
	Status    MessageStatus `gorm:"index;not null" json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (ContactSubmission) TableName() string { return "contact_submissions" }

func (m *ContactSubmission) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.Email = NormalizeEmail(m.Email)
	if m.Status == "" {
		m.Status = MessageNew
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Models lists every persisted type, in migration order.
func Models() []any {
	return []any{&Subscriber{}, &Post{}, &Course{}, &ContactSubmission{}}
}
