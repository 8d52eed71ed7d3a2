package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(Options{Driver: DriverSQLite, DSN: ":memory:", AutoMigrate: true})
	require.NoError(t, err)
	s := New(db, zaptest.NewLogger(t).Sugar())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "mysql"})
	assert.Error(t, err)
}

func TestSubscribers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	sub := &Subscriber{Email: "  Ana@Example.org "}
	require.NoError(t, s.CreateSubscriber(ctx, sub))
	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.Equal(t, "ana@example.org", sub.Email)
	assert.Equal(t, SubscriberActive, sub.Status)

	err := s.CreateSubscriber(ctx, &Subscriber{Email: "ana@example.org"})
	assert.ErrorIs(t, err, ErrConflict)

	got, err := s.SubscriberByEmail(ctx, "ANA@example.org")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)

	_, err = s.SubscriberByEmail(ctx, "nobody@example.org")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.CreateSubscriber(ctx, &Subscriber{Email: "bea@example.org"}))
	require.NoError(t, s.SetSubscriberStatus(ctx, sub.ID, SubscriberUnsubscribed))
	assert.ErrorIs(t, s.SetSubscriberStatus(ctx, uuid.New(), SubscriberActive), ErrNotFound)

	emails, err := s.ActiveSubscriberEmails(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bea@example.org"}, emails)

	unsubscribed, err := s.ListSubscribers(ctx, SubscriberUnsubscribed)
	require.NoError(t, err)
	require.Len(t, unsubscribed, 1)
	assert.Equal(t, "ana@example.org", unsubscribed[0].Email)

	all, err := s.ListSubscribers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestLegacyInactiveStatusIsUnsubscribed(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.CreateSubscriber(ctx, &Subscriber{Email: "old@example.org", Status: "inactive"}))

	got, err := s.SubscriberByEmail(ctx, "old@example.org")
	require.NoError(t, err)
	assert.Equal(t, SubscriberUnsubscribed, got.Status)

	unsubscribed, err := s.ListSubscribers(ctx, SubscriberUnsubscribed)
	require.NoError(t, err)
	assert.Len(t, unsubscribed, 1)

	emails, err := s.ActiveSubscriberEmails(ctx)
	require.NoError(t, err)
	assert.Empty(t, emails)
}

func TestSubscriberStatus(t *testing.T) {
	assert.Equal(t, SubscriberUnsubscribed, SubscriberActive.Toggle())
	assert.Equal(t, SubscriberActive, SubscriberUnsubscribed.Toggle())
	assert.Equal(t, SubscriberActive, SubscriberStatus("inactive").Toggle())
	assert.False(t, SubscriberStatus("inactive").IsActive())
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	at := func(d int) *time.Time {
		ts := time.Date(2026, 9, d, 10, 0, 0, 0, time.UTC)
		return &ts
	}
	require.NoError(t, s.CreatePost(ctx, &Post{Title: "A", Slug: "a", Published: true, PublishedAt: at(3)}))
	require.NoError(t, s.CreatePost(ctx, &Post{Title: "B", Slug: "b", Published: true, PublishedAt: at(20)}))
	draft := &Post{Title: "Draft", Slug: "draft", Tags: []string{"x"}}
	require.NoError(t, s.CreatePost(ctx, draft))

	assert.ErrorIs(t, s.CreatePost(ctx, &Post{Title: "dup", Slug: "a"}), ErrConflict)

	between, err := s.PostsPublishedBetween(ctx, *at(1), *at(15))
	require.NoError(t, err)
	require.Len(t, between, 1)
	assert.Equal(t, "a", between[0].Slug)

	published, err := s.PublishedPosts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, published, 2)
	assert.Equal(t, "b", published[0].Slug, "newest publication first")

	toggled, err := s.SetPostPublished(ctx, draft.ID, true)
	require.NoError(t, err)
	assert.True(t, toggled.Published)
	require.NotNil(t, toggled.PublishedAt)

	published, err = s.PublishedPosts(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, published, 3)

	_, err = s.SetPostPublished(ctx, uuid.New(), true)
	assert.ErrorIs(t, err, ErrNotFound)

	hidden, err := s.TogglePostPublished(ctx, draft.ID)
	require.NoError(t, err)
	assert.False(t, hidden.Published)
	assert.NotNil(t, hidden.PublishedAt, "unpublishing keeps the first publication date")
	shown, err := s.TogglePostPublished(ctx, draft.ID)
	require.NoError(t, err)
	assert.True(t, shown.Published)

	_, err = s.TogglePostPublished(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.DeletePost(ctx, draft.ID))
	assert.ErrorIs(t, s.DeletePost(ctx, draft.ID), ErrNotFound)

	all, err := s.ListPosts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestCoursesAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	start := time.Date(2026, 11, 2, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.CreateCourse(ctx, &Course{
		Title:  "Poda",
		Active: true,
		Dates:  []CourseDate{{Start: start, End: start.Add(8 * time.Hour)}},
	}))
	require.NoError(t, s.CreateCourse(ctx, &Course{Title: "Old", Active: false}))

	courses, err := s.ActiveCourses(ctx)
	require.NoError(t, err)
	require.Len(t, courses, 1)
	require.Len(t, courses[0].Dates, 1)
	assert.True(t, start.Equal(courses[0].Dates[0].Start))

	msg := &ContactSubmission{Name: "Ana", Email: "ANA@example.org", Subject: "Hola", Message: "Info", Category: "general"}
	require.NoError(t, s.CreateMessage(ctx, msg))
	assert.Equal(t, MessageNew, msg.Status)
	assert.Equal(t, "ana@example.org", msg.Email)

	require.NoError(t, s.SetMessageStatus(ctx, msg.ID, MessageRead))
	assert.Error(t, s.SetMessageStatus(ctx, msg.ID, "spam"))
	assert.ErrorIs(t, s.SetMessageStatus(ctx, uuid.New(), MessageRead), ErrNotFound)

	read, err := s.ListMessages(ctx, MessageRead)
	require.NoError(t, err)
	assert.Len(t, read, 1)

	require.NoError(t, s.CreateSubscriber(ctx, &Subscriber{Email: "a@example.org"}))
	require.NoError(t, s.CreateSubscriber(ctx, &Subscriber{Email: "b@example.org", Status: SubscriberUnsubscribed}))
	require.NoError(t, s.CreatePost(ctx, &Post{Title: "P", Slug: "p"}))

	assert.Equal(t, Stats{Posts: 1, Courses: 1, Subscribers: 1, Messages: 1}, s.Stats(ctx))

	require.NoError(t, s.DeleteMessage(ctx, msg.ID))
	assert.ErrorIs(t, s.DeleteMessage(ctx, msg.ID), ErrNotFound)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
