package newsletter

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/metrics"
	"github.com/equitraccion/site/pkg/store"
)

// Source is the read-only view of the database a campaign needs.
type Source interface {
	ActiveSubscriberEmails(ctx context.Context) ([]string, error)
	PostsPublishedBetween(ctx context.Context, from, to time.Time) ([]store.Post, error)
	PublishedPosts(ctx context.Context, limit int) ([]store.Post, error)
	ActiveCourses(ctx context.Context) ([]store.Course, error)
}

// Report describes one campaign run.
type Report struct {
	Subscribers int      `json:"subscribers"`
	Posts       int      `json:"posts"`
	Courses     int      `json:"courses"`
	Month       string   `json:"month"`
	Year        string   `json:"year"`
	Sent        int      `json:"sent"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
}

type CampaignConfig struct {
	SiteName string
	BaseURL  string
	// Now defaults to time.Now
	Now func() time.Time
}

// Campaign builds the monthly issue from the database and hands it to a Dispatcher.
type Campaign struct {
	source     Source
	dispatcher Dispatcher
	cfg        CampaignConfig
	log        *zap.SugaredLogger
}

func NewCampaign(source Source, dispatcher Dispatcher, cfg CampaignConfig, log *zap.SugaredLogger) *Campaign {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Campaign{
		source:     source,
		dispatcher: dispatcher,
		cfg:        cfg,
		log:        log.Named("newsletter"),
	}
}

// Subject returns the mail subject for an issue.
func (c *Campaign) Subject(content Content) string {
	return fmt.Sprintf("Newsletter %s - %s %s", c.cfg.SiteName, content.Month, content.Year)
}

func issueLabel(now time.Time) (month, year string) {
	from, _ := PreviousMonth(now)
	return mail.SpanishMonth(from.Month()), strconv.Itoa(from.Year())
}

// SelectContent returns the posts published during the previous calendar month
// and the active courses with a date in the next three months.
func (c *Campaign) SelectContent(ctx context.Context) (Content, error) {
	now := c.cfg.Now()
	from, to := PreviousMonth(now)

	posts, err := c.source.PostsPublishedBetween(ctx, from, to)
	if err != nil {
		return Content{}, fmt.Errorf("fetching posts: %w", err)
	}
	courses, err := c.source.ActiveCourses(ctx)
	if err != nil {
		return Content{}, fmt.Errorf("fetching courses: %w", err)
	}

	month, year := issueLabel(now)
	return Content{
		Month:   month,
		Year:    year,
		Posts:   posts,
		Courses: UpcomingCourses(courses, now, now.AddDate(0, CourseHorizon, 0)),
	}, nil
}

// previewContent shows the latest posts regardless of date and every future course date.
func (c *Campaign) previewContent(ctx context.Context) (Content, error) {
	now := c.cfg.Now()
	posts, err := c.source.PublishedPosts(ctx, PreviewPosts)
	if err != nil {
		return Content{}, fmt.Errorf("fetching posts: %w", err)
	}
	courses, err := c.source.ActiveCourses(ctx)
	if err != nil {
		return Content{}, fmt.Errorf("fetching courses: %w", err)
	}
	month, year := issueLabel(now)
	return Content{
		Month:   month,
		Year:    year,
		Posts:   posts,
		Courses: UpcomingCourses(courses, now, time.Time{}),
	}, nil
}

// Preview renders the HTML of the next issue without sending anything.
func (c *Campaign) Preview(ctx context.Context) (string, error) {
	content, err := c.previewContent(ctx)
	if err != nil {
		return "", err
	}
	html, _, err := mail.RenderNewsletter(content.Params(c.cfg.SiteName, c.cfg.BaseURL))
	return html, err
}

// Run selects the content, renders it once and dispatches it to every active
// subscriber. ErrNoRecipients is returned together with a valid report when
// nobody is subscribed. Delivery failures are part of the report, not errors.
func (c *Campaign) Run(ctx context.Context) (Report, error) {
	content, err := c.SelectContent(ctx)
	if err != nil {
		metrics.NewsletterRuns.WithLabelValues("error").Inc()
		return Report{}, err
	}
	report := Report{
		Posts:   len(content.Posts),
		Courses: len(content.Courses),
		Month:   content.Month,
		Year:    content.Year,
	}
	c.log.Infow("Generating newsletter", "month", content.Month, "year", content.Year,
		"posts", report.Posts, "courses", report.Courses)

	html, text, err := mail.RenderNewsletter(content.Params(c.cfg.SiteName, c.cfg.BaseURL))
	if err != nil {
		metrics.NewsletterRuns.WithLabelValues("error").Inc()
		return report, err
	}

	recipients, err := c.source.ActiveSubscriberEmails(ctx)
	if err != nil {
		metrics.NewsletterRuns.WithLabelValues("error").Inc()
		return report, fmt.Errorf("fetching subscribers: %w", err)
	}
	report.Subscribers = len(recipients)
	if len(recipients) == 0 {
		metrics.NewsletterRuns.WithLabelValues("empty").Inc()
		c.log.Info("No active subscribers, nothing to send")
		return report, ErrNoRecipients
	}

	res := c.dispatcher.Dispatch(ctx, recipients, Template{
		Subject: c.Subject(content),
		HTML:    html,
		Text:    text,
	})
	report.Sent = res.Sent
	report.Failed = res.Failed
	report.Errors = res.Errors

	outcome := "success"
	if !res.Success() {
		outcome = "failed"
	}
	metrics.NewsletterRuns.WithLabelValues(outcome).Inc()
	c.log.Infow("Newsletter dispatched", "sent", res.Sent, "failed", res.Failed)
	return report, nil
}

// IsNoRecipients reports whether err means the subscriber list was empty.
func IsNoRecipients(err error) bool {
	return errors.Is(err, ErrNoRecipients)
}
