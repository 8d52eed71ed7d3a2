package newsletter

import (
	"sort"
	"time"

	"github.com/equitraccion/site/pkg/mail"
	"github.com/equitraccion/site/pkg/store"
)

const (
	// CourseHorizon is how far ahead the monthly newsletter looks for course dates.
	CourseHorizon = 3
	// PreviewPosts is the number of latest posts shown in a preview.
	PreviewPosts = 5
)

// Content is what one newsletter issue shows.
type Content struct {
	Month   string
	Year    string
	Posts   []store.Post
	Courses []store.Course
}

// PreviousMonth returns the first and last instant of the calendar month
// before now, in now's location.
func PreviousMonth(now time.Time) (from, to time.Time) {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	from = firstOfMonth.AddDate(0, -1, 0)
	to = firstOfMonth.Add(-time.Nanosecond)
	return from, to
}

// UpcomingCourses keeps the courses with at least one date starting in
// (now, until). Only those dates are kept, sorted by start. A zero until
// means no upper bound. The input is not modified.
func UpcomingCourses(courses []store.Course, now, until time.Time) []store.Course {
	upcoming := make([]store.Course, 0, len(courses))
	for _, c := range courses {
		var dates []store.CourseDate
		for _, d := range c.Dates {
			if !d.Start.After(now) {
				continue
			}
			if !until.IsZero() && !d.Start.Before(until) {
				continue
			}
			dates = append(dates, d)
		}
		if len(dates) == 0 {
			continue
		}
		sort.SliceStable(dates, func(i, j int) bool { return dates[i].Start.Before(dates[j].Start) })
		c.Dates = dates
		upcoming = append(upcoming, c)
	}
	return upcoming
}

// Params converts the issue into template parameters.
func (c Content) Params(siteName, baseURL string) mail.NewsletterParams {
	p := mail.NewsletterParams{
		SiteName: siteName,
		BaseURL:  baseURL,
		Month:    c.Month,
		Year:     c.Year,
	}
	for _, post := range c.Posts {
		p.Posts = append(p.Posts, mail.NewsletterPost{
			Title:      post.Title,
			Slug:       post.Slug,
			Excerpt:    post.Excerpt,
			CoverImage: post.CoverImage,
		})
	}
	for _, course := range c.Courses {
		nc := mail.NewsletterCourse{
			Title:           course.Title,
			ExperienceLevel: course.ExperienceLevel,
			Location:        course.Location,
			Price:           course.Price,
		}
		if len(course.Dates) > 0 {
			next := course.Dates[0]
			nc.SpotsAvailable = next.SpotsAvailable
			nc.DateRange = mail.SpanishDateRange(next.Start, next.End)
		}
		p.Courses = append(p.Courses, nc)
	}
	return p
}
