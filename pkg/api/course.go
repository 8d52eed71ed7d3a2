package api

import (
	"fmt"
	"time"

	"github.com/equitraccion/site/pkg/apiresponses"
	"github.com/equitraccion/site/pkg/store"
	"github.com/equitraccion/site/pkg/validation"
)

// courseDateLayouts are tried in order; admins usually type plain dates.
var courseDateLayouts = []string{time.RFC3339, "2006-01-02T15:04", "2006-01-02"}

func parseCourseDate(field, value string) (time.Time, error) {
	for _, layout := range courseDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, apiresponses.NewValidationError("%s must be a date (YYYY-MM-DD) or an RFC 3339 timestamp", field)
}

func (r courseRequest) toCourse(v *validation.Validator) (*store.Course, error) {
	course := &store.Course{
		Title:           v.Text(r.Title),
		DurationDays:    r.DurationDays,
		Level:           v.Text(r.Level),
		ExperienceLevel: v.Text(r.ExperienceLevel),
		MaxParticipants: r.MaxParticipants,
		Price:           r.Price,
		TargetAudience:  v.Text(r.TargetAudience),
		Requirements:    v.Text(r.Requirements),
		Location:        v.Text(r.Location),
		Active:          r.Active == nil || *r.Active,
	}
	if course.Title == "" {
		return nil, apiresponses.NewValidationError("title is required")
	}
	for _, item := range r.Contents {
		if item = v.Text(item); item != "" {
			course.Contents = append(course.Contents, item)
		}
	}
	for i, d := range r.Dates {
		start, err := parseCourseDate(fmt.Sprintf("dates[%d].start", i), d.Start)
		if err != nil {
			return nil, err
		}
		end, err := parseCourseDate(fmt.Sprintf("dates[%d].end", i), d.End)
		if err != nil {
			return nil, err
		}
		if end.Before(start) {
			return nil, apiresponses.NewValidationError("dates[%d].end must not be before start", i)
		}
		course.Dates = append(course.Dates, store.CourseDate{Start: start, End: end, SpotsAvailable: d.SpotsAvailable})
	}
	return course, nil
}
