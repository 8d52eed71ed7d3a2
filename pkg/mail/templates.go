package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Masterminds/sprig/v3"
)

// EmailPlaceholder is replaced by each recipient's URL-escaped address when a
// newsletter is dispatched. Templates use [[ ]] delimiters so it survives rendering.
const EmailPlaceholder = "{{email}}"

//go:embed templates/*
var templateFS embed.FS

var (
	newsletterHTML = mustParseHTML("newsletter.html")
	newsletterText = mustParseText("newsletter.txt")
	welcomeHTML    = mustParseHTML("welcome.html")
	welcomeText    = mustParseText("welcome.txt")
	contactHTML    = mustParseHTML("contact.html")
)

func templateFuncs() map[string]any {
	funcs := sprig.GenericFuncMap()
	funcs["spanishDate"] = SpanishDate
	return funcs
}

func mustParseHTML(name string) *htmltemplate.Template {
	return htmltemplate.Must(htmltemplate.New(name).
		Delims("[[", "]]").
		Funcs(templateFuncs()).
		ParseFS(templateFS, "templates/"+name))
}

func mustParseText(name string) *texttemplate.Template {
	return texttemplate.Must(texttemplate.New(name).
		Delims("[[", "]]").
		Funcs(templateFuncs()).
		ParseFS(templateFS, "templates/"+name))
}

func render(execute func(*bytes.Buffer) error) (string, error) {
	b := bytes.Buffer{}
	if err := execute(&b); err != nil {
		return "", err
	}
	return b.String(), nil
}

type NewsletterPost struct {
	Title      string
	Slug       string
	Excerpt    string
	CoverImage string
}

type NewsletterCourse struct {
	Title           string
	ExperienceLevel string
	Location        string
	Price           float64
	SpotsAvailable  int
	DateRange       string
}

type NewsletterParams struct {
	SiteName string
	BaseURL  string
	Month    string
	Year     string
	Posts    []NewsletterPost
	Courses  []NewsletterCourse
}

type WelcomeParams struct {
	SiteName       string
	BaseURL        string
	Email          string
	UnsubscribeURL string
}

type ContactParams struct {
	Name       string
	Email      string
	Phone      string
	Subject    string
	Message    string
	Category   string
	ReceivedAt string
	AdminURL   string
}

// RenderNewsletter returns the HTML and plain text bodies. Both still contain EmailPlaceholder.
func RenderNewsletter(p NewsletterParams) (html, text string, err error) {
	html, err = render(func(b *bytes.Buffer) error { return newsletterHTML.Execute(b, p) })
	if err != nil {
		return "", "", fmt.Errorf("rendering newsletter html: %w", err)
	}
	text, err = render(func(b *bytes.Buffer) error { return newsletterText.Execute(b, p) })
	if err != nil {
		return "", "", fmt.Errorf("rendering newsletter text: %w", err)
	}
	return html, text, nil
}

func RenderWelcome(p WelcomeParams) (html, text string, err error) {
	html, err = render(func(b *bytes.Buffer) error { return welcomeHTML.Execute(b, p) })
	if err != nil {
		return "", "", fmt.Errorf("rendering welcome html: %w", err)
	}
	text, err = render(func(b *bytes.Buffer) error { return welcomeText.Execute(b, p) })
	if err != nil {
		return "", "", fmt.Errorf("rendering welcome text: %w", err)
	}
	return html, text, nil
}

func RenderContactNotification(p ContactParams) (string, error) {
	return render(func(b *bytes.Buffer) error { return contactHTML.Execute(b, p) })
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// SpanishMonth returns the lower-case Spanish name of the month.
func SpanishMonth(m time.Month) string {
	return spanishMonths[m-1]
}

// SpanishDate formats t as "2 de noviembre de 2026".
func SpanishDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), SpanishMonth(t.Month()), t.Year())
}

// SpanishDateRange formats a course date range as "2 de noviembre - 6 de noviembre de 2026".
func SpanishDateRange(start, end time.Time) string {
	if end.IsZero() {
		return SpanishDate(start)
	}
	return fmt.Sprintf("%d de %s - %s", start.Day(), SpanishMonth(start.Month()), SpanishDate(end))
}

// uriComponentUnescapes undoes the QueryEscape encodings that encodeURIComponent
// leaves alone, so links match the ones the site itself builds.
var uriComponentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EscapeEmail encodes an address for a query value the way encodeURIComponent does.
func EscapeEmail(email string) string {
	return uriComponentUnescapes.Replace(url.QueryEscape(email))
}

// Personalize substitutes the first EmailPlaceholder in body with the escaped address.
func Personalize(body, escapedEmail string) string {
	return strings.Replace(body, EmailPlaceholder, escapedEmail, 1)
}
