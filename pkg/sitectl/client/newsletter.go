package client

import (
	"context"
	"net/http"
)

const newsletterSendPath = "/api/newsletter/send"

// NewsletterStats mirrors the report the server returns after a run.
type NewsletterStats struct {
	Subscribers int      `json:"subscribers" yaml:"subscribers"`
	Posts       int      `json:"posts" yaml:"posts"`
	Courses     int      `json:"courses" yaml:"courses"`
	Month       string   `json:"month" yaml:"month"`
	Year        string   `json:"year" yaml:"year"`
	Sent        int      `json:"sent" yaml:"sent"`
	Failed      int      `json:"failed" yaml:"failed"`
	Errors      []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

type NewsletterResult struct {
	Success bool            `json:"success" yaml:"success"`
	Message string          `json:"message" yaml:"message"`
	Stats   NewsletterStats `json:"stats" yaml:"stats"`
}

// SendNewsletter triggers the monthly newsletter. The call returns once every
// recipient was attempted.
func (c *Client) SendNewsletter(ctx context.Context) (*NewsletterResult, error) {
	var result NewsletterResult
	if err := c.do(ctx, http.MethodPost, newsletterSendPath, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PreviewNewsletter returns the HTML of the issue that would be sent now.
func (c *Client) PreviewNewsletter(ctx context.Context) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, newsletterSendPath+"?preview=true", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/html")
	body, err := c.send(req)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
