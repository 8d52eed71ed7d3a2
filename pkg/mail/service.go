/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package mail

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Site describes the public site mails link back to.
type Site struct {
	Name    string
	BaseURL string
	// NotificationEmail receives contact form notifications; empty disables them
	NotificationEmail string
}

// Service renders notification mails and hands them to the background queue.
// A Service without a queue drops every notification.
type Service struct {
	site   Site
	queue  *Queue
	logger *zap.SugaredLogger
}

func NewService(site Site, queue *Queue, logger *zap.SugaredLogger) *Service {
	return &Service{
		site:   site,
		queue:  queue,
		logger: logger.Named("mail-service"),
	}
}

// IsEnabled returns whether notifications are delivered.
func (s *Service) IsEnabled() bool {
	return s != nil && s.queue != nil
}

func (s *Service) enqueue(kind string, msg Message) error {
	if !s.IsEnabled() {
		s.logger.Debugw("Mail queue not initialized, dropping email", "kind", kind, "receivers", len(msg.To))
		return nil
	}
	id, err := s.queue.Enqueue(msg)
	if err != nil {
		return fmt.Errorf("queueing %s mail: %w", kind, err)
	}
	s.logger.Debugw("Notification queued", "kind", kind, "id", id)
	return nil
}

// UnsubscribeURL returns the public unsubscribe link for an address.
func (s *Service) UnsubscribeURL(email string) string {
	return s.site.BaseURL + "/newsletter/unsubscribe?email=" + EscapeEmail(email)
}

// SendWelcome queues the welcome mail for a new or reactivated subscriber.
func (s *Service) SendWelcome(email string) error {
	html, text, err := RenderWelcome(WelcomeParams{
		SiteName:       s.site.Name,
		BaseURL:        s.site.BaseURL,
		Email:          email,
		UnsubscribeURL: s.UnsubscribeURL(email),
	})
	if err != nil {
		return err
	}
	return s.enqueue("welcome", Message{
		To:      []string{email},
		Subject: "Bienvenido a " + s.site.Name,
		HTML:    html,
		Text:    text,
	})
}

// NotifyContact queues a copy of a contact form submission for the administrator.
func (s *Service) NotifyContact(p ContactParams, receivedAt time.Time) error {
	if s.site.NotificationEmail == "" {
		return nil
	}
	p.ReceivedAt = receivedAt.Format("02/01/2006 15:04")
	p.AdminURL = s.site.BaseURL + "/admin/dashboard"
	html, err := RenderContactNotification(p)
	if err != nil {
		return fmt.Errorf("rendering contact notification: %w", err)
	}
	return s.enqueue("contact", Message{
		To:      []string{s.site.NotificationEmail},
		Subject: fmt.Sprintf("[%s] Nuevo mensaje: %s", s.site.Name, p.Subject),
		HTML:    html,
	})
}

// Start launches the queue worker.
func (s *Service) Start() {
	if s.IsEnabled() {
		s.queue.Start()
	}
}

// Stop flushes queued notifications.
func (s *Service) Stop(ctx context.Context) error {
	if !s.IsEnabled() {
		return nil
	}
	s.logger.Info("Stopping mail service")
	return s.queue.Stop(ctx)
}
