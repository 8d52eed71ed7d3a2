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

package audit

import (
	"time"
)

// EventType represents the type of audit event.
type EventType string

const (
	// === Authentication events ===
	EventLoginSucceeded EventType = "auth.login.succeeded"
	EventLoginFailed    EventType = "auth.login.failed"
	EventLogout         EventType = "auth.logout"
	EventGateRejected   EventType = "auth.gate.rejected"

	// === Admission control events ===
	EventRateLimited EventType = "ratelimit.denied"

	// === Newsletter events ===
	EventSubscribed          EventType = "newsletter.subscribed"
	EventResubscribed        EventType = "newsletter.resubscribed"
	EventUnsubscribed        EventType = "newsletter.unsubscribed"
	EventSubscriberToggled   EventType = "newsletter.subscriber_toggled"
	EventNewsletterSent      EventType = "newsletter.sent"
	EventNewsletterForbidden EventType = "newsletter.forbidden"

	// === Content and inbox events ===
	EventContactReceived      EventType = "contact.received"
	EventMessageStatusChanged EventType = "message.status_changed"
	EventPostPublished        EventType = "post.published"
	EventPostUnpublished      EventType = "post.unpublished"
	EventPostDeleted          EventType = "post.deleted"
	EventCourseCreated        EventType = "course.created"

	// === Bot detection ===
	EventHoneypotTriggered EventType = "form.honeypot"

	// === System events ===
	EventSystemStartup  EventType = "system.startup"
	EventSystemShutdown EventType = "system.shutdown"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event represents a single audit event
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Severity  Severity  `json:"severity"`
	Timestamp time.Time `json:"timestamp"`

	// Actor is who triggered the event
	Actor Actor `json:"actor"`

	// Target is what was affected by the event
	Target Target `json:"target,omitempty"`

	// Details contains event-specific information
	Details map[string]interface{} `json:"details,omitempty"`
}

// Actor represents who triggered an audit event
type Actor struct {
	// User is the administrator email, a subscriber address or empty for anonymous visitors
	User      string `json:"user,omitempty"`
	SourceIP  string `json:"sourceIP,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// Target represents what was affected by an audit event
type Target struct {
	// Kind is the affected resource, e.g. "subscriber", "post", "message"
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
}

// SeverityForEventType returns the default severity for an event type
func SeverityForEventType(eventType EventType) Severity {
	switch eventType {
	case EventNewsletterForbidden:
		return SeverityCritical

	case EventLoginFailed, EventGateRejected, EventRateLimited,
		EventHoneypotTriggered, EventPostDeleted:
		return SeverityWarning

	default:
		return SeverityInfo
	}
}
