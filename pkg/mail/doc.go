// Package mail sends the site's emails over SMTP: newsletters, welcome mails
// for new subscribers and contact form notifications for the administrator.
//
// Notifications go through an in-memory Queue with retries so that a slow or
// unavailable SMTP server never fails the request that triggered them.
package mail
