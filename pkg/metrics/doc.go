// Package metrics defines Prometheus metrics for the site backend, covering
// admission control, logins, public forms, newsletter runs, mail delivery and
// audit sinks.
package metrics
