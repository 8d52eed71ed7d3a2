// Package audit records security relevant events of the site (logins, logouts,
// rate limit denials, subscription changes, newsletter runs and administrative
// edits) and forwards them to configurable sinks: the structured log and,
// optionally, a Kafka topic.
package audit
