// Package notifications delivers optional push notifications through
// ntfy for recording and replay milestones. When no topic is configured
// the service is a noop.
package notifications
