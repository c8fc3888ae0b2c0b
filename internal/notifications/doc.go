// Package notifications delivers assessment events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. Each event kind can be switched off individually.
//
// Callers depend only on the small Service interface.
package notifications
