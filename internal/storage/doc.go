// Package storage persists subscriptions, recipient preferences and the
// received-event log.
//
// Two drivers are available: "file" (a JSON document compatible with the
// historical subscriptions.json layout, plus a JSON Lines event log) and
// "sqlite" (schema managed by goose migrations).
package storage
