// Package dedupe drops redelivered chat events by remembering their ids
// for a bounded time window.
package dedupe
