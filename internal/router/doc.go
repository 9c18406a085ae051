// Package router connects transports to the session manager.
//
// Each inbound event is deduplicated by id, applied to the sender's session
// under that user's registry lock, and answered through the transport.
// Run keeps one worker per active user so a user's events are handled in
// arrival order, while a shared semaphore caps how many users are served at
// once.
package router
