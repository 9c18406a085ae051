// Package session implements the per-user conversation state machine.
//
// A Session records where one user is in the help tree and whether they are
// browsing, logging in, or editing content as an admin. Manager.Handle is the
// single transition function: it takes the current session, one parsed Event
// and the wall-clock time, and returns the next session together with the
// reply to send. It never blocks on timers; lockouts and admin idle expiry are
// timestamps compared against now.
//
// Registry owns the sessions of every user and hands out one locked entry per
// user at a time, so events from the same user are applied in order while
// different users proceed in parallel.
package session
