package funnel

import "context"

// Store keeps one funnel State per chat session, keyed by chat id.
// Sessions are created lazily: Get for an unknown id returns Start.
//
// Acquire hands out one exclusive section per session id so that
// signals for a single session are processed strictly in arrival order
// while other sessions proceed in parallel. A Put made inside the
// section is visible to the very next Acquire/Get for the same id.
type Store interface {
	Get(ctx context.Context, sessionID int64) (State, error)
	Put(ctx context.Context, sessionID int64, st State) error
	Acquire(sessionID int64) (release func())
}
