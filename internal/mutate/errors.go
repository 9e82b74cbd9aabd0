package mutate

import "errors"

// Resolution failures are surfaced as distinct sentinel errors so
// callers can map them onto their own error surface with errors.Is.
// Resolution is all-or-nothing: on any of these the caller discards the
// attempt, no partial plan is returned.
var (
	// ErrInvalidAction reports a marker value outside the closed verb set.
	ErrInvalidAction = errors.New("invalid action")

	// ErrMisplacedAction reports a marker at a position the resolver does
	// not interpret as a relation value, e.g. the payload's top level.
	ErrMisplacedAction = errors.New("misplaced action")

	// ErrNoUniqueIdentifier reports an item that needs an identity pair
	// (update, delete, disconnect) but carries neither an id nor a
	// declared unique field.
	ErrNoUniqueIdentifier = errors.New("no unique identifier")
)
