package membership

import "errors"

var (
	// ErrNotFound indicates the invitation (or related record) is absent.
	ErrNotFound = errors.New("membership: not found")
	// ErrForbidden indicates the acting user does not own the invitation.
	ErrForbidden = errors.New("membership: forbidden")
	// ErrInvalidState indicates a declined or unrecognized invitation status.
	ErrInvalidState = errors.New("membership: invalid state")
	// ErrStore wraps transport or backend failures from the store. Backend
	// error shapes never cross this boundary unwrapped.
	ErrStore = errors.New("membership: store failure")
)
