package membership

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Workflow performs the one-shot invitation acceptance transition.
type Workflow struct {
	store Store
	now   func() time.Time
}

// WorkflowOption configures Workflow behavior.
type WorkflowOption func(*Workflow)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) WorkflowOption {
	return func(w *Workflow) {
		if fn != nil {
			w.now = fn
		}
	}
}

// NewWorkflow constructs a Workflow over the given store.
func NewWorkflow(store Store, opts ...WorkflowOption) *Workflow {
	w := &Workflow{store: store, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// AcceptResult reports the outcome of a successful acceptance.
type AcceptResult struct {
	ProjectID string
	// Transitioned is true only for the request that performed the
	// invited→accepted write; idempotent revisits observe false.
	Transitioned bool
}

// AcceptInvitation attempts the invited→accepted transition for userID and
// returns the project the caller should be routed to.
//
// Outcomes:
//   - ErrNotFound when no record exists;
//   - ErrForbidden when the record belongs to someone else, regardless of
//     its status;
//   - the stored project ID with nil error when the record is already
//     accepted (re-visiting an accepted invite link must not fail);
//   - ErrInvalidState for declined or unrecognized statuses;
//   - ErrStore (wrapped) for backend failures; no retries are attempted.
//
// The write is guarded by id, owner, and status at write time. If the guard
// reports zero rows the current state is re-read and resolved to one of the
// terminal outcomes above, so concurrent acceptors all learn the same
// project ID while exactly one performs the transition.
func (w *Workflow) AcceptInvitation(ctx context.Context, invitationID, userID string) (AcceptResult, error) {
	inv, err := w.store.GetInvitation(ctx, invitationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AcceptResult{}, ErrNotFound
		}
		return AcceptResult{}, fmt.Errorf("%w: get invitation: %v", ErrStore, err)
	}
	if inv.InvitedUserID != userID {
		return AcceptResult{}, ErrForbidden
	}

	switch inv.Status {
	case StatusAccepted:
		return AcceptResult{ProjectID: inv.ProjectID}, nil
	case StatusInvited:
		// fall through to the guarded write
	default:
		return AcceptResult{}, ErrInvalidState
	}

	affected, err := w.store.AcceptInvitation(ctx, invitationID, userID, w.now().UTC())
	if err != nil {
		return AcceptResult{}, fmt.Errorf("%w: accept invitation: %v", ErrStore, err)
	}
	if affected == 0 {
		// Lost the race window between read and write; resolve against the
		// post-state instead of reporting a generic write failure.
		return w.resolvePostState(ctx, invitationID, userID)
	}
	return AcceptResult{ProjectID: inv.ProjectID, Transitioned: true}, nil
}

func (w *Workflow) resolvePostState(ctx context.Context, invitationID, userID string) (AcceptResult, error) {
	inv, err := w.store.GetInvitation(ctx, invitationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return AcceptResult{}, ErrNotFound
		}
		return AcceptResult{}, fmt.Errorf("%w: re-read invitation: %v", ErrStore, err)
	}
	if inv.InvitedUserID != userID {
		return AcceptResult{}, ErrForbidden
	}
	if inv.Status == StatusAccepted {
		return AcceptResult{ProjectID: inv.ProjectID}, nil
	}
	return AcceptResult{}, ErrInvalidState
}
