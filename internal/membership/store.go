package membership

import (
	"context"
	"time"
)

// Store describes persistence operations required by the membership core.
//
// AcceptInvitation is the sole mutation path for invitation records and must
// be conditional: the write applies only while the record still has
// status=invited AND belongs to userID at write time. It reports the number
// of rows affected so the workflow can resolve races; correctness never
// relies on in-process locks.
type Store interface {
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	AcceptInvitation(ctx context.Context, id, userID string, joinedAt time.Time) (int64, error)
	CreateInvitation(ctx context.Context, inv *Invitation) error
	ListByProject(ctx context.Context, projectID string) ([]Invitation, error)

	GetProject(ctx context.Context, id string) (Project, error)
	ListProjectsForUser(ctx context.Context, userID string) ([]Project, error)

	FindUserByEmail(ctx context.Context, email string) (User, error)
}
