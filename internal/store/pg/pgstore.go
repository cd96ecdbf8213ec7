// Package pg implements the membership store on PostgreSQL.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"crewdeck.org/internal/ids"
	"crewdeck.org/internal/membership"
)

// Store persists membership records in PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ membership.Store = (*Store)(nil)

// Open connects to PostgreSQL with pool defaults tuned for the API workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle (used by tests).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) GetInvitation(ctx context.Context, id string) (membership.Invitation, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, project_id, user_id, role, status, joined_at, created_at
		from project_members where id=$1
	`, id)
	var (
		inv      membership.Invitation
		joinedAt sql.NullTime
	)
	if err := row.Scan(&inv.ID, &inv.ProjectID, &inv.InvitedUserID, &inv.Role, &inv.Status, &joinedAt, &inv.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Invitation{}, membership.ErrNotFound
		}
		return membership.Invitation{}, err
	}
	if joinedAt.Valid {
		t := joinedAt.Time
		inv.JoinedAt = &t
	}
	return inv, nil
}

// AcceptInvitation performs the guarded transition. The status and owner
// conditions hold at write time, not just at the earlier read, which closes
// the race window between concurrent acceptance attempts or a concurrent
// revocation. Atomicity comes from the database, never from process locks.
func (s *Store) AcceptInvitation(ctx context.Context, id, userID string, joinedAt time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		update project_members
		set status='accepted', joined_at=$3
		where id=$1 and user_id=$2 and status='invited'
	`, id, userID, joinedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) CreateInvitation(ctx context.Context, inv *membership.Invitation) error {
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	if inv.Status == "" {
		inv.Status = membership.StatusInvited
	}
	_, err := s.db.ExecContext(ctx, `
		insert into project_members(id, project_id, user_id, role, status)
		values ($1,$2,$3,$4,$5)
	`, inv.ID, inv.ProjectID, inv.InvitedUserID, inv.Role, inv.Status)
	return err
}

func (s *Store) ListByProject(ctx context.Context, projectID string) ([]membership.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, project_id, user_id, role, status, joined_at, created_at
		from project_members where project_id=$1 order by created_at asc
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []membership.Invitation
	for rows.Next() {
		var (
			inv      membership.Invitation
			joinedAt sql.NullTime
		)
		if err := rows.Scan(&inv.ID, &inv.ProjectID, &inv.InvitedUserID, &inv.Role, &inv.Status, &joinedAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		if joinedAt.Valid {
			t := joinedAt.Time
			inv.JoinedAt = &t
		}
		res = append(res, inv)
	}
	return res, rows.Err()
}

func (s *Store) GetProject(ctx context.Context, id string) (membership.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, created_by, created_at from projects where id=$1
	`, id)
	var p membership.Project
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.Project{}, membership.ErrNotFound
		}
		return membership.Project{}, err
	}
	return p, nil
}

func (s *Store) ListProjectsForUser(ctx context.Context, userID string) ([]membership.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct p.id, p.name, p.created_by, p.created_at
		from projects p
		left join project_members m on m.project_id = p.id
		where p.created_by = $1 or (m.user_id = $1 and m.status = 'accepted')
		order by p.created_at asc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []membership.Project
	for rows.Next() {
		var p membership.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (s *Store) FindUserByEmail(ctx context.Context, email string) (membership.User, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, name, password_hash, created_at from users where email=$1
	`, strings.ToLower(strings.TrimSpace(email)))
	var u membership.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return membership.User{}, membership.ErrNotFound
		}
		return membership.User{}, err
	}
	return u, nil
}
