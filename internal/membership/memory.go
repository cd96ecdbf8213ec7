package membership

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"crewdeck.org/internal/ids"
)

// InMemory implements Store with in-process concurrency safety. Used for
// development mode and tests; the conditional-accept guard holds under the
// same contract as the SQL store.
type InMemory struct {
	mu       sync.Mutex
	invites  map[string]*Invitation
	projects map[string]*Project
	users    map[string]*User
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		invites:  make(map[string]*Invitation),
		projects: make(map[string]*Project),
		users:    make(map[string]*User),
	}
}

func (s *InMemory) GetInvitation(ctx context.Context, id string) (Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok {
		return Invitation{}, ErrNotFound
	}
	return cloneInvitation(inv), nil
}

// AcceptInvitation applies the guarded transition atomically under the store
// lock, mirroring the SQL conditional update's rows-affected contract.
func (s *InMemory) AcceptInvitation(ctx context.Context, id, userID string, joinedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invites[id]
	if !ok || inv.InvitedUserID != userID || inv.Status != StatusInvited {
		return 0, nil
	}
	inv.Status = StatusAccepted
	t := joinedAt
	inv.JoinedAt = &t
	return 1, nil
}

func (s *InMemory) CreateInvitation(ctx context.Context, inv *Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv.ID == "" {
		inv.ID = ids.New()
	}
	if inv.Status == "" {
		inv.Status = StatusInvited
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	stored := cloneInvitation(inv)
	s.invites[inv.ID] = &stored
	return nil
}

func (s *InMemory) ListByProject(ctx context.Context, projectID string) ([]Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var res []Invitation
	for _, inv := range s.invites {
		if inv.ProjectID == projectID {
			res = append(res, cloneInvitation(inv))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *InMemory) GetProject(ctx context.Context, id string) (Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return *p, nil
}

func (s *InMemory) ListProjectsForUser(ctx context.Context, userID string) ([]Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var res []Project
	for _, p := range s.projects {
		if p.CreatedBy == userID {
			res = append(res, *p)
			seen[p.ID] = true
		}
	}
	for _, inv := range s.invites {
		if inv.InvitedUserID != userID || inv.Status != StatusAccepted || seen[inv.ProjectID] {
			continue
		}
		if p, ok := s.projects[inv.ProjectID]; ok {
			res = append(res, *p)
			seen[p.ID] = true
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *InMemory) FindUserByEmail(ctx context.Context, email string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			return *u, nil
		}
	}
	return User{}, ErrNotFound
}

// CreateProject registers a project record. Project creation is an external
// concern; this exists so development mode and tests can seed state.
func (s *InMemory) CreateProject(ctx context.Context, p *Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	stored := *p
	s.projects[p.ID] = &stored
	return nil
}

// CreateUser registers a user record for session issuance.
func (s *InMemory) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = ids.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

// SetStatus force-sets a stored status, bypassing the transition guard.
// Intended for tests exercising corrupt or externally written states.
func (s *InMemory) SetStatus(id string, status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.invites[id]; ok {
		inv.Status = status
	}
}

func cloneInvitation(inv *Invitation) Invitation {
	out := *inv
	if inv.JoinedAt != nil {
		t := *inv.JoinedAt
		out.JoinedAt = &t
	}
	return out
}
