package admin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"user-hub/internal/domain/user"
)

type memRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]user.User
}

func newMemRepo(seed ...user.User) *memRepo {
	m := &memRepo{users: make(map[uuid.UUID]user.User)}
	for _, u := range seed {
		if u.Version == 0 {
			u.Version = 1
		}
		m.users[u.ID] = u
	}
	return m
}

func (m *memRepo) Create(_ context.Context, u user.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return user.ErrDuplicateEmail
		}
	}
	u.Version = 1
	u.CreatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (m *memRepo) ExistsByEmail(_ context.Context, _ string) (bool, error) { return false, nil }

func (m *memRepo) Update(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if stored.Version != u.Version {
		return user.User{}, user.ErrVersionConflict
	}
	u.Version++
	m.users[u.ID] = u
	return u, nil
}

func (m *memRepo) UpdateLastLogin(_ context.Context, _ uuid.UUID, _ time.Time) error { return nil }

func (m *memRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memRepo) List(_ context.Context, limit, offset int) ([]user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := make([]user.User, 0, len(m.users))
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *memRepo) Count(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

var (
	managerActor = user.Actor{ID: uuid.New(), Role: user.RoleManager}
	adminActor   = user.Actor{ID: uuid.New(), Role: user.RoleAdmin}
	plainActor   = user.Actor{ID: uuid.New(), Role: user.RoleUser}
)

func TestList_RegularUserForbidden(t *testing.T) {
	svc := NewService(newMemRepo())
	_, err := svc.List(context.Background(), plainActor, 10, 0)
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestList_ClampsPagination(t *testing.T) {
	seed := []user.User{
		{ID: uuid.New(), Email: "a@example.com"},
		{ID: uuid.New(), Email: "b@example.com"},
		{ID: uuid.New(), Email: "c@example.com"},
	}
	svc := NewService(newMemRepo(seed...))

	res, err := svc.List(context.Background(), managerActor, -5, -3)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Limit != defaultPageSize || res.Offset != 0 {
		t.Fatalf("pagination not clamped: limit=%d offset=%d", res.Limit, res.Offset)
	}
	if res.Total != 3 || len(res.Users) != 3 {
		t.Fatalf("unexpected page: total=%d items=%d", res.Total, len(res.Users))
	}

	res, err = svc.List(context.Background(), managerActor, 10_000, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if res.Limit != maxPageSize {
		t.Fatalf("limit not capped, got %d", res.Limit)
	}
}

func TestCreate_ManagerProvisionsRegularAccount(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), managerActor, CreateInput{
		Email:    "New@Example.com",
		Password: "password123",
		Nickname: "newbie",
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Email != "new@example.com" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Role != user.RoleUser {
		t.Fatalf("expected role user, got %v", created.Role)
	}
	if !created.EmailVerified {
		t.Fatalf("provisioned accounts start verified")
	}
	if created.PasswordHash != "" {
		t.Fatalf("hash must not leak")
	}
}

func TestCreate_ElevatedRoleIsAdminOnly(t *testing.T) {
	svc := NewService(newMemRepo())

	in := CreateInput{Email: "mgr@example.com", Password: "password123", Role: "manager"}
	if _, err := svc.Create(context.Background(), managerActor, in); !errors.Is(err, ErrForbidden) {
		t.Fatalf("manager assigning manager role: expected ErrForbidden, got %v", err)
	}

	created, err := svc.Create(context.Background(), adminActor, in)
	if err != nil {
		t.Fatalf("admin create failed: %v", err)
	}
	if created.Role != user.RoleManager {
		t.Fatalf("expected manager role, got %v", created.Role)
	}
}

func TestCreate_DuplicateEmail(t *testing.T) {
	svc := NewService(newMemRepo(user.User{ID: uuid.New(), Email: "taken@example.com"}))

	_, err := svc.Create(context.Background(), adminActor, CreateInput{Email: "taken@example.com", Password: "password123"})
	if !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestDelete_AdminOnly(t *testing.T) {
	target := user.User{ID: uuid.New(), Email: "gone@example.com"}
	repo := newMemRepo(target)
	svc := NewService(repo)

	if err := svc.Delete(context.Background(), managerActor, target.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("manager delete: expected ErrForbidden, got %v", err)
	}

	if err := svc.Delete(context.Background(), adminActor, target.ID); err != nil {
		t.Fatalf("admin delete failed: %v", err)
	}
	if _, err := repo.GetByID(context.Background(), target.ID); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("row still present after delete")
	}
}

func TestDelete_SelfDeleteRejected(t *testing.T) {
	self := user.User{ID: adminActor.ID, Email: "root@example.com", Role: user.RoleAdmin}
	svc := NewService(newMemRepo(self))

	if err := svc.Delete(context.Background(), adminActor, adminActor.ID); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
