package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"user-hub/internal/delivery/http/handler"
	"user-hub/internal/delivery/http/middleware"
	"user-hub/internal/delivery/http/routes"
	"user-hub/internal/domain/user"
	"user-hub/internal/notification"
	"user-hub/internal/pkg/jwt"
	"user-hub/internal/usecase"
	"user-hub/internal/usecase/admin"
	ucauth "user-hub/internal/usecase/auth"
	"user-hub/internal/usecase/profile"
	"user-hub/internal/usecase/status"
	"user-hub/internal/ws"
)

type semanticResponse struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

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
	u.UpdatedAt = u.CreatedAt
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
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return u, nil
}

func (m *memRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return user.ErrNotFound
	}
	u.LastLoginAt = &at
	m.users[id] = u
	return nil
}

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

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification.Event
}

func (n *recordingNotifier) Dispatch(evt notification.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *recordingNotifier) byType(t notification.Type) []notification.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notification.Event
	for _, e := range n.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	app      *fiber.App
	repo     *memRepo
	notifier *recordingNotifier
	jwt      jwt.Service
}

func newTestEnv(t *testing.T, seed ...user.User) *testEnv {
	t.Helper()

	repo := newMemRepo(seed...)
	notifier := &recordingNotifier{}
	jwtSvc := jwt.NewHMACService("access-secret", "refresh-secret", 15*time.Minute, time.Hour)

	authSvc := ucauth.NewService(repo, nopGuard{}, notifier, "http://localhost:8000")
	authUC := usecase.NewAuthUsecase(authSvc, repo, jwtSvc)
	profileSvc := profile.NewService(repo, notifier, "http://localhost:8000")
	statusSvc := status.NewService(repo, notifier, "http://localhost:8000")
	adminSvc := admin.NewService(repo)

	registry := routes.NewRegistry(routes.Deps{
		Auth:   handler.NewAuthHandler(authUC, authSvc),
		Users:  handler.NewUserHandler(profileSvc),
		Admin:  handler.NewAdminUserHandler(adminSvc, profileSvc, statusSvc),
		AuthMW: middleware.NewAuthMiddleware(jwtSvc),
	})

	app := fiber.New(fiber.Config{})
	app.Use(middleware.NewErrorMiddleware(zerolog.Nop()).Middleware())
	registry.Register(app)

	return &testEnv{app: app, repo: repo, notifier: notifier, jwt: jwtSvc}
}

type nopGuard struct{}

func (nopGuard) IsLocked(context.Context, string) (bool, error)        { return false, nil }
func (nopGuard) RegisterFailure(context.Context, string) (bool, error) { return false, nil }
func (nopGuard) Reset(context.Context, string) error                   { return nil }

func (e *testEnv) tokenFor(t *testing.T, u user.User) string {
	t.Helper()
	tok, err := e.jwt.GenerateAccessToken(u.ID, u.Email, u.Role.String())
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return tok
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) (*semanticResponse, int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var out semanticResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return &out, resp.StatusCode
}

func hashFor(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func seedUsers() (regular, manager, admin user.User) {
	regular = user.User{ID: uuid.New(), Email: "user@example.com", Role: user.RoleUser, EmailVerified: true}
	manager = user.User{ID: uuid.New(), Email: "manager@example.com", Role: user.RoleManager, EmailVerified: true}
	admin = user.User{ID: uuid.New(), Email: "admin@example.com", Role: user.RoleAdmin, EmailVerified: true}
	return
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	_, code := env.request(t, "GET", "/api/v1/users/me", "", nil)
	if code != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
}

// A hostile patch naming every protected field must succeed for the allowed
// fields and leave role, professional status and verification state untouched.
func TestAPI_UpdateMeIgnoresProtectedFields(t *testing.T) {
	regular, _, _ := seedUsers()
	env := newTestEnv(t, regular)

	body := map[string]any{
		"nickname":        "sneaky",
		"role":            "admin",
		"is_professional": true,
		"email_verified":  false,
	}
	resp, code := env.request(t, "PUT", "/api/v1/users/me", env.tokenFor(t, regular), body)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", code, resp.Message)
	}

	stored, err := env.repo.GetByID(context.Background(), regular.ID)
	if err != nil {
		t.Fatalf("get stored: %v", err)
	}
	if stored.Nickname != "sneaky" {
		t.Fatalf("allowed field did not move")
	}
	if stored.Role != user.RoleUser {
		t.Fatalf("role escalated through profile patch: %v", stored.Role)
	}
	if stored.IsProfessional {
		t.Fatalf("professional status moved through profile patch")
	}
	if !stored.EmailVerified {
		t.Fatalf("verification state moved through profile patch")
	}
}

func TestAPI_UserListIsManagerOnly(t *testing.T) {
	regular, manager, _ := seedUsers()
	env := newTestEnv(t, regular, manager)

	_, code := env.request(t, "GET", "/api/v1/users/", env.tokenFor(t, regular), nil)
	if code != fiber.StatusForbidden {
		t.Fatalf("regular user listing: expected 403, got %d", code)
	}

	resp, code := env.request(t, "GET", "/api/v1/users/", env.tokenFor(t, manager), nil)
	if code != fiber.StatusOK {
		t.Fatalf("manager listing: expected 200, got %d (%s)", code, resp.Message)
	}

	var data struct {
		Total int64 `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if data.Total != 2 {
		t.Fatalf("expected total 2, got %d", data.Total)
	}
}

func TestAPI_ProfessionalUpgradeFlow(t *testing.T) {
	regular, manager, _ := seedUsers()
	env := newTestEnv(t, regular, manager)

	body := map[string]any{"is_professional": true}

	_, code := env.request(t, "PUT", "/api/v1/users/"+regular.ID.String()+"/professional-status", env.tokenFor(t, regular), body)
	if code != fiber.StatusForbidden {
		t.Fatalf("self-upgrade: expected 403, got %d", code)
	}

	resp, code := env.request(t, "PUT", "/api/v1/users/"+regular.ID.String()+"/professional-status", env.tokenFor(t, manager), body)
	if code != fiber.StatusOK {
		t.Fatalf("manager upgrade: expected 200, got %d (%s)", code, resp.Message)
	}

	events := env.notifier.byType(notification.TypeProfessionalUpgrade)
	if len(events) != 1 {
		t.Fatalf("expected 1 upgrade event, got %d", len(events))
	}

	// Retrying the same upgrade stays 200 and adds no event.
	_, code = env.request(t, "PUT", "/api/v1/users/"+regular.ID.String()+"/professional-status", env.tokenFor(t, manager), body)
	if code != fiber.StatusOK {
		t.Fatalf("repeat upgrade: expected 200, got %d", code)
	}
	if events := env.notifier.byType(notification.TypeProfessionalUpgrade); len(events) != 1 {
		t.Fatalf("repeat upgrade must not re-announce, got %d events", len(events))
	}
}

func TestAPI_ResponsesNeverLeakSecrets(t *testing.T) {
	regular, _, _ := seedUsers()
	regular.PasswordHash = hashFor(t, "password123")
	regular.VerificationToken = "secret-token"
	env := newTestEnv(t, regular)

	resp, code := env.request(t, "GET", "/api/v1/users/me", env.tokenFor(t, regular), nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	if bytes.Contains(resp.Data, []byte("password")) || bytes.Contains(resp.Data, []byte("secret-token")) {
		t.Fatalf("response leaked credentials: %s", resp.Data)
	}
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	resp, code := env.request(t, "POST", "/api/v1/auth/register", "", map[string]any{
		"email":    "fresh@example.com",
		"password": "password123",
		"nickname": "fresh",
	})
	if code != fiber.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", code, resp.Message)
	}

	var regData struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(resp.Data, &regData); err != nil {
		t.Fatalf("decode register data: %v", err)
	}
	if regData.AccessToken == "" || regData.RefreshToken == "" {
		t.Fatalf("register must issue a token pair")
	}

	if events := env.notifier.byType(notification.TypeEmailVerification); len(events) != 1 {
		t.Fatalf("expected 1 verification event, got %d", len(events))
	}

	resp, code = env.request(t, "POST", "/api/v1/auth/login", "", map[string]any{
		"email":    "fresh@example.com",
		"password": "password123",
	})
	if code != fiber.StatusOK {
		t.Fatalf("login: expected 200, got %d (%s)", code, resp.Message)
	}

	_, code = env.request(t, "POST", "/api/v1/auth/login", "", map[string]any{
		"email":    "fresh@example.com",
		"password": "wrong-password",
	})
	if code != fiber.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", code)
	}
}

// Self-service registration must show up on the admin event stream, same as
// the admin-driven create. The stream is observed through a real websocket
// connection fed by the default hub.
func TestAPI_RegisterBroadcastsLifecycleFrame(t *testing.T) {
	env := newTestEnv(t)

	hub := ws.NewHub(zerolog.Nop())
	go hub.Run()
	ws.SetDefaultHub(hub)
	t.Cleanup(func() { ws.SetDefaultHub(nil) })

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := ws.NewClient(hub, conn)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, code := env.request(t, "POST", "/api/v1/auth/register", "", map[string]any{
		"email":    "streamed@example.com",
		"password": "password123",
		"nickname": "streamed",
	})
	if code != fiber.StatusCreated {
		t.Fatalf("register: expected 201, got %d (%s)", code, resp.Message)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("no frame after registration: %v", err)
	}

	var evt struct {
		Type   string    `json:"type"`
		UserID uuid.UUID `json:"user_id"`
	}
	if err := json.Unmarshal(frame, &evt); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if evt.Type != ws.EventUserRegistered {
		t.Fatalf("expected %s frame, got %s", ws.EventUserRegistered, evt.Type)
	}
	if evt.UserID == uuid.Nil {
		t.Fatalf("frame carries no user id")
	}
}

func TestAPI_AdminDeletesUser(t *testing.T) {
	regular, manager, adminUser := seedUsers()
	env := newTestEnv(t, regular, manager, adminUser)

	_, code := env.request(t, "DELETE", "/api/v1/users/"+regular.ID.String(), env.tokenFor(t, manager), nil)
	if code != fiber.StatusForbidden {
		t.Fatalf("manager delete: expected 403, got %d", code)
	}

	_, code = env.request(t, "DELETE", "/api/v1/users/"+regular.ID.String(), env.tokenFor(t, adminUser), nil)
	if code != fiber.StatusOK {
		t.Fatalf("admin delete: expected 200, got %d", code)
	}

	if _, err := env.repo.GetByID(context.Background(), regular.ID); err == nil {
		t.Fatalf("user still present after delete")
	}
}
