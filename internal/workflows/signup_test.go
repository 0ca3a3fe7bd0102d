package workflows

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Sagaflow/internal/domain"
	"github.com/shaiso/Sagaflow/internal/repo"
	"github.com/shaiso/Sagaflow/internal/saga"
	"github.com/shaiso/Sagaflow/internal/steps"
	"github.com/shaiso/Sagaflow/internal/xjson"
)

// userService — фейковый сервис пользователей.
type userService struct {
	mu          sync.Mutex
	accounts    map[string]string
	profiles    map[string]string
	welcomes    int
	failWelcome bool
	seq         int
	log         []string
}

func newUserService(t *testing.T) (*userService, *httptest.Server) {
	svc := &userService{accounts: map[string]string{}, profiles: map[string]string{}}
	srv := httptest.NewServer(svc)
	t.Cleanup(srv.Close)
	return svc, srv
}

func (s *userService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = append(s.log, r.Method+" "+r.URL.Path)

	var body map[string]string
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		_ = xjson.Unmarshal(data, &body)
	}

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/accounts":
		s.seq++
		id := fmt.Sprintf("acc-%d", s.seq)
		s.accounts[id] = body["email"]
		reply(w, http.StatusCreated, map[string]string{"id": id})

	case r.Method == http.MethodPost && r.URL.Path == "/profiles":
		if _, ok := s.accounts[body["account_id"]]; !ok {
			http.Error(w, "unknown account", http.StatusBadRequest)
			return
		}
		s.seq++
		id := fmt.Sprintf("prof-%d", s.seq)
		s.profiles[id] = body["display_name"]
		reply(w, http.StatusCreated, map[string]string{"id": id})

	case r.Method == http.MethodPost && r.URL.Path == "/emails/welcome":
		if s.failWelcome {
			http.Error(w, "smtp unavailable", http.StatusServiceUnavailable)
			return
		}
		s.welcomes++
		w.WriteHeader(http.StatusAccepted)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/accounts/"):
		delete(s.accounts, strings.TrimPrefix(r.URL.Path, "/accounts/"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/profiles/"):
		delete(s.profiles, strings.TrimPrefix(r.URL.Path, "/profiles/"))
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	data, _ := xjson.Marshal(v)
	_, _ = w.Write(data)
}

func (s *userService) snapshot() (accounts, profiles, welcomes int, log []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), len(s.profiles), s.welcomes, append([]string(nil), s.log...)
}

func newSignup(t *testing.T, baseURL string) (*saga.Orchestrator[SignupRequest], *repo.MemoryStore) {
	t.Helper()
	def, err := Signup(baseURL+"/", SignupOptions{BackoffBase: time.Millisecond, StepTimeout: time.Second})
	require.NoError(t, err)

	store := repo.NewMemoryStore()
	orch, err := saga.New(def, saga.Config{
		Store:  store,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return orch, store
}

func TestSignup_Definition(t *testing.T) {
	def, err := Signup("http://users", SignupOptions{})
	require.NoError(t, err)
	assert.Equal(t, SignupName, def.Name())
	assert.Equal(t, []string{"createAccount", "createProfile", "sendWelcome"}, def.StepNames())

	welcome, ok := def.Step("sendWelcome")
	require.True(t, ok)
	assert.Nil(t, welcome.Compensate)
	assert.Equal(t, 2, welcome.MaxRetries)
	assert.Equal(t, 10*time.Second, welcome.Timeout)
}

func TestSignup_Success(t *testing.T) {
	svc, srv := newUserService(t)
	orch, store := newSignup(t, srv.URL)

	rec, err := orch.Execute(t.Context(), SignupRequest{Email: "ann@example.com", Name: "Ann"}, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, rec.Status)

	accounts, profiles, welcomes, _ := svc.snapshot()
	assert.Equal(t, 1, accounts)
	assert.Equal(t, 1, profiles)
	assert.Equal(t, 1, welcomes)

	stored, err := store.Load(t.Context(), rec.ID)
	require.NoError(t, err)

	var ec domain.ExecutionContext
	require.NoError(t, xjson.Unmarshal(stored.Context, &ec))
	assert.Equal(t, "acc-1", ec.UserID)
	assert.Equal(t, "acc-1", steps.OutputString(&ec, KeyAccount, "id"))
	assert.Equal(t, "prof-2", steps.OutputString(&ec, KeyProfile, "id"))
	assert.Equal(t, []string{"createAccount", "createProfile", "sendWelcome"}, ec.CompletedSteps)
}

func TestSignup_WelcomeFailureCompensates(t *testing.T) {
	svc, srv := newUserService(t)
	svc.mu.Lock()
	svc.failWelcome = true
	svc.mu.Unlock()
	orch, _ := newSignup(t, srv.URL)

	rec, err := orch.Execute(t.Context(), SignupRequest{Email: "bob@example.com", Name: "Bob"}, nil)
	require.Error(t, err)
	assert.True(t, steps.IsHTTPError(err))
	assert.Equal(t, domain.StatusCompensated, rec.Status)

	accounts, profiles, welcomes, log := svc.snapshot()
	assert.Zero(t, accounts)
	assert.Zero(t, profiles)
	assert.Zero(t, welcomes)
	assert.Equal(t, []string{
		"POST /accounts",
		"POST /profiles",
		"POST /emails/welcome",
		"POST /emails/welcome",
		"POST /emails/welcome",
		"DELETE /profiles/prof-2",
		"DELETE /accounts/acc-1",
	}, log)
}

func TestSignupRequest_Validate(t *testing.T) {
	assert.NoError(t, SignupRequest{Email: "ann@example.com", Name: "Ann"}.Validate())
	assert.ErrorIs(t, SignupRequest{Email: "ann", Name: "Ann"}.Validate(), ErrInvalidSignup)
	assert.ErrorIs(t, SignupRequest{Email: "ann@example.com", Name: " "}.Validate(), ErrInvalidSignup)
}
