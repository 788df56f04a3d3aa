package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"advisor/internal/api"
	"advisor/internal/models"
	"advisor/internal/testutil"
)

// newFakeBackend serves the handful of endpoints the CLI talks to.
func newFakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	testutil.SkipIfNoNetwork(t)
	mux := http.NewServeMux()

	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":1,"email":"pat@example.com","name":"Pat","google_email":"pat@gmail.com","has_google":true,"has_hubspot":false}`))
	})
	mux.HandleFunc("/api/integrations/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"google":{"connected":true,"email":"pat@gmail.com","email_count":120,"syncing":false},"hubspot":{"connected":false,"contact_count":0,"syncing":false}}`))
	})
	mux.HandleFunc("/api/integrations/sync/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":"sync started"}`))
	})
	mux.HandleFunc("/api/chat/history", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"messages":[{"id":2,"role":"assistant","content":"hello Pat","error":false,"timestamp":"2025-11-03T09:01:00"},{"id":1,"role":"user","content":"hello","error":false,"timestamp":"2025-11-03T09:00:00"}],"has_more":false}`))
	})
	mux.HandleFunc("/api/tasks/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/tasks/7" {
			_, _ = w.Write([]byte(`{"id":7,"task_type":"email_draft","status":"completed","description":"Draft a follow-up to Alice","result":{"sent":true},"created_at":"2025-11-03T09:00:00","completed_at":"2025-11-03T09:05:00"}`))
			return
		}
		_, _ = w.Write([]byte(`[{"id":7,"task_type":"email_draft","status":"completed","description":"Draft a follow-up to Alice","created_at":"2025-11-03T09:00:00"}]`))
	})
	mux.HandleFunc("/api/chat/ongoing-instruction", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":3,"instruction":"` + r.URL.Query().Get("instruction") + `","trigger_type":"email_received"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

// runCLI executes the root command with isolated data and config dirs.
func runCLI(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd("test")

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--server", serverURL}, args...))

	err := root.Execute()
	return out.String(), err
}

func isolateDirs(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("ADVISOR_GLOBAL_DATA_DIR", dir)
	t.Setenv("ADVISOR_GLOBAL_CONFIG_DIR", dir)
}

func TestRootFindsSubcommands(t *testing.T) {
	root := newRootCmd("test")

	for _, name := range []string{"login", "logout", "whoami", "chat", "sync", "status", "history", "tasks", "instruct", "config"} {
		found, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		require.Equal(t, name, found.Name())
	}
}

func TestChatRequiresTerminal(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "chat")
	require.Error(t, err)
	require.Contains(t, err.Error(), "interactive terminal")
}

func TestCommandsRequireLogin(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	for _, args := range [][]string{
		{"whoami"},
		{"status"},
		{"history"},
		{"tasks"},
		{"sync", "gmail"},
		{"instruct", "watch", "for", "replies"},
	} {
		_, err := runCLI(t, backend.URL, args...)
		require.Error(t, err, "%v", args)
		require.Contains(t, err.Error(), "advisor login")
	}
}

func TestLoginPersistsAcrossCommands(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	out, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)
	require.Contains(t, out, "Signed in as Pat")
	require.Contains(t, out, "Gmail linked")
	require.NotContains(t, out, "HubSpot linked")

	out, err = runCLI(t, backend.URL, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, "Pat <pat@example.com>")
	require.Contains(t, out, "not linked")
}

func TestLoginGooglePrintsURL(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	out, err := runCLI(t, backend.URL, "login", "--google")
	require.NoError(t, err)
	require.Contains(t, out, backend.URL+"/api/auth/google")
}

func TestLogoutForgetsToken(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "logout")
	require.NoError(t, err)
	require.Contains(t, out, "Signed out.")

	_, err = runCLI(t, backend.URL, "whoami")
	require.Error(t, err)
}

func TestStatusTable(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "status")
	require.NoError(t, err)
	require.Contains(t, out, "SERVICE")
	require.Contains(t, out, "120 emails")
	require.Contains(t, out, "idle")
}

func TestHistoryPrintsTranscript(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "history", "--limit", "10")
	require.NoError(t, err)

	// Oldest first, so the user line comes before the reply.
	require.Contains(t, out, "you: hello")
	require.Contains(t, out, "advisor: hello Pat")
	require.Less(t, bytes.Index([]byte(out), []byte("you: hello")), bytes.Index([]byte(out), []byte("advisor: hello Pat")))
}

func TestTasksListAndDetail(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "tasks")
	require.NoError(t, err)
	require.Contains(t, out, "email_draft")
	require.Contains(t, out, "Draft a follow-up to Alice")

	out, err = runCLI(t, backend.URL, "tasks", "--id", "7")
	require.NoError(t, err)
	require.Contains(t, out, "Task #7 (email_draft)")
	require.Contains(t, out, `"sent":true`)

	_, err = runCLI(t, backend.URL, "tasks", "--status", "bogus")
	require.Error(t, err)
}

func TestSyncStartsProvider(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "sync", "gmail")
	require.NoError(t, err)
	require.Contains(t, out, "Gmail sync started (recent)")

	out, err = runCLI(t, backend.URL, "sync", "--full")
	require.NoError(t, err)
	require.Contains(t, out, "Gmail sync started (full)")
	require.NotContains(t, out, "HubSpot", "only linked providers sync by default")

	_, err = runCLI(t, backend.URL, "sync", "salesforce")
	require.Error(t, err)
}

func TestInstructSaves(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	_, err := runCLI(t, backend.URL, "login", "--token", "tok-123")
	require.NoError(t, err)

	out, err := runCLI(t, backend.URL, "instruct", "flag", "emails", "from", "new", "leads")
	require.NoError(t, err)
	require.Contains(t, out, "Instruction #3 saved (email_received)")
}

func TestConfigPrintsAndInits(t *testing.T) {
	isolateDirs(t)
	backend := newFakeBackend(t)

	out, err := runCLI(t, backend.URL, "config")
	require.NoError(t, err)
	require.Contains(t, out, "url: "+backend.URL)
	require.Contains(t, out, "poll_interval: 2s")

	out, err = runCLI(t, backend.URL, "config", "init")
	require.NoError(t, err)
	require.Contains(t, out, "Wrote ")

	_, err = runCLI(t, backend.URL, "config", "init")
	require.Error(t, err)
	require.Contains(t, err.Error(), "already exists")

	_, err = runCLI(t, backend.URL, "config", "init", "--force")
	require.NoError(t, err)
}

func TestResolveProviders(t *testing.T) {
	linked := &models.User{HasGoogle: true, HasHubSpot: true}

	providers, err := resolveProviders([]string{"hubspot"}, linked)
	require.NoError(t, err)
	require.Equal(t, []models.Provider{models.ProviderHubSpot}, providers)

	providers, err = resolveProviders([]string{"all"}, linked)
	require.NoError(t, err)
	require.Equal(t, []models.Provider{models.ProviderGmail, models.ProviderHubSpot}, providers)

	_, err = resolveProviders(nil, &models.User{})
	require.Error(t, err)
}

func TestWaitForSyncReportsCompletion(t *testing.T) {
	testutil.SkipIfNoNetwork(t)
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/api/integrations/status", func(w http.ResponseWriter, r *http.Request) {
		calls++
		syncing := "true"
		if calls > 2 {
			syncing = "false"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"google":{"connected":true,"email":"pat@gmail.com","email_count":42,"syncing":` + syncing + `},"hubspot":{"connected":false,"contact_count":0,"syncing":false}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := api.New(server.URL, api.WithToken("tok"))
	cmd := newRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)

	err := waitForSync(context.Background(), cmd, client, []models.Provider{models.ProviderGmail}, 5*time.Millisecond)
	require.NoError(t, err)
	require.Contains(t, out.String(), "Gmail done: 42 emails")
	require.GreaterOrEqual(t, calls, 3)
}

func TestFormatHelpers(t *testing.T) {
	require.Equal(t, "yes", yesNo(true))
	require.Equal(t, "-", dash(""))
	require.Equal(t, "short", truncate("short", 10))
	require.Equal(t, "a very ...", truncate("a very long description", 10))
	require.Equal(t, "-", formatAge(time.Time{}))
	require.Equal(t, "2h", formatAge(time.Now().Add(-2*time.Hour)))
}
