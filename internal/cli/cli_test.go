package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"sisu-notifier/internal/errors"
	"sisu-notifier/internal/pipeline"
	"sisu-notifier/internal/secrets"
	"sisu-notifier/internal/store"
)

var envKeys = []string{
	"SISU_AUTH_HEADER", "SISU_BASE_URL", "SISU_AGENT_ID", "SISU_TEAM_ID", "SISU_MARKET_ID",
	"SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS", "NOTIFICATION_EMAILS",
	"WINDOW_DAYS", "NOTIFIER_LISTEN_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

type memSecrets map[string]string

func (m memSecrets) Get(key string) (string, error) {
	if v, ok := m[key]; ok {
		return v, nil
	}
	return "", errors.ErrSecretNotFound
}

func execute(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(app)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func testApp() *App {
	return &App{Logger: zerolog.Nop(), Secrets: memSecrets{}, LogOut: io.Discard}
}

func writeConfig(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(body), 0o600))
}

// sisuServer answers the list call with one record per closing date, each
// carrying its date inline so the detail phase is skipped.
func sisuServer(t *testing.T, dates ...string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /client/list", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "Bearer cli-test", r.Header.Get("Authorization"))
		parts := make([]string, len(dates))
		for i, d := range dates {
			parts[i] = fmt.Sprintf(`{"client_id":%d,"first_name":"Buyer","last_name":"%d","email":"b%d@example.com","forecasted_closed_dt":%q}`, i+1, i+1, i+1, d)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","clients":[` + strings.Join(parts, ",") + `]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func checkConfig(baseURL, dbPath string) string {
	return fmt.Sprintf(`
[sisu]
base_url = %q
auth_header = "Bearer cli-test"
team_id = 42
rate_limit = 0
retry_attempts = 1
add_return_columns = ["forecasted_closed_dt", "email"]

[closing]
window_days = 15
timezone = "UTC"

[store]
enabled = true
path = %q
`, baseURL, dbPath)
}

func dayOffset(days int) string {
	return time.Now().UTC().AddDate(0, 0, days).Format("2006-01-02")
}

func TestVersionJSON(t *testing.T) {
	out, err := execute(t, testApp(), "version", "--json")
	require.NoError(t, err)

	var got map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, Version, got["version"])
	assert.Contains(t, got, "build_date")
}

func TestConfigPath(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, testApp(), "config", "path", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "config.toml"), strings.TrimSpace(out))
}

func TestConfigShowMasksSecrets(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("SISU_AUTH_HEADER", "Bearer very-secret-token")
	t.Setenv("SMTP_PASS", "hunter2hunter2")

	out, err := execute(t, testApp(), "config", "show", "--config", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "auth_header: Bear****")
	assert.Contains(t, out, "password: hunt****")
	assert.NotContains(t, out, "very-secret-token")
	assert.NotContains(t, out, "hunter2hunter2")
	assert.Contains(t, out, "window_days: 15")
}

func TestConfigValidate(t *testing.T) {
	clearEnv(t)

	t.Run("missing auth header", func(t *testing.T) {
		dir := t.TempDir()
		out, err := execute(t, testApp(), "config", "validate", "--json", "--config", dir)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConfigInvalid))

		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		assert.Equal(t, false, got["valid"])
	})

	t.Run("auth header from keychain", func(t *testing.T) {
		dir := t.TempDir()
		app := testApp()
		app.Secrets = memSecrets{"sisu_auth_header": "Bearer from-keychain"}
		out, err := execute(t, app, "config", "validate", "--config", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid")
	})
}

func TestCheckDryRun(t *testing.T) {
	clearEnv(t)
	srv, calls := sisuServer(t, dayOffset(2), dayOffset(10), dayOffset(40))
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "runs.db")
	writeConfig(t, dir, checkConfig(srv.URL, dbPath))

	out, err := execute(t, testApp(), "check", "--dry-run", "--config", dir)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	assert.Contains(t, out, "Checked:   3 clients")
	assert.Contains(t, out, "Matches:   2")
	assert.Contains(t, out, "Buyer 1")
	assert.Contains(t, out, "Buyer 2")
	assert.NotContains(t, out, "Buyer 3")
	assert.Contains(t, out, "Subject: 🚨 URGENT:")

	_, statErr := os.Stat(dbPath)
	assert.True(t, os.IsNotExist(statErr), "dry run must not open the journal")
}

func TestCheckRecordsRunAndHistoryLists(t *testing.T) {
	clearEnv(t)
	srv, _ := sisuServer(t, dayOffset(5))
	dir := t.TempDir()
	writeConfig(t, dir, checkConfig(srv.URL, filepath.Join(dir, "runs.db")))

	// No channel is configured, so the report is built but not sent.
	out, err := execute(t, testApp(), "check", "--json", "--config", dir)
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ClientsChecked)
	assert.Equal(t, 0, res.NotificationsSent)
	assert.Equal(t, pipeline.DeliverySkipped, res.Delivery)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, 5, res.Matches[0].DaysUntil)

	out, err = execute(t, testApp(), "history", "--json", "--config", dir)
	require.NoError(t, err)

	var runs []store.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].MatchCount)

	out, err = execute(t, testApp(), "history", res.RunID, "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+res.RunID)
	assert.Contains(t, out, "Buyer 1")
}

func TestCheckFailsOnUpstreamError(t *testing.T) {
	clearEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()
	dir := t.TempDir()
	writeConfig(t, dir, checkConfig(srv.URL, filepath.Join(dir, "runs.db")))

	out, err := execute(t, testApp(), "check", "--json", "--config", dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRemoteFetch))

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.NotificationsSent)
	assert.NotEmpty(t, res.Error)
}

func TestHistoryEmpty(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeConfig(t, dir, checkConfig("http://127.0.0.1:1", filepath.Join(dir, "runs.db")))

	out, err := execute(t, testApp(), "history", "--config", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestSecretsSetFromStdin(t *testing.T) {
	keyring.MockInit()

	var out bytes.Buffer
	root := newRootCmd(testApp())
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader("Bearer piped-token\n"))
	root.SetArgs([]string{"secrets", "set", "sisu", "--config", t.TempDir()})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "Stored sisu secret")

	got, err := secrets.NewKeyring().Get("sisu_auth_header")
	require.NoError(t, err)
	assert.Equal(t, "Bearer piped-token", got)

	_, err = execute(t, testApp(), "secrets", "set", "ftp", "--value", "x")
	assert.True(t, errors.Is(err, errors.ErrConfigInvalid))
}

func TestTableRender(t *testing.T) {
	var buf bytes.Buffer
	o := &Output{writer: &buf}
	table := NewTable(o, "BUYER", "DAYS")
	table.AddRow("Zoë Ångström", "3")
	table.AddRow("Al", "12")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "BUYER         DAYS", lines[0])
	assert.Equal(t, "Zoë Ångström  3   ", lines[2])
	assert.Equal(t, "Al            12  ", lines[3])
}

func TestStripANSI(t *testing.T) {
	o := &Output{colorEnabled: true}
	assert.Equal(t, "ok", stripANSI(o.Green("ok")))
	assert.Equal(t, 2, displayWidth(o.Red("ok")))
}

func TestHelpNeedsNoConfig(t *testing.T) {
	clearEnv(t)
	out, err := execute(t, testApp(), "help", "check", "--config", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "--dry-run")
}
