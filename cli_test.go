package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/admin-login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "hunter22" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"token": "t0k"})
		case "/users":
			if r.Header.Get("Authorization") != "Bearer t0k" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`[
				{"email":"bo@club.org","display_name":"Bo","stamp_count":2,"attendance_dates":["2024-06-06"]},
				{"email":"ana@club.org","display_name":"Ana","stamp_count":9,"attendance_dates":["2024-06-13"]}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand(t *testing.T) {
	srv := fakeGateway(t)
	out, err := execute(t, "export", "--config", t.TempDir(), "--gateway", srv.URL,
		"--admin-email", "boss@club.org", "--admin-password", "hunter22", "--sort", "email")
	require.NoError(t, err)
	assert.Equal(t, "Email,Name,Stamps\nana@club.org,Ana,9\nbo@club.org,Bo,2\n", out)
}

func TestExportCommandToFile(t *testing.T) {
	srv := fakeGateway(t)
	path := filepath.Join(t.TempDir(), "users.csv")
	_, err := execute(t, "export", "--config", t.TempDir(), "--gateway", srv.URL,
		"--admin-email", "boss@club.org", "--admin-password", "hunter22",
		"--layout", "detailed", "--week", "custom", "--date", "2024-06-14", "--out", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Email,Display Name,Stamps,Last Stamp Date\nana@club.org,Ana,9,2024-06-13\n", string(data))
}

func TestRaffleCommand(t *testing.T) {
	srv := fakeGateway(t)
	out, err := execute(t, "raffle", "--config", t.TempDir(), "--gateway", srv.URL,
		"--admin-email", "boss@club.org", "--admin-password", "hunter22", "--week", "custom", "--date", "2024-06-08")
	require.NoError(t, err)
	assert.Equal(t, "Winner for the week of 2024-06-06: Bo <bo@club.org> (1 eligible)\n", out)

	out, err = execute(t, "raffle", "--config", t.TempDir(), "--gateway", srv.URL,
		"--admin-email", "boss@club.org", "--admin-password", "hunter22", "--week", "custom", "--date", "2001-01-01")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "No eligible members"))
}

func TestCommandRejectsBadCredentials(t *testing.T) {
	srv := fakeGateway(t)
	_, err := execute(t, "export", "--config", t.TempDir(), "--gateway", srv.URL,
		"--admin-email", "boss@club.org", "--admin-password", "guess")
	assert.ErrorContains(t, err, "admin login")
}

func TestCommandRejectsBadFlags(t *testing.T) {
	_, err := execute(t, "export", "--config", t.TempDir(), "--gateway", "http://127.0.0.1:1", "--week", "fortnight")
	assert.Error(t, err)
}
