package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"token": "tok-123", "role": "admin"})
	})
	mux.HandleFunc("GET /admin/users", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-123" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "missing token"})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"upn": "alice@corp.example", "rfid_uid": "111", "groups": []string{"A", "B"}},
		})
	})
	mux.HandleFunc("POST /admin/doors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "door already exists"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestLoginThenListUsers(t *testing.T) {
	srv := fakeAPI(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	out, err := run(t, "--api", srv.URL, "--token-file", tokenFile, "login", "-u", "ops", "-p", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ops (admin)")

	data, err := os.ReadFile(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", string(data))

	out, err = run(t, "--api", srv.URL, "--token-file", tokenFile, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "UPN")
	assert.Contains(t, out, "alice@corp.example")
	assert.Contains(t, out, "A,B")
}

func TestAPIErrorsSurface(t *testing.T) {
	srv := fakeAPI(t)
	tokenFile := filepath.Join(t.TempDir(), "token")

	_, err := run(t, "--api", srv.URL, "--token-file", tokenFile, "users")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401 missing token")

	_, err = run(t, "--api", srv.URL, "--token-file", tokenFile, "doors", "add", "7", "A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "door already exists")

	_, err = run(t, "--api", srv.URL, "--token-file", tokenFile, "doors", "add", "seven", "A")
	assert.EqualError(t, err, `invalid door id "seven"`)
}
