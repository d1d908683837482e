package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoginThenLogout(t *testing.T) {
	var loggedOut bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/login":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["email"] != "alice@example.com" || in["password"] != "from-stdin" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"tok-123","user":{"name":"Alice","permission":"Usuario_Nivel_1"}}`))
		case "/auth/logout":
			if r.Header.Get("Authorization") != "Bearer tok-123" {
				t.Errorf("logout authorization: got %q", r.Header.Get("Authorization"))
			}
			loggedOut = true
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	t.Setenv("LICITASIS_API_URL", srv.URL)
	t.Setenv("LICITASIS_TOKEN_FILE", tokenFile)

	login := loginCmd()
	var out bytes.Buffer
	login.SetOut(&out)
	login.SetIn(strings.NewReader("from-stdin\n"))
	login.SetArgs([]string{"--email", "alice@example.com"})
	if err := login.Execute(); err != nil {
		t.Fatalf("login: %v", err)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil || string(data) != "tok-123" {
		t.Fatalf("token file: %q, %v", data, err)
	}
	if !strings.Contains(out.String(), "Logged in as Alice") {
		t.Errorf("unexpected output: %s", out.String())
	}

	logout := logoutCmd()
	logout.SetOut(&bytes.Buffer{})
	logout.SetArgs([]string{})
	if err := logout.Execute(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !loggedOut {
		t.Error("server logout not called")
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Errorf("token file should be removed, stat err: %v", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid credentials"}`))
	}))
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	t.Setenv("LICITASIS_API_URL", srv.URL)
	t.Setenv("LICITASIS_TOKEN_FILE", tokenFile)

	login := loginCmd()
	login.SetOut(&bytes.Buffer{})
	login.SetArgs([]string{"--email", "alice@example.com", "--password", "nope"})
	err := login.Execute()
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("expected invalid credentials error, got: %v", err)
	}
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("no token should be saved on failure")
	}
}

func TestLogout_NotLoggedIn(t *testing.T) {
	t.Setenv("LICITASIS_TOKEN_FILE", filepath.Join(t.TempDir(), "missing"))

	logout := logoutCmd()
	var out bytes.Buffer
	logout.SetOut(&out)
	logout.SetArgs([]string{})
	if err := logout.Execute(); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if !strings.Contains(out.String(), "No user logged in.") {
		t.Errorf("unexpected output: %s", out.String())
	}
}
