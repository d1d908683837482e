package audit

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

func setupServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("admin-token"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("LICITASIS_API_URL", srv.URL)
	t.Setenv("LICITASIS_TOKEN_FILE", tokenFile)
}

func TestStatsCmd(t *testing.T) {
	setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audit/stats" || r.URL.Query().Get("days") != "7" {
			t.Fatalf("unexpected request: %s", r.URL)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"days": 7,
			"items": []map[string]any{
				{"action": "LOGIN", "count": 12, "distinct_actors": 4},
				{"action": "ACCESS_DENIED", "count": 3, "distinct_actors": 1},
			},
		})
	})

	cmd := statsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--days", "7"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	s := out.String()
	if !strings.Contains(s, "Last 7 days") || !strings.Contains(s, "ACCESS_DENIED") || !strings.Contains(s, "12") {
		t.Fatalf("unexpected output: %s", s)
	}
}

func TestReportCmd_DeletedUser(t *testing.T) {
	setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start") != "2026-01-01" || q.Get("end") != "2026-01-31" || q.Get("user_id") != "" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"items":[{"id":3,"actor_id":9,"actor_name":"Gone","action":"DELETE","label":"Exclusão","source_ip":"8.8.8.8","created_at":"2026-01-10T10:00:00Z","actor_full_name":null,"actor_permission":null}]}`))
	})

	cmd := reportCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--start", "2026-01-01", "--end", "2026-01-31"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	if !strings.Contains(out.String(), "(deleted user)") || !strings.Contains(out.String(), "Gone") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestReportCmd_RequiresRange(t *testing.T) {
	cmd := reportCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--start", "2026-01-01"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error without --end")
	}
}

func TestCleanupCmd(t *testing.T) {
	setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Query().Get("days") != "90" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL)
		}
		_, _ = w.Write([]byte(`{"days_kept":90,"deleted_rows":42}`))
	})

	cmd := cleanupCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--days", "90"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "Deleted 42 events older than 90 days") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestUserHistoryCmd_Forbidden(t *testing.T) {
	setupServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"access denied"}`))
	})

	cmd := userHistoryCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"2"})
	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got: %v", err)
	}
}
