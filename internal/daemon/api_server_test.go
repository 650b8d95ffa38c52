package daemon

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"autoxdcc/internal/api"
	"autoxdcc/internal/logging"
	"autoxdcc/internal/metrics"
	"autoxdcc/internal/testsupport"
	"autoxdcc/internal/transport"
	"autoxdcc/internal/workflow"
)

const testToken = "secret"

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAPIToken(testToken))
	store := testsupport.MustOpenStore(t, cfg)
	outbox := transport.NewOutbox(0, 0, logging.NewNop())
	wf := workflow.NewManager(cfg, store, outbox, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), wf, outbox, metrics.New())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	srv := newAPIServer(cfg, d, logging.NewNop())
	if srv == nil {
		t.Fatal("expected api server for configured bind address")
	}
	ts := httptest.NewServer(srv.routes())
	t.Cleanup(ts.Close)
	return ts
}

func doRequest(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAPIServerAuth(t *testing.T) {
	ts := newTestAPI(t)

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{name: "health is public", path: "/health", want: http.StatusOK},
		{name: "status without token", path: "/api/status", want: http.StatusUnauthorized},
		{name: "status with wrong token", path: "/api/status", token: "nope", want: http.StatusUnauthorized},
		{name: "status with token", path: "/api/status", token: testToken, want: http.StatusOK},
		{name: "metrics without token", path: "/metrics", want: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doRequest(t, http.MethodGet, ts.URL+tt.path, tt.token, "")
			if resp.StatusCode != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestAPIServerStatus(t *testing.T) {
	ts := newTestAPI(t)
	resp := doRequest(t, http.MethodGet, ts.URL+"/api/status", testToken, "")
	var status api.DaemonStatus
	decode(t, resp, &status)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.DatabasePath == "" || status.LockFilePath == "" || status.PID == 0 {
		t.Fatalf("incomplete status: %+v", status)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/packlists", testToken, "")
	var packlists []api.PacklistStatus
	decode(t, resp, &packlists)
	if len(packlists) != 0 {
		t.Fatalf("expected no registered packlists, got %+v", packlists)
	}
}

func TestAPIServerShows(t *testing.T) {
	ts := newTestAPI(t)

	resp := doRequest(t, http.MethodPost, ts.URL+"/api/shows", testToken, `{"name":"Foo","resolution":"720p","episode":3}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var change api.ShowChange
	decode(t, resp, &change)
	if change.Show.Name != "Foo" || change.Show.Resolution != 720 {
		t.Fatalf("unexpected show: %+v", change.Show)
	}

	for _, body := range []string{
		`{"name":""}`,
		`{"name":"Bar","resolution":"big"}`,
		`{"name":"Bar","color":"red"}`,
		`not json`,
	} {
		resp := doRequest(t, http.MethodPost, ts.URL+"/api/shows", testToken, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/shows", testToken, "")
	var shows []api.Show
	decode(t, resp, &shows)
	if len(shows) != 1 || shows[0].LastEpisode == nil || *shows[0].LastEpisode != 3 {
		t.Fatalf("unexpected shows: %+v", shows)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/shows?archived=true", testToken, "")
	shows = nil
	decode(t, resp, &shows)
	if len(shows) != 0 {
		t.Fatalf("expected no archived shows, got %+v", shows)
	}
}

func TestAPIServerDownloadsAndMetrics(t *testing.T) {
	ts := newTestAPI(t)

	resp := doRequest(t, http.MethodGet, ts.URL+"/api/downloads?limit=x", testToken, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", resp.StatusCode)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/api/downloads?limit=5", testToken, "")
	var rows []api.Download
	decode(t, resp, &rows)
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected an empty list, got %#v", rows)
	}

	resp = doRequest(t, http.MethodGet, ts.URL+"/metrics", testToken, "")
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Fatalf("expected runtime metrics, got %q", body)
	}
}
