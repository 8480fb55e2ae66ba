package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"trackmeta/internal/core"
	"trackmeta/internal/field"
	"trackmeta/internal/flood"
	"trackmeta/internal/metadata"
	"trackmeta/internal/store"
	"trackmeta/pkg/soundcloud"
)

type apiRoute struct {
	status int
	body   string
}

type testEnv struct {
	server *httptest.Server
	store  *store.MemoryStore
}

// newTestEnv wires the full handler stack against a fake SoundCloud API.
func newTestEnv(t *testing.T, routes map[string]apiRoute, clientID string, limit int) *testEnv {
	t.Helper()

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if route.status != 0 {
			w.WriteHeader(route.status)
		}
		_, _ = w.Write([]byte(route.body))
	}))
	t.Cleanup(api.Close)

	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	client, err := soundcloud.NewClient(api.URL, soundcloud.WithRequestObserver(metrics.ObserveUpstream))
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	s := store.NewMemoryStore()
	config := field.NewStoredConfig(s, field.InstallationParameters{ClientID: clientID})
	resolver := metadata.NewResolver(client, metadata.FieldsFull, zap.NewNop())

	deps := Dependencies{
		Fields: field.NewManager(s, resolver, config, time.Second, zap.NewNop()),
		Config: config,
		Store:  s,
	}
	if limit > 0 {
		deps.Limiter = flood.New(limit)
		t.Cleanup(deps.Limiter.Stop)
	}

	serverConfig := &core.ServerConfig{Host: "127.0.0.1", Port: 0}
	srv := NewServer(serverConfig, deps, metrics, registry, "en", zap.NewNop())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, store: s}
}

func (e *testEnv) do(t *testing.T, method, path, body string, headers ...string) (*http.Response, string) {
	t.Helper()

	var reader io.Reader = http.NoBody
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return resp, string(data)
}

func decodeError(t *testing.T, body string) errorResponse {
	t.Helper()
	var er errorResponse
	if err := json.Unmarshal([]byte(body), &er); err != nil {
		t.Fatalf("error body %q is not JSON: %v", body, err)
	}
	return er
}

var scenarioRoutes = map[string]apiRoute{
	"/tracks/123": {body: `{"kind":"track","waveform_url":"/w.png","stream_url":"https://cdn/123.mp3"}`},
	"/w.json":     {body: `{"samples":[2,4,8,4]}`},
	"/tracks/202": {status: http.StatusAccepted, body: `{}`},
	"/tracks/500": {status: http.StatusInternalServerError, body: `oops`},
	"/tracks/777": {body: `{"kind":"track","waveform_url":"/w.png","stream_url":null}`},
}

func TestCreateHTTPServer(t *testing.T) {
	config := &core.ServerConfig{
		Host:         "0.0.0.0",
		Port:         9090,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	mux := http.NewServeMux()
	server := createHTTPServer(config, mux)

	expectedAddr := "0.0.0.0:9090"
	if server.Addr != expectedAddr {
		t.Errorf("createHTTPServer() Addr = %q, expected %q", server.Addr, expectedAddr)
	}

	if server.Handler != mux {
		t.Errorf("createHTTPServer() Handler mismatch")
	}

	if server.ReadTimeout != config.ReadTimeout {
		t.Errorf("createHTTPServer() ReadTimeout = %v, expected %v", server.ReadTimeout, config.ReadTimeout)
	}

	if server.WriteTimeout != config.WriteTimeout {
		t.Errorf("createHTTPServer() WriteTimeout = %v, expected %v", server.WriteTimeout, config.WriteTimeout)
	}
}

func TestServiceEndpoints(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "cid", 0)

	tests := []struct {
		path        string
		contentType string
		body        string
	}{
		{"/healthz", "application/json", `{"status":"ok","service":"trackmeta"}`},
		{"/readyz", "application/json", `{"status":"ready","service":"trackmeta"}`},
		{"/", "text/html", ""},
		{"/metrics", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := env.do(t, http.MethodGet, tt.path, "")
			if resp.StatusCode != http.StatusOK {
				t.Errorf("%s returned status %d, expected %d", tt.path, resp.StatusCode, http.StatusOK)
			}
			if tt.contentType != "" && resp.Header.Get("Content-Type") != tt.contentType {
				t.Errorf("%s Content-Type = %q, expected %q", tt.path, resp.Header.Get("Content-Type"), tt.contentType)
			}
			if tt.body != "" && body != tt.body {
				t.Errorf("%s body = %q, expected %q", tt.path, body, tt.body)
			}
		})
	}

	resp, _ := env.do(t, http.MethodGet, "/unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/unknown returned status %d, expected %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestHomeHandler(t *testing.T) {
	req := httptest.NewRequest("GET", "/", http.NoBody)
	rec := httptest.NewRecorder()

	homeHandler(rec, req)

	body := rec.Body.String()
	for _, element := range []string{"<!DOCTYPE html>", "<title>trackmeta</title>", "/metrics", "/healthz", "/readyz", "/api/config"} {
		if !strings.Contains(body, element) {
			t.Errorf("Expected body to contain %q", element)
		}
	}
}

func TestResolveAndLoad(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "cid", 0)
	path := "/api/entries/entry1/fields/track"

	resp, body := env.do(t, http.MethodGet, path, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("GET empty field status = %d, want 404", resp.StatusCode)
	}
	if er := decodeError(t, body); er.Error != codeFieldEmpty {
		t.Errorf("GET empty field error = %q, want %q", er.Error, codeFieldEmpty)
	}

	expected := `{"streamUrl":"https://cdn/123.mp3","samples":[0.25,0.5,1,0.5]}`

	resp, body = env.do(t, http.MethodPost, path+"/resolve", `{"reference":"123","user":"u1"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST resolve status = %d, body %s", resp.StatusCode, body)
	}
	if body != expected {
		t.Errorf("POST resolve body = %s, want %s", body, expected)
	}

	resp, body = env.do(t, http.MethodGet, path, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET field status = %d", resp.StatusCode)
	}
	if body != expected {
		t.Errorf("GET field body = %s, want %s", body, expected)
	}
	if ref := resp.Header.Get("X-Track-Reference"); ref != "123" {
		t.Errorf("X-Track-Reference = %q, want 123", ref)
	}

	// Resolving again without a body reuses the current reference
	resp, body = env.do(t, http.MethodPost, path+"/resolve", "")
	if resp.StatusCode != http.StatusOK || body != expected {
		t.Errorf("POST resolve without body = %d %s", resp.StatusCode, body)
	}

	_, metricsBody := env.do(t, http.MethodGet, "/metrics", "")
	for _, metric := range []string{
		`trackmeta_resolutions_total{outcome="success"} 2`,
		`trackmeta_upstream_requests_total{endpoint="track",status="200"} 2`,
		`trackmeta_upstream_requests_total{endpoint="waveform",status="200"} 2`,
	} {
		if !strings.Contains(metricsBody, metric) {
			t.Errorf("/metrics missing %q", metric)
		}
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		language       string
		expectedStatus int
		expectedError  string
		expectedMsg    string
		retryAfter     string
	}{
		{
			name: "Unknown track", body: `{"reference":"404404"}`,
			expectedStatus: http.StatusNotFound, expectedError: "not_found", expectedMsg: "Invalid track id",
		},
		{
			name: "Unknown track in German", body: `{"reference":"404404"}`, language: "de-DE,de;q=0.9",
			expectedStatus: http.StatusNotFound, expectedError: "not_found", expectedMsg: "Ungültige Track-ID",
		},
		{
			name: "Not streamable", body: `{"reference":"777"}`,
			expectedStatus: http.StatusUnprocessableEntity, expectedError: "invalid_stream_url",
			expectedMsg: "This track cannot be streamed.",
		},
		{
			name: "Processing", body: `{"reference":"202"}`,
			expectedStatus: http.StatusServiceUnavailable, expectedError: "transient_upstream", retryAfter: "30",
		},
		{
			name: "Upstream failure", body: `{"reference":"500"}`,
			expectedStatus: http.StatusBadGateway, expectedError: "unreachable",
		},
		{
			name: "Blank reference", body: `{"reference":"   "}`,
			expectedStatus: http.StatusUnprocessableEntity, expectedError: codeInvalidReference,
			expectedMsg: "Enter valid track ID.",
		},
		{
			name: "Malformed body", body: `{"reference":`,
			expectedStatus: http.StatusBadRequest, expectedError: codeBadRequest,
		},
		{
			name: "Unknown body key", body: `{"trackId":"1"}`,
			expectedStatus: http.StatusBadRequest, expectedError: codeBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, scenarioRoutes, "cid", 0)
			var headers []string
			if tt.language != "" {
				headers = []string{"Accept-Language", tt.language}
			}

			resp, body := env.do(t, http.MethodPost, "/api/entries/e/fields/f/resolve", tt.body, headers...)
			if resp.StatusCode != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.expectedStatus, body)
			}
			er := decodeError(t, body)
			if er.Error != tt.expectedError {
				t.Errorf("error = %q, want %q", er.Error, tt.expectedError)
			}
			if tt.expectedMsg != "" && er.Message != tt.expectedMsg {
				t.Errorf("message = %q, want %q", er.Message, tt.expectedMsg)
			}
			if got := resp.Header.Get("Retry-After"); got != tt.retryAfter {
				t.Errorf("Retry-After = %q, want %q", got, tt.retryAfter)
			}

			// Nothing was persisted
			if resp, _ := env.do(t, http.MethodGet, "/api/entries/e/fields/f", ""); resp.StatusCode != http.StatusNotFound {
				t.Errorf("field status after failure = %d, want 404", resp.StatusCode)
			}
		})
	}
}

func TestResolve_NotConfigured(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "", 0)

	resp, body := env.do(t, http.MethodPost, "/api/entries/e/fields/f/resolve", `{"reference":"123"}`)
	if resp.StatusCode != http.StatusPreconditionFailed {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusPreconditionFailed)
	}
	if er := decodeError(t, body); er.Error != codeNotConfigured {
		t.Errorf("error = %q, want %q", er.Error, codeNotConfigured)
	}
}

func TestResolve_RateLimited(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "cid", 1)
	path := "/api/entries/e/fields/f/resolve"

	if resp, _ := env.do(t, http.MethodPost, path, `{"reference":"123","user":"u1"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPost, path, `{"reference":"123","user":"u1"}`)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if er := decodeError(t, body); er.Error != codeRateLimited {
		t.Errorf("error = %q, want %q", er.Error, codeRateLimited)
	}

	// Another requester has its own window
	if resp, _ := env.do(t, http.MethodPost, path, `{"reference":"123","user":"u2"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("other requester status = %d, want 200", resp.StatusCode)
	}
}

func TestPutReference_ClearsField(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "cid", 0)
	path := "/api/entries/e/fields/f"

	if resp, _ := env.do(t, http.MethodPost, path+"/resolve", `{"reference":"123"}`); resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve status = %d", resp.StatusCode)
	}

	resp, body := env.do(t, http.MethodPut, path+"/reference", `{"reference":"456"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT reference status = %d body %s", resp.StatusCode, body)
	}
	var rr referenceResponse
	if err := json.Unmarshal([]byte(body), &rr); err != nil || rr.Reference != "456" {
		t.Errorf("PUT reference body = %s", body)
	}

	if resp, _ := env.do(t, http.MethodGet, path, ""); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET after reference change status = %d, want 404", resp.StatusCode)
	}
	if env.store.Size() != 0 {
		t.Errorf("store size = %d, want 0", env.store.Size())
	}
}

func TestFieldKey_EncodedSlashRejected(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "cid", 0)

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodPost, "/api/entries/a%2Fb/fields/c/resolve", `{"reference":"123"}`},
		{http.MethodPost, "/api/entries/a/fields/b%2Fc/resolve", `{"reference":"123"}`},
		{http.MethodGet, "/api/entries/a%2Fb/fields/c", ""},
		{http.MethodPut, "/api/entries/a/fields/b%2Fc/reference", `{"reference":"123"}`},
	}

	for _, tt := range tests {
		resp, body := env.do(t, tt.method, tt.path, tt.body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s %s status = %d, want 400", tt.method, tt.path, resp.StatusCode)
			continue
		}
		if er := decodeError(t, body); er.Error != codeBadRequest {
			t.Errorf("%s %s error = %q, want %q", tt.method, tt.path, er.Error, codeBadRequest)
		}
	}

	if env.store.Size() != 0 {
		t.Errorf("store size = %d, want 0", env.store.Size())
	}
}

func TestConfigEndpoints(t *testing.T) {
	env := newTestEnv(t, scenarioRoutes, "", 0)

	resp, body := env.do(t, http.MethodGet, "/api/config", "")
	if resp.StatusCode != http.StatusOK || body != "{\"clientId\":\"\",\"configured\":false}\n" {
		t.Errorf("GET config = %d %q", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPut, "/api/config", `{"clientId":"  "}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("PUT blank config status = %d, want 422", resp.StatusCode)
	}
	if er := decodeError(t, body); er.Message != "You must provide a valid client ID!" {
		t.Errorf("PUT blank config message = %q", er.Message)
	}

	resp, body = env.do(t, http.MethodPut, "/api/config", `{"clientId":" abc "}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("PUT config status = %d body %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/config", "")
	var cr configResponse
	if err := json.Unmarshal([]byte(body), &cr); err != nil {
		t.Fatalf("GET config body %q: %v", body, err)
	}
	if resp.StatusCode != http.StatusOK || !cr.Configured || cr.ClientID != "abc" {
		t.Errorf("GET config after save = %d %+v", resp.StatusCode, cr)
	}

	// The saved client id is used for resolution
	if resp, _ := env.do(t, http.MethodPost, "/api/entries/e/fields/f/resolve", `{"reference":"123"}`); resp.StatusCode != http.StatusOK {
		t.Errorf("resolve after configuring status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_StartContextCancellation(t *testing.T) {
	registry := prometheus.NewRegistry()
	deps := Dependencies{Store: store.NewMemoryStore()}
	config := &core.ServerConfig{Host: "127.0.0.1", Port: 0}
	srv := NewServer(config, deps, NewMetrics(registry), registry, "en", zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancellation")
	}
}
