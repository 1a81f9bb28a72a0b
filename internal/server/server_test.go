package server

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

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/logging"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	srv := NewServer(cfg, logging.NewNop())
	t.Cleanup(func() { srv.streamer.Close() })
	return srv
}

func do(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
}

func TestProfiles(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/v1/profiles", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Profiles []string `json:"profiles"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Profiles, "default")
}

func TestPack(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))

	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/v1/pack", PackRequest{Root: root, Profile: "default"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp PackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "default", resp.Profile)
	assert.Equal(t, 1, resp.Files)
	assert.Contains(t, resp.Artifact, "package main")
	assert.NotEmpty(t, resp.ArtifactID)
	assert.NotEmpty(t, resp.Checksum)
	assert.Equal(t, resp.Stats.StagesCompleted, 14)
}

func TestPackFormatOverride(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))

	srv := newTestServer(t)
	w := do(t, srv, http.MethodPost, "/v1/pack", PackRequest{Root: root, Format: "json"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp PackResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	var artifact map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(resp.Artifact), &artifact))
	assert.Equal(t, "default", artifact["profile"])
}

func TestPackValidation(t *testing.T) {
	srv := newTestServer(t)

	// Missing root field.
	w := do(t, srv, http.MethodPost, "/v1/pack", map[string]string{"profile": "default"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown profile.
	w = do(t, srv, http.MethodPost, "/v1/pack", PackRequest{Root: t.TempDir(), Profile: "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Nonexistent root fails the workspace validation during the run.
	w = do(t, srv, http.MethodPost, "/v1/pack",
		PackRequest{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	w := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
