//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelworks/satchel/internal/config"
	"github.com/satchelworks/satchel/internal/logging"
	"github.com/satchelworks/satchel/internal/server"
)

// startServer brings up the full HTTP surface on an ephemeral listener.
func startServer(t *testing.T) (*server.Server, *httptest.Server) {
	t.Helper()
	srv := server.NewServer(config.Default(), logging.NewNop())
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv, ts
}

func seedProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("# demo\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dist", "out.bin"), []byte{0, 1, 2}, 0o644))
	return root
}

func postPack(t *testing.T, ts *httptest.Server, body map[string]interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/v1/pack", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

// TestPackEndToEnd drives a full pack over HTTP: discovery, filtering,
// exclude rules, rendering, and the response envelope.
func TestPackEndToEnd(t *testing.T) {
	_, ts := startServer(t)
	root := seedProject(t)

	resp, body := postPack(t, ts, map[string]interface{}{"root": root})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	artifact, _ := body["artifact"].(string)
	assert.Contains(t, artifact, "package main")
	assert.Contains(t, artifact, "# demo")
	assert.NotContains(t, artifact, "out.bin")

	checksum, _ := body["checksum"].(string)
	assert.True(t, strings.HasPrefix(checksum, "blake2b:"))
	assert.EqualValues(t, 2, body["files"])
}

// TestStreamObservesPack verifies a WebSocket client sees the lifecycle
// events of a pack started over HTTP.
func TestStreamObservesPack(t *testing.T) {
	_, ts := startServer(t)
	root := seedProject(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp, _ := postPack(t, ts, map[string]interface{}{"root": root})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	seen := map[string]bool{}
	deadline := time.Now().Add(5 * time.Second)
	for !seen["pipeline:complete"] && time.Now().Before(deadline) {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.Unmarshal(data, &frame))
		seen[frame.Name] = true
	}

	assert.True(t, seen["pipeline:start"])
	assert.True(t, seen["stage:start"])
	assert.True(t, seen["stage:complete"])
	assert.True(t, seen["pipeline:complete"])
}

// TestPackFailureSurfacesStats checks a failed run still returns the
// partial statistics alongside the error.
func TestPackFailureSurfacesStats(t *testing.T) {
	_, ts := startServer(t)

	resp, body := postPack(t, ts, map[string]interface{}{
		"root": filepath.Join(t.TempDir(), "missing"),
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.Contains(t, body, "stats")
}

// TestMetricsReflectPacks confirms the Prometheus endpoint counts runs.
func TestMetricsReflectPacks(t *testing.T) {
	_, ts := startServer(t)
	root := seedProject(t)

	resp, _ := postPack(t, ts, map[string]interface{}{"root": root})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	mresp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "satchel_packs_total")
}
