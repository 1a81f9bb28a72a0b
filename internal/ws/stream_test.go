package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satchelworks/satchel/internal/events"
)

func newStreamServer(t *testing.T) (*Streamer, *events.Bus, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	streamer := NewStreamer(bus, nil, nil)
	t.Cleanup(streamer.Close)

	router := gin.New()
	router.GET("/stream", streamer.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return streamer, bus, "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, s *Streamer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n },
		2*time.Second, 10*time.Millisecond)
}

func TestStreamDeliversEventsInOrder(t *testing.T) {
	streamer, bus, url := newStreamServer(t)
	conn := dial(t, url)
	waitForClients(t, streamer, 1)

	names := []events.Name{"pipeline:start", "stage:start", "stage:complete", "pipeline:complete"}
	for _, name := range names {
		bus.Publish(events.New(name, map[string]string{"run": "r1"}))
	}

	for _, want := range names {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var frame Frame
		require.NoError(t, sonic.Unmarshal(data, &frame))
		assert.Equal(t, string(want), frame.Name)
		assert.NotEmpty(t, frame.Stream)
		assert.Positive(t, frame.Timestamp)
	}
}

func TestStreamMultipleClients(t *testing.T) {
	streamer, bus, url := newStreamServer(t)
	a := dial(t, url)
	b := dial(t, url)
	waitForClients(t, streamer, 2)

	bus.Publish(events.New("pipeline:start", nil))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame Frame
		require.NoError(t, sonic.Unmarshal(data, &frame))
		assert.Equal(t, "pipeline:start", frame.Name)
	}
}

func TestStreamClientDisconnect(t *testing.T) {
	streamer, _, url := newStreamServer(t)
	conn := dial(t, url)
	waitForClients(t, streamer, 1)

	conn.Close()
	waitForClients(t, streamer, 0)
}

func TestSlowClientDropped(t *testing.T) {
	streamer, bus, url := newStreamServer(t)
	conn := dial(t, url)
	waitForClients(t, streamer, 1)

	// Stop reading and flood far past the queue depth.
	_ = conn
	for i := 0; i < clientBuffer*4; i++ {
		bus.Publish(events.New("stage:progress", map[string]int{"i": i}))
	}

	waitForClients(t, streamer, 0)
}

func TestCloseDetachesFromBus(t *testing.T) {
	bus := events.NewBus()
	streamer := NewStreamer(bus, nil, nil)
	require.Equal(t, 1, bus.SubscriberCount("pipeline:start"))

	streamer.Close()
	assert.Equal(t, 0, bus.SubscriberCount("pipeline:start"))
}

func TestHandleRejectsPlainHTTP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	streamer := NewStreamer(events.NewBus(), nil, nil)
	defer streamer.Close()

	router := gin.New()
	router.GET("/stream", streamer.Handle)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stream", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
