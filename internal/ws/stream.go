// Package ws streams pipeline events to WebSocket clients. Events are
// fanned out through per-client buffered queues; a client that cannot
// keep up is dropped rather than allowed to stall the run.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/satchelworks/satchel/internal/events"
	"github.com/satchelworks/satchel/internal/logging"
	"github.com/satchelworks/satchel/internal/monitoring"
	"github.com/satchelworks/satchel/internal/shared/id"
)

const (
	// clientBuffer is the per-client event queue depth; overflow drops
	// the client.
	clientBuffer = 256
	writeWait    = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Frame is the wire form of one pipeline event.
type Frame struct {
	Stream    id.StreamID `json:"stream"`
	Name      string      `json:"name"`
	Timestamp int64       `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	queue  chan []byte
	done   chan struct{}
	stream id.StreamID
	once   sync.Once
}

// Streamer broadcasts every event published on a bus to its clients.
type Streamer struct {
	bus     *events.Bus
	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu      sync.RWMutex
	clients map[id.StreamID]*client
	sub     events.Subscription
}

// NewStreamer subscribes to the bus and starts relaying. Metrics may be
// nil.
func NewStreamer(bus *events.Bus, logger *logging.Logger, metrics *monitoring.Metrics) *Streamer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Streamer{
		bus:     bus,
		logger:  logger.Scoped("ws"),
		metrics: metrics,
		clients: make(map[id.StreamID]*client),
	}
	s.sub = bus.SubscribeAll(s.broadcast)
	return s
}

// Close detaches the streamer from the bus and disconnects all clients.
func (s *Streamer) Close() {
	s.bus.Unsubscribe(s.sub)

	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clients = make(map[id.StreamID]*client)
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// ClientCount returns the number of connected clients.
func (s *Streamer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// broadcast runs synchronously in Publish: it only enqueues, per-client
// writers do the slow work, so event order within each client holds.
func (s *Streamer) broadcast(ev events.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.clients {
		frame := Frame{
			Stream:    c.stream,
			Name:      string(ev.Name),
			Timestamp: ev.Timestamp.UnixNano(),
			Payload:   ev.Payload,
		}
		data, err := sonic.Marshal(frame)
		if err != nil {
			s.logger.Warn("frame encode failed", zap.Error(err))
			continue
		}

		select {
		case c.queue <- data:
		default:
			// Slow client: drop it without blocking the pipeline.
			s.logger.Warn("dropping slow client", zap.String("stream", c.stream.String()))
			if s.metrics != nil {
				s.metrics.WSDropped.Inc()
			}
			go s.detach(c)
		}
	}
}

// Handle upgrades one HTTP request to a streaming connection.
func (s *Streamer) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		conn:   conn,
		queue:  make(chan []byte, clientBuffer),
		done:   make(chan struct{}),
		stream: id.NewStreamID(),
	}

	s.mu.Lock()
	s.clients[cl.stream] = cl
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.WSConnections.Inc()
	}
	s.logger.Info("client connected", zap.String("stream", cl.stream.String()))

	go s.writeLoop(cl)
	s.readLoop(cl)
}

// writeLoop drains the client queue onto the socket.
func (s *Streamer) writeLoop(cl *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-cl.done:
			return
		case data := <-cl.queue:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.detach(cl)
				return
			}
			if s.metrics != nil {
				s.metrics.WSEventsSent.Inc()
			}
		case <-ticker.C:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.detach(cl)
				return
			}
		}
	}
}

// readLoop discards client messages and notices disconnects.
func (s *Streamer) readLoop(cl *client) {
	defer s.detach(cl)
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Streamer) detach(cl *client) {
	s.mu.Lock()
	_, present := s.clients[cl.stream]
	delete(s.clients, cl.stream)
	s.mu.Unlock()

	if present {
		if s.metrics != nil {
			s.metrics.WSConnections.Dec()
		}
		s.logger.Info("client disconnected", zap.String("stream", cl.stream.String()))
	}
	cl.close()
}

// close signals the writer and tears down the socket. The queue is never
// closed: a broadcaster may still hold a reference mid-send.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
