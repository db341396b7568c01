package tracews

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-json-experiment/json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/aspectjobs/internal/domain"
)

const (
	defaultClientBuffer = 256
	writeWait           = 5 * time.Second
)

// Record is the trace entry streamed for every finished job.
type Record struct {
	BatchID    string    `json:"batch_id"`
	JobID      string    `json:"job_id"`
	WorkerID   int       `json:"worker_id"`
	Status     string    `json:"status"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	DurationUS int64     `json:"duration_us"`
	Error      string    `json:"error,omitempty"`
}

// RecordFromEvent converts a job event into a trace record.
func RecordFromEvent(ev domain.JobEvent) Record {
	r := Record{
		BatchID:  ev.BatchID,
		JobID:    string(ev.JobID),
		WorkerID: ev.WorkerID,
		Status:   ev.Status.String(),
		Start:    ev.Started,
		End:      ev.Finished,
	}
	if !ev.Started.IsZero() && !ev.Finished.IsZero() {
		r.DurationUS = ev.Finished.Sub(ev.Started).Microseconds()
	}
	if ev.Err != nil {
		r.Error = ev.Err.Error()
	}
	return r
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Option configures a Server.
type Option func(*Server)

// WithClientBuffer sets how many records may queue per client before new
// ones are dropped for that client.
func WithClientBuffer(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server streams trace records to websocket clients. Broadcast never blocks:
// a client that cannot keep up loses records.
type Server struct {
	upgrader websocket.Upgrader
	buffer   int
	logger   zerolog.Logger
	dropped  atomic.Int64

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewServer creates a trace Server.
func NewServer(opts ...Option) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer:  defaultClientBuffer,
		logger:  zerolog.Nop(),
		clients: make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServeHTTP upgrades the request and streams records until the client goes
// away or the server is closed.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("trace upgrade failed")
		return
	}
	c := &client{conn: conn, send: make(chan []byte, s.buffer)}
	if !s.register(c) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closed"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	s.logger.Debug().Str("remote", r.RemoteAddr).Msg("trace client connected")

	go s.readLoop(c)
	s.writeLoop(c)
}

// readLoop discards client input and detects disconnects.
func (s *Server) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			s.unregister(c)
			return
		}
	}
}

func (s *Server) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.unregister(c)
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (s *Server) register(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.clients[c] = struct{}{}
	return true
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		close(c.send)
	}
}

// Broadcast sends rec to every connected client.
func (s *Server) Broadcast(rec Record) {
	msg, err := json.Marshal(rec)
	if err != nil {
		s.logger.Error().Err(err).Msg("encode trace record")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		select {
		case c.send <- msg:
		default:
			s.dropped.Add(1)
		}
	}
}

// HandleEvent broadcasts terminal job events. It is meant to be subscribed to
// an event dispatcher.
func (s *Server) HandleEvent(ev domain.Event) {
	if data, ok := ev.Data.(domain.JobEvent); ok && data.Status.Terminal() {
		s.Broadcast(RecordFromEvent(data))
	}
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped returns how many records were discarded for slow clients.
func (s *Server) Dropped() int64 { return s.dropped.Load() }

// Close disconnects every client and refuses new ones.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for c := range s.clients {
		delete(s.clients, c)
		close(c.send)
	}
}
