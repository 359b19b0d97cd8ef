package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/xhad/courserag/pkg/rag"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Backend is the query surface the server exposes.
type Backend interface {
	QueryStream(ctx context.Context, text, sessionID string, onToken func(string)) (*rag.Response, error)
	Analytics(ctx context.Context) (*rag.Analytics, error)
	NewSession() string
}

// Message is the WebSocket frame exchanged with clients. Clients send
// {"type":"query","content":...,"session_id":...}; the server answers with
// "stream" frames followed by one "response" or "error" frame.
type Message struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	SessionID string `json:"session_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

type Server struct {
	backend Backend
	logger  *slog.Logger
	metrics *metrics
	mux     *http.ServeMux
}

func New(backend Backend, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		backend: backend,
		logger:  logger,
		metrics: newMetrics(),
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/query", s.handleQuery)
	s.mux.HandleFunc("/api/courses", s.handleCourses)
	s.mux.HandleFunc("/api/session/new", s.handleNewSession)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	s.mux.Handle("/metrics", s.metrics.handler())
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.query(r.Context(), "http", req.Query, req.SessionID, nil)
	if errors.Is(err, rag.ErrEmptyQuery) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a, err := s.backend.Analytics(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": s.backend.NewSession()})
}

func (s *Server) query(ctx context.Context, transport, text, sessionID string, onToken func(string)) (*rag.Response, error) {
	start := time.Now()
	resp, err := s.backend.QueryStream(ctx, text, sessionID, onToken)
	s.metrics.queryDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.metrics.queries.WithLabelValues(transport, "error").Inc()
		s.logger.Error("query failed", "transport", transport, "error", err)
		return nil, err
	}
	s.metrics.queries.WithLabelValues(transport, "ok").Inc()
	s.metrics.sources.Observe(float64(len(resp.Sources)))
	return resp, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	s.metrics.wsConnections.Inc()
	defer s.metrics.wsConnections.Dec()

	// Writes from the query goroutine and the read loop share the connection.
	var writeMu sync.Mutex
	send := func(msg Message) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Debug("websocket write failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Debug("websocket read failed", "error", err)
			}
			cancel()
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			send(Message{Type: "error", Content: "invalid message"})
			continue
		}

		wg.Add(1)
		go func(msg Message) {
			defer wg.Done()
			s.handleMessage(ctx, msg, send)
		}(msg)
	}
}

func (s *Server) handleMessage(ctx context.Context, msg Message, send func(Message)) {
	switch msg.Type {
	case "query", "":
	case "new_session":
		send(Message{Type: "session", SessionID: s.backend.NewSession()})
		return
	default:
		send(Message{Type: "error", Content: "unknown message type: " + msg.Type})
		return
	}

	resp, err := s.query(ctx, "ws", msg.Content, msg.SessionID, func(chunk string) {
		send(Message{Type: "stream", Content: chunk, SessionID: msg.SessionID})
	})
	if err != nil {
		send(Message{Type: "error", Content: err.Error(), SessionID: msg.SessionID})
		return
	}
	send(Message{
		Type:      "response",
		Content:   resp.Answer,
		SessionID: resp.SessionID,
		Data:      resp.Sources,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
