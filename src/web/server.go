// Package web is the thin HTTP front end: a chat page, a JSON chat
// endpoint, and static serving of recorded cart clips. All conversation
// logic lives in the dialog package.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hembot/hembot/src/dialog"
	"github.com/hembot/hembot/src/storage"
)

//go:embed static/index.html
var indexPage []byte

// turnTimeout bounds one full chat turn including external calls.
const turnTimeout = 2 * time.Minute

// Server handles HTTP chat traffic. Turns within one session are
// serialized; independent sessions run concurrently.
type Server struct {
	orch     *dialog.Orchestrator
	store    *storage.DB
	clipsDir string
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewServer creates the HTTP front end.
func NewServer(orch *dialog.Orchestrator, store *storage.DB, clipsDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		orch:     orch,
		store:    store,
		clipsDir: clipsDir,
		logger:   logger.With("component", "web"),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.Handle("GET /videos/", http.StripPrefix("/videos/", http.FileServer(http.Dir(s.clipsDir))))
	return mux
}

// ListenAndServe runs the server until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"session_id"`
	Reply     string `json:"reply"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), turnTimeout)
	defer cancel()

	session, err := s.loadOrCreateSession(ctx, req.SessionID)
	if err != nil {
		s.logger.Error("session load failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return
	}

	// One turn at a time per session: the dialogue state transition and
	// the browser cart behind it must not interleave.
	lock := s.sessionLock(session.ID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock in case a concurrent turn just committed.
	if fresh, err := storage.GetSessionByID(ctx, s.store.DB(), session.ID); err == nil && fresh != nil {
		session = fresh
	}

	reply, newState := s.orch.ProcessTurn(ctx, req.Message, session.State.State)

	if err := storage.UpdateSessionState(ctx, s.store.DB(), session.ID, newState); err != nil {
		s.logger.Error("failed to persist session state", "session", session.ID, "error", err)
	}
	for _, m := range []storage.Message{
		{SessionID: session.ID, Role: dialog.RoleUser, Content: req.Message},
		{SessionID: session.ID, Role: dialog.RoleAssistant, Content: reply},
	} {
		msg := m
		if err := storage.CreateMessage(ctx, s.store.DB(), &msg); err != nil {
			s.logger.Warn("failed to store message", "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(chatResponse{SessionID: session.ID, Reply: reply})
}

func (s *Server) loadOrCreateSession(ctx context.Context, id string) (*storage.Session, error) {
	if id != "" {
		session, err := storage.GetSessionByID(ctx, s.store.DB(), id)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
	}
	session := &storage.Session{
		ID:    id,
		State: storage.JSONState{State: dialog.NewState()},
	}
	if err := storage.CreateSession(ctx, s.store.DB(), session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Server) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
