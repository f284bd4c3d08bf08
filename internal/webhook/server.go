// Package webhook receives inbound chat updates over HTTP and hands them to
// the dispatcher.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mailwarden/internal/notify"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Dispatcher handles one decoded operator event.
type Dispatcher interface {
	Handle(ctx context.Context, chatKey, input string) error
}

// Config holds the HTTP listener settings.
type Config struct {
	Bind string
	Port string

	// SecretHash is the bcrypt hash the secret token header must match.
	// Empty disables the check (local testing only).
	SecretHash string
}

// Server exposes the update endpoint and a health probe.
type Server struct {
	cfg        Config
	dispatcher Dispatcher
	server     *http.Server
}

func NewServer(cfg Config, dispatcher Dispatcher) *Server {
	return &Server{cfg: cfg, dispatcher: dispatcher}
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Bind, s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Webhook server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Webhook server failed to start", "error", err)
		}
	}()

	<-ctx.Done()

	slog.Info("Shutting down webhook server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Handler builds the route table. Exposed separately so tests can drive it
// without a listener.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.handleUpdate)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.authorized(r) {
		slog.Warn("Webhook update rejected", "remote", r.RemoteAddr)
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var update notify.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	chatKey, input, ok := update.ChatKey()
	if !ok {
		// Updates we do not handle (edits, channel posts) are acknowledged
		// so the transport does not redeliver them.
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := s.dispatcher.Handle(r.Context(), chatKey, input); err != nil {
		slog.Error("Update handling failed", "chat", chatKey, "error", err)
	}

	// The operator was already acknowledged in-chat; a non-200 here would
	// only trigger a redelivery of the same event.
	w.WriteHeader(http.StatusOK)
}

func (s *Server) authorized(r *http.Request) bool {
	if s.cfg.SecretHash == "" {
		return true
	}
	token := r.Header.Get(secretHeader)
	if token == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(s.cfg.SecretHash), []byte(token)) == nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}
