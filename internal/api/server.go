package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/robot-leaderboard/internal/commands"
	"github.com/JakeFAU/robot-leaderboard/internal/coordinator"
	"github.com/JakeFAU/robot-leaderboard/internal/metrics"
)

// LivenessText is the body served on GET /.
const LivenessText = "Bot is running!"

const (
	headerChannelID = "X-Channel-ID"
	headerUserID    = "X-User-ID"
)

// Commands is the command surface the API exposes.
type Commands interface {
	Add(ctx context.Context, caller commands.Caller, sourceURL string) commands.Reply
	Remove(ctx context.Context, caller commands.Caller, sourceURL string) commands.Reply
	Show(ctx context.Context, caller commands.Caller) commands.Reply
	Refresh(ctx context.Context, caller commands.Caller) commands.Reply
}

// Coordinator is the slice of the refresh coordinator the API reads and pokes.
type Coordinator interface {
	Status() coordinator.Status
	Trigger(ctx context.Context, trigger coordinator.Trigger) bool
}

// Config controls the HTTP surface.
type Config struct {
	// APIKey guards /v1 when non-empty.
	APIKey         string
	RequestTimeout time.Duration
	// Ready reports whether backing services are usable; nil means always.
	Ready func() bool
}

// Server wires HTTP handlers to the command service and coordinator.
type Server struct {
	router      chi.Router
	commands    Commands
	coordinator Coordinator
	cfg         Config
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cmds Commands, coord Coordinator, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	s := &Server{
		commands:    cmds,
		coordinator: coord,
		cfg:         cfg,
		logger:      logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))

	r.Get("/", s.liveness)
	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(apiKeyMiddleware(cfg.APIKey))
		}
		r.Post("/bots", s.addBot)
		r.Delete("/bots", s.removeBot)
		r.Get("/leaderboard", s.showLeaderboard)
		r.Post("/refresh", s.refreshAll)
		r.Post("/publish", s.publish)
		r.Get("/status", s.status)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(LivenessText)); err != nil {
		s.logger.Warn("liveness write failed", zap.Error(err))
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.cfg.Ready != nil && !s.cfg.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	payload := map[string]any{"status": "ready"}
	if s.coordinator != nil {
		payload["coordinator"] = s.coordinator.Status()
	}
	writeJSON(w, http.StatusOK, payload)
}

type addBotRequest struct {
	URL string `json:"url"`
}

func (s *Server) addBot(w http.ResponseWriter, r *http.Request) {
	var req addBotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	sourceURL, ok := validURL(req.URL)
	if !ok {
		writeError(w, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	reply := s.commands.Add(r.Context(), s.callerFrom(r), sourceURL)
	status := statusFor(reply.Outcome)
	if reply.Outcome == commands.OK && reply.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, replyBody(reply))
}

func (s *Server) removeBot(w http.ResponseWriter, r *http.Request) {
	sourceURL, ok := validURL(r.URL.Query().Get("url"))
	if !ok {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	reply := s.commands.Remove(r.Context(), s.callerFrom(r), sourceURL)
	writeJSON(w, statusFor(reply.Outcome), replyBody(reply))
}

func (s *Server) showLeaderboard(w http.ResponseWriter, r *http.Request) {
	reply := s.commands.Show(r.Context(), s.callerFrom(r))
	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(statusFor(reply.Outcome))
		if _, err := w.Write([]byte(reply.Text)); err != nil {
			s.logger.Warn("leaderboard write failed", zap.Error(err))
		}
		return
	}
	writeJSON(w, statusFor(reply.Outcome), replyBody(reply))
}

func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	reply := s.commands.Refresh(r.Context(), s.callerFrom(r))
	writeJSON(w, statusFor(reply.Outcome), replyBody(reply))
}

func (s *Server) publish(w http.ResponseWriter, r *http.Request) {
	if s.coordinator == nil {
		writeError(w, http.StatusServiceUnavailable, "coordinator not configured")
		return
	}
	accepted := s.coordinator.Trigger(r.Context(), coordinator.TriggerManual)
	writeJSON(w, http.StatusAccepted, map[string]bool{"accepted": accepted})
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	if s.coordinator == nil {
		writeError(w, http.StatusServiceUnavailable, "coordinator not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.coordinator.Status())
}

// callerFrom reads the caller identity headers. They are only trusted when
// /v1 sits behind an API key; otherwise any client could claim an admin id,
// so the caller is anonymous and non-empty allow-lists deny it.
func (s *Server) callerFrom(r *http.Request) commands.Caller {
	if s.cfg.APIKey == "" {
		return commands.Caller{}
	}
	return commands.Caller{
		ChannelID: r.Header.Get(headerChannelID),
		UserID:    r.Header.Get(headerUserID),
	}
}

func validURL(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return "", false
	}
	return raw, true
}

func statusFor(outcome commands.Outcome) int {
	switch outcome {
	case commands.OK:
		return http.StatusOK
	case commands.NotFound:
		return http.StatusNotFound
	case commands.Denied:
		return http.StatusForbidden
	case commands.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func replyBody(reply commands.Reply) map[string]any {
	body := map[string]any{"message": reply.Text}
	if reply.Entry != nil {
		body["entry"] = reply.Entry
		body["created"] = reply.Created
	}
	if reply.Groups != nil {
		body["groups"] = reply.Groups
	}
	if reply.Summary != nil {
		body["summary"] = reply.Summary
	}
	return body
}
