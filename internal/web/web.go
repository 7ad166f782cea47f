package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"labsched/internal/config"
	appLog "labsched/internal/log"
	"labsched/internal/model"
	"labsched/internal/notify"
	"labsched/internal/schedule"
	"labsched/internal/store"
)

// Server exposes a small read-only HTTP API over the schedule: health,
// upcoming events, and a dry-run preview of the next generation batch.
type Server struct {
	cfg    *config.Config
	st     store.Store
	engine *schedule.Engine
	mux    *http.ServeMux

	// In-memory cache for /api/schedule responses so UI polling does not
	// hit the store on every request.
	scheduleMu    sync.RWMutex
	scheduleCache *scheduleCache
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st store.Store, engine *schedule.Engine) *Server {
	s := &Server{
		cfg:    cfg,
		st:     st,
		engine: engine,
		mux:    http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="labsched", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/preview", s.handlePreview)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventDTO is a JSON-friendly view of a schedule row.
type eventDTO struct {
	Date       string   `json:"date"`
	Track      string   `json:"track"`
	Presenters []string `json:"presenters,omitempty"`
	Holiday    string   `json:"holiday,omitempty"`
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Events    []eventDTO `json:"events"`
	AsOf      string     `json:"as_of"`
	Remaining int        `json:"remaining_future_events"`
}

// scheduleCache holds a cached /api/schedule response and its timestamp.
type scheduleCache struct {
	resp      scheduleResponse
	updatedAt time.Time
}

// handleSchedule returns upcoming events from the log.
//
// GET /api/schedule?count=6
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	count := parseIntDefault(r.URL.Query().Get("count"), s.cfg.Notify.MaxEvents)
	if count <= 0 {
		count = s.cfg.Notify.MaxEvents
	}

	const scheduleCacheTTL = 30 * time.Second
	now := time.Now()

	s.scheduleMu.RLock()
	sc := s.scheduleCache
	s.scheduleMu.RUnlock()
	if sc != nil && now.Sub(sc.updatedAt) < scheduleCacheTTL && len(sc.resp.Events) >= count {
		resp := sc.resp
		if len(resp.Events) > count {
			resp.Events = resp.Events[:count]
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	events, err := s.st.LoadEvents(r.Context())
	if err != nil {
		appLog.Error("api schedule: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load schedule")
		return
	}

	upcoming := notify.Upcoming(events, now, count)
	resp := scheduleResponse{
		Events:    toDTOs(upcoming),
		AsOf:      now.Format(model.DateLayout),
		Remaining: len(notify.Upcoming(events, now, len(events))),
	}

	s.scheduleMu.Lock()
	s.scheduleCache = &scheduleCache{resp: resp, updatedAt: time.Now()}
	s.scheduleMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

// handlePreview runs a dry generation and returns the batch that a real run
// would append, without writing anything.
//
// GET /api/preview?count=16
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	count := parseIntDefault(r.URL.Query().Get("count"), s.cfg.Meeting.EventCount)

	events, err := s.engine.Preview(r.Context(), count, nil)
	if err != nil {
		appLog.Error("api preview: generation failed", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": toDTOs(events),
	})
}

func toDTOs(events []model.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		out = append(out, eventDTO{
			Date:       ev.Date.Format(model.DateLayout),
			Track:      string(ev.Track),
			Presenters: ev.Presenters,
			Holiday:    ev.HolidayName,
		})
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
