package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/julienschmidt/httprouter"

	"agendacal/internal/calendar"
	"agendacal/internal/config"
	"agendacal/internal/datenorm"
	appLog "agendacal/internal/log"
	"agendacal/internal/record"
	"agendacal/internal/recurrence"
	"agendacal/internal/slots"
	"agendacal/internal/snapshot"
)

const maxBodyBytes = 4 << 20

// Server exposes the scheduling engine over HTTP for one process-wide
// configuration. Tenants are addressed by the :company path segment.
type Server struct {
	cfg  *config.Config
	loc  *time.Location
	norm *datenorm.Normalizer

	store     *snapshot.Store
	views     *snapshot.Views
	interlock *snapshot.Interlock

	decoder   *record.Decoder
	validator *record.Validator
	expander  *recurrence.Expander
	checker   *slots.Checker
	calOpts   calendar.Options

	router *httprouter.Router
}

// NewServer wires the engine packages. store, views and interlock are
// shared with the sweeper; nil values get fresh instances.
func NewServer(cfg *config.Config, store *snapshot.Store, views *snapshot.Views, interlock *snapshot.Interlock) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	loc := cfg.Location()
	norm := datenorm.New(loc)
	calOpts := calendar.OptionsFromConfig(cfg)

	if store == nil {
		store = snapshot.NewStore()
	}
	if views == nil {
		views = snapshot.NewViews(store, calOpts)
	}
	if interlock == nil {
		interlock = snapshot.NewInterlock()
	}

	s := &Server{
		cfg:       cfg,
		loc:       loc,
		norm:      norm,
		store:     store,
		views:     views,
		interlock: interlock,
		decoder:   record.NewDecoder(norm),
		validator: record.NewValidator(),
		expander:  recurrence.NewExpander(recurrence.WithMaxOccurrences(cfg.Recurrence.MaxOccurrences)),
		checker:   slots.NewChecker(slots.GridFromConfig(cfg.Grid), loc),
		calOpts:   calOpts,
		router:    httprouter.New(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routed handler wrapped in panic recovery and, when
// configured, Basic Auth.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return recovery(h)
}

func (s *Server) registerRoutes() {
	r := s.router
	r.GET("/health", s.handleHealth)

	r.GET("/api/companies", s.handleCompanies)
	r.PUT("/api/companies/:company/snapshot", s.handleSnapshot)
	r.GET("/api/companies/:company/calendar", s.handleCalendar)
	r.GET("/api/companies/:company/calendar.ics", s.handleCalendarICS)
	r.GET("/api/companies/:company/slots", s.handleSlots)
	r.POST("/api/companies/:company/bookings/check", s.handleBookingCheck)
	r.DELETE("/api/companies/:company/bookings/hold", s.handleReleaseHold)
	r.POST("/api/companies/:company/series", s.handleSeriesExpand)
	r.POST("/api/companies/:company/series/:group/rewrite", s.handleSeriesRewrite)
	r.POST("/api/companies/:company/blocks/import", s.handleBlocksImport)

	r.NotFound = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty credentials disable auth.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="agendacal", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
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

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				appLog.Error("panic recovered", errors.New("panic"),
					"value", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves on cfg.Listen until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
		return srv.Close()
	}
	appLog.Info("HTTP server stopped")
	return nil
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

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}
