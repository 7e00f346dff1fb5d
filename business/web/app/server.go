// Package app implements the JSON API server over the pricelist store.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	historyapp "github.com/autobot-tf/pricewatch/business/history/app"
	pricelistapp "github.com/autobot-tf/pricewatch/business/pricelist/app"
	"github.com/autobot-tf/pricewatch/business/pricelist/domain"
	"github.com/autobot-tf/pricewatch/internal/apperror"
	"github.com/autobot-tf/pricewatch/internal/logger"
	"github.com/autobot-tf/pricewatch/internal/ratelimit"
)

// Config holds the server settings.
type Config struct {
	Port              int
	RequestsPerMinute int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	ShutdownTimeout   time.Duration
}

// Server is the read-only presentation layer. Every bulk read checks the
// store's refreshing flag and answers 503 while consistency is not
// guaranteed.
type Server struct {
	cfg     Config
	log     logger.LoggerInterface
	store   *pricelistapp.Store
	pricer  pricelistapp.Pricer
	journal *historyapp.Journal // nil when history is disabled
	limiter *ratelimit.Limiter

	srv *http.Server
}

// NewServer wires the routes. journal may be nil.
func NewServer(cfg Config, store *pricelistapp.Store, pricer pricelistapp.Pricer, journal *historyapp.Journal, log logger.LoggerInterface) *Server {
	s := &Server{
		cfg:     cfg,
		log:     log,
		store:   store,
		pricer:  pricer,
		journal: journal,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /json/pricelist", s.handlePricelist)
	mux.HandleFunc("GET /json/pricelist-array", s.handlePricelistArray)
	mux.HandleFunc("GET /json/items/{sku...}", s.handleItem)
	mux.HandleFunc("POST /json/items/{sku...}", s.handleItemRefresh)
	mux.HandleFunc("GET /json/keyprice", s.handleKeyPrice)
	mux.HandleFunc("GET /json/history/{sku...}", s.handleHistory)
	mux.HandleFunc("GET /json/stats", s.handleStats)

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.requestID(s.logging(s.rateLimit(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start serves in a background goroutine.
func (s *Server) Start(ctx context.Context) {
	go func() {
		s.log.Info(ctx, "web server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error(ctx, "web server stopped", "error", err)
		}
	}()
}

// Stop drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}

// Handler exposes the configured handler chain. Used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// ---- middleware ----

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", r.Context().Value(requestIDKey),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, apperror.New(apperror.CodeRateLimitExceeded))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---- handlers ----

func (s *Server) handlePricelist(w http.ResponseWriter, r *http.Request) {
	if s.store.IsRefreshing() {
		writeError(w, apperror.New(apperror.CodePricelistRefreshing))
		return
	}

	entries := s.store.Entries()
	items := make(map[string]domain.Entry, len(entries))
	for _, e := range entries {
		items[e.SKU] = e
	}
	key, _ := s.store.KeyPrices()

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"keyPrices": key,
		"count":     len(items),
		"items":     items,
	})
}

func (s *Server) handlePricelistArray(w http.ResponseWriter, r *http.Request) {
	if s.store.IsRefreshing() {
		writeError(w, apperror.New(apperror.CodePricelistRefreshing))
		return
	}

	onlyExist := r.URL.Query().Get("onlyExist") == "true"
	items := s.store.GetPricesArray(onlyExist)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"count":   len(items),
		"items":   items,
	})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	sku := r.PathValue("sku")
	if !domain.ValidSKU(sku) {
		writeError(w, apperror.New(apperror.CodeInvalidSKU, apperror.WithContext(sku)))
		return
	}

	entry, ok := s.store.GetEntry(sku)
	if !ok {
		writeError(w, apperror.New(apperror.CodeItemNotFound, apperror.WithContext(sku)))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"item":    entry,
	})
}

// handleItemRefresh proxies an out-of-band re-price request upstream. Only
// the {sku}/refresh form is accepted.
func (s *Server) handleItemRefresh(w http.ResponseWriter, r *http.Request) {
	sku, ok := trimSuffixPath(r.PathValue("sku"), "/refresh")
	if !ok {
		writeError(w, apperror.New(apperror.CodeNotFound))
		return
	}
	if !domain.ValidSKU(sku) {
		writeError(w, apperror.New(apperror.CodeInvalidSKU, apperror.WithContext(sku)))
		return
	}

	enqueued, err := s.pricer.RequestCheck(r.Context(), sku)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"sku":      sku,
		"enqueued": enqueued,
	})
}

func (s *Server) handleKeyPrice(w http.ResponseWriter, r *http.Request) {
	key, ok := s.store.KeyPrices()
	if !ok {
		writeError(w, apperror.New(apperror.CodeServiceUnavailable,
			apperror.WithContext("key price not loaded")))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"buy":     key.Buy,
		"sell":    key.Sell,
		"time":    key.Time,
		"rate":    key.ConversionRate(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, apperror.New(apperror.CodeNotFound,
			apperror.WithMessage("Price history is not enabled")))
		return
	}

	sku := r.PathValue("sku")
	if !domain.ValidSKU(sku) {
		writeError(w, apperror.New(apperror.CodeInvalidSKU, apperror.WithContext(sku)))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	rows, err := s.journal.Recent(r.Context(), sku, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"sku":     sku,
		"count":   len(rows),
		"history": rows,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"entries":     s.store.Len(),
		"received":    s.store.ReceivedCount(),
		"today":       s.store.Stats(),
		"initialized": s.store.Initialized(),
		"refreshing":  s.store.IsRefreshing(),
	})
}

// ---- helpers ----

func trimSuffixPath(path, suffix string) (string, bool) {
	if len(path) <= len(suffix) || path[len(path)-len(suffix):] != suffix {
		return "", false
	}
	return path[:len(path)-len(suffix)], true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.StatusCode, map[string]any{
			"success": false,
			"code":    appErr.Code,
			"message": appErr.Message,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
