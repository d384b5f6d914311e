package web

import (
	"crypto/tls"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"expense/transaction"
)

const (
	healthMessage = "Expense Tracker API is running"
	maxBodyBytes  = 1 << 20
)

// Config used to create the HTTP server
type Config struct {
	Service *transaction.Service
	// serves /api/transactions/stream when set
	Stream http.Handler
	// CORS origins; empty allows any origin
	AllowedOrigins []string
	TLSConfig      *tls.Config
	Logger         zerolog.Logger
}

// NewHTTPServer returns a server for addr with every route installed
func NewHTTPServer(addr string, config *Config) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(config),
		TLSConfig:         config.TLSConfig,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type server struct {
	*Config
}

// NewHandler wires the routes behind the logging and CORS middleware
func NewHandler(config *Config) http.Handler {
	s := &server{config}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/transactions").Subrouter()
	api.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	api.HandleFunc("", s.handleList).Methods(http.MethodGet)
	if s.Stream != nil {
		api.Handle("/stream", s.Stream).Methods(http.MethodGet)
	}
	api.HandleFunc("/{id}", s.handleGet).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleUpdate).Methods(http.MethodPut)
	api.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	cors := handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)

	var h http.Handler = cors(stripTrailingSlash(r))
	h = hlog.RequestIDHandler("req_id", "Request-Id")(h)
	h = hlog.RemoteAddrHandler("ip")(h)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Stringer("url", r.URL).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	})(h)
	h = hlog.NewHandler(s.Logger)(h)

	return h
}

// stripTrailingSlash routes "/api/transactions/" like "/api/transactions"
func stripTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = strings.TrimRight(p, "/")
			if r2.URL.Path == "" {
				r2.URL.Path = "/"
			}
			r2.URL.RawPath = ""
			r = r2
		}
		next.ServeHTTP(w, r)
	})
}
