// Package httpapi implements the request handlers and HTTP server of
// spec.md §4.6, composing the admission layer, the repository store, the
// idempotency cache and the renderer. Grounded on the teacher's
// src/web/web.go and src/web/routes.go: same mux.Router + gorilla/handlers
// access-log wiring, same Server/New/ListenAndServe/Shutdown shape, with
// the go-pkgz/auth OAuth middleware removed (this spec has no user
// identity) and the route table replaced by the paste API.
package httpapi

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/zhengpenghou/lanpaste/internal/admission"
	"github.com/zhengpenghou/lanpaste/internal/idempotency"
	"github.com/zhengpenghou/lanpaste/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// ServerOptions configures the HTTP server, mirroring the subset of the
// teacher's web.ServerOptions that still applies once the multi-page
// brand/theme/auth options are dropped.
type ServerOptions struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	LogMode      string // "debug" or "production"
	MaxBytes     int64
}

// Server encapsulates the router and the collaborators every handler
// needs.
type Server struct {
	router    *mux.Router
	server    *http.Server
	options   ServerOptions
	templates *template.Template
	log       *lgr.Logger
	store     *store.Store
	gate      *admission.Gate
	idem      *idempotency.Cache
}

var dbgLogFormatter handlers.LogFormatter = func(writer io.Writer, params handlers.LogFormatterParams) {
	const (
		green  = "\033[97;42m"
		white  = "\033[90;47m"
		yellow = "\033[90;43m"
		red    = "\033[97;41m"
		blue   = "\033[97;44m"
		cyan   = "\033[97;46m"
		reset  = "\033[0m"
	)

	code := params.StatusCode
	cclr := green
	switch {
	case code >= http.StatusMultipleChoices && code < http.StatusBadRequest:
		cclr = white
	case code >= http.StatusBadRequest && code < http.StatusInternalServerError:
		cclr = yellow
	case code >= http.StatusInternalServerError:
		cclr = red
	}

	method := params.Request.Method
	mclr := reset
	switch method {
	case http.MethodGet:
		mclr = blue
	case http.MethodPost:
		mclr = cyan
	case http.MethodDelete:
		mclr = red
	}

	host, _, err := net.SplitHostPort(params.Request.RemoteAddr)
	if err != nil {
		host = params.Request.RemoteAddr
	}

	fmt.Fprintf(writer, "|%s %3d %s| %15s |%s %-7s %s| %8d | %s \n",
		cclr, code, reset,
		host,
		mclr, method, reset,
		params.Size,
		params.URL.RequestURI(),
	)
}

// New builds a Server with its routes and middleware wired, ready for
// ListenAndServe.
func New(l *lgr.Logger, st *store.Store, gate *admission.Gate, idem *idempotency.Cache, opts ServerOptions) (*Server, error) {
	tpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("load templates: %w", err)
	}

	s := &Server{
		options:   opts,
		templates: tpl,
		log:       l,
		store:     st,
		gate:      gate,
		idem:      idem,
	}

	s.router = mux.NewRouter()
	s.router.HandleFunc("/", s.handleDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/api", s.handleAPIIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/paste", s.handleCreate).Methods(http.MethodPost)
	s.router.HandleFunc("/api/v1/p/{id}", s.handleGetMeta).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/p/{id}/raw", s.handleGetRaw).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/recent", s.handleRecent).Methods(http.MethodGet)
	s.router.HandleFunc("/p/{id}", s.handleRenderView).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)

	return s, nil
}

// ListenAndServe starts the HTTP server, wrapping the router with an
// access-log handler exactly like the teacher's web.Server.ListenAndServe.
func (s *Server) ListenAndServe() error {
	w := lgr.ToWriter(s.log, "")

	var hdlr http.Handler
	if s.options.LogMode == "debug" {
		hdlr = handlers.CustomLoggingHandler(w, s.router, dbgLogFormatter)
	} else {
		hdlr = handlers.CombinedLoggingHandler(w, s.router)
	}

	s.server = &http.Server{
		Addr:         s.options.Addr,
		Handler:      hdlr,
		ReadTimeout:  s.options.ReadTimeout,
		WriteTimeout: s.options.WriteTimeout,
		IdleTimeout:  s.options.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts the server down within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
