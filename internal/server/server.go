package server

import (
	"log/slog"
	"net/http"

	"github.com/claude/healthexport/internal/dataset"
	"github.com/claude/healthexport/internal/ingest/export"
	"github.com/claude/healthexport/internal/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultMaxUploadSize caps upload bodies when Options leaves it unset.
const DefaultMaxUploadSize = 1 << 30

// Options tunes the upload endpoint.
type Options struct {
	MaxUploadSize int64
	// TempDir holds uploads while they are parsed; empty means os.TempDir.
	TempDir string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    storage.Store
	provider *export.Provider
	reader   *dataset.Reader
	log      *slog.Logger
	opts     Options
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(store storage.Store, provider *export.Provider, reader *dataset.Reader, opts Options, log *slog.Logger) *Server {
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	s := &Server{
		store:    store,
		provider: provider,
		reader:   reader,
		log:      log,
		opts:     opts,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Mount attaches h under pattern, e.g. the MCP endpoint.
func (s *Server) Mount(pattern string, h http.Handler) {
	s.router.Mount(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/health", func(r chi.Router) {
		r.Get("/", s.handleListRecords)
		r.Post("/", s.handleCreateRecord)
		r.Get("/latest", s.handleLatestRecord)
		r.Post("/upload", s.handleUpload)
		r.Get("/dataset", s.handleDataset)
		r.Get("/summary", s.handleSummary)
		r.Get("/daily", s.handleDaily)
		r.Get("/stats", s.handleStats)
	})

	s.router.Handle("/metrics", promhttp.Handler())
}
