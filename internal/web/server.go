// Package web serves the cover search API and streams job progress over
// websockets.
package web

import (
	"context"
	"net/http"

	"coverfetch/internal/albumcover"
	"coverfetch/internal/logger"
)

// Finder runs cover searches. pipeline.Runner implements it.
type Finder interface {
	Search(ctx context.Context, artist, album string) ([]albumcover.SearchResult, albumcover.Statistics, error)
	Fetch(ctx context.Context, artist, album string, fetchAll bool) (*albumcover.Cover, albumcover.Statistics, error)
}

type Server struct {
	ctx          context.Context
	jobMgr       *JobManager
	finder       Finder
	maxCoverSize int
	logger       *logger.Logger
}

// NewServer creates a server. Jobs run under ctx and are cancelled with it.
func NewServer(ctx context.Context, jobMgr *JobManager, finder Finder, maxCoverSize int, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		ctx:          ctx,
		jobMgr:       jobMgr,
		finder:       finder,
		maxCoverSize: maxCoverSize,
		logger:       log,
	}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/jobs", s.handleListJobs)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /api/jobs/{id}/cover", s.handleJobCover)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
