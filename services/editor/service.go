package editor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

// DocumentRepo abstracts document persistence for testability.
type DocumentRepo interface {
	Create(ctx context.Context, name, content string) (*Document, error)
	Get(ctx context.Context, id string) (*Document, error)
	Save(ctx context.Context, id, content string, expected int64) (int64, error)
}

// Options configures the write coordinators of open documents.
type Options struct {
	Debounce time.Duration
	Retry    vrm.RetryPolicy
	Logger   zerolog.Logger
}

// Service wires the document store to one editing session per open document.
type Service struct {
	repo DocumentRepo
	opts Options
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewService creates a Service with a real PostgreSQL repository.
func NewService(pool *pgxpool.Pool, opts Options) *Service {
	return newService(NewRepository(pool), opts)
}

func newService(repo DocumentRepo, opts Options) *Service {
	return &Service{
		repo:     repo,
		opts:     opts,
		log:      opts.Logger.With().Str("component", "editor").Logger(),
		sessions: make(map[string]*Session),
	}
}

// Close flushes and closes every open session concurrently. Every failure
// is reported, not only the first.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, sess := range sessions {
		g.Go(func() error {
			if err := sess.coord.Close(ctx); err != nil {
				s.log.Error().Err(err).Str("document", sess.ID).Msg("Failed to flush document on close")
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errors.Join(errs...)
}

// jsonMiddleware sets the Content-Type header to application/json.
func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// LoadRoutes registers document HTTP handlers on the given router.
func (s *Service) LoadRoutes(parentRouter *mux.Router) {
	router := parentRouter.PathPrefix("/documents").Subrouter()
	router.StrictSlash(false)
	router.Use(jsonMiddleware)

	router.HandleFunc("", s.HandleCreateDocument).Methods("POST")
	router.HandleFunc("/{id}", s.HandleGetDocument).Methods("GET")
	router.HandleFunc("/{id}/export", s.HandleExportDocument).Methods("GET")
	router.HandleFunc("/{id}/diagnostics", s.HandleDiagnostics).Methods("GET")
	router.HandleFunc("/{id}/components", s.HandleAddComponent).Methods("POST")
	router.HandleFunc("/{id}/components", s.HandleUpdateComponents).Methods("PUT")
	router.HandleFunc("/{id}/components/{section}/{cid}", s.HandleRemoveComponent).Methods("DELETE")
	router.HandleFunc("/{id}/content/{name}", s.HandleUpdateContent).Methods("PUT")
	router.HandleFunc("/{id}/flush", s.HandleFlush).Methods("POST")
}
