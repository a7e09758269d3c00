package editor

import (
	"context"
	"fmt"
	"sync"

	"github.com/Chris-Boho/stingray-vrm-sub000/services/vrm"
)

// Session is one open document: its model, write coordinator and host.
type Session struct {
	ID       string
	Name     string
	Warnings []vrm.Warning

	coord *vrm.Coordinator
	host  *docHost

	mu      sync.Mutex
	lastErr error
}

func (s *Session) setLastErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
}

// LastError returns the last commit failure reported in the background.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// session returns the open session for id, loading the document on first
// use. The store is read without holding the service lock; when two requests
// race to open the same document the first one registered wins.
func (s *Service) session(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if ok {
		return sess, nil
	}

	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	doc, warnings, err := vrm.ParseDocument(stored.Content)
	if err != nil {
		return nil, err
	}

	log := s.log.With().Str("session", id).Logger()
	for _, w := range warnings {
		log.Warn().Str("kind", string(w.Kind)).Str("section", string(w.Section)).
			Int("component", w.ComponentID).Int("offset", w.Offset).Msg(w.Message)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if open, ok := s.sessions[id]; ok {
		return open, nil
	}
	sess = &Session{ID: stored.ID, Name: stored.Name, Warnings: warnings, host: newDocHost(s.repo, stored)}
	sess.coord = vrm.NewCoordinator(vrm.NewModel(doc), sess.host, vrm.CoordinatorOptions{
		Debounce: s.opts.Debounce,
		Retry:    s.opts.Retry,
		Logger:   log,
		OnFatal:  sess.setLastErr,
	})
	s.sessions[id] = sess
	log.Info().Int("warnings", len(warnings)).Msg("Document opened")
	return sess, nil
}
