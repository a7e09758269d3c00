package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrDocumentNotFound is returned when a document id has no stored row.
var ErrDocumentNotFound = errors.New("document not found")

// docHost implements vrm.Host on top of the document store. Every Text call
// records the version it read; Commit only succeeds against that version.
type docHost struct {
	repo DocumentRepo
	id   string

	mu      sync.Mutex
	version int64
}

func newDocHost(repo DocumentRepo, doc *Document) *docHost {
	return &docHost{repo: repo, id: doc.ID, version: doc.Version}
}

func (h *docHost) Text(ctx context.Context) (string, error) {
	doc, err := h.repo.Get(ctx, h.id)
	if err != nil {
		return "", err
	}
	if doc == nil {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, h.id)
	}
	h.mu.Lock()
	h.version = doc.Version
	h.mu.Unlock()
	return doc.Content, nil
}

func (h *docHost) Commit(ctx context.Context, text string) error {
	h.mu.Lock()
	expected := h.version
	h.mu.Unlock()

	version, err := h.repo.Save(ctx, h.id, text, expected)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.version = version
	h.mu.Unlock()
	return nil
}

// Version returns the last stored version this host has seen.
func (h *docHost) Version() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.version
}
