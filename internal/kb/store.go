// Package kb loads the support knowledge base from its JSON source of truth.
package kb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/kailas-cloud/deskpilot/internal/domain"
)

// Store holds the knowledge-base documents loaded at startup or on an
// explicit reindex trigger. Content is read-mostly: the slice is replaced
// wholesale on Refresh, never edited in place.
type Store struct {
	path string
	docs []domain.Document
}

// NewStore creates a store bound to a JSON document file. The file holds an
// array of documents; entries without an id are assigned one at load time.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Refresh re-reads the document file. An unreadable file is a hard error:
// unlike the AI providers, the document store being unreachable means the
// service cannot do its job at all.
func (s *Store) Refresh() error {
	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		return fmt.Errorf("read knowledge base %s: %w", s.path, err)
	}

	var docs []domain.Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return fmt.Errorf("parse knowledge base: %w", err)
	}

	for i := range docs {
		if docs[i].ID == "" {
			docs[i].ID = uuid.NewString()
		}
		if docs[i].Content == "" {
			return fmt.Errorf("document %q has no content", docs[i].ID)
		}
	}

	s.docs = docs
	return nil
}

// List returns the loaded documents.
func (s *Store) List() []domain.Document {
	return s.docs
}
