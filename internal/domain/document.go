package domain

// Document is a knowledge-base article. Content is owned by the kb store;
// embeddings are computed at index time and live in the index snapshot.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Keywords    []string `json:"keywords,omitempty"`
}

// DocumentMeta is the slice of a Document carried inside an index snapshot,
// parallel to the vector table. Content is kept so retrieval does not need a
// second store round-trip.
type DocumentMeta struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Content     string   `json:"content"`
}

// Meta projects a Document into its index metadata row.
func (d Document) Meta() DocumentMeta {
	return DocumentMeta{
		ID:          d.ID,
		Title:       d.Title,
		Category:    d.Category,
		Subcategory: d.Subcategory,
		Tags:        d.Tags,
		Content:     d.Content,
	}
}

// RetrievedPassage is a single retrieval hit. Ephemeral, produced per query,
// never persisted.
type RetrievedPassage struct {
	Document   DocumentMeta
	Similarity float64 // 1/(1+distance), in (0,1]
	Distance   float64 // raw L2 distance
}

// SourceRef identifies a document an answer was grounded on.
type SourceRef struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Similarity float64 `json:"similarity"`
}
