package domain

import "fmt"

// Document is one unit of searchable content: an identifier, the raw text,
// its embedding vector, and free-form metadata. The orchestrator passes
// documents through to backends without inspecting them.
type Document struct {
	ID       string
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// Validate checks the fields every backend relies on. A wantDim of zero
// skips the dimension check (first document fixes the dimension).
func (d *Document) Validate(wantDim int) error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrDocumentInvalid)
	}
	if len(d.Vector) == 0 {
		return fmt.Errorf("%w: document %q has no vector", ErrDocumentInvalid, d.ID)
	}
	if wantDim > 0 && len(d.Vector) != wantDim {
		return fmt.Errorf("%w: document %q has dim %d, want %d",
			ErrVectorDimMismatch, d.ID, len(d.Vector), wantDim)
	}
	return nil
}
