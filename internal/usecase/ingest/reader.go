package ingest

import (
	"encoding/json"
	"fmt"
	"os"
)

// promptFile is the on-disk seed format: one JSON object holding prompts.
type promptFile struct {
	Prompts []PromptRecord `json:"prompts"`
}

// PromptRecord is one prompt as it appears in a seed file. ID and Vector are
// optional: a missing ID is generated at load time, a missing vector is
// embedded from the content.
type PromptRecord struct {
	ID      string    `json:"id,omitempty"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Tags    []string  `json:"tags,omitempty"`
	Vector  []float32 `json:"vector,omitempty"`
}

// ReadFile parses a prompt seed file.
func ReadFile(path string) ([]PromptRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f promptFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	return f.Prompts, nil
}
