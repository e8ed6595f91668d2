package models

// Diff is an old/new content pair for a single path
type Diff struct {
	Path       string `json:"path" yaml:"path"`
	OldContent string `json:"old_content" yaml:"old_content"`
	NewContent string `json:"new_content" yaml:"new_content"`
	Language   string `json:"language" yaml:"language"`
	Binary     bool   `json:"binary" yaml:"binary"`
}

// DiffResult is one entry of a batch diff request. Error is set instead of
// Diff when that path could not be diffed.
type DiffResult struct {
	Path  string `json:"path" yaml:"path"`
	Diff  *Diff  `json:"diff,omitempty" yaml:"diff,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}
