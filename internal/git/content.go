package git

import (
	"bytes"
	"context"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"golang.org/x/text/encoding/unicode"
)

// Content is decoded file content from one of the three sources
type Content struct {
	Text   string
	Binary bool
}

// ReadFromHead returns the committed content of p. ok is false when HEAD
// does not exist or does not contain p.
func (r *Repository) ReadFromHead(ctx context.Context, p string) (c Content, ok bool) {
	data, err := r.git("cat-file", "blob", "HEAD:"+cleanPath(p)).run(ctx)
	if err != nil {
		return Content{}, false
	}
	return decodeBytes(data), true
}

// ReadFromIndex returns the stage 0 index content of p
func (r *Repository) ReadFromIndex(ctx context.Context, p string) (c Content, ok bool) {
	data, err := r.git("cat-file", "blob", ":0:"+cleanPath(p)).run(ctx)
	if err != nil {
		return Content{}, false
	}
	return decodeBytes(data), true
}

// ReadFromWorkdir returns the on-disk content of p
func (r *Repository) ReadFromWorkdir(p string) (c Content, ok bool) {
	data, err := afero.ReadFile(r.fs, cleanPath(p))
	if err != nil {
		return Content{}, false
	}
	return decodeBytes(data), true
}

// decodeBytes decodes data as strict UTF-8. Invalid input is decoded lossily
// and always flagged binary; valid input is binary only if it holds a NUL.
func decodeBytes(data []byte) Content {
	if len(data) == 0 {
		return Content{}
	}

	hasNUL := bytes.IndexByte(data, 0) >= 0
	if utf8.Valid(data) {
		return Content{Text: string(data), Binary: hasNUL}
	}

	lossy, err := unicode.UTF8.NewDecoder().Bytes(data)
	if err != nil {
		return Content{Text: strings.ToValidUTF8(string(data), "�"), Binary: true}
	}
	return Content{Text: string(lossy), Binary: true}
}

var languages = map[string]string{
	"rs":   "rust",
	"ts":   "typescript",
	"tsx":  "typescript",
	"js":   "javascript",
	"jsx":  "javascript",
	"json": "json",
	"toml": "toml",
	"md":   "markdown",
	"yml":  "yaml",
	"yaml": "yaml",
	"css":  "css",
	"html": "html",
}

// LanguageFromPath maps the extension of p to a lowercase language tag.
// Unknown extensions pass through lowercased, no extension is "plaintext".
func LanguageFromPath(p string) string {
	base := path.Base(cleanPath(p))
	idx := strings.LastIndexByte(base, '.')
	// dotfiles such as ".gitignore" have no extension
	if idx <= 0 || idx == len(base)-1 {
		return "plaintext"
	}

	ext := strings.ToLower(base[idx+1:])
	if lang, ok := languages[ext]; ok {
		return lang
	}
	return ext
}
