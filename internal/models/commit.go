package models

// CommitRecord is one entry of the history listing
type CommitRecord struct {
	Hash         string   `json:"hash" yaml:"hash"`
	ShortHash    string   `json:"short_hash" yaml:"short_hash"`
	Message      string   `json:"message" yaml:"message"`
	AuthorName   string   `json:"author_name" yaml:"author_name"`
	AuthorEmail  string   `json:"author_email" yaml:"author_email"`
	Timestamp    int64    `json:"timestamp" yaml:"timestamp"`
	ParentHashes []string `json:"parent_hashes" yaml:"parent_hashes"`
}

// ShortHash returns the first 7 characters of hash, or all of it if shorter
func ShortHash(hash string) string {
	if len(hash) < 7 {
		return hash
	}
	return hash[:7]
}
