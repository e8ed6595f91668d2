package models

import (
	"encoding/json"
	"fmt"
)

// ChangeKind is the tag of a FileChangeStatus
type ChangeKind string

const (
	KindModified   ChangeKind = "Modified"
	KindAdded      ChangeKind = "Added"
	KindDeleted    ChangeKind = "Deleted"
	KindRenamed    ChangeKind = "Renamed"
	KindCopied     ChangeKind = "Copied"
	KindConflicted ChangeKind = "Conflicted"
	KindUntracked  ChangeKind = "Untracked"
)

// FileChangeStatus is a tagged variant. OldPath is only meaningful for
// KindRenamed and Source only for KindCopied.
type FileChangeStatus struct {
	Kind    ChangeKind
	OldPath string
	Source  string
}

var (
	Modified   = FileChangeStatus{Kind: KindModified}
	Added      = FileChangeStatus{Kind: KindAdded}
	Deleted    = FileChangeStatus{Kind: KindDeleted}
	Conflicted = FileChangeStatus{Kind: KindConflicted}
	Untracked  = FileChangeStatus{Kind: KindUntracked}
)

// Renamed returns a Renamed status pointing back at oldPath
func Renamed(oldPath string) FileChangeStatus {
	return FileChangeStatus{Kind: KindRenamed, OldPath: oldPath}
}

// Copied returns a Copied status with the given source path
func Copied(source string) FileChangeStatus {
	return FileChangeStatus{Kind: KindCopied, Source: source}
}

func (s FileChangeStatus) String() string {
	switch s.Kind {
	case KindRenamed:
		return fmt.Sprintf("renamed from %s", s.OldPath)
	case KindCopied:
		return fmt.Sprintf("copied from %s", s.Source)
	default:
		return string(s.Kind)
	}
}

// MarshalJSON encodes plain tags as strings and Renamed/Copied as
// single-key objects, e.g. {"Renamed":{"old_path":"a.txt"}}.
func (s FileChangeStatus) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case KindRenamed:
		return json.Marshal(map[string]map[string]string{
			string(KindRenamed): {"old_path": s.OldPath},
		})
	case KindCopied:
		return json.Marshal(map[string]map[string]string{
			string(KindCopied): {"source": s.Source},
		})
	case "":
		return nil, fmt.Errorf("file change status has no kind")
	default:
		return json.Marshal(string(s.Kind))
	}
}

// UnmarshalJSON accepts both wire forms produced by MarshalJSON
func (s *FileChangeStatus) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		switch ChangeKind(tag) {
		case KindModified, KindAdded, KindDeleted, KindConflicted, KindUntracked:
			*s = FileChangeStatus{Kind: ChangeKind(tag)}
			return nil
		}
		return fmt.Errorf("unknown file change status: %q", tag)
	}

	var obj map[string]map[string]string
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid file change status: %w", err)
	}
	if v, ok := obj[string(KindRenamed)]; ok {
		*s = Renamed(v["old_path"])
		return nil
	}
	if v, ok := obj[string(KindCopied)]; ok {
		*s = Copied(v["source"])
		return nil
	}
	return fmt.Errorf("unknown file change status object")
}

// MarshalYAML keeps yaml output readable
func (s FileChangeStatus) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// FileChange is a single (path, status, staged) entry of a status snapshot
type FileChange struct {
	Path   string           `json:"path" yaml:"path"`
	Status FileChangeStatus `json:"status" yaml:"status"`
	Staged bool             `json:"staged" yaml:"staged"`
}

// RepositoryStatus is an immutable snapshot of the working tree. It is
// replaced as a whole on every recomputation.
type RepositoryStatus struct {
	RepositoryPath string       `json:"repository_path" yaml:"repository_path"`
	CurrentBranch  *string      `json:"current_branch" yaml:"current_branch"`
	IsDetached     bool         `json:"is_detached" yaml:"is_detached"`
	Ahead          uint32       `json:"ahead" yaml:"ahead"`
	Behind         uint32       `json:"behind" yaml:"behind"`
	StagedChanges  []FileChange `json:"staged_changes" yaml:"staged_changes"`
	Changes        []FileChange `json:"changes" yaml:"changes"`
	Untracked      []string     `json:"untracked" yaml:"untracked"`
}

// Branch returns the current branch name or "" when detached
func (s *RepositoryStatus) Branch() string {
	if s.CurrentBranch == nil {
		return ""
	}
	return *s.CurrentBranch
}

// IsClean reports whether the snapshot carries no changes at all
func (s *RepositoryStatus) IsClean() bool {
	return len(s.StagedChanges) == 0 && len(s.Changes) == 0 && len(s.Untracked) == 0
}

// PathStatus pairs a requested path with its best-fit status
type PathStatus struct {
	Path   string           `json:"path" yaml:"path"`
	Status FileChangeStatus `json:"status" yaml:"status"`
}
