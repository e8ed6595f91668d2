package git

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pders01/repowatch/internal/models"
	"github.com/spf13/cast"
)

// statusArgs asks for one machine readable pass over HEAD, index and work
// tree. -z keeps paths unquoted.
var statusArgs = []string{
	"status", "--porcelain=v2", "--branch", "-z",
	"--untracked-files=all", "--find-renames",
}

// porcelainEntry is one changed path from `git status --porcelain=v2`
type porcelainEntry struct {
	kind     byte // '1' ordinary, '2' rename/copy, 'u' unmerged, '?' untracked
	x, y     byte // index and work tree columns
	path     string
	origPath string
}

type porcelainStatus struct {
	head    string
	oid     string
	ahead   uint32
	behind  uint32
	entries []porcelainEntry
}

// CollectStatus computes the full status snapshot for the repository at root
func CollectStatus(ctx context.Context, root string) (*models.RepositoryStatus, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return nil, err
	}
	return repo.collectStatus(ctx)
}

func (r *Repository) collectStatus(ctx context.Context) (*models.RepositoryStatus, error) {
	ps, err := r.porcelain(ctx)
	if err != nil {
		return nil, err
	}

	status := &models.RepositoryStatus{
		RepositoryPath: filepath.ToSlash(r.root),
		Ahead:          ps.ahead,
		Behind:         ps.behind,
		StagedChanges:  []models.FileChange{},
		Changes:        []models.FileChange{},
		Untracked:      []string{},
	}

	if ps.head == "(detached)" || ps.head == "" {
		status.IsDetached = true
	} else {
		branch := ps.head
		status.CurrentBranch = &branch
	}

	for _, e := range ps.entries {
		path := normalizePath(e.path)

		switch e.kind {
		case '?':
			status.Untracked = append(status.Untracked, path)
			continue
		case 'u':
			// conflicts win over every other work tree classification
			status.Changes = append(status.Changes, change(path, models.Conflicted, false))
			continue
		}

		if st, ok := stagedStatus(e); ok {
			status.StagedChanges = append(status.StagedChanges, change(path, st, true))
		}

		if e.y == 'A' {
			// intent-to-add entries are new in the work tree
			status.Untracked = append(status.Untracked, path)
		} else if st, ok := worktreeStatus(e); ok {
			status.Changes = append(status.Changes, change(path, st, false))
		}
	}

	slices.Sort(status.Untracked)
	status.Untracked = slices.Compact(status.Untracked)

	return status, nil
}

func stagedStatus(e porcelainEntry) (models.FileChangeStatus, bool) {
	switch e.x {
	case 'A':
		return models.Added, true
	case 'M', 'T':
		return models.Modified, true
	case 'D':
		return models.Deleted, true
	case 'R':
		return models.Renamed(normalizePath(e.origPath)), true
	case 'C':
		return models.Copied(normalizePath(e.origPath)), true
	}
	return models.FileChangeStatus{}, false
}

func worktreeStatus(e porcelainEntry) (models.FileChangeStatus, bool) {
	switch e.y {
	case 'M', 'T':
		return models.Modified, true
	case 'D':
		return models.Deleted, true
	case 'R':
		return models.Renamed(normalizePath(e.origPath)), true
	case 'C':
		return models.Copied(normalizePath(e.origPath)), true
	}
	return models.FileChangeStatus{}, false
}

func change(path string, status models.FileChangeStatus, staged bool) models.FileChange {
	return models.FileChange{Path: path, Status: status, Staged: staged}
}

// FileStatuses returns one best-fit status per requested path. Priority is
// untracked > deleted > renamed > conflicted > modified; a path without any
// detectable change is reported as Modified.
func FileStatuses(ctx context.Context, root string, paths []string) ([]models.PathStatus, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return nil, err
	}

	result := make([]models.PathStatus, 0, len(paths))
	if len(paths) == 0 {
		return result, nil
	}

	cleaned := make([]string, len(paths))
	for i, p := range paths {
		cleaned[i] = cleanPath(p)
	}

	ps, err := repo.porcelain(ctx, cleaned...)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]*statusFlags)
	for _, e := range ps.entries {
		path := normalizePath(e.path)
		f, ok := flags[path]
		if !ok {
			f = &statusFlags{}
			flags[path] = f
		}
		f.add(e)
	}

	for i, p := range paths {
		st := models.Modified
		if f, ok := flags[cleaned[i]]; ok {
			if mapped, ok := f.classify(); ok {
				st = mapped
			}
		}
		result = append(result, models.PathStatus{Path: p, Status: st})
	}
	return result, nil
}

// statusFlags is the per-path view of the index and work tree columns
type statusFlags struct {
	indexNew, worktreeNew         bool
	indexDeleted, worktreeDeleted bool
	renamed                       bool
	copied                        bool
	origPath                      string
	conflicted                    bool
	modified                      bool
}

func (f *statusFlags) add(e porcelainEntry) {
	switch e.kind {
	case '?':
		f.worktreeNew = true
		return
	case 'u':
		f.conflicted = true
		return
	}

	for i, c := range []byte{e.x, e.y} {
		switch c {
		case 'A':
			if i == 0 {
				f.indexNew = true
			} else {
				f.worktreeNew = true
			}
		case 'D':
			if i == 0 {
				f.indexDeleted = true
			} else {
				f.worktreeDeleted = true
			}
		case 'R':
			f.renamed = true
			f.origPath = normalizePath(e.origPath)
		case 'C':
			f.copied = true
			f.origPath = normalizePath(e.origPath)
		case 'M', 'T':
			f.modified = true
		}
	}
}

func (f *statusFlags) classify() (models.FileChangeStatus, bool) {
	switch {
	case f.indexNew || f.worktreeNew:
		return models.Untracked, true
	case f.indexDeleted || f.worktreeDeleted:
		return models.Deleted, true
	case f.renamed:
		return models.Renamed(f.origPath), true
	case f.copied:
		return models.Copied(f.origPath), true
	case f.conflicted:
		return models.Conflicted, true
	case f.modified:
		return models.Modified, true
	}
	return models.FileChangeStatus{}, false
}

// porcelain runs git status, optionally limited to pathspecs
func (r *Repository) porcelain(ctx context.Context, pathspecs ...string) (*porcelainStatus, error) {
	args := slices.Clone(statusArgs)
	if len(pathspecs) > 0 {
		args = append(args, "--")
		args = append(args, pathspecs...)
	}

	cmd := r.git(args...)
	cmd.readOnly = true
	out, err := cmd.run(ctx)
	if err != nil {
		return nil, underlying("status", err)
	}

	ps, err := parsePorcelain(out)
	if err != nil {
		return nil, underlying("status", err)
	}
	return ps, nil
}

// parsePorcelain parses NUL separated `git status --porcelain=v2 --branch` output
func parsePorcelain(out []byte) (*porcelainStatus, error) {
	ps := &porcelainStatus{}
	records := strings.Split(string(out), "\x00")

	for i := 0; i < len(records); i++ {
		rec := records[i]
		if rec == "" {
			continue
		}

		switch rec[0] {
		case '#':
			if err := ps.parseHeader(rec); err != nil {
				return nil, err
			}

		case '1':
			// 1 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <path>
			fields := strings.SplitN(rec, " ", 9)
			if len(fields) != 9 || len(fields[1]) != 2 {
				return nil, fmt.Errorf("malformed status entry: %q", rec)
			}
			ps.entries = append(ps.entries, porcelainEntry{
				kind: '1', x: fields[1][0], y: fields[1][1], path: fields[8],
			})

		case '2':
			// 2 <XY> <sub> <mH> <mI> <mW> <hH> <hI> <X><score> <path>\0<origPath>
			fields := strings.SplitN(rec, " ", 10)
			if len(fields) != 10 || len(fields[1]) != 2 || i+1 >= len(records) {
				return nil, fmt.Errorf("malformed rename entry: %q", rec)
			}
			i++
			ps.entries = append(ps.entries, porcelainEntry{
				kind: '2', x: fields[1][0], y: fields[1][1],
				path: fields[9], origPath: records[i],
			})

		case 'u':
			// u <XY> <sub> <m1> <m2> <m3> <mW> <h1> <h2> <h3> <path>
			fields := strings.SplitN(rec, " ", 11)
			if len(fields) != 11 || len(fields[1]) != 2 {
				return nil, fmt.Errorf("malformed unmerged entry: %q", rec)
			}
			ps.entries = append(ps.entries, porcelainEntry{
				kind: 'u', x: fields[1][0], y: fields[1][1], path: fields[10],
			})

		case '?':
			if len(rec) < 3 {
				return nil, fmt.Errorf("malformed untracked entry: %q", rec)
			}
			ps.entries = append(ps.entries, porcelainEntry{kind: '?', path: rec[2:]})

		case '!':
			// ignored
		}
	}

	return ps, nil
}

func (ps *porcelainStatus) parseHeader(rec string) error {
	key, value, _ := strings.Cut(strings.TrimPrefix(rec, "# "), " ")
	switch key {
	case "branch.oid":
		ps.oid = value
	case "branch.head":
		ps.head = value
	case "branch.ab":
		// branch.ab +<ahead> -<behind>, only present with an upstream
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return fmt.Errorf("malformed branch.ab header: %q", rec)
		}
		ahead, err := cast.ToUint32E(strings.TrimPrefix(fields[0], "+"))
		if err != nil {
			return fmt.Errorf("invalid ahead count: %w", err)
		}
		behind, err := cast.ToUint32E(strings.TrimPrefix(fields[1], "-"))
		if err != nil {
			return fmt.Errorf("invalid behind count: %w", err)
		}
		ps.ahead, ps.behind = ahead, behind
	}
	return nil
}

// normalizePath returns a root-relative path with forward slashes
func normalizePath(p string) string {
	return strings.ReplaceAll(filepath.ToSlash(p), "\\", "/")
}
