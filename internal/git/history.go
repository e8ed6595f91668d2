package git

import (
	"context"
	"strings"

	"github.com/pders01/repowatch/internal/models"
	"github.com/spf13/cast"
)

// logFormat separates fields with the unit separator; the raw body goes
// last so it may contain anything but NUL.
const logFormat = "%H%x1f%P%x1f%an%x1f%ae%x1f%ct%x1f%B"

// ReadHistory lists commits reachable from HEAD oldest first, skipping
// offset commits and returning at most limit. An unresolvable HEAD (for
// example an empty repository) yields an empty list.
func ReadHistory(ctx context.Context, root string, offset, limit uint32) ([]models.CommitRecord, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return nil, err
	}

	commits := []models.CommitRecord{}
	if limit == 0 || repo.headCommit(ctx) == "" {
		return commits, nil
	}

	countOut, err := repo.git("rev-list", "--count", "HEAD").output(ctx)
	if err != nil {
		return nil, underlying("history", err)
	}
	total, err := cast.ToUint64E(countOut)
	if err != nil {
		return nil, underlying("history", err)
	}
	if uint64(offset) >= total {
		return commits, nil
	}

	// git log applies --skip and --max-count before --reverse, so the
	// oldest-first window [offset, offset+limit) is translated into a
	// newest-first one.
	remaining := total - uint64(offset)
	take := min(uint64(limit), remaining)
	skip := remaining - take

	out, err := repo.git("log", "-z", "--reverse",
		"--format="+logFormat,
		"--skip="+cast.ToString(skip),
		"--max-count="+cast.ToString(take),
		"HEAD",
	).run(ctx)
	if err != nil {
		return nil, underlying("history", err)
	}

	for _, rec := range strings.Split(string(out), "\x00") {
		if rec == "" {
			continue
		}
		if c, ok := parseCommit(rec); ok {
			commits = append(commits, c)
		}
	}
	return commits, nil
}

// parseCommit parses one logFormat record; unparseable records are skipped
func parseCommit(rec string) (models.CommitRecord, bool) {
	fields := strings.SplitN(strings.TrimLeft(rec, "\n"), "\x1f", 6)
	if len(fields) != 6 || fields[0] == "" {
		return models.CommitRecord{}, false
	}

	ts, err := cast.ToInt64E(fields[4])
	if err != nil {
		return models.CommitRecord{}, false
	}

	message := summary(fields[5])
	if message == "" {
		message = "No message"
	}
	author := fields[2]
	if author == "" {
		author = "Unknown"
	}

	return models.CommitRecord{
		Hash:         fields[0],
		ShortHash:    models.ShortHash(fields[0]),
		Message:      message,
		AuthorName:   author,
		AuthorEmail:  fields[3],
		Timestamp:    ts,
		ParentHashes: strings.Fields(fields[1]),
	}, true
}
