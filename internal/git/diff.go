package git

import (
	"context"

	"github.com/pders01/repowatch/internal/models"
)

// WorkingDiff compares the committed content of path with the working copy.
// A side where path is absent is treated as empty content.
func WorkingDiff(ctx context.Context, root, path string) (*models.Diff, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return nil, err
	}

	head, _ := repo.ReadFromHead(ctx, path)
	work, _ := repo.ReadFromWorkdir(path)
	return buildDiff(path, head, work), nil
}

// StagedDiff compares the committed content of path with the index
func StagedDiff(ctx context.Context, root, path string) (*models.Diff, error) {
	repo, err := Open(ctx, root)
	if err != nil {
		return nil, err
	}

	head, _ := repo.ReadFromHead(ctx, path)
	index, _ := repo.ReadFromIndex(ctx, path)
	return buildDiff(path, head, index), nil
}

func buildDiff(path string, before, after Content) *models.Diff {
	return &models.Diff{
		Path:       path,
		OldContent: before.Text,
		NewContent: after.Text,
		Language:   LanguageFromPath(path),
		Binary:     before.Binary || after.Binary,
	}
}
