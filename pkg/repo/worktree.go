package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
)

// DiffWorktree computes line diffs for changed files. With staged unset it
// compares each tracked file's on-disk content against its staged version
// (or HEAD when unstaged); with staged set it compares the staging area
// against HEAD. A non-empty paths filter restricts output to those
// repo-relative paths. Untracked files produce no diff.
func (r *Repo) DiffWorktree(paths []string, staged bool, contextLines int) ([]*diff.FileDiff, error) {
	entries, err := r.Status()
	if err != nil {
		return nil, fmt.Errorf("diff: %w", err)
	}

	filter := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel, err := r.repoRelPath(p)
		if err != nil {
			return nil, fmt.Errorf("diff: resolve path %q: %w", p, err)
		}
		filter[rel] = true
	}

	var diffs []*diff.FileDiff
	for _, e := range entries {
		if len(filter) > 0 && !filter[e.Path] {
			continue
		}

		var fd *diff.FileDiff
		if staged {
			fd, err = r.stagedDiff(e, contextLines)
		} else {
			fd, err = r.workDiff(e, contextLines)
		}
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", e.Path, err)
		}
		if fd != nil && len(fd.Hunks) > 0 {
			diffs = append(diffs, fd)
		}
	}
	return diffs, nil
}

// stagedDiff compares a file's staged content against HEAD.
func (r *Repo) stagedDiff(e StatusEntry, contextLines int) (*diff.FileDiff, error) {
	if e.IndexHash == "" || e.IndexHash == e.HeadHash {
		return nil, nil
	}

	newContent, err := r.BlobContent(e.IndexHash)
	if err != nil {
		return nil, err
	}

	if e.HeadHash == "" {
		return diff.File(e.Path, diff.KindAdded, nil, newContent, contextLines), nil
	}
	oldContent, err := r.BlobContent(e.HeadHash)
	if err != nil {
		return nil, err
	}
	return diff.File(e.Path, diff.KindModified, oldContent, newContent, contextLines), nil
}

// workDiff compares a tracked file's on-disk content against its staged
// version, falling back to HEAD when the file is not staged.
func (r *Repo) workDiff(e StatusEntry, contextLines int) (*diff.FileDiff, error) {
	base := e.IndexHash
	if base == "" {
		base = e.HeadHash
	}
	if base == "" {
		return nil, nil
	}

	oldContent, err := r.BlobContent(base)
	if err != nil {
		return nil, err
	}

	if e.State == StateDeleted {
		return diff.File(e.Path, diff.KindDeleted, oldContent, nil, contextLines), nil
	}

	newContent, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(e.Path)))
	if err != nil {
		return nil, err
	}
	if object.HashObject(object.TypeBlob, newContent) == base {
		return nil, nil
	}
	return diff.File(e.Path, diff.KindModified, oldContent, newContent, contextLines), nil
}
