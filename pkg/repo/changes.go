package repo

import (
	"fmt"
	"sort"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
)

// FileChange describes one file changed by a commit relative to its parent.
type FileChange struct {
	Path    string
	Kind    diff.ChangeKind
	OldHash object.Hash // empty for added files
	NewHash object.Hash // empty for deleted files
}

// ChangedFiles compares a commit's tree against its parent's tree and
// returns the per-file changes, sorted by path. For a root commit every
// file is reported as added. Renames are never inferred: a moved file
// shows up as one deletion and one addition.
func (r *Repo) ChangedFiles(commitHash object.Hash) ([]FileChange, error) {
	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}

	newFiles, err := r.FlattenTreeMap(commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("changed files: %w", err)
	}

	oldFiles := make(map[string]object.Hash)
	if commit.Parent != "" {
		parent, err := r.Store.ReadCommit(commit.Parent)
		if err != nil {
			return nil, fmt.Errorf("changed files: read parent: %w", err)
		}
		oldFiles, err = r.FlattenTreeMap(parent.TreeHash)
		if err != nil {
			return nil, fmt.Errorf("changed files: %w", err)
		}
	}

	var changes []FileChange
	for p, newHash := range newFiles {
		oldHash, existed := oldFiles[p]
		switch {
		case !existed:
			changes = append(changes, FileChange{Path: p, Kind: diff.KindAdded, NewHash: newHash})
		case oldHash != newHash:
			changes = append(changes, FileChange{Path: p, Kind: diff.KindModified, OldHash: oldHash, NewHash: newHash})
		}
	}
	for p, oldHash := range oldFiles {
		if _, exists := newFiles[p]; !exists {
			changes = append(changes, FileChange{Path: p, Kind: diff.KindDeleted, OldHash: oldHash})
		}
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].Path < changes[j].Path
	})
	return changes, nil
}

// BlobContent reads a blob's raw bytes; an empty hash yields nil content.
func (r *Repo) BlobContent(h object.Hash) ([]byte, error) {
	if h == "" {
		return nil, nil
	}
	blob, err := r.Store.ReadBlob(h)
	if err != nil {
		return nil, err
	}
	return blob.Data, nil
}

// DiffChange materializes the line-level diff for a single FileChange.
func (r *Repo) DiffChange(c FileChange, contextLines int) (*diff.FileDiff, error) {
	oldContent, err := r.BlobContent(c.OldHash)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", c.Path, err)
	}
	newContent, err := r.BlobContent(c.NewHash)
	if err != nil {
		return nil, fmt.Errorf("diff %s: %w", c.Path, err)
	}
	return diff.File(c.Path, c.Kind, oldContent, newContent, contextLines), nil
}
