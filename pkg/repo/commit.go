package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cogitvcs/cogit/pkg/object"
)

// Commit creates a new commit from the current staging area.
//
//  1. Read staging; fail with ErrEmptyStaging when empty.
//  2. Layer the staged entries onto the parent commit's flattened tree
//     (unstaged paths keep their previous version).
//  3. Build and store the new tree.
//  4. Store a CommitObj referencing the tree and the current HEAD as parent.
//  5. Update the current branch ref.
//  6. Clear the staging area.
//
// Any failure before step 5 completes leaves the staging area untouched.
func (r *Repo) Commit(message string) (object.Hash, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(stg.Entries) == 0 {
		return "", fmt.Errorf("commit: %w", ErrEmptyStaging)
	}

	// Resolve HEAD to get the parent (may not exist for the first commit).
	var parent object.Hash
	if h, err := r.ResolveRef("HEAD"); err == nil {
		parent = h
	}

	// Start from the parent snapshot and overwrite with staged paths.
	files := make(map[string]object.Hash)
	if parent != "" {
		parentCommit, err := r.Store.ReadCommit(parent)
		if err != nil {
			return "", fmt.Errorf("commit: read parent %s: %w", parent, err)
		}
		files, err = r.FlattenTreeMap(parentCommit.TreeHash)
		if err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}
	}
	for p, entry := range stg.Entries {
		files[p] = entry.ContentHash
	}

	treeHash, err := r.BuildTree(files)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	commitObj := &object.CommitObj{
		TreeHash:  treeHash,
		Parent:    parent,
		Timestamp: time.Now().Unix(),
		Message:   message,
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	// Update the current branch ref (or detached HEAD).
	head, err := r.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}

	if strings.HasPrefix(head, "refs/") {
		var updateErr error
		if parent == "" {
			updateErr = r.UpdateRefCAS(head, commitHash)
		} else {
			updateErr = r.UpdateRefCAS(head, commitHash, parent)
		}
		if updateErr != nil {
			return "", fmt.Errorf("commit: update ref %q: %w", head, updateErr)
		}
	} else {
		if err := r.UpdateRefCAS("HEAD", commitHash, object.Hash(strings.TrimSpace(head))); err != nil {
			return "", fmt.Errorf("commit: update detached HEAD: %w", err)
		}
	}

	if err := r.ClearStaging(); err != nil {
		return "", fmt.Errorf("commit %s created but staging not cleared: %w", commitHash.Short(), err)
	}

	return commitHash, nil
}

// LogEntry pairs a commit with its hash for history listings.
type LogEntry struct {
	Hash   object.Hash
	Commit *object.CommitObj
}

// Log walks the commit history starting from HEAD, following parent
// links, returning up to limit commits in reverse-chronological order
// (newest first). limit <= 0 means no limit.
func (r *Repo) Log(limit int) ([]LogEntry, error) {
	var entries []LogEntry

	current, err := r.ResolveRef("HEAD")
	if err != nil || current == "" {
		// No commits yet.
		return entries, nil
	}

	for current != "" {
		if limit > 0 && len(entries) >= limit {
			break
		}
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) {
				break
			}
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		entries = append(entries, LogEntry{Hash: current, Commit: c})
		current = c.Parent
	}

	return entries, nil
}
