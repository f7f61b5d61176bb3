package repo

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cogitvcs/cogit/pkg/object"
)

// FileState classifies a working-tree file against staging and HEAD.
type FileState int

const (
	StateUnchanged FileState = iota // on-disk matches HEAD (and staging, if staged)
	StateUntracked                  // on disk, never staged or committed
	StateModified                   // tracked, but on-disk content differs
	StateStaged                     // on-disk matches staging, differs from HEAD
	StateDeleted                    // tracked but missing on disk
)

// String returns the lowercase name of the state.
func (s FileState) String() string {
	switch s {
	case StateUnchanged:
		return "unchanged"
	case StateUntracked:
		return "untracked"
	case StateModified:
		return "modified"
	case StateStaged:
		return "staged"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("FileState(%d)", int(s))
	}
}

// StatusEntry records the status of a single file.
type StatusEntry struct {
	Path     string // repo-relative path
	State    FileState
	WorkHash object.Hash // on-disk content hash, empty when missing
	HeadHash object.Hash // blob hash in HEAD tree, empty when absent
	IndexHash object.Hash // blob hash in staging, empty when not staged
}

// Status computes the per-path state of the repository by three-way
// comparison: staging area vs HEAD tree vs current on-disk content hash.
//
// The result covers the union of working-tree files, staged paths, and
// HEAD tree paths, sorted by path. Unchanged files are included; callers
// that only want pending work filter them out.
func (r *Repo) Status() ([]StatusEntry, error) {
	stg, err := r.ReadStaging()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	headEntries, err := r.HeadTreeMap()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	workFiles, err := r.walkWorkTree()
	if err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	// Union of all known paths.
	paths := make(map[string]struct{})
	for p := range workFiles {
		paths[p] = struct{}{}
	}
	for p := range stg.Entries {
		paths[p] = struct{}{}
	}
	for p := range headEntries {
		paths[p] = struct{}{}
	}

	var entries []StatusEntry
	for p := range paths {
		entry := StatusEntry{
			Path:     p,
			HeadHash: headEntries[p],
		}
		if se, ok := stg.Entries[p]; ok {
			entry.IndexHash = se.ContentHash
		}

		onDisk := workFiles[p]
		if !onDisk && (entry.IndexHash != "" || entry.HeadHash != "") {
			// The walk skips dot-prefixed paths, but a tracked file is
			// only Deleted when it is actually gone from disk.
			if info, err := os.Stat(filepath.Join(r.RootDir, filepath.FromSlash(p))); err == nil && info.Mode().IsRegular() {
				onDisk = true
			}
		}
		if onDisk {
			content, err := os.ReadFile(filepath.Join(r.RootDir, filepath.FromSlash(p)))
			if err != nil {
				return nil, fmt.Errorf("status: read %q: %w", p, err)
			}
			entry.WorkHash = object.HashObject(object.TypeBlob, content)
		}

		entry.State = classify(onDisk, entry.WorkHash, entry.IndexHash, entry.HeadHash)
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// classify derives the file state from the three-way comparison.
func classify(onDisk bool, work, index, head object.Hash) FileState {
	tracked := index != "" || head != ""

	if !onDisk {
		if tracked {
			return StateDeleted
		}
		return StateUnchanged // unreachable: untracked paths come from the walk
	}

	if !tracked {
		return StateUntracked
	}

	if index != "" {
		if work != index {
			return StateModified
		}
		if index != head {
			return StateStaged
		}
		return StateUnchanged
	}

	// Committed but not staged.
	if work != head {
		return StateModified
	}
	return StateUnchanged
}

// walkWorkTree collects repo-relative paths of all regular files in the
// working tree, skipping the .cogit directory and hidden files.
func (r *Repo) walkWorkTree() (map[string]bool, error) {
	workFiles := make(map[string]bool)
	err := filepath.WalkDir(r.RootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(r.RootDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if rel == "." {
			return nil
		}

		// Skip hidden files and directories (.cogit, .git, dotfiles).
		if strings.HasPrefix(filepath.Base(path), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			workFiles[rel] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}
	return workFiles, nil
}
