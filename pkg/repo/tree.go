package repo

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/cogitvcs/cogit/pkg/object"
)

// TreeFileEntry represents a single file in a flattened tree.
type TreeFileEntry struct {
	Path     string
	BlobHash object.Hash
}

// BuildTree converts a flat path -> blob hash mapping into a hierarchical
// tree structure, writing TreeObj objects to the store and returning the
// root hash.
//
// Paths use forward slashes (e.g. "pkg/util/util.go"). BuildTree groups
// them by directory, recursively creates subtrees, and returns the root
// tree hash. Identical snapshots always hash identically because tree
// entries are serialized sorted by name.
func (r *Repo) BuildTree(files map[string]object.Hash) (object.Hash, error) {
	return r.buildTreeDir(files, "")
}

// buildTreeDir builds a TreeObj for the given directory prefix and writes
// it to the store. It returns the tree's hash.
func (r *Repo) buildTreeDir(files map[string]object.Hash, prefix string) (object.Hash, error) {
	// Collect direct children: files and subdirectory names.
	direct := make(map[string]object.Hash) // name -> blob hash
	subdirs := make(map[string]struct{})    // immediate child dir names

	for p, blobHash := range files {
		var rel string
		if prefix == "" {
			rel = p
		} else {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}

		slash := strings.IndexByte(rel, '/')
		if slash < 0 {
			direct[rel] = blobHash
		} else {
			subdirs[rel[:slash]] = struct{}{}
		}
	}

	names := make([]string, 0, len(direct)+len(subdirs))
	for name := range direct {
		names = append(names, name)
	}
	for name := range subdirs {
		// A name cannot be both a file and a directory.
		if _, isFile := direct[name]; !isFile {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var entries []object.TreeEntry
	for _, name := range names {
		if blobHash, isFile := direct[name]; isFile {
			entries = append(entries, object.TreeEntry{
				Name:     name,
				BlobHash: blobHash,
			})
		} else {
			childPrefix := name
			if prefix != "" {
				childPrefix = prefix + "/" + name
			}
			subHash, err := r.buildTreeDir(files, childPrefix)
			if err != nil {
				return "", fmt.Errorf("build tree %q: %w", childPrefix, err)
			}
			entries = append(entries, object.TreeEntry{
				Name:        name,
				IsDir:       true,
				SubtreeHash: subHash,
			})
		}
	}

	treeObj := &object.TreeObj{Entries: entries}
	h, err := r.Store.WriteTree(treeObj)
	if err != nil {
		return "", fmt.Errorf("write tree (prefix=%q): %w", prefix, err)
	}
	return h, nil
}

// FlattenTree walks a tree object recursively, returning all file entries
// with their full paths (using forward slashes), sorted by path.
func (r *Repo) FlattenTree(h object.Hash) ([]TreeFileEntry, error) {
	entries, err := r.flattenTreeRec(h, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Path < entries[j].Path
	})
	return entries, nil
}

// FlattenTreeMap is FlattenTree as a path -> blob hash map.
func (r *Repo) FlattenTreeMap(h object.Hash) (map[string]object.Hash, error) {
	entries, err := r.FlattenTree(h)
	if err != nil {
		return nil, err
	}
	m := make(map[string]object.Hash, len(entries))
	for _, e := range entries {
		m[e.Path] = e.BlobHash
	}
	return m, nil
}

func (r *Repo) flattenTreeRec(h object.Hash, prefix string) ([]TreeFileEntry, error) {
	treeObj, err := r.Store.ReadTree(h)
	if err != nil {
		return nil, fmt.Errorf("flatten tree: read %s: %w", h, err)
	}

	var result []TreeFileEntry
	for _, entry := range treeObj.Entries {
		fullPath := entry.Name
		if prefix != "" {
			fullPath = path.Join(prefix, entry.Name)
		}

		if entry.IsDir {
			sub, err := r.flattenTreeRec(entry.SubtreeHash, fullPath)
			if err != nil {
				return nil, err
			}
			result = append(result, sub...)
		} else {
			result = append(result, TreeFileEntry{
				Path:     fullPath,
				BlobHash: entry.BlobHash,
			})
		}
	}
	return result, nil
}

// HeadTreeMap returns the HEAD commit's flattened tree as a path -> blob
// hash map. A repository with no commits yields an empty map.
func (r *Repo) HeadTreeMap() (map[string]object.Hash, error) {
	headHash, err := r.ResolveRef("HEAD")
	if err != nil || headHash == "" {
		// No commits yet.
		return make(map[string]object.Hash), nil
	}

	commit, err := r.Store.ReadCommit(headHash)
	if err != nil {
		return nil, fmt.Errorf("head tree: %w", err)
	}
	return r.FlattenTreeMap(commit.TreeHash)
}
