package embedding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
)

// FileEmbedding is the per-file record of an embedding index. Vector holds
// the embedding of Patch, which is the unit of analysis that was embedded:
// the unified diff for modified, deleted, and renamed files, or the whole
// content for added files. Persisting the unit alongside the vector is
// what lets the retrieval pipeline assemble context later.
type FileEmbedding struct {
	Path        string          `json:"file_path"`
	ContentHash object.Hash     `json:"content_hash"`
	Vector      []float32       `json:"embedding_vector"`
	ChangeKind  diff.ChangeKind `json:"change_type"`
	TokenCount  int             `json:"token_count"`
	Patch       string          `json:"patch"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Index collects all file embeddings generated for one commit. At most one
// Index exists per commit hash; none exists when generation was bypassed
// or failed entirely.
type Index struct {
	CommitHash       object.Hash     `json:"commit_hash"`
	Files            []FileEmbedding `json:"files"`
	TotalTokens      int             `json:"total_tokens"`
	ProcessingTimeMs int64           `json:"processing_time_ms"`
	CreatedAt        time.Time       `json:"created_at"`
}

// IndexStore persists embedding indexes under .cogit/index/<commit>.json.
type IndexStore struct {
	dir string
}

// NewIndexStore creates an IndexStore rooted at the .cogit directory.
func NewIndexStore(cogitDir string) *IndexStore {
	return &IndexStore{dir: filepath.Join(cogitDir, "index")}
}

func (s *IndexStore) indexPath(commitHash object.Hash) string {
	return filepath.Join(s.dir, string(commitHash)+".json")
}

// Save atomically writes an index to disk, replacing any previous index
// for the same commit.
func (s *IndexStore) Save(idx *Index) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("save index: mkdir: %w", err)
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("save index: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".index-tmp-*")
	if err != nil {
		return fmt.Errorf("save index: tmpfile: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save index: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save index: close: %w", err)
	}
	if err := os.Rename(tmpName, s.indexPath(idx.CommitHash)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save index: rename: %w", err)
	}
	return nil
}

// Load reads the index for a commit. A missing index is reported via
// os.ErrNotExist.
func (s *IndexStore) Load(commitHash object.Hash) (*Index, error) {
	data, err := os.ReadFile(s.indexPath(commitHash))
	if err != nil {
		return nil, fmt.Errorf("load index %s: %w", commitHash.Short(), err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("load index %s: unmarshal: %w", commitHash.Short(), err)
	}
	return &idx, nil
}

// ListCommits returns the hashes of all commits that have an embedding
// index, sorted lexically.
func (s *IndexStore) ListCommits() ([]object.Hash, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	var commits []object.Hash
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		commits = append(commits, object.Hash(strings.TrimSuffix(name, ".json")))
	}

	sort.Slice(commits, func(i, j int) bool { return commits[i] < commits[j] })
	return commits, nil
}
