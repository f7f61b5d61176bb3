package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/repo"
)

// fakeEmbedder returns a fixed-size vector derived from the text length.
// Texts containing the poison marker fail, exercising per-file isolation.
type fakeEmbedder struct {
	poison string
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, int, error) {
	f.calls++
	if f.poison != "" && strings.Contains(text, f.poison) {
		return nil, 0, errors.New("poisoned input")
	}
	return []float32{float32(len(text)), 1, 0}, len(text) / 4, nil
}

func commitFiles(t *testing.T, files map[string]string) (*repo.Repo, object.Hash) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	var paths []string
	for name, content := range files {
		path := filepath.Join(r.RootDir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		paths = append(paths, path)
	}
	if err := r.Add(paths); err != nil {
		t.Fatalf("Add: %v", err)
	}

	h, err := r.Commit("test commit")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return r, h
}

func testEngine(r *repo.Repo, emb Embedder) (*Engine, *IndexStore) {
	cfg := repo.DefaultConfig().Embedding
	store := NewIndexStore(r.CogitDir)
	return NewEngine(emb, store, cfg, diff.DefaultContextLines), store
}

func TestIndexStore_SaveLoadList(t *testing.T) {
	store := NewIndexStore(t.TempDir())

	commits, err := store.ListCommits()
	if err != nil {
		t.Fatalf("ListCommits(empty): %v", err)
	}
	if len(commits) != 0 {
		t.Errorf("commits = %v, want none", commits)
	}

	idx := &Index{
		CommitHash: object.HashBytes([]byte("c1")),
		Files: []FileEmbedding{{
			Path:       "a.go",
			Vector:     []float32{0.1, 0.2},
			ChangeKind: diff.KindAdded,
			TokenCount: 7,
			Patch:      "package a\n",
			CreatedAt:  time.Now().UTC(),
		}},
		TotalTokens: 7,
		CreatedAt:   time.Now().UTC(),
	}
	if err := store.Save(idx); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(idx.CommitHash)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CommitHash != idx.CommitHash {
		t.Errorf("CommitHash = %s, want %s", got.CommitHash, idx.CommitHash)
	}
	if len(got.Files) != 1 || got.Files[0].Path != "a.go" {
		t.Errorf("Files = %+v", got.Files)
	}
	if got.Files[0].ChangeKind != diff.KindAdded {
		t.Errorf("ChangeKind = %v, want added", got.Files[0].ChangeKind)
	}

	commits, err = store.ListCommits()
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 1 || commits[0] != idx.CommitHash {
		t.Errorf("commits = %v", commits)
	}
}

func TestIndexStore_LoadMissing(t *testing.T) {
	store := NewIndexStore(t.TempDir())
	if _, err := store.Load(object.HashBytes([]byte("nope"))); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load = %v, want ErrNotExist", err)
	}
}

func TestEngine_ProcessCommit(t *testing.T) {
	r, h := commitFiles(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n\nfunc B() {}\n",
	})
	emb := &fakeEmbedder{}
	engine, store := testEngine(r, emb)

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err != nil {
		t.Fatalf("ProcessCommit: %v", err)
	}

	if len(idx.Files) != 2 {
		t.Fatalf("files = %d, want 2", len(idx.Files))
	}
	// Results come back in change order regardless of worker scheduling.
	if idx.Files[0].Path != "a.go" || idx.Files[1].Path != "b.go" {
		t.Errorf("order = %s, %s", idx.Files[0].Path, idx.Files[1].Path)
	}
	for _, f := range idx.Files {
		if f.ChangeKind != diff.KindAdded {
			t.Errorf("%s kind = %v, want added", f.Path, f.ChangeKind)
		}
		if len(f.Vector) == 0 {
			t.Errorf("%s has no vector", f.Path)
		}
	}
	if idx.Files[0].Patch != "package a\n" {
		t.Errorf("added file patch = %q, want full content", idx.Files[0].Patch)
	}

	wantTokens := idx.Files[0].TokenCount + idx.Files[1].TokenCount
	if idx.TotalTokens != wantTokens {
		t.Errorf("TotalTokens = %d, want %d", idx.TotalTokens, wantTokens)
	}

	// Persisted.
	if _, err := store.Load(h); err != nil {
		t.Errorf("Load persisted index: %v", err)
	}
}

func TestEngine_ModifiedFileEmbedsDiff(t *testing.T) {
	r, _ := commitFiles(t, map[string]string{"a.go": "package a\n\nvar X = 1\n"})

	path := filepath.Join(r.RootDir, "a.go")
	if err := os.WriteFile(path, []byte("package a\n\nvar X = 2\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := r.Add([]string{path}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	h2, err := r.Commit("bump X")
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	engine, _ := testEngine(r, &fakeEmbedder{})
	idx, err := engine.ProcessCommit(context.Background(), r, h2)
	if err != nil {
		t.Fatalf("ProcessCommit: %v", err)
	}
	if len(idx.Files) != 1 {
		t.Fatalf("files = %d, want 1", len(idx.Files))
	}
	f := idx.Files[0]
	if f.ChangeKind != diff.KindModified {
		t.Errorf("kind = %v, want modified", f.ChangeKind)
	}
	if !strings.Contains(f.Patch, "-var X = 1\n") || !strings.Contains(f.Patch, "+var X = 2\n") {
		t.Errorf("patch does not carry the change:\n%s", f.Patch)
	}
}

func TestEngine_SkipsDisallowedExtensions(t *testing.T) {
	r, h := commitFiles(t, map[string]string{
		"a.go":      "package a\n",
		"image.xyz": "not really an image\n",
	})
	engine, _ := testEngine(r, &fakeEmbedder{})

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err != nil {
		t.Fatalf("ProcessCommit: %v", err)
	}
	if len(idx.Files) != 1 || idx.Files[0].Path != "a.go" {
		t.Errorf("files = %+v, want only a.go", idx.Files)
	}
}

func TestEngine_PartialFailureKeepsSurvivors(t *testing.T) {
	r, h := commitFiles(t, map[string]string{
		"good.go": "package good\n",
		"bad.go":  "package bad // poison\n",
	})
	engine, store := testEngine(r, &fakeEmbedder{poison: "poison"})

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err == nil {
		t.Fatal("ProcessCommit succeeded, want partial failure error")
	}
	if idx == nil {
		t.Fatal("index is nil despite a surviving file")
	}
	if len(idx.Files) != 1 || idx.Files[0].Path != "good.go" {
		t.Errorf("files = %+v, want only good.go", idx.Files)
	}

	// The partial index was persisted.
	saved, loadErr := store.Load(h)
	if loadErr != nil {
		t.Fatalf("Load: %v", loadErr)
	}
	if len(saved.Files) != 1 {
		t.Errorf("persisted files = %d, want 1", len(saved.Files))
	}
}

func TestEngine_AllFailWritesNothing(t *testing.T) {
	r, h := commitFiles(t, map[string]string{
		"a.go": "package a // poison\n",
	})
	engine, store := testEngine(r, &fakeEmbedder{poison: "poison"})

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err == nil {
		t.Fatal("ProcessCommit succeeded, want error")
	}
	if idx != nil {
		t.Errorf("index = %+v, want nil", idx)
	}
	if _, err := store.Load(h); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load = %v, want ErrNotExist", err)
	}
}

func TestEngine_SaveFailureKeepsFileErrors(t *testing.T) {
	r, h := commitFiles(t, map[string]string{
		"good.go": "package good\n",
		"bad.go":  "package bad // poison\n",
	})
	engine, _ := testEngine(r, &fakeEmbedder{poison: "poison"})

	// Make the index directory unwritable by replacing it with a file.
	indexDir := filepath.Join(r.CogitDir, "index")
	if err := os.RemoveAll(indexDir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := os.WriteFile(indexDir, []byte("in the way"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err == nil {
		t.Fatal("ProcessCommit succeeded, want error")
	}
	if idx != nil {
		t.Errorf("index = %+v, want nil", idx)
	}
	// Both the per-file failure and the save failure are reported.
	if !strings.Contains(err.Error(), "bad.go") {
		t.Errorf("error does not name the failed file: %v", err)
	}
	if !strings.Contains(err.Error(), "save index") {
		t.Errorf("error does not carry the save failure: %v", err)
	}
}

func TestEngine_NoEligibleFilesPersistsEmptyIndex(t *testing.T) {
	r, h := commitFiles(t, map[string]string{"blob.xyz": "binary-ish\n"})
	emb := &fakeEmbedder{}
	engine, store := testEngine(r, emb)

	idx, err := engine.ProcessCommit(context.Background(), r, h)
	if err != nil {
		t.Fatalf("ProcessCommit: %v", err)
	}
	if len(idx.Files) != 0 {
		t.Errorf("files = %+v, want none", idx.Files)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times for ineligible files", emb.calls)
	}

	commits, err := store.ListCommits()
	if err != nil {
		t.Fatalf("ListCommits: %v", err)
	}
	if len(commits) != 1 || commits[0] != h {
		t.Errorf("commits = %v, want [%s]", commits, h)
	}
}

func TestServiceError_Taxonomy(t *testing.T) {
	inner := errors.New("boom")
	se := &ServiceError{Kind: FailureRateLimited, Op: "embed", Err: inner}

	if !errors.Is(se, inner) {
		t.Error("ServiceError does not unwrap to its cause")
	}

	wrapped := fmt.Errorf("context: %w", se)
	got, ok := AsServiceError(wrapped)
	if !ok {
		t.Fatal("AsServiceError failed on wrapped error")
	}
	if got.Kind != FailureRateLimited {
		t.Errorf("Kind = %v, want FailureRateLimited", got.Kind)
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	se, ok := AsServiceError(err)
	if !ok {
		t.Fatalf("NewClient error = %v, want ServiceError", err)
	}
	if se.Kind != FailureUnconfigured {
		t.Errorf("Kind = %v, want FailureUnconfigured", se.Kind)
	}
}
