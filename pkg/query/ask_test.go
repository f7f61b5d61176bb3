package query

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/repo"
)

type fakeService struct {
	embedVec      []float32
	answer        string
	embedCalls    int
	completeCalls int
	lastPrompt    string
}

func (f *fakeService) Embed(ctx context.Context, text string) ([]float32, int, error) {
	f.embedCalls++
	return f.embedVec, len(text) / 4, nil
}

func (f *fakeService) Complete(ctx context.Context, system, user string) (string, error) {
	f.completeCalls++
	f.lastPrompt = user
	return f.answer, nil
}

func newTestEngine(t *testing.T, svc Service, cfg repo.QueryConfig) (*Engine, *embedding.IndexStore) {
	t.Helper()
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	store := embedding.NewIndexStore(r.CogitDir)
	return NewEngine(svc, store, r, cfg), store
}

func saveIndex(t *testing.T, store *embedding.IndexStore, commit string, files map[string][]float32) object.Hash {
	t.Helper()
	h := object.HashBytes([]byte(commit))
	idx := &embedding.Index{CommitHash: h, CreatedAt: time.Now().UTC()}
	for path, vec := range files {
		idx.Files = append(idx.Files, embedding.FileEmbedding{
			Path:       path,
			Vector:     vec,
			ChangeKind: diff.KindModified,
			Patch:      "--- a/" + path + "\n+++ b/" + path + "\n",
			CreatedAt:  time.Now().UTC(),
		})
	}
	if err := store.Save(idx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return h
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 2, 3}

	if got := CosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Errorf("self similarity = %v, want 1", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal = %v, want 0", got)
	}

	b := []float32{3, 2, 1}
	if CosineSimilarity(a, b) != CosineSimilarity(b, a) {
		t.Error("similarity is not symmetric")
	}

	if got := CosineSimilarity(a, []float32{0, 0, 0}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
	if got := CosineSimilarity(a, []float32{1, 2}); got != 0 {
		t.Errorf("dimension mismatch = %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v, want 0", got)
	}
}

func TestAsk_NoIndexesShortCircuits(t *testing.T) {
	svc := &fakeService{embedVec: []float32{1, 0}, answer: "should never be produced"}
	engine, _ := newTestEngine(t, svc, repo.QueryConfig{TopK: 5, Threshold: 0.7})

	_, err := engine.Ask(context.Background(), "why was the cache added?", "")
	if !errors.Is(err, ErrNoRelevantContext) {
		t.Fatalf("Ask = %v, want ErrNoRelevantContext", err)
	}
	if svc.embedCalls != 0 || svc.completeCalls != 0 {
		t.Errorf("service called (embed=%d, complete=%d) despite empty corpus",
			svc.embedCalls, svc.completeCalls)
	}
}

func TestAsk_ThresholdThenTopK(t *testing.T) {
	svc := &fakeService{embedVec: []float32{1, 0}, answer: "because of the retry bug"}
	engine, store := newTestEngine(t, svc, repo.QueryConfig{TopK: 2, Threshold: 0.7})

	saveIndex(t, store, "c1", map[string][]float32{
		"exact.go":  {1, 0},     // similarity 1.0
		"close.go":  {0.8, 0.6}, // similarity 0.8
		"nearby.go": {0.7, 0.8}, // similarity ~0.66, below threshold
		"far.go":    {0, 1},     // similarity 0
	})

	answer, err := engine.Ask(context.Background(), "what changed?", "")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if answer.Text != "because of the retry bug" {
		t.Errorf("Text = %q", answer.Text)
	}

	if len(answer.Matches) != 2 {
		t.Fatalf("matches = %d, want 2 (threshold before top-k)", len(answer.Matches))
	}
	if answer.Matches[0].Path != "exact.go" || answer.Matches[1].Path != "close.go" {
		t.Errorf("order = %s, %s", answer.Matches[0].Path, answer.Matches[1].Path)
	}
	if answer.Matches[0].Score < answer.Matches[1].Score {
		t.Error("matches not sorted by descending score")
	}
	if svc.lastPrompt == "" {
		t.Error("completion prompt is empty")
	}
}

func TestAsk_NothingAboveThreshold(t *testing.T) {
	svc := &fakeService{embedVec: []float32{1, 0}, answer: "unused"}
	engine, store := newTestEngine(t, svc, repo.QueryConfig{TopK: 5, Threshold: 0.9})

	saveIndex(t, store, "c1", map[string][]float32{
		"weak.go": {0.5, 0.9},
	})

	_, err := engine.Ask(context.Background(), "anything?", "")
	if !errors.Is(err, ErrNoRelevantContext) {
		t.Fatalf("Ask = %v, want ErrNoRelevantContext", err)
	}
	if svc.completeCalls != 0 {
		t.Error("completion called despite no matches")
	}
}

func TestAsk_CorruptIndexSurfacesError(t *testing.T) {
	r, err := repo.Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	svc := &fakeService{embedVec: []float32{1, 0}, answer: "unused"}
	store := embedding.NewIndexStore(r.CogitDir)
	engine := NewEngine(svc, store, r, repo.QueryConfig{TopK: 5, Threshold: 0.5})

	h := saveIndex(t, store, "good", map[string][]float32{"ok.go": {1, 0}})

	// Clobber the persisted index with malformed JSON.
	path := filepath.Join(r.CogitDir, "index", string(h)+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt index: %v", err)
	}

	_, err = engine.Ask(context.Background(), "anything?", "")
	if err == nil {
		t.Fatal("Ask succeeded over a corrupt index")
	}
	if errors.Is(err, ErrNoRelevantContext) {
		t.Fatalf("Ask = %v, corruption masked as no relevant context", err)
	}
	if svc.embedCalls != 0 || svc.completeCalls != 0 {
		t.Errorf("service called (embed=%d, complete=%d) despite corrupt corpus",
			svc.embedCalls, svc.completeCalls)
	}
}

func TestAsk_CommitFilter(t *testing.T) {
	svc := &fakeService{embedVec: []float32{1, 0}, answer: "scoped answer"}
	engine, store := newTestEngine(t, svc, repo.QueryConfig{TopK: 5, Threshold: 0.5})

	h1 := saveIndex(t, store, "c1", map[string][]float32{"one.go": {1, 0}})
	saveIndex(t, store, "c2", map[string][]float32{"two.go": {1, 0}})

	answer, err := engine.Ask(context.Background(), "scoped?", h1)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if len(answer.Matches) != 1 || answer.Matches[0].Path != "one.go" {
		t.Errorf("matches = %+v, want only one.go from %s", answer.Matches, h1.Short())
	}
}
