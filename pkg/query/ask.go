package query

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/repo"
)

// ErrNoRelevantContext reports that no embedded change scored above the
// similarity threshold for a question. It is distinct from a service
// failure: nothing was wrong, the corpus just has no answer.
var ErrNoRelevantContext = errors.New("no relevant context found in embedded history")

const askSystemPrompt = "You are an assistant that answers questions about a code repository's history. " +
	"You are given excerpts of commits: commit messages and the file changes (diffs or added file contents) " +
	"that were judged relevant to the question. Answer based only on this context. " +
	"If the context does not contain the answer, say so."

// Service is the slice of the embedding client the query engine needs.
type Service interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
	Complete(ctx context.Context, system, user string) (string, error)
}

// Match is one embedded file change judged relevant to a question.
type Match struct {
	CommitHash object.Hash
	Path       string
	Score      float64
	Patch      string
	Message    string
}

// Answer carries the generated response together with the matches it was
// grounded on.
type Answer struct {
	Text    string
	Matches []Match
}

// Engine answers natural-language questions about a repository's embedded
// history.
type Engine struct {
	svc   Service
	store *embedding.IndexStore
	repo  *repo.Repo
	cfg   repo.QueryConfig
}

// NewEngine wires a query engine to a repository and its index store.
func NewEngine(svc Service, store *embedding.IndexStore, r *repo.Repo, cfg repo.QueryConfig) *Engine {
	return &Engine{svc: svc, store: store, repo: r, cfg: cfg}
}

type candidate struct {
	commit object.Hash
	file   embedding.FileEmbedding
	score  float64
}

// Ask retrieves the embedded changes most similar to the question and
// generates an answer from them. A non-empty onlyCommit restricts the
// search to that commit's index. When no index holds a usable vector, or
// nothing scores above the threshold, Ask returns ErrNoRelevantContext
// without calling the completion service.
func (e *Engine) Ask(ctx context.Context, question string, onlyCommit object.Hash) (*Answer, error) {
	candidates, err := e.loadCandidates(onlyCommit)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoRelevantContext
	}

	qvec, _, err := e.svc.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	for i := range candidates {
		candidates[i].score = CosineSimilarity(qvec, candidates[i].file.Vector)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if candidates[i].commit != candidates[j].commit {
			return candidates[i].commit < candidates[j].commit
		}
		return candidates[i].file.Path < candidates[j].file.Path
	})

	matches := e.selectMatches(candidates)
	if len(matches) == 0 {
		return nil, ErrNoRelevantContext
	}

	text, err := e.svc.Complete(ctx, askSystemPrompt, buildAskPrompt(question, matches))
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &Answer{Text: text, Matches: matches}, nil
}

// loadCandidates gathers every stored file embedding that carries a
// vector. Commit messages are resolved here so ranking output is
// self-contained.
func (e *Engine) loadCandidates(onlyCommit object.Hash) ([]candidate, error) {
	var commits []object.Hash
	if onlyCommit != "" {
		commits = []object.Hash{onlyCommit}
	} else {
		var err error
		commits, err = e.store.ListCommits()
		if err != nil {
			return nil, err
		}
	}

	var candidates []candidate
	for _, commit := range commits {
		idx, err := e.store.Load(commit)
		if err != nil {
			// An index listed but since removed is tolerable; anything
			// else (unreadable or corrupt JSON) must surface, never be
			// downgraded to "nothing relevant".
			if onlyCommit == "" && errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, f := range idx.Files {
			if len(f.Vector) == 0 {
				continue
			}
			candidates = append(candidates, candidate{commit: commit, file: f})
		}
	}
	return candidates, nil
}

// selectMatches applies the threshold cutoff first and only then caps the
// survivors at top K, so a weak corpus yields fewer than K matches rather
// than padding with noise.
func (e *Engine) selectMatches(candidates []candidate) []Match {
	topK := e.cfg.TopK
	if topK < 1 {
		topK = 1
	}

	var matches []Match
	for _, c := range candidates {
		if c.score < e.cfg.Threshold {
			continue
		}
		matches = append(matches, Match{
			CommitHash: c.commit,
			Path:       c.file.Path,
			Score:      c.score,
			Patch:      c.file.Patch,
			Message:    e.commitMessage(c.commit),
		})
		if len(matches) == topK {
			break
		}
	}
	return matches
}

func (e *Engine) commitMessage(hash object.Hash) string {
	c, err := e.repo.Store.ReadCommit(hash)
	if err != nil {
		return ""
	}
	return c.Message
}

func buildAskPrompt(question string, matches []Match) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\n\nRelevant changes from the repository history:\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "\n--- context %d (commit %s, file %s, similarity %.2f) ---\n",
			i+1, m.CommitHash.Short(), m.Path, m.Score)
		if m.Message != "" {
			fmt.Fprintf(&b, "Commit message: %s\n", strings.TrimSpace(m.Message))
		}
		b.WriteString(m.Patch)
		if !strings.HasSuffix(m.Patch, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// formatTimestamp renders a commit's unix timestamp for prompts and
// human output.
func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}
