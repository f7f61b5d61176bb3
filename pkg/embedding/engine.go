package embedding

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/repo"
)

// Embedder turns a text into an embedding vector plus the token count the
// service charged for it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, int, error)
}

// Engine generates embedding indexes for commits. Each changed file in a
// commit is reduced to a unit of analysis and embedded independently.
type Engine struct {
	embedder     Embedder
	store        *IndexStore
	cfg          repo.EmbeddingConfig
	contextLines int
}

// NewEngine wires an embedder to the index store of a repository.
func NewEngine(embedder Embedder, store *IndexStore, cfg repo.EmbeddingConfig, contextLines int) *Engine {
	return &Engine{
		embedder:     embedder,
		store:        store,
		cfg:          cfg,
		contextLines: contextLines,
	}
}

// unit is one file's text to be embedded, in commit change order.
type unit struct {
	change repo.FileChange
	text   string
}

// ProcessCommit builds and persists the embedding index for a commit.
// Files that are not eligible (disallowed extension, oversized) are
// skipped silently. Per-file service failures do not abort the batch: the
// index is persisted with the files that succeeded and the joined errors
// are returned alongside it. Only when every file fails is no index
// written.
func (e *Engine) ProcessCommit(ctx context.Context, r *repo.Repo, commitHash object.Hash) (*Index, error) {
	start := time.Now()

	changes, err := r.ChangedFiles(commitHash)
	if err != nil {
		return nil, fmt.Errorf("process commit %s: %w", commitHash.Short(), err)
	}

	units, err := e.collectUnits(r, changes)
	if err != nil {
		return nil, fmt.Errorf("process commit %s: %w", commitHash.Short(), err)
	}

	idx := &Index{
		CommitHash: commitHash,
		CreatedAt:  time.Now().UTC(),
	}

	if len(units) > 0 {
		files, errs := e.embedUnits(ctx, units)
		if len(files) == 0 {
			return nil, fmt.Errorf("process commit %s: %w", commitHash.Short(), errors.Join(errs...))
		}
		idx.Files = files
		for _, f := range files {
			idx.TotalTokens += f.TokenCount
		}
		idx.ProcessingTimeMs = time.Since(start).Milliseconds()
		if err := e.store.Save(idx); err != nil {
			// Per-file failures still matter to the caller even when the
			// index itself could not be written.
			return nil, errors.Join(append(errs, err)...)
		}
		if len(errs) > 0 {
			return idx, errors.Join(errs...)
		}
		return idx, nil
	}

	// A commit with no eligible files still gets an (empty) index so
	// repeated runs and listings see it as processed.
	idx.ProcessingTimeMs = time.Since(start).Milliseconds()
	if err := e.store.Save(idx); err != nil {
		return nil, err
	}
	return idx, nil
}

// collectUnits turns eligible file changes into embedding units. Added
// files contribute their full content; modified, deleted, and renamed
// files contribute their unified diff.
func (e *Engine) collectUnits(r *repo.Repo, changes []repo.FileChange) ([]unit, error) {
	var units []unit
	for _, c := range changes {
		if !e.eligibleExt(c.Path) {
			continue
		}

		var text string
		switch c.Kind {
		case diff.KindAdded:
			content, err := r.BlobContent(c.NewHash)
			if err != nil {
				return nil, err
			}
			if e.cfg.MaxFileBytes > 0 && int64(len(content)) > e.cfg.MaxFileBytes {
				continue
			}
			text = string(content)
		case diff.KindModified, diff.KindDeleted, diff.KindRenamed:
			fd, err := r.DiffChange(c, e.contextLines)
			if err != nil {
				return nil, err
			}
			patch := diff.FormatPatch(fd)
			if e.cfg.MaxFileBytes > 0 && int64(len(patch)) > e.cfg.MaxFileBytes {
				continue
			}
			text = patch
		default:
			return nil, fmt.Errorf("unhandled change kind %d for %s", c.Kind, c.Path)
		}

		if strings.TrimSpace(text) == "" {
			continue
		}
		units = append(units, unit{change: c, text: text})
	}
	return units, nil
}

func (e *Engine) eligibleExt(path string) bool {
	if len(e.cfg.AllowedExtensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range e.cfg.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// embedUnits runs the embedding calls through a bounded worker pool and
// reassembles the successes in the original change order. A failed file
// never cancels its siblings.
func (e *Engine) embedUnits(ctx context.Context, units []unit) ([]FileEmbedding, []error) {
	workers := e.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	type result struct {
		emb FileEmbedding
		err error
	}

	results := make([]result, len(units))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, u := range units {
		wg.Add(1)
		go func(i int, u unit) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			vector, tokens, err := e.embedder.Embed(ctx, u.text)
			if err != nil {
				results[i] = result{err: fmt.Errorf("embed %s: %w", u.change.Path, err)}
				return
			}
			hash := u.change.NewHash
			if u.change.Kind == diff.KindDeleted {
				hash = u.change.OldHash
			}
			results[i] = result{emb: FileEmbedding{
				Path:        u.change.Path,
				ContentHash: hash,
				Vector:      vector,
				ChangeKind:  u.change.Kind,
				TokenCount:  tokens,
				Patch:       u.text,
				CreatedAt:   time.Now().UTC(),
			}}
		}(i, u)
	}
	wg.Wait()

	var files []FileEmbedding
	var errs []error
	for _, res := range results {
		if res.err != nil {
			errs = append(errs, res.err)
			continue
		}
		files = append(files, res.emb)
	}
	return files, errs
}
