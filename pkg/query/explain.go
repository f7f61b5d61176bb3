package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/object"
)

const explainSystemPrompt = "You are an assistant that explains commits in a code repository. " +
	"Given a commit's message and its file changes, describe in plain language what the commit does " +
	"and why it might have been made. Be concise and concrete."

// Explain generates a natural-language explanation of a single commit from
// its message and file changes. It works for any commit, embedded or not:
// when an index exists its stored patches are reused, otherwise the diffs
// are recomputed from the object store.
func (e *Engine) Explain(ctx context.Context, commitHash object.Hash) (string, error) {
	commit, err := e.repo.Store.ReadCommit(commitHash)
	if err != nil {
		return "", fmt.Errorf("explain %s: %w", commitHash.Short(), err)
	}

	patches, err := e.commitPatches(commitHash)
	if err != nil {
		return "", fmt.Errorf("explain %s: %w", commitHash.Short(), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Commit %s\n", commitHash.Short())
	fmt.Fprintf(&b, "Date: %s\n", formatTimestamp(commit.Timestamp))
	fmt.Fprintf(&b, "Message: %s\n", strings.TrimSpace(commit.Message))
	if len(patches) == 0 {
		b.WriteString("\nThis commit changed no files.\n")
	}
	for _, p := range patches {
		b.WriteString("\n")
		b.WriteString(p)
		if !strings.HasSuffix(p, "\n") {
			b.WriteByte('\n')
		}
	}

	text, err := e.svc.Complete(ctx, explainSystemPrompt, b.String())
	if err != nil {
		return "", fmt.Errorf("explain %s: %w", commitHash.Short(), err)
	}
	return text, nil
}

func (e *Engine) commitPatches(commitHash object.Hash) ([]string, error) {
	if idx, err := e.store.Load(commitHash); err == nil && len(idx.Files) > 0 {
		patches := make([]string, 0, len(idx.Files))
		for _, f := range idx.Files {
			patches = append(patches, f.Patch)
		}
		return patches, nil
	}

	changes, err := e.repo.ChangedFiles(commitHash)
	if err != nil {
		return nil, err
	}

	var patches []string
	for _, c := range changes {
		fd, err := e.repo.DiffChange(c, diff.DefaultContextLines)
		if err != nil {
			return nil, err
		}
		patches = append(patches, diff.FormatPatch(fd))
	}
	return patches, nil
}
