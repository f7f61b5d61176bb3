package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cogitvcs/cogit/internal/logger"
	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd() *cobra.Command {
	var message string
	var noEmbeddings bool

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Record staged changes and index them for semantic search",
		RunE: func(cmd *cobra.Command, args []string) error {
			if message == "" {
				return fmt.Errorf("commit message is required (-m)")
			}

			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			h, err := r.Commit(message)
			if err != nil {
				if errors.Is(err, repo.ErrEmptyStaging) {
					return fmt.Errorf("nothing staged to commit")
				}
				return err
			}

			branch := "HEAD"
			if head, err := r.Head(); err == nil && strings.HasPrefix(head, "refs/heads/") {
				branch = strings.TrimPrefix(head, "refs/heads/")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s %s] %s\n", branch, h.Short(), message)

			// The commit is durable at this point. Embedding generation is
			// best effort: failures warn, never roll back.
			if noEmbeddings {
				return nil
			}

			cfg, err := r.ReadConfig()
			if err != nil {
				logger.Warn("embeddings skipped: %v", err)
				return nil
			}

			client, err := newServiceClient(cfg)
			if err != nil {
				logger.Warn("embeddings skipped: %v", err)
				return nil
			}

			store := embedding.NewIndexStore(r.CogitDir)
			engine := embedding.NewEngine(client, store, cfg.Embedding, cfg.Diff.ContextLines)

			idx, err := engine.ProcessCommit(context.Background(), r, h)
			if err != nil {
				if idx != nil {
					logger.Warn("embedded %d file(s), some failed: %v", len(idx.Files), err)
					return nil
				}
				logger.Warn("embedding generation failed: %v", err)
				return nil
			}

			logger.Debug("embedded %d file(s), %d tokens in %dms",
				len(idx.Files), idx.TotalTokens, idx.ProcessingTimeMs)
			fmt.Fprintf(cmd.OutOrStdout(), "embedded %d file(s) (%d tokens)\n", len(idx.Files), idx.TotalTokens)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&noEmbeddings, "no-embeddings", false, "skip embedding generation for this commit")

	return cmd
}
