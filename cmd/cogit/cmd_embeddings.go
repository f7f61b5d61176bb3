package main

import (
	"fmt"

	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newEmbeddingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embeddings",
		Short: "List commits with an embedding index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			store := embedding.NewIndexStore(r.CogitDir)
			commits, err := store.ListCommits()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(commits) == 0 {
				fmt.Fprintln(out, "no embedded commits")
				return nil
			}

			for _, h := range commits {
				idx, err := store.Load(h)
				if err != nil {
					return err
				}
				msg := ""
				if c, err := r.Store.ReadCommit(h); err == nil {
					msg = firstLine(c.Message)
				}
				fmt.Fprintf(out, "%s  %d file(s)  %d tokens  %s\n",
					h.Short(), len(idx.Files), idx.TotalTokens, msg)
			}
			return nil
		},
	}
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
