package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/cogitvcs/cogit/internal/logger"
	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/query"
	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newAskCmd() *cobra.Command {
	var commit string
	var showMatches bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the repository's history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			// An empty corpus is answered before the service client is
			// even constructed, so a missing credential cannot mask it.
			store := embedding.NewIndexStore(r.CogitDir)
			if commits, err := store.ListCommits(); err != nil {
				return err
			} else if len(commits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no relevant context found; commit and embed some changes first")
				return nil
			}

			client, err := newServiceClient(cfg)
			if err != nil {
				return err
			}

			engine := query.NewEngine(client, store, r, cfg.Query)

			answer, err := engine.Ask(context.Background(), args[0], object.Hash(commit))
			if err != nil {
				if errors.Is(err, query.ErrNoRelevantContext) {
					fmt.Fprintln(cmd.OutOrStdout(), "no relevant context found; commit and embed some changes first")
					return nil
				}
				return err
			}

			logger.Debug("answer grounded on %d match(es)", len(answer.Matches))

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Text)

			if showMatches {
				fmt.Fprintln(out, "\nsources:")
				for _, m := range answer.Matches {
					fmt.Fprintf(out, "  %s %s (%.2f)\n", m.CommitHash.Short(), m.Path, m.Score)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&commit, "commit", "", "restrict the search to one commit's index")
	cmd.Flags().BoolVar(&showMatches, "sources", false, "print the matches the answer was grounded on")

	return cmd
}
