package main

import (
	"context"
	"fmt"

	"github.com/cogitvcs/cogit/pkg/embedding"
	"github.com/cogitvcs/cogit/pkg/object"
	"github.com/cogitvcs/cogit/pkg/query"
	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newExplainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "explain <commit>",
		Short: "Explain a commit in plain language",
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

			client, err := newServiceClient(cfg)
			if err != nil {
				return err
			}

			store := embedding.NewIndexStore(r.CogitDir)
			engine := query.NewEngine(client, store, r, cfg.Query)

			text, err := engine.Explain(context.Background(), object.Hash(args[0]))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
}
