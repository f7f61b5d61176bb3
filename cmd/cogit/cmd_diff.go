package main

import (
	"fmt"

	"github.com/cogitvcs/cogit/pkg/diff"
	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd() *cobra.Command {
	var staged bool

	cmd := &cobra.Command{
		Use:   "diff [path]...",
		Short: "Show changes between working tree, staging, and HEAD",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			cfg, err := r.ReadConfig()
			if err != nil {
				return err
			}

			diffs, err := r.DiffWorktree(args, staged, cfg.Diff.ContextLines)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, fd := range diffs {
				fmt.Fprint(out, diff.FormatPatch(fd))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&staged, "staged", false, "compare staging against HEAD instead of the working tree")

	return cmd
}
