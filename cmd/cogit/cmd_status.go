package main

import (
	"fmt"
	"strings"

	"github.com/cogitvcs/cogit/pkg/repo"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := repo.Open(".")
			if err != nil {
				return err
			}

			entries, err := r.Status()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			branch := "main"
			noCommits := true
			if head, err := r.Head(); err == nil {
				if strings.HasPrefix(head, "refs/heads/") {
					branch = strings.TrimPrefix(head, "refs/heads/")
				}
				if _, resolveErr := r.ResolveRef("HEAD"); resolveErr == nil {
					noCommits = false
				}
			}

			if noCommits {
				fmt.Fprintf(out, "on %s (no commits yet)\n", branch)
			} else {
				fmt.Fprintf(out, "on %s\n", branch)
			}

			var staged, modified, deleted, untracked []string
			for _, e := range entries {
				switch e.State {
				case repo.StateStaged:
					staged = append(staged, e.Path)
				case repo.StateModified:
					modified = append(modified, e.Path)
				case repo.StateDeleted:
					deleted = append(deleted, e.Path)
				case repo.StateUntracked:
					untracked = append(untracked, e.Path)
				case repo.StateUnchanged:
				}
			}

			if len(staged) > 0 {
				fmt.Fprintln(out, "\nstaged for commit:")
				for _, p := range staged {
					fmt.Fprintf(out, "  + %s\n", p)
				}
			}
			if len(modified) > 0 {
				fmt.Fprintln(out, "\nmodified:")
				for _, p := range modified {
					fmt.Fprintf(out, "  ~ %s\n", p)
				}
			}
			if len(deleted) > 0 {
				fmt.Fprintln(out, "\ndeleted:")
				for _, p := range deleted {
					fmt.Fprintf(out, "  - %s\n", p)
				}
			}
			if len(untracked) > 0 {
				fmt.Fprintln(out, "\nuntracked:")
				for _, p := range untracked {
					fmt.Fprintf(out, "  ? %s\n", p)
				}
			}

			if len(staged)+len(modified)+len(deleted)+len(untracked) == 0 {
				fmt.Fprintln(out, "nothing to commit, working tree clean")
			}
			return nil
		},
	}
}
