package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sorreltree/datalocker/internal/blobstore"
	"github.com/sorreltree/datalocker/internal/history"
)

// newHistoryCmd creates the 'history' subcommand: print a source's
// recorded fetches. Read-only; takes no lock.
func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <url>",
		Short: "List the recorded fetches for a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp("")
			if err != nil {
				return err
			}
			defer a.Close()

			refs, err := history.New(a.Layout()).List(args[0])
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded fetches")
				return nil
			}
			for _, ref := range refs {
				digest, err := digestOf(ref.Path)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("%s  %8d  %s",
					ref.Time.Format("2006-01-02 15:04:05"), ref.Size, digest)
				if entry, found, err := a.Catalog().Get(digest); err == nil && found {
					line += fmt.Sprintf("  (refs=%d)", entry.RefCount)
				}
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func digestOf(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return blobstore.Digest(data), nil
}
