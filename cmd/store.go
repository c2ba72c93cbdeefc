package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/fact-tools/internal/fact"
	"github.com/koopa0/fact-tools/internal/ingest"
	"github.com/koopa0/fact-tools/internal/store"
)

var (
	flagDoc    string
	flagTags   []string
	flagRepo   string
	flagBranch string
	flagForce  bool
)

var storeCmd = &cobra.Command{
	Use:   "store <ecosystem> <tool> <version>",
	Short: "Store a knowledge record, ingesting from GitHub when no content is given",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := fact.NewKey(args[0], args[1], args[2])
		if err != nil {
			return err
		}

		s, _, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		var opts []store.Option
		if flagForce {
			opts = append(opts, store.WithForce())
		}

		// --doc switches to manual mode: the record is built here instead
		// of being ingested.
		var record *fact.Record
		if flagDoc != "" {
			record = &fact.Record{
				Tool:          key.Tool,
				Version:       key.Version,
				Ecosystem:     key.Ecosystem,
				Documentation: flagDoc,
				Tags:          flagTags,
				Provenance:    ingest.ProvenanceManual,
			}
		} else {
			var ingestOpts []ingest.Option
			if flagRepo != "" {
				owner, name, ok := splitRepo(flagRepo)
				if !ok {
					return fmt.Errorf("invalid --repo %q (want owner/name)", flagRepo)
				}
				ingestOpts = append(ingestOpts, ingest.WithRepository(owner, name))
			}
			if flagBranch != "" {
				ingestOpts = append(ingestOpts, ingest.WithBranch(flagBranch))
			}
			if len(flagTags) > 0 {
				ingestOpts = append(ingestOpts, ingest.WithTags(flagTags...))
			}
			opts = append(opts, store.WithIngestOptions(ingestOpts...))
		}

		stored, err := s.StoreFact(cmd.Context(), key, record, opts...)
		if err != nil {
			return err
		}

		data, err := fact.EncodeJSON(stored)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func splitRepo(full string) (owner, name string, ok bool) {
	for i := range full {
		if full[i] == '/' {
			return full[:i], full[i+1:], full[:i] != "" && full[i+1:] != ""
		}
	}
	return "", "", false
}

func init() {
	storeCmd.Flags().StringVar(&flagDoc, "doc", "", "documentation text (skips ingestion)")
	storeCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "tags for the record (repeatable)")
	storeCmd.Flags().StringVar(&flagRepo, "repo", "", "repository override as owner/name")
	storeCmd.Flags().StringVar(&flagBranch, "branch", "", "branch to analyze (default branch when empty)")
	storeCmd.Flags().BoolVar(&flagForce, "force", false, "allow overwriting with an older timestamp")
	rootCmd.AddCommand(storeCmd)
}
