package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/fact-tools/internal/fact"
)

var listCmd = &cobra.Command{
	Use:   "list <ecosystem>",
	Short: "List every tool version stored for an ecosystem",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := s.ListTools(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printKeys(keys)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <prefix>",
	Short: "Find stored tools whose name starts with a prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		keys, err := s.SearchTools(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printKeys(keys)
		return nil
	},
}

func printKeys(keys []fact.Key) {
	for _, key := range keys {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n", key.Ecosystem, key.Tool, key.Version)
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(searchCmd)
}
