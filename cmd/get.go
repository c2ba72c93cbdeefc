package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/koopa0/fact-tools/internal/fact"
)

var getCmd = &cobra.Command{
	Use:   "get <ecosystem> <tool> <version>",
	Short: "Print the stored record as JSON",
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

		record, err := s.GetFact(cmd.Context(), key)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("no record for %s", key)
		}

		data, err := fact.EncodeJSON(record)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <ecosystem> <tool> <version>",
	Short: "Delete the stored record",
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

		return s.DeleteFact(cmd.Context(), key)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
}
