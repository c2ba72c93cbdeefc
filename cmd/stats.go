package cmd

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate storage statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		stats, err := s.Stats(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "entries:    %d\n", stats.TotalEntries)
		fmt.Fprintf(os.Stdout, "size:       %d bytes\n", stats.TotalSizeBytes)
		if stats.LastCompaction != nil {
			fmt.Fprintf(os.Stdout, "compacted:  %s\n", stats.LastCompaction.Format(time.RFC3339))
		}

		ecosystems := make([]string, 0, len(stats.Ecosystems))
		for eco := range stats.Ecosystems {
			ecosystems = append(ecosystems, eco)
		}
		sort.Strings(ecosystems)
		for _, eco := range ecosystems {
			fmt.Fprintf(os.Stdout, "  %-12s %d\n", eco, stats.Ecosystems[eco])
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Flush buffers and reconcile storage indexes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, _, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		return s.Compact(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(compactCmd)
}
