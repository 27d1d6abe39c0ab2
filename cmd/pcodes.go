package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hdx-tools/pcode-detector/internal/pcode"
)

var pcodesLocations []string

var pcodesCmd = &cobra.Command{
	Use:   "pcodes",
	Short: "Build the reference p-code index and summarise it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("pcodes"); err != nil {
			return err
		}
		locations := make([]string, 0, len(pcodesLocations))
		for _, l := range pcodesLocations {
			locations = append(locations, strings.ToUpper(strings.TrimSpace(l)))
		}

		idx, err := pcode.LoadIndex(cmd.Context(), newCatalog(cfg), newDownloader(cfg), reference(cfg), locations)
		if err != nil {
			return err
		}
		return writeIndexSummary(cmd.OutOrStdout(), idx)
	},
}

func init() {
	pcodesCmd.Flags().StringSliceVar(&pcodesLocations, "location", nil, "only index these ISO3 locations")
	rootCmd.AddCommand(pcodesCmd)
}

func writeIndexSummary(w io.Writer, idx *pcode.Index) error {
	for _, loc := range idx.Locations() {
		if _, err := fmt.Fprintf(w, "%s\t%d\n", loc, len(idx.Codes(loc))); err != nil {
			return err
		}
	}
	return nil
}
