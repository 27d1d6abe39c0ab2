package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hdx-tools/pcode-detector/internal/model"
	"github.com/hdx-tools/pcode-detector/internal/store"
)

var (
	verdictsFilter  string
	verdictsDataset string
	verdictsSince   time.Duration
	verdictsLimit   int
	verdictsLatest  string
)

var verdictsCmd = &cobra.Command{
	Use:   "verdicts",
	Short: "List recorded classifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "verdicts: open store")
		}
		defer st.Close() //nolint:errcheck

		if verdictsLatest != "" {
			rec, err := st.Latest(ctx, verdictsLatest)
			if err != nil {
				return err
			}
			if rec == nil {
				return eris.Errorf("verdicts: no verdict recorded for resource %s", verdictsLatest)
			}
			return writeVerdicts(cmd.OutOrStdout(), []store.Record{*rec})
		}

		filter := store.Filter{
			Verdict:     model.Verdict(verdictsFilter),
			DatasetName: verdictsDataset,
			Limit:       verdictsLimit,
		}
		if verdictsSince > 0 {
			filter.Since = time.Now().Add(-verdictsSince)
		}
		recs, err := st.List(ctx, filter)
		if err != nil {
			return err
		}
		return writeVerdicts(cmd.OutOrStdout(), recs)
	},
}

func init() {
	verdictsCmd.Flags().StringVar(&verdictsFilter, "verdict", "", "only show coded, not_coded or undetermined")
	verdictsCmd.Flags().StringVar(&verdictsDataset, "dataset", "", "only show one dataset")
	verdictsCmd.Flags().DurationVar(&verdictsSince, "since", 0, "only show verdicts newer than this (e.g. 24h)")
	verdictsCmd.Flags().IntVar(&verdictsLimit, "limit", 50, "max rows")
	verdictsCmd.Flags().StringVar(&verdictsLatest, "resource", "", "show only the latest verdict for this resource id")
	rootCmd.AddCommand(verdictsCmd)
}

func writeVerdicts(w io.Writer, recs []store.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tDATASET\tRESOURCE\tVERDICT\tUPDATED\tERROR")
	for _, r := range recs {
		verdict := string(r.Verdict)
		if r.Miscoded {
			verdict += " (miscoded)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			r.CreatedAt.Format(time.RFC3339), r.DatasetName, r.ResourceName, verdict, r.Updated, r.Error)
	}
	return tw.Flush()
}
