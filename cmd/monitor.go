package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hdx-tools/pcode-detector/internal/monitoring"
	"github.com/hdx-tools/pcode-detector/internal/notify"
	"github.com/hdx-tools/pcode-detector/internal/store"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Report recent verdict counts and alert on a high undetermined rate",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("monitor"); err != nil {
			return err
		}

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "monitor: open store")
		}
		defer st.Close() //nolint:errcheck

		sink := notify.New(cfg.Slack.Token, cfg.Slack.Channel, cfg.Slack.BaseURL)
		checker := monitoring.NewChecker(
			monitoring.NewCollector(st),
			monitoring.NewAlerter(cfg.Monitor, sink),
			cfg.Monitor,
		)
		snap, alerts := checker.Check(ctx)
		if snap == nil {
			return eris.New("monitor: could not collect verdict counts")
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "last %dh: %d classified, %d coded, %d not coded, %d undetermined (%.1f%%)\n",
			snap.LookbackHours, snap.Total, snap.Coded, snap.NotCoded, snap.Undetermined, snap.UndeterminedRate*100)
		for _, a := range alerts {
			fmt.Fprintf(out, "ALERT %s: %s\n", a.Type, a.Message)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
