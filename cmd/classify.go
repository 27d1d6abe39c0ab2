package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/hdx-tools/pcode-detector/internal/classifier"
	"github.com/hdx-tools/pcode-detector/internal/model"
)

var (
	classifyUpdate bool
	classifyFlag   bool
	classifyKeep   bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify <dataset> [resource-id...]",
	Short: "Classify the resources of one dataset",
	Long: `Classifies every resource of a dataset, or only the named resources,
and prints one verdict per line.

Examples:
  pcode-detector classify afg-admin-boundaries
  pcode-detector classify afg-admin-boundaries 2b3c... --update --flag`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ds, err := newCatalog(cfg).ShowDataset(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "classify: show dataset %s", args[0])
		}

		resources, err := selectResources(ds, args[1:])
		if err != nil {
			return err
		}

		env, err := initDetector(ctx, "classify", ds.Locations)
		if err != nil {
			return err
		}
		defer env.Close()

		opts := classifier.Options{Update: classifyUpdate, Flag: classifyFlag, KeepArtifacts: classifyKeep}
		var firstErr error
		for _, res := range resources {
			result, err := env.Classifier.Classify(ctx, ds, res, opts)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatVerdict(ds, res, result))
		}
		return firstErr
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyUpdate, "update", false, "write verdicts back to the catalog")
	classifyCmd.Flags().BoolVar(&classifyFlag, "flag", false, "send undetermined failures to the alert channel")
	classifyCmd.Flags().BoolVar(&classifyKeep, "keep-artifacts", false, "leave downloaded and extracted files on disk")
	rootCmd.AddCommand(classifyCmd)
}

// selectResources returns the dataset's resources, or the named ones in
// the order given.
func selectResources(ds model.Dataset, ids []string) ([]model.Resource, error) {
	if len(ids) == 0 {
		return ds.Resources, nil
	}
	out := make([]model.Resource, 0, len(ids))
	for _, id := range ids {
		res, ok := ds.Resource(id)
		if !ok {
			return nil, eris.Errorf("classify: dataset %s has no resource %s", ds.Name, id)
		}
		out = append(out, res)
	}
	return out, nil
}

func formatVerdict(ds model.Dataset, res model.Resource, result classifier.Result) string {
	line := fmt.Sprintf("%s\t%s\t%s", ds.Name, res.Name, result.Verdict)
	if result.Miscoded {
		line += "\tmiscoded"
	}
	if result.Err != nil {
		line += "\t" + result.Err.Error()
	}
	return line
}
