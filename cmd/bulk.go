package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func mainMethodCommand() *cobra.Command {
	return bulkCommand("ingest-main-method-measures",
		"Load main methodology outputs keyed by building id",
		ingest.DefaultMainMethodOptions())
}

func gapFillCommand() *cobra.Command {
	return bulkCommand("ingest-gap-fill-measures",
		"Load gap-fill outputs keyed by building id",
		ingest.DefaultGapFillOptions())
}

// bulkCommand builds the shared shape of the pre-joined measurement
// commands; they differ only in their default method/dataset labels.
func bulkCommand(use, short string, opts ingest.BulkOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestBulkMeasures(opts, rt.store, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "measurement table (CSV, XLSX or parquet)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "workbook sheet name (XLSX sources)")
	cmd.Flags().StringVar(&opts.BuildingField, "building-field", opts.BuildingField, "column carrying the building id")
	cmd.Flags().StringVar(&opts.StoreyField, "storey-field", opts.StoreyField, "column carrying the storey number")
	cmd.Flags().StringVar(&opts.HeightField, "height-field", opts.HeightField, "column carrying the floor height in metres")
	cmd.Flags().StringVar(&opts.ConfidenceField, "confidence-field", opts.ConfidenceField, "column carrying the confidence score")
	cmd.Flags().StringVar(&opts.MethodName, "method-name", opts.MethodName, "measurement method label")
	cmd.Flags().StringVar(&opts.DatasetName, "dataset-name", opts.DatasetName, "dataset label")
	cmd.Flags().StringVar(&opts.DatasetDesc, "dataset-description", "", "dataset description")
	cmd.Flags().StringVar(&opts.DatasetSource, "dataset-source", "", "dataset provenance note")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
