package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func nexisCommand() *cobra.Command {
	opts := ingest.DefaultNexisOptions()
	cmd := &cobra.Command{
		Use:   "ingest-nexis-measures",
		Short: "Load modelled floor heights joined to buildings by registry id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("confidence") {
				v, err := cmd.Flags().GetFloat64("confidence")
				if err != nil {
					return err
				}
				opts.Confidence = &v
			}
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestNexisMeasures(opts, rt.store, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "measurement table (CSV, XLSX or parquet)")
	cmd.Flags().StringVar(&opts.GnafField, "gnaf-field", opts.GnafField, "column carrying the registry identifier")
	cmd.Flags().StringVar(&opts.HeightField, "height-field", opts.HeightField, "column carrying the floor height in metres")
	cmd.Flags().IntVar(&opts.Storey, "storey", opts.Storey, "storey every measure is recorded against")
	cmd.Flags().Float64("confidence", 0, "confidence score stamped on every measure")
	cmd.Flags().StringVar(&opts.MethodName, "method-name", opts.MethodName, "measurement method label")
	cmd.Flags().StringVar(&opts.DatasetName, "dataset-name", opts.DatasetName, "dataset label")
	cmd.Flags().StringVar(&opts.DatasetDesc, "dataset-description", "", "dataset description")
	cmd.Flags().StringVar(&opts.DatasetSource, "dataset-source", "", "dataset provenance note")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
