package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func validationCommand() *cobra.Command {
	opts := ingest.DefaultValidationOptions()
	cmd := &cobra.Command{
		Use:   "ingest-validation-measures",
		Short: "Load surveyed floor heights resolved to buildings spatially",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestValidationMeasures(opts, rt.store, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "survey table (CSV, XLSX or parquet)")
	cmd.Flags().StringVar(&opts.Sheet, "sheet", "", "workbook sheet name (XLSX sources)")
	cmd.Flags().StringVar(&opts.FieldMapPath, "field-map", "", "YAML file mapping survey columns to measure fields")
	cmd.Flags().StringVar(&opts.StepCountField, "step-count-field", "", "override the step-count column name")
	cmd.Flags().IntVar(&opts.AssumeEPSG, "assume-epsg", opts.AssumeEPSG, "EPSG code of the survey coordinates")
	cmd.Flags().StringVar(&opts.Cadastre, "cadastre", "", "cadastral parcel source enabling the parcel fallback")
	cmd.Flags().StringVar(&opts.CadastreLayer, "cadastre-layer", "", "layer name for multi-layer cadastre sources")
	cmd.Flags().BoolVar(&opts.FlattenCadastre, "flatten-cadastre", false, "union the cadastre before resolving against it")
	cmd.Flags().Float64Var(&opts.StepSize, "step-size", opts.StepSize, "riser height in metres for step-counted records")
	cmd.Flags().BoolVar(&opts.SplitByStep, "split-by-step", false, "attribute whole-step heights to the step-counted method")
	cmd.Flags().StringVar(&opts.MethodName, "method-name", opts.MethodName, "method label for measured heights")
	cmd.Flags().StringVar(&opts.StepMethodName, "step-method-name", opts.StepMethodName, "method label for step-counted heights")
	cmd.Flags().StringVar(&opts.DatasetName, "dataset-name", opts.DatasetName, "dataset label")
	cmd.Flags().StringVar(&opts.DatasetDesc, "dataset-description", "", "dataset description")
	cmd.Flags().StringVar(&opts.DatasetSource, "dataset-source", "", "dataset provenance note")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
