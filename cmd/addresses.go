package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func addressesCommand() *cobra.Command {
	opts := ingest.DefaultAddressOptions()
	cmd := &cobra.Command{
		Use:   "ingest-address-points",
		Short: "Load an address registry into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestAddressPoints(opts, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Input, "input", "", "address source (GeoJSON, shapefile, GeoPackage, GeoParquet, CSV or a directory of these)")
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "layer name for multi-layer sources")
	cmd.Flags().StringVar(&opts.GnafField, "gnaf-field", opts.GnafField, "column carrying the registry identifier")
	cmd.Flags().StringVar(&opts.AddressField, "address-field", opts.AddressField, "column carrying the display address")
	cmd.Flags().StringVar(&opts.GeocodeTypeField, "geocode-type-field", opts.GeocodeTypeField, "column carrying the geocode classification")
	cmd.Flags().StringVar(&opts.PrimarySecondaryField, "primary-secondary-field", opts.PrimarySecondaryField, "column flagging primary/secondary addresses")
	cmd.Flags().StringVar(&opts.XField, "x-field", "", "CSV sources: easting/longitude column")
	cmd.Flags().StringVar(&opts.YField, "y-field", "", "CSV sources: northing/latitude column")
	cmd.Flags().IntVar(&opts.AssumeEPSG, "assume-epsg", 0, "EPSG code for sources that do not declare one")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}
