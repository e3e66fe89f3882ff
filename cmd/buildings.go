package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func buildingsCommand() *cobra.Command {
	opts := ingest.BuildingOptions{MinAreaM2: ingest.DefaultMinAreaM2}
	cmd := &cobra.Command{
		Use:   "ingest-buildings",
		Short: "Load building footprints, split by cadastre and enrich from DEM and zoning",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestBuildings(opts, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Footprints, "footprints", "", "building footprint source")
	cmd.Flags().StringVar(&opts.FootprintLayer, "footprint-layer", "", "layer name for multi-layer footprint sources")
	cmd.Flags().StringVar(&opts.DEM, "dem", "", "elevation raster (GeoTIFF or VRT mosaic)")
	cmd.Flags().StringVar(&opts.Cadastre, "cadastre", "", "cadastral parcel source used to split shared footprints")
	cmd.Flags().StringVar(&opts.CadastreLayer, "cadastre-layer", "", "layer name for multi-layer cadastre sources")
	cmd.Flags().StringVar(&opts.Zoning, "zoning", "", "land zoning polygon source")
	cmd.Flags().StringVar(&opts.ZoningLayer, "zoning-layer", "", "layer name for multi-layer zoning sources")
	cmd.Flags().StringVar(&opts.ZoneField, "zone-field", "", "zoning attribute column (required with --zoning)")
	cmd.Flags().Float64Var(&opts.MinAreaM2, "min-area", ingest.DefaultMinAreaM2, "drop fragments smaller than this many square metres")
	cmd.Flags().IntVar(&opts.AssumeEPSG, "assume-epsg", 0, "EPSG code for sources that do not declare one")
	_ = cmd.MarkFlagRequired("footprints")
	return cmd
}
