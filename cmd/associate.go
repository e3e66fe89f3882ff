package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func joinCommand() *cobra.Command {
	opts := ingest.DefaultAssociateOptions()
	cmd := &cobra.Command{
		Use:   "join-address-buildings",
		Short: "Associate stored address points with the buildings they fall in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.JoinAddressBuildings(opts, rt.store, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Cadastre, "cadastre", "", "cadastral parcel source enabling the parcel fallback")
	cmd.Flags().StringVar(&opts.CadastreLayer, "cadastre-layer", "", "layer name for multi-layer cadastre sources")
	cmd.Flags().IntVar(&opts.AssumeEPSG, "assume-epsg", 0, "EPSG code for sources that do not declare one")
	cmd.Flags().StringSliceVar(&opts.ParcelGeocodeTypes, "parcel-geocode-types", opts.ParcelGeocodeTypes,
		"geocode classifications treated as parcel-level centroids")
	return cmd
}
