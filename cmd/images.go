package cmd

import (
	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/ingest"
)

func imagesCommand() *cobra.Command {
	opts := ingest.ImageOptions{
		MethodName: "Main methodology",
		ChunkSize:  ingest.DefaultImageChunkSize,
	}
	cmd := &cobra.Command{
		Use:   "ingest-main-method-images",
		Short: "Attach imagery files to measures that lack them, keyed by measure id",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStoreCommand(cmd, func(rt *runtime) (*ingest.Report, error) {
				return ingest.IngestImages(opts, rt.store, rt.writer(), rt.log)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "images", "", "directory of image files named by measure id")
	cmd.Flags().StringVar(&opts.MethodName, "method-name", opts.MethodName, "method whose measures receive imagery")
	cmd.Flags().StringVar(&opts.ImageType, "image-type", "", "artifact tag, e.g. panorama or lidar")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", opts.ChunkSize, "measures fetched and written per batch")
	_ = cmd.MarkFlagRequired("images")
	_ = cmd.MarkFlagRequired("image-type")
	return cmd
}
