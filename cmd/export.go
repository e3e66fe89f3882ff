package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/floorheights/datamodel/internal/exporter"
)

func exportCommand() *cobra.Command {
	opts := exporter.Options{}
	var bbox string
	cmd := &cobra.Command{
		Use:   "export-ogr-file",
		Short: "Export buildings and address points with fused attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := parseBBox(bbox)
			if err != nil {
				return err
			}
			opts.BBox = box

			rt, err := openRuntime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			counts, err := exporter.Export(opts, rt.store, rt.log)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d buildings and %d address points to %s\n",
				counts.Buildings, counts.AddressPoints, opts.Output)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Output, "output", "", "output path (.geojson or .gpkg)")
	cmd.Flags().StringVar(&bbox, "bbox", "", "restrict to minx,miny,maxx,maxy in the store CRS")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func parseBBox(s string) (*[4]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox wants minx,miny,maxx,maxy, got %q", s)
	}
	var box [4]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bbox wants minx,miny,maxx,maxy, got %q", s)
		}
		box[i] = v
	}
	return &box, nil
}
