package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/floorheights/datamodel/internal/datamodel"
)

// DefaultImageChunkSize bounds how many image files are held in memory
// between flushes.
const DefaultImageChunkSize = 256

// ImageOptions configure one imagery attachment run.
type ImageOptions struct {
	// Dir holds one file per measure, named by the measure id.
	Dir string
	// MethodName selects which method's measures receive imagery.
	MethodName string
	// ImageType tags the artifacts, e.g. "panorama" or "lidar".
	ImageType string
	ChunkSize int
}

// IngestImages attaches image files to the measures of a method that
// have none yet. Files are keyed by measure id; a measure with no file
// on disk is counted and skipped. Images are read and flushed in
// fixed-size chunks so a large panorama set never sits in memory at
// once.
func IngestImages(opts ImageOptions, store *datamodel.Store, w *datamodel.Writer, log *zap.Logger) (*Report, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultImageChunkSize
	}
	report := NewReport()

	measureIDs, err := store.MeasureIDsWithoutImages(opts.MethodName)
	if err != nil {
		return nil, err
	}
	report.Add("measures without imagery", len(measureIDs))

	entries, err := os.ReadDir(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("read image directory: %w", err)
	}
	// Key each file by its stem so measure ids resolve regardless of
	// image container extension.
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		files[strings.ToLower(stem)] = e.Name()
	}
	report.Add("image files found", len(files))

	report.Touch("measures with no image file")
	report.Touch("images attached")
	for start := 0; start < len(measureIDs); start += opts.ChunkSize {
		end := start + opts.ChunkSize
		if end > len(measureIDs) {
			end = len(measureIDs)
		}
		for _, id := range measureIDs[start:end] {
			name, ok := files[strings.ToLower(id.String())]
			if !ok {
				report.Add("measures with no image file", 1)
				continue
			}
			data, err := os.ReadFile(filepath.Join(opts.Dir, name))
			if err != nil {
				return nil, fmt.Errorf("read image %s: %w", name, err)
			}
			img := datamodel.FloorMeasureImage{
				Filename:  name,
				Image:     data,
				ImageType: opts.ImageType,
			}
			if err := w.AddImage(img, id); err != nil {
				return nil, err
			}
			report.Add("images attached", 1)
		}
		// Flush per chunk to bound memory, not just on writer fill.
		if err := w.Flush(); err != nil {
			return nil, err
		}
	}
	log.Info("image attachment finished",
		zap.Int("attached", w.Counts().Images),
		zap.Int("missing", report.Count("measures with no image file")))
	return report, nil
}
