package dicom

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// Organizer partitions an upload batch by SeriesInstanceUID using
// header-only parses and orders each series ascending by InstanceNumber.
// Files without an instance number sort as 0, which may interleave with
// genuine zero-numbered instances; ties keep original batch order.
type Organizer struct {
	logger *slog.Logger
}

func NewOrganizer(logger *slog.Logger) *Organizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Organizer{logger: logger}
}

type memberFile struct {
	file     ports.UploadedFile
	instance int
}

func (o *Organizer) Organize(ctx context.Context, files []ports.UploadedFile) (ports.SeriesBatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members := make(map[string][]memberFile)
	parsed := 0
	for _, f := range files {
		ds, err := dicom.ParseFile(f.TempPath, nil, dicom.SkipPixelData())
		if err != nil {
			// An unparsable file is excluded, not fatal to the batch.
			o.logger.Warn("skipping unparsable file", "filename", f.Filename, "error", err)
			continue
		}
		seriesUID := stringValue(ds, tag.SeriesInstanceUID)
		members[seriesUID] = append(members[seriesUID], memberFile{
			file:     f,
			instance: intValue(ds, tag.InstanceNumber),
		})
		parsed++
	}

	if parsed == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "organize series",
			fmt.Errorf("no parseable files in batch of %d", len(files)))
	}

	batch := make(ports.SeriesBatch, len(members))
	for seriesUID, list := range members {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].instance < list[j].instance
		})
		ordered := make([]ports.UploadedFile, len(list))
		for i, m := range list {
			ordered[i] = m.file
		}
		batch[seriesUID] = ordered
	}
	return batch, nil
}
