package dicom

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"golang.org/x/image/draw"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
)

// Thumbnailer renders the first frame of a DICOM file as a square grayscale
// PNG. The raw sample range is rescaled to 0-255 with min-max normalization;
// a flat frame (min == max) is an error, never a panic.
type Thumbnailer struct {
	size int
}

func NewThumbnailer(size int) *Thumbnailer {
	if size <= 0 {
		size = 256
	}
	return &Thumbnailer{size: size}
}

func (t *Thumbnailer) Derive(path string) ([]byte, error) {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse dicom %s: %w", path, err)
	}

	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "derive thumbnail", fmt.Errorf("no pixel data: %w", err))
	}
	info := dicom.MustGetPixelDataInfo(el.Value)
	if len(info.Frames) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "derive thumbnail", fmt.Errorf("pixel data has no frames"))
	}

	native, err := info.Frames[0].GetNativeFrame()
	if err != nil {
		return nil, fmt.Errorf("decode native frame: %w", err)
	}
	if native.Rows <= 0 || native.Cols <= 0 || len(native.Data) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "derive thumbnail", fmt.Errorf("empty frame"))
	}

	gray, err := normalizeFrame(native.Data, native.Rows, native.Cols)
	if err != nil {
		return nil, err
	}

	scaled := image.NewGray(image.Rect(0, 0, t.size, t.size))
	draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), gray, gray.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// normalizeFrame linearly rescales the first sample of every pixel to the
// 0-255 range using the frame's own min/max. Pixels with no samples are
// skipped everywhere; they render as black.
func normalizeFrame(data [][]int, rows, cols int) (*image.Gray, error) {
	var minSample, maxSample int
	seeded := false
	for _, px := range data {
		if len(px) == 0 {
			continue
		}
		s := px[0]
		if !seeded {
			minSample, maxSample = s, s
			seeded = true
			continue
		}
		if s < minSample {
			minSample = s
		}
		if s > maxSample {
			maxSample = s
		}
	}
	if !seeded {
		return nil, domain.WrapError(domain.ErrInvalidInput, "derive thumbnail",
			fmt.Errorf("frame carries no samples"))
	}
	if maxSample == minSample {
		return nil, domain.WrapError(domain.ErrInvalidInput, "derive thumbnail",
			fmt.Errorf("uniform pixel values (%d), nothing to normalize", minSample))
	}

	gray := image.NewGray(image.Rect(0, 0, cols, rows))
	span := float64(maxSample - minSample)
	for i, px := range data {
		if i >= rows*cols {
			break
		}
		if len(px) == 0 {
			continue
		}
		v := uint8(float64(px[0]-minSample) / span * 255.0)
		gray.Pix[i] = v
	}
	return gray, nil
}
