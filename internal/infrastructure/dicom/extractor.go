package dicom

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/contact-ajmal/radiant-insights/internal/core/domain"
	"github.com/contact-ajmal/radiant-insights/internal/core/ports"
)

// Extractor reads normalized attribute sets out of DICOM files. Absent
// elements yield zero values; only an unreadable file is an error.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) ExtractStudy(path string) (ports.StudyAttributes, error) {
	ds, err := parseHeader(path)
	if err != nil {
		return ports.StudyAttributes{}, err
	}
	return studyAttributes(ds), nil
}

func (e *Extractor) ExtractSeries(path string) (ports.SeriesAttributes, error) {
	ds, err := parseHeader(path)
	if err != nil {
		return ports.SeriesAttributes{}, err
	}
	return seriesAttributes(ds), nil
}

func (e *Extractor) ExtractImage(path string) (ports.ImageAttributes, error) {
	ds, err := parseHeader(path)
	if err != nil {
		return ports.ImageAttributes{}, err
	}
	return imageAttributes(ds), nil
}

func (e *Extractor) ExtractSubject(path string) (ports.SubjectAttributes, error) {
	ds, err := parseHeader(path)
	if err != nil {
		return ports.SubjectAttributes{}, err
	}
	return subjectAttributes(ds), nil
}

func parseHeader(path string) (dicom.Dataset, error) {
	ds, err := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if err != nil {
		return dicom.Dataset{}, fmt.Errorf("parse dicom header %s: %w", path, err)
	}
	return ds, nil
}

func studyAttributes(ds dicom.Dataset) ports.StudyAttributes {
	return ports.StudyAttributes{
		StudyInstanceUID:    stringValue(ds, tag.StudyInstanceUID),
		StudyDate:           dateValue(ds, tag.StudyDate),
		StudyTime:           stringValue(ds, tag.StudyTime),
		StudyDescription:    stringValue(ds, tag.StudyDescription),
		AccessionNumber:     stringValue(ds, tag.AccessionNumber),
		Modality:            domain.ParseModality(stringValue(ds, tag.Modality)),
		ReferringPhysician:  stringValue(ds, tag.ReferringPhysicianName),
		PerformingPhysician: stringValue(ds, tag.PerformingPhysicianName),
		InstitutionName:     stringValue(ds, tag.InstitutionName),
	}
}

func seriesAttributes(ds dicom.Dataset) ports.SeriesAttributes {
	return ports.SeriesAttributes{
		SeriesInstanceUID: stringValue(ds, tag.SeriesInstanceUID),
		SeriesNumber:      intValue(ds, tag.SeriesNumber),
		SeriesDescription: stringValue(ds, tag.SeriesDescription),
		Modality:          stringValue(ds, tag.Modality),
		BodyPartExamined:  stringValue(ds, tag.BodyPartExamined),
		ProtocolName:      stringValue(ds, tag.ProtocolName),
	}
}

func imageAttributes(ds dicom.Dataset) ports.ImageAttributes {
	return ports.ImageAttributes{
		SOPInstanceUID:   stringValue(ds, tag.SOPInstanceUID),
		InstanceNumber:   intValue(ds, tag.InstanceNumber),
		ImagePosition:    joinedValue(ds, tag.ImagePositionPatient),
		ImageOrientation: joinedValue(ds, tag.ImageOrientationPatient),
		SliceLocation:    floatValue(ds, tag.SliceLocation),
		SliceThickness:   floatValue(ds, tag.SliceThickness),
		PixelSpacing:     joinedValue(ds, tag.PixelSpacing),
		Rows:             intValue(ds, tag.Rows),
		Columns:          intValue(ds, tag.Columns),
		WindowCenter:     floatValue(ds, tag.WindowCenter),
		WindowWidth:      floatValue(ds, tag.WindowWidth),
	}
}

func subjectAttributes(ds dicom.Dataset) ports.SubjectAttributes {
	return ports.SubjectAttributes{
		SubjectID:   stringValue(ds, tag.PatientID),
		SubjectName: stringValue(ds, tag.PatientName),
		DateOfBirth: dateValue(ds, tag.PatientBirthDate),
		Gender:      parseGender(stringValue(ds, tag.PatientSex)),
	}
}

func parseGender(sex string) string {
	switch strings.ToUpper(sex) {
	case "M":
		return "male"
	case "F":
		return "female"
	case "O":
		return "other"
	default:
		return "unknown"
	}
}

// dateValue parses the 8-digit DICOM calendar format. Unparsable dates are
// absent, not errors.
func dateValue(ds dicom.Dataset, t tag.Tag) time.Time {
	raw := stringValue(ds, t)
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse("20060102", raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

func stringValue(ds dicom.Dataset, t tag.Tag) string {
	vals := stringValues(ds, t)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// joinedValue normalizes multi-component elements to one comma-delimited
// string for storage.
func joinedValue(ds dicom.Dataset, t tag.Tag) string {
	return strings.Join(stringValues(ds, t), ",")
}

func stringValues(ds dicom.Dataset, t tag.Tag) []string {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return nil
	}
	switch v := el.Value.GetValue().(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	case []int:
		out := make([]string, 0, len(v))
		for _, n := range v {
			out = append(out, strconv.Itoa(n))
		}
		return out
	case []float64:
		out := make([]string, 0, len(v))
		for _, f := range v {
			out = append(out, strconv.FormatFloat(f, 'f', -1, 64))
		}
		return out
	default:
		return nil
	}
}

func intValue(ds dicom.Dataset, t tag.Tag) int {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return 0
	}
	switch v := el.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case []string:
		if len(v) > 0 {
			n, convErr := strconv.Atoi(strings.TrimSpace(v[0]))
			if convErr == nil {
				return n
			}
		}
	}
	return 0
}

func floatValue(ds dicom.Dataset, t tag.Tag) float64 {
	el, err := ds.FindElementByTag(t)
	if err != nil || el == nil {
		return 0
	}
	switch v := el.Value.GetValue().(type) {
	case []float64:
		if len(v) > 0 {
			return v[0]
		}
	case []int:
		if len(v) > 0 {
			return float64(v[0])
		}
	case []string:
		if len(v) > 0 {
			f, convErr := strconv.ParseFloat(strings.TrimSpace(v[0]), 64)
			if convErr == nil {
				return f
			}
		}
	}
	return 0
}
