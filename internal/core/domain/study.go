package domain

import "time"

type StudyStatus string

const (
	StudyPending    StudyStatus = "pending"
	StudyProcessing StudyStatus = "processing"
	StudyCompleted  StudyStatus = "completed"
	StudyFailed     StudyStatus = "failed"
	StudyArchived   StudyStatus = "archived"
)

type Modality string

const (
	ModalityCT    Modality = "CT"
	ModalityMRI   Modality = "MR"
	ModalityXR    Modality = "XR"
	ModalityUS    Modality = "US"
	ModalityOther Modality = "OTHER"
)

// ParseModality maps a DICOM modality code to the supported set.
// Unknown codes are not an error; they fold into ModalityOther.
func ParseModality(code string) Modality {
	switch code {
	case "CT":
		return ModalityCT
	case "MR":
		return ModalityMRI
	case "XR":
		return ModalityXR
	case "US":
		return ModalityUS
	default:
		return ModalityOther
	}
}

type Subject struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`
	CreatedAt   time.Time `json:"created_at"`
}

// Study is one imaging encounter for one subject. It exclusively owns its
// series; a non-owning PriorStudyID supports comparison workflows.
type Study struct {
	ID                  string      `json:"id"`
	StudyInstanceUID    string      `json:"study_instance_uid"`
	SubjectID           string      `json:"subject_id"`
	AccessionNumber     string      `json:"accession_number"`
	StudyDate           time.Time   `json:"study_date"`
	StudyTime           string      `json:"study_time"`
	StudyDescription    string      `json:"study_description"`
	Modality            Modality    `json:"modality"`
	ReferringPhysician  string      `json:"referring_physician"`
	PerformingPhysician string      `json:"performing_physician"`
	InstitutionName     string      `json:"institution_name"`
	Status              StudyStatus `json:"status"`
	PriorStudyID        string      `json:"prior_study_id,omitempty"`
	Series              []Series    `json:"series,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

type Series struct {
	ID                string    `json:"id"`
	SeriesInstanceUID string    `json:"series_instance_uid"`
	StudyID           string    `json:"study_id"`
	SeriesNumber      int       `json:"series_number"`
	SeriesDescription string    `json:"series_description"`
	Modality          string    `json:"modality"`
	BodyPartExamined  string    `json:"body_part_examined"`
	ProtocolName      string    `json:"protocol_name"`
	ImageCount        int       `json:"image_count"`
	Images            []Image   `json:"images,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Image ordering within a series is total: ascending InstanceNumber, ties
// broken by original upload order.
type Image struct {
	ID               string    `json:"id"`
	SOPInstanceUID   string    `json:"sop_instance_uid"`
	SeriesID         string    `json:"series_id"`
	InstanceNumber   int       `json:"instance_number"`
	ImagePosition    string    `json:"image_position"`
	ImageOrientation string    `json:"image_orientation"`
	SliceLocation    float64   `json:"slice_location"`
	SliceThickness   float64   `json:"slice_thickness"`
	PixelSpacing     string    `json:"pixel_spacing"`
	Rows             int       `json:"rows"`
	Columns          int       `json:"columns"`
	WindowCenter     float64   `json:"window_center"`
	WindowWidth      float64   `json:"window_width"`
	StoragePath      string    `json:"storage_path"`
	ThumbnailPath    string    `json:"thumbnail_path,omitempty"`
	FileSize         int64     `json:"file_size"`
	CreatedAt        time.Time `json:"created_at"`
}

// IngestSummary is the caller-facing result of one upload batch.
type IngestSummary struct {
	StudyID          string `json:"study_id"`
	StudyInstanceUID string `json:"study_instance_uid"`
	SeriesCount      int    `json:"series_count"`
	TotalImages      int    `json:"total_images"`
	Status           string `json:"status"`
}
