package models

// MetadataRecord is the flat metadata extracted from one DICOM file. It is
// created by the parser and immutable afterwards; FilePath points into the
// import session's temporary directory.
type MetadataRecord struct {
	FilePath string `json:"file_path"`

	PatientName      string `json:"patient_name"`
	PatientID        string `json:"patient_id"`
	PatientBirthDate string `json:"patient_birth_date"`
	PatientSex       string `json:"patient_sex"`

	StudyInstanceUID string `json:"study_instance_uid"`
	StudyDescription string `json:"study_description"`
	StudyDate        string `json:"study_date"`

	SeriesInstanceUID string `json:"series_instance_uid"`
	SeriesDescription string `json:"series_description"`
	SeriesNumber      string `json:"series_number"`
	Modality          string `json:"modality"`

	InstanceNumber string `json:"instance_number"`
	SOPInstanceUID string `json:"sop_instance_uid"`

	BodyPartExamined string `json:"body_part_examined"`
	InstitutionName  string `json:"institution_name"`
	Manufacturer     string `json:"manufacturer"`

	Rows    int `json:"rows"`
	Columns int `json:"columns"`
}

// SeriesGroup is one series within a patient, with its constituent files.
type SeriesGroup struct {
	ID                string           `json:"id"`
	SeriesInstanceUID string           `json:"series_instance_uid"`
	Description       string           `json:"description"`
	Modality          string           `json:"modality"`
	SeriesNumber      string           `json:"series_number"`
	StudyInstanceUID  string           `json:"study_instance_uid"`
	StudyDescription  string           `json:"study_description"`
	StudyDate         string           `json:"study_date"`
	BodyPart          string           `json:"body_part"`
	Institution       string           `json:"institution"`
	Files             []MetadataRecord `json:"files"`
	InstanceCount     int              `json:"instance_count"`
}

// PatientGroup is the top level of the grouped import result.
type PatientGroup struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	PatientID string        `json:"patient_id"`
	BirthDate string        `json:"birth_date"`
	Sex       string        `json:"sex"`
	Series    []SeriesGroup `json:"series"`
}

// ImportSummary accompanies the patient tree in the import response.
type ImportSummary struct {
	FilesProcessed int      `json:"files_processed"`
	PatientsFound  int      `json:"patients_found"`
	SeriesFound    int      `json:"series_found"`
	Errors         []string `json:"errors"`
}

// ImportResult is the full import response payload.
type ImportResult struct {
	Patients []PatientGroup `json:"patients"`
	Summary  ImportSummary  `json:"summary"`
}

// SeriesTransferRequest selects one series for sending to one destination.
type SeriesTransferRequest struct {
	SeriesID      string `json:"seriesId"`
	DestinationID string `json:"destination"`
}

// SendRequest is the send endpoint payload.
type SendRequest struct {
	SeriesToSend []SeriesTransferRequest `json:"seriesToSend"`
}

// SeriesStatus is one row of the transfer-status response.
type SeriesStatus struct {
	ID                string  `json:"id"`
	Status            string  `json:"status"`
	Message           string  `json:"message"`
	Timestamp         string  `json:"timestamp"`
	CompletedAt       *string `json:"completed_at,omitempty"`
	Destination       string  `json:"destination"`
	PatientName       string  `json:"patient_name"`
	SeriesDescription string  `json:"series_description"`
}

// ProbeResult reports the outcome of a destination connectivity test. It is
// always populated; probe failures are data, not errors.
type ProbeResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Details      string `json:"details"`
	ResponseTime *int64 `json:"response_time,omitempty"`
}
