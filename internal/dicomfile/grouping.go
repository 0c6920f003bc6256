package dicomfile

import (
	"sort"
	"strconv"

	"github.com/telepost/dicom-transfer/internal/models"
)

// UnknownKey groups records that carry neither a usable patient nor series
// identity.
const UnknownKey = "Unknown"

// Group folds metadata records into the patient -> series tree. Patients
// are keyed by patient ID, falling back to patient name; series by series
// instance UID. Output ordering is deterministic regardless of input
// order: patients by display name ascending, series by numeric series
// number ascending with non-numeric numbers treated as 0. Equal keys keep
// their first-seen relative order.
func Group(records []models.MetadataRecord) []models.PatientGroup {
	patients := make(map[string]*models.PatientGroup)
	seriesByPatient := make(map[string]map[string]*models.SeriesGroup)
	var patientOrder []string
	seriesOrder := make(map[string][]string)

	for _, rec := range records {
		patientKey := rec.PatientID
		if patientKey == "" {
			patientKey = rec.PatientName
		}
		if patientKey == "" {
			patientKey = UnknownKey
		}
		seriesKey := rec.SeriesInstanceUID
		if seriesKey == "" {
			seriesKey = UnknownKey
		}

		if _, ok := patients[patientKey]; !ok {
			patients[patientKey] = &models.PatientGroup{
				ID:        patientKey,
				Name:      rec.PatientName,
				PatientID: rec.PatientID,
				BirthDate: rec.PatientBirthDate,
				Sex:       rec.PatientSex,
			}
			seriesByPatient[patientKey] = make(map[string]*models.SeriesGroup)
			patientOrder = append(patientOrder, patientKey)
		}

		series := seriesByPatient[patientKey]
		if _, ok := series[seriesKey]; !ok {
			series[seriesKey] = &models.SeriesGroup{
				ID:                seriesKey,
				SeriesInstanceUID: rec.SeriesInstanceUID,
				Description:       rec.SeriesDescription,
				Modality:          rec.Modality,
				SeriesNumber:      rec.SeriesNumber,
				StudyInstanceUID:  rec.StudyInstanceUID,
				StudyDescription:  rec.StudyDescription,
				StudyDate:         rec.StudyDate,
				BodyPart:          rec.BodyPartExamined,
				Institution:       rec.InstitutionName,
			}
			seriesOrder[patientKey] = append(seriesOrder[patientKey], seriesKey)
		}

		sg := series[seriesKey]
		sg.Files = append(sg.Files, rec)
		sg.InstanceCount++
	}

	result := make([]models.PatientGroup, 0, len(patientOrder))
	for _, pk := range patientOrder {
		patient := patients[pk]
		for _, sk := range seriesOrder[pk] {
			patient.Series = append(patient.Series, *seriesByPatient[pk][sk])
		}
		sort.SliceStable(patient.Series, func(i, j int) bool {
			return seriesSortKey(patient.Series[i].SeriesNumber) < seriesSortKey(patient.Series[j].SeriesNumber)
		})
		result = append(result, *patient)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})

	return result
}

// seriesSortKey parses the series number; empty or non-numeric values
// sort as 0.
func seriesSortKey(seriesNumber string) int {
	n, err := strconv.Atoi(seriesNumber)
	if err != nil {
		return 0
	}
	return n
}
