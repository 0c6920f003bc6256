package dicomfile

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const implicitVRLittleEndian = "1.2.840.10008.1.2"

// fixtureIdentity fills the DICOM header of a generated test file.
type fixtureIdentity struct {
	transferSyntax string
	patientName    string
	patientID      string
	birthDate      string
	studyUID       string
	seriesUID      string
	seriesNumber   string
	sopUID         string
	modality       string
}

func defaultFixture() fixtureIdentity {
	return fixtureIdentity{
		transferSyntax: ExplicitVRLittleEndian,
		patientName:    "Adams^Anna",
		patientID:      "P1",
		birthDate:      "20230415",
		studyUID:       "1.2.826.0.1.3680043.8.498.1",
		seriesUID:      "1.2.826.0.1.3680043.8.498.1.1",
		seriesNumber:   "1",
		sopUID:         "1.2.826.0.1.3680043.8.498.1.1.1",
		modality:       "OT",
	}
}

func mustElement(t *testing.T, tg tag.Tag, value interface{}) *dicom.Element {
	t.Helper()
	elem, err := dicom.NewElement(tg, value)
	require.NoError(t, err)
	return elem
}

// writeFixture generates a minimal but complete DICOM file at path.
func writeFixture(t *testing.T, path string, id fixtureIdentity) {
	t.Helper()
	ds := dicom.Dataset{Elements: []*dicom.Element{
		mustElement(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(t, tag.MediaStorageSOPInstanceUID, []string{id.sopUID}),
		mustElement(t, tag.TransferSyntaxUID, []string{id.transferSyntax}),
		mustElement(t, tag.SOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.7"}),
		mustElement(t, tag.SOPInstanceUID, []string{id.sopUID}),
		mustElement(t, tag.Modality, []string{id.modality}),
		mustElement(t, tag.PatientName, []string{id.patientName}),
		mustElement(t, tag.PatientID, []string{id.patientID}),
		mustElement(t, tag.PatientBirthDate, []string{id.birthDate}),
		mustElement(t, tag.StudyInstanceUID, []string{id.studyUID}),
		mustElement(t, tag.SeriesInstanceUID, []string{id.seriesUID}),
		mustElement(t, tag.SeriesNumber, []string{id.seriesNumber}),
	}}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, dicom.Write(f, ds, dicom.SkipVRVerification()))
}
