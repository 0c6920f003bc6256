package dicomfile

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"20230415", "2023-04-15"},
		{"19991231", "1999-12-31"},
		{"", ""},
		{"2023", "2023"},
		{"2023-04-15", "2023-04-15"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeDate(tt.in))
	}
}

func TestParseExtractsMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.dcm")
	writeFixture(t, path, defaultFixture())

	rec, err := NewParser().Parse(path)
	require.NoError(t, err)
	assert.Equal(t, path, rec.FilePath)
	assert.Equal(t, "Adams^Anna", rec.PatientName)
	assert.Equal(t, "P1", rec.PatientID)
	assert.Equal(t, "2023-04-15", rec.PatientBirthDate)
	assert.Equal(t, "1.2.826.0.1.3680043.8.498.1", rec.StudyInstanceUID)
	assert.Equal(t, "1.2.826.0.1.3680043.8.498.1.1", rec.SeriesInstanceUID)
	assert.Equal(t, "1", rec.SeriesNumber)
	assert.Equal(t, "OT", rec.Modality)
	assert.Equal(t, "1.2.826.0.1.3680043.8.498.1.1.1", rec.SOPInstanceUID)
}

func TestParseNotDICOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	// Long enough that the 128-byte preamble reads fine and the magic
	// word check is what fails.
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("not dicom "), 40), 0o644))

	rec, err := NewParser().Parse(path)
	assert.Nil(t, rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotDICOM))
}

func TestParseAllZeroFileNotDICOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeros.dcm")
	require.NoError(t, os.WriteFile(path, make([]byte, 300), 0o644))

	rec, err := NewParser().Parse(path)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNotDICOM)
}

func TestParseShortFileNotDICOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.dcm")
	require.NoError(t, os.WriteFile(path, []byte("DICM"), 0o644))

	rec, err := NewParser().Parse(path)
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, ErrNotDICOM)
}

func TestParseMissingFile(t *testing.T) {
	rec, err := NewParser().Parse(filepath.Join(t.TempDir(), "missing.dcm"))
	assert.Nil(t, rec)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotDICOM))
}
