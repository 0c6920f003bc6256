package dicomfile

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func transferSyntaxOf(t *testing.T, path string) string {
	t.Helper()
	ds, err := dicom.ParseFile(path, nil)
	require.NoError(t, err)
	elem, err := ds.FindElementByTag(tag.TransferSyntaxUID)
	require.NoError(t, err)
	values, ok := elem.Value.GetValue().([]string)
	require.True(t, ok)
	require.NotEmpty(t, values)
	return values[0]
}

func TestNormalizeCanonicalPassthrough(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.dcm")
	writeFixture(t, path, defaultFixture())

	assert.Equal(t, path, Normalize(path))

	// No sibling copy appears for an already canonical file.
	_, err := os.Stat(filepath.Join(dir, NormalizedPrefix+"a.dcm"))
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeRewritesNonCanonical(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.dcm")
	id := defaultFixture()
	id.transferSyntax = implicitVRLittleEndian
	writeFixture(t, path, id)

	got := Normalize(path)
	assert.Equal(t, filepath.Join(dir, NormalizedPrefix+"a.dcm"), got)
	assert.Equal(t, ExplicitVRLittleEndian, transferSyntaxOf(t, got))

	// The original keeps its syntax and stays in place.
	assert.Equal(t, implicitVRLittleEndian, transferSyntaxOf(t, path))

	// The patient identity survives the rewrite.
	rec, err := NewParser().Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "Adams^Anna", rec.PatientName)
	assert.Equal(t, id.seriesUID, rec.SeriesInstanceUID)
}

func TestNormalizeUnparsableFallsBackToOriginal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.dcm")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xde, 0xad}, 200), 0o644))

	got := Normalize(path)
	assert.Equal(t, path, got)

	// The fallback must not leave a partial normalized copy behind.
	_, err := os.Stat(filepath.Join(dir, NormalizedPrefix+"broken.dcm"))
	assert.True(t, os.IsNotExist(err))
}

func TestNormalizeMissingFileFallsBackToOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.dcm")
	assert.Equal(t, path, Normalize(path))
}
