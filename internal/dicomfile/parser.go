package dicomfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/telepost/dicom-transfer/internal/models"
)

// ErrNotDICOM marks files that are not recognizable as DICOM at all, as
// opposed to DICOM files that fail to parse for other reasons.
var ErrNotDICOM = errors.New("not a DICOM file")

// A DICOM file starts with a 128-byte preamble followed by "DICM".
const preambleLength = 128

var dicmMagic = []byte("DICM")

// Parser extracts a flat metadata record from a DICOM file.
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse reads one DICOM file and extracts its metadata. Missing elements
// default to empty values and never fail the parse. Pixel data is skipped;
// only the header is read.
func (p *Parser) Parse(path string) (rec *models.MetadataRecord, err error) {
	// The underlying reader can panic on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			rec = nil
			err = fmt.Errorf("parsing %s: %v", path, r)
		}
	}()

	// The library does not fail cleanly on non-DICOM input; it tries to
	// infer a transfer syntax instead. Check the DICM marker ourselves so
	// junk is classified as such and not as a parse error.
	if err := checkMagicWord(path); err != nil {
		if errors.Is(err, ErrNotDICOM) {
			log.Warn().Str("file", path).Msg("Invalid DICOM file")
		}
		return nil, err
	}

	ds, perr := dicom.ParseFile(path, nil, dicom.SkipPixelData())
	if perr != nil {
		log.Error().Err(perr).Str("file", path).Msg("Error parsing DICOM file")
		return nil, fmt.Errorf("parsing %s: %w", path, perr)
	}
	if len(ds.Elements) == 0 {
		log.Warn().Str("file", path).Msg("Invalid DICOM file")
		return nil, fmt.Errorf("%w: %s", ErrNotDICOM, path)
	}

	rec = &models.MetadataRecord{
		FilePath:          path,
		PatientName:       elementString(&ds, tag.PatientName),
		PatientID:         elementString(&ds, tag.PatientID),
		PatientBirthDate:  normalizeDate(elementString(&ds, tag.PatientBirthDate)),
		PatientSex:        elementString(&ds, tag.PatientSex),
		StudyInstanceUID:  elementString(&ds, tag.StudyInstanceUID),
		StudyDescription:  elementString(&ds, tag.StudyDescription),
		StudyDate:         normalizeDate(elementString(&ds, tag.StudyDate)),
		SeriesInstanceUID: elementString(&ds, tag.SeriesInstanceUID),
		SeriesDescription: elementString(&ds, tag.SeriesDescription),
		SeriesNumber:      elementString(&ds, tag.SeriesNumber),
		Modality:          elementString(&ds, tag.Modality),
		InstanceNumber:    elementString(&ds, tag.InstanceNumber),
		SOPInstanceUID:    elementString(&ds, tag.SOPInstanceUID),
		BodyPartExamined:  elementString(&ds, tag.BodyPartExamined),
		InstitutionName:   elementString(&ds, tag.InstitutionName),
		Manufacturer:      elementString(&ds, tag.Manufacturer),
		Rows:              elementInt(&ds, tag.Rows),
		Columns:           elementInt(&ds, tag.Columns),
	}

	return rec, nil
}

// checkMagicWord verifies the DICM marker at the end of the preamble.
// Files too short to hold one cannot be DICOM either.
func checkMagicWord(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, preambleLength+len(dicmMagic))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %s", ErrNotDICOM, path)
	}
	if !bytes.Equal(header[preambleLength:], dicmMagic) {
		return fmt.Errorf("%w: %s", ErrNotDICOM, path)
	}
	return nil
}

// normalizeDate converts the compact DICOM form YYYYMMDD to YYYY-MM-DD.
// Values of any other length pass through verbatim.
func normalizeDate(s string) string {
	if len(s) != 8 {
		return s
	}
	return s[:4] + "-" + s[4:6] + "-" + s[6:]
}

// elementString returns the first value of an element as a string, or ""
// when the element is absent. Integer-valued elements (IS, US) are
// converted so callers get a uniform representation.
func elementString(ds *dicom.Dataset, t tag.Tag) string {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return ""
	}
	switch v := elem.Value.GetValue().(type) {
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []int:
		if len(v) > 0 {
			return strconv.Itoa(v[0])
		}
	case string:
		return v
	}
	return ""
}

// elementInt returns the first value of an integer element, or 0.
func elementInt(ds *dicom.Dataset, t tag.Tag) int {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil {
		return 0
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		if len(v) > 0 {
			return v[0]
		}
	case []string:
		if len(v) > 0 {
			if n, err := strconv.Atoi(v[0]); err == nil {
				return n
			}
		}
	}
	return 0
}
