package dicomfile

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ExplicitVRLittleEndian is the canonical transfer syntax every outgoing
// file is converted to before handing it to the store tool.
const ExplicitVRLittleEndian = "1.2.840.10008.1.2.1"

// NormalizedPrefix names converted files next to their originals.
const NormalizedPrefix = "explicit_"

// Normalize ensures the file at path declares the canonical transfer
// syntax. Files already canonical come back unchanged. Otherwise the
// dataset is rewritten with the canonical syntax into a sibling file and
// that path is returned; the original is left untouched.
//
// Normalization is best effort: on any failure the original path is
// returned so the transfer can still be attempted, and the peer decides
// whether to accept it. The fallback is logged distinctly so it is never
// mistaken for a clean passthrough.
func Normalize(path string) string {
	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		log.Warn().Err(err).Str("file", path).
			Msg("Transfer syntax normalization failed, sending original file")
		return path
	}

	current := elementString(&ds, tag.TransferSyntaxUID)
	if current == ExplicitVRLittleEndian {
		return path
	}

	tsElem, err := dicom.NewElement(tag.TransferSyntaxUID, []string{ExplicitVRLittleEndian})
	if err != nil {
		log.Warn().Err(err).Str("file", path).
			Msg("Transfer syntax normalization failed, sending original file")
		return path
	}

	replaced := false
	for i, elem := range ds.Elements {
		if elem.Tag == tag.TransferSyntaxUID {
			ds.Elements[i] = tsElem
			replaced = true
			break
		}
	}
	if !replaced {
		ds.Elements = append([]*dicom.Element{tsElem}, ds.Elements...)
	}

	outPath := filepath.Join(filepath.Dir(path), NormalizedPrefix+filepath.Base(path))
	out, err := os.Create(outPath)
	if err != nil {
		log.Warn().Err(err).Str("file", path).
			Msg("Transfer syntax normalization failed, sending original file")
		return path
	}
	defer out.Close()

	// Sources with inconsistent lengths may carry values the strict VR
	// checks reject; skip verification and let the receiving peer judge.
	if err := dicom.Write(out, ds, dicom.SkipVRVerification()); err != nil {
		log.Warn().Err(err).Str("file", path).
			Msg("Transfer syntax normalization failed, sending original file")
		os.Remove(outPath)
		return path
	}

	log.Debug().
		Str("file", path).
		Str("normalized", outPath).
		Str("from", current).
		Msg("Converted transfer syntax to Explicit VR Little Endian")
	return outPath
}
