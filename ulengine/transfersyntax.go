package ulengine

import (
	"encoding/binary"

	"github.com/suyashkumar/dicom"
)

// Well-known transfer syntax UIDs this engine reasons about directly (PS
// 3.5 Annex A). Anything else is assumed to be a compressed syntax, which
// per A.4 always carries its pixel data under an explicit-VR-little-endian
// element stream.
const (
	transferSyntaxImplicitVRLittleEndian = "1.2.840.10008.1.2"
	transferSyntaxExplicitVRBigEndian    = "1.2.840.10008.1.2.2"
)

// transferSyntaxEncoding reports the byte order and VR-explicitness a
// transfer syntax UID implies, so a dataset element stream written to or
// read from a P-DATA-TF PDV (which carries no file-meta group of its own)
// is encoded/decoded the way the negotiated presentation context actually
// requires instead of relying on whatever default the library assumes.
func transferSyntaxEncoding(uid string) (bo binary.ByteOrder, implicitVR bool) {
	switch uid {
	case transferSyntaxImplicitVRLittleEndian:
		return binary.LittleEndian, true
	case transferSyntaxExplicitVRBigEndian:
		return binary.BigEndian, false
	default:
		return binary.LittleEndian, false
	}
}

// stripGroupLengthElements removes every (gggg,0000) group-length element
// from elements. Group lengths are optional and their values become stale
// the moment a dataset is re-encoded (e.g. after transcoding or dropping
// elements), so PS 3.5 7.2 has datasets recompute rather than forward them;
// the simplest correct way to "recompute" a length nobody downstream reads
// is to not encode one at all.
func stripGroupLengthElements(elements []*dicom.Element) []*dicom.Element {
	out := make([]*dicom.Element, 0, len(elements))
	for _, e := range elements {
		if e.Tag.Element == 0x0000 {
			continue
		}
		out = append(out, e)
	}
	return out
}
