package ulengine

import (
	"fmt"

	"github.com/suyashkumar/dicom"
)

// Transcoder converts a dataset's elements from one transfer syntax to
// another. The send path calls it only when a message's current transfer
// syntax differs from the chosen presentation context's accepted one.
type Transcoder interface {
	Transcode(elements []*dicom.Element, fromTransferSyntaxUID, toTransferSyntaxUID string) ([]*dicom.Element, error)
}

// IdentityTranscoder passes elements through unchanged when the requested
// transfer syntaxes already match, and errors otherwise. Real pixel-data
// transcoding (JPEG <-> raw, endian swaps across compressed syntaxes) is
// out of scope; callers needing it provide their own Transcoder.
type IdentityTranscoder struct{}

func (IdentityTranscoder) Transcode(elements []*dicom.Element, from, to string) ([]*dicom.Element, error) {
	if from == to {
		return elements, nil
	}
	return nil, fmt.Errorf("ulengine: identity transcoder cannot convert %s to %s", from, to)
}
