package ulengine

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// File Meta Information group tags (PS 3.10 §7.1, Table 7.1-1). The meta
// group is always explicit VR little endian, independent of the dataset's
// own negotiated transfer syntax.
var (
	tagFileMetaInformationGroupLength = tag.Tag{Group: 0x0002, Element: 0x0000}
	tagMediaStorageSOPClassUID        = tag.Tag{Group: 0x0002, Element: 0x0002}
	tagMediaStorageSOPInstanceUID     = tag.Tag{Group: 0x0002, Element: 0x0003}
	tagTransferSyntaxUID              = tag.Tag{Group: 0x0002, Element: 0x0010}
	tagImplementationClassUID         = tag.Tag{Group: 0x0002, Element: 0x0012}
	tagImplementationVersionName      = tag.Tag{Group: 0x0002, Element: 0x0013}
	tagSourceApplicationEntityTitle   = tag.Tag{Group: 0x0002, Element: 0x0016}
)

// fileMetaElements builds the identifying sub-elements of meta's File Meta
// Information group, skipping any field left blank by the caller.
func fileMetaElements(meta FileMetaInformation) ([]*dicom.Element, error) {
	type field struct {
		t tag.Tag
		v string
	}
	fields := []field{
		{tagMediaStorageSOPClassUID, meta.MediaStorageSOPClassUID},
		{tagMediaStorageSOPInstanceUID, meta.MediaStorageSOPInstanceUID},
		{tagTransferSyntaxUID, meta.TransferSyntaxUID},
		{tagImplementationClassUID, meta.ImplementationClassUID},
		{tagImplementationVersionName, meta.ImplementationVersionName},
		{tagSourceApplicationEntityTitle, meta.SourceApplicationEntityTitle},
	}
	elems := make([]*dicom.Element, 0, len(fields))
	for _, f := range fields {
		if f.v == "" {
			continue
		}
		e, err := dicom.NewElement(f.t, []string{f.v})
		if err != nil {
			return nil, fmt.Errorf("ulengine: build file meta element %v: %w", f.t, err)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// writeFileMetaInformation writes the 128-byte preamble, "DICM" magic, and
// File Meta Information group describing meta to w, ahead of the dataset
// bytes that follow (PS 3.10 §7). Without this, whatever a sink receives is
// a bare dataset stream with no way to recover the transfer syntax it was
// written in.
func writeFileMetaInformation(w io.Writer, meta FileMetaInformation) error {
	if _, err := w.Write(make([]byte, 128)); err != nil {
		return fmt.Errorf("ulengine: write preamble: %w", err)
	}
	if _, err := io.WriteString(w, "DICM"); err != nil {
		return fmt.Errorf("ulengine: write DICM magic: %w", err)
	}

	elems, err := fileMetaElements(meta)
	if err != nil {
		return err
	}
	var body bytes.Buffer
	bw := dicom.NewWriter(&body, dicom.SkipVRVerification())
	bw.SetTransferSyntax(binary.LittleEndian, false)
	for _, e := range elems {
		if err := bw.WriteElement(e); err != nil {
			return fmt.Errorf("ulengine: write file meta element %v: %w", e.Tag, err)
		}
	}

	gw := dicom.NewWriter(w, dicom.SkipVRVerification())
	gw.SetTransferSyntax(binary.LittleEndian, false)
	groupLength, err := dicom.NewElement(tagFileMetaInformationGroupLength, []int{body.Len()})
	if err != nil {
		return fmt.Errorf("ulengine: build file meta group length: %w", err)
	}
	if err := gw.WriteElement(groupLength); err != nil {
		return fmt.Errorf("ulengine: write file meta group length: %w", err)
	}
	_, err = w.Write(body.Bytes())
	return err
}

// parseRawDataset decodes data as a bare dataset element stream (no
// file-meta group, as arrives in a P-DATA-TF PDV) encoded per
// transferSyntaxUID, by wrapping it in a synthetic in-memory File Meta
// Information header so the parser's normal transfer-syntax auto-detection
// configures it correctly instead of falling back to a default that only
// happens to match implicit VR little endian.
func parseRawDataset(data []byte, transferSyntaxUID string) (dicom.Dataset, error) {
	var buf bytes.Buffer
	if err := writeFileMetaInformation(&buf, FileMetaInformation{TransferSyntaxUID: transferSyntaxUID}); err != nil {
		return dicom.Dataset{}, fmt.Errorf("ulengine: synthesize file meta for decode: %w", err)
	}
	buf.Write(data)
	return dicom.Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil)
}
