// Package uldimse implements the DIMSE command/response messages carried in
// a P-DATA-TF's command stream (PS 3.7): C-ECHO, C-STORE, C-FIND, C-MOVE,
// C-GET, and the N-service verbs.
package uldimse

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// MessageID is the DIMSE command-group message identifier (PS 3.7 E.1).
type MessageID = uint16

// CommandDataSetType flags whether a command is followed by a dataset
// stream. CommandDataSetTypeNull (0x0101) means no dataset; any other value
// (conventionally CommandDataSetTypeNonNull, 1) means one follows.
type CommandDataSetType uint16

const (
	CommandDataSetTypeNull    CommandDataSetType = 0x0101
	CommandDataSetTypeNonNull CommandDataSetType = 1
)

// Message is the common shape of every DIMSE command.
type Message interface {
	fmt.Stringer
	Encode(io.Writer) error
	GetMessageID() MessageID
	CommandField() uint16
	// GetStatus is nil for requests, non-nil for responses.
	GetStatus() *Status
	// HasData reports whether a dataset stream follows the command.
	HasData() bool
}

// Command field values (PS 3.7 E.1, Table E.1-1).
const (
	CommandFieldCStoreRq        uint16 = 0x0001
	CommandFieldCStoreRsp       uint16 = 0x8001
	CommandFieldCGetRq          uint16 = 0x0010
	CommandFieldCGetRsp         uint16 = 0x8010
	CommandFieldCFindRq         uint16 = 0x0020
	CommandFieldCFindRsp        uint16 = 0x8020
	CommandFieldCMoveRq         uint16 = 0x0021
	CommandFieldCMoveRsp        uint16 = 0x8021
	CommandFieldCEchoRq         uint16 = 0x0030
	CommandFieldCEchoRsp        uint16 = 0x8030
	CommandFieldNEventReportRq  uint16 = 0x0100
	CommandFieldNEventReportRsp uint16 = 0x8100
	CommandFieldNGetRq          uint16 = 0x0110
	CommandFieldNGetRsp         uint16 = 0x8110
	CommandFieldNSetRq          uint16 = 0x0120
	CommandFieldNSetRsp         uint16 = 0x8120
	CommandFieldNActionRq       uint16 = 0x0130
	CommandFieldNActionRsp      uint16 = 0x8130
	CommandFieldNCreateRq       uint16 = 0x0140
	CommandFieldNCreateRsp      uint16 = 0x8140
	CommandFieldNDeleteRq       uint16 = 0x0150
	CommandFieldNDeleteRsp      uint16 = 0x8150
	CommandFieldCCancelRq       uint16 = 0x0FFF
)

// encodeElements writes elems to out in order, as the command-group
// element stream expected after the CommandGroupLength header element.
// Command-group elements are always implicit VR little endian (PS 3.7
// 6.3.1), independent of any presentation context's negotiated transfer
// syntax.
func encodeElements(out io.Writer, elems []*dicom.Element) error {
	w := dicom.NewWriter(out, dicom.SkipVRVerification())
	w.SetTransferSyntax(binary.LittleEndian, true)
	for _, e := range elems {
		if err := w.WriteElement(e); err != nil {
			return err
		}
	}
	return nil
}

// elementSpec pairs a command-group tag with the raw value slice to encode,
// letting buildElements turn a whole command's field list into
// *dicom.Element values with one error check instead of one per field.
type elementSpec struct {
	tag   tag.Tag
	value interface{}
}

func elemUint16(t tag.Tag, value uint16) elementSpec {
	return elementSpec{tag: t, value: []int{int(value)}}
}

func elemString(t tag.Tag, value string) elementSpec {
	return elementSpec{tag: t, value: []string{value}}
}

// buildElements constructs a *dicom.Element for every spec. Optional fields
// are left out of the specs slice entirely by the caller rather than
// encoded with a zero value (e.g. CStoreRq's MoveOriginator* fields).
func buildElements(specs ...elementSpec) ([]*dicom.Element, error) {
	elems := make([]*dicom.Element, 0, len(specs))
	for _, s := range specs {
		e, err := dicom.NewElement(s.tag, s.value)
		if err != nil {
			return nil, fmt.Errorf("build element %v: %w", s.tag, err)
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// ReadMessage decodes a parsed command dataset into its typed Message, using
// the CommandField element to choose which verb to decode.
func ReadMessage(dataset *dicom.Dataset) (Message, error) {
	d := newMessageDecoder(dataset)
	commandField, err := d.getUInt16(commandset.CommandField, required)
	if err != nil {
		return nil, fmt.Errorf("uldimse: read command field: %w", err)
	}
	return d.decode(commandField)
}

// EncodeMessage serializes v as an implicit-VR-little-endian command
// stream, preceded by the CommandGroupLength element the command stream's
// length is measured from (PS 3.7 6.3.1: DIMSE commands are always
// implicit VR little endian, regardless of the presentation context's
// negotiated transfer syntax).
func EncodeMessage(out io.Writer, v Message) error {
	var body bytes.Buffer
	if err := v.Encode(&body); err != nil {
		return fmt.Errorf("uldimse: encode %v: %w", v, err)
	}
	w := dicom.NewWriter(out, dicom.SkipVRVerification())
	w.SetTransferSyntax(binary.LittleEndian, true)
	lengthElem, err := dicom.NewElement(commandset.CommandGroupLength, []int{body.Len()})
	if err != nil {
		return fmt.Errorf("uldimse: create CommandGroupLength element: %w", err)
	}
	if err := w.WriteElement(lengthElem); err != nil {
		return fmt.Errorf("uldimse: write CommandGroupLength element: %w", err)
	}
	_, err = out.Write(body.Bytes())
	return err
}
