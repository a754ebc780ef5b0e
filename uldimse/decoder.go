package uldimse

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

type elementRequirement int

const (
	required elementRequirement = iota
	optional
)

// messageDecoder extracts typed values out of a parsed command dataset,
// tracking which elements have been consumed so the remainder can be
// surfaced as a message's unparsed Extra elements.
type messageDecoder struct {
	elements map[tag.Tag]*dicom.Element
}

func newMessageDecoder(dataset *dicom.Dataset) *messageDecoder {
	d := &messageDecoder{elements: make(map[tag.Tag]*dicom.Element, len(dataset.Elements))}
	for _, elem := range dataset.Elements {
		d.elements[elem.Tag] = elem
	}
	return d
}

func (d *messageDecoder) decode(commandField uint16) (Message, error) {
	switch commandField {
	case CommandFieldCStoreRq:
		return decodeCStoreRq(d)
	case CommandFieldCStoreRsp:
		return decodeCStoreRsp(d)
	case CommandFieldCFindRq:
		return decodeCFindRq(d)
	case CommandFieldCFindRsp:
		return decodeCFindRsp(d)
	case CommandFieldCGetRq:
		return decodeCGetRq(d)
	case CommandFieldCGetRsp:
		return decodeCGetRsp(d)
	case CommandFieldCMoveRq:
		return decodeCMoveRq(d)
	case CommandFieldCMoveRsp:
		return decodeCMoveRsp(d)
	case CommandFieldCEchoRq:
		return decodeCEchoRq(d)
	case CommandFieldCEchoRsp:
		return decodeCEchoRsp(d)
	case CommandFieldNGetRq:
		return decodeNGetRq(d)
	case CommandFieldNGetRsp:
		return decodeNGetRsp(d)
	case CommandFieldNSetRq:
		return decodeNSetRq(d)
	case CommandFieldNSetRsp:
		return decodeNSetRsp(d)
	case CommandFieldNActionRq:
		return decodeNActionRq(d)
	case CommandFieldNActionRsp:
		return decodeNActionRsp(d)
	case CommandFieldNCreateRq:
		return decodeNCreateRq(d)
	case CommandFieldNCreateRsp:
		return decodeNCreateRsp(d)
	case CommandFieldNDeleteRq:
		return decodeNDeleteRq(d)
	case CommandFieldNDeleteRsp:
		return decodeNDeleteRsp(d)
	case CommandFieldNEventReportRq:
		return decodeNEventReportRq(d)
	case CommandFieldNEventReportRsp:
		return decodeNEventReportRsp(d)
	default:
		return nil, fmt.Errorf("uldimse: unknown command field 0x%04x", commandField)
	}
}

func (d *messageDecoder) unparsedElements() []*dicom.Element {
	elems := make([]*dicom.Element, 0, len(d.elements))
	for _, elem := range d.elements {
		elems = append(elems, elem)
	}
	return elems
}

func (d *messageDecoder) getStatus() (Status, error) {
	var s Status
	code, err := d.getUInt16(commandset.Status, required)
	if err != nil {
		return s, fmt.Errorf("status code: %w", err)
	}
	s.Code = StatusCode(code)
	s.ErrorComment, err = d.getString(commandset.ErrorComment, optional)
	if err != nil {
		return s, fmt.Errorf("error comment: %w", err)
	}
	return s, nil
}

func (d *messageDecoder) getCommandDataSetType() (CommandDataSetType, error) {
	v, err := d.getUInt16(commandset.CommandDataSetType, required)
	if err != nil {
		return CommandDataSetTypeNull, fmt.Errorf("command data set type: %w", err)
	}
	return CommandDataSetType(v), nil
}

func (d *messageDecoder) getString(t tag.Tag, req elementRequirement) (string, error) {
	elem := d.elements[t]
	if elem == nil {
		if req == required {
			return "", fmt.Errorf("tag %v not found", t)
		}
		return "", nil
	}
	v, ok := elem.Value.GetValue().([]string)
	if !ok || len(v) == 0 {
		if req == required {
			return "", fmt.Errorf("tag %v has no string value", t)
		}
		return "", nil
	}
	delete(d.elements, t)
	return v[0], nil
}

func (d *messageDecoder) getUInt16(t tag.Tag, req elementRequirement) (uint16, error) {
	elem := d.elements[t]
	if elem == nil {
		if req == required {
			return 0, fmt.Errorf("tag %v not found", t)
		}
		return 0, nil
	}
	v, ok := elem.Value.GetValue().([]int)
	if !ok || len(v) == 0 {
		if req == required {
			return 0, fmt.Errorf("tag %v has no int value", t)
		}
		return 0, nil
	}
	if v[0] < 0 || v[0] > 0xFFFF {
		return 0, fmt.Errorf("tag %v value %d out of uint16 range", t, v[0])
	}
	delete(d.elements, t)
	return uint16(v[0]), nil
}
