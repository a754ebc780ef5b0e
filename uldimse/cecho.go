package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// CEchoRq is C-ECHO-RQ (PS 3.7 9.3.5): a connectivity ping with no dataset.
type CEchoRq struct {
	MessageID          MessageID
	CommandDataSetType CommandDataSetType
	Extra              []*dicom.Element
}

func (v *CEchoRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CEchoRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CEchoRq) HasData() bool        { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CEchoRq) CommandField() uint16 { return CommandFieldCEchoRq }
func (v *CEchoRq) GetMessageID() MessageID { return v.MessageID }
func (v *CEchoRq) GetStatus() *Status   { return nil }
func (v *CEchoRq) String() string {
	return fmt.Sprintf("CEchoRq{MessageID:%d}", v.MessageID)
}

func decodeCEchoRq(d *messageDecoder) (*CEchoRq, error) {
	v := &CEchoRq{}
	var err error
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// CEchoRsp is C-ECHO-RSP: always carries StatusSuccess in a conformant SCP.
type CEchoRsp struct {
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CEchoRsp) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemUint16(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CEchoRsp.Encode: %w", err)
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return fmt.Errorf("CEchoRsp.Encode: status: %w", err)
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CEchoRsp) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CEchoRsp) CommandField() uint16   { return CommandFieldCEchoRsp }
func (v *CEchoRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CEchoRsp) GetStatus() *Status     { return &v.Status }
func (v *CEchoRsp) String() string {
	return fmt.Sprintf("CEchoRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeCEchoRsp(d *messageDecoder) (*CEchoRsp, error) {
	v := &CEchoRsp{}
	var err error
	if v.MessageIDBeingRespondedTo, err = d.getUInt16(commandset.MessageIDBeingRespondedTo, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	if v.Status, err = d.getStatus(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}
