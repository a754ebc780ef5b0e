package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// CFindRq is C-FIND-RQ (PS 3.7 9.3.2): a query request. The dataset carries
// the identifier (matching keys); CommandDataSetType is always non-null.
type CFindRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *CFindRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.Priority, v.Priority),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CFindRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CFindRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CFindRq) CommandField() uint16   { return CommandFieldCFindRq }
func (v *CFindRq) GetMessageID() MessageID { return v.MessageID }
func (v *CFindRq) GetStatus() *Status     { return nil }
func (v *CFindRq) String() string {
	return fmt.Sprintf("CFindRq{SOPClass:%s MessageID:%d}", v.AffectedSOPClassUID, v.MessageID)
}

func decodeCFindRq(d *messageDecoder) (*CFindRq, error) {
	v := &CFindRq{}
	var err error
	if v.AffectedSOPClassUID, err = d.getString(commandset.AffectedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.Priority, err = d.getUInt16(commandset.Priority, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// CFindRsp is C-FIND-RSP. The SCP emits one per match with StatusPending,
// then a final response with a terminal status and no dataset.
type CFindRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CFindRsp) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CFindRsp.Encode: %w", err)
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return fmt.Errorf("CFindRsp.Encode: status: %w", err)
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CFindRsp) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CFindRsp) CommandField() uint16   { return CommandFieldCFindRsp }
func (v *CFindRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CFindRsp) GetStatus() *Status     { return &v.Status }
func (v *CFindRsp) String() string {
	return fmt.Sprintf("CFindRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeCFindRsp(d *messageDecoder) (*CFindRsp, error) {
	v := &CFindRsp{}
	var err error
	if v.AffectedSOPClassUID, err = d.getString(commandset.AffectedSOPClassUID, optional); err != nil {
		return nil, err
	}
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
