package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// CMoveRq is C-MOVE-RQ (PS 3.7 9.3.4): ask the SCP to C-STORE matching
// instances to MoveDestination, an AE title the SCP resolves independently.
type CMoveRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	MoveDestination     string
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *CMoveRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.Priority, v.Priority),
		elemString(commandset.MoveDestination, v.MoveDestination),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CMoveRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CMoveRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CMoveRq) CommandField() uint16   { return CommandFieldCMoveRq }
func (v *CMoveRq) GetMessageID() MessageID { return v.MessageID }
func (v *CMoveRq) GetStatus() *Status     { return nil }
func (v *CMoveRq) String() string {
	return fmt.Sprintf("CMoveRq{SOPClass:%s MoveDestination:%s MessageID:%d}", v.AffectedSOPClassUID, v.MoveDestination, v.MessageID)
}

func decodeCMoveRq(d *messageDecoder) (*CMoveRq, error) {
	v := &CMoveRq{}
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
	if v.MoveDestination, err = d.getString(commandset.MoveDestination, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// CMoveRsp is C-MOVE-RSP, reporting sub-operation progress counts.
type CMoveRsp struct {
	AffectedSOPClassUID             string
	MessageIDBeingRespondedTo       MessageID
	CommandDataSetType              CommandDataSetType
	NumberOfRemainingSuboperations  uint16
	NumberOfCompletedSuboperations  uint16
	NumberOfFailedSuboperations     uint16
	NumberOfWarningSuboperations    uint16
	Status                          Status
	Extra                           []*dicom.Element
}

func (v *CMoveRsp) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
		elemUint16(commandset.NumberOfRemainingSuboperations, v.NumberOfRemainingSuboperations),
		elemUint16(commandset.NumberOfCompletedSuboperations, v.NumberOfCompletedSuboperations),
		elemUint16(commandset.NumberOfFailedSuboperations, v.NumberOfFailedSuboperations),
		elemUint16(commandset.NumberOfWarningSuboperations, v.NumberOfWarningSuboperations),
	)
	if err != nil {
		return fmt.Errorf("CMoveRsp.Encode: %w", err)
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return fmt.Errorf("CMoveRsp.Encode: status: %w", err)
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CMoveRsp) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CMoveRsp) CommandField() uint16   { return CommandFieldCMoveRsp }
func (v *CMoveRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CMoveRsp) GetStatus() *Status     { return &v.Status }
func (v *CMoveRsp) String() string {
	return fmt.Sprintf("CMoveRsp{MessageIDBeingRespondedTo:%d remaining:%d completed:%d Status:%d}",
		v.MessageIDBeingRespondedTo, v.NumberOfRemainingSuboperations, v.NumberOfCompletedSuboperations, v.Status.Code)
}

func decodeCMoveRsp(d *messageDecoder) (*CMoveRsp, error) {
	v := &CMoveRsp{}
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
	if v.NumberOfRemainingSuboperations, err = d.getUInt16(commandset.NumberOfRemainingSuboperations, optional); err != nil {
		return nil, err
	}
	if v.NumberOfCompletedSuboperations, err = d.getUInt16(commandset.NumberOfCompletedSuboperations, optional); err != nil {
		return nil, err
	}
	if v.NumberOfFailedSuboperations, err = d.getUInt16(commandset.NumberOfFailedSuboperations, optional); err != nil {
		return nil, err
	}
	if v.NumberOfWarningSuboperations, err = d.getUInt16(commandset.NumberOfWarningSuboperations, optional); err != nil {
		return nil, err
	}
	if v.Status, err = d.getStatus(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}
