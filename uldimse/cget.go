package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// CGetRq is C-GET-RQ (PS 3.7 9.3.3): like C-MOVE but the matching instances
// are streamed back over the same association as C-STORE sub-operations.
type CGetRq struct {
	AffectedSOPClassUID string
	MessageID           MessageID
	Priority            uint16
	CommandDataSetType  CommandDataSetType
	Extra               []*dicom.Element
}

func (v *CGetRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.Priority, v.Priority),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("CGetRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CGetRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CGetRq) CommandField() uint16   { return CommandFieldCGetRq }
func (v *CGetRq) GetMessageID() MessageID { return v.MessageID }
func (v *CGetRq) GetStatus() *Status     { return nil }
func (v *CGetRq) String() string {
	return fmt.Sprintf("CGetRq{SOPClass:%s MessageID:%d}", v.AffectedSOPClassUID, v.MessageID)
}

func decodeCGetRq(d *messageDecoder) (*CGetRq, error) {
	v := &CGetRq{}
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

// CGetRsp is C-GET-RSP, reporting sub-operation progress the same way
// C-MOVE-RSP does.
type CGetRsp struct {
	AffectedSOPClassUID            string
	MessageIDBeingRespondedTo      MessageID
	CommandDataSetType             CommandDataSetType
	NumberOfRemainingSuboperations uint16
	NumberOfCompletedSuboperations uint16
	NumberOfFailedSuboperations    uint16
	NumberOfWarningSuboperations   uint16
	Status                         Status
	Extra                          []*dicom.Element
}

func (v *CGetRsp) Encode(w io.Writer) error {
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
		return fmt.Errorf("CGetRsp.Encode: %w", err)
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return fmt.Errorf("CGetRsp.Encode: status: %w", err)
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CGetRsp) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CGetRsp) CommandField() uint16   { return CommandFieldCGetRsp }
func (v *CGetRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CGetRsp) GetStatus() *Status     { return &v.Status }
func (v *CGetRsp) String() string {
	return fmt.Sprintf("CGetRsp{MessageIDBeingRespondedTo:%d remaining:%d completed:%d Status:%d}",
		v.MessageIDBeingRespondedTo, v.NumberOfRemainingSuboperations, v.NumberOfCompletedSuboperations, v.Status.Code)
}

func decodeCGetRsp(d *messageDecoder) (*CGetRsp, error) {
	v := &CGetRsp{}
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
