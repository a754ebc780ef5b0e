package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// CStoreRq is C-STORE-RQ (PS 3.7 9.3.1): store a composite SOP instance.
// Always carries a dataset.
type CStoreRq struct {
	AffectedSOPClassUID                  string
	MessageID                            MessageID
	Priority                             uint16
	CommandDataSetType                   CommandDataSetType
	AffectedSOPInstanceUID               string
	MoveOriginatorApplicationEntityTitle string // optional, set on C-MOVE sub-operations
	MoveOriginatorMessageID              MessageID
	Extra                                []*dicom.Element
}

func (v *CStoreRq) Encode(w io.Writer) error {
	specs := []elementSpec{
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.Priority, v.Priority),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
		elemString(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID),
	}
	if v.MoveOriginatorApplicationEntityTitle != "" {
		specs = append(specs, elemString(commandset.MoveOriginatorApplicationEntityTitle, v.MoveOriginatorApplicationEntityTitle))
	}
	if v.MoveOriginatorMessageID != 0 {
		specs = append(specs, elemUint16(commandset.MoveOriginatorMessageID, v.MoveOriginatorMessageID))
	}
	elems, err := buildElements(specs...)
	if err != nil {
		return fmt.Errorf("CStoreRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CStoreRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CStoreRq) CommandField() uint16   { return CommandFieldCStoreRq }
func (v *CStoreRq) GetMessageID() MessageID { return v.MessageID }
func (v *CStoreRq) GetStatus() *Status     { return nil }
func (v *CStoreRq) String() string {
	return fmt.Sprintf("CStoreRq{SOPClass:%s SOPInstance:%s MessageID:%d}",
		v.AffectedSOPClassUID, v.AffectedSOPInstanceUID, v.MessageID)
}

func decodeCStoreRq(d *messageDecoder) (*CStoreRq, error) {
	v := &CStoreRq{}
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
	if v.AffectedSOPInstanceUID, err = d.getString(commandset.AffectedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if v.MoveOriginatorApplicationEntityTitle, err = d.getString(commandset.MoveOriginatorApplicationEntityTitle, optional); err != nil {
		return nil, err
	}
	if v.MoveOriginatorMessageID, err = d.getUInt16(commandset.MoveOriginatorMessageID, optional); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// CStoreRsp is C-STORE-RSP.
type CStoreRsp struct {
	AffectedSOPClassUID       string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	AffectedSOPInstanceUID    string
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *CStoreRsp) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
		elemString(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID),
	)
	if err != nil {
		return fmt.Errorf("CStoreRsp.Encode: %w", err)
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return fmt.Errorf("CStoreRsp.Encode: status: %w", err)
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *CStoreRsp) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *CStoreRsp) CommandField() uint16   { return CommandFieldCStoreRsp }
func (v *CStoreRsp) GetMessageID() MessageID { return v.MessageIDBeingRespondedTo }
func (v *CStoreRsp) GetStatus() *Status     { return &v.Status }
func (v *CStoreRsp) String() string {
	return fmt.Sprintf("CStoreRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeCStoreRsp(d *messageDecoder) (*CStoreRsp, error) {
	v := &CStoreRsp{}
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
	if v.AffectedSOPInstanceUID, err = d.getString(commandset.AffectedSOPInstanceUID, optional); err != nil {
		return nil, err
	}
	if v.Status, err = d.getStatus(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}
