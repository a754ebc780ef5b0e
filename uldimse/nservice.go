package uldimse

import (
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/uldimse/commandset"
)

// NGetRq is N-GET-RQ (PS 3.7 10.1.2): retrieve attribute values from a
// managed SOP instance. Never carries a dataset.
type NGetRq struct {
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	MessageID               MessageID
	AttributeIdentifierList []uint32 // optional, (group,element) pairs packed as group<<16|element
	CommandDataSetType      CommandDataSetType
	Extra                   []*dicom.Element
}

func (v *NGetRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.RequestedSOPClassUID, v.RequestedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemString(commandset.RequestedSOPInstanceUID, v.RequestedSOPInstanceUID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("NGetRq.Encode: %w", err)
	}
	if len(v.AttributeIdentifierList) > 0 {
		ints := make([]int, len(v.AttributeIdentifierList))
		for i, t := range v.AttributeIdentifierList {
			ints[i] = int(t)
		}
		tagListElem, err := dicom.NewElement(commandset.AttributeIdentifierList, ints)
		if err != nil {
			return fmt.Errorf("NGetRq.Encode: attribute list: %w", err)
		}
		elems = append(elems, tagListElem)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NGetRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NGetRq) CommandField() uint16   { return CommandFieldNGetRq }
func (v *NGetRq) GetMessageID() MessageID { return v.MessageID }
func (v *NGetRq) GetStatus() *Status     { return nil }
func (v *NGetRq) String() string {
	return fmt.Sprintf("NGetRq{SOPClass:%s SOPInstance:%s MessageID:%d}", v.RequestedSOPClassUID, v.RequestedSOPInstanceUID, v.MessageID)
}

func decodeNGetRq(d *messageDecoder) (*NGetRq, error) {
	v := &NGetRq{}
	var err error
	if v.RequestedSOPClassUID, err = d.getString(commandset.RequestedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.RequestedSOPInstanceUID, err = d.getString(commandset.RequestedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	if elem := d.elements[commandset.AttributeIdentifierList]; elem != nil {
		if ints, ok := elem.Value.GetValue().([]int); ok {
			v.AttributeIdentifierList = make([]uint32, len(ints))
			for i, n := range ints {
				v.AttributeIdentifierList[i] = uint32(n)
			}
			delete(d.elements, commandset.AttributeIdentifierList)
		}
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// nServiceRsp is the field shape shared by every N-service response
// (N-GET/SET/ACTION/CREATE/EVENT-REPORT-RSP echo the affected SOP class/
// instance and carry status; N-DELETE-RSP omits the dataset flag's
// significance since it never carries one).
type nServiceRsp struct {
	AffectedSOPClassUID       string
	AffectedSOPInstanceUID    string
	MessageIDBeingRespondedTo MessageID
	CommandDataSetType        CommandDataSetType
	Status                    Status
	Extra                     []*dicom.Element
}

func (v *nServiceRsp) encode(w io.Writer, commandField uint16) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, commandField),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageIDBeingRespondedTo, v.MessageIDBeingRespondedTo),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
		elemString(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID),
	)
	if err != nil {
		return err
	}
	statusElems, err := v.Status.toElements()
	if err != nil {
		return err
	}
	elems = append(elems, statusElems...)
	return encodeElements(w, append(elems, v.Extra...))
}

func decodeNServiceRsp(d *messageDecoder) (nServiceRsp, error) {
	var v nServiceRsp
	var err error
	if v.AffectedSOPClassUID, err = d.getString(commandset.AffectedSOPClassUID, optional); err != nil {
		return v, err
	}
	if v.MessageIDBeingRespondedTo, err = d.getUInt16(commandset.MessageIDBeingRespondedTo, required); err != nil {
		return v, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return v, err
	}
	if v.AffectedSOPInstanceUID, err = d.getString(commandset.AffectedSOPInstanceUID, optional); err != nil {
		return v, err
	}
	if v.Status, err = d.getStatus(); err != nil {
		return v, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NGetRsp is N-GET-RSP; Extra/dataset carries the returned attribute values.
type NGetRsp struct{ nServiceRsp }

func (v *NGetRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNGetRsp) }
func (v *NGetRsp) HasData() bool            { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NGetRsp) CommandField() uint16     { return CommandFieldNGetRsp }
func (v *NGetRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NGetRsp) GetStatus() *Status       { return &v.Status }
func (v *NGetRsp) String() string {
	return fmt.Sprintf("NGetRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeNGetRsp(d *messageDecoder) (*NGetRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NGetRsp{base}, nil
}

// NSetRq is N-SET-RQ: set attribute values on a managed SOP instance. The
// dataset carries the modification list.
type NSetRq struct {
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	MessageID               MessageID
	CommandDataSetType      CommandDataSetType
	Extra                   []*dicom.Element
}

func (v *NSetRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.RequestedSOPClassUID, v.RequestedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemString(commandset.RequestedSOPInstanceUID, v.RequestedSOPInstanceUID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("NSetRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NSetRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NSetRq) CommandField() uint16   { return CommandFieldNSetRq }
func (v *NSetRq) GetMessageID() MessageID { return v.MessageID }
func (v *NSetRq) GetStatus() *Status     { return nil }
func (v *NSetRq) String() string {
	return fmt.Sprintf("NSetRq{SOPInstance:%s MessageID:%d}", v.RequestedSOPInstanceUID, v.MessageID)
}

func decodeNSetRq(d *messageDecoder) (*NSetRq, error) {
	v := &NSetRq{}
	var err error
	if v.RequestedSOPClassUID, err = d.getString(commandset.RequestedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.RequestedSOPInstanceUID, err = d.getString(commandset.RequestedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NSetRsp is N-SET-RSP; may echo back modified attribute values in its
// dataset.
type NSetRsp struct{ nServiceRsp }

func (v *NSetRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNSetRsp) }
func (v *NSetRsp) HasData() bool            { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NSetRsp) CommandField() uint16     { return CommandFieldNSetRsp }
func (v *NSetRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NSetRsp) GetStatus() *Status       { return &v.Status }
func (v *NSetRsp) String() string {
	return fmt.Sprintf("NSetRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeNSetRsp(d *messageDecoder) (*NSetRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NSetRsp{base}, nil
}

// NActionRq is N-ACTION-RQ: invoke an operation on a managed SOP instance.
type NActionRq struct {
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	MessageID               MessageID
	ActionTypeID            uint16
	CommandDataSetType      CommandDataSetType
	Extra                   []*dicom.Element
}

func (v *NActionRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.RequestedSOPClassUID, v.RequestedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemString(commandset.RequestedSOPInstanceUID, v.RequestedSOPInstanceUID),
		elemUint16(commandset.ActionTypeID, v.ActionTypeID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("NActionRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NActionRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NActionRq) CommandField() uint16   { return CommandFieldNActionRq }
func (v *NActionRq) GetMessageID() MessageID { return v.MessageID }
func (v *NActionRq) GetStatus() *Status     { return nil }
func (v *NActionRq) String() string {
	return fmt.Sprintf("NActionRq{SOPInstance:%s ActionTypeID:%d MessageID:%d}", v.RequestedSOPInstanceUID, v.ActionTypeID, v.MessageID)
}

func decodeNActionRq(d *messageDecoder) (*NActionRq, error) {
	v := &NActionRq{}
	var err error
	if v.RequestedSOPClassUID, err = d.getString(commandset.RequestedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.RequestedSOPInstanceUID, err = d.getString(commandset.RequestedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if v.ActionTypeID, err = d.getUInt16(commandset.ActionTypeID, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NActionRsp is N-ACTION-RSP; may carry action-reply attributes.
type NActionRsp struct{ nServiceRsp }

func (v *NActionRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNActionRsp) }
func (v *NActionRsp) HasData() bool            { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NActionRsp) CommandField() uint16     { return CommandFieldNActionRsp }
func (v *NActionRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NActionRsp) GetStatus() *Status       { return &v.Status }
func (v *NActionRsp) String() string {
	return fmt.Sprintf("NActionRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeNActionRsp(d *messageDecoder) (*NActionRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NActionRsp{base}, nil
}

// NCreateRq is N-CREATE-RQ: create a new managed SOP instance.
// AffectedSOPInstanceUID is optional — the SCP may assign one.
type NCreateRq struct {
	AffectedSOPClassUID    string
	MessageID              MessageID
	AffectedSOPInstanceUID string
	CommandDataSetType     CommandDataSetType
	Extra                  []*dicom.Element
}

func (v *NCreateRq) Encode(w io.Writer) error {
	specs := []elementSpec{
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	}
	if v.AffectedSOPInstanceUID != "" {
		specs = append(specs, elemString(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID))
	}
	elems, err := buildElements(specs...)
	if err != nil {
		return fmt.Errorf("NCreateRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NCreateRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NCreateRq) CommandField() uint16   { return CommandFieldNCreateRq }
func (v *NCreateRq) GetMessageID() MessageID { return v.MessageID }
func (v *NCreateRq) GetStatus() *Status     { return nil }
func (v *NCreateRq) String() string {
	return fmt.Sprintf("NCreateRq{SOPClass:%s MessageID:%d}", v.AffectedSOPClassUID, v.MessageID)
}

func decodeNCreateRq(d *messageDecoder) (*NCreateRq, error) {
	v := &NCreateRq{}
	var err error
	if v.AffectedSOPClassUID, err = d.getString(commandset.AffectedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.AffectedSOPInstanceUID, err = d.getString(commandset.AffectedSOPInstanceUID, optional); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NCreateRsp is N-CREATE-RSP; echoes the (possibly SCP-assigned)
// AffectedSOPInstanceUID.
type NCreateRsp struct{ nServiceRsp }

func (v *NCreateRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNCreateRsp) }
func (v *NCreateRsp) HasData() bool            { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NCreateRsp) CommandField() uint16     { return CommandFieldNCreateRsp }
func (v *NCreateRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NCreateRsp) GetStatus() *Status       { return &v.Status }
func (v *NCreateRsp) String() string {
	return fmt.Sprintf("NCreateRsp{MessageIDBeingRespondedTo:%d SOPInstance:%s Status:%d}", v.MessageIDBeingRespondedTo, v.AffectedSOPInstanceUID, v.Status.Code)
}

func decodeNCreateRsp(d *messageDecoder) (*NCreateRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NCreateRsp{base}, nil
}

// NDeleteRq is N-DELETE-RQ: delete a managed SOP instance. Never carries a
// dataset in either direction.
type NDeleteRq struct {
	RequestedSOPClassUID    string
	RequestedSOPInstanceUID string
	MessageID               MessageID
	Extra                   []*dicom.Element
}

func (v *NDeleteRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.RequestedSOPClassUID, v.RequestedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemString(commandset.RequestedSOPInstanceUID, v.RequestedSOPInstanceUID),
		elemUint16(commandset.CommandDataSetType, uint16(CommandDataSetTypeNull)),
	)
	if err != nil {
		return fmt.Errorf("NDeleteRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NDeleteRq) HasData() bool          { return false }
func (v *NDeleteRq) CommandField() uint16   { return CommandFieldNDeleteRq }
func (v *NDeleteRq) GetMessageID() MessageID { return v.MessageID }
func (v *NDeleteRq) GetStatus() *Status     { return nil }
func (v *NDeleteRq) String() string {
	return fmt.Sprintf("NDeleteRq{SOPInstance:%s MessageID:%d}", v.RequestedSOPInstanceUID, v.MessageID)
}

func decodeNDeleteRq(d *messageDecoder) (*NDeleteRq, error) {
	v := &NDeleteRq{}
	var err error
	if v.RequestedSOPClassUID, err = d.getString(commandset.RequestedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.RequestedSOPInstanceUID, err = d.getString(commandset.RequestedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if _, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NDeleteRsp is N-DELETE-RSP; carries only status, never a dataset.
type NDeleteRsp struct{ nServiceRsp }

func (v *NDeleteRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNDeleteRsp) }
func (v *NDeleteRsp) HasData() bool            { return false }
func (v *NDeleteRsp) CommandField() uint16     { return CommandFieldNDeleteRsp }
func (v *NDeleteRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NDeleteRsp) GetStatus() *Status       { return &v.Status }
func (v *NDeleteRsp) String() string {
	return fmt.Sprintf("NDeleteRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeNDeleteRsp(d *messageDecoder) (*NDeleteRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NDeleteRsp{base}, nil
}

// NEventReportRq is N-EVENT-REPORT-RQ: the SCP notifies an SCU of an event
// on a managed SOP instance.
type NEventReportRq struct {
	AffectedSOPClassUID    string
	MessageID              MessageID
	AffectedSOPInstanceUID string
	EventTypeID            uint16
	CommandDataSetType     CommandDataSetType
	Extra                  []*dicom.Element
}

func (v *NEventReportRq) Encode(w io.Writer) error {
	elems, err := buildElements(
		elemUint16(commandset.CommandField, v.CommandField()),
		elemString(commandset.AffectedSOPClassUID, v.AffectedSOPClassUID),
		elemUint16(commandset.MessageID, v.MessageID),
		elemString(commandset.AffectedSOPInstanceUID, v.AffectedSOPInstanceUID),
		elemUint16(commandset.EventTypeID, v.EventTypeID),
		elemUint16(commandset.CommandDataSetType, uint16(v.CommandDataSetType)),
	)
	if err != nil {
		return fmt.Errorf("NEventReportRq.Encode: %w", err)
	}
	return encodeElements(w, append(elems, v.Extra...))
}

func (v *NEventReportRq) HasData() bool          { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NEventReportRq) CommandField() uint16   { return CommandFieldNEventReportRq }
func (v *NEventReportRq) GetMessageID() MessageID { return v.MessageID }
func (v *NEventReportRq) GetStatus() *Status     { return nil }
func (v *NEventReportRq) String() string {
	return fmt.Sprintf("NEventReportRq{SOPInstance:%s EventTypeID:%d MessageID:%d}", v.AffectedSOPInstanceUID, v.EventTypeID, v.MessageID)
}

func decodeNEventReportRq(d *messageDecoder) (*NEventReportRq, error) {
	v := &NEventReportRq{}
	var err error
	if v.AffectedSOPClassUID, err = d.getString(commandset.AffectedSOPClassUID, required); err != nil {
		return nil, err
	}
	if v.MessageID, err = d.getUInt16(commandset.MessageID, required); err != nil {
		return nil, err
	}
	if v.AffectedSOPInstanceUID, err = d.getString(commandset.AffectedSOPInstanceUID, required); err != nil {
		return nil, err
	}
	if v.EventTypeID, err = d.getUInt16(commandset.EventTypeID, required); err != nil {
		return nil, err
	}
	if v.CommandDataSetType, err = d.getCommandDataSetType(); err != nil {
		return nil, err
	}
	v.Extra = d.unparsedElements()
	return v, nil
}

// NEventReportRsp is N-EVENT-REPORT-RSP.
type NEventReportRsp struct{ nServiceRsp }

func (v *NEventReportRsp) Encode(w io.Writer) error { return v.encode(w, CommandFieldNEventReportRsp) }
func (v *NEventReportRsp) HasData() bool            { return v.CommandDataSetType != CommandDataSetTypeNull }
func (v *NEventReportRsp) CommandField() uint16     { return CommandFieldNEventReportRsp }
func (v *NEventReportRsp) GetMessageID() MessageID  { return v.MessageIDBeingRespondedTo }
func (v *NEventReportRsp) GetStatus() *Status       { return &v.Status }
func (v *NEventReportRsp) String() string {
	return fmt.Sprintf("NEventReportRsp{MessageIDBeingRespondedTo:%d Status:%d}", v.MessageIDBeingRespondedTo, v.Status.Code)
}

func decodeNEventReportRsp(d *messageDecoder) (*NEventReportRsp, error) {
	base, err := decodeNServiceRsp(d)
	if err != nil {
		return nil, err
	}
	return &NEventReportRsp{base}, nil
}
