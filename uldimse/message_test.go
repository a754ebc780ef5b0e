package uldimse

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
)

// roundTrip encodes v as a command stream (without the CommandGroupLength
// prefix, since ReadMessage operates on the parsed command dataset rather
// than the raw P-DATA-TF bytes) and decodes it back.
func roundTrip(t *testing.T, v Message) Message {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, v.Encode(&buf))

	dataset, err := dicom.Parse(bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil,
		dicom.SkipPixelData(), dicom.SkipMetadataReadOnNewParserInit())
	require.NoError(t, err)

	msg, err := newMessageDecoder(&dataset).decode(v.CommandField())
	require.NoError(t, err)
	return msg
}

func TestCEchoRqRoundTrip(t *testing.T) {
	rq := &CEchoRq{MessageID: 7, CommandDataSetType: CommandDataSetTypeNull}
	got := roundTrip(t, rq)
	decoded, ok := got.(*CEchoRq)
	require.True(t, ok)
	assert.Equal(t, MessageID(7), decoded.MessageID)
	assert.False(t, decoded.HasData())
}

func TestCEchoRspRoundTrip(t *testing.T) {
	rsp := &CEchoRsp{MessageIDBeingRespondedTo: 7, CommandDataSetType: CommandDataSetTypeNull, Status: SuccessStatus}
	got := roundTrip(t, rsp)
	decoded, ok := got.(*CEchoRsp)
	require.True(t, ok)
	assert.Equal(t, MessageID(7), decoded.MessageIDBeingRespondedTo)
	assert.Equal(t, StatusSuccess, decoded.Status.Code)
}

func TestCStoreRqRoundTrip(t *testing.T) {
	rq := &CStoreRq{
		AffectedSOPClassUID:    "1.2.840.10008.5.1.4.1.1.7",
		MessageID:              42,
		Priority:               0,
		CommandDataSetType:     CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID: "1.2.3.4.5",
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*CStoreRq)
	require.True(t, ok)
	assert.Equal(t, "1.2.840.10008.5.1.4.1.1.7", decoded.AffectedSOPClassUID)
	assert.Equal(t, "1.2.3.4.5", decoded.AffectedSOPInstanceUID)
	assert.True(t, decoded.HasData())
	assert.Empty(t, decoded.MoveOriginatorApplicationEntityTitle)
}

func TestCStoreRqRoundTripWithMoveOriginator(t *testing.T) {
	rq := &CStoreRq{
		AffectedSOPClassUID:                  "1.2.840.10008.5.1.4.1.1.7",
		MessageID:                            43,
		CommandDataSetType:                   CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID:                "1.2.3.4.6",
		MoveOriginatorApplicationEntityTitle:  "MOVESCU",
		MoveOriginatorMessageID:               11,
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*CStoreRq)
	require.True(t, ok)
	assert.Equal(t, "MOVESCU", decoded.MoveOriginatorApplicationEntityTitle)
	assert.Equal(t, MessageID(11), decoded.MoveOriginatorMessageID)
}

func TestCFindRspRoundTripPending(t *testing.T) {
	rsp := &CFindRsp{
		AffectedSOPClassUID:       "1.2.840.10008.5.1.4.1.2.2.1",
		MessageIDBeingRespondedTo: 5,
		CommandDataSetType:        CommandDataSetTypeNonNull,
		Status:                    Status{Code: StatusPending},
	}
	got := roundTrip(t, rsp)
	decoded, ok := got.(*CFindRsp)
	require.True(t, ok)
	assert.True(t, decoded.Status.Code.Pending())
	assert.True(t, decoded.HasData())
}

func TestCMoveRspRoundTripCounts(t *testing.T) {
	rsp := &CMoveRsp{
		MessageIDBeingRespondedTo:      9,
		CommandDataSetType:             CommandDataSetTypeNull,
		NumberOfRemainingSuboperations: 3,
		NumberOfCompletedSuboperations: 2,
		Status:                         Status{Code: StatusPending},
	}
	got := roundTrip(t, rsp)
	decoded, ok := got.(*CMoveRsp)
	require.True(t, ok)
	assert.Equal(t, uint16(3), decoded.NumberOfRemainingSuboperations)
	assert.Equal(t, uint16(2), decoded.NumberOfCompletedSuboperations)
}

func TestNGetRqRoundTripWithAttributeList(t *testing.T) {
	rq := &NGetRq{
		RequestedSOPClassUID:    "1.2.840.10008.5.1.1.20",
		RequestedSOPInstanceUID: "1.2.3.4.7",
		MessageID:               1,
		CommandDataSetType:      CommandDataSetTypeNull,
		AttributeIdentifierList: []uint32{0x00080020},
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*NGetRq)
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4.7", decoded.RequestedSOPInstanceUID)
	require.Len(t, decoded.AttributeIdentifierList, 1)
}

func TestNCreateRqRoundTripAssignedInstance(t *testing.T) {
	rq := &NCreateRq{
		AffectedSOPClassUID: "1.2.840.10008.5.1.1.1",
		MessageID:           2,
		CommandDataSetType:  CommandDataSetTypeNonNull,
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*NCreateRq)
	require.True(t, ok)
	assert.Empty(t, decoded.AffectedSOPInstanceUID)
	assert.True(t, decoded.HasData())
}

func TestNDeleteRqRoundTrip(t *testing.T) {
	rq := &NDeleteRq{
		RequestedSOPClassUID:    "1.2.840.10008.5.1.1.1",
		RequestedSOPInstanceUID: "1.2.3.4.8",
		MessageID:               3,
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*NDeleteRq)
	require.True(t, ok)
	assert.False(t, decoded.HasData())
	assert.Equal(t, "1.2.3.4.8", decoded.RequestedSOPInstanceUID)
}

func TestNEventReportRqRoundTrip(t *testing.T) {
	rq := &NEventReportRq{
		AffectedSOPClassUID:    "1.2.840.10008.5.1.1.1",
		MessageID:              4,
		AffectedSOPInstanceUID: "1.2.3.4.9",
		EventTypeID:            1,
		CommandDataSetType:     CommandDataSetTypeNull,
	}
	got := roundTrip(t, rq)
	decoded, ok := got.(*NEventReportRq)
	require.True(t, ok)
	assert.Equal(t, uint16(1), decoded.EventTypeID)
}

func TestReadMessageDispatchesOnCommandField(t *testing.T) {
	rq := &CEchoRq{MessageID: 99, CommandDataSetType: CommandDataSetTypeNull}
	var cmd bytes.Buffer
	require.NoError(t, EncodeMessage(&cmd, rq))

	dataset, err := dicom.Parse(bytes.NewReader(cmd.Bytes()), int64(cmd.Len()), nil,
		dicom.SkipPixelData(), dicom.SkipMetadataReadOnNewParserInit())
	require.NoError(t, err)

	msg, err := ReadMessage(&dataset)
	require.NoError(t, err)
	decoded, ok := msg.(*CEchoRq)
	require.True(t, ok)
	assert.Equal(t, MessageID(99), decoded.MessageID)
}
