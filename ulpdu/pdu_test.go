package ulpdu

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-health/dicomul/ulpdu/item"
)

func roundTrip(t *testing.T, p PDU) PDU {
	t.Helper()
	encoded, err := Encode(p)
	require.NoError(t, err)
	raw, err := ReadPDU(bytes.NewReader(encoded), 0)
	require.NoError(t, err)
	decoded, err := Decode(raw)
	require.NoError(t, err)
	return decoded
}

func TestAssociateRQRoundTrip(t *testing.T) {
	rq := &AssociateRQOrAC{
		IsRequest:       true,
		ProtocolVersion: 1,
		CalledAETitle:   "SCP",
		CallingAETitle:  "SCU",
		Items: []item.SubItem{
			&item.ApplicationContext{Name: item.DICOMApplicationContextName},
			&item.PresentationContext{
				Type:      item.TypePresentationContextRequest,
				ContextID: 1,
				Items: []item.SubItem{
					&item.AbstractSyntax{Name: "1.2.840.10008.1.1"},
					&item.TransferSyntax{Name: "1.2.840.10008.1.2"},
				},
			},
			&item.UserInformation{Items: []item.SubItem{
				&item.MaximumLength{Length: 16384},
			}},
		},
	}
	decoded := roundTrip(t, rq)
	got, ok := decoded.(*AssociateRQOrAC)
	require.True(t, ok)
	assert.Equal(t, "SCP", got.CalledAETitle)
	assert.Equal(t, "SCU", got.CallingAETitle)
	assert.Len(t, got.Items, 3)
}

func TestAssociateRQRejectsMissingMandatoryItems(t *testing.T) {
	rq := &AssociateRQOrAC{
		IsRequest:       true,
		ProtocolVersion: 1,
		CalledAETitle:   "SCP",
		CallingAETitle:  "SCU",
		Items: []item.SubItem{
			&item.ApplicationContext{Name: item.DICOMApplicationContextName},
		},
	}
	encoded, err := Encode(rq)
	require.NoError(t, err)
	raw, err := ReadPDU(bytes.NewReader(encoded), 0)
	require.NoError(t, err)
	_, err = Decode(raw)
	require.Error(t, err)
}

func TestAssociateRJRoundTrip(t *testing.T) {
	rj := &AssociateRJ{Result: ResultRejectedPermanent, Source: SourceULServiceUser, Reason: 1}
	decoded := roundTrip(t, rj)
	got, ok := decoded.(*AssociateRJ)
	require.True(t, ok)
	assert.Equal(t, rj, got)
}

func TestPDataTFRoundTrip(t *testing.T) {
	p := &PDataTF{Items: []PresentationDataValue{
		{ContextID: 1, IsCommand: true, IsLast: true, Data: []byte{1, 2, 3}},
		{ContextID: 1, IsCommand: false, IsLast: false, Data: []byte{4, 5}},
	}}
	decoded := roundTrip(t, p)
	got, ok := decoded.(*PDataTF)
	require.True(t, ok)
	require.Len(t, got.Items, 2)
	assert.Equal(t, []byte{1, 2, 3}, got.Items[0].Data)
	assert.True(t, got.Items[0].IsCommand)
	assert.False(t, got.Items[1].IsLast)
}

func TestReleaseAndAbortRoundTrip(t *testing.T) {
	assert.IsType(t, &ReleaseRQ{}, roundTrip(t, &ReleaseRQ{}))
	assert.IsType(t, &ReleaseRP{}, roundTrip(t, &ReleaseRP{}))

	ab := &Abort{Source: AbortSourceServiceProvider, Reason: AbortReasonUnexpectedPDU}
	decoded := roundTrip(t, ab)
	got, ok := decoded.(*Abort)
	require.True(t, ok)
	assert.Equal(t, ab, got)
}

func TestReadPDUCleanEOF(t *testing.T) {
	_, err := ReadPDU(bytes.NewReader(nil), 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadPDURejectsOversizeLength(t *testing.T) {
	// header declares a body far beyond the cap we pass in.
	header := []byte{byte(TypeAssociateRQ), 0, 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := ReadPDU(bytes.NewReader(header), 1024)
	require.Error(t, err)
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestDecodeReservedPDUIsIgnorable(t *testing.T) {
	_, err := Decode(RawPDU{Type: typeReserved})
	assert.True(t, IsReservedPDU(err))
}
