package ulpdv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-health/dicomul/ulpdu"
)

type fakeSink struct {
	pdus []*ulpdu.PDataTF
}

func (f *fakeSink) SendPDU(pdu ulpdu.PDU) error {
	f.pdus = append(f.pdus, pdu.(*ulpdu.PDataTF))
	return nil
}

func allBytes(pdus []*ulpdu.PDataTF) []byte {
	var out []byte
	for _, p := range pdus {
		for _, item := range p.Items {
			out = append(out, item.Data...)
		}
	}
	return out
}

func TestPDVStreamSingleSmallWriteFlushesOnePDV(t *testing.T) {
	sink := &fakeSink{}
	s := NewPDVStream(sink, 1, true, 16384, 16384, 16384)
	_, err := s.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(true))

	require.Len(t, sink.pdus, 1)
	require.Len(t, sink.pdus[0].Items, 1)
	item := sink.pdus[0].Items[0]
	assert.True(t, item.IsCommand)
	assert.True(t, item.IsLast)
	assert.Equal(t, []byte("hello"), item.Data)
}

func TestPDVStreamSplitsAcrossPDUsWhenOverMax(t *testing.T) {
	sink := &fakeSink{}
	// effectiveMax tiny enough that one 50-byte write spans several PDUs.
	s := NewPDVStream(sink, 3, true, 20, 20, 20)
	payload := make([]byte, 50)
	for i := range payload {
		payload[i] = byte(i)
	}
	_, err := s.Write(payload)
	require.NoError(t, err)
	require.NoError(t, s.Flush(true))

	require.NotEmpty(t, sink.pdus)
	assert.Equal(t, payload, allBytes(sink.pdus))

	last := sink.pdus[len(sink.pdus)-1]
	assert.True(t, last.Items[len(last.Items)-1].IsLast)
	for _, p := range sink.pdus[:len(sink.pdus)-1] {
		for _, item := range p.Items {
			assert.False(t, item.IsLast)
		}
	}
}

func TestPDVStreamSetIsCommandSwitchesModeAndFlushesPending(t *testing.T) {
	sink := &fakeSink{}
	s := NewPDVStream(sink, 5, true, 16384, 16384, 16384)
	_, err := s.Write([]byte("cmd-bytes"))
	require.NoError(t, err)
	require.NoError(t, s.SetIsCommand(false))
	_, err = s.Write([]byte("dataset-bytes"))
	require.NoError(t, err)
	require.NoError(t, s.Flush(true))

	require.Len(t, sink.pdus, 1)
	items := sink.pdus[0].Items
	require.Len(t, items, 2)
	assert.True(t, items[0].IsCommand)
	assert.False(t, items[0].IsLast)
	assert.Equal(t, []byte("cmd-bytes"), items[0].Data)
	assert.False(t, items[1].IsCommand)
	assert.True(t, items[1].IsLast)
	assert.Equal(t, []byte("dataset-bytes"), items[1].Data)
}

func TestPDVStreamZeroPDUMaxIsUnboundedByModeBuffer(t *testing.T) {
	sink := &fakeSink{}
	s := NewPDVStream(sink, 1, true, 0, 1024, 1024)
	payload := make([]byte, 500)
	_, err := s.Write(payload)
	require.NoError(t, err)
	require.NoError(t, s.Flush(true))
	assert.Len(t, sink.pdus, 1)
	assert.Len(t, sink.pdus[0].Items, 1)
}
