// Package ulpdv implements the outgoing PDV stream: a write-only sink that
// slices DIMSE command/dataset bytes into PresentationDataValue fragments
// batched into P-DATA-TF PDUs, honoring the negotiated max PDU length.
package ulpdv

import (
	"fmt"

	"github.com/kestrel-health/dicomul/ulpdu"
)

// pdvHeaderBytes is the wire overhead of one PresentationDataValue item:
// a 4-byte length field plus the 1-byte context ID and 1-byte
// message-control-header (PS 3.8 E.2).
const pdvHeaderBytes = 6

// PDUSink is the minimal interface PDVStream needs from whatever owns the
// outgoing PDU queue.
type PDUSink interface {
	SendPDU(pdu ulpdu.PDU) error
}

// PDVStream buffers outgoing bytes for one presentation context and
// flushes them as PresentationDataValue fragments batched into P-DATA-TF
// PDUs, splitting across PDUs once the negotiated max PDU length would be
// exceeded. A single stream instance is reused across the command and
// dataset phase of one DIMSE message via SetIsCommand.
type PDVStream struct {
	sink      PDUSink
	contextID byte
	isCommand bool

	// effectiveMax is min(pduMax, mode buffer cap), recomputed whenever
	// SetIsCommand switches between the command and data buffer caps.
	// pduMax == 0 means "no PDU-size ceiling from negotiation", bounded
	// only by the mode buffer.
	pduMax           uint32
	commandBufferCap int
	dataBufferCap    int
	effectiveMax     int

	buf         []byte
	currentPDU  ulpdu.PDataTF
	currentSize int // sum of wire sizes of items already in currentPDU
}

// NewPDVStream constructs a stream bound to one presentation context.
// pduMax is the association's negotiated max PDU length (0 = unbounded);
// commandBufferCap/dataBufferCap are the service's configured per-mode
// buffer ceilings (Options.MaxCommandBuffer / Options.MaxDataBuffer).
func NewPDVStream(sink PDUSink, presentationContextID byte, isCommand bool, pduMax uint32, commandBufferCap, dataBufferCap int) *PDVStream {
	s := &PDVStream{
		sink:             sink,
		contextID:        presentationContextID,
		isCommand:        isCommand,
		pduMax:           pduMax,
		commandBufferCap: commandBufferCap,
		dataBufferCap:    dataBufferCap,
	}
	s.recomputeEffectiveMax()
	return s
}

func (s *PDVStream) recomputeEffectiveMax() {
	modeCap := s.dataBufferCap
	if s.isCommand {
		modeCap = s.commandBufferCap
	}
	if s.pduMax == 0 || int(s.pduMax) > modeCap {
		s.effectiveMax = modeCap
		return
	}
	s.effectiveMax = int(s.pduMax)
}

// bufferCap is the max amount of payload buf may hold before a PDV must be
// cut, reserving room for the next PDV's header within the current PDU.
func (s *PDVStream) bufferCap() int {
	room := s.effectiveMax - s.currentSize - pdvHeaderBytes
	if room < 1 {
		room = 1
	}
	return room
}

// Write appends p to the stream, emitting PDVs (and flushing whole PDUs)
// as the buffer fills. It never returns a short write without an error.
func (s *PDVStream) Write(p []byte) (int, error) {
	written := 0
	for len(p) > 0 {
		capacity := s.bufferCap()
		room := capacity - len(s.buf)
		if room <= 0 {
			if err := s.emitPDV(false); err != nil {
				return written, err
			}
			continue
		}
		n := room
		if n > len(p) {
			n = len(p)
		}
		s.buf = append(s.buf, p[:n]...)
		p = p[n:]
		written += n
		if len(s.buf) >= s.bufferCap() {
			if err := s.emitPDV(false); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

// emitPDV cuts the current buffer into a PresentationDataValue and appends
// it to the in-progress PDU, flushing that PDU first if the new item
// wouldn't fit.
func (s *PDVStream) emitPDV(last bool) error {
	if len(s.buf) == 0 && !last {
		return nil
	}
	itemSize := pdvHeaderBytes + len(s.buf)
	if s.currentSize > 0 && s.currentSize+itemSize > s.effectiveMax {
		if err := s.sendCurrentPDU(); err != nil {
			return err
		}
	}
	s.currentPDU.Items = append(s.currentPDU.Items, ulpdu.PresentationDataValue{
		ContextID: s.contextID,
		IsCommand: s.isCommand,
		IsLast:    last,
		Data:      s.buf,
	})
	s.currentSize += itemSize
	s.buf = nil
	return nil
}

func (s *PDVStream) sendCurrentPDU() error {
	if len(s.currentPDU.Items) == 0 {
		return nil
	}
	pdu := s.currentPDU
	s.currentPDU = ulpdu.PDataTF{}
	s.currentSize = 0
	if err := s.sink.SendPDU(&pdu); err != nil {
		return fmt.Errorf("ulpdv: send PDU: %w", err)
	}
	return nil
}

// SetIsCommand flushes any buffered command bytes as a non-last command
// PDV, then switches the stream to dataset mode (or back), picking up the
// corresponding buffer cap. Must be called between the command and
// dataset writes of a single DIMSE message.
func (s *PDVStream) SetIsCommand(isCommand bool) error {
	if isCommand == s.isCommand {
		return nil
	}
	if err := s.emitPDV(false); err != nil {
		return err
	}
	s.isCommand = isCommand
	s.recomputeEffectiveMax()
	return nil
}

// Flush emits any remaining buffered bytes as a final PDV (marking it last
// when last is true) and sends the accumulated PDU to the sink.
func (s *PDVStream) Flush(last bool) error {
	if len(s.buf) > 0 || last {
		if err := s.emitPDV(last); err != nil {
			return err
		}
	}
	return s.sendCurrentPDU()
}
