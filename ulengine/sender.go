package ulengine

import (
	"context"
	"fmt"
	"io"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
	"github.com/kestrel-health/dicomul/ulpdu"
	"github.com/kestrel-health/dicomul/ulpdv"
)

// SendPDU implements ulpdv.PDUSink. It enqueues pdu for the writer loop,
// blocking while the queue already holds Options.MaximumPDUsInQueue
// entries — the bounded producer/consumer backpressure the service engine
// uses instead of an unbounded channel.
func (c *Connection) SendPDU(pdu ulpdu.PDU) error {
	c.mu.Lock()
	for c.isConnected && len(c.pduQueue) >= c.options.MaximumPDUsInQueue {
		c.cond.Wait()
	}
	if !c.isConnected {
		c.mu.Unlock()
		return &TransportError{Err: io.ErrClosedPipe}
	}
	c.pduQueue = append(c.pduQueue, pdu)
	c.cond.Broadcast()
	c.mu.Unlock()
	return nil
}

// SendRequest assigns msg the next MessageID, sets its CommandDataSetType
// to match dataset, and queues it for delivery. The response (if any)
// reaches UserHandlers.PostResponse; SendRequest itself never blocks on
// the reply.
func (c *Connection) SendRequest(ctx context.Context, msg uldimse.Message, hint ulassoc.OutgoingMessage, dataset *dicom.Dataset) error {
	c.mu.Lock()
	c.nextMessageID++
	id := c.nextMessageID
	c.mu.Unlock()
	setMessageID(msg, id)
	setCommandDataSetType(msg, dataset != nil)
	return c.enqueueMessage(ctx, outgoingMessage{msg: msg, dataset: dataset, hint: hint, isRequest: true})
}

// enqueueMessage appends om to msgQueue and, if no drain is already in
// flight, starts one. This is the "goroutine started on demand, not at
// construction" shape the connection's whole concurrency model follows.
func (c *Connection) enqueueMessage(ctx context.Context, om outgoingMessage) error {
	c.mu.Lock()
	if !c.isConnected {
		c.mu.Unlock()
		return &TransportError{Err: io.ErrClosedPipe}
	}
	c.msgQueue = append(c.msgQueue, om)
	start := !c.sending
	if start {
		c.sending = true
	}
	c.mu.Unlock()
	if start {
		go c.drainMsgQueue(ctx)
	}
	return nil
}

// drainMsgQueue pops outgoingMessages in FIFO order and sends each in
// turn, gating outgoing requests on the negotiated MaxAsyncOpsInvoked so
// the connection never has more requests outstanding than the peer
// advertised room for (§5). It exits once the queue runs dry, leaving the
// next enqueueMessage call to restart it.
func (c *Connection) drainMsgQueue(ctx context.Context) {
	for {
		c.mu.Lock()
		if len(c.msgQueue) == 0 {
			c.sending = false
			c.mu.Unlock()
			return
		}
		om := c.msgQueue[0]
		if om.isRequest && c.association != nil && c.association.MaxAsyncOpsInvoked > 0 {
			limit := c.association.MaxAsyncOpsInvoked
			for c.isConnected && uint16(len(c.pending)) >= limit {
				c.cond.Wait()
			}
			if !c.isConnected {
				c.sending = false
				c.mu.Unlock()
				return
			}
		}
		c.msgQueue = c.msgQueue[1:]
		c.mu.Unlock()

		if err := c.sendMessageNow(ctx, om); err != nil {
			c.logger.Warnf("%s: send %v: %v", c.logID, om.msg, err)
		}
	}
}

// sendMessageNow resolves a presentation context for om, transcodes its
// dataset if the context's negotiated transfer syntax differs from the
// one the caller prepared it in, and streams command plus dataset as PDVs.
func (c *Connection) sendMessageNow(ctx context.Context, om outgoingMessage) error {
	c.mu.Lock()
	assoc := c.association
	c.mu.Unlock()
	if assoc == nil {
		return &ProtocolError{Label: "send attempted before association established"}
	}

	pc, ok := ulassoc.FindAcceptablePresentationContext(assoc, om.hint)
	if !ok {
		return c.handleNegotiationFailure(ctx, om)
	}

	var elements []*dicom.Element
	if om.dataset != nil {
		elements = om.dataset.Elements
		if om.hint.TransferSyntaxUID != "" && pc.AcceptedTransferSyntax != "" && om.hint.TransferSyntaxUID != pc.AcceptedTransferSyntax {
			transcoded, err := c.transcoder.Transcode(elements, om.hint.TransferSyntaxUID, pc.AcceptedTransferSyntax)
			if err != nil {
				return fmt.Errorf("ulengine: transcode dataset: %w", err)
			}
			elements = transcoded
		}
		elements = stripGroupLengthElements(elements)
	}

	if om.isRequest {
		c.mu.Lock()
		c.pending[om.msg.GetMessageID()] = &pendingRequest{msg: om.msg, pc: pc}
		c.mu.Unlock()
	}

	stream := ulpdv.NewPDVStream(c, pc.ID, true, assoc.MaxPDULength, c.options.MaxCommandBuffer, c.options.MaxDataBuffer)
	if err := uldimse.EncodeMessage(stream, om.msg); err != nil {
		return fmt.Errorf("ulengine: encode command: %w", err)
	}
	if len(elements) > 0 {
		if err := stream.SetIsCommand(false); err != nil {
			return err
		}
		if err := encodeDatasetElements(stream, elements, pc.AcceptedTransferSyntax); err != nil {
			return fmt.Errorf("ulengine: encode dataset: %w", err)
		}
	}
	if err := stream.Flush(true); err != nil {
		return err
	}
	c.metrics.recordMessageSent(om.msg.CommandField())
	return nil
}

// handleNegotiationFailure implements the NegotiationError path (§7): a
// message this connection tried to send has no matching accepted
// presentation context. For a request, the caller is told via a
// synthetic SOPClassNotSupported response delivered through the normal
// PostResponse upcall, exactly as if the peer itself had rejected it; the
// connection stays open either way.
func (c *Connection) handleNegotiationFailure(ctx context.Context, om outgoingMessage) error {
	err := &NegotiationError{AbstractSyntaxUID: om.hint.AbstractSyntaxUID}
	if om.isRequest {
		if rsp := buildNotSupportedResponse(om.msg); rsp != nil && c.user != nil && c.user.PostResponse != nil {
			c.user.PostResponse(ctx, c, om.msg, rsp, nil)
		}
	}
	return err
}

// encodeDatasetElements writes elements as the raw dataset stream a P-DATA-TF
// PDV carries, in transferSyntaxUID's byte order and VR style — a PDV has no
// file-meta group of its own to record that, so the writer must be told
// explicitly rather than left on whatever the library defaults to.
func encodeDatasetElements(w io.Writer, elements []*dicom.Element, transferSyntaxUID string) error {
	ew := dicom.NewWriter(w, dicom.SkipVRVerification())
	bo, implicitVR := transferSyntaxEncoding(transferSyntaxUID)
	ew.SetTransferSyntax(bo, implicitVR)
	for _, e := range elements {
		if err := ew.WriteElement(e); err != nil {
			return fmt.Errorf("ulengine: write dataset element %v: %w", e.Tag, err)
		}
	}
	return nil
}

// setMessageID assigns id to the MessageID field of any outbound request.
func setMessageID(msg uldimse.Message, id uldimse.MessageID) {
	switch v := msg.(type) {
	case *uldimse.CEchoRq:
		v.MessageID = id
	case *uldimse.CStoreRq:
		v.MessageID = id
	case *uldimse.CFindRq:
		v.MessageID = id
	case *uldimse.CMoveRq:
		v.MessageID = id
	case *uldimse.CGetRq:
		v.MessageID = id
	case *uldimse.NGetRq:
		v.MessageID = id
	case *uldimse.NSetRq:
		v.MessageID = id
	case *uldimse.NActionRq:
		v.MessageID = id
	case *uldimse.NCreateRq:
		v.MessageID = id
	case *uldimse.NDeleteRq:
		v.MessageID = id
	case *uldimse.NEventReportRq:
		v.MessageID = id
	}
}

// buildNotSupportedResponse synthesizes the terminal response req would
// have received from the peer, carrying StatusSOPClassNotSupported.
func buildNotSupportedResponse(req uldimse.Message) uldimse.Message {
	status := uldimse.Status{Code: uldimse.StatusSOPClassNotSupported}
	switch v := req.(type) {
	case *uldimse.CEchoRq:
		return &uldimse.CEchoRsp{MessageIDBeingRespondedTo: v.MessageID, CommandDataSetType: uldimse.CommandDataSetTypeNull, Status: status}
	case *uldimse.CStoreRq:
		return &uldimse.CStoreRsp{AffectedSOPClassUID: v.AffectedSOPClassUID, AffectedSOPInstanceUID: v.AffectedSOPInstanceUID, MessageIDBeingRespondedTo: v.MessageID, CommandDataSetType: uldimse.CommandDataSetTypeNull, Status: status}
	case *uldimse.CFindRq:
		return &uldimse.CFindRsp{AffectedSOPClassUID: v.AffectedSOPClassUID, MessageIDBeingRespondedTo: v.MessageID, CommandDataSetType: uldimse.CommandDataSetTypeNull, Status: status}
	case *uldimse.CMoveRq:
		return &uldimse.CMoveRsp{AffectedSOPClassUID: v.AffectedSOPClassUID, MessageIDBeingRespondedTo: v.MessageID, CommandDataSetType: uldimse.CommandDataSetTypeNull, Status: status}
	case *uldimse.CGetRq:
		return &uldimse.CGetRsp{AffectedSOPClassUID: v.AffectedSOPClassUID, MessageIDBeingRespondedTo: v.MessageID, CommandDataSetType: uldimse.CommandDataSetTypeNull, Status: status}
	case *uldimse.NGetRq:
		rsp := &uldimse.NGetRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	case *uldimse.NSetRq:
		rsp := &uldimse.NSetRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	case *uldimse.NActionRq:
		rsp := &uldimse.NActionRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	case *uldimse.NCreateRq:
		rsp := &uldimse.NCreateRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	case *uldimse.NDeleteRq:
		rsp := &uldimse.NDeleteRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	case *uldimse.NEventReportRq:
		rsp := &uldimse.NEventReportRsp{}
		rsp.MessageIDBeingRespondedTo, rsp.Status = v.MessageID, status
		return rsp
	default:
		return nil
	}
}
