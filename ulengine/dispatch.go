package ulengine

import (
	"context"
	"reflect"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
)

// dispatchInbound routes one fully reassembled command — plus its optional
// dataset, plus the finalized C-STORE file when the command was a
// CStoreRq — to either a provider upcall (request) or the pending-request
// table (response), per the service engine's response routing and
// capability-set upcall model.
func (c *Connection) dispatchInbound(ctx context.Context, msg uldimse.Message, pc *ulassoc.PresentationContext, dataset *dicom.Dataset, file *DicomFile) error {
	if msg.GetStatus() != nil {
		return c.dispatchResponse(ctx, msg, dataset)
	}
	return c.dispatchRequest(ctx, msg, pc, dataset, file)
}

func (c *Connection) dispatchResponse(ctx context.Context, resp uldimse.Message, dataset *dicom.Dataset) error {
	c.mu.Lock()
	p, ok := c.pending[resp.GetMessageID()]
	terminal := !resp.GetStatus().Code.Pending()
	if ok && terminal {
		delete(c.pending, resp.GetMessageID())
	}
	c.mu.Unlock()
	if !ok {
		c.logger.Warnf("%s: response for unknown message ID %d: %v", c.logID, resp.GetMessageID(), resp)
		return nil
	}
	if terminal {
		c.cond.Broadcast() // wake senders blocked on async-ops flow control
	}
	if c.user != nil && c.user.PostResponse != nil {
		c.user.PostResponse(ctx, c, p.msg, resp, dataset)
	}
	return nil
}

func (c *Connection) dispatchRequest(ctx context.Context, msg uldimse.Message, pc *ulassoc.PresentationContext, dataset *dicom.Dataset, file *DicomFile) error {
	hint := ulassoc.OutgoingMessage{AbstractSyntaxUID: pc.AbstractSyntaxUID, AssignedContextID: pc.ID}

	switch req := msg.(type) {
	case *uldimse.CEchoRq:
		if c.provider == nil || c.provider.OnCEcho == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, err := c.provider.OnCEcho(ctx, c, req)
		if err != nil {
			rsp = &uldimse.CEchoRsp{MessageIDBeingRespondedTo: req.MessageID, Status: failureStatus(err)}
		}
		return c.enqueueResponse(ctx, rsp, nil, hint)

	case *uldimse.CStoreRq:
		if c.provider == nil || c.provider.OnCStore == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, err := c.provider.OnCStore(ctx, c, req, file)
		if err != nil {
			rsp = &uldimse.CStoreRsp{
				AffectedSOPClassUID:    req.AffectedSOPClassUID,
				AffectedSOPInstanceUID: req.AffectedSOPInstanceUID,
				MessageIDBeingRespondedTo: req.MessageID,
				Status:                 failureStatus(err),
			}
		}
		return c.enqueueResponse(ctx, rsp, nil, hint)

	case *uldimse.CFindRq:
		if c.provider == nil || c.provider.OnCFind == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		results, err := c.provider.OnCFind(ctx, c, req, dataset)
		if err != nil {
			rsp := &uldimse.CFindRsp{AffectedSOPClassUID: req.AffectedSOPClassUID, MessageIDBeingRespondedTo: req.MessageID, Status: failureStatus(err)}
			return c.enqueueResponse(ctx, rsp, nil, hint)
		}
		go c.streamCFindResults(ctx, results, hint)
		return nil

	case *uldimse.CMoveRq:
		if c.provider == nil || c.provider.OnCMove == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		responses, err := c.provider.OnCMove(ctx, c, req, dataset)
		if err != nil {
			rsp := &uldimse.CMoveRsp{AffectedSOPClassUID: req.AffectedSOPClassUID, MessageIDBeingRespondedTo: req.MessageID, Status: failureStatus(err)}
			return c.enqueueResponse(ctx, rsp, nil, hint)
		}
		go c.streamMessages(ctx, messageChan(responses), hint)
		return nil

	case *uldimse.CGetRq:
		if c.provider == nil || c.provider.OnCGet == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		responses, err := c.provider.OnCGet(ctx, c, req, dataset)
		if err != nil {
			rsp := &uldimse.CGetRsp{AffectedSOPClassUID: req.AffectedSOPClassUID, MessageIDBeingRespondedTo: req.MessageID, Status: failureStatus(err)}
			return c.enqueueResponse(ctx, rsp, nil, hint)
		}
		go c.streamMessages(ctx, messageChan(responses), hint)
		return nil

	case *uldimse.NGetRq:
		if c.provider == nil || c.provider.OnNGet == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, ds, err := c.provider.OnNGet(ctx, c, req)
		if err != nil {
			rsp = &uldimse.NGetRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
			ds = nil
		}
		return c.enqueueResponse(ctx, rsp, ds, hint)

	case *uldimse.NSetRq:
		if c.provider == nil || c.provider.OnNSet == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, err := c.provider.OnNSet(ctx, c, req, dataset)
		if err != nil {
			rsp = &uldimse.NSetRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
		}
		return c.enqueueResponse(ctx, rsp, nil, hint)

	case *uldimse.NActionRq:
		if c.provider == nil || c.provider.OnNAction == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, ds, err := c.provider.OnNAction(ctx, c, req, dataset)
		if err != nil {
			rsp = &uldimse.NActionRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
			ds = nil
		}
		return c.enqueueResponse(ctx, rsp, ds, hint)

	case *uldimse.NCreateRq:
		if c.provider == nil || c.provider.OnNCreate == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, ds, err := c.provider.OnNCreate(ctx, c, req, dataset)
		if err != nil {
			rsp = &uldimse.NCreateRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
			ds = nil
		}
		return c.enqueueResponse(ctx, rsp, ds, hint)

	case *uldimse.NDeleteRq:
		if c.provider == nil || c.provider.OnNDelete == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, err := c.provider.OnNDelete(ctx, c, req)
		if err != nil {
			rsp = &uldimse.NDeleteRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
		}
		return c.enqueueResponse(ctx, rsp, nil, hint)

	case *uldimse.NEventReportRq:
		if c.provider == nil || c.provider.OnNEventReport == nil {
			return &UnimplementedRole{CommandField: msg.CommandField()}
		}
		rsp, ds, err := c.provider.OnNEventReport(ctx, c, req, dataset)
		if err != nil {
			rsp = &uldimse.NEventReportRsp{}
			rsp.MessageIDBeingRespondedTo, rsp.Status = req.MessageID, failureStatus(err)
			ds = nil
		}
		return c.enqueueResponse(ctx, rsp, ds, hint)

	default:
		return &UnimplementedRole{CommandField: msg.CommandField()}
	}
}

func failureStatus(err error) uldimse.Status {
	return uldimse.Status{Code: uldimse.StatusProcessingFailure, ErrorComment: err.Error()}
}

// enqueueResponse sends rsp (with an optional accompanying dataset) back to
// the peer, setting CommandDataSetType to match whether dataset is present.
func (c *Connection) enqueueResponse(ctx context.Context, rsp uldimse.Message, dataset *dicom.Dataset, hint ulassoc.OutgoingMessage) error {
	setCommandDataSetType(rsp, dataset != nil)
	return c.enqueueMessage(ctx, outgoingMessage{msg: rsp, dataset: dataset, hint: hint})
}

// streamCFindResults drains a C-FIND provider's result channel, sending
// each response (with its Identifier dataset) until it has sent one with a
// non-Pending status or the channel closes.
func (c *Connection) streamCFindResults(ctx context.Context, results <-chan CFindResult, hint ulassoc.OutgoingMessage) {
	for r := range results {
		setCommandDataSetType(r.Response, r.Identifier != nil)
		if err := c.enqueueMessage(ctx, outgoingMessage{msg: r.Response, dataset: r.Identifier, hint: hint}); err != nil {
			c.logger.Warnf("%s: stream C-FIND response: %v", c.logID, err)
			return
		}
		if !r.Response.Status.Code.Pending() {
			return
		}
	}
}

// streamMessages drains a C-MOVE/C-GET provider's response channel.
func (c *Connection) streamMessages(ctx context.Context, results <-chan uldimse.Message, hint ulassoc.OutgoingMessage) {
	for msg := range results {
		if err := c.enqueueMessage(ctx, outgoingMessage{msg: msg, hint: hint}); err != nil {
			c.logger.Warnf("%s: stream response: %v", c.logID, err)
			return
		}
	}
}

func messageChan[T uldimse.Message](in <-chan T) <-chan uldimse.Message {
	out := make(chan uldimse.Message)
	go func() {
		defer close(out)
		for v := range in {
			out <- v
		}
	}()
	return out
}

func setCommandDataSetType(msg uldimse.Message, hasData bool) {
	t := uldimse.CommandDataSetTypeNull
	if hasData {
		t = uldimse.CommandDataSetTypeNonNull
	}
	switch v := msg.(type) {
	case *uldimse.CEchoRsp:
		v.CommandDataSetType = t
	case *uldimse.CStoreRsp:
		v.CommandDataSetType = t
	case *uldimse.CFindRsp:
		v.CommandDataSetType = t
	case *uldimse.CMoveRsp:
		v.CommandDataSetType = t
	case *uldimse.CGetRsp:
		v.CommandDataSetType = t
	case *uldimse.NGetRsp:
		v.CommandDataSetType = t
	case *uldimse.NSetRsp:
		v.CommandDataSetType = t
	case *uldimse.NActionRsp:
		v.CommandDataSetType = t
	case *uldimse.NCreateRsp:
		v.CommandDataSetType = t
	case *uldimse.NEventReportRsp:
		v.CommandDataSetType = t
	default:
		// Request types carry the same field under the same name; a message
		// without one (N-DELETE-RQ) is left as it is.
		if rv := reflect.ValueOf(msg); rv.Kind() == reflect.Ptr {
			if f := rv.Elem().FieldByName("CommandDataSetType"); f.IsValid() && f.CanSet() {
				f.SetUint(uint64(t))
			}
		}
	}
}
