package ulengine

import (
	"context"
	"fmt"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/ulpdu"
	"github.com/kestrel-health/dicomul/ulpdu/item"
)

// Reject reason codes meaningful when AssociateRJSource is
// SourceULServiceUser (PS 3.8 Table 9-21).
const (
	rjReasonNoReasonGiven              byte = 1
	rjReasonApplicationContextNotSupported byte = 2
	rjReasonCallingAETitleNotRecognized byte = 3
	rjReasonCalledAETitleNotRecognized  byte = 7
)

// SendAssociationRequest is the client-role entry point: it proposes
// contexts, remembers them (the A-ASSOCIATE-AC echoes only context ID and
// outcome, not the abstract syntax), and sends the A-ASSOCIATE-RQ. The
// outcome arrives asynchronously via UserHandlers.OnAssociationAccept/Reject.
func (c *Connection) SendAssociationRequest(ctx context.Context, calledAETitle, callingAETitle string, proposed []ulassoc.PresentationContext, maxPDULength uint32) error {
	c.mu.Lock()
	c.calledAETitle = calledAETitle
	c.callingAETitle = callingAETitle
	c.pendingProposed = proposed
	c.mu.Unlock()

	rq := &ulpdu.AssociateRQOrAC{
		IsRequest:       true,
		ProtocolVersion: 1,
		CalledAETitle:   calledAETitle,
		CallingAETitle:  callingAETitle,
		Items:           c.buildContextAndUserInfoItems(proposed, maxPDULength, false),
	}
	return c.SendPDU(rq)
}

// buildContextAndUserInfoItems assembles the application-context,
// presentation-context, and user-information sub-items shared by both the
// A-ASSOCIATE-RQ (isResponse false) and A-ASSOCIATE-AC (isResponse true)
// item lists.
func (c *Connection) buildContextAndUserInfoItems(contexts []ulassoc.PresentationContext, maxPDULength uint32, isResponse bool) []item.SubItem {
	items := []item.SubItem{&item.ApplicationContext{Name: item.DICOMApplicationContextName}}
	for _, pc := range contexts {
		items = append(items, buildPresentationContextItem(pc, isResponse))
	}
	items = append(items, &item.UserInformation{Items: c.buildUserInfoSubItems(maxPDULength)})
	return items
}

func buildPresentationContextItem(pc ulassoc.PresentationContext, isResponse bool) *item.PresentationContext {
	pcItem := &item.PresentationContext{ContextID: pc.ID}
	if isResponse {
		pcItem.Type = item.TypePresentationContextResponse
		pcItem.Result = byte(pc.Result)
		if pc.Accepted() {
			pcItem.Items = []item.SubItem{&item.TransferSyntax{Name: pc.AcceptedTransferSyntax}}
		}
		return pcItem
	}
	pcItem.Type = item.TypePresentationContextRequest
	pcItem.Items = append(pcItem.Items, &item.AbstractSyntax{Name: pc.AbstractSyntaxUID})
	for _, ts := range pc.ProposedTransferSyntaxes {
		pcItem.Items = append(pcItem.Items, &item.TransferSyntax{Name: ts})
	}
	return pcItem
}

func (c *Connection) buildUserInfoSubItems(maxPDULength uint32) []item.SubItem {
	return []item.SubItem{
		&item.MaximumLength{Length: maxPDULength},
		&item.ImplementationClassUID{Name: c.implementationClassUID},
		&item.ImplementationVersionName{Name: c.implementationVersion},
		&item.AsyncOperationsWindow{MaxOpsInvoked: c.options.MaxAsyncOpsInvoked, MaxOpsPerformed: c.options.MaxAsyncOpsInvoked},
	}
}

// parseProposedContexts extracts the proposed presentation contexts from an
// A-ASSOCIATE-RQ's sub-items.
func parseProposedContexts(items []item.SubItem) []ulassoc.PresentationContext {
	var out []ulassoc.PresentationContext
	for _, it := range items {
		pcItem, ok := it.(*item.PresentationContext)
		if !ok || pcItem.Type != item.TypePresentationContextRequest {
			continue
		}
		pc := ulassoc.PresentationContext{ID: pcItem.ContextID}
		for _, sub := range pcItem.Items {
			switch v := sub.(type) {
			case *item.AbstractSyntax:
				pc.AbstractSyntaxUID = v.Name
			case *item.TransferSyntax:
				pc.ProposedTransferSyntaxes = append(pc.ProposedTransferSyntaxes, v.Name)
			}
		}
		out = append(out, pc)
	}
	return out
}

// parseAcceptedContexts merges an A-ASSOCIATE-AC's per-context outcomes
// into the proposed list the client remembers from its own request.
func parseAcceptedContexts(proposed []ulassoc.PresentationContext, items []item.SubItem) []ulassoc.PresentationContext {
	byID := make(map[byte]*ulassoc.PresentationContext, len(proposed))
	out := make([]ulassoc.PresentationContext, len(proposed))
	for i, pc := range proposed {
		out[i] = pc
		byID[pc.ID] = &out[i]
	}
	for _, it := range items {
		pcItem, ok := it.(*item.PresentationContext)
		if !ok || pcItem.Type != item.TypePresentationContextResponse {
			continue
		}
		pc, ok := byID[pcItem.ContextID]
		if !ok {
			continue
		}
		pc.Result = ulassoc.ContextResult(pcItem.Result)
		for _, sub := range pcItem.Items {
			if ts, ok := sub.(*item.TransferSyntax); ok {
				pc.AcceptedTransferSyntax = ts.Name
			}
		}
	}
	return out
}

type userInfo struct {
	maxPDULength            uint32
	implementationClassUID  string
	implementationVersion   string
	maxAsyncOpsInvoked      uint16
	maxAsyncOpsPerformed    uint16
}

func parseUserInfo(items []item.SubItem) userInfo {
	var info userInfo
	for _, it := range items {
		ui, ok := it.(*item.UserInformation)
		if !ok {
			continue
		}
		for _, sub := range ui.Items {
			switch v := sub.(type) {
			case *item.MaximumLength:
				info.maxPDULength = v.Length
			case *item.ImplementationClassUID:
				info.implementationClassUID = v.Name
			case *item.ImplementationVersionName:
				info.implementationVersion = v.Name
			case *item.AsyncOperationsWindow:
				info.maxAsyncOpsInvoked = v.MaxOpsInvoked
				info.maxAsyncOpsPerformed = v.MaxOpsPerformed
			}
		}
	}
	return info
}

// handleAssociateRQ is the server-role negotiation path (C2/C5): it decides
// per-context acceptance via policy, builds the Association, notifies the
// provider, and answers with A-ASSOCIATE-AC.
func (c *Connection) handleAssociateRQ(ctx context.Context, rq *ulpdu.AssociateRQOrAC) error {
	if c.calledAETitle != "" && rq.CalledAETitle != c.calledAETitle {
		return c.rejectAssociation(ulpdu.ResultRejectedPermanent, ulpdu.SourceULServiceUser, rjReasonCalledAETitleNotRecognized)
	}

	proposed := parseProposedContexts(rq.Items)
	info := parseUserInfo(rq.Items)
	accepted := ulassoc.AcceptPresentationContexts(proposed, c.policy)

	assoc := ulassoc.NewAssociation(rq.CalledAETitle, rq.CallingAETitle, accepted)
	assoc.MaxPDULength = info.maxPDULength
	assoc.RemoteImplementationClassUID = info.implementationClassUID
	assoc.RemoteImplementationVersionName = info.implementationVersion
	assoc.MaxAsyncOpsInvoked = negotiateAsyncOps(info.maxAsyncOpsInvoked, c.options.MaxAsyncOpsInvoked)
	assoc.MaxAsyncOpsPerformed = negotiateAsyncOps(info.maxAsyncOpsPerformed, c.options.MaxAsyncOpsInvoked)

	c.mu.Lock()
	c.association = assoc
	c.calledAETitle = rq.CalledAETitle
	c.callingAETitle = rq.CallingAETitle
	c.mu.Unlock()
	c.adoptRemoteLogName()
	c.finishHandshake()

	ac := &ulpdu.AssociateRQOrAC{
		IsRequest:       false,
		ProtocolVersion: rq.ProtocolVersion,
		CalledAETitle:   rq.CalledAETitle,
		CallingAETitle:  rq.CallingAETitle,
		Items:           c.buildContextAndUserInfoItems(accepted, uint32(c.options.MaxDataBuffer), true),
	}
	if err := c.SendPDU(ac); err != nil {
		return fmt.Errorf("ulengine: send A-ASSOCIATE-AC: %w", err)
	}
	c.metrics.recordAssociationAccepted()

	if c.provider != nil && c.provider.OnAssociationRequest != nil {
		c.provider.OnAssociationRequest(ctx, c, assoc)
	}
	return nil
}

func (c *Connection) rejectAssociation(result ulpdu.AssociateRJResult, source ulpdu.AssociateRJSource, reason byte) error {
	rj := &ulpdu.AssociateRJ{Result: result, Source: source, Reason: reason}
	// Written straight to the stream, not queued through SendPDU, so the
	// close below cannot overtake the writer loop and drop the RJ.
	raw, err := ulpdu.Encode(rj)
	if err != nil {
		return fmt.Errorf("ulengine: encode A-ASSOCIATE-RJ: %w", err)
	}
	c.writeMu.Lock()
	_, err = c.stream.Write(raw)
	c.writeMu.Unlock()
	if err != nil {
		return &TransportError{Err: fmt.Errorf("ulengine: send A-ASSOCIATE-RJ: %w", err)}
	}
	c.metrics.recordAssociationRejected()
	c.finishHandshake()
	c.close(fmt.Errorf("ulengine: association rejected (reason %d)", reason))
	return nil
}

// handleAssociateAC is the client-role counterpart: it reconciles its own
// proposed contexts against the peer's outcomes and completes the
// handshake.
func (c *Connection) handleAssociateAC(ctx context.Context, ac *ulpdu.AssociateRQOrAC) error {
	c.mu.Lock()
	proposed := c.pendingProposed
	c.mu.Unlock()

	accepted := parseAcceptedContexts(proposed, ac.Items)
	info := parseUserInfo(ac.Items)

	assoc := ulassoc.NewAssociation(ac.CalledAETitle, ac.CallingAETitle, accepted)
	assoc.MaxPDULength = info.maxPDULength
	assoc.RemoteImplementationClassUID = info.implementationClassUID
	assoc.RemoteImplementationVersionName = info.implementationVersion
	assoc.MaxAsyncOpsInvoked = negotiateAsyncOps(info.maxAsyncOpsInvoked, c.options.MaxAsyncOpsInvoked)
	assoc.MaxAsyncOpsPerformed = negotiateAsyncOps(info.maxAsyncOpsPerformed, c.options.MaxAsyncOpsInvoked)

	c.mu.Lock()
	c.association = assoc
	c.mu.Unlock()
	c.adoptRemoteLogName()
	c.finishHandshake()

	if c.user != nil && c.user.OnAssociationAccept != nil {
		c.user.OnAssociationAccept(ctx, c, assoc)
	}
	return nil
}

func (c *Connection) handleAssociateRJ(rj *ulpdu.AssociateRJ) error {
	c.finishHandshake()
	if c.user != nil && c.user.OnAssociationReject != nil {
		c.user.OnAssociationReject(c, rj.Result, rj.Source, rj.Reason)
	}
	c.close(fmt.Errorf("ulengine: association rejected by peer (source %d, reason %d)", rj.Source, rj.Reason))
	return nil
}

// negotiateAsyncOps picks the smaller of the two sides' advertised limits,
// treating 0 ("unbounded") as no constraint from that side.
func negotiateAsyncOps(peer, ours uint16) uint16 {
	switch {
	case peer == 0:
		return ours
	case ours == 0:
		return peer
	case peer < ours:
		return peer
	default:
		return ours
	}
}
