// Package ulassoc implements the DICOM Upper Layer association model:
// presentation-context negotiation and the per-connection Association data
// that binds presentation-context IDs to their negotiated abstract/transfer
// syntax pair (PS 3.8 §7, §9.3.2-3).
package ulassoc

import "fmt"

// ContextResult is the accept/reject verdict on one presentation context,
// reported back to the proposer in A-ASSOCIATE-AC (PS 3.8 Table 9-18).
type ContextResult byte

const (
	ResultAccept                         ContextResult = 0
	ResultUserReject                     ContextResult = 1
	ResultNoReason                       ContextResult = 2
	ResultAbstractSyntaxNotSupported     ContextResult = 3
	ResultTransferSyntaxesNotSupported   ContextResult = 4
)

func (r ContextResult) String() string {
	switch r {
	case ResultAccept:
		return "accept"
	case ResultUserReject:
		return "user-reject"
	case ResultNoReason:
		return "no-reason"
	case ResultAbstractSyntaxNotSupported:
		return "abstract-syntax-not-supported"
	case ResultTransferSyntaxesNotSupported:
		return "transfer-syntaxes-not-supported"
	default:
		return fmt.Sprintf("result(%d)", byte(r))
	}
}

// PresentationContext is one negotiated abstract-syntax/transfer-syntax
// pairing, keyed by its odd context ID (PS 3.8 9.3.2.2).
type PresentationContext struct {
	ID                       byte
	AbstractSyntaxUID        string
	ProposedTransferSyntaxes []string
	AcceptedTransferSyntax   string // empty until Result == ResultAccept
	Result                   ContextResult
}

// Accepted reports whether the peer accepted this context.
func (pc *PresentationContext) Accepted() bool { return pc.Result == ResultAccept }

// AbstractSyntaxPolicy decides, for one proposed context, whether the
// engine supports its abstract syntax and which proposed transfer syntax to
// accept. It is the sole extension point C5 hands to C2 for presentation
// context negotiation — the engine has no built-in notion of which SOP
// classes it implements.
type AbstractSyntaxPolicy interface {
	// Accept reports whether abstractSyntaxUID is supported, and if so
	// which of proposedTransferSyntaxUIDs to accept. When accept is false,
	// an empty chosenTransferSyntaxUID marks the abstract syntax as
	// unsupported, while a non-empty one marks it as supported with none of
	// the proposed transfer syntaxes acceptable.
	Accept(abstractSyntaxUID string, proposedTransferSyntaxUIDs []string) (accept bool, chosenTransferSyntaxUID string)
}

// StaticPolicy accepts abstract syntaxes present as keys, preferring
// whichever of its configured transfer syntaxes (in order) appears first
// among those proposed.
type StaticPolicy struct {
	// Accepted maps abstract syntax UID to the transfer syntaxes this
	// policy will accept for it, in preference order.
	Accepted map[string][]string
}

// Accept implements AbstractSyntaxPolicy. When the abstract syntax is known
// but none of its configured transfer syntaxes were proposed, it falls back
// to accepting the first proposed transfer syntax, rather than rejecting
// outright on transfer-syntax mismatch alone.
func (p *StaticPolicy) Accept(abstractSyntaxUID string, proposed []string) (bool, string) {
	preferred, ok := p.Accepted[abstractSyntaxUID]
	if !ok {
		return false, ""
	}
	for _, want := range preferred {
		for _, have := range proposed {
			if want == have {
				return true, have
			}
		}
	}
	if len(proposed) == 0 {
		return false, ""
	}
	return true, proposed[0]
}

// AcceptPresentationContexts applies policy to every proposed context,
// producing the response list an A-ASSOCIATE-AC should carry. Contexts the
// policy doesn't recognize are rejected with ResultAbstractSyntaxNotSupported;
// contexts it recognizes but can't match a transfer syntax for are rejected
// with ResultTransferSyntaxesNotSupported.
func AcceptPresentationContexts(proposed []PresentationContext, policy AbstractSyntaxPolicy) []PresentationContext {
	out := make([]PresentationContext, len(proposed))
	for i, pc := range proposed {
		out[i] = pc
		accept, chosen := policy.Accept(pc.AbstractSyntaxUID, pc.ProposedTransferSyntaxes)
		switch {
		case !accept && chosen == "":
			out[i].Result = ResultAbstractSyntaxNotSupported
		case !accept:
			out[i].Result = ResultTransferSyntaxesNotSupported
		default:
			out[i].Result = ResultAccept
			out[i].AcceptedTransferSyntax = chosen
		}
	}
	return out
}

// Association is the negotiated state of one connection: the accepted
// presentation contexts keyed by context ID, the negotiated max PDU length
// and max in-flight async operations, and the peer's identity.
type Association struct {
	CalledAETitle  string
	CallingAETitle string

	MaxPDULength        uint32 // 0 = unbounded, capped by the engine's own buffers
	MaxAsyncOpsInvoked   uint16 // 0 = unbounded
	MaxAsyncOpsPerformed uint16

	RemoteImplementationClassUID    string
	RemoteImplementationVersionName string

	contexts map[byte]*PresentationContext
}

// NewAssociation builds an Association from the accepted context list
// AcceptPresentationContexts produced.
func NewAssociation(calledAE, callingAE string, accepted []PresentationContext) *Association {
	a := &Association{
		CalledAETitle:  calledAE,
		CallingAETitle: callingAE,
		contexts:       make(map[byte]*PresentationContext, len(accepted)),
	}
	for i := range accepted {
		pc := accepted[i]
		a.contexts[pc.ID] = &pc
	}
	return a
}

// Context looks up a presentation context by its ID.
func (a *Association) Context(id byte) (*PresentationContext, bool) {
	pc, ok := a.contexts[id]
	return pc, ok
}

// Contexts returns every negotiated presentation context, accepted or not.
func (a *Association) Contexts() []*PresentationContext {
	out := make([]*PresentationContext, 0, len(a.contexts))
	for _, pc := range a.contexts {
		out = append(out, pc)
	}
	return out
}

// OutgoingMessage is the minimal shape FindAcceptablePresentationContext
// needs from a DIMSE message about to be sent: its SOP class UID, and — for
// C-STORE specifically — the transfer syntax the dataset is already encoded
// in, plus an optional pre-assigned context ID.
type OutgoingMessage struct {
	AbstractSyntaxUID string
	// TransferSyntaxUID is set only for C-STORE sends, where the dataset's
	// existing encoding should be preferred over transcoding.
	TransferSyntaxUID string
	// AssignedContextID is a caller-supplied fallback context, used when no
	// context matches by abstract syntax (e.g. a response reusing the
	// request's context).
	AssignedContextID byte
}

// FindAcceptablePresentationContext picks the presentation context to send
// msg over. For a C-STORE-shaped message (TransferSyntaxUID set), a context
// whose accepted transfer syntax exactly matches is preferred; otherwise
// any accepted context for the same abstract syntax is used; finally the
// message's pre-assigned context is used as a last resort. The second
// return value is false if no context matches at all.
func FindAcceptablePresentationContext(a *Association, msg OutgoingMessage) (*PresentationContext, bool) {
	var fallback *PresentationContext
	for _, pc := range a.contexts {
		if !pc.Accepted() || pc.AbstractSyntaxUID != msg.AbstractSyntaxUID {
			continue
		}
		if msg.TransferSyntaxUID != "" && pc.AcceptedTransferSyntax == msg.TransferSyntaxUID {
			return pc, true
		}
		if fallback == nil {
			fallback = pc
		}
	}
	if fallback != nil {
		return fallback, true
	}
	if pc, ok := a.contexts[msg.AssignedContextID]; ok && pc.Accepted() {
		return pc, true
	}
	return nil, false
}
