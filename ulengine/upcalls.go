package ulengine

import (
	"context"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
	"github.com/kestrel-health/dicomul/ulpdu"
)

// CFindResult pairs one C-FIND-RSP with the Identifier dataset that
// accompanies it on all but the final (non-Pending) response.
type CFindResult struct {
	Response   *uldimse.CFindRsp
	Identifier *dicom.Dataset
}

// ProviderHandlers is the capability set a server-role host implements.
// Every field is optional; a DIMSE verb that arrives on the wire with no
// handler registered is reported as UnimplementedRole and the association
// is aborted. Lifecycle handlers are pure notifications and may be left
// nil freely.
type ProviderHandlers struct {
	// OnAssociationRequest is called once negotiation has produced assoc
	// (accepted contexts already decided by the AbstractSyntaxPolicy handed
	// to NewServerConnection); it cannot itself reject the association.
	OnAssociationRequest func(ctx context.Context, conn *Connection, assoc *ulassoc.Association)
	OnReleaseRequest      func(ctx context.Context, conn *Connection)
	OnAbort               func(conn *Connection, source ulpdu.AbortSource, reason ulpdu.AbortReason)
	OnConnectionClosed    func(conn *Connection, err error)

	OnCEcho func(ctx context.Context, conn *Connection, req *uldimse.CEchoRq) (*uldimse.CEchoRsp, error)

	// OnCStore receives the fully reassembled dataset as file (nil when the
	// sink provider's Finalize returns no file and no error). If Finalize
	// fails, the engine responds with StatusProcessingFailure and calls the
	// sink provider's exception hook instead; OnCStore is not called then.
	OnCStore func(ctx context.Context, conn *Connection, req *uldimse.CStoreRq, file *DicomFile) (*uldimse.CStoreRsp, error)

	// OnCFind streams CFindResult values until one with a non-Pending
	// status, which the engine sends and then stops draining. The handler
	// must eventually close the channel.
	OnCFind func(ctx context.Context, conn *Connection, req *uldimse.CFindRq, identifier *dicom.Dataset) (<-chan CFindResult, error)
	OnCMove func(ctx context.Context, conn *Connection, req *uldimse.CMoveRq, identifier *dicom.Dataset) (<-chan *uldimse.CMoveRsp, error)
	OnCGet  func(ctx context.Context, conn *Connection, req *uldimse.CGetRq, identifier *dicom.Dataset) (<-chan *uldimse.CGetRsp, error)

	OnNGet         func(ctx context.Context, conn *Connection, req *uldimse.NGetRq) (*uldimse.NGetRsp, *dicom.Dataset, error)
	OnNSet         func(ctx context.Context, conn *Connection, req *uldimse.NSetRq, modificationList *dicom.Dataset) (*uldimse.NSetRsp, error)
	OnNAction      func(ctx context.Context, conn *Connection, req *uldimse.NActionRq, actionInfo *dicom.Dataset) (*uldimse.NActionRsp, *dicom.Dataset, error)
	OnNCreate      func(ctx context.Context, conn *Connection, req *uldimse.NCreateRq, attributeList *dicom.Dataset) (*uldimse.NCreateRsp, *dicom.Dataset, error)
	OnNDelete      func(ctx context.Context, conn *Connection, req *uldimse.NDeleteRq) (*uldimse.NDeleteRsp, error)
	OnNEventReport func(ctx context.Context, conn *Connection, req *uldimse.NEventReportRq, eventInfo *dicom.Dataset) (*uldimse.NEventReportRsp, *dicom.Dataset, error)
}

// UserHandlers is the capability set a client-role host implements.
type UserHandlers struct {
	OnAssociationAccept func(ctx context.Context, conn *Connection, assoc *ulassoc.Association)
	OnAssociationReject func(conn *Connection, result ulpdu.AssociateRJResult, source ulpdu.AssociateRJSource, reason byte)
	OnReleaseResponse   func(conn *Connection)
	OnAbort             func(conn *Connection, source ulpdu.AbortSource, reason ulpdu.AbortReason)
	OnConnectionClosed  func(conn *Connection, err error)

	// PostResponse is invoked for every response delivered to a pending
	// request, in PDU-arrival order. The pending entry stays in place across
	// Pending responses and is removed just before PostResponse is called
	// with the terminal one (resp.GetStatus().Code.Pending() is false).
	// dataset is the response's accompanying dataset, if any (e.g. a
	// C-FIND-RSP's Identifier, an N-GET-RSP's attribute list).
	PostResponse func(ctx context.Context, conn *Connection, req uldimse.Message, resp uldimse.Message, dataset *dicom.Dataset)
}
