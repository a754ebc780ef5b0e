package ulengine

import (
	"bytes"
	"context"
	"fmt"

	"github.com/suyashkumar/dicom"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/uldimse"
	"github.com/kestrel-health/dicomul/ulpdu"
)

// handlePDataTF runs every PDV of pdu through the reassembler in arrival
// order (§4.4: command sink, then data sink, dispatch on the dataset's
// last PDV or immediately for commands with no dataset).
func (c *Connection) handlePDataTF(ctx context.Context, pdu *ulpdu.PDataTF) error {
	for i := range pdu.Items {
		if err := c.handlePDV(ctx, pdu.Items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) handlePDV(ctx context.Context, pdv ulpdu.PresentationDataValue) error {
	if c.curCommand == nil {
		return c.handleCommandPDV(ctx, pdv)
	}
	return c.handleDataPDV(ctx, pdv)
}

func (c *Connection) handleCommandPDV(ctx context.Context, pdv ulpdu.PresentationDataValue) error {
	if !pdv.IsCommand {
		return c.protocolErrorf("data PDV on context %d arrived before a command was assembled", pdv.ContextID)
	}
	if c.curBuf == nil {
		c.curBuf = &bytes.Buffer{}
	}
	c.curBuf.Write(pdv.Data)
	if !pdv.IsLast {
		return nil
	}

	dataset, err := dicom.Parse(bytes.NewReader(c.curBuf.Bytes()), int64(c.curBuf.Len()), nil, dicom.SkipMetadataReadOnNewParserInit())
	if err != nil {
		return c.protocolErrorf("decode command stream on context %d: %v", pdv.ContextID, err)
	}
	msg, err := uldimse.ReadMessage(&dataset)
	if err != nil {
		return c.protocolErrorf("read command on context %d: %v", pdv.ContextID, err)
	}
	c.mu.Lock()
	pc, _ := c.association.Context(pdv.ContextID)
	c.mu.Unlock()

	c.curCommand = msg
	c.curCommandPC = pc
	c.curBuf = nil

	if !msg.HasData() {
		defer c.resetReassembly()
		return c.dispatchInbound(ctx, msg, pc, nil, nil)
	}

	if req, ok := msg.(*uldimse.CStoreRq); ok {
		sink, err := c.cstoreProvider.Open(ctx, c.association, req, pc)
		if err != nil {
			c.resetReassembly()
			return fmt.Errorf("ulengine: open C-STORE sink for %s: %w", req.AffectedSOPInstanceUID, err)
		}
		c.curCStoreSink = sink
		c.curCStoreReq = req
		c.curCStoreMeta = buildFileMeta(c.association, req, pc)
		return nil
	}
	c.curBuf = &bytes.Buffer{}
	return nil
}

func (c *Connection) handleDataPDV(ctx context.Context, pdv ulpdu.PresentationDataValue) error {
	if pdv.IsCommand {
		return c.protocolErrorf("command PDV on context %d arrived while a dataset was in progress", pdv.ContextID)
	}
	if c.curCStoreReq != nil {
		if _, err := c.curCStoreSink.Write(pdv.Data); err != nil {
			return fmt.Errorf("ulengine: write C-STORE sink: %w", err)
		}
	} else {
		c.curBuf.Write(pdv.Data)
	}
	if !pdv.IsLast {
		return nil
	}

	command, pc := c.curCommand, c.curCommandPC
	if c.curCStoreReq != nil {
		req, sink, meta := c.curCStoreReq, c.curCStoreSink, c.curCStoreMeta
		c.resetReassembly()
		file, err := c.cstoreProvider.Finalize(ctx, sink, meta)
		if err != nil {
			c.cstoreProvider.OnException("", err)
			rsp := &uldimse.CStoreRsp{
				AffectedSOPClassUID:       req.AffectedSOPClassUID,
				MessageIDBeingRespondedTo: req.MessageID,
				CommandDataSetType:        uldimse.CommandDataSetTypeNull,
				AffectedSOPInstanceUID:    req.AffectedSOPInstanceUID,
				Status:                    uldimse.Status{Code: uldimse.StatusProcessingFailure, ErrorComment: err.Error()},
			}
			return c.enqueueMessage(ctx, outgoingMessage{
				msg:  rsp,
				hint: ulassoc.OutgoingMessage{AbstractSyntaxUID: pc.AbstractSyntaxUID, AssignedContextID: pc.ID},
			})
		}
		return c.dispatchInbound(ctx, req, pc, nil, file)
	}

	buf := c.curBuf
	c.resetReassembly()
	syntax := ""
	if pc != nil {
		syntax = pc.AcceptedTransferSyntax
	}
	dataset, err := parseRawDataset(buf.Bytes(), syntax)
	if err != nil {
		return c.protocolErrorf("decode dataset on context %d (transfer syntax %s): %v", pdv.ContextID, syntax, err)
	}
	return c.dispatchInbound(ctx, command, pc, &dataset, nil)
}

func (c *Connection) resetReassembly() {
	c.curCommand = nil
	c.curCommandPC = nil
	c.curBuf = nil
	c.curCStoreSink = nil
	c.curCStoreReq = nil
	c.curCStoreMeta = FileMetaInformation{}
}
