package main

import (
	"context"
	"fmt"
	"net"

	"github.com/urfave/cli/v2"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/ulengine"
	"github.com/kestrel-health/dicomul/uldimse"
)

func storeSCPCommand() *cli.Command {
	return &cli.Command{
		Name:  "storescp",
		Usage: "Run a minimal SCP answering C-ECHO and C-STORE",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Usage: "listen port", Value: 11112},
			&cli.StringFlag{Name: "aet", Usage: "called AE title to accept (empty accepts any)", Value: ""},
		},
		Action: storeSCPAction,
	}
}

func storeSCPAction(c *cli.Context) error {
	ctx := c.Context

	addr := fmt.Sprintf(":%d", c.Int("port"))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dicomul: listen on %s: %w", addr, err)
	}
	defer ln.Close()
	fmt.Printf("dicomul storescp listening on %s\n", addr)

	policy := &ulassoc.StaticPolicy{
		Accepted: map[string][]string{
			verificationSOPClassUID:                 {implicitVRLittleEndian, explicitVRLittleEndian},
			ctImageStorageSOPClassUID:               {implicitVRLittleEndian, explicitVRLittleEndian},
			mrImageStorageSOPClassUID:               {implicitVRLittleEndian, explicitVRLittleEndian},
			secondaryCaptureImageStorageSOPClassUID: {implicitVRLittleEndian, explicitVRLittleEndian},
		},
	}
	provider := &ulengine.ProviderHandlers{
		OnCEcho: func(ctx context.Context, conn *ulengine.Connection, req *uldimse.CEchoRq) (*uldimse.CEchoRsp, error) {
			return &uldimse.CEchoRsp{MessageIDBeingRespondedTo: req.MessageID, Status: uldimse.Status{Code: uldimse.StatusSuccess}}, nil
		},
		OnCStore: func(ctx context.Context, conn *ulengine.Connection, req *uldimse.CStoreRq, file *ulengine.DicomFile) (*uldimse.CStoreRsp, error) {
			defer file.Close()
			fmt.Printf("stored SOP instance %s (class %s)\n", req.AffectedSOPInstanceUID, req.AffectedSOPClassUID)
			return &uldimse.CStoreRsp{
				AffectedSOPClassUID:       req.AffectedSOPClassUID,
				AffectedSOPInstanceUID:    req.AffectedSOPInstanceUID,
				MessageIDBeingRespondedTo: req.MessageID,
				Status:                    uldimse.Status{Code: uldimse.StatusSuccess},
			}, nil
		},
		OnConnectionClosed: func(conn *ulengine.Connection, err error) {
			fmt.Printf("association closed: %v\n", err)
		},
	}

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("dicomul: accept: %w", err)
			}
		}
		go serveOneAssociation(ctx, conn, c.String("aet"), policy, provider)
	}
}

func serveOneAssociation(ctx context.Context, conn net.Conn, calledAET string, policy ulassoc.AbstractSyntaxPolicy, provider *ulengine.ProviderHandlers) {
	server := ulengine.NewServerConnection(conn, ulengine.ServerConfig{
		CalledAETitle:           calledAET,
		Policy:                  policy,
		Provider:                provider,
		ImplementationClassUID:  implementationClassUID,
		ImplementationVersion:   implementationVersion,
	})
	if err := server.Run(ctx); err != nil {
		fmt.Printf("association ended: %v\n", err)
	}
}
