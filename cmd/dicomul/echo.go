package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/suyashkumar/dicom"
	"github.com/urfave/cli/v2"

	"github.com/kestrel-health/dicomul/ulassoc"
	"github.com/kestrel-health/dicomul/ulengine"
	"github.com/kestrel-health/dicomul/uldimse"
	"github.com/kestrel-health/dicomul/ulpdu"
)

func echoCommand() *cli.Command {
	return &cli.Command{
		Name:  "echo",
		Usage: "Send a C-ECHO to a remote AE and report success or failure",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Usage: "remote host", Value: "localhost"},
			&cli.IntFlag{Name: "port", Usage: "remote port", Value: 11112},
			&cli.StringFlag{Name: "called-aet", Usage: "called AE title", Value: "ANY-SCP"},
			&cli.StringFlag{Name: "calling-aet", Usage: "calling AE title", Value: "DICOMUL"},
			&cli.DurationFlag{Name: "timeout", Usage: "overall operation timeout", Value: 10 * time.Second},
		},
		Action: echoAction,
	}
}

func echoAction(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.Duration("timeout"))
	defer cancel()

	addr := fmt.Sprintf("%s:%d", c.String("host"), c.Int("port"))
	conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dicomul: dial %s: %w", addr, err)
	}

	responses := make(chan uldimse.Message, 1)
	rejected := make(chan error, 1)
	client := ulengine.NewClientConnection(conn, ulengine.ClientConfig{
		ImplementationClassUID: implementationClassUID,
		ImplementationVersion:  implementationVersion,
		User: &ulengine.UserHandlers{
			PostResponse: func(ctx context.Context, conn *ulengine.Connection, req, resp uldimse.Message, dataset *dicom.Dataset) {
				responses <- resp
			},
			OnAssociationReject: func(conn *ulengine.Connection, result ulpdu.AssociateRJResult, source ulpdu.AssociateRJSource, reason byte) {
				rejected <- fmt.Errorf("dicomul: association rejected (result %d, source %d, reason %d)", result, source, reason)
			},
		},
	})

	runDone := make(chan error, 1)
	go func() { runDone <- client.Run(ctx) }()

	proposed := []ulassoc.PresentationContext{
		{ID: 1, AbstractSyntaxUID: verificationSOPClassUID, ProposedTransferSyntaxes: []string{implicitVRLittleEndian, explicitVRLittleEndian}},
	}
	if err := client.SendAssociationRequest(ctx, c.String("called-aet"), c.String("calling-aet"), proposed, 16384); err != nil {
		return fmt.Errorf("dicomul: send association request: %w", err)
	}

	select {
	case err := <-rejected:
		return err
	case <-client.Done():
		return fmt.Errorf("dicomul: connection closed before association completed: %w", client.Err())
	default:
	}
	if err := client.WaitForHandshake(ctx); err != nil {
		return fmt.Errorf("dicomul: wait for association: %w", err)
	}

	if err := client.SendRequest(ctx, &uldimse.CEchoRq{}, ulassoc.OutgoingMessage{AbstractSyntaxUID: verificationSOPClassUID}, nil); err != nil {
		return fmt.Errorf("dicomul: send C-ECHO: %w", err)
	}

	select {
	case resp := <-responses:
		rsp, ok := resp.(*uldimse.CEchoRsp)
		if !ok || !rsp.Status.Code.Success() {
			return fmt.Errorf("dicomul: C-ECHO failed: %v", resp)
		}
		fmt.Println("C-ECHO successful")
	case <-ctx.Done():
		return fmt.Errorf("dicomul: timed out waiting for C-ECHO-RSP")
	}

	_ = client.SendReleaseRequest()
	<-runDone
	return nil
}
