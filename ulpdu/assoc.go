package ulpdu

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/dicomio"

	"github.com/kestrel-health/dicomul/ulpdu/item"
)

const aeTitleFieldLen = 16

// AssociateRQOrAC is the shared body layout of A-ASSOCIATE-RQ and
// A-ASSOCIATE-AC (PS 3.8 9.3.2 / 9.3.3): they differ only in which PDU type
// byte wraps them and in how the negotiated sub-items are interpreted.
type AssociateRQOrAC struct {
	// IsRequest is true for A-ASSOCIATE-RQ, false for A-ASSOCIATE-AC.
	IsRequest bool

	ProtocolVersion uint16
	CalledAETitle   string
	CallingAETitle  string
	Items           []item.SubItem
}

func (p *AssociateRQOrAC) pduType() Type {
	if p.IsRequest {
		return TypeAssociateRQ
	}
	return TypeAssociateAC
}

func decodeAssociateRQOrAC(body []byte, isRequest bool) (PDU, error) {
	d, err := dicomio.NewReader(bufio.NewReader(bytes.NewReader(body)), binary.BigEndian, int64(len(body)))
	if err != nil {
		return nil, protoErr("associate: new reader", err)
	}
	p := &AssociateRQOrAC{IsRequest: isRequest}
	var (
		sawApplicationContext  bool
		sawPresentationContext bool
		sawMaxLength           bool
	)
	if p.ProtocolVersion, err = d.ReadUInt16(); err != nil {
		return nil, protoErr("associate: protocol version", err)
	}
	if err := d.Skip(2); err != nil { // reserved
		return nil, protoErr("associate: reserved", err)
	}
	if p.CalledAETitle, err = d.ReadString(aeTitleFieldLen); err != nil {
		return nil, protoErr("associate: called AE title", err)
	}
	if p.CallingAETitle, err = d.ReadString(aeTitleFieldLen); err != nil {
		return nil, protoErr("associate: calling AE title", err)
	}
	if err := d.Skip(8 * 4); err != nil { // reserved
		return nil, protoErr("associate: reserved tail", err)
	}
	for !d.IsLimitExhausted() {
		it, err := item.DecodeSubItem(d)
		if err != nil {
			return nil, protoErr("associate: sub-item", err)
		}
		p.Items = append(p.Items, it)
		switch v := it.(type) {
		case *item.ApplicationContext:
			sawApplicationContext = true
		case *item.PresentationContext:
			sawPresentationContext = true
		case *item.UserInformation:
			if _, ok := v.MaxLength(); ok {
				sawMaxLength = true
			}
		}
	}
	p.CalledAETitle = trimAETitle(p.CalledAETitle)
	p.CallingAETitle = trimAETitle(p.CallingAETitle)
	if p.CalledAETitle == "" || p.CallingAETitle == "" {
		return nil, protoErr("associate: called/calling AE title must not be empty", nil)
	}
	if !sawApplicationContext {
		return nil, protoErr("associate: missing required application-context item", nil)
	}
	if isRequest && !sawPresentationContext {
		return nil, protoErr("associate: missing required presentation-context item", nil)
	}
	if !sawMaxLength {
		return nil, protoErr("associate: missing required user-information maximum-length sub-item", nil)
	}
	return p, nil
}

func (p *AssociateRQOrAC) encodeBody() ([]byte, error) {
	if p.CalledAETitle == "" || p.CallingAETitle == "" {
		return nil, fmt.Errorf("ulpdu: called/calling AE title must not be empty")
	}
	var buf bytes.Buffer
	e := dicomio.NewWriter(&buf, binary.BigEndian, false)
	if err := e.WriteUInt16(p.ProtocolVersion); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(2); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAETitle(p.CalledAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteString(padAETitle(p.CallingAETitle)); err != nil {
		return nil, err
	}
	if err := e.WriteZeros(8 * 4); err != nil {
		return nil, err
	}
	if err := item.Write(e, p.Items); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *AssociateRQOrAC) String() string {
	kind := "A-ASSOCIATE-AC"
	if p.IsRequest {
		kind = "A-ASSOCIATE-RQ"
	}
	return fmt.Sprintf("%s{version:%d called:%q calling:%q items:%d}",
		kind, p.ProtocolVersion, p.CalledAETitle, p.CallingAETitle, len(p.Items))
}

func padAETitle(s string) string {
	if len(s) >= aeTitleFieldLen {
		return s[:aeTitleFieldLen]
	}
	return s + string(bytes.Repeat([]byte{' '}, aeTitleFieldLen-len(s)))
}

func trimAETitle(s string) string {
	return string(bytes.TrimRight([]byte(s), " \x00"))
}

// AssociateRJResult is the association-reject outcome classifier.
type AssociateRJResult byte

const (
	ResultRejectedPermanent AssociateRJResult = 1
	ResultRejectedTransient AssociateRJResult = 2
)

// AssociateRJSource identifies which actor produced the rejection.
type AssociateRJSource byte

const (
	SourceULServiceUser                 AssociateRJSource = 1
	SourceULServiceProviderACSE         AssociateRJSource = 2
	SourceULServiceProviderPresentation AssociateRJSource = 3
)

// AssociateRJ is A-ASSOCIATE-RJ (PS 3.8 9.3.4): the peer declined the
// association, with a reason drawn from a source-specific enumeration.
type AssociateRJ struct {
	Result AssociateRJResult
	Source AssociateRJSource
	Reason byte
}

func decodeAssociateRJ(body []byte) (PDU, error) {
	if len(body) != 4 {
		return nil, protoErr(fmt.Sprintf("associate-rj: body must be 4 bytes, got %d", len(body)), nil)
	}
	return &AssociateRJ{
		Result: AssociateRJResult(body[1]),
		Source: AssociateRJSource(body[2]),
		Reason: body[3],
	}, nil
}

func (p *AssociateRJ) pduType() Type { return TypeAssociateRJ }

func (p *AssociateRJ) encodeBody() ([]byte, error) {
	return []byte{0, byte(p.Result), byte(p.Source), p.Reason}, nil
}

func (p *AssociateRJ) String() string {
	return fmt.Sprintf("A-ASSOCIATE-RJ{result:%d source:%d reason:%d}", p.Result, p.Source, p.Reason)
}
