// Package ulpdu implements the DICOM Upper Layer PDU codec: the 7 A-PDUs
// defined in PS 3.8 and the P-DATA-TF fragmentation they carry.
package ulpdu

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Type identifies one of the 7 upper-layer PDUs by its single wire byte.
type Type byte

const (
	TypeAssociateRQ Type = 0x01
	TypeAssociateAC Type = 0x02
	TypeAssociateRJ Type = 0x03
	TypePDataTF     Type = 0x04
	TypeReleaseRQ   Type = 0x05
	TypeReleaseRP   Type = 0x06
	TypeAbort       Type = 0x07

	// typeReserved is the PS 3.8 reserved no-op PDU type. Silently ignored;
	// no spec reference pins down what, if anything, should happen here.
	typeReserved Type = 0xFF
)

func (t Type) String() string {
	switch t {
	case TypeAssociateRQ:
		return "A-ASSOCIATE-RQ"
	case TypeAssociateAC:
		return "A-ASSOCIATE-AC"
	case TypeAssociateRJ:
		return "A-ASSOCIATE-RJ"
	case TypePDataTF:
		return "P-DATA-TF"
	case TypeReleaseRQ:
		return "A-RELEASE-RQ"
	case TypeReleaseRP:
		return "A-RELEASE-RP"
	case TypeAbort:
		return "A-ABORT"
	default:
		return fmt.Sprintf("PDU-type-0x%02x", byte(t))
	}
}

// MaxPDULengthSanityCap bounds the body length a peer may declare in a PDU
// header. It exists only to stop a corrupt length field from driving an
// unbounded read; no real DICOM peer sends a single PDU anywhere near this
// size.
const MaxPDULengthSanityCap = 16 * 1024 * 1024

// ProtocolError marks a malformed PDU: bad header, sub-item length overflow,
// reserved bits set, or a declared length past MaxPDULengthSanityCap.
type ProtocolError struct {
	Context string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err == nil {
		return "ulpdu: protocol error: " + e.Context
	}
	return fmt.Sprintf("ulpdu: protocol error: %s: %v", e.Context, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protoErr(ctx string, err error) error { return &ProtocolError{Context: ctx, Err: err} }

// RawPDU is a PDU before its type-specific body has been decoded: the 6-byte
// header plus the raw body bytes.
type RawPDU struct {
	Type Type
	Body []byte
}

// ReadPDU reads exactly one PDU frame from src. A clean EOF before any header
// byte is returned as io.EOF (the caller treats that as a silent peer close,
// per PS 3.8's "the association no longer exists" handling). Any other
// truncation or I/O failure is wrapped.
func ReadPDU(src io.Reader, maxBodyLen uint32) (RawPDU, error) {
	if maxBodyLen == 0 || maxBodyLen > MaxPDULengthSanityCap {
		maxBodyLen = MaxPDULengthSanityCap
	}
	var header [6]byte
	if _, err := io.ReadFull(src, header[:1]); err != nil {
		if err == io.EOF {
			return RawPDU{}, io.EOF
		}
		return RawPDU{}, fmt.Errorf("ulpdu: read PDU type: %w", err)
	}
	if _, err := io.ReadFull(src, header[1:]); err != nil {
		return RawPDU{}, fmt.Errorf("ulpdu: read PDU header: %w", err)
	}
	length := binary.BigEndian.Uint32(header[2:6])
	if length > maxBodyLen {
		return RawPDU{}, protoErr(fmt.Sprintf("PDU length %d exceeds sanity cap %d", length, maxBodyLen), nil)
	}
	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(src, body); err != nil {
			return RawPDU{}, fmt.Errorf("ulpdu: read PDU body (type 0x%02x, %d bytes): %w", header[0], length, err)
		}
	}
	return RawPDU{Type: Type(header[0]), Body: body}, nil
}

// PDU is the decoded form of any of the 7 upper-layer PDUs.
type PDU interface {
	fmt.Stringer
	pduType() Type
	encodeBody() ([]byte, error)
}

// Decode turns a RawPDU's body into its typed representation.
func Decode(raw RawPDU) (PDU, error) {
	switch raw.Type {
	case TypeAssociateRQ:
		return decodeAssociateRQOrAC(raw.Body, true)
	case TypeAssociateAC:
		return decodeAssociateRQOrAC(raw.Body, false)
	case TypeAssociateRJ:
		return decodeAssociateRJ(raw.Body)
	case TypePDataTF:
		return decodePDataTF(raw.Body)
	case TypeReleaseRQ:
		return &ReleaseRQ{}, nil
	case TypeReleaseRP:
		return &ReleaseRP{}, nil
	case TypeAbort:
		return decodeAbort(raw.Body)
	case typeReserved:
		return nil, errReservedPDU
	default:
		return nil, protoErr(fmt.Sprintf("unknown PDU type 0x%02x", byte(raw.Type)), nil)
	}
}

// errReservedPDU is returned by Decode for the reserved 0xFF PDU type so
// callers can distinguish "ignore silently" from a real protocol violation.
var errReservedPDU = fmt.Errorf("ulpdu: reserved PDU type 0xff")

// IsReservedPDU reports whether err is the sentinel Decode returns for the
// silently-ignored 0xFF PDU type.
func IsReservedPDU(err error) bool { return err == errReservedPDU }

// Encode serializes a PDU to its wire form: 6-byte header followed by body.
func Encode(p PDU) ([]byte, error) {
	body, err := p.encodeBody()
	if err != nil {
		return nil, fmt.Errorf("ulpdu: encode %v: %w", p.pduType(), err)
	}
	out := make([]byte, 6+len(body))
	out[0] = byte(p.pduType())
	out[1] = 0
	binary.BigEndian.PutUint32(out[2:6], uint32(len(body)))
	copy(out[6:], body)
	return out, nil
}
