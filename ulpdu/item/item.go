// Package item implements the sub-item TLV layout nested inside
// A-ASSOCIATE-RQ/AC PDU bodies: application context, presentation context,
// and user-information items (PS 3.8 9.3.2/9.3.3).
package item

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// Type is the one-byte sub-item type tag.
type Type byte

const (
	TypeApplicationContext           Type = 0x10
	TypePresentationContextRequest   Type = 0x20
	TypePresentationContextResponse  Type = 0x21
	TypeAbstractSyntax               Type = 0x30
	TypeTransferSyntax                Type = 0x40
	TypeUserInformation               Type = 0x50
	TypeMaximumLength                 Type = 0x51
	TypeImplementationClassUID        Type = 0x52
	TypeAsynchronousOperationsWindow  Type = 0x53
	TypeSCPSCURoleSelection           Type = 0x54
	TypeImplementationVersionName     Type = 0x55
)

// DICOMApplicationContextName is the single application context name used
// by every conformant DICOM association (PS 3.7 Annex A.2.1).
const DICOMApplicationContextName = "1.2.840.10008.3.1.1.1"

// SubItem is any one of the sub-item shapes nested in an association PDU.
type SubItem interface {
	fmt.Stringer
	write(e *dicomio.Writer) error
}

// newReader wraps a body slice with the length-limited reader the sub-item
// decoders need to know where their own TLV bodies end.
func newReader(body []byte) (*dicomio.Reader, error) {
	return dicomio.NewReader(bufio.NewReader(bytes.NewReader(body)), binary.BigEndian, int64(len(body)))
}

func newWriter(buf *bytes.Buffer) *dicomio.Writer {
	return dicomio.NewWriter(buf, binary.BigEndian, false)
}

func writeHeader(e *dicomio.Writer, t Type, length uint16) error {
	if err := e.WriteByte(byte(t)); err != nil {
		return err
	}
	if err := e.WriteByte(0); err != nil {
		return err
	}
	return e.WriteUInt16(length)
}

// DecodeSubItem reads one sub-item from d. Unknown item types are preserved
// as Unsupported (type + raw bytes) so forward-compatible peers don't break
// decoding of the rest of the PDU.
func DecodeSubItem(d *dicomio.Reader) (SubItem, error) {
	t, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := d.ReadByte(); err != nil { // reserved
		return nil, err
	}
	length, err := d.ReadUInt16()
	if err != nil {
		return nil, err
	}
	switch Type(t) {
	case TypeApplicationContext:
		name, err := d.ReadString(int(length))
		return &ApplicationContext{Name: name}, err
	case TypeAbstractSyntax:
		name, err := d.ReadString(int(length))
		return &AbstractSyntax{Name: name}, err
	case TypeTransferSyntax:
		name, err := d.ReadString(int(length))
		return &TransferSyntax{Name: name}, err
	case TypePresentationContextRequest, TypePresentationContextResponse:
		return decodePresentationContext(d, Type(t), length)
	case TypeUserInformation:
		return decodeUserInformation(d, length)
	case TypeMaximumLength:
		if length != 4 {
			return nil, fmt.Errorf("item: MaximumLength item must be 4 bytes, got %d", length)
		}
		v, err := d.ReadUInt32()
		return &MaximumLength{Length: v}, err
	case TypeImplementationClassUID:
		name, err := d.ReadString(int(length))
		return &ImplementationClassUID{Name: name}, err
	case TypeImplementationVersionName:
		name, err := d.ReadString(int(length))
		return &ImplementationVersionName{Name: name}, err
	case TypeAsynchronousOperationsWindow:
		if length != 4 {
			return nil, fmt.Errorf("item: AsyncOpsWindow item must be 4 bytes, got %d", length)
		}
		invoked, err := d.ReadUInt16()
		if err != nil {
			return nil, err
		}
		performed, err := d.ReadUInt16()
		return &AsyncOperationsWindow{MaxOpsInvoked: invoked, MaxOpsPerformed: performed}, err
	case TypeSCPSCURoleSelection:
		return decodeRoleSelection(d, length)
	default:
		raw := make([]byte, length)
		for i := range raw {
			b, err := d.ReadByte()
			if err != nil {
				return nil, err
			}
			raw[i] = b
		}
		return &Unsupported{Type: Type(t), Data: raw}, nil
	}
}

// ApplicationContext is the single required PS 3.7 application-context item.
type ApplicationContext struct{ Name string }

func (v *ApplicationContext) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeApplicationContext, uint16(len(v.Name))); err != nil {
		return err
	}
	return e.WriteString(v.Name)
}
func (v *ApplicationContext) String() string { return fmt.Sprintf("application-context{%s}", v.Name) }

// AbstractSyntax names a SOP class proposed within a presentation context.
type AbstractSyntax struct{ Name string }

func (v *AbstractSyntax) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeAbstractSyntax, uint16(len(v.Name))); err != nil {
		return err
	}
	return e.WriteString(v.Name)
}
func (v *AbstractSyntax) String() string { return fmt.Sprintf("abstract-syntax{%s}", v.Name) }

// TransferSyntax names one transfer syntax proposed or accepted for a
// presentation context.
type TransferSyntax struct{ Name string }

func (v *TransferSyntax) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeTransferSyntax, uint16(len(v.Name))); err != nil {
		return err
	}
	return e.WriteString(v.Name)
}
func (v *TransferSyntax) String() string { return fmt.Sprintf("transfer-syntax{%s}", v.Name) }

// Unsupported preserves an unknown sub-item type's raw bytes verbatim so it
// round-trips even though this codec doesn't understand it.
type Unsupported struct {
	Type Type
	Data []byte
}

func (v *Unsupported) write(e *dicomio.Writer) error {
	if err := writeHeader(e, v.Type, uint16(len(v.Data))); err != nil {
		return err
	}
	return e.WriteBytes(v.Data)
}
func (v *Unsupported) String() string {
	return fmt.Sprintf("unsupported{type:0x%02x len:%d}", byte(v.Type), len(v.Data))
}

// PresentationContext is a single proposed (request) or accepted (response)
// presentation context carried inside an A-ASSOCIATE-RQ/AC.
type PresentationContext struct {
	Type      Type // TypePresentationContextRequest or ...Response
	ContextID byte
	// Result is meaningful only on the response variant: 0=accept,
	// 1=user-reject, 2=no-reason, 3=abstract-syntax-not-supported,
	// 4=transfer-syntaxes-not-supported.
	Result byte
	Items  []SubItem // AbstractSyntax (request only) + one-or-more TransferSyntax
}

func decodePresentationContext(d *dicomio.Reader, t Type, length uint16) (*PresentationContext, error) {
	if err := d.PushLimit(int64(length)); err != nil {
		return nil, err
	}
	defer d.PopLimit()
	v := &PresentationContext{Type: t}
	var err error
	v.ContextID, err = d.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := d.ReadByte(); err != nil { // reserved
		return nil, err
	}
	v.Result, err = d.ReadByte()
	if err != nil {
		return nil, err
	}
	if _, err := d.ReadByte(); err != nil { // reserved
		return nil, err
	}
	for !d.IsLimitExhausted() {
		item, err := DecodeSubItem(d)
		if err != nil {
			return nil, err
		}
		v.Items = append(v.Items, item)
	}
	if v.ContextID%2 != 1 {
		return nil, fmt.Errorf("item: presentation context ID must be odd, got %d", v.ContextID)
	}
	return v, nil
}

func (v *PresentationContext) write(e *dicomio.Writer) error {
	var body bytes.Buffer
	inner := newWriter(&body)
	for _, s := range v.Items {
		if err := s.write(inner); err != nil {
			return err
		}
	}
	if err := writeHeader(e, v.Type, uint16(4+body.Len())); err != nil {
		return err
	}
	if err := e.WriteByte(v.ContextID); err != nil {
		return err
	}
	if err := e.WriteByte(0); err != nil {
		return err
	}
	if err := e.WriteByte(v.Result); err != nil {
		return err
	}
	if err := e.WriteByte(0); err != nil {
		return err
	}
	return e.WriteBytes(body.Bytes())
}

func (v *PresentationContext) String() string {
	kind := "request"
	if v.Type == TypePresentationContextResponse {
		kind = "response"
	}
	return fmt.Sprintf("presentation-context-%s{id:%d result:%d items:%d}", kind, v.ContextID, v.Result, len(v.Items))
}

// MaximumLength carries the peer's advertised maximum PDU length.
type MaximumLength struct{ Length uint32 }

func (v *MaximumLength) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeMaximumLength, 4); err != nil {
		return err
	}
	return e.WriteUInt32(v.Length)
}
func (v *MaximumLength) String() string { return fmt.Sprintf("max-length{%d}", v.Length) }

// ImplementationClassUID identifies the peer implementation.
type ImplementationClassUID struct{ Name string }

func (v *ImplementationClassUID) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeImplementationClassUID, uint16(len(v.Name))); err != nil {
		return err
	}
	return e.WriteString(v.Name)
}
func (v *ImplementationClassUID) String() string { return fmt.Sprintf("impl-class-uid{%s}", v.Name) }

// ImplementationVersionName is the peer implementation's (non-standardized)
// version string.
type ImplementationVersionName struct{ Name string }

func (v *ImplementationVersionName) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeImplementationVersionName, uint16(len(v.Name))); err != nil {
		return err
	}
	return e.WriteString(v.Name)
}
func (v *ImplementationVersionName) String() string {
	return fmt.Sprintf("impl-version{%s}", v.Name)
}

// AsyncOperationsWindow carries the peer's max async ops invoked/performed.
// A value of 0 on either field means "unbounded."
type AsyncOperationsWindow struct {
	MaxOpsInvoked   uint16
	MaxOpsPerformed uint16
}

func (v *AsyncOperationsWindow) write(e *dicomio.Writer) error {
	if err := writeHeader(e, TypeAsynchronousOperationsWindow, 4); err != nil {
		return err
	}
	if err := e.WriteUInt16(v.MaxOpsInvoked); err != nil {
		return err
	}
	return e.WriteUInt16(v.MaxOpsPerformed)
}
func (v *AsyncOperationsWindow) String() string {
	return fmt.Sprintf("async-ops{invoked:%d performed:%d}", v.MaxOpsInvoked, v.MaxOpsPerformed)
}

// Role identifies which side may invoke/perform operations for one
// abstract syntax under SCP/SCU role selection negotiation (PS 3.7 D.3.3.4).
type Role struct {
	UID             string
	SCURole         bool
	SCPRole         bool
}

// RoleSelection is the SCP/SCU role selection sub-item.
type RoleSelection struct{ Role Role }

func decodeRoleSelection(d *dicomio.Reader, length uint16) (*RoleSelection, error) {
	if err := d.PushLimit(int64(length)); err != nil {
		return nil, err
	}
	defer d.PopLimit()
	uidLen, err := d.ReadUInt16()
	if err != nil {
		return nil, err
	}
	uid, err := d.ReadString(int(uidLen))
	if err != nil {
		return nil, err
	}
	scu, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	scp, err := d.ReadByte()
	if err != nil {
		return nil, err
	}
	return &RoleSelection{Role: Role{UID: uid, SCURole: scu != 0, SCPRole: scp != 0}}, nil
}

func (v *RoleSelection) write(e *dicomio.Writer) error {
	body := 2 + len(v.Role.UID) + 2
	if err := writeHeader(e, TypeSCPSCURoleSelection, uint16(body)); err != nil {
		return err
	}
	if err := e.WriteUInt16(uint16(len(v.Role.UID))); err != nil {
		return err
	}
	if err := e.WriteString(v.Role.UID); err != nil {
		return err
	}
	if err := e.WriteByte(boolByte(v.Role.SCURole)); err != nil {
		return err
	}
	return e.WriteByte(boolByte(v.Role.SCPRole))
}
func (v *RoleSelection) String() string {
	return fmt.Sprintf("role-selection{%s scu:%v scp:%v}", v.Role.UID, v.Role.SCURole, v.Role.SCPRole)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// UserInformation is the container item for the max-length, implementation
// identity, async-ops, and role-selection sub-items.
type UserInformation struct{ Items []SubItem }

func decodeUserInformation(d *dicomio.Reader, length uint16) (*UserInformation, error) {
	if err := d.PushLimit(int64(length)); err != nil {
		return nil, err
	}
	defer d.PopLimit()
	v := &UserInformation{}
	for !d.IsLimitExhausted() {
		item, err := DecodeSubItem(d)
		if err != nil {
			return nil, err
		}
		v.Items = append(v.Items, item)
	}
	return v, nil
}

func (v *UserInformation) write(e *dicomio.Writer) error {
	var body bytes.Buffer
	inner := newWriter(&body)
	for _, s := range v.Items {
		if err := s.write(inner); err != nil {
			return err
		}
	}
	if err := writeHeader(e, TypeUserInformation, uint16(body.Len())); err != nil {
		return err
	}
	return e.WriteBytes(body.Bytes())
}
func (v *UserInformation) String() string { return fmt.Sprintf("user-information{items:%d}", len(v.Items)) }

// MaxLength returns the negotiated max-PDU-length sub-item's value, if
// present.
func (v *UserInformation) MaxLength() (uint32, bool) {
	for _, it := range v.Items {
		if m, ok := it.(*MaximumLength); ok {
			return m.Length, true
		}
	}
	return 0, false
}

// Write serializes a top-level list of sub-items (the body of an
// A-ASSOCIATE-RQ/AC after the fixed AE-title header) to e.
func Write(e *dicomio.Writer, items []SubItem) error {
	for _, it := range items {
		if err := it.write(e); err != nil {
			return err
		}
	}
	return nil
}

// NewReader exposes the length-limited reader constructor to the ulpdu
// package, which needs it for the fixed-header portion of AssociateRQ/AC
// before sub-items begin.
func NewReader(body []byte) (*dicomio.Reader, error) { return newReader(body) }

// NewWriter exposes the writer constructor to ulpdu for the same reason.
func NewWriter(buf *bytes.Buffer) *dicomio.Writer { return newWriter(buf) }
