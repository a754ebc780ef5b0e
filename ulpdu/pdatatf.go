package ulpdu

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/suyashkumar/dicom/pkg/dicomio"
)

// PresentationDataValue is one PDV fragment nested inside a P-DATA-TF PDU
// (PS 3.8 9.3.5, E.2). A P-DATA-TF carries one or more of these, each tagged
// with the odd presentation-context ID it belongs to.
type PresentationDataValue struct {
	ContextID byte

	// IsCommand is true when Data holds a DIMSE command stream fragment,
	// false for a dataset fragment (PS 3.8 E.2, message-control-header bit 0).
	IsCommand bool
	// IsLast is true when this PDV is the final fragment of its command or
	// dataset stream (bit 1).
	IsLast bool

	Data []byte
}

func readPresentationDataValue(d *dicomio.Reader) (PresentationDataValue, error) {
	length, err := d.ReadUInt32()
	if err != nil {
		return PresentationDataValue{}, err
	}
	if length < 2 {
		return PresentationDataValue{}, fmt.Errorf("ulpdu: PDV length %d too short for context+header", length)
	}
	v := PresentationDataValue{}
	if v.ContextID, err = d.ReadByte(); err != nil {
		return PresentationDataValue{}, err
	}
	header, err := d.ReadByte()
	if err != nil {
		return PresentationDataValue{}, err
	}
	if header&0xfc != 0 {
		return PresentationDataValue{}, fmt.Errorf("ulpdu: PDV message-control-header has reserved bits set: 0x%02x", header)
	}
	v.IsCommand = header&0x01 != 0
	v.IsLast = header&0x02 != 0
	v.Data = make([]byte, length-2)
	for i := range v.Data {
		b, err := d.ReadByte()
		if err != nil {
			return PresentationDataValue{}, err
		}
		v.Data[i] = b
	}
	return v, nil
}

func (v *PresentationDataValue) write(e *dicomio.Writer) error {
	var header byte
	if v.IsCommand {
		header |= 0x01
	}
	if v.IsLast {
		header |= 0x02
	}
	if err := e.WriteUInt32(uint32(2 + len(v.Data))); err != nil {
		return err
	}
	if err := e.WriteByte(v.ContextID); err != nil {
		return err
	}
	if err := e.WriteByte(header); err != nil {
		return err
	}
	return e.WriteBytes(v.Data)
}

func (v *PresentationDataValue) String() string {
	return fmt.Sprintf("pdv{context:%d command:%v last:%v bytes:%d}", v.ContextID, v.IsCommand, v.IsLast, len(v.Data))
}

// PDataTF is P-DATA-TF (PS 3.8 9.3.5): a batch of PDV fragments traveling
// together in one PDU frame, subject to the negotiated max-PDU-length.
type PDataTF struct {
	Items []PresentationDataValue
}

func decodePDataTF(body []byte) (PDU, error) {
	d, err := dicomio.NewReader(bufio.NewReader(bytes.NewReader(body)), binary.BigEndian, int64(len(body)))
	if err != nil {
		return nil, protoErr("p-data-tf: new reader", err)
	}
	p := &PDataTF{}
	for !d.IsLimitExhausted() {
		v, err := readPresentationDataValue(d)
		if err != nil {
			return nil, protoErr("p-data-tf: PDV", err)
		}
		p.Items = append(p.Items, v)
	}
	if len(p.Items) == 0 {
		return nil, protoErr("p-data-tf: no PDV items", nil)
	}
	return p, nil
}

func (p *PDataTF) pduType() Type { return TypePDataTF }

func (p *PDataTF) encodeBody() ([]byte, error) {
	var buf bytes.Buffer
	e := dicomio.NewWriter(&buf, binary.BigEndian, false)
	for i := range p.Items {
		if err := p.Items[i].write(e); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (p *PDataTF) String() string {
	return fmt.Sprintf("P-DATA-TF{pdvs:%d}", len(p.Items))
}
