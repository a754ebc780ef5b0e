package item

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeOne(t *testing.T, v SubItem) []byte {
	t.Helper()
	var buf bytes.Buffer
	e := NewWriter(&buf)
	require.NoError(t, v.write(e))
	return buf.Bytes()
}

func decodeOne(t *testing.T, raw []byte) SubItem {
	t.Helper()
	d, err := NewReader(raw)
	require.NoError(t, err)
	v, err := DecodeSubItem(d)
	require.NoError(t, err)
	return v
}

func TestApplicationContextRoundTrip(t *testing.T) {
	v := &ApplicationContext{Name: DICOMApplicationContextName}
	got := decodeOne(t, encodeOne(t, v))
	assert.Equal(t, v, got)
}

func TestPresentationContextRequestRoundTrip(t *testing.T) {
	v := &PresentationContext{
		Type:      TypePresentationContextRequest,
		ContextID: 3,
		Items: []SubItem{
			&AbstractSyntax{Name: "1.2.840.10008.5.1.4.1.1.7"},
			&TransferSyntax{Name: "1.2.840.10008.1.2.1"},
		},
	}
	got := decodeOne(t, encodeOne(t, v)).(*PresentationContext)
	assert.Equal(t, byte(3), got.ContextID)
	require.Len(t, got.Items, 2)
	assert.Equal(t, "1.2.840.10008.5.1.4.1.1.7", got.Items[0].(*AbstractSyntax).Name)
}

func TestPresentationContextRejectsEvenContextID(t *testing.T) {
	v := &PresentationContext{Type: TypePresentationContextRequest, ContextID: 2}
	_, err := NewReader(encodeOne(t, v))
	require.NoError(t, err)
	raw := encodeOne(t, v)
	d, err := NewReader(raw)
	require.NoError(t, err)
	_, err = DecodeSubItem(d)
	assert.Error(t, err)
}

func TestUserInformationRoundTripAndMaxLength(t *testing.T) {
	v := &UserInformation{Items: []SubItem{
		&MaximumLength{Length: 16384},
		&ImplementationClassUID{Name: "1.2.3.4"},
		&AsyncOperationsWindow{MaxOpsInvoked: 1, MaxOpsPerformed: 1},
		&RoleSelection{Role: Role{UID: "1.2.840.10008.5.1.4.1.1.7", SCURole: false, SCPRole: true}},
	}}
	got := decodeOne(t, encodeOne(t, v)).(*UserInformation)
	ml, ok := got.MaxLength()
	require.True(t, ok)
	assert.EqualValues(t, 16384, ml)
	require.Len(t, got.Items, 4)
	role := got.Items[3].(*RoleSelection)
	assert.True(t, role.Role.SCPRole)
	assert.False(t, role.Role.SCURole)
}

func TestUnsupportedItemPreservesBytes(t *testing.T) {
	raw := []byte{0x99, 0x00, 0x00, 0x03, 0xAA, 0xBB, 0xCC}
	d, err := NewReader(raw)
	require.NoError(t, err)
	v, err := DecodeSubItem(d)
	require.NoError(t, err)
	unsupported, ok := v.(*Unsupported)
	require.True(t, ok)
	assert.Equal(t, Type(0x99), unsupported.Type)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xCC}, unsupported.Data)
	assert.Equal(t, raw, encodeOne(t, unsupported))
}
