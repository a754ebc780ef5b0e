package ulengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// TestStripGroupLengthElements covers the E2 large-C-STORE scenario's
// "dataset round-trips modulo stripped group lengths" requirement: group
// length elements must not survive into a re-encoded dataset, since their
// values go stale the moment the dataset is transcoded or trimmed.
func TestStripGroupLengthElements(t *testing.T) {
	groupLength, err := dicom.NewElement(tag.Tag{Group: 0x0008, Element: 0x0000}, []int{100})
	require.NoError(t, err)
	studyDate, err := dicom.NewElement(tag.Tag{Group: 0x0008, Element: 0x0020}, []string{"20260730"})
	require.NoError(t, err)
	otherGroupLength, err := dicom.NewElement(tag.Tag{Group: 0x0010, Element: 0x0000}, []int{42})
	require.NoError(t, err)
	patientName, err := dicom.NewElement(tag.Tag{Group: 0x0010, Element: 0x0010}, []string{"Doe^Jane"})
	require.NoError(t, err)

	elements := []*dicom.Element{groupLength, studyDate, otherGroupLength, patientName}
	stripped := stripGroupLengthElements(elements)

	require.Len(t, stripped, 2)
	assert.Equal(t, studyDate, stripped[0])
	assert.Equal(t, patientName, stripped[1])
	for _, e := range stripped {
		assert.NotZero(t, e.Tag.Element)
	}
}

func TestTransferSyntaxEncoding(t *testing.T) {
	bo, implicitVR := transferSyntaxEncoding(transferSyntaxImplicitVRLittleEndian)
	assert.True(t, implicitVR)
	assert.Equal(t, "LittleEndian", bo.String())

	_, implicitVR = transferSyntaxEncoding("1.2.840.10008.1.2.1") // Explicit VR Little Endian
	assert.False(t, implicitVR)

	bo, implicitVR = transferSyntaxEncoding(transferSyntaxExplicitVRBigEndian)
	assert.False(t, implicitVR)
	assert.Equal(t, "BigEndian", bo.String())
}
